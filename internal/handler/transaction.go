package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/corepay/ledger-service/internal/domain"
	"github.com/corepay/ledger-service/internal/logging"
	"github.com/corepay/ledger-service/internal/pagination"
	"github.com/corepay/ledger-service/internal/repository"
	"github.com/corepay/ledger-service/internal/service"
)

type TransactionHandler struct {
	svc *service.TransactionService
}

func NewTransactionHandler(svc *service.TransactionService) *TransactionHandler {
	return &TransactionHandler{svc: svc}
}

type transactionResponse struct {
	ID                    string               `json:"id"`
	IdempotencyKey        string               `json:"idempotency_key"`
	Type                  string               `json:"type"`
	Status                string               `json:"status"`
	SourceAccountID       *string              `json:"source_account_id,omitempty"`
	DestinationAccountID  *string              `json:"destination_account_id,omitempty"`
	Amount                int64                `json:"amount"`
	Fee                   int64                `json:"fee"`
	Currency              string               `json:"currency"`
	AmountDisplay         string               `json:"amount_display"`
	ExternalReference     *string              `json:"external_reference,omitempty"`
	ProviderCode          *string              `json:"provider_code,omitempty"`
	ErrorDetails          *domain.ErrorDetails `json:"error_details,omitempty"`
	ParentTransactionID   *string              `json:"parent_transaction_id,omitempty"`
	ConfirmationExpiresAt *time.Time           `json:"confirmation_expires_at,omitempty"`
	CreatedAt             time.Time            `json:"created_at"`
	CompletedAt           *time.Time           `json:"completed_at,omitempty"`
}

func toTransactionResponse(t *domain.Transaction) transactionResponse {
	resp := transactionResponse{
		ID:                    t.ID.String(),
		IdempotencyKey:        t.IdempotencyKey.String(),
		Type:                  string(t.Type),
		Status:                string(t.Status),
		Amount:                t.Amount.Amount,
		Fee:                   t.Fee.Amount,
		Currency:              string(t.Amount.Currency),
		AmountDisplay:         t.Amount.Decimal().String(),
		ErrorDetails:          t.ErrorDetails,
		ConfirmationExpiresAt: t.ConfirmationExpiresAt,
		CreatedAt:             t.CreatedAt,
		CompletedAt:           t.CompletedAt,
	}
	if t.SourceAccountID != nil {
		s := t.SourceAccountID.String()
		resp.SourceAccountID = &s
	}
	if t.DestinationAccountID != nil {
		s := t.DestinationAccountID.String()
		resp.DestinationAccountID = &s
	}
	if t.ExternalReference != nil {
		s := t.ExternalReference.String()
		resp.ExternalReference = &s
	}
	resp.ProviderCode = t.ProviderCode
	if t.ParentTransactionID != nil {
		s := t.ParentTransactionID.String()
		resp.ParentTransactionID = &s
	}
	return resp
}

type entryResponse struct {
	ID            string    `json:"id"`
	TransactionID string    `json:"transaction_id"`
	AccountID     string    `json:"account_id"`
	EntryType     string    `json:"entry_type"`
	Amount        int64     `json:"amount"`
	Currency      string    `json:"currency"`
	BalanceBefore int64     `json:"balance_before"`
	BalanceAfter  int64     `json:"balance_after"`
	CreatedAt     time.Time `json:"created_at"`
}

func toEntryResponse(e domain.LedgerEntry) entryResponse {
	return entryResponse{
		ID:            e.ID.String(),
		TransactionID: e.TransactionID.String(),
		AccountID:     e.AccountID.String(),
		EntryType:     string(e.EntryType),
		Amount:        e.Amount,
		Currency:      string(e.Currency),
		BalanceBefore: e.BalanceBefore,
		BalanceAfter:  e.BalanceAfter,
		CreatedAt:     e.CreatedAt,
	}
}

type pageResponse[T any] struct {
	Items      []T    `json:"items"`
	HasMore    bool   `json:"has_more"`
	NextCursor string `json:"next_cursor,omitempty"`
	PrevCursor string `json:"prev_cursor,omitempty"`
}

type initiateRequest struct {
	AccountID            string `json:"account_id"`
	CounterpartyID       string `json:"counterparty_id,omitempty"`
	Amount               int64  `json:"amount"`
	Fee                  int64  `json:"fee"`
	Currency             string `json:"currency"`
	Provider             string `json:"provider,omitempty"`
	RequiresConfirmation bool   `json:"requires_confirmation,omitempty"`
}

func (h *TransactionHandler) InitiateDeposit(w http.ResponseWriter, r *http.Request) {
	h.initiate(w, r, domain.TransactionTypeDeposit)
}

func (h *TransactionHandler) InitiateWithdrawal(w http.ResponseWriter, r *http.Request) {
	h.initiate(w, r, domain.TransactionTypeWithdrawal)
}

func (h *TransactionHandler) InitiateTransfer(w http.ResponseWriter, r *http.Request) {
	h.initiate(w, r, domain.TransactionTypeTransfer)
}

func (h *TransactionHandler) initiate(w http.ResponseWriter, r *http.Request, txType domain.TransactionType) {
	log := logging.FromContext(r.Context())

	key := r.Header.Get("Idempotency-Key")
	if key == "" {
		RespondAppError(w, ErrMissingIdempotencyKey, nil)
		return
	}

	var req initiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		RespondValidationError(w, []FieldError{{Field: "account_id", Message: "must be a valid UUID"}})
		return
	}
	var counterparty *uuid.UUID
	if req.CounterpartyID != "" {
		id, err := uuid.Parse(req.CounterpartyID)
		if err != nil {
			RespondValidationError(w, []FieldError{{Field: "counterparty_id", Message: "must be a valid UUID"}})
			return
		}
		counterparty = &id
	}

	t, err := h.svc.Initiate(r.Context(), service.InitiateRequest{
		Type:                 txType,
		AccountID:            accountID,
		CounterpartyID:       counterparty,
		AmountMinor:          req.Amount,
		FeeMinor:             req.Fee,
		Currency:             domain.Currency(req.Currency),
		IdempotencyKey:       key,
		ProviderCode:         req.Provider,
		RequiresConfirmation: req.RequiresConfirmation,
	})
	if err != nil {
		log.Warn("transaction initiation rejected", "type", txType, "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusCreated, toTransactionResponse(t))
}

type refundRequest struct {
	Amount   int64  `json:"amount"`
	Provider string `json:"provider,omitempty"`
}

func (h *TransactionHandler) InitiateRefund(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("Idempotency-Key")
	if key == "" {
		RespondAppError(w, ErrMissingIdempotencyKey, nil)
		return
	}

	parentID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondValidationError(w, []FieldError{{Field: "id", Message: "must be a valid UUID"}})
		return
	}

	var req refundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	t, err := h.svc.InitiateRefund(r.Context(), parentID, req.Amount, key, req.Provider)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusCreated, toTransactionResponse(t))
}

func (h *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondValidationError(w, []FieldError{{Field: "id", Message: "must be a valid UUID"}})
		return
	}

	t, err := h.svc.Get(r.Context(), id)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toTransactionResponse(t))
}

func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, fieldErrs := parseFilter(r)
	if len(fieldErrs) > 0 {
		RespondValidationError(w, fieldErrs)
		return
	}

	res, err := h.svc.List(r.Context(), filter, parsePage(r))
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toPageResponse(res, toTransactionResponsePtr))
}

func (h *TransactionHandler) ListByAccount(w http.ResponseWriter, r *http.Request) {
	accountID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondValidationError(w, []FieldError{{Field: "id", Message: "must be a valid UUID"}})
		return
	}

	res, err := h.svc.ListByAccount(r.Context(), accountID, parsePage(r))
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toPageResponse(res, toTransactionResponsePtr))
}

func (h *TransactionHandler) Entries(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondValidationError(w, []FieldError{{Field: "id", Message: "must be a valid UUID"}})
		return
	}

	entries, err := h.svc.Entries(r.Context(), id)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	out := make([]entryResponse, len(entries))
	for i, e := range entries {
		out[i] = toEntryResponse(e)
	}
	RespondSuccess(w, http.StatusOK, out)
}

func (h *TransactionHandler) AccountEntries(w http.ResponseWriter, r *http.Request) {
	accountID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondValidationError(w, []FieldError{{Field: "id", Message: "must be a valid UUID"}})
		return
	}

	res, err := h.svc.AccountEntries(r.Context(), accountID, parsePage(r))
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toPageResponse(res, toEntryResponse))
}

func (h *TransactionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondValidationError(w, []FieldError{{Field: "id", Message: "must be a valid UUID"}})
		return
	}

	t, err := h.svc.Cancel(r.Context(), id)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toTransactionResponse(t))
}

type confirmRequest struct {
	Token string `json:"token"`
}

func (h *TransactionHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondValidationError(w, []FieldError{{Field: "id", Message: "must be a valid UUID"}})
		return
	}

	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	t, err := h.svc.Confirm(r.Context(), id, req.Token)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toTransactionResponse(t))
}

func toTransactionResponsePtr(t domain.Transaction) transactionResponse {
	return toTransactionResponse(&t)
}

func toPageResponse[T, R any](res pagination.Result[T], conv func(T) R) pageResponse[R] {
	items := make([]R, len(res.Items))
	for i, it := range res.Items {
		items[i] = conv(it)
	}
	return pageResponse[R]{
		Items:      items,
		HasMore:    res.HasMore,
		NextCursor: res.NextCursor,
		PrevCursor: res.PrevCursor,
	}
}

func parsePage(r *http.Request) pagination.Page {
	q := r.URL.Query()
	page := pagination.Page{Cursor: q.Get("cursor")}
	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			page.Limit = n
		}
	}
	if q.Get("order") == "desc" {
		page.Order = pagination.SortDesc
	}
	return page
}

func parseFilter(r *http.Request) (repository.TransactionFilter, []FieldError) {
	var (
		f    repository.TransactionFilter
		errs []FieldError
	)
	q := r.URL.Query()

	if raw := q.Get("account_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			errs = append(errs, FieldError{Field: "account_id", Message: "must be a valid UUID"})
		} else {
			f.AccountID = &id
		}
	}
	if raw := q.Get("types"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			f.Types = append(f.Types, domain.TransactionType(s))
		}
	}
	if raw := q.Get("statuses"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			f.Statuses = append(f.Statuses, domain.TransactionStatus(s))
		}
	}
	if raw := q.Get("created_after"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			errs = append(errs, FieldError{Field: "created_after", Message: "must be RFC3339"})
		} else {
			f.CreatedAfter = &t
		}
	}
	if raw := q.Get("created_before"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			errs = append(errs, FieldError{Field: "created_before", Message: "must be RFC3339"})
		} else {
			f.CreatedBefore = &t
		}
	}
	return f, errs
}
