package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/corepay/ledger-service/internal/domain"
	"github.com/corepay/ledger-service/internal/pagination"
	"github.com/corepay/ledger-service/internal/repository"
)

const confirmationTTL = 15 * time.Minute

// TransactionService owns transaction initiation and the explicit user-driven
// actions (cancel, confirm). Settlement itself is driven by the webhook
// reconciliation pipeline, never from here.
type TransactionService struct {
	store  *repository.Store
	logger *slog.Logger
}

func NewTransactionService(store *repository.Store, logger *slog.Logger) *TransactionService {
	return &TransactionService{store: store, logger: logger}
}

type InitiateRequest struct {
	Type                 domain.TransactionType
	AccountID            uuid.UUID
	CounterpartyID       *uuid.UUID
	AmountMinor          int64
	FeeMinor             int64
	Currency             domain.Currency
	IdempotencyKey       string
	ProviderCode         string
	RequiresConfirmation bool
}

// Initiate creates a pending transaction, collapsing duplicate submissions
// through the idempotency key: a second call with the same key returns the
// transaction created by the first.
func (s *TransactionService) Initiate(ctx context.Context, req InitiateRequest) (*domain.Transaction, error) {
	key, err := domain.NewIdempotencyKey(req.IdempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("Initiate: %w", err)
	}

	if existing, err := s.store.Transactions.GetByIdempotencyKey(ctx, key); err == nil {
		return existing, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("Initiate: %w", err)
	}

	amount, err := domain.NewMoney(req.AmountMinor, req.Currency)
	if err != nil {
		return nil, fmt.Errorf("Initiate: %w", err)
	}
	fee, err := domain.NewFee(req.FeeMinor, req.Currency)
	if err != nil {
		return nil, fmt.Errorf("Initiate: %w", err)
	}

	source, destination, err := s.parties(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Initiate: %w", err)
	}

	now := time.Now().UTC()
	t, err := domain.NewTransaction(req.Type, key, amount, fee, source, destination, now)
	if err != nil {
		return nil, fmt.Errorf("Initiate: %w", err)
	}
	if req.ProviderCode != "" {
		t.ProviderCode = &req.ProviderCode
	}
	if req.RequiresConfirmation {
		token := newConfirmationToken()
		expires := now.Add(confirmationTTL)
		t.ConfirmationToken = &token
		t.ConfirmationExpiresAt = &expires
	}

	if err := s.store.Transactions.Create(ctx, t); err != nil {
		if errors.Is(err, domain.ErrDuplicateKey) {
			// Lost a race with a concurrent submission holding the same key.
			existing, lookupErr := s.store.Transactions.GetByIdempotencyKey(ctx, key)
			if lookupErr != nil {
				return nil, fmt.Errorf("Initiate: %w", lookupErr)
			}
			return existing, nil
		}
		return nil, fmt.Errorf("Initiate: %w", err)
	}

	s.logger.Info("transaction initiated",
		"transaction_id", t.ID,
		"type", t.Type,
		"amount", t.Amount.Amount,
		"fee", t.Fee.Amount,
		"currency", t.Amount.Currency,
	)
	return t, nil
}

func (s *TransactionService) parties(ctx context.Context, req InitiateRequest) (source, destination *uuid.UUID, err error) {
	account, err := s.store.Accounts.GetByID(ctx, req.AccountID)
	if err != nil {
		return nil, nil, err
	}
	if account.Currency != req.Currency {
		return nil, nil, domain.ErrCurrencyMismatch
	}

	id := account.ID
	switch req.Type {
	case domain.TransactionTypeDeposit:
		return nil, &id, nil
	case domain.TransactionTypeWithdrawal:
		return &id, nil, nil
	case domain.TransactionTypeTransfer:
		if req.CounterpartyID == nil {
			return nil, nil, domain.ErrMissingParty
		}
		counterparty, err := s.store.Accounts.GetByID(ctx, *req.CounterpartyID)
		if err != nil {
			return nil, nil, err
		}
		if counterparty.Currency != req.Currency {
			return nil, nil, domain.ErrCurrencyMismatch
		}
		cid := counterparty.ID
		return &id, &cid, nil
	}
	return nil, nil, fmt.Errorf("unsupported initiation type %q", req.Type)
}

// InitiateRefund creates a child refund transaction against a completed
// parent. Money leaves the account the parent credited, so the refund's
// source is the parent's destination.
func (s *TransactionService) InitiateRefund(ctx context.Context, parentID uuid.UUID, amountMinor int64, idempotencyKey, providerCode string) (*domain.Transaction, error) {
	key, err := domain.NewIdempotencyKey(idempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("InitiateRefund: %w", err)
	}

	if existing, err := s.store.Transactions.GetByIdempotencyKey(ctx, key); err == nil {
		return existing, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("InitiateRefund: %w", err)
	}

	parent, err := s.store.Transactions.GetByID(ctx, parentID)
	if err != nil {
		return nil, fmt.Errorf("InitiateRefund: %w", err)
	}
	if parent.Status != domain.TransactionStatusCompleted || parent.DestinationAccountID == nil {
		return nil, fmt.Errorf("InitiateRefund: parent not refundable: %w", domain.ErrInvalidTransactionState)
	}

	amount, err := domain.NewMoney(amountMinor, parent.Amount.Currency)
	if err != nil {
		return nil, fmt.Errorf("InitiateRefund: %w", err)
	}
	if amount.Amount > parent.Amount.Amount {
		return nil, fmt.Errorf("InitiateRefund: refund exceeds parent amount: %w", domain.ErrInvalidAmount)
	}
	fee, _ := domain.NewFee(0, parent.Amount.Currency)

	now := time.Now().UTC()
	t, err := domain.NewTransaction(domain.TransactionTypeRefund, key, amount, fee, parent.DestinationAccountID, nil, now)
	if err != nil {
		return nil, fmt.Errorf("InitiateRefund: %w", err)
	}
	pid := parent.ID
	t.ParentTransactionID = &pid
	if providerCode != "" {
		t.ProviderCode = &providerCode
	}

	if err := s.store.Transactions.Create(ctx, t); err != nil {
		if errors.Is(err, domain.ErrDuplicateKey) {
			existing, lookupErr := s.store.Transactions.GetByIdempotencyKey(ctx, key)
			if lookupErr != nil {
				return nil, fmt.Errorf("InitiateRefund: %w", lookupErr)
			}
			return existing, nil
		}
		return nil, fmt.Errorf("InitiateRefund: %w", err)
	}

	s.logger.Info("refund initiated", "transaction_id", t.ID, "parent_transaction_id", parent.ID, "amount", amount.Amount)
	return t, nil
}

// Cancel aborts a still-pending transaction. The conditional update doubles
// as the race guard: zero rows means the transaction moved on and the cancel
// is rejected.
func (s *TransactionService) Cancel(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	if _, err := s.store.Transactions.GetByID(ctx, id); err != nil {
		return nil, fmt.Errorf("Cancel: %w", err)
	}

	now := time.Now().UTC()
	ok, err := s.store.Transactions.TransitionStatus(ctx, id, domain.TransactionStatusCancelled, nil, nil, &now)
	if err != nil {
		return nil, fmt.Errorf("Cancel: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("Cancel: %w", domain.ErrInvalidTransactionState)
	}

	t, err := s.store.Transactions.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("Cancel: %w", err)
	}
	s.logger.Info("transaction cancelled", "transaction_id", id)
	return t, nil
}

// Confirm completes the two-phase confirmation step and moves the
// transaction into processing.
func (s *TransactionService) Confirm(ctx context.Context, id uuid.UUID, token string) (*domain.Transaction, error) {
	t, err := s.store.Transactions.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("Confirm: %w", err)
	}

	now := time.Now().UTC()
	if err := t.Confirm(token, now); err != nil {
		return nil, fmt.Errorf("Confirm: %w", err)
	}
	if err := s.store.Transactions.Update(ctx, t); err != nil {
		return nil, fmt.Errorf("Confirm: %w", err)
	}

	s.logger.Info("transaction confirmed", "transaction_id", id)
	return t, nil
}

func (s *TransactionService) Get(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	t, err := s.store.Transactions.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return t, nil
}

func (s *TransactionService) List(ctx context.Context, filter repository.TransactionFilter, page pagination.Page) (pagination.Result[domain.Transaction], error) {
	res, err := s.store.Transactions.List(ctx, filter, page)
	if err != nil {
		return res, fmt.Errorf("List: %w", err)
	}
	return res, nil
}

func (s *TransactionService) ListByAccount(ctx context.Context, accountID uuid.UUID, page pagination.Page) (pagination.Result[domain.Transaction], error) {
	res, err := s.store.Transactions.ListByAccount(ctx, accountID, page)
	if err != nil {
		return res, fmt.Errorf("ListByAccount: %w", err)
	}
	return res, nil
}

func (s *TransactionService) Entries(ctx context.Context, transactionID uuid.UUID) ([]domain.LedgerEntry, error) {
	entries, err := s.store.Ledger.GetByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("Entries: %w", err)
	}
	return entries, nil
}

func (s *TransactionService) AccountEntries(ctx context.Context, accountID uuid.UUID, page pagination.Page) (pagination.Result[domain.LedgerEntry], error) {
	res, err := s.store.Ledger.GetByAccountID(ctx, accountID, page)
	if err != nil {
		return res, fmt.Errorf("AccountEntries: %w", err)
	}
	return res, nil
}

func newConfirmationToken() string {
	buf := make([]byte, 16)
	rand.Read(buf)
	return hex.EncodeToString(buf)
}
