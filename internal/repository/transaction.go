package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/corepay/ledger-service/internal/domain"
	"github.com/corepay/ledger-service/internal/pagination"
)

const transactionColumns = `id, idempotency_key, type, status, source_account_id,
	destination_account_id, amount, fee, currency, external_reference,
	provider_code, error_details, parent_transaction_id, confirmation_token,
	confirmation_expires_at, created_at, updated_at, completed_at`

// TransactionFilter narrows List. All fields are optional and AND-combined.
type TransactionFilter struct {
	AccountID     *uuid.UUID
	Types         []domain.TransactionType
	Statuses      []domain.TransactionStatus
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

type TransactionRepository struct {
	q querier
}

// Create inserts a brand-new transaction row. A unique violation on the
// idempotency key (or external reference) surfaces as domain.ErrDuplicateKey.
func (r *TransactionRepository) Create(ctx context.Context, t *domain.Transaction) error {
	details, err := marshalErrorDetails(t.ErrorDetails)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}

	_, err = r.q.ExecContext(ctx,
		`INSERT INTO transactions (
			id, idempotency_key, type, status, source_account_id,
			destination_account_id, amount, fee, currency, external_reference,
			provider_code, error_details, parent_transaction_id, confirmation_token,
			confirmation_expires_at, created_at, updated_at, completed_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18
		)`,
		t.ID, t.IdempotencyKey.String(), t.Type, t.Status, t.SourceAccountID,
		t.DestinationAccountID, t.Amount.Amount, t.Fee.Amount, t.Amount.Currency, refString(t.ExternalReference),
		t.ProviderCode, details, t.ParentTransactionID, t.ConfirmationToken,
		t.ConfirmationExpiresAt, t.CreatedAt, t.UpdatedAt, t.CompletedAt,
	)
	if err != nil {
		if IsDuplicateKey(err) {
			return fmt.Errorf("Create: %w", domain.ErrDuplicateKey)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	return r.getOne(ctx, "GetByID", `WHERE id = $1`, id)
}

func (r *TransactionRepository) GetByIdempotencyKey(ctx context.Context, key domain.IdempotencyKey) (*domain.Transaction, error) {
	return r.getOne(ctx, "GetByIdempotencyKey", `WHERE idempotency_key = $1`, key.String())
}

func (r *TransactionRepository) GetByExternalReference(ctx context.Context, ref domain.ExternalReference) (*domain.Transaction, error) {
	return r.getOne(ctx, "GetByExternalReference", `WHERE external_reference = $1`, ref.String())
}

func (r *TransactionRepository) getOne(ctx context.Context, op, where string, arg any) (*domain.Transaction, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions `+where, arg,
	)
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return t, nil
}

// GetByParentID returns the children of a transaction ordered by creation
// time ascending.
func (r *TransactionRepository) GetByParentID(ctx context.Context, parentID uuid.UUID) ([]domain.Transaction, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		WHERE parent_transaction_id = $1 ORDER BY created_at, id`, parentID,
	)
	if err != nil {
		return nil, fmt.Errorf("GetByParentID: %w", err)
	}
	defer rows.Close()

	return collectTransactions(rows, "GetByParentID")
}

// Update persists a status/metadata transition of an existing row. Identity,
// parties, amount, and created_at are never touched.
func (r *TransactionRepository) Update(ctx context.Context, t *domain.Transaction) error {
	details, err := marshalErrorDetails(t.ErrorDetails)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}

	res, err := r.q.ExecContext(ctx,
		`UPDATE transactions SET
			status = $1, external_reference = $2, provider_code = $3,
			error_details = $4, confirmation_token = $5, confirmation_expires_at = $6,
			completed_at = $7, updated_at = $8
		WHERE id = $9`,
		t.Status, refString(t.ExternalReference), t.ProviderCode,
		details, t.ConfirmationToken, t.ConfirmationExpiresAt,
		t.CompletedAt, t.UpdatedAt, t.ID,
	)
	if err != nil {
		if IsDuplicateKey(err) {
			return fmt.Errorf("Update: %w", domain.ErrDuplicateKey)
		}
		return fmt.Errorf("Update: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Update: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("Update: %w", domain.ErrNotFound)
	}
	return nil
}

// TransitionStatus performs the conditional state transition that closes the
// read-check-then-write race: the update only lands while the row still
// holds a status the target may be reached from. A false return means the
// transaction already transitioned and the caller should skip its effects.
func (r *TransactionRepository) TransitionStatus(ctx context.Context, id uuid.UUID, to domain.TransactionStatus, externalRef *domain.ExternalReference, details *domain.ErrorDetails, completedAt *time.Time) (bool, error) {
	allowed := domain.AllowedFrom(to)
	if len(allowed) == 0 {
		return false, fmt.Errorf("TransitionStatus: no entry path to %q", to)
	}
	from := make([]string, len(allowed))
	for i, s := range allowed {
		from[i] = string(s)
	}

	payload, err := marshalErrorDetails(details)
	if err != nil {
		return false, fmt.Errorf("TransitionStatus: %w", err)
	}

	res, err := r.q.ExecContext(ctx,
		`UPDATE transactions SET
			status = $1,
			external_reference = COALESCE($2, external_reference),
			error_details = COALESCE($3::jsonb, error_details),
			completed_at = COALESCE($4, completed_at),
			confirmation_token = CASE WHEN $4 IS NULL THEN confirmation_token END,
			confirmation_expires_at = CASE WHEN $4 IS NULL THEN confirmation_expires_at END,
			updated_at = now()
		WHERE id = $5 AND status = ANY($6)`,
		to, refString(externalRef), payload, completedAt, id, pq.Array(from),
	)
	if err != nil {
		return false, fmt.Errorf("TransitionStatus: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("TransitionStatus: rows affected: %w", err)
	}
	return rows > 0, nil
}

// List returns one cursor page of transactions matching the filter, newest
// or oldest first per page.Order, keyed on (created_at, id).
func (r *TransactionRepository) List(ctx context.Context, f TransactionFilter, page pagination.Page) (pagination.Result[domain.Transaction], error) {
	page = page.Normalize()

	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.AccountID != nil {
		p := arg(*f.AccountID)
		conds = append(conds, fmt.Sprintf("(source_account_id = %s OR destination_account_id = %s)", p, p))
	}
	if len(f.Types) > 0 {
		conds = append(conds, fmt.Sprintf("type = ANY(%s)", arg(pq.Array(enumStrings(f.Types)))))
	}
	if len(f.Statuses) > 0 {
		conds = append(conds, fmt.Sprintf("status = ANY(%s)", arg(pq.Array(enumStrings(f.Statuses)))))
	}
	if f.CreatedAfter != nil {
		conds = append(conds, fmt.Sprintf("created_at >= %s", arg(*f.CreatedAfter)))
	}
	if f.CreatedBefore != nil {
		conds = append(conds, fmt.Sprintf("created_at <= %s", arg(*f.CreatedBefore)))
	}

	if page.Cursor != "" {
		cursorID, cursorCreatedAt, err := pagination.DecodeCursor(page.Cursor)
		if err != nil {
			// A token that does not decode yields an empty page; stateless
			// cursors are not validated beyond this.
			return pagination.Result[domain.Transaction]{}, nil
		}
		cmp := ">"
		if page.Order == pagination.SortDesc {
			cmp = "<"
		}
		pCreated := arg(cursorCreatedAt)
		pID := arg(cursorID)
		conds = append(conds, fmt.Sprintf("(created_at, id) %s (%s, %s)", cmp, pCreated, pID))
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions`
	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	dir := "ASC"
	if page.Order == pagination.SortDesc {
		dir = "DESC"
	}
	query += fmt.Sprintf(" ORDER BY created_at %s, id %s LIMIT %s", dir, dir, arg(page.Limit+1))

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return pagination.Result[domain.Transaction]{}, fmt.Errorf("List: %w", err)
	}
	defer rows.Close()

	items, err := collectTransactions(rows, "List")
	if err != nil {
		return pagination.Result[domain.Transaction]{}, err
	}

	return buildPage(items, page, func(t domain.Transaction) (uuid.UUID, time.Time) {
		return t.ID, t.CreatedAt
	}), nil
}

// ListByAccount matches transactions where the account is either source or
// destination.
func (r *TransactionRepository) ListByAccount(ctx context.Context, accountID uuid.UUID, page pagination.Page) (pagination.Result[domain.Transaction], error) {
	return r.List(ctx, TransactionFilter{AccountID: &accountID}, page)
}

// buildPage applies the limit+1 probe: the extra row only proves another page
// exists and is discarded.
func buildPage[T any](items []T, page pagination.Page, key func(T) (uuid.UUID, time.Time)) pagination.Result[T] {
	res := pagination.Result[T]{}
	if len(items) > page.Limit {
		res.HasMore = true
		items = items[:page.Limit]
	}
	res.Items = items
	if len(items) > 0 {
		lastID, lastCreated := key(items[len(items)-1])
		res.NextCursor = pagination.EncodeCursor(lastID, lastCreated)
		if page.Cursor != "" {
			firstID, firstCreated := key(items[0])
			res.PrevCursor = pagination.EncodeCursor(firstID, firstCreated)
		}
	}
	return res
}

func enumStrings[T ~string](vals []T) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = string(v)
	}
	return out
}

func collectTransactions(rows *sql.Rows, op string) ([]domain.Transaction, error) {
	var items []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		items = append(items, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", op, err)
	}
	return items, nil
}

func scanTransaction(s scanner) (*domain.Transaction, error) {
	var (
		t           domain.Transaction
		source      uuid.NullUUID
		destination uuid.NullUUID
		parent      uuid.NullUUID
		key         string
		currency    string
		externalRef sql.NullString
		details     []byte
	)

	err := s.Scan(
		&t.ID, &key, &t.Type, &t.Status, &source,
		&destination, &t.Amount.Amount, &t.Fee.Amount, &currency, &externalRef,
		&t.ProviderCode, &details, &parent, &t.ConfirmationToken,
		&t.ConfirmationExpiresAt, &t.CreatedAt, &t.UpdatedAt, &t.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	t.IdempotencyKey = domain.IdempotencyKey(key)
	t.Amount.Currency = domain.Currency(currency)
	t.Fee.Currency = domain.Currency(currency)
	if source.Valid {
		t.SourceAccountID = &source.UUID
	}
	if destination.Valid {
		t.DestinationAccountID = &destination.UUID
	}
	if parent.Valid {
		t.ParentTransactionID = &parent.UUID
	}
	if externalRef.Valid {
		ref := domain.ExternalReference(externalRef.String)
		t.ExternalReference = &ref
	}
	if len(details) > 0 {
		var d domain.ErrorDetails
		if err := json.Unmarshal(details, &d); err != nil {
			return nil, fmt.Errorf("error_details: %w", err)
		}
		t.ErrorDetails = &d
	}

	return &t, nil
}

func marshalErrorDetails(d *domain.ErrorDetails) ([]byte, error) {
	if d == nil {
		return nil, nil
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("error_details: %w", err)
	}
	return raw, nil
}

func refString(r *domain.ExternalReference) *string {
	if r == nil {
		return nil
	}
	s := r.String()
	return &s
}
