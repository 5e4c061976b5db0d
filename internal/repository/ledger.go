package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/corepay/ledger-service/internal/domain"
	"github.com/corepay/ledger-service/internal/pagination"
)

const ledgerColumns = `id, transaction_id, account_id, entry_type, amount,
	currency, balance_before, balance_after, created_at`

type LedgerRepository struct {
	q querier
}

// CreateBatch inserts the entries in a single multi-row statement. Entries
// are write-once; no update or delete path exists.
func (r *LedgerRepository) CreateBatch(ctx context.Context, entries []domain.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}

	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString(`INSERT INTO ledger_entries (
		id, transaction_id, account_id, entry_type, amount,
		currency, balance_before, balance_after, created_at
	) VALUES `)
	for i, e := range entries {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 9
		sb.WriteString(fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9))
		args = append(args,
			e.ID, e.TransactionID, e.AccountID, e.EntryType, e.Amount,
			e.Currency, e.BalanceBefore, e.BalanceAfter, e.CreatedAt,
		)
	}

	if _, err := r.q.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("CreateBatch: %w", err)
	}
	return nil
}

func (r *LedgerRepository) GetByTransactionID(ctx context.Context, transactionID uuid.UUID) ([]domain.LedgerEntry, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+ledgerColumns+` FROM ledger_entries
		WHERE transaction_id = $1 ORDER BY created_at, id`, transactionID,
	)
	if err != nil {
		return nil, fmt.Errorf("GetByTransactionID: %w", err)
	}
	defer rows.Close()

	return collectLedgerEntries(rows, "GetByTransactionID")
}

func (r *LedgerRepository) GetByAccountID(ctx context.Context, accountID uuid.UUID, page pagination.Page) (pagination.Result[domain.LedgerEntry], error) {
	page = page.Normalize()

	args := []any{accountID}
	cond := ""
	cmp, dir := ">", "ASC"
	if page.Order == pagination.SortDesc {
		cmp, dir = "<", "DESC"
	}
	if page.Cursor != "" {
		cursorID, cursorCreatedAt, err := pagination.DecodeCursor(page.Cursor)
		if err != nil {
			return pagination.Result[domain.LedgerEntry]{}, nil
		}
		args = append(args, cursorCreatedAt, cursorID)
		cond = fmt.Sprintf(" AND (created_at, id) %s ($2, $3)", cmp)
	}
	args = append(args, page.Limit+1)

	query := fmt.Sprintf(
		`SELECT %s FROM ledger_entries WHERE account_id = $1%s
		ORDER BY created_at %s, id %s LIMIT $%d`,
		ledgerColumns, cond, dir, dir, len(args),
	)

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return pagination.Result[domain.LedgerEntry]{}, fmt.Errorf("GetByAccountID: %w", err)
	}
	defer rows.Close()

	items, err := collectLedgerEntries(rows, "GetByAccountID")
	if err != nil {
		return pagination.Result[domain.LedgerEntry]{}, err
	}

	return buildPage(items, page, func(e domain.LedgerEntry) (uuid.UUID, time.Time) {
		return e.ID, e.CreatedAt
	}), nil
}

func collectLedgerEntries(rows *sql.Rows, op string) ([]domain.LedgerEntry, error) {
	var entries []domain.LedgerEntry
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", op, err)
	}
	return entries, nil
}

func scanLedgerEntry(s scanner) (*domain.LedgerEntry, error) {
	var e domain.LedgerEntry
	err := s.Scan(
		&e.ID, &e.TransactionID, &e.AccountID, &e.EntryType, &e.Amount,
		&e.Currency, &e.BalanceBefore, &e.BalanceAfter, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
