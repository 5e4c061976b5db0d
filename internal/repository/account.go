package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/corepay/ledger-service/internal/domain"
)

const accountColumns = `id, currency, kind, balance, version, created_at`

type AccountRepository struct {
	q querier
}

func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id,
	)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrAccountNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return a, nil
}

// GetSettlement returns the per-currency settlement account used as the
// double-entry counterparty for provider money movement.
func (r *AccountRepository) GetSettlement(ctx context.Context, currency domain.Currency) (*domain.Account, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE kind = $1 AND currency = $2`,
		domain.AccountKindSettlement, currency,
	)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetSettlement: %s: %w", currency, domain.ErrAccountNotFound)
		}
		return nil, fmt.Errorf("GetSettlement: %w", err)
	}
	return a, nil
}

// GetForUpdate row-locks the account for the remainder of the enclosing
// transaction scope. Only meaningful on a Store handed out by WithinTx.
func (r *AccountRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id,
	)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrAccountNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", err)
	}
	return a, nil
}

func (r *AccountRepository) UpdateBalance(ctx context.Context, id uuid.UUID, newBalance, newVersion int64) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE accounts SET balance = $1, version = $2 WHERE id = $3 AND version = $4`,
		newBalance, newVersion, id, newVersion-1,
	)
	if err != nil {
		return fmt.Errorf("UpdateBalance: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateBalance: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("UpdateBalance: %w", domain.ErrVersionConflict)
	}
	return nil
}

func (r *AccountRepository) Create(ctx context.Context, account *domain.Account) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO accounts (id, currency, kind, balance, version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		account.ID, account.Currency, account.Kind, account.Balance, account.Version, account.CreatedAt,
	)
	if err != nil {
		if IsDuplicateKey(err) {
			return fmt.Errorf("Create: %w", domain.ErrDuplicateKey)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func scanAccount(s scanner) (*domain.Account, error) {
	var a domain.Account
	err := s.Scan(&a.ID, &a.Currency, &a.Kind, &a.Balance, &a.Version, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
