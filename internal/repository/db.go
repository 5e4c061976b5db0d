package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

type scanner interface {
	Scan(dest ...any) error
}

// querier is the seam that lets every repository run against either the pool
// or a transaction scope.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store bundles the repositories over one backing pool. WithinTx hands the
// callback a scoped Store whose repositories are bound to a single database
// transaction, so multi-row writes commit or roll back as a unit.
type Store struct {
	db           *sql.DB
	Transactions *TransactionRepository
	Ledger       *LedgerRepository
	Accounts     *AccountRepository
}

func NewStore(db *sql.DB) *Store {
	return newStore(db, db)
}

func newStore(db *sql.DB, q querier) *Store {
	return &Store{
		db:           db,
		Transactions: &TransactionRepository{q: q},
		Ledger:       &LedgerRepository{q: q},
		Accounts:     &AccountRepository{q: q},
	}
}

func (s *Store) WithinTx(ctx context.Context, fn func(scope *Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("WithinTx: begin: %w", err)
	}
	defer tx.Rollback()

	if err := fn(newStore(s.db, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("WithinTx: commit: %w", err)
	}
	return nil
}

// IsDuplicateKey reports whether err is a Postgres unique violation.
func IsDuplicateKey(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
