package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/corepay/ledger-service/internal/domain"
)

// Settlement account ids seeded by the initial migration.
var (
	SettlementUSDID    = uuid.MustParse("00000000-0000-0000-0001-000000000001")
	SettlementEURID    = uuid.MustParse("00000000-0000-0000-0001-000000000002")
	SettlementGBPID    = uuid.MustParse("00000000-0000-0000-0001-000000000003")
	SettlementCreditID = uuid.MustParse("00000000-0000-0000-0001-000000000004")
)

func SeedCustomerAccount(t *testing.T, db *sql.DB, currency domain.Currency, balance int64) *domain.Account {
	t.Helper()

	a := &domain.Account{
		ID:        uuid.New(),
		Currency:  currency,
		Kind:      domain.AccountKindCustomer,
		Balance:   balance,
		Version:   1,
		CreatedAt: time.Now().UTC(),
	}
	_, err := db.Exec(
		`INSERT INTO accounts (id, currency, kind, balance, version, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.Currency, a.Kind, a.Balance, a.Version, a.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seed customer account: %v", err)
	}
	return a
}

func GetAccountBalance(t *testing.T, db *sql.DB, id uuid.UUID) int64 {
	t.Helper()
	var balance int64
	if err := db.QueryRow(`SELECT balance FROM accounts WHERE id = $1`, id).Scan(&balance); err != nil {
		t.Fatalf("get account balance: %v", err)
	}
	return balance
}

func CountLedgerEntries(t *testing.T, db *sql.DB, transactionID uuid.UUID) int {
	t.Helper()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM ledger_entries WHERE transaction_id = $1`, transactionID).Scan(&n); err != nil {
		t.Fatalf("count ledger entries: %v", err)
	}
	return n
}

func GetTransactionStatus(t *testing.T, db *sql.DB, id uuid.UUID) domain.TransactionStatus {
	t.Helper()
	var status domain.TransactionStatus
	if err := db.QueryRow(`SELECT status FROM transactions WHERE id = $1`, id).Scan(&status); err != nil {
		t.Fatalf("get transaction status: %v", err)
	}
	return status
}
