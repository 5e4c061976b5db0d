package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type EntryType string

const (
	EntryTypeDebit  EntryType = "debit"
	EntryTypeCredit EntryType = "credit"
)

// LedgerEntry is an immutable single-sided posting against one account for
// one transaction. Entries are always created in matched debit/credit pairs
// whose amounts balance.
type LedgerEntry struct {
	ID            uuid.UUID
	TransactionID uuid.UUID
	AccountID     uuid.UUID
	EntryType     EntryType
	Amount        int64
	Currency      Currency
	BalanceBefore int64
	BalanceAfter  int64
	CreatedAt     time.Time
}

func NewLedgerEntry(transactionID, accountID uuid.UUID, entryType EntryType, amount int64, currency Currency, balanceBefore int64, now time.Time) (*LedgerEntry, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("NewLedgerEntry: %w", ErrInvalidAmount)
	}
	after := balanceBefore
	switch entryType {
	case EntryTypeCredit:
		after += amount
	case EntryTypeDebit:
		after -= amount
	default:
		return nil, fmt.Errorf("NewLedgerEntry: unknown entry type %q", entryType)
	}
	return &LedgerEntry{
		ID:            uuid.New(),
		TransactionID: transactionID,
		AccountID:     accountID,
		EntryType:     entryType,
		Amount:        amount,
		Currency:      currency,
		BalanceBefore: balanceBefore,
		BalanceAfter:  after,
		CreatedAt:     now,
	}, nil
}

// CheckConservation verifies that the credit and debit sums of a
// transaction's entry set are equal.
func CheckConservation(entries []LedgerEntry) error {
	var credits, debits int64
	for _, e := range entries {
		switch e.EntryType {
		case EntryTypeCredit:
			credits += e.Amount
		case EntryTypeDebit:
			debits += e.Amount
		}
	}
	if credits != debits {
		return fmt.Errorf("CheckConservation: credits %d != debits %d: %w", credits, debits, ErrUnbalancedEntries)
	}
	return nil
}
