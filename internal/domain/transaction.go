package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "deposit"
	TransactionTypeWithdrawal TransactionType = "withdrawal"
	TransactionTypeTransfer   TransactionType = "transfer"
	TransactionTypeRefund     TransactionType = "refund"
)

type TransactionStatus string

const (
	TransactionStatusPending    TransactionStatus = "pending"
	TransactionStatusProcessing TransactionStatus = "processing"
	TransactionStatusCompleted  TransactionStatus = "completed"
	TransactionStatusFailed     TransactionStatus = "failed"
	TransactionStatusCancelled  TransactionStatus = "cancelled"
)

// ErrorDetails records the provider-reported cause of a failed transaction.
type ErrorDetails struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Transaction struct {
	ID                    uuid.UUID
	IdempotencyKey        IdempotencyKey
	Type                  TransactionType
	Status                TransactionStatus
	SourceAccountID       *uuid.UUID
	DestinationAccountID  *uuid.UUID
	Amount                Money
	Fee                   Money
	ExternalReference     *ExternalReference
	ProviderCode          *string
	ErrorDetails          *ErrorDetails
	ParentTransactionID   *uuid.UUID
	ConfirmationToken     *string
	ConfirmationExpiresAt *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
	CompletedAt           *time.Time
}

// NewTransaction builds a pending transaction and enforces the creation
// invariants: positive amount, 0 <= fee <= amount in the same currency, and
// party accounts populated according to the transaction type.
func NewTransaction(t TransactionType, key IdempotencyKey, amount, fee Money, source, destination *uuid.UUID, now time.Time) (*Transaction, error) {
	if amount.Amount <= 0 {
		return nil, fmt.Errorf("NewTransaction: %w", ErrInvalidAmount)
	}
	if fee.Currency != amount.Currency {
		return nil, fmt.Errorf("NewTransaction: fee: %w", ErrCurrencyMismatch)
	}
	if fee.Amount < 0 || fee.Amount > amount.Amount {
		return nil, fmt.Errorf("NewTransaction: %w", ErrFeeExceedsAmount)
	}
	if err := checkParties(t, source, destination); err != nil {
		return nil, fmt.Errorf("NewTransaction: %w", err)
	}

	return &Transaction{
		ID:                   uuid.New(),
		IdempotencyKey:       key,
		Type:                 t,
		Status:               TransactionStatusPending,
		SourceAccountID:      source,
		DestinationAccountID: destination,
		Amount:               amount,
		Fee:                  fee,
		CreatedAt:            now,
		UpdatedAt:            now,
	}, nil
}

func checkParties(t TransactionType, source, destination *uuid.UUID) error {
	switch t {
	case TransactionTypeDeposit:
		if destination == nil {
			return fmt.Errorf("deposit requires destination: %w", ErrMissingParty)
		}
	case TransactionTypeWithdrawal, TransactionTypeRefund:
		if source == nil {
			return fmt.Errorf("%s requires source: %w", t, ErrMissingParty)
		}
	case TransactionTypeTransfer:
		if source == nil || destination == nil {
			return fmt.Errorf("transfer requires both parties: %w", ErrMissingParty)
		}
	default:
		return fmt.Errorf("unknown transaction type %q", t)
	}
	return nil
}

func (s TransactionStatus) Terminal() bool {
	switch s {
	case TransactionStatusCompleted, TransactionStatusFailed, TransactionStatusCancelled:
		return true
	}
	return false
}

func (t *Transaction) IsTerminal() bool { return t.Status.Terminal() }

// AllowedFrom lists the statuses a transaction may hold immediately before
// transitioning to the given status. Used both by TransitionTo and by the
// store's conditional status update.
func AllowedFrom(to TransactionStatus) []TransactionStatus {
	switch to {
	case TransactionStatusProcessing:
		return []TransactionStatus{TransactionStatusPending}
	case TransactionStatusCompleted, TransactionStatusFailed:
		return []TransactionStatus{TransactionStatusPending, TransactionStatusProcessing}
	case TransactionStatusCancelled:
		return []TransactionStatus{TransactionStatusPending}
	}
	return nil
}

// TransitionTo applies the state machine. Terminal states absorb every
// further transition attempt with ErrInvalidTransactionState; entering a
// terminal state stamps CompletedAt once and clears the confirmation fields.
func (t *Transaction) TransitionTo(to TransactionStatus, now time.Time) error {
	for _, from := range AllowedFrom(to) {
		if t.Status == from {
			t.Status = to
			t.UpdatedAt = now
			if to.Terminal() {
				ts := now
				t.CompletedAt = &ts
				t.ConfirmationToken = nil
				t.ConfirmationExpiresAt = nil
			}
			return nil
		}
	}
	return fmt.Errorf("TransitionTo: %s -> %s: %w", t.Status, to, ErrInvalidTransactionState)
}

func (t *Transaction) MarkCompleted(now time.Time) error {
	return t.TransitionTo(TransactionStatusCompleted, now)
}

func (t *Transaction) MarkFailed(details ErrorDetails, now time.Time) error {
	if err := t.TransitionTo(TransactionStatusFailed, now); err != nil {
		return err
	}
	t.ErrorDetails = &details
	return nil
}

func (t *Transaction) Cancel(now time.Time) error {
	return t.TransitionTo(TransactionStatusCancelled, now)
}

// Confirm validates the two-phase confirmation token and moves the
// transaction into processing.
func (t *Transaction) Confirm(token string, now time.Time) error {
	if t.ConfirmationToken == nil || *t.ConfirmationToken != token {
		return fmt.Errorf("Confirm: %w", ErrConfirmationMismatch)
	}
	if t.ConfirmationExpiresAt != nil && now.After(*t.ConfirmationExpiresAt) {
		return fmt.Errorf("Confirm: %w", ErrConfirmationExpired)
	}
	if err := t.TransitionTo(TransactionStatusProcessing, now); err != nil {
		return err
	}
	t.ConfirmationToken = nil
	t.ConfirmationExpiresAt = nil
	return nil
}

// NetAmount is the customer-visible settlement value: amount minus fee.
func (t *Transaction) NetAmount() int64 {
	return t.Amount.Amount - t.Fee.Amount
}
