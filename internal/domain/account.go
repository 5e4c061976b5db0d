package domain

import (
	"time"

	"github.com/google/uuid"
)

type AccountKind string

const (
	// AccountKindCustomer holds a customer's balance.
	AccountKindCustomer AccountKind = "customer"
	// AccountKindSettlement is the per-currency counterparty for money
	// entering or leaving through a payment provider.
	AccountKindSettlement AccountKind = "settlement"
)

type Account struct {
	ID        uuid.UUID
	Currency  Currency
	Kind      AccountKind
	Balance   int64
	Version   int64
	CreatedAt time.Time
}
