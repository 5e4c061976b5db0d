package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type Currency string

const (
	CurrencyUSD    Currency = "USD"
	CurrencyEUR    Currency = "EUR"
	CurrencyGBP    Currency = "GBP"
	CurrencyCredit Currency = "CREDIT"
)

var currencyExponents = map[Currency]int32{
	CurrencyUSD:    2,
	CurrencyEUR:    2,
	CurrencyGBP:    2,
	CurrencyCredit: 0,
}

func (c Currency) Valid() bool {
	_, ok := currencyExponents[c]
	return ok
}

// Money is an amount in minor units of a single currency. The zero value is
// not valid; construct through NewMoney or NewFee.
type Money struct {
	Amount   int64
	Currency Currency
}

// NewMoney builds a strictly positive amount.
func NewMoney(amount int64, currency Currency) (Money, error) {
	if !currency.Valid() {
		return Money{}, fmt.Errorf("NewMoney: %q: %w", currency, ErrInvalidCurrency)
	}
	if amount <= 0 {
		return Money{}, fmt.Errorf("NewMoney: %d: %w", amount, ErrInvalidAmount)
	}
	return Money{Amount: amount, Currency: currency}, nil
}

// NewFee builds a non-negative amount in the same currency as the charge it
// applies to.
func NewFee(amount int64, currency Currency) (Money, error) {
	if !currency.Valid() {
		return Money{}, fmt.Errorf("NewFee: %q: %w", currency, ErrInvalidCurrency)
	}
	if amount < 0 {
		return Money{}, fmt.Errorf("NewFee: %d: %w", amount, ErrInvalidAmount)
	}
	return Money{Amount: amount, Currency: currency}, nil
}

func (m Money) Equal(other Money) bool {
	return m.Amount == other.Amount && m.Currency == other.Currency
}

// Sub returns m minus other. Both operands must share a currency.
func (m Money) Sub(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("Sub: %s vs %s: %w", m.Currency, other.Currency, ErrCurrencyMismatch)
	}
	return Money{Amount: m.Amount - other.Amount, Currency: m.Currency}, nil
}

// Decimal renders the amount in major units for display and reporting.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Amount, -currencyExponents[m.Currency])
}

func (m Money) String() string {
	return m.Decimal().String() + " " + string(m.Currency)
}
