package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMoney(t *testing.T) {
	tests := []struct {
		name     string
		amount   int64
		currency Currency
		wantErr  error
	}{
		{name: "valid", amount: 1000, currency: CurrencyUSD},
		{name: "zero rejected", amount: 0, currency: CurrencyUSD, wantErr: ErrInvalidAmount},
		{name: "negative rejected", amount: -1, currency: CurrencyEUR, wantErr: ErrInvalidAmount},
		{name: "unknown currency", amount: 100, currency: "XAU", wantErr: ErrInvalidCurrency},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m, err := NewMoney(tc.amount, tc.currency)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.amount, m.Amount)
			assert.Equal(t, tc.currency, m.Currency)
		})
	}
}

func TestNewFee_AllowsZero(t *testing.T) {
	m, err := NewFee(0, CurrencyGBP)
	require.NoError(t, err)
	assert.Equal(t, int64(0), m.Amount)

	_, err = NewFee(-1, CurrencyGBP)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestMoneySub(t *testing.T) {
	a := Money{Amount: 1000, Currency: CurrencyUSD}
	b := Money{Amount: 50, Currency: CurrencyUSD}

	got, err := a.Sub(b)
	require.NoError(t, err)
	assert.Equal(t, Money{Amount: 950, Currency: CurrencyUSD}, got)

	_, err = a.Sub(Money{Amount: 50, Currency: CurrencyEUR})
	assert.ErrorIs(t, err, ErrCurrencyMismatch)
}

func TestMoneyDecimal(t *testing.T) {
	assert.Equal(t, "9.51 USD", Money{Amount: 951, Currency: CurrencyUSD}.String())
	assert.Equal(t, "950 CREDIT", Money{Amount: 950, Currency: CurrencyCredit}.String())
}

func TestNewIdempotencyKey(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "valid", input: "order-2026-08-31-0001"},
		{name: "empty", input: "", wantErr: true},
		{name: "too long", input: strings.Repeat("a", 129), wantErr: true},
		{name: "max length ok", input: strings.Repeat("a", 128)},
		{name: "whitespace", input: "order 1", wantErr: true},
		{name: "control character", input: "order\x001", wantErr: true},
		{name: "non-ascii", input: "ordér-1", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			key, err := NewIdempotencyKey(tc.input)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidIdempotencyKey)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.input, key.String())
		})
	}
}

func TestNewExternalReference(t *testing.T) {
	ref, err := NewExternalReference("pi_3OaBcDeFgHiJkLmN")
	require.NoError(t, err)
	assert.Equal(t, "pi_3OaBcDeFgHiJkLmN", ref.String())

	_, err = NewExternalReference("")
	assert.ErrorIs(t, err, ErrInvalidExternalReference)
}
