package provider

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testStripeSecret = "whsec_test_secret"

func stripeSign(secret string, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return fmt.Sprintf("t=%s,v1=%s", timestamp, hex.EncodeToString(mac.Sum(nil)))
}

func TestStripeVerifySignature(t *testing.T) {
	g := NewStripeGateway(testStripeSecret)
	body := []byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`)
	ts := fmt.Sprintf("%d", time.Now().Unix())

	tests := []struct {
		name      string
		body      []byte
		signature string
		want      bool
	}{
		{
			name:      "valid signature",
			body:      body,
			signature: stripeSign(testStripeSecret, ts, body),
			want:      true,
		},
		{
			name:      "tampered body",
			body:      []byte(`{"id":"evt_1","type":"payment_intent.succeeded","amount":1}`),
			signature: stripeSign(testStripeSecret, ts, body),
			want:      false,
		},
		{
			name:      "wrong secret",
			body:      body,
			signature: stripeSign("whsec_other", ts, body),
			want:      false,
		},
		{
			name:      "tampered timestamp",
			body:      body,
			signature: "t=1700000000" + stripeSign(testStripeSecret, ts, body)[len("t="+ts):],
			want:      false,
		},
		{
			name:      "missing v1 component",
			body:      body,
			signature: "t=" + ts,
			want:      false,
		},
		{
			name:      "garbage header",
			body:      body,
			signature: "deadbeef",
			want:      false,
		},
		{
			name:      "empty header",
			body:      body,
			signature: "",
			want:      false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, g.VerifySignature(tc.body, tc.signature))
		})
	}
}

func TestStripeParseEvent(t *testing.T) {
	g := NewStripeGateway(testStripeSecret)

	t.Run("succeeded event", func(t *testing.T) {
		body := []byte(`{
			"id": "evt_123",
			"type": "payment_intent.succeeded",
			"data": {"object": {
				"id": "pi_456",
				"amount": 1000,
				"currency": "usd",
				"metadata": {"transaction_id": "4b4b9403-5cde-4e0a-9a1b-08a3a7a0a001"}
			}}
		}`)

		ev, err := g.ParseEvent(body)
		require.NoError(t, err)
		assert.Equal(t, EventPaymentSucceeded, ev.Type)
		assert.Equal(t, "evt_123", ev.DeliveryID)
		assert.Equal(t, "pi_456", ev.Data.ExternalReference)
		assert.Equal(t, "4b4b9403-5cde-4e0a-9a1b-08a3a7a0a001", ev.Data.TransactionID)
		assert.Equal(t, int64(1000), ev.Data.AmountMinor)
		assert.Equal(t, "USD", ev.Data.Currency)
	})

	t.Run("failed event carries error details", func(t *testing.T) {
		body := []byte(`{
			"id": "evt_124",
			"type": "payment_intent.payment_failed",
			"data": {"object": {
				"id": "pi_457",
				"last_payment_error": {"code": "card_declined", "message": "insufficient funds"}
			}}
		}`)

		ev, err := g.ParseEvent(body)
		require.NoError(t, err)
		assert.Equal(t, EventPaymentFailed, ev.Type)
		assert.Equal(t, "card_declined", ev.Data.ErrorCode)
		assert.Equal(t, "insufficient funds", ev.Data.ErrorMessage)
	})

	t.Run("unknown type preserved as raw", func(t *testing.T) {
		body := []byte(`{"id":"evt_125","type":"invoice.finalized","data":{"object":{}}}`)

		ev, err := g.ParseEvent(body)
		require.NoError(t, err)
		assert.Equal(t, EventUnknown, ev.Type)
		assert.Equal(t, "invoice.finalized", ev.RawType)
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := g.ParseEvent([]byte("not-json"))
		assert.Error(t, err)
	})
}

func TestPartnerBankVerifySignature(t *testing.T) {
	g := NewPartnerBankGateway("partnerbank", "tok_secret")

	assert.True(t, g.VerifySignature(nil, "tok_secret"))
	assert.False(t, g.VerifySignature(nil, "tok_wrong"))
	assert.False(t, g.VerifySignature(nil, ""))
}

func TestPartnerBankParseEvent(t *testing.T) {
	g := NewPartnerBankGateway("partnerbank", "tok_secret")

	body := []byte(`{
		"event": "payout.failed",
		"delivery_id": "dlv_789",
		"data": {
			"transaction_id": "9d55bc0e-17a8-47a4-9d9f-1f2f3a4b5c6d",
			"reference": "po_42",
			"amount": 2500,
			"currency": "EUR",
			"error_code": "account_closed",
			"error_message": "beneficiary account closed"
		}
	}`)

	ev, err := g.ParseEvent(body)
	require.NoError(t, err)
	assert.Equal(t, EventPayoutFailed, ev.Type)
	assert.Equal(t, "dlv_789", ev.DeliveryID)
	assert.Equal(t, "po_42", ev.Data.ExternalReference)
	assert.Equal(t, "account_closed", ev.Data.ErrorCode)
	assert.Equal(t, int64(2500), ev.Data.AmountMinor)
}

func TestRegistryLookup(t *testing.T) {
	stripe := NewStripeGateway(testStripeSecret)
	partner := NewPartnerBankGateway("partnerbank", "tok")
	reg := NewRegistry(stripe, partner)

	g, ok := reg.Lookup("stripe")
	require.True(t, ok)
	assert.Equal(t, "Stripe-Signature", g.SignatureHeader())

	g, ok = reg.Lookup("partnerbank")
	require.True(t, ok)
	assert.Equal(t, "X-Callback-Token", g.SignatureHeader())

	_, ok = reg.Lookup("unknown-psp")
	assert.False(t, ok)
}
