package provider

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// StripeGateway verifies Stripe-style signatures: the Stripe-Signature header
// carries `t=<unix>,v1=<hex>` and the HMAC-SHA256 is computed over
// `<t>.<raw body>`. Verification always runs against the exact bytes
// received; re-serializing the body would silently break it.
type StripeGateway struct {
	code   string
	secret string
}

func NewStripeGateway(secret string) *StripeGateway {
	return &StripeGateway{code: "stripe", secret: secret}
}

func (g *StripeGateway) Code() string            { return g.code }
func (g *StripeGateway) SignatureHeader() string { return "Stripe-Signature" }

func (g *StripeGateway) VerifySignature(body []byte, signature string) bool {
	var timestamp, v1 string
	for _, part := range strings.Split(signature, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			timestamp = v
		case "v1":
			v1 = v
		}
	}
	if timestamp == "" || v1 == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(g.secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(v1))
}

type stripeEnvelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID       string            `json:"id"`
			Amount   int64             `json:"amount"`
			Currency string            `json:"currency"`
			Metadata map[string]string `json:"metadata"`
			LastError *struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"last_payment_error"`
			FailureCode    string `json:"failure_code"`
			FailureMessage string `json:"failure_message"`
		} `json:"object"`
	} `json:"data"`
}

var stripeEventTypes = map[string]EventType{
	"payment_intent.succeeded":      EventPaymentSucceeded,
	"payment_intent.payment_failed": EventPaymentFailed,
	"payout.paid":                   EventPayoutSucceeded,
	"payout.failed":                 EventPayoutFailed,
	"refund.succeeded":              EventRefundSucceeded,
	"refund.failed":                 EventRefundFailed,
	"payment_method.attached":       EventPaymentMethodVerified,
}

func (g *StripeGateway) ParseEvent(body []byte) (*Event, error) {
	var env stripeEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("stripe: parse event: %w", err)
	}

	eventType, ok := stripeEventTypes[env.Type]
	if !ok {
		eventType = EventUnknown
	}

	obj := env.Data.Object
	data := EventData{
		TransactionID:     obj.Metadata["transaction_id"],
		ExternalReference: obj.ID,
		AmountMinor:       obj.Amount,
		Currency:          strings.ToUpper(obj.Currency),
		ErrorCode:         obj.FailureCode,
		ErrorMessage:      obj.FailureMessage,
	}
	if obj.LastError != nil {
		data.ErrorCode = obj.LastError.Code
		data.ErrorMessage = obj.LastError.Message
	}

	return &Event{
		Type:       eventType,
		RawType:    env.Type,
		DeliveryID: env.ID,
		Data:       data,
	}, nil
}
