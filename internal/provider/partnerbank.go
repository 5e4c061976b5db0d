package provider

import (
	"crypto/hmac"
	"encoding/json"
	"fmt"
)

// PartnerBankGateway models the simpler callback-token scheme some regional
// rails use: a static shared secret in the X-Callback-Token header, compared
// in constant time. Its payloads arrive close to the normalized shape.
type PartnerBankGateway struct {
	code  string
	token string
}

func NewPartnerBankGateway(code, token string) *PartnerBankGateway {
	return &PartnerBankGateway{code: code, token: token}
}

func (g *PartnerBankGateway) Code() string            { return g.code }
func (g *PartnerBankGateway) SignatureHeader() string { return "X-Callback-Token" }

func (g *PartnerBankGateway) VerifySignature(_ []byte, signature string) bool {
	if signature == "" {
		return false
	}
	return hmac.Equal([]byte(g.token), []byte(signature))
}

type partnerBankEnvelope struct {
	Event      string `json:"event"`
	DeliveryID string `json:"delivery_id"`
	Data       struct {
		TransactionID string `json:"transaction_id"`
		Reference     string `json:"reference"`
		Amount        int64  `json:"amount"`
		Currency      string `json:"currency"`
		ErrorCode     string `json:"error_code"`
		ErrorMessage  string `json:"error_message"`
	} `json:"data"`
}

var partnerBankEventTypes = map[string]EventType{
	"payment.succeeded":       EventPaymentSucceeded,
	"payment.failed":          EventPaymentFailed,
	"payout.succeeded":        EventPayoutSucceeded,
	"payout.failed":           EventPayoutFailed,
	"refund.succeeded":        EventRefundSucceeded,
	"refund.failed":           EventRefundFailed,
	"payment_method.verified": EventPaymentMethodVerified,
}

func (g *PartnerBankGateway) ParseEvent(body []byte) (*Event, error) {
	var env partnerBankEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%s: parse event: %w", g.code, err)
	}

	eventType, ok := partnerBankEventTypes[env.Event]
	if !ok {
		eventType = EventUnknown
	}

	return &Event{
		Type:       eventType,
		RawType:    env.Event,
		DeliveryID: env.DeliveryID,
		Data: EventData{
			TransactionID:     env.Data.TransactionID,
			ExternalReference: env.Data.Reference,
			AmountMinor:       env.Data.Amount,
			Currency:          env.Data.Currency,
			ErrorCode:         env.Data.ErrorCode,
			ErrorMessage:      env.Data.ErrorMessage,
		},
	}, nil
}
