// Package provider normalizes payment-provider webhook callbacks. Each
// provider implements Gateway; the Registry resolves one by its route code.
package provider

type EventType string

const (
	EventPaymentSucceeded       EventType = "payment.succeeded"
	EventPaymentFailed          EventType = "payment.failed"
	EventPayoutSucceeded        EventType = "payout.succeeded"
	EventPayoutFailed           EventType = "payout.failed"
	EventRefundSucceeded        EventType = "refund.succeeded"
	EventRefundFailed           EventType = "refund.failed"
	EventPaymentMethodVerified  EventType = "payment_method.verified"
	// EventUnknown covers types this service does not recognize. Providers
	// add event types over time; unknown ones are acknowledged, never
	// treated as errors.
	EventUnknown EventType = "unknown"
)

// EventData is the provider-independent payload extracted from a callback.
type EventData struct {
	// TransactionID is the correlation id embedded in event metadata at
	// initiation time. May be absent when the provider drops metadata.
	TransactionID string
	// ExternalReference is the provider's own id for its side of the
	// transaction, used as the fallback correlation key.
	ExternalReference string
	ErrorCode         string
	ErrorMessage      string
	AmountMinor       int64
	Currency          string
}

type Event struct {
	Type EventType
	// RawType preserves the provider's wire-level type string for logging
	// unknown events.
	RawType    string
	DeliveryID string
	Data       EventData
}

// Gateway isolates one provider's signature scheme and payload quirks.
type Gateway interface {
	Code() string
	SignatureHeader() string
	VerifySignature(body []byte, signature string) bool
	ParseEvent(body []byte) (*Event, error)
}

type Registry struct {
	gateways map[string]Gateway
}

func NewRegistry(gateways ...Gateway) *Registry {
	m := make(map[string]Gateway, len(gateways))
	for _, g := range gateways {
		m[g.Code()] = g
	}
	return &Registry{gateways: m}
}

func (r *Registry) Lookup(code string) (Gateway, bool) {
	g, ok := r.gateways[code]
	return g, ok
}
