package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/corepay/ledger-service/internal/logging"
	"github.com/corepay/ledger-service/internal/metrics"
	"github.com/corepay/ledger-service/internal/provider"
)

type eventProcessor interface {
	Process(ctx context.Context, providerCode string, ev *provider.Event) error
}

// WebhookHandler is the inbound edge of the reconciliation pipeline. It
// rejects only unroutable providers (400) and bad signatures (401); once a
// delivery is authenticated it is always acknowledged with a 200, even when
// processing fails internally. Returning an error status there would make
// the provider retry-storm an endpoint that cannot yet absorb the backlog;
// failures are logged for out-of-band reconciliation instead.
type WebhookHandler struct {
	registry  *provider.Registry
	processor eventProcessor
}

func NewWebhookHandler(registry *provider.Registry, processor eventProcessor) *WebhookHandler {
	return &WebhookHandler{registry: registry, processor: processor}
}

type webhookAck struct {
	Received   bool   `json:"received"`
	DeliveryID string `json:"deliveryId,omitempty"`
	Processed  *bool  `json:"processed,omitempty"`
	Error      string `json:"error,omitempty"`
}

func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	providerCode := r.PathValue("provider")
	gateway, ok := h.registry.Lookup(providerCode)
	if !ok {
		log.Warn("webhook for unknown provider rejected", "provider", providerCode)
		metrics.WebhookEvents.WithLabelValues(providerCode, metrics.OutcomeUnroutable).Inc()
		RespondAppError(w, ErrUnknownProvider, nil)
		return
	}

	// Signature verification must run over the exact bytes received; any
	// re-serialization breaks it.
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		log.Error("failed to read webhook body", "provider", providerCode, "error", err)
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	signature := r.Header.Get(gateway.SignatureHeader())
	if signature == "" {
		log.Warn("webhook missing signature header", "provider", providerCode, "header", gateway.SignatureHeader())
		metrics.WebhookEvents.WithLabelValues(providerCode, metrics.OutcomeRejected).Inc()
		RespondAppError(w, ErrMissingSignature, nil)
		return
	}
	if !gateway.VerifySignature(body, signature) {
		log.Warn("webhook signature verification failed", "provider", providerCode)
		metrics.WebhookEvents.WithLabelValues(providerCode, metrics.OutcomeRejected).Inc()
		RespondAppError(w, ErrInvalidSignature, nil)
		return
	}

	ev, err := gateway.ParseEvent(body)
	if err != nil {
		// Authenticated but unparseable: acknowledged so the provider stops
		// redelivering a payload that will never parse.
		log.Error("failed to parse webhook payload", "provider", providerCode, "error", err)
		metrics.WebhookEvents.WithLabelValues(providerCode, metrics.OutcomeFailed).Inc()
		processed := false
		RespondJSON(w, http.StatusOK, webhookAck{Received: true, Processed: &processed, Error: "unparseable payload"})
		return
	}

	if err := h.processor.Process(r.Context(), providerCode, ev); err != nil {
		log.Error("webhook processing failed",
			"provider", providerCode,
			"delivery_id", ev.DeliveryID,
			"event_type", ev.Type,
			"error", err,
		)
		metrics.WebhookEvents.WithLabelValues(providerCode, metrics.OutcomeFailed).Inc()
		processed := false
		RespondJSON(w, http.StatusOK, webhookAck{
			Received:   true,
			DeliveryID: ev.DeliveryID,
			Processed:  &processed,
			Error:      "internal processing failure",
		})
		return
	}

	metrics.WebhookEvents.WithLabelValues(providerCode, metrics.OutcomeProcessed).Inc()
	RespondJSON(w, http.StatusOK, webhookAck{Received: true, DeliveryID: ev.DeliveryID})
}
