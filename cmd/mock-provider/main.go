// Command mock-provider replays signed provider webhooks against a running
// API instance. It is a development tool: it builds a plausible event
// payload, signs it the way the real provider would, and POSTs it so the
// full verification and reconciliation path gets exercised locally.
package main

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/corepay/ledger-service/internal/logging"
)

func main() {
	var (
		baseURL       = flag.String("url", "http://localhost:8080", "base URL of the API")
		providerCode  = flag.String("provider", "stripe", "provider path segment (stripe or partnerbank)")
		secret        = flag.String("secret", "whsec_test", "stripe webhook secret / partner callback token")
		eventType     = flag.String("event", "payment_intent.succeeded", "provider event type to send")
		transactionID = flag.String("transaction", "", "transaction id to reference (required)")
		reference     = flag.String("reference", "", "provider-side reference (default: generated)")
		amount        = flag.Int64("amount", 1000, "amount in minor units")
		currency      = flag.String("currency", "USD", "currency code")
		errCode       = flag.String("error-code", "card_declined", "error code for failure events")
		errMessage    = flag.String("error-message", "insufficient funds", "error message for failure events")
	)
	flag.Parse()

	logging.Init("mock-provider", "info", os.Getenv("APP_ENV"))

	if *transactionID == "" {
		slog.Error("missing required flag", "flag", "transaction")
		os.Exit(1)
	}
	ref := *reference
	if ref == "" {
		ref = "pi_" + uuid.NewString()
	}

	var (
		body   []byte
		header string
		value  string
		err    error
	)
	switch *providerCode {
	case "stripe":
		body, err = stripeBody(*eventType, *transactionID, ref, *amount, *currency, *errCode, *errMessage)
		header = "Stripe-Signature"
		value = stripeSignature(*secret, body)
	default:
		body, err = partnerBody(*eventType, *transactionID, ref, *amount, *currency, *errCode, *errMessage)
		header = "X-Callback-Token"
		value = *secret
	}
	if err != nil {
		slog.Error("failed to build payload", "error", err)
		os.Exit(1)
	}

	url := fmt.Sprintf("%s/webhooks/%s", *baseURL, *providerCode)
	status, respBody, err := deliver(url, header, value, body)
	if err != nil {
		slog.Error("delivery failed", "error", err)
		os.Exit(1)
	}

	slog.Info("webhook delivered",
		"url", url,
		"event", *eventType,
		"status", status,
		"response", string(respBody),
	)
}

func stripeBody(eventType, transactionID, ref string, amount int64, currency, errCode, errMessage string) ([]byte, error) {
	object := map[string]any{
		"id":       ref,
		"amount":   amount,
		"currency": currency,
		"metadata": map[string]string{"transaction_id": transactionID},
	}
	if eventType == "payment_intent.payment_failed" || eventType == "payout.failed" || eventType == "refund.failed" {
		object["failure_code"] = errCode
		object["failure_message"] = errMessage
	}

	return json.Marshal(map[string]any{
		"id":   "evt_" + uuid.NewString(),
		"type": eventType,
		"data": map[string]any{"object": object},
	})
}

func stripeSignature(secret string, body []byte) string {
	timestamp := fmt.Sprintf("%d", time.Now().Unix())
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return fmt.Sprintf("t=%s,v1=%s", timestamp, hex.EncodeToString(mac.Sum(nil)))
}

func partnerBody(eventType, transactionID, ref string, amount int64, currency, errCode, errMessage string) ([]byte, error) {
	payload := map[string]any{
		"event":       eventType,
		"delivery_id": "dlv_" + uuid.NewString(),
		"data": map[string]any{
			"transaction_id": transactionID,
			"reference":      ref,
			"amount":         amount,
			"currency":       currency,
			"error_code":     errCode,
			"error_message":  errMessage,
		},
	}
	return json.Marshal(payload)
}

func deliver(url, header, value string, body []byte) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("deliver: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(header, value)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("deliver: send: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("deliver: read response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}
