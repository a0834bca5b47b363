// internal/provider/card.go

// Package provider holds HTTP clients for the external collaborators the
// engine consumes: card-PIN verification, SMS dispatch and mobile-money
// push. Each call goes through a circuit breaker so a degraded provider
// fails fast instead of stalling checkouts.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
)

// PinVerdict is the card provider's answer to a PIN check.
type PinVerdict string

const (
	PinVerdictApproved PinVerdict = "APPROVED"
	PinVerdictDenied   PinVerdict = "DENIED"
	// PinVerdictLocked is reported as a denial reason by the provider,
	// never as a transport error. It is terminal for the card.
	PinVerdictLocked PinVerdict = "LOCKED"
)

// PinVerifier verifies a card PIN against the wallet/card provider.
type PinVerifier interface {
	VerifyPin(ctx context.Context, cardID, pin string) (PinVerdict, error)
}

// HTTPPinVerifier calls the card provider's REST endpoint.
type HTTPPinVerifier struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[PinVerdict]
}

// NewHTTPPinVerifier creates a PinVerifier for the given provider base URL.
func NewHTTPPinVerifier(baseURL string) *HTTPPinVerifier {
	return &HTTPPinVerifier{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		breaker: gobreaker.NewCircuitBreaker[PinVerdict](gobreaker.Settings{
			Name:    "card-pin-verifier",
			Timeout: 30 * time.Second,
		}),
	}
}

// VerifyPin performs a single verification attempt. Provider lockout
// arrives as the LOCKED verdict in the response body.
func (v *HTTPPinVerifier) VerifyPin(ctx context.Context, cardID, pin string) (PinVerdict, error) {
	return v.breaker.Execute(func() (PinVerdict, error) {
		payload, err := json.Marshal(map[string]string{"card_id": cardID, "pin": pin})
		if err != nil {
			return "", fmt.Errorf("failed to marshal pin verification request: %w", err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+"/verifyPin", bytes.NewReader(payload))
		if err != nil {
			return "", fmt.Errorf("failed to build pin verification request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := v.client.Do(req)
		if err != nil {
			return "", fmt.Errorf("pin verification request failed: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("pin verification returned status %d", resp.StatusCode)
		}

		var body struct {
			Verdict PinVerdict `json:"verdict"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return "", fmt.Errorf("failed to decode pin verification response: %w", err)
		}
		return body.Verdict, nil
	})
}
