// internal/provider/momo.go
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
)

// PushOutcome is the payer's answer relayed by the mobile-money provider
// callback.
type PushOutcome string

const (
	PushAccepted PushOutcome = "ACCEPTED"
	PushRejected PushOutcome = "REJECTED"
)

// MobileMoneyClient requests a payment push keyed by phone and amount.
// The provider later reports the outcome through the engine's callback
// endpoint, identified by the returned provider token.
type MobileMoneyClient interface {
	RequestPush(ctx context.Context, phone string, amount decimal.Decimal, reference string) (providerRef string, err error)
}

// HTTPMobileMoneyClient calls the mobile-money provider's REST endpoint.
type HTTPMobileMoneyClient struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[string]
}

// NewHTTPMobileMoneyClient creates a MobileMoneyClient for the given
// provider base URL.
func NewHTTPMobileMoneyClient(baseURL string) *HTTPMobileMoneyClient {
	return &HTTPMobileMoneyClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		breaker: gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
			Name:    "mobile-money",
			Timeout: 30 * time.Second,
		}),
	}
}

// RequestPush asks the provider to push a payment request to the payer's
// handset and returns the provider's token for the pending request.
func (c *HTTPMobileMoneyClient) RequestPush(ctx context.Context, phone string, amount decimal.Decimal, reference string) (string, error) {
	return c.breaker.Execute(func() (string, error) {
		payload, err := json.Marshal(map[string]string{
			"phone":     phone,
			"amount":    amount.String(),
			"reference": reference,
		})
		if err != nil {
			return "", fmt.Errorf("failed to marshal push request: %w", err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/requestPush", bytes.NewReader(payload))
		if err != nil {
			return "", fmt.Errorf("failed to build push request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return "", fmt.Errorf("push request failed: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
			return "", fmt.Errorf("mobile-money provider returned status %d", resp.StatusCode)
		}

		var body struct {
			Token string `json:"token"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return "", fmt.Errorf("failed to decode push response: %w", err)
		}
		if body.Token == "" {
			return "", fmt.Errorf("mobile-money provider returned empty token")
		}
		return body.Token, nil
	})
}
