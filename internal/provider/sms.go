// internal/provider/sms.go
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

// SMSDispatcher sends a verification code to a canonicalized phone number.
type SMSDispatcher interface {
	SendSMS(ctx context.Context, phone, message string) error
}

// HTTPSMSDispatcher calls the SMS gateway's REST endpoint.
type HTTPSMSDispatcher struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[struct{}]
}

// NewHTTPSMSDispatcher creates an SMSDispatcher for the given gateway base URL.
func NewHTTPSMSDispatcher(baseURL string) *HTTPSMSDispatcher {
	return &HTTPSMSDispatcher{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		breaker: gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
			Name:    "sms-dispatcher",
			Timeout: 30 * time.Second,
		}),
	}
}

// SendSMS dispatches a message to the gateway.
func (d *HTTPSMSDispatcher) SendSMS(ctx context.Context, phone, message string) error {
	_, err := d.breaker.Execute(func() (struct{}, error) {
		payload, err := json.Marshal(map[string]string{"phone": phone, "message": message})
		if err != nil {
			return struct{}{}, fmt.Errorf("failed to marshal sms request: %w", err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/sendSms", bytes.NewReader(payload))
		if err != nil {
			return struct{}{}, fmt.Errorf("failed to build sms request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := d.client.Do(req)
		if err != nil {
			return struct{}{}, fmt.Errorf("sms dispatch failed: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
			return struct{}{}, fmt.Errorf("sms gateway returned status %d", resp.StatusCode)
		}
		return struct{}{}, nil
	})
	return err
}
