// Package notify delivers alert emails through an HTTP mail relay.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Sink is the notification delivery contract. Delivery is fire-and-forget
// from the pipeline's perspective, but failures are surfaced so callers can
// log them instead of silently swallowing them.
type Sink interface {
	Deliver(ctx context.Context, recipients []string, subject, bodyHTML string) error
}

// Relay posts notifications to an HTTP mail relay endpoint.
type Relay struct {
	baseURL    string
	secret     string
	httpClient *http.Client
	stubMode   bool
}

// NewRelay creates a relay sink. In stub mode deliveries are logged and
// dropped, which keeps local development working without a mail service.
func NewRelay(baseURL, secret string, stubMode bool) *Relay {
	return &Relay{
		baseURL:    baseURL,
		secret:     secret,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		stubMode:   stubMode,
	}
}

// Deliver sends one message to the given recipients.
func (r *Relay) Deliver(ctx context.Context, recipients []string, subject, bodyHTML string) error {
	if r.stubMode {
		slog.Info("Stub notification delivery",
			"recipients", len(recipients),
			"subject", subject,
		)
		return nil
	}

	reqBody := map[string]interface{}{
		"recipients": recipients,
		"subject":    subject,
		"body_html":  bodyHTML,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/send", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Notify-Secret", r.secret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("notification relay returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
