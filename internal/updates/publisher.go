// ABOUTME: Publishers deliver drained update requests to the outside world
// ABOUTME: WebhookPublisher POSTs JSON signed with an HS256 bearer; LogPublisher only logs

package updates

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

// Notice is what a publisher receives for one coalesced update.
type Notice struct {
	RequestID   string    `json:"request_id"`
	RegattaID   string    `json:"regatta_id"`
	Activity    Activity  `json:"activity"`
	Argument    string    `json:"argument,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
	Coalesced   int       `json:"coalesced"`
}

// Publisher delivers notices.
type Publisher interface {
	Publish(ctx context.Context, n Notice) error
}

// Signer mints the bearer token sent with each webhook.
type Signer interface {
	Sign(subject string, expiresIn time.Duration, extra map[string]any) (string, error)
}

// WebhookPublisher POSTs each notice as JSON.
type WebhookPublisher struct {
	url    string
	signer Signer
	client *http.Client
}

// NewWebhookPublisher creates a publisher for url. Requests time out after
// timeout.
func NewWebhookPublisher(url string, signer Signer, timeout time.Duration) *WebhookPublisher {
	return &WebhookPublisher{
		url:    url,
		signer: signer,
		client: &http.Client{Timeout: timeout},
	}
}

// Publish sends n and fails on any non-2xx response.
func (p *WebhookPublisher) Publish(ctx context.Context, n Notice) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshaling notice: %w", err)
	}

	token, err := p.signer.Sign("techscore", 5*time.Minute, map[string]any{
		"regatta":  n.RegattaID,
		"activity": string(n.Activity),
	})
	if err != nil {
		return fmt.Errorf("signing webhook: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned %s", resp.Status)
	}
	return nil
}

// LogPublisher records notices in the log. Used when no webhook is set.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher creates a LogPublisher.
func NewLogPublisher() *LogPublisher {
	return &LogPublisher{logger: slog.Default().With("component", "updates.log")}
}

// Publish logs n.
func (p *LogPublisher) Publish(_ context.Context, n Notice) error {
	p.logger.Info("regatta updated",
		"regatta", n.RegattaID,
		"activity", n.Activity,
		"argument", n.Argument,
		"coalesced", n.Coalesced,
	)
	return nil
}
