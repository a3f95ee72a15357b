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

	"github.com/cenkalti/backoff/v4"
)

// GatewayConfig points at an HTTP SMS gateway that accepts
// POST {"to","body"} with a bearer token.
type GatewayConfig struct {
	URL        string
	Token      string
	Sender     string
	Timeout    time.Duration
	MaxRetries uint64
}

// HTTPGateway sends SMS through a JSON HTTP gateway, retrying 5xx and
// network failures with exponential backoff.
type HTTPGateway struct {
	config  GatewayConfig
	client  *http.Client
	backoff func() backoff.BackOff
	logger  *slog.Logger
}

func NewHTTPGateway(config GatewayConfig, logger *slog.Logger) *HTTPGateway {
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	return &HTTPGateway{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		backoff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
		logger: logger,
	}
}

type smsRequest struct {
	To     string `json:"to"`
	Body   string `json:"body"`
	Sender string `json:"sender,omitempty"`
}

// SendSMS implements SMSSender.
func (g *HTTPGateway) SendSMS(ctx context.Context, to, body string) error {
	payload, err := json.Marshal(smsRequest{To: to, Body: body, Sender: g.config.Sender})
	if err != nil {
		return fmt.Errorf("failed to encode sms request: %w", err)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(g.backoff(), g.config.MaxRetries), ctx)
	return backoff.RetryNotify(func() error {
		return g.post(ctx, payload)
	}, b, func(err error, wait time.Duration) {
		g.logger.WarnContext(ctx, "sms gateway call failed, retrying", "error", err, "wait", wait)
	})
}

func (g *HTTPGateway) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.config.URL, bytes.NewReader(payload))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to build sms request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if g.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+g.config.Token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("sms gateway unreachable: %w", err)
	}
	defer resp.Body.Close()
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

	switch {
	case resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("sms gateway returned %d: %s", resp.StatusCode, msg)
	default:
		return backoff.Permanent(fmt.Errorf("sms gateway rejected message with %d: %s", resp.StatusCode, msg))
	}
}
