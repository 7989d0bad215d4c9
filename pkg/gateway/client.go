package gateway

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/voicetyped/ussdmenu/pkg/ussd"
)

// ErrCircuitOpen is returned while the breaker refuses sends.
var ErrCircuitOpen = fmt.Errorf("%w: gateway circuit open", ussd.ErrTransport)

// ClientConfig holds the outgoing gateway settings.
type ClientConfig struct {
	URL     string
	Timeout time.Duration
	Breaker BreakerConfig
}

// Client posts asynchronous replies, network-initiated starts and
// notifications to the gateway. It never retries.
type Client struct {
	url        string
	httpClient *http.Client
	breaker    *Breaker
}

var _ ussd.Sender = (*Client)(nil)

// NewClient creates a gateway client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		url: cfg.URL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		breaker: NewBreaker(cfg.Breaker),
	}
}

// Breaker exposes the client's circuit breaker.
func (c *Client) Breaker() *Breaker { return c.breaker }

// Send posts msg to the gateway as a form.
func (c *Client) Send(ctx context.Context, msg ussd.Message) error {
	if c.url == "" {
		return fmt.Errorf("%w: gateway URL is not configured", ussd.ErrTransport)
	}
	form, err := FormValues(msg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: create request: %w", ussd.ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	if !c.breaker.Allow() {
		return ErrCircuitOpen
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.breaker.Failure()
		return fmt.Errorf("%w: %w", ussd.ErrTransport, err)
	}
	defer resp.Body.Close()
	// Drain for connection reuse.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	slog.DebugContext(ctx, "gateway responded",
		slog.String("operation", msg.Operation),
		slog.Int("status", resp.StatusCode),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.breaker.Failure()
		return fmt.Errorf("%w: gateway returned HTTP %d", ussd.ErrTransport, resp.StatusCode)
	}
	c.breaker.Success()
	return nil
}

// FormValues builds the form body for an outgoing message. Session variables
// travel as plain JSON with copyparams set so the gateway echoes them back.
func FormValues(msg ussd.Message) (url.Values, error) {
	form := url.Values{}
	form.Set("operation", msg.Operation)
	if msg.ID != "" {
		form.Set("id", msg.ID)
	}
	form.Set("text", msg.Text)
	if msg.MSISDN != "" {
		form.Set("msisdn", msg.MSISDN)
	}
	if len(msg.Vars) > 0 {
		raw, err := ussd.EncodeVars(msg.Vars)
		if err != nil {
			return nil, err
		}
		form.Set(ussd.CopyParamsField, ussd.SessionDataField)
		form.Set(ussd.SessionDataField, raw)
	}
	return form, nil
}
