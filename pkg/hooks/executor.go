package hooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/voicetyped/ussdmenu/pkg/events"
	"github.com/voicetyped/ussdmenu/pkg/urlvalidation"
)

// SignatureHeader carries the HMAC of the request body for "hmac" auth.
const SignatureHeader = "X-Hook-Signature"

// ErrHook wraps every failed hook call.
var ErrHook = errors.New("menu hook failed")

// Executor calls external menu hooks.
type Executor struct {
	httpClient   *http.Client
	publisher    *events.Publisher
	validateOpts []urlvalidation.Option
}

// NewExecutor creates a new hook executor.
func NewExecutor(publisher *events.Publisher, validateOpts ...urlvalidation.Option) *Executor {
	return &Executor{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        50,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     60 * time.Second,
			},
		},
		publisher:    publisher,
		validateOpts: validateOpts,
	}
}

// Execute posts req to the hook and decodes its command.
func (e *Executor) Execute(ctx context.Context, cfg HookConfig, req HookRequest) (*HookResponse, error) {
	if err := urlvalidation.ValidateHookURL(cfg.URL, e.validateOpts...); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHook, err)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal hook request: %w", err)
	}

	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %w", ErrHook, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	switch cfg.AuthType {
	case "bearer":
		httpReq.Header.Set("Authorization", "Bearer "+cfg.AuthSecret)
	case "hmac":
		httpReq.Header.Set(SignatureHeader, Sign(cfg.AuthSecret, body))
	}
	for k, v := range cfg.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		e.emitError(ctx, cfg.URL, req.SessionID, err.Error())
		return nil, fmt.Errorf("%w: %w", ErrHook, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	// Drain remainder for connection reuse.
	_, _ = io.Copy(io.Discard, resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", ErrHook, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("hook returned HTTP %d: %s", resp.StatusCode, string(respBody))
		e.emitError(ctx, cfg.URL, req.SessionID, msg)
		return nil, fmt.Errorf("%w: %s", ErrHook, msg)
	}

	var hookResp HookResponse
	if err := json.Unmarshal(respBody, &hookResp); err != nil {
		e.emitError(ctx, cfg.URL, req.SessionID, err.Error())
		return nil, fmt.Errorf("%w: decode response: %w", ErrHook, err)
	}

	switch hookResp.Command {
	case CommandContinue, CommandStop:
	case CommandJump:
		if hookResp.Target == "" {
			return nil, fmt.Errorf("%w: jump without target", ErrHook)
		}
	default:
		return nil, fmt.Errorf("%w: unknown command %q", ErrHook, hookResp.Command)
	}

	if e.publisher != nil {
		_ = e.publisher.Emit(ctx, events.HookResult, req.SessionID, &events.HookResultData{
			HookURL:    cfg.URL,
			StatusCode: resp.StatusCode,
			Command:    hookResp.Command,
		})
	}

	return &hookResp, nil
}

func (e *Executor) emitError(ctx context.Context, hookURL, sessionID, msg string) {
	if e.publisher == nil {
		return
	}
	_ = e.publisher.Emit(ctx, events.HookError, sessionID, &events.HookErrorData{
		HookURL: hookURL,
		Error:   msg,
	})
}

// Sign produces an HMAC-SHA256 signature in the format "sha256=<hex>".
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return fmt.Sprintf("sha256=%x", mac.Sum(nil))
}

// Verify checks a signature produced by Sign.
func Verify(secret string, payload []byte, signature string) bool {
	return hmac.Equal([]byte(Sign(secret, payload)), []byte(signature))
}
