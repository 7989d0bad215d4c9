package callback

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/voicetyped/ussdmenu/pkg/ussd"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []ussd.Message
	err  error
}

func (f *fakeSender) Send(_ context.Context, msg ussd.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func testHandler(t *testing.T, sender ussd.Sender) *Handler {
	t.Helper()
	reg := ussd.NewRegistry()
	err := reg.RegisterHandler("A", &ussd.Menu{
		Start: func(_ context.Context, _ ussd.Request) ussd.Command {
			return ussd.Continue("Menu", "Pick 1/2", nil)
		},
		Steps: map[string]ussd.StepFunc{
			"Menu": func(_ context.Context, _ ussd.Request, _ ussd.Vars) ussd.Command {
				return ussd.Stop("Bye")
			},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	e := ussd.NewEngine(reg, ussd.NewStaticRoutes(ussd.RouteTable{"100": "A"}), sender, nil, ussd.EngineConfig{})
	return NewHandler(e)
}

func callbackQuery(op, sync string, extra map[string]string) string {
	v := url.Values{}
	v.Set("id", "sess-1")
	v.Set("operation", op)
	v.Set("sync", sync)
	v.Set("msisdn", "79001234567")
	v.Set("text", "*100#")
	for k, val := range extra {
		v.Set(k, val)
	}
	return v.Encode()
}

func TestCallbackSyncStart(t *testing.T) {
	h := testHandler(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/ussd/callback?"+callbackQuery("pssr", "true", nil), nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %q", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "Pick 1/2" {
		t.Errorf("body = %q", rec.Body.String())
	}
	if rec.Header().Get("operation") != "ussr" {
		t.Errorf("operation = %q", rec.Header().Get("operation"))
	}

	vars, err := ussd.DecodeVars(rec.Header().Get("sessiondata"))
	if err != nil {
		t.Fatalf("DecodeVars: %v", err)
	}
	if vars.Handler() != "A" || vars[ussd.VarEntry] != "Menu" {
		t.Errorf("vars = %v", vars)
	}
}

func TestCallbackPostContinuing(t *testing.T) {
	h := testHandler(t, nil)
	body := callbackQuery("ussr", "true", map[string]string{
		"text":        "2",
		"sessiondata": url.QueryEscape(`{"handler":"A","entry":"Menu"}`),
	})
	req := httptest.NewRequest(http.MethodPost, "/ussd/callback", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || rec.Body.String() != "Bye" {
		t.Fatalf("status = %d, body = %q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("sessiondata") != "" {
		t.Error("stop reply must not carry session data")
	}
}

func TestCallbackAsync(t *testing.T) {
	sender := &fakeSender{}
	h := testHandler(t, sender)
	req := httptest.NewRequest(http.MethodGet, "/ussd/callback?"+callbackQuery("pssr", "false", nil), nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || rec.Body.Len() != 0 {
		t.Errorf("status = %d, body = %q", rec.Code, rec.Body.String())
	}
	if len(sender.sent) != 1 || sender.sent[0].Text != "Pick 1/2" {
		t.Errorf("sent = %+v", sender.sent)
	}
}

func TestCallbackErrors(t *testing.T) {
	tests := []struct {
		name   string
		method string
		query  string
		sender ussd.Sender
		want   int
	}{
		{"missing fields", http.MethodGet, "id=1&operation=pssr", nil, http.StatusBadRequest},
		{"unknown operation", http.MethodGet, callbackQuery("ussn", "true", nil), nil, http.StatusBadRequest},
		{"gateway down", http.MethodGet, callbackQuery("pssr", "false", nil), &fakeSender{err: errors.New("refused")}, http.StatusBadGateway},
		{"bad method", http.MethodPut, callbackQuery("pssr", "true", nil), nil, http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := testHandler(t, tt.sender)
			req := httptest.NewRequest(tt.method, "/ussd/callback?"+tt.query, nil)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestCallbackStopAck(t *testing.T) {
	h := testHandler(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/ussd/callback?"+callbackQuery("stop", "true", nil), nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.Len() != 0 {
		t.Errorf("status = %d, body = %q", rec.Code, rec.Body.String())
	}
}
