package gateway

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/voicetyped/ussdmenu/pkg/ussd"
)

func TestClientSendForm(t *testing.T) {
	var (
		mu   sync.Mutex
		got  url.Values
		ctyp string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		mu.Lock()
		got = r.PostForm
		ctyp = r.Header.Get("Content-Type")
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{URL: srv.URL, Timeout: time.Second})
	err := c.Send(t.Context(), ussd.Message{
		Operation: ussd.OpRequest,
		ID:        "USSDAPPabc",
		MSISDN:    "79001234567",
		Text:      "Hello",
		Vars:      ussd.Vars{"handler": "demo"},
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if ctyp != "application/x-www-form-urlencoded" {
		t.Errorf("content type = %q", ctyp)
	}
	want := map[string]string{
		"operation":   "ussr",
		"id":          "USSDAPPabc",
		"msisdn":      "79001234567",
		"text":        "Hello",
		"copyparams":  "sessiondata",
		"sessiondata": `{"handler":"demo"}`,
	}
	for k, v := range want {
		if got.Get(k) != v {
			t.Errorf("%s = %q, want %q", k, got.Get(k), v)
		}
	}
}

func TestFormValuesWithoutVars(t *testing.T) {
	form, err := FormValues(ussd.Message{Operation: ussd.OpNotify, MSISDN: "1", Text: "hi"})
	if err != nil {
		t.Fatalf("FormValues: %v", err)
	}
	if form.Has("id") || form.Has(ussd.SessionDataField) || form.Has(ussd.CopyParamsField) {
		t.Errorf("unexpected fields: %v", form)
	}
}

func TestClientSendHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{
		URL:     srv.URL,
		Breaker: BreakerConfig{FailureThreshold: 2, ResetTimeout: time.Hour},
	})
	msg := ussd.Message{Operation: ussd.OpStart, ID: "1", Text: "bye"}

	for range 2 {
		if err := c.Send(t.Context(), msg); !errors.Is(err, ussd.ErrTransport) {
			t.Fatalf("err = %v, want ErrTransport", err)
		}
	}
	if err := c.Send(t.Context(), msg); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("err = %v, want ErrCircuitOpen", err)
	}
}

func TestClientSendNoURL(t *testing.T) {
	c := NewClient(ClientConfig{})
	if err := c.Send(t.Context(), ussd.Message{}); !errors.Is(err, ussd.ErrTransport) {
		t.Errorf("err = %v, want ErrTransport", err)
	}
}
