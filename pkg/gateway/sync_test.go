package gateway

import (
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/voicetyped/ussdmenu/pkg/ussd"
)

func TestWriteSyncContinue(t *testing.T) {
	rec := httptest.NewRecorder()
	err := WriteSync(rec, &ussd.Reply{
		Sync: true,
		Message: ussd.Message{
			Operation: ussd.OpRequest,
			Text:      "Pick 1/2",
			Vars:      ussd.Vars{"handler": "A", "entry": "Menu"},
		},
	})
	if err != nil {
		t.Fatalf("WriteSync: %v", err)
	}

	if rec.Code != 200 {
		t.Errorf("status = %d", rec.Code)
	}
	if rec.Body.String() != "Pick 1/2" {
		t.Errorf("body = %q", rec.Body.String())
	}
	if got := rec.Header().Get("operation"); got != "ussr" {
		t.Errorf("operation header = %q", got)
	}
	if got := rec.Header().Get("copyparams"); got != "sessiondata" {
		t.Errorf("copyparams header = %q", got)
	}
	raw, err := url.QueryUnescape(rec.Header().Get("sessiondata"))
	if err != nil {
		t.Fatalf("unescape: %v", err)
	}
	if raw != `{"entry":"Menu","handler":"A"}` {
		t.Errorf("sessiondata = %q", raw)
	}
}

func TestWriteSyncStop(t *testing.T) {
	rec := httptest.NewRecorder()
	if err := WriteSync(rec, &ussd.Reply{
		Sync:     true,
		Terminal: true,
		Message:  ussd.Message{Operation: ussd.OpStart, Text: "Bye"},
	}); err != nil {
		t.Fatalf("WriteSync: %v", err)
	}
	if rec.Header().Get("sessiondata") != "" || rec.Header().Get("copyparams") != "" {
		t.Error("stop reply must not carry session data")
	}
	if rec.Body.String() != "Bye" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestWriteSyncAck(t *testing.T) {
	for name, r := range map[string]*ussd.Reply{
		"nil":   nil,
		"ack":   {Ack: true, Sync: true},
		"async": {Message: ussd.Message{Text: "sent elsewhere"}},
	} {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			if err := WriteSync(rec, r); err != nil {
				t.Fatalf("WriteSync: %v", err)
			}
			if rec.Code != 200 || rec.Body.Len() != 0 {
				t.Errorf("status = %d body = %q", rec.Code, rec.Body.String())
			}
		})
	}
}
