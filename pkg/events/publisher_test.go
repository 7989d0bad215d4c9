package events

import (
	"encoding/json"
	"testing"
	"time"
)

func TestEnvelopeSerialization(t *testing.T) {
	data := &SessionStartedData{
		MSISDN:    "79001234567",
		Handler:   "demo",
		Text:      "*100#",
		Initiator: "subscriber",
	}

	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal data: %v", err)
	}

	env := Envelope{
		ID:        "test-id",
		Type:      SessionStarted,
		Source:    "ussd",
		SessionID: "session-123",
		Timestamp: time.Now().UTC(),
		Data:      raw,
	}

	b, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}

	var decoded Envelope
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}

	if decoded.Type != SessionStarted {
		t.Errorf("type = %q, want %q", decoded.Type, SessionStarted)
	}
	if decoded.SessionID != "session-123" {
		t.Errorf("session_id = %q, want %q", decoded.SessionID, "session-123")
	}

	var payload SessionStartedData
	if err := json.Unmarshal(decoded.Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.Handler != "demo" {
		t.Errorf("handler = %q, want %q", payload.Handler, "demo")
	}
}

func TestEventTypeConstants(t *testing.T) {
	types := []EventType{
		SessionStarted, SessionContinued, SessionStopped,
		SessionAborted, SessionFailed, HandlerJumped,
		NotifySent, GatewayError, HookResult, HookError,
		RoutesReloaded, MenusReloaded,
	}

	seen := make(map[EventType]bool)
	for _, et := range types {
		if et == "" {
			t.Error("empty event type constant")
		}
		if seen[et] {
			t.Errorf("duplicate event type: %q", et)
		}
		seen[et] = true
	}
}

func TestPublisherLocalFanOut(t *testing.T) {
	pub := NewPublisher(nil, "ussd", "events")
	ch := pub.Subscribe("sub-1", 4)
	defer pub.Unsubscribe("sub-1")

	if err := pub.Emit(t.Context(), NotifySent, "", &NotifySentData{MSISDN: "1", Message: "hi"}); err != nil {
		t.Fatalf("Emit: %v", err)
	}

	select {
	case env := <-ch:
		if env.Type != NotifySent {
			t.Errorf("type = %q, want %q", env.Type, NotifySent)
		}
		if env.Source != "ussd" {
			t.Errorf("source = %q, want %q", env.Source, "ussd")
		}
		if env.ID == "" {
			t.Error("expected generated envelope id")
		}
	case <-time.After(time.Second):
		t.Fatal("no event delivered to local subscriber")
	}
}

func TestPublisherUnsubscribeClosesChannel(t *testing.T) {
	pub := NewPublisher(nil, "ussd", "events")
	ch := pub.Subscribe("sub-1", 1)
	pub.Unsubscribe("sub-1")

	if _, ok := <-ch; ok {
		t.Error("expected closed channel after Unsubscribe")
	}
}

func TestPublisherPrefixFilter(t *testing.T) {
	pub := NewPublisher(nil, "ussd", "events")
	ch := pub.Subscribe("sessions", 4, "session.")
	defer pub.Unsubscribe("sessions")

	_ = pub.Emit(t.Context(), NotifySent, "", &NotifySentData{MSISDN: "1"})
	_ = pub.Emit(t.Context(), SessionStopped, "sess-1", &SessionTurnData{MSISDN: "1", Handler: "demo"})

	select {
	case env := <-ch:
		if env.Type != SessionStopped || env.SessionID != "sess-1" {
			t.Errorf("got %q for %q, want session.stopped for sess-1", env.Type, env.SessionID)
		}
	case <-time.After(time.Second):
		t.Fatal("no session event delivered")
	}
	select {
	case env := <-ch:
		t.Errorf("unexpected event %q", env.Type)
	default:
	}
	if pub.Subscribers() != 1 {
		t.Errorf("subscribers = %d", pub.Subscribers())
	}
}
