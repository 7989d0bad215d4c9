package events

import (
	"encoding/json"
	"time"
)

// EventType identifies the kind of event flowing through the system.
type EventType string

const (
	SessionStarted   EventType = "session.started"
	SessionContinued EventType = "session.continued"
	SessionStopped   EventType = "session.stopped"
	SessionAborted   EventType = "session.aborted"
	SessionFailed    EventType = "session.failed"
	HandlerJumped    EventType = "session.jumped"
	NotifySent       EventType = "notify.sent"
	GatewayError     EventType = "gateway.error"
	HookResult       EventType = "hook.result"
	HookError        EventType = "hook.error"
	RoutesReloaded   EventType = "routes.reloaded"
	MenusReloaded    EventType = "menus.reloaded"
)

// Envelope is the standard event wrapper published to the event bus.
type Envelope struct {
	ID        string            `json:"id"`
	Type      EventType         `json:"type"`
	Source    string            `json:"source"`
	SessionID string            `json:"session_id"`
	Timestamp time.Time         `json:"timestamp"`
	Data      json.RawMessage   `json:"data"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// SessionStartedData is the payload for session.started events.
type SessionStartedData struct {
	MSISDN    string `json:"msisdn"`
	Handler   string `json:"handler"`
	Text      string `json:"text,omitempty"`
	Initiator string `json:"initiator"` // "subscriber" or "network"
}

// SessionTurnData is the payload for session.continued and session.stopped events.
type SessionTurnData struct {
	MSISDN  string `json:"msisdn"`
	Handler string `json:"handler"`
	Entry   string `json:"entry,omitempty"`
	Input   string `json:"input,omitempty"`
	Message string `json:"message"`
}

// SessionFailedData is the payload for session.failed events.
type SessionFailedData struct {
	MSISDN string `json:"msisdn"`
	Stage  string `json:"stage"`
	Error  string `json:"error"`
}

// HandlerJumpedData is the payload for session.jumped events.
type HandlerJumpedData struct {
	FromHandler string `json:"from_handler"`
	ToHandler   string `json:"to_handler"`
	Entry       string `json:"entry,omitempty"`
	Depth       int    `json:"depth"`
}

// NotifySentData is the payload for notify.sent events.
type NotifySentData struct {
	MSISDN  string `json:"msisdn"`
	Message string `json:"message"`
}

// GatewayErrorData is the payload for gateway.error events.
type GatewayErrorData struct {
	Operation string `json:"operation"`
	Error     string `json:"error"`
}

// HookResultData is the payload for hook.result events.
type HookResultData struct {
	HookURL    string `json:"hook_url"`
	StatusCode int    `json:"status_code"`
	Command    string `json:"command"`
}

// HookErrorData is the payload for hook.error events.
type HookErrorData struct {
	HookURL string `json:"hook_url"`
	Error   string `json:"error"`
}

// ReloadData is the payload for routes.reloaded and menus.reloaded events.
type ReloadData struct {
	Source string   `json:"source"`
	Keys   []string `json:"keys"`
}
