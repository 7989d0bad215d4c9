package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"connectrpc.com/connect"
	"github.com/rs/xid"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/voicetyped/ussdmenu/pkg/events"
	"github.com/voicetyped/ussdmenu/pkg/ussd"
)

// Ensure we implement the interface.
var _ SessionServiceHandler = (*SessionHandler)(nil)

// SessionHandler exposes network-initiated dialogues and notifications.
type SessionHandler struct {
	engine *ussd.Engine
	pub    *events.Publisher
}

// NewSessionHandler creates a new admin session handler. pub may be nil, in
// which case StreamEvents is unavailable.
func NewSessionHandler(engine *ussd.Engine, pub *events.Publisher) *SessionHandler {
	return &SessionHandler{engine: engine, pub: pub}
}

// StartSession opens a dialogue with {msisdn, handler?} and returns {session_id}.
func (h *SessionHandler) StartSession(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	msisdn := stringField(req.Msg, "msisdn")
	if msisdn == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("msisdn is required"))
	}
	handlerID := stringField(req.Msg, "handler")

	id, err := h.engine.StartFromNetwork(ctx, msisdn, handlerID)
	if err != nil {
		return nil, connectError(err)
	}

	out, err := structpb.NewStruct(map[string]any{"session_id": id})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(out), nil
}

// Notify sends {message} to {msisdn} without opening a dialogue.
func (h *SessionHandler) Notify(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	msisdn := stringField(req.Msg, "msisdn")
	if msisdn == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("msisdn is required"))
	}
	if err := h.engine.Notify(ctx, msisdn, stringField(req.Msg, "message")); err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&structpb.Struct{}), nil
}

// ListHandlers returns {handlers: [...], routes: {...}}.
func (h *SessionHandler) ListHandlers(_ context.Context, _ *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	ids := h.engine.Registry().IDs()
	handlers := make([]any, 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, id)
	}
	routes := make(map[string]any)
	for code, id := range h.engine.Routes() {
		routes[code] = id
	}

	out, err := structpb.NewStruct(map[string]any{
		"handlers": handlers,
		"routes":   routes,
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(out), nil
}

// StreamEvents relays engine events to the caller until it disconnects.
// {types: ["session.", "notify.sent"]} restricts the stream to matching type
// prefixes.
func (h *SessionHandler) StreamEvents(ctx context.Context, req *connect.Request[structpb.Struct], stream *connect.ServerStream[structpb.Struct]) error {
	if h.pub == nil {
		return connect.NewError(connect.CodeUnavailable, fmt.Errorf("event publisher not configured"))
	}

	var prefixes []string
	for _, v := range req.Msg.GetFields()["types"].GetListValue().GetValues() {
		if p := v.GetStringValue(); p != "" {
			prefixes = append(prefixes, p)
		}
	}

	subID := xid.New().String()
	eventCh := h.pub.Subscribe(subID, 128, prefixes...)
	defer h.pub.Unsubscribe(subID)

	for {
		select {
		case <-ctx.Done():
			return nil
		case env, ok := <-eventCh:
			if !ok {
				return nil
			}
			msg, err := envelopeStruct(env)
			if err != nil {
				return connect.NewError(connect.CodeInternal, err)
			}
			if err := stream.Send(msg); err != nil {
				return err
			}
		}
	}
}

func envelopeStruct(env events.Envelope) (*structpb.Struct, error) {
	var data any
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, fmt.Errorf("decode event %s data: %w", env.ID, err)
		}
	}
	return structpb.NewStruct(map[string]any{
		"id":         env.ID,
		"type":       string(env.Type),
		"source":     env.Source,
		"session_id": env.SessionID,
		"timestamp":  env.Timestamp.Format(time.RFC3339Nano),
		"data":       data,
	})
}

func stringField(s *structpb.Struct, key string) string {
	if s == nil {
		return ""
	}
	return s.GetFields()[key].GetStringValue()
}

func connectError(err error) error {
	switch {
	case errors.Is(err, ussd.ErrValidation):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, ussd.ErrUnknownHandler):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, ussd.ErrTransport):
		return connect.NewError(connect.CodeUnavailable, err)
	case errors.Is(err, ussd.ErrProtocol):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}
