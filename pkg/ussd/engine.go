package ussd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rs/xid"

	"github.com/voicetyped/ussdmenu/pkg/events"
)

const (
	// DefaultMaxJumps caps the number of jumps resolved within one callback.
	DefaultMaxJumps = 16

	InternalErrorMessage = "USSD application internal error.\n\nPlease, try again later"
	DefaultStopMessage   = "USSD session finished"
)

// Sender delivers messages to the gateway outside of a callback response.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// RouteSource provides the current route table.
type RouteSource interface {
	Table() RouteTable
}

// EngineConfig tunes engine behaviour.
type EngineConfig struct {
	// MaxJumps bounds jump chains; zero means DefaultMaxJumps.
	MaxJumps int
	// DevMode strips the leading service code from the text of new sessions
	// so a single development code can reach every route.
	DevMode bool
}

// Engine runs dialogue turns for gateway callbacks. It holds no per-session
// state; everything a session needs travels in its variables.
type Engine struct {
	registry  *Registry
	routes    RouteSource
	sender    Sender
	publisher *events.Publisher
	cfg       EngineConfig
}

// NewEngine creates a new dialogue engine.
func NewEngine(registry *Registry, routes RouteSource, sender Sender, pub *events.Publisher, cfg EngineConfig) *Engine {
	if registry == nil {
		registry = NewRegistry()
	}
	if cfg.MaxJumps <= 0 {
		cfg.MaxJumps = DefaultMaxJumps
	}
	return &Engine{
		registry:  registry,
		routes:    routes,
		sender:    sender,
		publisher: pub,
		cfg:       cfg,
	}
}

// Registry returns the handler registry the engine dispatches to.
func (e *Engine) Registry() *Registry { return e.registry }

// Routes returns a snapshot of the current route table.
func (e *Engine) Routes() RouteTable {
	if e.routes == nil {
		return RouteTable{}
	}
	return e.routes.Table()
}

// Handle processes one gateway callback.
//
// Validation and protocol errors are returned without a reply and no handler is
// invoked. Faults inside an open session produce a stop reply together with the
// error that caused it. For async callbacks the reply has already been sent to
// the gateway when Handle returns.
func (e *Engine) Handle(ctx context.Context, params map[string]string) (*Reply, error) {
	slog.DebugContext(ctx, "processing USSD callback", slog.Any("params", params))

	s, err := Classify(params)
	if err != nil {
		slog.ErrorContext(ctx, "callback rejected", slog.String("error", err.Error()))
		slog.DebugContext(ctx, "rejected callback payload", slog.Any("params", params))
		if s.InSession() {
			return e.stopOnError(ctx, s, "classify", err)
		}
		return nil, err
	}

	switch s.State {
	case StateStop:
		slog.DebugContext(ctx, "session stopped from gateway", slog.String("session_id", s.Request.ID))
		e.emit(ctx, events.SessionAborted, s.Request.ID, &events.SessionTurnData{
			MSISDN:  s.Request.MSISDN,
			Handler: s.Vars.Handler(),
			Input:   s.Request.Text,
		})
		return &Reply{Sync: s.Request.Sync, Ack: true, Terminal: true}, nil
	case StateStart:
		return e.start(ctx, s)
	default:
		return e.resume(ctx, s)
	}
}

func (e *Engine) start(ctx context.Context, s Session) (*Reply, error) {
	if e.cfg.DevMode {
		if text, ok := stripDialCode(s.Request.Text); ok {
			slog.DebugContext(ctx, "dev mode, text rewritten", slog.String("text", text))
			s.Request.Text = text
		} else {
			slog.ErrorContext(ctx, "wrong text in dev mode", slog.String("text", s.Request.Text))
		}
	}

	id, err := Route(e.Routes(), s.Request.Text)
	if err != nil {
		return e.stopOnError(ctx, s, "route", err)
	}

	slog.DebugContext(ctx, "starting new session",
		slog.String("session_id", s.Request.ID),
		slog.String("handler", id))

	cmd, err := e.invoke(id, func(h Handler) Command {
		return h.OnStart(ctx, s.Request)
	})
	if err != nil {
		return e.stopOnError(ctx, s, "start", err)
	}

	e.emit(ctx, events.SessionStarted, s.Request.ID, &events.SessionStartedData{
		MSISDN:    s.Request.MSISDN,
		Handler:   id,
		Text:      s.Request.Text,
		Initiator: "subscriber",
	})

	return e.dispatch(ctx, s, id, Vars{}, cmd)
}

func (e *Engine) resume(ctx context.Context, s Session) (*Reply, error) {
	id := s.Vars.Handler()
	if id == "" {
		slog.DebugContext(ctx, "session variables without handler", slog.Any("vars", s.Vars))
		return e.stopOnError(ctx, s, "resume", ErrNoHandlerVar)
	}
	entry := s.Vars.Entry()

	slog.DebugContext(ctx, "continue session",
		slog.String("session_id", s.Request.ID),
		slog.String("handler", id),
		slog.String("entry", entry))

	cmd, err := e.invoke(id, func(h Handler) Command {
		return h.Step(ctx, entry, s.Request, s.Vars.Clone())
	})
	if err != nil {
		return e.stopOnError(ctx, s, "resume", err)
	}

	return e.dispatch(ctx, s, id, s.Vars, cmd)
}

// dispatch interprets handler commands until one of them produces a reply.
// Jumps are resolved in place, up to MaxJumps.
func (e *Engine) dispatch(ctx context.Context, s Session, owner string, current Vars, cmd Command) (*Reply, error) {
	for depth := 0; ; depth++ {
		slog.DebugContext(ctx, "processing answer from handler",
			slog.String("handler", owner),
			slog.String("command", cmd.Kind.String()))

		switch cmd.Kind {
		case KindContinue:
			vars := continueVars(owner, current, cmd)
			e.emit(ctx, events.SessionContinued, s.Request.ID, &events.SessionTurnData{
				MSISDN:  s.Request.MSISDN,
				Handler: vars.Handler(),
				Entry:   vars[VarEntry],
				Input:   s.Request.Text,
				Message: cmd.Message,
			})
			return e.reply(ctx, s, Message{
				Operation: OpRequest,
				ID:        s.Request.ID,
				Text:      cmd.Message,
				Vars:      vars,
			}, false)

		case KindStop:
			msg := stopMessage(s.Request, cmd.Message)
			e.emit(ctx, events.SessionStopped, s.Request.ID, &events.SessionTurnData{
				MSISDN:  s.Request.MSISDN,
				Handler: owner,
				Input:   s.Request.Text,
				Message: msg.Text,
			})
			return e.reply(ctx, s, msg, true)

		case KindJump:
			if depth >= e.cfg.MaxJumps {
				return e.stopOnError(ctx, s, "jump", fmt.Errorf("%w: %d jumps from %q", ErrJumpDepth, depth, owner))
			}
			if cmd.Target == "" {
				return e.stopOnError(ctx, s, "jump", fmt.Errorf("%w: jump without target from %q", ErrBadCommand, owner))
			}

			vars := mergeVars(current, cmd.Vars)
			delete(vars, VarEntry)
			vars[VarHandler] = cmd.Target
			if cmd.Entry != "" {
				vars[VarEntry] = cmd.Entry
			}

			slog.DebugContext(ctx, "jump to handler",
				slog.String("from", owner),
				slog.String("to", cmd.Target),
				slog.String("entry", cmd.Entry))
			e.emit(ctx, events.HandlerJumped, s.Request.ID, &events.HandlerJumpedData{
				FromHandler: owner,
				ToHandler:   cmd.Target,
				Entry:       cmd.Entry,
				Depth:       depth + 1,
			})

			entry := cmd.Entry
			next, err := e.invoke(cmd.Target, func(h Handler) Command {
				if entry == "" {
					return h.OnJumpDefault(ctx, s.Request, vars.Clone())
				}
				return h.Step(ctx, entry, s.Request, vars.Clone())
			})
			if err != nil {
				return e.stopOnError(ctx, s, "jump", err)
			}
			owner, current, cmd = cmd.Target, vars, next

		default:
			return e.stopOnError(ctx, s, "dispatch", fmt.Errorf("%w: kind %d from %q", ErrBadCommand, cmd.Kind, owner))
		}
	}
}

// invoke resolves id and runs call, converting a handler panic into an error.
// Factories run under the same recovery as the handler itself.
func (e *Engine) invoke(id string, call func(Handler) Command) (cmd Command, err error) {
	defer func() {
		if r := recover(); r != nil {
			cmd, err = Command{}, fmt.Errorf("%w: %q: %v", ErrHandlerFault, id, r)
		}
	}()
	h, err := e.registry.Resolve(id)
	if err != nil {
		return Command{}, err
	}
	return call(h), nil
}

func (e *Engine) reply(ctx context.Context, s Session, msg Message, terminal bool) (*Reply, error) {
	if terminal {
		msg.Vars = nil
	}
	r := &Reply{Message: msg, Sync: s.Request.Sync, Terminal: terminal}
	if r.Sync {
		return r, nil
	}
	if err := e.send(ctx, msg); err != nil {
		return nil, err
	}
	return r, nil
}

// stopOnError terminates an open session with the generic error message. The
// cause is returned alongside the reply.
func (e *Engine) stopOnError(ctx context.Context, s Session, stage string, cause error) (*Reply, error) {
	slog.ErrorContext(ctx, "session stopped on error, customer notified",
		slog.String("session_id", s.Request.ID),
		slog.String("stage", stage),
		slog.String("error", cause.Error()))
	slog.DebugContext(ctx, "failed session payload",
		slog.Any("params", s.Request.Params),
		slog.Any("vars", s.Vars))

	e.emit(ctx, events.SessionFailed, s.Request.ID, &events.SessionFailedData{
		MSISDN: s.Request.MSISDN,
		Stage:  stage,
		Error:  cause.Error(),
	})

	r, err := e.reply(ctx, s, stopMessage(s.Request, InternalErrorMessage), true)
	if err != nil {
		return nil, errors.Join(cause, err)
	}
	return r, cause
}

// StartFromNetwork opens a network-initiated dialogue with msisdn. An empty
// handlerID uses the default route. It returns the new session id.
func (e *Engine) StartFromNetwork(ctx context.Context, msisdn, handlerID string) (string, error) {
	if msisdn == "" {
		return "", fmt.Errorf("%w: %q", ErrMissingFields, "msisdn")
	}
	id := handlerID
	if id == "" {
		id = e.Routes()[DefaultRoute]
	}
	if id == "" {
		id = NoopHandlerID
	}

	req := Request{
		ID:        NetworkSessionPrefix + xid.New().String(),
		MSISDN:    msisdn,
		Operation: OpRequest,
		Params:    map[string]string{"msisdn": msisdn},
	}

	cmd, err := e.invoke(id, func(h Handler) Command {
		return h.OnStartFromNetwork(ctx, req)
	})
	if err != nil {
		slog.ErrorContext(ctx, "cannot start dialogue from network",
			slog.String("handler", id), slog.String("error", err.Error()))
		return "", err
	}
	if cmd.Kind != KindContinue {
		return "", fmt.Errorf("%w: handler %q returned %s starting dialogue from network", ErrBadCommand, id, cmd.Kind)
	}

	vars := continueVars(id, nil, cmd)

	if err := e.send(ctx, Message{
		Operation: OpRequest,
		ID:        req.ID,
		MSISDN:    msisdn,
		Text:      cmd.Message,
		Vars:      vars,
	}); err != nil {
		return "", err
	}

	e.emit(ctx, events.SessionStarted, req.ID, &events.SessionStartedData{
		MSISDN:    msisdn,
		Handler:   id,
		Initiator: "network",
	})
	return req.ID, nil
}

// Notify sends a one-way message to msisdn. No session is created.
func (e *Engine) Notify(ctx context.Context, msisdn, message string) error {
	if msisdn == "" {
		return fmt.Errorf("%w: %q", ErrMissingFields, "msisdn")
	}
	if err := e.send(ctx, Message{Operation: OpNotify, MSISDN: msisdn, Text: message}); err != nil {
		return err
	}
	e.emit(ctx, events.NotifySent, "", &events.NotifySentData{MSISDN: msisdn, Message: message})
	return nil
}

func (e *Engine) send(ctx context.Context, msg Message) error {
	if e.sender == nil {
		return ErrNoSender
	}
	slog.DebugContext(ctx, "sending to gateway",
		slog.String("operation", msg.Operation),
		slog.String("session_id", msg.ID))
	if err := e.sender.Send(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "gateway send failed",
			slog.String("operation", msg.Operation),
			slog.String("error", err.Error()))
		e.emit(ctx, events.GatewayError, msg.ID, &events.GatewayErrorData{
			Operation: msg.Operation,
			Error:     err.Error(),
		})
		if !errors.Is(err, ErrTransport) {
			err = fmt.Errorf("%w: %w", ErrTransport, err)
		}
		return err
	}
	return nil
}

func (e *Engine) emit(ctx context.Context, et events.EventType, sessionID string, data any) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.Emit(ctx, et, sessionID, data); err != nil {
		slog.WarnContext(ctx, "event publish failed",
			slog.String("event_type", string(et)),
			slog.String("error", err.Error()))
	}
}

// stopMessage builds the closing message. Network-initiated sessions close
// with ussn, subscriber-initiated ones with pssr.
func stopMessage(req Request, text string) Message {
	if text == "" {
		text = DefaultStopMessage
	}
	op := OpStart
	if req.NetworkInitiated() {
		op = OpNotify
	}
	return Message{Operation: op, ID: req.ID, Text: text}
}

// continueVars stamps the owning handler onto the variables a Continue leaves
// behind. An omitted entry keeps the current one.
func continueVars(owner string, current Vars, cmd Command) Vars {
	vars := mergeVars(current, cmd.Vars)
	vars[VarHandler] = owner
	if cmd.Handoff != "" {
		vars[VarHandler] = cmd.Handoff
	}
	switch {
	case cmd.Entry != "":
		vars[VarEntry] = cmd.Entry
	case vars[VarEntry] == "" && current[VarEntry] != "":
		vars[VarEntry] = current[VarEntry]
	}
	return vars
}

// mergeVars returns the variables a command leaves behind. Nil command
// variables keep the current ones.
func mergeVars(current, next Vars) Vars {
	if next == nil {
		return current.Clone()
	}
	return next.Clone()
}
