package ussd

import (
	"context"
	"fmt"
)

// CommandKind selects what the engine does with a handler result.
type CommandKind int

const (
	KindStop CommandKind = iota
	KindContinue
	KindJump
)

func (k CommandKind) String() string {
	switch k {
	case KindContinue:
		return "continue"
	case KindStop:
		return "stop"
	case KindJump:
		return "jump"
	default:
		return "unknown"
	}
}

// Command is the result of one handler invocation.
type Command struct {
	Kind CommandKind
	// Entry is the step to run on re-entry (Continue) or in the jump target (Jump).
	Entry   string
	Message string
	// Target is the handler to jump to.
	Target string
	// Handoff passes ownership of a continuing session to another handler.
	Handoff string
	Vars    Vars
}

// Continue keeps the session open. An empty entry leaves the current one unchanged.
func Continue(entry, message string, vars Vars) Command {
	return Command{Kind: KindContinue, Entry: entry, Message: message, Vars: vars}
}

// Stop terminates the dialogue with message.
func Stop(message string) Command {
	return Command{Kind: KindStop, Message: message}
}

// Jump re-dispatches to target within the same callback. An empty entry runs the
// target's OnJumpDefault.
func Jump(target, entry string, vars Vars) Command {
	return Command{Kind: KindJump, Target: target, Entry: entry, Vars: vars}
}

// WithHandoff hands the continuing session to another handler.
func (c Command) WithHandoff(handlerID string) Command {
	c.Handoff = handlerID
	return c
}

// Unimplemented is the result of invoking a capability a handler does not have.
func Unimplemented(name string) Command {
	return Stop(fmt.Sprintf("USSD function %s is not implemented", name))
}

// Handler is one menu application under the engine.
type Handler interface {
	// OnStartFromNetwork starts a network-initiated dialogue.
	OnStartFromNetwork(ctx context.Context, req Request) Command
	// OnStart starts a subscriber-initiated dialogue.
	OnStart(ctx context.Context, req Request) Command
	// Step runs the named entry of a continuing dialogue.
	Step(ctx context.Context, entry string, req Request, vars Vars) Command
	// OnJumpDefault runs when another handler jumps here without an entry.
	OnJumpDefault(ctx context.Context, req Request, vars Vars) Command
}

// StartFunc starts a dialogue.
type StartFunc func(ctx context.Context, req Request) Command

// StepFunc runs one step of a dialogue.
type StepFunc func(ctx context.Context, req Request, vars Vars) Command

// Menu is a Handler built from an explicit table of step functions.
// Missing capabilities resolve to Unimplemented.
type Menu struct {
	Start            StartFunc
	StartFromNetwork StartFunc
	JumpDefault      StepFunc
	Steps            map[string]StepFunc
}

var _ Handler = (*Menu)(nil)

func (m *Menu) OnStartFromNetwork(ctx context.Context, req Request) Command {
	if m.StartFromNetwork != nil {
		return m.StartFromNetwork(ctx, req)
	}
	return m.OnStart(ctx, req)
}

func (m *Menu) OnStart(ctx context.Context, req Request) Command {
	if m.Start == nil {
		return Unimplemented("start")
	}
	return m.Start(ctx, req)
}

func (m *Menu) Step(ctx context.Context, entry string, req Request, vars Vars) Command {
	fn, ok := m.Steps[entry]
	if !ok || fn == nil {
		return Unimplemented(entry)
	}
	return fn(ctx, req, vars)
}

func (m *Menu) OnJumpDefault(ctx context.Context, req Request, vars Vars) Command {
	if m.JumpDefault == nil {
		return Unimplemented("jump")
	}
	return m.JumpDefault(ctx, req, vars)
}

// noopHandler stops every dialogue reporting the dialed function as missing.
func noopHandler() Handler {
	stop := func(req Request) Command { return Unimplemented(req.Text) }
	return &Menu{
		Start: func(_ context.Context, req Request) Command { return stop(req) },
		JumpDefault: func(_ context.Context, req Request, _ Vars) Command {
			return stop(req)
		},
		Steps: map[string]StepFunc{
			DefaultEntry: func(_ context.Context, req Request, _ Vars) Command { return stop(req) },
		},
	}
}
