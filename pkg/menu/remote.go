package menu

import (
	"context"
	"log/slog"

	"github.com/voicetyped/ussdmenu/pkg/hooks"
	"github.com/voicetyped/ussdmenu/pkg/ussd"
)

// Remote delegates every invocation to an HTTP menu hook.
type Remote struct {
	id   string
	cfg  hooks.HookConfig
	exec *hooks.Executor
}

var _ ussd.Handler = (*Remote)(nil)

// NewRemote creates a handler calling the hook described by cfg.
func NewRemote(id string, cfg hooks.HookConfig, exec *hooks.Executor) *Remote {
	return &Remote{id: id, cfg: cfg, exec: exec}
}

func (r *Remote) OnStartFromNetwork(ctx context.Context, req ussd.Request) ussd.Command {
	return r.call(ctx, hooks.InvokeNetworkStart, "", req, nil)
}

func (r *Remote) OnStart(ctx context.Context, req ussd.Request) ussd.Command {
	return r.call(ctx, hooks.InvokeStart, "", req, nil)
}

func (r *Remote) Step(ctx context.Context, entry string, req ussd.Request, vars ussd.Vars) ussd.Command {
	return r.call(ctx, hooks.InvokeStep, entry, req, vars)
}

func (r *Remote) OnJumpDefault(ctx context.Context, req ussd.Request, vars ussd.Vars) ussd.Command {
	return r.call(ctx, hooks.InvokeJumpDefault, "", req, vars)
}

func (r *Remote) call(ctx context.Context, inv hooks.Invocation, entry string, req ussd.Request, vars ussd.Vars) ussd.Command {
	resp, err := r.exec.Execute(ctx, r.cfg, hooks.HookRequest{
		SessionID:  req.ID,
		MSISDN:     req.MSISDN,
		Invocation: inv,
		Entry:      entry,
		Text:       req.Text,
		Variables:  vars.User(),
		Params:     req.Params,
	})
	if err != nil {
		slog.ErrorContext(ctx, "menu hook failed",
			slog.String("menu", r.id),
			slog.String("invocation", string(inv)),
			slog.String("error", err.Error()))
		return ussd.Stop(ussd.InternalErrorMessage)
	}
	return commandFromHook(resp, vars)
}

// commandFromHook converts a validated hook answer. When the hook omits
// variables the session variables stay unchanged; otherwise they replace the
// user variables while the current entry is kept.
func commandFromHook(resp *hooks.HookResponse, current ussd.Vars) ussd.Command {
	var vars ussd.Vars
	if resp.Variables != nil {
		vars = ussd.Vars(resp.Variables).User()
		if e, ok := current[ussd.VarEntry]; ok {
			vars[ussd.VarEntry] = e
		}
	}
	switch resp.Command {
	case hooks.CommandContinue:
		return ussd.Continue(resp.Entry, resp.Message, vars).WithHandoff(resp.Handoff)
	case hooks.CommandJump:
		return ussd.Jump(resp.Target, resp.Entry, vars)
	default:
		return ussd.Stop(resp.Message)
	}
}
