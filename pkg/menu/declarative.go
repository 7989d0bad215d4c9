package menu

import (
	"context"
	"log/slog"

	"github.com/voicetyped/ussdmenu/pkg/ussd"
)

// Declarative serves a menu Definition. Rendering an entry shows its prompt
// and waits for input at the same entry; the step for that entry matches the
// input against the entry's options.
type Declarative struct {
	def *Definition
}

var _ ussd.Handler = (*Declarative)(nil)

// NewDeclarative creates a handler for a validated definition.
func NewDeclarative(def *Definition) *Declarative {
	return &Declarative{def: def}
}

func (d *Declarative) OnStartFromNetwork(ctx context.Context, req ussd.Request) ussd.Command {
	return d.render(ctx, ussd.DefaultEntry, "", req, ussd.Vars{})
}

func (d *Declarative) OnStart(ctx context.Context, req ussd.Request) ussd.Command {
	return d.render(ctx, ussd.DefaultEntry, "", req, ussd.Vars{})
}

func (d *Declarative) OnJumpDefault(ctx context.Context, req ussd.Request, vars ussd.Vars) ussd.Command {
	return d.render(ctx, ussd.DefaultEntry, "", req, vars)
}

func (d *Declarative) Step(ctx context.Context, entry string, req ussd.Request, vars ussd.Vars) ussd.Command {
	e, ok := d.def.Entries[entry]
	if !ok {
		return ussd.Unimplemented(entry)
	}

	opt, ok := e.match(req.Text)
	if !ok {
		invalid := e.Invalid
		if invalid == "" {
			invalid = DefaultInvalid
		}
		return d.render(ctx, entry, invalid, req, vars)
	}

	if opt.Capture != "" {
		vars[opt.Capture] = req.Text
	}
	for k, v := range opt.Set {
		if k == ussd.VarHandler || k == ussd.VarEntry {
			continue
		}
		val, err := Render(v, promptData(req, vars))
		if err != nil {
			slog.ErrorContext(ctx, "menu variable template failed",
				slog.String("menu", d.def.ID),
				slog.String("var", k),
				slog.String("error", err.Error()))
			return ussd.Stop(ussd.InternalErrorMessage)
		}
		vars[k] = val
	}

	if opt.Jump != "" {
		return ussd.Jump(opt.Jump, opt.Entry, vars)
	}
	return d.render(ctx, opt.Next, "", req, vars)
}

func (d *Declarative) render(ctx context.Context, entry, notice string, req ussd.Request, vars ussd.Vars) ussd.Command {
	e, ok := d.def.Entries[entry]
	if !ok {
		return ussd.Unimplemented(entry)
	}

	text, err := Render(e.Prompt, promptData(req, vars))
	if err != nil {
		slog.ErrorContext(ctx, "menu prompt template failed",
			slog.String("menu", d.def.ID),
			slog.String("entry", entry),
			slog.String("error", err.Error()))
		return ussd.Stop(ussd.InternalErrorMessage)
	}
	if notice != "" {
		text = notice + "\n\n" + text
	}

	if e.Stop {
		return ussd.Stop(text)
	}
	return ussd.Continue(entry, text, vars)
}

func promptData(req ussd.Request, vars ussd.Vars) PromptData {
	return PromptData{
		SessionID: req.ID,
		MSISDN:    req.MSISDN,
		Text:      req.Text,
		Vars:      vars.User(),
	}
}
