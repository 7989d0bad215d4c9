package menu

import (
	"context"

	"github.com/voicetyped/ussdmenu/pkg/ussd"
)

// EchoID is the registry id of the built-in echo test menu.
const EchoID = "echo"

// Echo is a test menu echoing every input into a history variable.
// "0" stops with a message, "00" stops with the default message and "000"
// stops with the generic error.
func Echo() ussd.Handler {
	step := func(_ context.Context, req ussd.Request, vars ussd.Vars) ussd.Command {
		switch req.Text {
		case "0":
			return ussd.Stop("Cancelled from network with message")
		case "00":
			return ussd.Stop("")
		case "000":
			return ussd.Stop(ussd.InternalErrorMessage)
		}
		if h := vars["history"]; h != "" {
			vars["history"] = h + "," + req.Text
		} else {
			vars["history"] = req.Text
		}
		return ussd.Continue(ussd.DefaultEntry,
			"USSD test: enter something to echo, 0 or 00 for cancel from network or just cancel the session\n\n"+
				"History: "+vars["history"], vars)
	}
	return &ussd.Menu{
		Start: func(ctx context.Context, req ussd.Request) ussd.Command {
			return step(ctx, req, ussd.Vars{})
		},
		JumpDefault: step,
		Steps:       map[string]ussd.StepFunc{ussd.DefaultEntry: step},
	}
}
