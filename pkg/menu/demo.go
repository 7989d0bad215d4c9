package menu

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/voicetyped/ussdmenu/pkg/ussd"
	"github.com/voicetyped/ussdmenu/pkg/yateapi"
)

// DemoID is the registry id of the built-in demo menu.
const DemoID = "demo"

// Demo is a coded menu showing every engine feature: session variables,
// request fields, custom and default stops, and a call to the core network API.
type Demo struct {
	// API is optional; without it the network status item reports it is unavailable.
	API *yateapi.Client
	// StatusRequest is the API request used by the network status item.
	StatusRequest string
	StatusNode    string
}

// NewDemo creates the demo menu.
func NewDemo(api *yateapi.Client) *Demo {
	return &Demo{API: api, StatusRequest: "get_node_status"}
}

// Handler returns the demo as a step table.
func (d *Demo) Handler() ussd.Handler {
	return &ussd.Menu{
		Start: func(_ context.Context, _ ussd.Request) ussd.Command {
			return d.main(nil)
		},
		JumpDefault: func(_ context.Context, _ ussd.Request, vars ussd.Vars) ussd.Command {
			return d.main(vars)
		},
		Steps: map[string]ussd.StepFunc{
			ussd.DefaultEntry: func(_ context.Context, _ ussd.Request, vars ussd.Vars) ussd.Command {
				return d.main(vars)
			},
			"MainMenuChoice":   d.mainChoice,
			"ShowMSISDNChoice": d.showMSISDNChoice,
			"VarsMainChoice":   d.varsChoice,
			"StatusChoice": func(_ context.Context, req ussd.Request, vars ussd.Vars) ussd.Command {
				if req.Text == "0" {
					return d.main(vars)
				}
				return ussd.Stop("")
			},
		},
	}
}

func (d *Demo) main(vars ussd.Vars) ussd.Command {
	return ussd.Continue("MainMenuChoice", "Demo main menu\n\n"+
		"1. Manage session vars\n"+
		"2. Show MSISDN\n"+
		"3. End session with custom message\n"+
		"4. End session with predefined message\n"+
		"5. Network status\n\n"+
		"Can't wait for your choice!", vars)
}

func (d *Demo) mainChoice(ctx context.Context, req ussd.Request, vars ussd.Vars) ussd.Command {
	switch req.Text {
	case "1":
		return d.varsMain(vars)
	case "2":
		return ussd.Continue("ShowMSISDNChoice", "Your MSISDN is +"+req.MSISDN+"\n\n"+
			"0. Return to main menu\n\n"+
			"Any other input to exit", vars)
	case "3":
		return ussd.Stop("USSD dialogue stopped with message\n\n Bye!")
	case "4":
		return ussd.Stop("")
	case "5":
		return d.status(ctx, vars)
	default:
		return d.main(vars)
	}
}

func (d *Demo) showMSISDNChoice(_ context.Context, req ussd.Request, vars ussd.Vars) ussd.Command {
	if req.Text == "0" {
		return d.main(vars)
	}
	return ussd.Stop("Thank you for visiting.\n\nAt least you know your MSISDN is +" + req.MSISDN + "\n\nBye!")
}

func (d *Demo) varsMain(vars ussd.Vars) ussd.Command {
	user := vars.User()
	keys := make([]string, 0, len(user))
	for k := range user {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var b strings.Builder
	b.WriteString("Manage session vars\n\n")
	if len(keys) == 0 {
		b.WriteString("No session vars defined\n")
	}
	for _, k := range keys {
		fmt.Fprintf(&b, "['%s']='%s'\n", k, user[k])
	}
	b.WriteString("\nSend\n{name}={value} to add or edit\n{name} to delete\n'0' to return")
	return ussd.Continue("VarsMainChoice", b.String(), vars)
}

func (d *Demo) varsChoice(_ context.Context, req ussd.Request, vars ussd.Vars) ussd.Command {
	if req.Text == "0" {
		return d.main(vars)
	}
	key, val, hasVal := strings.Cut(req.Text, "=")
	if key != ussd.VarHandler && key != ussd.VarEntry && key != "" {
		if hasVal {
			vars[key] = val
		} else {
			delete(vars, key)
		}
	}
	return d.varsMain(vars)
}

func (d *Demo) status(ctx context.Context, vars ussd.Vars) ussd.Command {
	const footer = "\n\n0. Return to main menu\n\nAny other input to exit"
	if d.API == nil {
		return ussd.Continue("StatusChoice", "Network status is not available"+footer, vars)
	}

	res, err := d.API.Request(ctx, d.StatusRequest, nil, d.StatusNode)
	if err != nil {
		slog.ErrorContext(ctx, "demo network status failed", slog.String("error", err.Error()))
		return ussd.Continue("StatusChoice", "Network status request failed"+footer, vars)
	}

	keys := make([]string, 0, len(res.Fields))
	for k := range res.Fields {
		if k != "code" {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	var b strings.Builder
	b.WriteString("Network status: OK\n")
	for _, k := range keys {
		fmt.Fprintf(&b, "\n%s: %v", k, res.Fields[k])
	}
	return ussd.Continue("StatusChoice", b.String()+footer, vars)
}
