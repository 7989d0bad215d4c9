// Package menu provides the USSD menu handlers served by the engine:
// declarative YAML menus, menus delegated to remote hooks, and built-in
// Go menus.
package menu

import (
	"fmt"

	"github.com/voicetyped/ussdmenu/pkg/hooks"
	"github.com/voicetyped/ussdmenu/pkg/ussd"
)

// AnyInput is the option input matching any text.
const AnyInput = "*"

// DefaultInvalid is prepended to the prompt when input matches no option.
const DefaultInvalid = "Invalid choice"

// Definition is a YAML-mappable menu.
//
//	id: info
//	entries:
//	  Default:
//	    prompt: "1. Balance\n2. Exit"
//	    options:
//	      - input: "1"
//	        next: Balance
//	      - input: "2"
//	        next: Bye
//	  Balance:
//	    prompt: "Balance for {{.MSISDN}} is 0"
//	    stop: true
//	  Bye:
//	    prompt: "Bye!"
//	    stop: true
//
// A definition with a hook delegates every invocation to a remote endpoint
// and carries no entries.
type Definition struct {
	ID          string            `yaml:"id"          json:"id"`
	Description string            `yaml:"description" json:"description,omitempty"`
	Hook        *hooks.HookConfig `yaml:"hook"        json:"hook,omitempty"`
	Entries     map[string]Entry  `yaml:"entries"     json:"entries,omitempty"`
}

// Entry is one screen of a declarative menu.
type Entry struct {
	Prompt  string   `yaml:"prompt"  json:"prompt"`
	Stop    bool     `yaml:"stop"    json:"stop,omitempty"`
	Options []Option `yaml:"options" json:"options,omitempty"`
	Invalid string   `yaml:"invalid" json:"invalid,omitempty"`
}

// Option maps subscriber input to the next screen or to another handler.
type Option struct {
	Input   string            `yaml:"input"   json:"input"`
	Next    string            `yaml:"next"    json:"next,omitempty"`
	Jump    string            `yaml:"jump"    json:"jump,omitempty"`
	Entry   string            `yaml:"entry"   json:"entry,omitempty"`
	Capture string            `yaml:"capture" json:"capture,omitempty"`
	Set     map[string]string `yaml:"set"     json:"set,omitempty"`
}

// Validate checks the definition for consistency.
func (d *Definition) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("menu: id is required")
	}
	if d.ID == ussd.NoopHandlerID {
		return fmt.Errorf("menu %q: id is reserved", d.ID)
	}

	if d.Hook != nil {
		if d.Hook.URL == "" {
			return fmt.Errorf("menu %q: hook url is required", d.ID)
		}
		if len(d.Entries) > 0 {
			return fmt.Errorf("menu %q: hook menus cannot define entries", d.ID)
		}
		return nil
	}

	if _, ok := d.Entries[ussd.DefaultEntry]; !ok {
		return fmt.Errorf("menu %q: entry %q is required", d.ID, ussd.DefaultEntry)
	}

	for name, e := range d.Entries {
		if e.Stop && len(e.Options) > 0 {
			return fmt.Errorf("menu %q entry %q: stop entries cannot have options", d.ID, name)
		}
		if err := checkTemplate(e.Prompt); err != nil {
			return fmt.Errorf("menu %q entry %q: prompt: %w", d.ID, name, err)
		}
		for i, o := range e.Options {
			if o.Input == "" {
				return fmt.Errorf("menu %q entry %q option %d: input is required", d.ID, name, i)
			}
			switch {
			case o.Next != "" && o.Jump != "":
				return fmt.Errorf("menu %q entry %q option %d: next and jump are exclusive", d.ID, name, i)
			case o.Next == "" && o.Jump == "":
				return fmt.Errorf("menu %q entry %q option %d: next or jump is required", d.ID, name, i)
			case o.Next != "":
				if _, ok := d.Entries[o.Next]; !ok {
					return fmt.Errorf("menu %q entry %q option %d: next %q not found", d.ID, name, i, o.Next)
				}
				if o.Entry != "" {
					return fmt.Errorf("menu %q entry %q option %d: entry is only valid with jump", d.ID, name, i)
				}
			}
			if o.Capture == ussd.VarHandler || o.Capture == ussd.VarEntry {
				return fmt.Errorf("menu %q entry %q option %d: cannot capture into %q", d.ID, name, i, o.Capture)
			}
			for k, v := range o.Set {
				if err := checkTemplate(v); err != nil {
					return fmt.Errorf("menu %q entry %q option %d: set %q: %w", d.ID, name, i, k, err)
				}
			}
		}
	}
	return nil
}

// match returns the first option accepting text. Exact inputs win over "*".
func (e Entry) match(text string) (Option, bool) {
	for _, o := range e.Options {
		if o.Input == text {
			return o, true
		}
	}
	for _, o := range e.Options {
		if o.Input == AnyInput {
			return o, true
		}
	}
	return Option{}, false
}
