package menu

import (
	"github.com/voicetyped/ussdmenu/pkg/ussd"
	"github.com/voicetyped/ussdmenu/pkg/yateapi"
)

// RegisterBuiltins registers the coded menus. api may be nil.
func RegisterBuiltins(reg *ussd.Registry, api *yateapi.Client) error {
	demo := NewDemo(api)
	if err := reg.Register(DemoID, demo.Handler); err != nil {
		return err
	}
	return reg.Register(EchoID, Echo)
}
