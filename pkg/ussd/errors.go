package ussd

import (
	"errors"
	"fmt"
)

// Error kinds. Specific errors wrap one of these so callers can branch with errors.Is.
var (
	ErrValidation        = errors.New("validation error")
	ErrRouting           = errors.New("routing error")
	ErrHandlerResolution = errors.New("handler resolution error")
	ErrTransport         = errors.New("transport error")
	ErrDecoding          = errors.New("decoding error")
	ErrProtocol          = errors.New("protocol error")
)

var (
	ErrMissingFields    = fmt.Errorf("%w: required fields missing in callback", ErrValidation)
	ErrUnknownOperation = fmt.Errorf("%w: unknown or unsupported operation", ErrProtocol)
	ErrBadSessionData   = fmt.Errorf("%w: cannot decode session data", ErrDecoding)
	ErrNoRoute          = fmt.Errorf("%w: no dial code in text and no default route", ErrRouting)
	ErrUnknownHandler   = fmt.Errorf("%w: unknown handler", ErrHandlerResolution)
	ErrNoHandlerVar     = fmt.Errorf("%w: handler is not set to continue session", ErrHandlerResolution)
	ErrHandlerFault     = fmt.Errorf("%w: handler fault", ErrHandlerResolution)
	ErrJumpDepth        = fmt.Errorf("%w: jump chain too deep", ErrProtocol)
	ErrBadCommand       = fmt.Errorf("%w: unexpected command", ErrProtocol)
	ErrNoSender         = fmt.Errorf("%w: no gateway sender configured", ErrTransport)
)

// Recoverable reports whether err is downgraded to a graceful stop at the engine boundary.
func Recoverable(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrDecoding) ||
		errors.Is(err, ErrRouting) ||
		errors.Is(err, ErrHandlerResolution)
}
