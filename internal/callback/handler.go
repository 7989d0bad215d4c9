// Package callback serves the gateway callback endpoint.
package callback

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/voicetyped/ussdmenu/pkg/gateway"
	"github.com/voicetyped/ussdmenu/pkg/ussd"
)

// maxCallbackBody bounds POST callback bodies.
const maxCallbackBody = 64 << 10

// Handler turns gateway callbacks into engine turns.
type Handler struct {
	engine *ussd.Engine
}

// NewHandler creates a callback handler.
func NewHandler(engine *ussd.Engine) *Handler {
	return &Handler{engine: engine}
}

// ServeHTTP accepts GET query or POST form callbacks.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxCallbackBody)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed callback", http.StatusBadRequest)
		return
	}

	params := make(map[string]string, len(r.Form))
	for k, v := range r.Form {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}

	reply, err := h.engine.Handle(r.Context(), params)
	if reply != nil {
		if err := gateway.WriteSync(w, reply); err != nil {
			slog.ErrorContext(r.Context(), "write callback reply failed", slog.String("error", err.Error()))
		}
		return
	}
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	w.WriteHeader(http.StatusOK)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ussd.ErrTransport):
		return http.StatusBadGateway
	case errors.Is(err, ussd.ErrValidation),
		errors.Is(err, ussd.ErrProtocol),
		errors.Is(err, ussd.ErrDecoding):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
