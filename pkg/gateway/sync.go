package gateway

import (
	"io"
	"net/http"

	"github.com/voicetyped/ussdmenu/pkg/ussd"
)

// WriteSync writes a callback result into the HTTP response. Sync replies put
// the operation and session data in headers and the text in the body. Async
// replies and gateway stops are acknowledged with an empty 200.
func WriteSync(w http.ResponseWriter, r *ussd.Reply) error {
	if r == nil || r.Ack || !r.Sync {
		w.WriteHeader(http.StatusOK)
		return nil
	}

	h := w.Header()
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("operation", r.Message.Operation)
	if len(r.Message.Vars) > 0 {
		enc, err := ussd.EncodeVarsURL(r.Message.Vars)
		if err != nil {
			return err
		}
		h.Set(ussd.CopyParamsField, ussd.SessionDataField)
		h.Set(ussd.SessionDataField, enc)
	}
	w.WriteHeader(http.StatusOK)
	_, err := io.WriteString(w, r.Message.Text)
	return err
}
