package ussd

import "fmt"

var requiredFields = []string{"id", "operation", "sync", "msisdn"}

// Session is a classified callback.
type Session struct {
	State   SessionState
	Request Request
	Vars    Vars
}

// InSession reports whether the dialogue is open from the gateway's point of view.
func (s Session) InSession() bool {
	return s.State == StateStart || s.State == StateProgress
}

// Classify validates a raw callback parameter set and derives the session state
// and carried variables. It has no side effects.
//
// On ErrBadSessionData the returned Session still carries the request and state so
// the caller can terminate the open dialogue.
func Classify(params map[string]string) (Session, error) {
	for _, f := range requiredFields {
		if _, ok := params[f]; !ok {
			return Session{}, fmt.Errorf("%w: %q", ErrMissingFields, f)
		}
	}

	state, err := stateFromOperation(params["operation"])
	if err != nil {
		return Session{}, err
	}

	s := Session{
		State:   state,
		Request: requestFromParams(params),
		Vars:    Vars{},
	}

	vars, err := DecodeVars(params[SessionDataField])
	if err != nil {
		return s, err
	}
	s.Vars = vars
	return s, nil
}

func stateFromOperation(op string) (SessionState, error) {
	switch op {
	case OpStart:
		return StateStart, nil
	case OpRequest:
		return StateProgress, nil
	case OpStop:
		return StateStop, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownOperation, op)
	}
}

func requestFromParams(params map[string]string) Request {
	cp := make(map[string]string, len(params))
	for k, v := range params {
		if k == SessionDataField {
			continue
		}
		cp[k] = v
	}
	return Request{
		ID:          params["id"],
		MSISDN:      params["msisdn"],
		Text:        params["text"],
		Operation:   params["operation"],
		Sync:        params["sync"] == "true",
		Seq:         params["seq"],
		Code:        params["code"],
		User:        params["user"],
		HLR:         params["hlr"],
		SCF:         params["scf"],
		MenuPath:    params["menu_path"],
		SessionData: params[SessionDataField],
		Params:      cp,
	}
}
