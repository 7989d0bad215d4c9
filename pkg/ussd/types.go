package ussd

import "maps"

// Reserved session variable keys.
const (
	VarHandler = "handler"
	VarEntry   = "entry"
)

// DefaultEntry is the step label used when a session carries no entry.
const DefaultEntry = "Default"

// Gateway operation codes.
const (
	OpStart   = "pssr"
	OpRequest = "ussr"
	OpNotify  = "ussn"
	OpStop    = "stop"
)

// Field names used to carry session variables through the gateway.
const (
	SessionDataField = "sessiondata"
	CopyParamsField  = "copyparams"
)

// NetworkSessionPrefix marks session ids created by a network-initiated start.
const NetworkSessionPrefix = "USSDAPP"

// SessionState is the lifecycle state derived from the gateway operation.
type SessionState int

const (
	StateStart SessionState = iota + 1
	StateProgress
	StateStop
)

func (s SessionState) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateProgress:
		return "progress"
	case StateStop:
		return "stop"
	default:
		return "unknown"
	}
}

// Vars holds the session variables the gateway carries between callbacks.
type Vars map[string]string

// Clone returns an independent copy. A nil receiver yields an empty map.
func (v Vars) Clone() Vars {
	cp := make(Vars, len(v))
	maps.Copy(cp, v)
	return cp
}

// Handler returns the identifier of the handler owning the dialogue.
func (v Vars) Handler() string { return v[VarHandler] }

// Entry returns the next step label, or DefaultEntry when unset.
func (v Vars) Entry() string {
	if e := v[VarEntry]; e != "" {
		return e
	}
	return DefaultEntry
}

// User returns the variables without the reserved keys.
func (v Vars) User() Vars {
	cp := v.Clone()
	delete(cp, VarHandler)
	delete(cp, VarEntry)
	return cp
}

// Request is a single inbound gateway callback.
type Request struct {
	ID        string
	MSISDN    string
	Text      string
	Operation string
	Sync      bool

	Seq      string
	Code     string
	User     string
	HLR      string
	SCF      string
	MenuPath string

	// SessionData is the raw sessiondata field as received.
	SessionData string
	// Params is the full flat parameter set of the callback.
	Params map[string]string
}

// NetworkInitiated reports whether the session was started by StartFromNetwork.
func (r Request) NetworkInitiated() bool {
	return len(r.ID) >= len(NetworkSessionPrefix) && r.ID[:len(NetworkSessionPrefix)] == NetworkSessionPrefix
}

// RouteTable maps a dialed short code to a handler identifier.
// The "default" key is the fallback.
type RouteTable map[string]string

// DefaultRoute is the route table key used when no code matches.
const DefaultRoute = "default"

// Message is an outgoing message to the gateway.
type Message struct {
	Operation string
	ID        string
	MSISDN    string
	Text      string
	Vars      Vars
}

// Reply is the outcome of one callback.
type Reply struct {
	Message Message
	// Sync is true when Message must be written into the callback response.
	Sync bool
	// Ack is true when the callback needs only a bare acknowledgement.
	Ack bool
	// Terminal is true when the dialogue has ended.
	Terminal bool
}
