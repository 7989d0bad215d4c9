package hooks

// HookConfig describes how to call an external menu endpoint.
type HookConfig struct {
	URL        string            `yaml:"url"         json:"url"`
	AuthType   string            `yaml:"auth_type"   json:"auth_type"`   // "bearer", "hmac", "none"
	AuthSecret string            `yaml:"auth_secret" json:"auth_secret"` // token or HMAC key
	TimeoutSec int               `yaml:"timeout_sec" json:"timeout_sec"`
	Headers    map[string]string `yaml:"headers"     json:"headers,omitempty"`
}

// Invocation names the handler capability a hook call stands for.
type Invocation string

const (
	InvokeStart        Invocation = "start"
	InvokeNetworkStart Invocation = "network_start"
	InvokeStep         Invocation = "step"
	InvokeJumpDefault  Invocation = "jump_default"
)

// HookRequest is the payload sent to a menu hook.
type HookRequest struct {
	SessionID  string            `json:"session_id"`
	MSISDN     string            `json:"msisdn"`
	Invocation Invocation        `json:"invocation"`
	Entry      string            `json:"entry,omitempty"`
	Text       string            `json:"text,omitempty"`
	Variables  map[string]string `json:"variables,omitempty"`
	Params     map[string]string `json:"params,omitempty"`
}

// Commands a hook may answer with.
const (
	CommandContinue = "continue"
	CommandStop     = "stop"
	CommandJump     = "jump"
)

// HookResponse is the command a menu hook answers with.
type HookResponse struct {
	Command   string            `json:"command"`
	Message   string            `json:"message,omitempty"`
	Entry     string            `json:"entry,omitempty"`
	Target    string            `json:"target,omitempty"`
	Handoff   string            `json:"handoff,omitempty"`
	Variables map[string]string `json:"variables,omitempty"`
}
