package ussd

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// EncodeVars serializes session variables to JSON. Keys are emitted in sorted order.
func EncodeVars(v Vars) (string, error) {
	raw, err := json.Marshal(map[string]string(v))
	if err != nil {
		return "", fmt.Errorf("encode session data: %w", err)
	}
	return string(raw), nil
}

// EncodeVarsURL serializes session variables to URL-encoded JSON for header transport.
func EncodeVarsURL(v Vars) (string, error) {
	raw, err := EncodeVars(v)
	if err != nil {
		return "", err
	}
	return url.QueryEscape(raw), nil
}

// DecodeVars parses a sessiondata value. The gateway echoes it back the way it
// was delivered: URL-encoded JSON when it came from a sync reply header, plain
// JSON when it came from an async form post. A value starting with '{' is plain
// JSON and is not unescaped, so '+' and '%' inside it survive.
func DecodeVars(raw string) (Vars, error) {
	if raw == "" {
		return Vars{}, nil
	}

	data := raw
	if !strings.HasPrefix(strings.TrimSpace(raw), "{") {
		unescaped, err := url.QueryUnescape(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadSessionData, err)
		}
		data = unescaped
	}

	var v Vars
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSessionData, err)
	}
	if v == nil {
		return nil, fmt.Errorf("%w: null session data", ErrBadSessionData)
	}
	return v, nil
}
