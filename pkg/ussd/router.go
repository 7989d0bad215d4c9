package ussd

import "regexp"

// NoopHandlerID identifies the built-in handler used when nothing else matches.
const NoopHandlerID = "noop"

// dialCode matches the digits between the leading '*' and the next non-digit.
var dialCode = regexp.MustCompile(`^\*([0-9]+)`)

// DialCode extracts the dial code from text. The second result is false when
// text does not start with '*' followed by digits.
func DialCode(text string) (string, bool) {
	m := dialCode.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Route resolves the handler identifier for a new session.
func Route(table RouteTable, text string) (string, error) {
	def, hasDefault := table[DefaultRoute]

	code, ok := DialCode(text)
	if !ok {
		if hasDefault && def != "" {
			return def, nil
		}
		return "", ErrNoRoute
	}

	if id, found := table[code]; found && id != "" {
		return id, nil
	}
	if hasDefault && def != "" {
		return def, nil
	}
	return NoopHandlerID, nil
}

// stripDialCode removes the leading service code so that "*999*100#" routes as
// "*100#". Used in development mode where the gateway exposes a single code.
func stripDialCode(text string) (string, bool) {
	m := devText.FindStringSubmatch(text)
	if m == nil || m[1] == "#" {
		return text, false
	}
	return m[1], true
}

var devText = regexp.MustCompile(`^\*[0-9]+(.+)$`)
