package menu

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"
	"text/template"
)

const maxPromptOutput = 4 * 1024

var promptCache sync.Map

// PromptData is available in prompt and set templates.
type PromptData struct {
	SessionID string
	MSISDN    string
	Text      string
	Vars      map[string]string
}

// limitWriter caps template output.
type limitWriter struct {
	w       io.Writer
	n       int
	written int
}

func (lw *limitWriter) Write(p []byte) (int, error) {
	if lw.written+len(p) > lw.n {
		return 0, fmt.Errorf("prompt output exceeds %d bytes", lw.n)
	}
	n, err := lw.w.Write(p)
	lw.written += n
	return n, err
}

// Render evaluates a prompt template. Plain strings are returned unchanged.
func Render(tmpl string, data PromptData) (string, error) {
	if !strings.Contains(tmpl, "{{") {
		return tmpl, nil
	}

	var t *template.Template
	if cached, ok := promptCache.Load(tmpl); ok {
		t = cached.(*template.Template)
	} else {
		parsed, err := template.New("prompt").Option("missingkey=zero").Parse(tmpl)
		if err != nil {
			return "", err
		}
		promptCache.Store(tmpl, parsed)
		t = parsed
	}

	var buf bytes.Buffer
	if err := t.Execute(&limitWriter{w: &buf, n: maxPromptOutput}, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// checkTemplate reports parse errors at load time.
func checkTemplate(tmpl string) error {
	if !strings.Contains(tmpl, "{{") {
		return nil
	}
	_, err := template.New("prompt").Parse(tmpl)
	return err
}
