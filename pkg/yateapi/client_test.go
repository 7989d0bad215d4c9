package yateapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func apiServer(t *testing.T, status int, answer string, seen *apiRequest, secret *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api.php" {
			t.Errorf("path = %q, want /api.php", r.URL.Path)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content type = %q", r.Header.Get("Content-Type"))
		}
		if secret != nil {
			*secret = r.Header.Get("X-Authentication")
		}
		if seen != nil {
			if err := json.NewDecoder(r.Body).Decode(seen); err != nil {
				t.Errorf("decode body: %v", err)
			}
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(answer))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRequestSuccess(t *testing.T) {
	var (
		seen   apiRequest
		secret string
	)
	srv := apiServer(t, http.StatusOK, `{"code":0,"subscribers":3}`, &seen, &secret)

	c := NewClient(Nodes{
		DefaultNode: {URI: "http://unused.invalid", Secret: "default"},
		"hss":       {URI: srv.URL, Secret: "hss-secret"},
	}, 0)

	res, err := c.Request(t.Context(), "get_subscribers", map[string]any{"imsi": "001"}, "hss")
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if res.Fields["subscribers"] != float64(3) {
		t.Errorf("fields = %v", res.Fields)
	}
	if secret != "hss-secret" {
		t.Errorf("secret = %q", secret)
	}
	if seen.Request != "get_subscribers" || seen.Node != "hss" || seen.Params["imsi"] != "001" {
		t.Errorf("request body = %+v", seen)
	}
}

func TestRequestFallsBackToDefaultNode(t *testing.T) {
	var seen apiRequest
	srv := apiServer(t, http.StatusOK, `{"code":0}`, &seen, nil)
	c := NewClient(Nodes{DefaultNode: {URI: srv.URL, Secret: "s"}}, 0)

	if _, err := c.Request(t.Context(), "node_status", nil, "ucn"); err != nil {
		t.Fatalf("Request: %v", err)
	}
	if seen.Node != "ucn" {
		t.Errorf("node = %q, want it sent even when the default endpoint is used", seen.Node)
	}
	if seen.Params != nil {
		t.Errorf("params = %v, want omitted", seen.Params)
	}
}

func TestRequestErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		answer string
		want   string
	}{
		{"yate error", http.StatusOK, `{"code":402,"message":"Missing IMSI"}`, "yate API error: Yate error: Missing IMSI"},
		{"yate error no message", http.StatusOK, `{"code":1}`, "yate API error: Yate error: unknown error"},
		{"no code", http.StatusOK, `{"message":"x"}`, "yate API error: no status code in the answer"},
		{"bad json", http.StatusOK, `not json`, "yate API error: can't decode JSON data"},
		{"http error", http.StatusInternalServerError, ``, "yate API error: HTTP error 500"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := apiServer(t, tt.status, tt.answer, nil, nil)
			c := NewClient(Nodes{DefaultNode: {URI: srv.URL}}, 0)
			_, err := c.Request(t.Context(), "x", nil, "")
			if !errors.Is(err, ErrAPI) {
				t.Fatalf("err = %v, want ErrAPI", err)
			}
			if err.Error() != tt.want {
				t.Errorf("err = %q, want %q", err.Error(), tt.want)
			}
		})
	}
}

func TestRequestNoNode(t *testing.T) {
	c := NewClient(Nodes{"hss": {URI: "http://x"}}, 0)
	if _, err := c.Request(t.Context(), "x", nil, "ucn"); !errors.Is(err, ErrNoNode) {
		t.Errorf("err = %v, want ErrNoNode", err)
	}
}

func TestLoadNodes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nodes.yaml")
	content := "\"*\":\n  uri: http://10.0.0.1\n  secret: s1\nhss:\n  uri: http://10.0.0.2\n  secret: s2\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	nodes, err := LoadNodes(path)
	if err != nil {
		t.Fatalf("LoadNodes: %v", err)
	}
	if nodes[DefaultNode].URI != "http://10.0.0.1" || nodes["hss"].Secret != "s2" {
		t.Errorf("nodes = %+v", nodes)
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("hss:\n  secret: x\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadNodes(bad); err == nil {
		t.Error("expected error for node without uri")
	}
}
