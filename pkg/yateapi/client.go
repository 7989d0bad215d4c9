// Package yateapi is a client for the Yate core JSON API.
package yateapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultNode is the node config used when no exact node entry exists.
const DefaultNode = "*"

var (
	ErrNoNode = errors.New("no API config for node")
	ErrAPI    = errors.New("yate API error")
)

// Node is the endpoint of one Yate component.
type Node struct {
	URI    string `yaml:"uri"`
	Secret string `yaml:"secret"`
}

// Nodes maps node names (ucn, hss, ...) to endpoints. The "*" entry is the fallback.
type Nodes map[string]Node

// LoadNodes reads a YAML node file.
//
//	"*":
//	  uri: http://10.0.0.1
//	  secret: MobileAPIsecret
//	hss:
//	  uri: http://10.0.0.2
//	  secret: MobileAPIsecret-hss
func LoadNodes(path string) (Nodes, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read API nodes file %q: %w", path, err)
	}
	var nodes Nodes
	if err := yaml.Unmarshal(data, &nodes); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	if nodes == nil {
		nodes = Nodes{}
	}
	for name, n := range nodes {
		if n.URI == "" {
			return nil, fmt.Errorf("node %q: uri is required", name)
		}
	}
	return nodes, nil
}

// Result is a successful API answer.
type Result struct {
	Code    int             `json:"code"`
	Message string          `json:"message,omitempty"`
	Fields  map[string]any  `json:"-"`
	Raw     json.RawMessage `json:"-"`
}

// Client calls the Yate JSON API.
type Client struct {
	nodes      Nodes
	httpClient *http.Client
}

// NewClient creates an API client over the given nodes.
func NewClient(nodes Nodes, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		nodes:      nodes,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type apiRequest struct {
	Request string         `json:"request"`
	Node    string         `json:"node,omitempty"`
	Params  map[string]any `json:"params,omitempty"`
}

// Request performs one API request. node selects the endpoint and is sent in
// the body when not empty, even if the "*" endpoint is used.
func (c *Client) Request(ctx context.Context, request string, params map[string]any, node string) (*Result, error) {
	n, err := c.endpoint(node)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(apiRequest{Request: request, Node: node, Params: params})
	if err != nil {
		return nil, fmt.Errorf("marshal API request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URI+"/api.php", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Authentication", n.Secret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.ErrorContext(ctx, "yate API HTTP error",
			slog.String("request", request),
			slog.String("node", node),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: HTTP error %w", ErrAPI, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", ErrAPI, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.ErrorContext(ctx, "yate API HTTP error",
			slog.String("request", request),
			slog.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("%w: HTTP error %d", ErrAPI, resp.StatusCode)
	}

	return decodeResult(ctx, raw)
}

func decodeResult(ctx context.Context, raw []byte) (*Result, error) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		slog.ErrorContext(ctx, "cannot decode yate API answer", slog.String("body", string(raw)))
		return nil, fmt.Errorf("%w: can't decode JSON data", ErrAPI)
	}

	code, ok := fields["code"].(float64)
	if !ok {
		return nil, fmt.Errorf("%w: no status code in the answer", ErrAPI)
	}

	msg, _ := fields["message"].(string)
	if code != 0 {
		if msg == "" {
			msg = "unknown error"
		}
		slog.ErrorContext(ctx, "yate error", slog.String("message", msg), slog.String("body", string(raw)))
		return nil, fmt.Errorf("%w: Yate error: %s", ErrAPI, msg)
	}

	return &Result{Code: 0, Message: msg, Fields: fields, Raw: raw}, nil
}

func (c *Client) endpoint(node string) (Node, error) {
	if n, ok := c.nodes[node]; ok && node != "" {
		return n, nil
	}
	if n, ok := c.nodes[DefaultNode]; ok {
		return n, nil
	}
	return Node{}, fmt.Errorf("%w %q", ErrNoNode, node)
}
