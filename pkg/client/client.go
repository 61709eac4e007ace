// Package client is a small HTTP client for the sproc control API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Config describes how to reach a control server.
type Config struct {
	// BaseURL is the server root, e.g. "http://127.0.0.1:6374".
	BaseURL string
	// Key is the shared secret sent with every request.
	Key string
	// Timeout bounds each call. Zero means 10s.
	Timeout time.Duration
}

type Client struct {
	base string
	key  string
	hc   *http.Client
}

func New(cfg Config) *Client {
	t := cfg.Timeout
	if t <= 0 {
		t = 10 * time.Second
	}
	return &Client{
		base: strings.TrimRight(cfg.BaseURL, "/"),
		key:  cfg.Key,
		hc:   &http.Client{Timeout: t},
	}
}

type request struct {
	Service string `json:"service"`
	Key     string `json:"key"`
}

type response struct {
	OK   bool            `json:"ok"`
	Data json.RawMessage `json:"data"`
}

// Start asks the server to start the named service.
func (c *Client) Start(ctx context.Context, service string) error {
	_, err := c.post(ctx, "/start", service)
	return err
}

// Kill asks the server to stop the named service.
func (c *Client) Kill(ctx context.Context, service string) error {
	_, err := c.post(ctx, "/kill", service)
	return err
}

// Info returns the server's TOML-rendered snapshot of the named service.
func (c *Client) Info(ctx context.Context, service string) (string, error) {
	data, err := c.post(ctx, "/info", service)
	if err != nil {
		return "", err
	}
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return "", fmt.Errorf("decode info payload: %w", err)
	}
	return text, nil
}

func (c *Client) post(ctx context.Context, path, service string) (json.RawMessage, error) {
	body, err := json.Marshal(request{Service: service, Key: c.key})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if !out.OK {
		var code int
		if json.Unmarshal(out.Data, &code) == nil {
			return nil, fmt.Errorf("server refused %s for %q: status %d", path, service, code)
		}
		return nil, fmt.Errorf("server refused %s for %q", path, service)
	}
	return out.Data, nil
}
