// Package client implements the per-upstream HTTP transport: unary
// request/response, streaming request/response, and the health ping. The
// connect/discover handshake is built on top of it in package hub. One
// Client is owned exclusively by one upstream's lifecycle; it is never
// shared.
package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mcphub/mcphub/pkg/rpc"
)

// maxResponseBodySize bounds a unary response read, guarding against an
// upstream that never closes its body.
const maxResponseBodySize = 10 * 1024 * 1024

// Client is the HTTP transport for one upstream. It is not safe to share
// across upstreams; create one per connect and close it on disconnect.
type Client struct {
	endpoint string
	http     *http.Client
}

// New builds a Client bound to endpoint with the given per-request
// timeout, taken from the descriptor's "timeout" field.
func New(endpoint string, timeout time.Duration) *Client {
	return &Client{
		endpoint: endpoint,
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Close releases idle connections held by this client. Called on every
// disconnect path.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

// Do sends one JSON-RPC envelope and returns the parsed response.
func (c *Client) Do(ctx context.Context, env rpc.Envelope) (rpc.Response, error) {
	body, err := c.post(ctx, env)
	if err != nil {
		return rpc.Response{}, err
	}

	resp, err := rpc.ParseResponse(body)
	if err != nil {
		return rpc.Response{}, fmt.Errorf("decode response: %w", err)
	}
	return resp, nil
}

// Stream sends one JSON-RPC envelope and returns the raw, still-open
// response body for the caller to frame as newline-delimited JSON. The
// caller must Close the returned body to release the connection;
// cancelling ctx aborts the read promptly.
func (c *Client) Stream(ctx context.Context, env rpc.Envelope) (io.ReadCloser, error) {
	req, err := c.newRequest(ctx, env)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer func() { _ = resp.Body.Close() }()
		drained, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("http status %d: %s", resp.StatusCode, string(drained))
	}
	return resp.Body, nil
}

func (c *Client) post(ctx context.Context, env rpc.Envelope) ([]byte, error) {
	req, err := c.newRequest(ctx, env)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("http status %d: %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}

func (c *Client) newRequest(ctx context.Context, env rpc.Envelope) (*http.Request, error) {
	payload, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// HealthEndpoint derives the sibling "/health" URL for endpoints that
// follow the "/mcp" convention. ok is false when the endpoint doesn't end
// in "/mcp", meaning no health ping is available for this upstream.
func HealthEndpoint(endpoint string) (url string, ok bool) {
	const suffix = "/mcp"
	if !strings.HasSuffix(endpoint, suffix) {
		return "", false
	}
	return strings.TrimSuffix(endpoint, suffix) + "/health", true
}

// Ping GETs the health endpoint and reports whether it returned 200.
func (c *Client) Ping(ctx context.Context, healthURL string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL, nil)
	if err != nil {
		return false, fmt.Errorf("create health request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("health request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK, nil
}
