package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mcphub/mcphub/internal/client"
	"github.com/mcphub/mcphub/internal/domain/upstream"
	"github.com/mcphub/mcphub/pkg/rpc"
)

// discoveredTool is the wire shape of one entry in an initialize or
// tools/list result's "tools" array.
type discoveredTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string          `json:"name"`
		Description string          `json:"description"`
		Parameters  json.RawMessage `json:"parameters"`
	} `json:"function"`
	// Some upstreams report flat name/description/inputSchema instead of
	// the {type,function} wrapper; both are tolerated.
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

func (t discoveredTool) localName() string {
	if t.Function.Name != "" {
		return t.Function.Name
	}
	return t.Name
}

func (t discoveredTool) description() string {
	if t.Function.Description != "" {
		return t.Function.Description
	}
	return t.Description
}

func (t discoveredTool) parameters() json.RawMessage {
	if len(t.Function.Parameters) > 0 {
		return t.Function.Parameters
	}
	return t.InputSchema
}

type initializeResult struct {
	Tools []discoveredTool `json:"tools"`
}

type toolsListResult struct {
	Tools []discoveredTool `json:"tools"`
}

// connect runs the connect protocol for one upstream: initialize, adopt
// result.tools if present, otherwise fall back to tools/list. It does not
// register anything; it returns the discovered tools so the caller
// (connectUpstream) can decide whether to commit them.
func connect(ctx context.Context, name string, c *client.Client, state *upstream.State) ([]discoveredTool, error) {
	initParams, err := json.Marshal(map[string]any{
		"clientInfo":   map[string]any{"name": "MCPHub", "version": "1.0.0"},
		"capabilities": map[string]any{},
	})
	if err != nil {
		return nil, fmt.Errorf("encode initialize params: %w", err)
	}

	env := rpc.NewEnvelope(state.NextRequestID(), "initialize", initParams)
	resp, err := c.Do(ctx, env)
	if err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}
	if resp.Kind == rpc.ShapeError {
		return nil, fmt.Errorf("initialize: %s", resp.ErrorMessage)
	}

	if resp.Kind == rpc.ShapeResult {
		var init initializeResult
		if err := json.Unmarshal(resp.Result, &init); err == nil && len(init.Tools) > 0 {
			return init.Tools, nil
		}
	}

	return discoverToolsList(ctx, c, state)
}

// discoverToolsList sends tools/list and accepts any of three shapes: a
// result that is itself a list, a result object with a "tools" list, or
// a bare list response body.
func discoverToolsList(ctx context.Context, c *client.Client, state *upstream.State) ([]discoveredTool, error) {
	env := rpc.NewEnvelope(state.NextRequestID(), "tools/list", nil)
	resp, err := c.Do(ctx, env)
	if err != nil {
		return nil, fmt.Errorf("tools/list: %w", err)
	}

	switch resp.Kind {
	case rpc.ShapeError:
		return nil, fmt.Errorf("tools/list: %s", resp.ErrorMessage)
	case rpc.ShapeResult:
		trimmed := bytes.TrimSpace(resp.Result)
		if len(trimmed) > 0 && trimmed[0] == '[' {
			return decodeToolList(trimmed), nil
		}
		var list toolsListResult
		if err := json.Unmarshal(resp.Result, &list); err != nil {
			return nil, fmt.Errorf("tools/list: decode result: %w", err)
		}
		return list.Tools, nil
	case rpc.ShapeBareList:
		return decodeRawToolList(resp.List), nil
	default:
		return nil, fmt.Errorf("tools/list: unrecognized response shape")
	}
}

// decodeToolList decodes a raw JSON array of tool entries, skipping any
// entry that fails to decode.
func decodeToolList(raw json.RawMessage) []discoveredTool {
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil
	}
	return decodeRawToolList(entries)
}

func decodeRawToolList(entries []json.RawMessage) []discoveredTool {
	tools := make([]discoveredTool, 0, len(entries))
	for _, raw := range entries {
		var t discoveredTool
		if err := json.Unmarshal(raw, &t); err != nil {
			continue
		}
		tools = append(tools, t)
	}
	return tools
}

// registerDiscovered wraps and registers each discovered tool under
// "{name}.{localName}".
func (h *Hub) registerDiscovered(name string, tools []discoveredTool) error {
	for _, t := range tools {
		local := t.localName()
		if local == "" {
			continue
		}
		qualified := name + "." + local
		schema, err := upstream.WrapSchema(qualified, local, t.description(), t.parameters())
		if err != nil {
			return err
		}
		h.registry.Register(name, local, schema)
	}
	return nil
}

// addUpstream creates runtime state for a descriptor and, if enabled,
// attempts a connect. Called both for a brand-new descriptor and for a
// reconciler-driven "changed" descriptor after its old state was torn
// down.
func (h *Hub) addUpstream(ctx context.Context, d upstream.Descriptor) {
	state := upstream.NewState(d)

	h.mu.Lock()
	h.states[d.Name] = state
	h.mu.Unlock()

	if d.Enabled {
		h.connectUpstream(ctx, d.Name)
	}
}

// connectUpstream transitions one upstream through Connecting to
// Connected or Unhealthy. The connect I/O itself happens outside the hub
// lock; only the state transition at either end is locked.
func (h *Hub) connectUpstream(ctx context.Context, name string) {
	h.mu.Lock()
	state, ok := h.states[name]
	if !ok {
		h.mu.Unlock()
		return
	}
	state.Conn = upstream.StateConnecting
	descriptor := state.Descriptor
	h.mu.Unlock()

	timeout := time.Duration(descriptor.Timeout) * time.Second
	c := client.New(descriptor.Endpoint, timeout)

	tools, err := connect(ctx, name, c, state)

	h.mu.Lock()
	defer h.mu.Unlock()

	// The upstream may have been removed while connect was in flight.
	current, ok := h.states[name]
	if !ok || current != state {
		c.Close()
		return
	}

	if err != nil {
		c.Close()
		state.Conn = upstream.StateUnhealthy
		state.LastError = err.Error()
		state.Retry.Attempt++
		delay := upstream.NextDelay(state.Retry.Attempt)
		if limit := h.settings.BackoffCap; limit > 0 && delay > limit {
			delay = limit
		}
		state.Retry.NotBefore = time.Now().Add(delay)
		if h.metrics != nil {
			h.metrics.ReconnectAttempts.WithLabelValues(name).Inc()
		}
		return
	}

	if old := h.clients[name]; old != nil {
		old.Close()
	}
	h.clients[name] = c
	state.Conn = upstream.StateConnected
	state.LastError = ""
	state.Retry = upstream.RetryRecord{}
	if _, ok := client.HealthEndpoint(descriptor.Endpoint); ok {
		state.HealthMode = upstream.HealthCheckAvailable
	} else {
		state.HealthMode = upstream.HealthCheckUnavailable
	}

	if err := h.registerDiscovered(name, tools); err != nil {
		h.logger.Warn("register discovered tools failed", "upstream", name, "error", err)
	}
	h.updateGaugesLocked()
}

// disconnectUpstream closes the client if any, purges owned tool
// entries, and leaves the state at Disconnected (or Disabled, chosen by
// the caller afterward). A disconnected upstream never leaves stale tool
// entries behind in the registry.
func (h *Hub) disconnectUpstream(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c, ok := h.clients[name]; ok {
		c.Close()
		delete(h.clients, name)
	}
	h.registry.PurgeOwner(name)
	if state, ok := h.states[name]; ok {
		state.Conn = upstream.StateDisconnected
	}
	h.updateGaugesLocked()
}

// removeUpstream fully forgets an upstream: closes its client, purges
// its tools, and deletes its state.
func (h *Hub) removeUpstream(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c, ok := h.clients[name]; ok {
		c.Close()
		delete(h.clients, name)
	}
	h.registry.PurgeOwner(name)
	delete(h.states, name)
	h.updateGaugesLocked()
}

// pingUpstream runs one health check against a Connected upstream,
// demoting it to Unhealthy on a non-200.
func (h *Hub) pingUpstream(ctx context.Context, name string) {
	h.mu.RLock()
	state, ok := h.states[name]
	c := h.clients[name]
	h.mu.RUnlock()
	if !ok || c == nil || state.Conn != upstream.StateConnected {
		return
	}
	if state.HealthMode != upstream.HealthCheckAvailable {
		return
	}

	healthURL, ok := client.HealthEndpoint(state.Descriptor.Endpoint)
	if !ok {
		return
	}

	healthy, err := c.Ping(ctx, healthURL)

	h.mu.Lock()
	defer h.mu.Unlock()
	current, ok := h.states[name]
	if !ok || current != state || state.Conn != upstream.StateConnected {
		return
	}
	if err != nil || !healthy {
		state.Conn = upstream.StateUnhealthy
		if err != nil {
			state.LastError = err.Error()
		} else {
			state.LastError = "health check returned non-200"
		}
	}
}

// updateGaugesLocked refreshes the connected-upstream and
// registered-tool gauges. Caller must hold mu.
func (h *Hub) updateGaugesLocked() {
	if h.metrics == nil {
		return
	}
	connected := 0
	for _, s := range h.states {
		if s.Conn == upstream.StateConnected {
			connected++
		}
	}
	h.metrics.ConnectedUpstreams.Set(float64(connected))
	h.metrics.RegisteredTools.Set(float64(h.registry.Count()))
}
