// Package hub is the composition root for the tool-routing hub engine:
// the upstream-lifecycle state machine, the tool registry, the
// dispatcher and stream pipeline, the reconciler, and the approval path.
// A *Hub is an ordinary Go value; the process that embeds it owns
// exactly one instance and never reaches for a package-level singleton.
package hub

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/mcphub/mcphub/internal/client"
	"github.com/mcphub/mcphub/internal/config"
	"github.com/mcphub/mcphub/internal/domain/upstream"
	"github.com/mcphub/mcphub/internal/metrics"
	"github.com/mcphub/mcphub/internal/telemetry"
)

// Hub owns every upstream's descriptor, runtime state, and transport,
// plus the shared tool registry. Structural mutations (add/remove/purge)
// happen under mu; read-only lookups proceed without it, since entries
// are replaced atomically by reference.
type Hub struct {
	mu sync.RWMutex

	states  map[string]*upstream.State
	clients map[string]*client.Client

	registry *upstream.Registry

	settings config.HubSettings
	metrics  *metrics.Metrics
	logger   *slog.Logger

	chunkCounter metric.Int64Counter

	appliedHash string
}

// New creates an empty Hub. Upstreams are populated by a subsequent
// Reconciler.Tick (typically driven by Reconciler.Run), not by New
// itself; the hub has no opinion about where its first config snapshot
// comes from.
func New(settings config.HubSettings, m *metrics.Metrics, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	chunkCounter, err := telemetry.Meter().Int64Counter(
		"hub.stream_chunks",
		metric.WithDescription("Total stream chunks emitted by kind, mirrored as an OpenTelemetry instrument"),
	)
	if err != nil {
		chunkCounter = nil
	}
	return &Hub{
		states:       make(map[string]*upstream.State),
		clients:      make(map[string]*client.Client),
		registry:     upstream.NewRegistry(),
		settings:     settings,
		metrics:      m,
		logger:       logger,
		chunkCounter: chunkCounter,
	}
}

// UpstreamStatus is a read-only view of one upstream, returned by
// ListUpstreams.
type UpstreamStatus struct {
	Name      string
	Endpoint  string
	Enabled   bool
	Conn      upstream.ConnectionState
	LastError string
}

// ListUpstreams returns a point-in-time snapshot of every known
// upstream's status.
func (h *Hub) ListUpstreams() []UpstreamStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]UpstreamStatus, 0, len(h.states))
	for _, s := range h.states {
		out = append(out, UpstreamStatus{
			Name:      s.Descriptor.Name,
			Endpoint:  s.Descriptor.Endpoint,
			Enabled:   s.Descriptor.Enabled,
			Conn:      s.Conn,
			LastError: s.LastError,
		})
	}
	return out
}

// ListTools returns every registered ToolEntry.
func (h *Hub) ListTools() []*upstream.ToolEntry {
	return h.registry.ListAll()
}

// Health reports per-upstream connection state as a map.
func (h *Hub) Health() map[string]upstream.ConnectionState {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make(map[string]upstream.ConnectionState, len(h.states))
	for name, s := range h.states {
		out[name] = s.Conn
	}
	return out
}

// stateAndClient returns a snapshot of an upstream's state and its live
// client, or ok=false if the upstream is unknown. Safe to call without
// holding mu.
func (h *Hub) stateAndClient(name string) (*upstream.State, *client.Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.states[name]
	if !ok {
		return nil, nil, false
	}
	return s, h.clients[name], true
}

// recordChunk increments the stream-chunk counters, Prometheus and the
// mirrored OpenTelemetry instrument, labeled by chunk kind.
func (h *Hub) recordChunk(kind string) {
	if h.metrics != nil {
		h.metrics.StreamChunksTotal.WithLabelValues(kind).Inc()
	}
	if h.chunkCounter != nil {
		h.chunkCounter.Add(context.Background(), 1, metric.WithAttributes(attribute.String("kind", kind)))
	}
}

// Close shuts down every live client. Safe to call once during process
// shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.clients {
		c.Close()
	}
	h.clients = make(map[string]*client.Client)
}
