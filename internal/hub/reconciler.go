package hub

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mcphub/mcphub/internal/config"
	"github.com/mcphub/mcphub/internal/domain/upstream"
)

// Reconciler runs the background reconciliation loop: a fixed-interval
// tick, plus an fsnotify watch on the config file's directory as an
// immediate extra trigger, so editors that replace-via-rename are
// handled promptly. Both triggers run the identical diff-and-apply code
// path.
type Reconciler struct {
	hub        *Hub
	configPath string
	interval   time.Duration
	logger     *slog.Logger

	done chan struct{}
}

// NewReconciler builds a Reconciler for hub, reading descriptors from
// configPath on the given interval.
func NewReconciler(h *Hub, configPath string, interval time.Duration, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		hub:        h,
		configPath: configPath,
		interval:   interval,
		logger:     logger,
		done:       make(chan struct{}),
	}
}

// Run drives the reconciler until ctx is cancelled. The apply phase is
// serialized: two ticks never overlap, since Run itself is the only
// goroutine invoking Tick.
func (r *Reconciler) Run(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	watcher, watchEvents := r.watchConfigDir()
	if watcher != nil {
		defer func() { _ = watcher.Close() }()
	}

	r.Tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Tick(ctx)
		case <-watchEvents:
			r.Tick(ctx)
		}
	}
}

// watchConfigDir subscribes to fsnotify events on the config file's
// directory. Returns a nil watcher and a nil channel if the watcher
// can't be created (e.g. sandboxed environments without inotify); the
// fixed-interval tick still covers config changes in that case.
func (r *Reconciler) watchConfigDir() (*fsnotify.Watcher, <-chan fsnotify.Event) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		r.logger.Warn("fsnotify unavailable, falling back to interval-only reconciliation", "error", err)
		return nil, nil
	}
	dir := filepath.Dir(r.configPath)
	if err := watcher.Add(dir); err != nil {
		r.logger.Warn("failed to watch config directory", "dir", dir, "error", err)
		_ = watcher.Close()
		return nil, nil
	}
	return watcher, watcher.Events
}

// Done returns a channel closed once Run has returned, for callers that
// want to wait out a graceful shutdown.
func (r *Reconciler) Done() <-chan struct{} {
	return r.done
}

// Tick performs one reconciliation pass: load a fresh snapshot, skip the
// diff if its hash is unchanged, otherwise diff and apply, then drive
// every live upstream's reconnect/health-ping step.
func (r *Reconciler) Tick(ctx context.Context) {
	descriptors, err := config.LoadDescriptors(r.configPath)
	if err != nil {
		r.logger.Error("reconciler: load descriptors failed", "error", err)
		return
	}

	snapshot, err := config.NewSnapshot(descriptors)
	if err != nil {
		r.logger.Error("reconciler: build snapshot failed", "error", err)
		return
	}

	r.hub.mu.RLock()
	unchanged := snapshot.Hash == r.hub.appliedHash
	r.hub.mu.RUnlock()

	if !unchanged {
		r.applyDiff(ctx, snapshot)
		r.hub.mu.Lock()
		r.hub.appliedHash = snapshot.Hash
		r.hub.mu.Unlock()
		if r.hub.metrics != nil {
			r.hub.metrics.ReconcileTicks.Inc()
		}
	}

	r.reconnectAndPing(ctx)
}

// applyDiff adds, removes, and updates upstreams to match snapshot.
// Failures for one name never block the others.
func (r *Reconciler) applyDiff(ctx context.Context, snapshot config.Snapshot) {
	r.hub.mu.RLock()
	existing := make(map[string]upstream.Descriptor, len(r.hub.states))
	for name, s := range r.hub.states {
		existing[name] = s.Descriptor
	}
	r.hub.mu.RUnlock()

	for name, next := range snapshot.ByName {
		prev, ok := existing[name]
		switch {
		case !ok:
			r.hub.addUpstream(ctx, next)
		case !prev.Equal(next):
			r.hub.disconnectUpstream(name)
			r.hub.addUpstream(ctx, next)
		}
	}

	for name := range existing {
		if _, ok := snapshot.ByName[name]; !ok {
			r.hub.removeUpstream(name)
		}
	}
}

// reconnectAndPing drives every live enabled upstream's lifecycle step:
// Unhealthy attempts reconnect subject to backoff, Connected runs one
// health ping.
func (r *Reconciler) reconnectAndPing(ctx context.Context) {
	r.hub.mu.RLock()
	type item struct {
		name string
		conn upstream.ConnectionState
	}
	items := make([]item, 0, len(r.hub.states))
	now := time.Now()
	due := make(map[string]bool, len(r.hub.states))
	for name, s := range r.hub.states {
		items = append(items, item{name: name, conn: s.Conn})
		due[name] = !s.Retry.NotBefore.After(now)
	}
	r.hub.mu.RUnlock()

	for _, it := range items {
		switch it.conn {
		case upstream.StateUnhealthy:
			if due[it.name] {
				r.hub.connectUpstream(ctx, it.name)
			}
		case upstream.StateConnected:
			r.hub.pingUpstream(ctx, it.name)
		}
	}
}
