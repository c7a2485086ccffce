package upstream

import (
	"encoding/json"
	"fmt"
	"sync"
)

// ToolEntry is the registry's unit of record: a qualified tool name bound
// to its owning upstream, local name, and published (wrapped) schema.
type ToolEntry struct {
	QualifiedName   string
	Owner           string
	LocalName       string
	PublishedSchema json.RawMessage
}

// WrapSchema builds the published schema for a discovered tool: the
// upstream's original schema wrapped in {"type":"function","function":{...,
// "name": qualifiedName}}, with the inner name overwritten to the
// qualified name so downstream consumers can round-trip directly.
func WrapSchema(qualifiedName, localName, description string, parameters json.RawMessage) (json.RawMessage, error) {
	fn := map[string]any{
		"name": qualifiedName,
	}
	if description != "" {
		fn["description"] = description
	}
	if len(parameters) > 0 {
		fn["parameters"] = json.RawMessage(parameters)
	}
	wrapped := map[string]any{
		"type":     "function",
		"function": fn,
	}
	raw, err := json.Marshal(wrapped)
	if err != nil {
		return nil, fmt.Errorf("wrap schema for %s: %w", qualifiedName, err)
	}
	return raw, nil
}

// Registry is the thread-safe mapping from qualified tool name to
// ToolEntry. Writes happen only during discovery/purge under a single
// lock; reads are non-blocking snapshots.
type Registry struct {
	mu         sync.RWMutex
	byName     map[string]*ToolEntry
	byOwner    map[string][]string // owner -> qualified names, preserves registration order
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byName:  make(map[string]*ToolEntry),
		byOwner: make(map[string][]string),
	}
}

// Register adds or replaces a tool entry. Idempotent on identical input:
// re-registering the same (owner, localName, schema) tuple is a no-op
// beyond the map write.
func (r *Registry) Register(owner, localName string, schema json.RawMessage) {
	qualified := owner + "." + localName

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[qualified]; !exists {
		r.byOwner[owner] = append(r.byOwner[owner], qualified)
	}
	r.byName[qualified] = &ToolEntry{
		QualifiedName:   qualified,
		Owner:           owner,
		LocalName:       localName,
		PublishedSchema: schema,
	}
}

// PurgeOwner atomically removes every ToolEntry owned by the given
// upstream. Called on disconnect, so a purged upstream never leaves
// stale entries reachable by a qualified lookup.
func (r *Registry) PurgeOwner(owner string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, qualified := range r.byOwner[owner] {
		delete(r.byName, qualified)
	}
	delete(r.byOwner, owner)
}

// Lookup returns the entry for a qualified name, or false if unregistered.
func (r *Registry) Lookup(qualifiedName string) (*ToolEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byName[qualifiedName]
	return e, ok
}

// ListAll returns every registered entry, each exactly once.
func (r *Registry) ListAll() []*ToolEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*ToolEntry, 0, len(r.byName))
	for _, e := range r.byName {
		out = append(out, e)
	}
	return out
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}
