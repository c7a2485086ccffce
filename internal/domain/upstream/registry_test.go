package upstream

import (
	"encoding/json"
	"testing"
)

func TestRegistryRegisterIdempotent(t *testing.T) {
	r := NewRegistry()
	schema := json.RawMessage(`{"type":"function","function":{"name":"weather.get"}}`)

	r.Register("weather", "get", schema)
	r.Register("weather", "get", schema)

	if got := r.Count(); got != 1 {
		t.Fatalf("Count() = %d, want 1", got)
	}
	entry, ok := r.Lookup("weather.get")
	if !ok {
		t.Fatal("Lookup(\"weather.get\") = not found, want found")
	}
	if entry.Owner != "weather" || entry.LocalName != "get" {
		t.Fatalf("entry = %+v, want owner=weather localName=get", entry)
	}
}

func TestRegistryPurgeOwner(t *testing.T) {
	r := NewRegistry()
	r.Register("weather", "get", json.RawMessage(`{}`))
	r.Register("weather", "forecast", json.RawMessage(`{}`))
	r.Register("search", "query", json.RawMessage(`{}`))

	r.PurgeOwner("weather")

	if got := r.Count(); got != 1 {
		t.Fatalf("Count() after purge = %d, want 1", got)
	}
	if _, ok := r.Lookup("weather.get"); ok {
		t.Fatal("weather.get still present after PurgeOwner")
	}
	if _, ok := r.Lookup("search.query"); !ok {
		t.Fatal("search.query missing after purging a different owner")
	}
}

func TestRegistryListAllUniqueByQualifiedName(t *testing.T) {
	r := NewRegistry()
	r.Register("a", "x", json.RawMessage(`{}`))
	r.Register("b", "x", json.RawMessage(`{}`))
	r.Register("a", "x", json.RawMessage(`{"changed":true}`))

	all := r.ListAll()
	if len(all) != 2 {
		t.Fatalf("ListAll() len = %d, want 2", len(all))
	}
	seen := map[string]bool{}
	for _, e := range all {
		if seen[e.QualifiedName] {
			t.Fatalf("duplicate qualified name %q in ListAll()", e.QualifiedName)
		}
		seen[e.QualifiedName] = true
	}
}

func TestWrapSchemaSetsQualifiedName(t *testing.T) {
	raw, err := WrapSchema("weather.get", "get", "fetch current weather", json.RawMessage(`{"type":"object"}`))
	if err != nil {
		t.Fatalf("WrapSchema() error = %v", err)
	}

	var decoded struct {
		Type     string `json:"type"`
		Function struct {
			Name string `json:"name"`
		} `json:"function"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal wrapped schema: %v", err)
	}
	if decoded.Type != "function" {
		t.Fatalf("type = %q, want %q", decoded.Type, "function")
	}
	if decoded.Function.Name != "weather.get" {
		t.Fatalf("function.name = %q, want %q", decoded.Function.Name, "weather.get")
	}
}
