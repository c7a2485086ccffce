// Package upstream contains domain types for MCP upstream server
// descriptors and their runtime connection state.
package upstream

import (
	"fmt"
	"net/url"
	"strings"
)

// Descriptor is an immutable config row describing one upstream MCP
// server. Descriptors are produced by the config loader and never mutated
// in place; reconfiguring an upstream replaces its Descriptor wholesale.
type Descriptor struct {
	// Name uniquely identifies the upstream within the hub. Must not
	// contain '.' since qualified tool names are "{Name}.{localName}".
	Name string `json:"name" yaml:"name" validate:"required"`
	// Endpoint is the absolute URL the upstream accepts JSON-RPC POSTs on.
	Endpoint string `json:"endpoint" yaml:"endpoint" validate:"required,url"`
	// Enabled controls whether the hub attempts to connect to this upstream.
	Enabled bool `json:"enabled" yaml:"enabled"`
	// Timeout bounds each unary HTTP request to this upstream, in seconds.
	Timeout int `json:"timeout" yaml:"timeout" validate:"required,min=1"`
}

// Validate checks field-level invariants that validator tags can't express
// on their own (the '.' restriction on Name).
func (d *Descriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("name is required")
	}
	if strings.Contains(d.Name, ".") {
		return fmt.Errorf("name %q must not contain '.'", d.Name)
	}
	if d.Endpoint == "" {
		return fmt.Errorf("endpoint is required")
	}
	parsed, err := url.Parse(d.Endpoint)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("endpoint %q is not an absolute URL", d.Endpoint)
	}
	if d.Timeout < 1 {
		return fmt.Errorf("timeout must be >= 1 second, got %d", d.Timeout)
	}
	return nil
}

// Equal reports whether two descriptors carry the same configuration. Used
// by the reconciler to detect a "changed" upstream versus an unchanged one.
func (d Descriptor) Equal(other Descriptor) bool {
	return d.Name == other.Name &&
		d.Endpoint == other.Endpoint &&
		d.Enabled == other.Enabled &&
		d.Timeout == other.Timeout
}
