// Package config loads upstream descriptors and ambient hub settings.
//
// The two are deliberately separate: LoadDescriptors is a narrow, pure
// function the reconciler re-invokes on every tick; hub settings (log
// level, reconcile interval, backoff bounds) are ordinary operator-facing
// configuration loaded once via Viper.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/mcphub/mcphub/internal/domain/upstream"
)

const defaultTimeoutSeconds = 30

// rawDescriptor mirrors the on-disk descriptor shape with defaulting;
// Enabled and Timeout are pointers so we can tell "absent" from "false"/"0"
// before applying defaults.
type rawDescriptor struct {
	Name     string `json:"name" yaml:"name"`
	Endpoint string `json:"endpoint" yaml:"endpoint"`
	Enabled  *bool  `json:"enabled" yaml:"enabled"`
	Timeout  *int   `json:"timeout" yaml:"timeout"`
}

// rawDocument is the `{servers:[...]}` document shape.
type rawDocument struct {
	Servers []rawDescriptor `json:"servers" yaml:"servers"`
}

// LoadDescriptors reads and parses a config file into an ordered list of
// upstream descriptors. It is a pure function with no I/O side effects
// beyond reading the file: no env var merging, no default search paths,
// no global state. The file extension selects the parser: ".yaml"/".yml"
// decodes YAML, anything else decodes JSON. Three document shapes are
// accepted: a bare list, an object with a "servers" list, or a single
// descriptor object.
func LoadDescriptors(path string) ([]upstream.Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrBadConfig, path, err)
	}

	raws, err := parseDocument(path, data)
	if err != nil {
		return nil, err
	}

	return descriptorsFromRaw(raws)
}

// parseDocument classifies and decodes the document, returning the raw
// descriptors in file order regardless of which of the three shapes was
// used.
func parseDocument(path string, data []byte) ([]rawDescriptor, error) {
	ext := strings.ToLower(filepath.Ext(path))
	isYAML := ext == ".yaml" || ext == ".yml"

	// Try the bare-list shape first.
	var list []rawDescriptor
	listErr := decode(isYAML, data, &list)
	if listErr == nil {
		return list, nil
	}

	// Try {servers:[...]}.
	var doc rawDocument
	if err := decode(isYAML, data, &doc); err == nil && doc.Servers != nil {
		return doc.Servers, nil
	}

	// Try a single descriptor object.
	var single rawDescriptor
	if err := decode(isYAML, data, &single); err == nil && single.Name != "" {
		return []rawDescriptor{single}, nil
	}

	return nil, fmt.Errorf("%w: %s does not match list, {servers:[...]}, or single-object shape: %v", ErrBadConfig, path, listErr)
}

func decode(isYAML bool, data []byte, out any) error {
	if isYAML {
		return yaml.Unmarshal(data, out)
	}
	return json.Unmarshal(data, out)
}

// descriptorsFromRaw applies defaults, validates each row, and rejects
// duplicate names.
func descriptorsFromRaw(raws []rawDescriptor) ([]upstream.Descriptor, error) {
	v := validator.New(validator.WithRequiredStructEnabled())

	descriptors := make([]upstream.Descriptor, 0, len(raws))
	seen := make(map[string]bool, len(raws))

	for i, r := range raws {
		d := upstream.Descriptor{
			Name:     r.Name,
			Endpoint: r.Endpoint,
			Enabled:  true,
			Timeout:  defaultTimeoutSeconds,
		}
		if r.Enabled != nil {
			d.Enabled = *r.Enabled
		}
		if r.Timeout != nil {
			d.Timeout = *r.Timeout
		}

		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("%w: descriptor[%d]: %v", ErrBadConfig, i, err)
		}
		if err := v.Struct(&d); err != nil {
			return nil, fmt.Errorf("%w: descriptor[%d]: %v", ErrBadConfig, i, formatValidationErrors(err))
		}
		if seen[d.Name] {
			return nil, fmt.Errorf("%w: duplicate upstream name %q", ErrBadConfig, d.Name)
		}
		seen[d.Name] = true

		descriptors = append(descriptors, d)
	}

	return descriptors, nil
}

// SortedNames returns the descriptor names in sorted order. NewSnapshot
// does not use it; it sorts its hash rows itself.
func SortedNames(descriptors []upstream.Descriptor) []string {
	names := make([]string, len(descriptors))
	for i, d := range descriptors {
		names[i] = d.Name
	}
	sort.Strings(names)
	return names
}
