package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestLoadDescriptorsBareListJSON(t *testing.T) {
	path := writeTemp(t, "config.json", `[
		{"name":"local","endpoint":"http://u/mcp"},
		{"name":"search","endpoint":"http://s/mcp","enabled":false,"timeout":5}
	]`)

	descriptors, err := LoadDescriptors(path)
	if err != nil {
		t.Fatalf("LoadDescriptors() error = %v", err)
	}
	if len(descriptors) != 2 {
		t.Fatalf("len(descriptors) = %d, want 2", len(descriptors))
	}
	if descriptors[0].Name != "local" || !descriptors[0].Enabled || descriptors[0].Timeout != defaultTimeoutSeconds {
		t.Errorf("descriptors[0] = %+v, want default-filled local", descriptors[0])
	}
	if descriptors[1].Enabled || descriptors[1].Timeout != 5 {
		t.Errorf("descriptors[1] = %+v, want enabled=false timeout=5", descriptors[1])
	}
}

func TestLoadDescriptorsServersShapeYAML(t *testing.T) {
	path := writeTemp(t, "config.yaml", "servers:\n  - name: local\n    endpoint: http://u/mcp\n")

	descriptors, err := LoadDescriptors(path)
	if err != nil {
		t.Fatalf("LoadDescriptors() error = %v", err)
	}
	if len(descriptors) != 1 || descriptors[0].Name != "local" {
		t.Fatalf("descriptors = %+v, want one entry named local", descriptors)
	}
}

func TestLoadDescriptorsSingleObjectShape(t *testing.T) {
	path := writeTemp(t, "config.json", `{"name":"local","endpoint":"http://u/mcp"}`)

	descriptors, err := LoadDescriptors(path)
	if err != nil {
		t.Fatalf("LoadDescriptors() error = %v", err)
	}
	if len(descriptors) != 1 || descriptors[0].Name != "local" {
		t.Fatalf("descriptors = %+v, want one entry named local", descriptors)
	}
}

func TestLoadDescriptorsDuplicateNameRejected(t *testing.T) {
	path := writeTemp(t, "config.json", `[
		{"name":"local","endpoint":"http://u/mcp"},
		{"name":"local","endpoint":"http://v/mcp"}
	]`)

	_, err := LoadDescriptors(path)
	if !errors.Is(err, ErrBadConfig) {
		t.Fatalf("LoadDescriptors() error = %v, want ErrBadConfig", err)
	}
}

func TestLoadDescriptorsMissingEndpointRejected(t *testing.T) {
	path := writeTemp(t, "config.json", `[{"name":"local"}]`)

	_, err := LoadDescriptors(path)
	if !errors.Is(err, ErrBadConfig) {
		t.Fatalf("LoadDescriptors() error = %v, want ErrBadConfig", err)
	}
}

func TestLoadDescriptorsNonPositiveTimeoutRejected(t *testing.T) {
	path := writeTemp(t, "config.json", `[{"name":"local","endpoint":"http://u/mcp","timeout":0}]`)

	_, err := LoadDescriptors(path)
	if !errors.Is(err, ErrBadConfig) {
		t.Fatalf("LoadDescriptors() error = %v, want ErrBadConfig", err)
	}
}

func TestLoadDescriptorsMalformedJSONRejected(t *testing.T) {
	path := writeTemp(t, "config.json", `{not json`)

	_, err := LoadDescriptors(path)
	if !errors.Is(err, ErrBadConfig) {
		t.Fatalf("LoadDescriptors() error = %v, want ErrBadConfig", err)
	}
}
