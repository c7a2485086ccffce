package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadSettingsDefaults(t *testing.T) {
	settings, err := LoadSettings("")
	if err != nil {
		t.Fatalf("LoadSettings(\"\") error = %v", err)
	}
	if settings != DefaultSettings() {
		t.Errorf("LoadSettings(\"\") = %+v, want defaults %+v", settings, DefaultSettings())
	}
}

func TestLoadSettingsOverrideFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mcphub-settings.yaml")
	if err := os.WriteFile(path, []byte("log_level: debug\nreconcile_interval: 30s\n"), 0o600); err != nil {
		t.Fatalf("write settings file: %v", err)
	}

	settings, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("LoadSettings() error = %v", err)
	}
	if settings.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", settings.LogLevel)
	}
	if settings.ReconcileInterval != 30*time.Second {
		t.Errorf("ReconcileInterval = %v, want 30s", settings.ReconcileInterval)
	}
	if settings.MetricsNamespace != "mcphub" {
		t.Errorf("MetricsNamespace = %q, want default mcphub", settings.MetricsNamespace)
	}
}
