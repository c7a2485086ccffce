package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// HubSettings holds the hub's own operating parameters: everything that
// isn't an upstream descriptor. Loaded once at startup via Viper, and
// kept entirely separate from LoadDescriptors, which the reconciler
// re-invokes on every tick.
type HubSettings struct {
	// LogLevel is one of "debug", "info", "warn", "error".
	LogLevel string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	// ReconcileInterval is how often the reconciler re-reads the config
	// file on its fixed-interval tick.
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval" validate:"min=1000000000"`
	// BackoffCap bounds the exponential reconnect backoff. NextDelay's
	// fixed 60s cap still applies, so values above 60s have no effect.
	BackoffCap time.Duration `mapstructure:"backoff_cap" validate:"min=1000000000"`
	// MetricsNamespace prefixes every Prometheus metric the hub registers.
	MetricsNamespace string `mapstructure:"metrics_namespace" validate:"required"`
	// UpstreamConfigPath is the descriptor file LoadDescriptors reads.
	UpstreamConfigPath string `mapstructure:"upstream_config_path" validate:"required"`
}

// DefaultSettings returns the settings a fresh hub should start with
// absent any configuration file or environment override.
func DefaultSettings() HubSettings {
	return HubSettings{
		LogLevel:           "info",
		ReconcileInterval:  300 * time.Second,
		BackoffCap:         60 * time.Second,
		MetricsNamespace:   "mcphub",
		UpstreamConfigPath: "mcphub.yaml",
	}
}

// LoadSettings reads hub settings from configFile (if non-empty) and the
// MCPHUB_-prefixed environment, layered over DefaultSettings. Unlike
// LoadDescriptors this is allowed ordinary ambient-config side effects:
// env var binding, defaulting, ConfigFileNotFoundError tolerance.
func LoadSettings(configFile string) (HubSettings, error) {
	v := viper.New()
	settings := DefaultSettings()

	v.SetDefault("log_level", settings.LogLevel)
	v.SetDefault("reconcile_interval", settings.ReconcileInterval)
	v.SetDefault("backoff_cap", settings.BackoffCap)
	v.SetDefault("metrics_namespace", settings.MetricsNamespace)
	v.SetDefault("upstream_config_path", settings.UpstreamConfigPath)

	v.SetEnvPrefix("MCPHUB")
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return HubSettings{}, fmt.Errorf("read hub settings %s: %w", configFile, err)
			}
		}
	}

	if err := v.Unmarshal(&settings); err != nil {
		return HubSettings{}, fmt.Errorf("unmarshal hub settings: %w", err)
	}

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(&settings); err != nil {
		return HubSettings{}, fmt.Errorf("invalid hub settings: %w", formatValidationErrors(err))
	}

	return settings, nil
}
