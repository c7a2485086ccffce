// Command mcphub runs the tool-routing hub: it loads the upstream
// descriptor config, builds a Hub, and drives the background reconciler
// until it receives a termination signal.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mcphub/mcphub/internal/config"
	"github.com/mcphub/mcphub/internal/hub"
	"github.com/mcphub/mcphub/internal/metrics"
	"github.com/mcphub/mcphub/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var settingsFile string
	flag.StringVar(&settingsFile, "config", "", "hub settings file (optional; when empty, built-in defaults and MCPHUB_* environment variables apply)")
	flag.Parse()

	settings, err := config.LoadSettings(settingsFile)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(settings.LogLevel),
	}))

	providers, err := telemetry.Setup(os.Stderr)
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer, settings.MetricsNamespace)
	h := hub.New(settings, m, logger)
	defer h.Close()

	r := hub.NewReconciler(h, settings.UpstreamConfigPath, settings.ReconcileInterval, logger)
	logger.Info("mcphub starting",
		"upstream_config", settings.UpstreamConfigPath,
		"reconcile_interval", settings.ReconcileInterval,
	)

	r.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), settings.ReconcileInterval)
	defer cancel()
	if err := providers.Shutdown(shutdownCtx); err != nil {
		logger.Warn("telemetry shutdown failed", "error", err)
	}

	logger.Info("mcphub stopped")
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
