// Package telemetry wires the hub's OpenTelemetry tracer and meter
// providers, with the stdout exporters as the default development
// backend.
package telemetry

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Providers bundles the tracer and meter providers the hub installs
// globally for the process lifetime, plus a Shutdown that flushes both.
type Providers struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
}

// Setup installs stdout-exporting tracer and meter providers as the
// global otel providers. cmd/mcphub passes os.Stderr; io.Discard
// silences the exporters.
func Setup(w io.Writer) (*Providers, error) {
	traceExporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(traceExporter))
	otel.SetTracerProvider(tp)

	metricExporter, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("create metric exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)))
	otel.SetMeterProvider(mp)

	return &Providers{TracerProvider: tp, MeterProvider: mp}, nil
}

// Shutdown flushes and stops both providers. Safe to call once during
// process shutdown.
func (p *Providers) Shutdown(ctx context.Context) error {
	if err := p.TracerProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown tracer provider: %w", err)
	}
	if err := p.MeterProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown meter provider: %w", err)
	}
	return nil
}

// Tracer returns the hub's named tracer for dispatch/stream spans.
func Tracer() trace.Tracer {
	return otel.Tracer("github.com/mcphub/mcphub/internal/hub")
}

// Meter returns the hub's named meter. Used by hub.New to mirror the
// stream-chunk counter as an OpenTelemetry instrument alongside its
// Prometheus counterpart.
func Meter() metric.Meter {
	return otel.Meter("github.com/mcphub/mcphub/internal/hub")
}
