// Package telemetry wires OpenTelemetry tracing for sieve runs.
//
// Tracing is off unless OTEL_ENABLED=true. When it is off, Tracer returns the
// global no-op tracer and spans cost nothing; when it is on, Init installs a
// batching TracerProvider exporting over OTLP (gRPC by default, or
// http/protobuf) configured from the standard OTEL_* variables.
//
//	shutdown, err := telemetry.Init(ctx)
//	if err != nil { ... }
//	defer shutdown(ctx)
package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationPrefix prefixes every tracer name handed out by Tracer.
const InstrumentationPrefix = "github.com/prime-sieve/"

var (
	globalConfig *Config
	configOnce   sync.Once
)

// ShutdownFunc flushes and stops the TracerProvider.
type ShutdownFunc func(ctx context.Context) error

func noopShutdown(_ context.Context) error {
	return nil
}

// Init installs the global TracerProvider. With tracing disabled it does
// nothing and returns a no-op shutdown.
func Init(ctx context.Context) (ShutdownFunc, error) {
	cfg := loadConfig()
	if !cfg.Enabled {
		return noopShutdown, nil
	}

	res, err := buildResource(cfg)
	if err != nil {
		return noopShutdown, err
	}

	exporter, err := createExporter(ctx, cfg)
	if err != nil {
		return noopShutdown, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(createSampler(cfg)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp.Shutdown, nil
}

// Tracer returns a tracer from the global provider, scoped to a component
// such as "sieve" or "service".
func Tracer(component string) trace.Tracer {
	return otel.Tracer(InstrumentationPrefix + component)
}

// Enabled returns whether OpenTelemetry tracing is enabled.
func Enabled() bool {
	return loadConfig().Enabled
}

// GetConfig returns the current telemetry configuration.
func GetConfig() *Config {
	return loadConfig()
}

func loadConfig() *Config {
	configOnce.Do(func() {
		globalConfig = LoadFromEnv()
	})
	return globalConfig
}

// resetGlobalConfig forces the next call to re-read the environment.
func resetGlobalConfig() {
	configOnce = sync.Once{}
	globalConfig = nil
}
