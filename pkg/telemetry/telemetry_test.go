package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{
		"OTEL_ENABLED", "OTEL_SERVICE_NAME", "OTEL_SERVICE_VERSION",
		"OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_PROTOCOL",
		"OTEL_EXPORTER_OTLP_HEADERS", "OTEL_EXPORTER_OTLP_INSECURE",
		"OTEL_TRACES_SAMPLER", "OTEL_TRACES_SAMPLER_ARG", "OTEL_RESOURCE_ATTRIBUTES",
	} {
		t.Setenv(key, "")
	}

	cfg := LoadFromEnv()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, DefaultServiceName, cfg.ServiceName)
	assert.Equal(t, "unknown", cfg.ServiceVersion)
	assert.Equal(t, "grpc", cfg.Protocol)
	assert.Empty(t, cfg.Headers)
	assert.False(t, cfg.Insecure)
}

func TestLoadFromEnv_Custom(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "TRUE")
	t.Setenv("OTEL_SERVICE_NAME", "sieve-batch")
	t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "http/protobuf")
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "Authorization=Bearer a=b, x-team=math")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "1")
	t.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment=ci,=skipped,novalue")

	cfg := LoadFromEnv()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "sieve-batch", cfg.ServiceName)
	assert.Equal(t, "http/protobuf", cfg.Protocol)
	assert.Equal(t, map[string]string{"Authorization": "Bearer a=b", "x-team": "math"}, cfg.Headers)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, map[string]string{"deployment.environment": "ci"}, cfg.ResourceAttrs)
}

func TestInit_Disabled(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "false")
	resetGlobalConfig()
	defer resetGlobalConfig()

	ctx := context.Background()
	shutdown, err := Init(ctx)
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(ctx))
	assert.False(t, Enabled())
	assert.Equal(t, DefaultServiceName, GetConfig().ServiceName)
}

func TestTracer_NoopWhenDisabled(t *testing.T) {
	_, span := Tracer("sieve").Start(context.Background(), "test")
	defer span.End()
	assert.False(t, span.SpanContext().IsSampled())
}

func TestCreateSampler(t *testing.T) {
	tests := []struct {
		sampler  string
		arg      string
		contains string
	}{
		{"", "", "AlwaysOnSampler"},
		{"always_on", "", "AlwaysOnSampler"},
		{"always_off", "", "AlwaysOffSampler"},
		{"traceidratio", "0.25", "TraceIDRatioBased{0.25}"},
		{"parentbased_always_on", "", "ParentBased{root:AlwaysOnSampler"},
		{"parentbased_always_off", "", "ParentBased{root:AlwaysOffSampler"},
		{"parentbased_traceidratio", "0.5", "ParentBased{root:TraceIDRatioBased{0.5}"},
	}

	for _, tt := range tests {
		t.Run(tt.sampler, func(t *testing.T) {
			s := createSampler(&Config{Sampler: tt.sampler, SamplerArg: tt.arg})
			assert.Contains(t, s.Description(), tt.contains)
		})
	}

	var _ trace.Sampler = createSampler(&Config{})
}

func TestParseRatio(t *testing.T) {
	assert.Equal(t, 1.0, parseRatio(""))
	assert.Equal(t, 1.0, parseRatio("bogus"))
	assert.Equal(t, 0.0, parseRatio("-3"))
	assert.Equal(t, 1.0, parseRatio("7"))
	assert.Equal(t, 0.1, parseRatio("0.1"))
}

func TestSplitEndpoint(t *testing.T) {
	ep, plain := splitEndpoint("http://collector:4317")
	assert.Equal(t, "collector:4317", ep)
	assert.True(t, plain)

	ep, plain = splitEndpoint("https://collector:4317")
	assert.Equal(t, "collector:4317", ep)
	assert.False(t, plain)

	ep, plain = splitEndpoint("collector:4317")
	assert.Equal(t, "collector:4317", ep)
	assert.False(t, plain)
}

func TestBuildResource(t *testing.T) {
	res, err := buildResource(&Config{
		ServiceName:    "prime-sieve",
		ServiceVersion: "1.2.3",
		ResourceAttrs:  map[string]string{"team": "math"},
	})
	require.NoError(t, err)

	values := map[string]string{}
	for _, kv := range res.Attributes() {
		values[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "prime-sieve", values["service.name"])
	assert.Equal(t, "1.2.3", values["service.version"])
	assert.Equal(t, "math", values["team"])
}
