package telemetry

import (
	"os"
	"strconv"
	"strings"
)

// DefaultServiceName is reported when OTEL_SERVICE_NAME is unset.
const DefaultServiceName = "prime-sieve"

// Config holds OpenTelemetry settings read from the standard OTEL_*
// environment variables.
type Config struct {
	Enabled        bool              // OTEL_ENABLED
	ServiceName    string            // OTEL_SERVICE_NAME
	ServiceVersion string            // OTEL_SERVICE_VERSION
	Endpoint       string            // OTEL_EXPORTER_OTLP_ENDPOINT
	Protocol       string            // OTEL_EXPORTER_OTLP_PROTOCOL: grpc or http/protobuf
	Headers        map[string]string // OTEL_EXPORTER_OTLP_HEADERS: k1=v1,k2=v2
	Insecure       bool              // OTEL_EXPORTER_OTLP_INSECURE
	Sampler        string            // OTEL_TRACES_SAMPLER
	SamplerArg     string            // OTEL_TRACES_SAMPLER_ARG
	ResourceAttrs  map[string]string // OTEL_RESOURCE_ATTRIBUTES: k1=v1,k2=v2
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() *Config {
	return &Config{
		Enabled:        envBool("OTEL_ENABLED"),
		ServiceName:    getEnvOrDefault("OTEL_SERVICE_NAME", DefaultServiceName),
		ServiceVersion: getEnvOrDefault("OTEL_SERVICE_VERSION", "unknown"),
		Endpoint:       os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		Protocol:       getEnvOrDefault("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"),
		Headers:        parseKeyValuePairs(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS")),
		Insecure:       envBool("OTEL_EXPORTER_OTLP_INSECURE"),
		Sampler:        os.Getenv("OTEL_TRACES_SAMPLER"),
		SamplerArg:     os.Getenv("OTEL_TRACES_SAMPLER_ARG"),
		ResourceAttrs:  parseKeyValuePairs(os.Getenv("OTEL_RESOURCE_ATTRIBUTES")),
	}
}

func envBool(key string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	return err == nil && v
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseKeyValuePairs parses "k1=v1,k2=v2". Entries without a key are skipped
// and values may themselves contain '='.
func parseKeyValuePairs(s string) map[string]string {
	result := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		result[key] = strings.TrimSpace(value)
	}
	return result
}
