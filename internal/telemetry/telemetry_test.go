package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/hexfog/hexfog/internal/telemetry"
)

func TestInit_Disabled(t *testing.T) {
	ctx := context.Background()

	provider, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    "test-service",
		ServiceVersion: "1.0.0",
		Environment:    "test",
		OTLPEndpoint:   "localhost:4317",
		Enabled:        false,
	})

	require.NoError(t, err)
	assert.NotNil(t, provider)
	assert.NotNil(t, provider.Tracer)
	assert.NotNil(t, provider.Meter)

	assert.Nil(t, provider.TracerProvider)
	assert.Nil(t, provider.MeterProvider)

	assert.NoError(t, provider.Shutdown(ctx))
}

func TestInit_InstallsPropagatorWhenDisabled(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator())

	_, err := telemetry.Init(context.Background(), telemetry.Config{ServiceName: "test"})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"traceparent", "tracestate", "baggage"}, otel.GetTextMapPropagator().Fields())
}

func TestProvider_Shutdown_NilProviders(t *testing.T) {
	provider := &telemetry.Provider{}
	assert.NoError(t, provider.Shutdown(context.Background()))
}

func TestConfigFromEnv(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg := telemetry.ConfigFromEnv("hexfog-api", "v1")

		assert.Equal(t, "hexfog-api", cfg.ServiceName)
		assert.Equal(t, "v1", cfg.ServiceVersion)
		assert.False(t, cfg.Enabled)
		assert.True(t, cfg.Insecure)
		assert.Equal(t, telemetry.DefaultOTLPEndpoint, cfg.OTLPEndpoint)
		assert.Equal(t, telemetry.DefaultSampleRatio, cfg.SampleRatio)
		assert.Equal(t, telemetry.DefaultExportInterval, cfg.ExportInterval)
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("OTEL_ENABLED", "true")
		t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")
		t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.25")
		t.Setenv("OTEL_METRIC_EXPORT_INTERVAL", "30s")
		t.Setenv("APP_ENV", "production")
		t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "false")

		cfg := telemetry.ConfigFromEnv("hexfog-worker", "v2")

		assert.True(t, cfg.Enabled)
		assert.Equal(t, "collector:4317", cfg.OTLPEndpoint)
		assert.InDelta(t, 0.25, cfg.SampleRatio, 1e-9)
		assert.Equal(t, 30*time.Second, cfg.ExportInterval)
		assert.Equal(t, "production", cfg.Environment)
		assert.False(t, cfg.Insecure)
	})
}

func TestSampler(t *testing.T) {
	always := sdktrace.ParentBased(sdktrace.AlwaysSample()).Description()

	assert.Equal(t, always, telemetry.Sampler(1).Description())
	assert.Equal(t, always, telemetry.Sampler(0).Description())
	assert.Equal(t, always, telemetry.Sampler(-2).Description())
	assert.Contains(t, telemetry.Sampler(0.5).Description(), "TraceIDRatioBased{0.5}")
}
