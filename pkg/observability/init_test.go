package observability_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/idspan/pkg/observability"
)

func TestInit_NoopWhenNoEndpoint(t *testing.T) {
	t.Parallel()

	providers, err := observability.Init(observability.DefaultConfig())
	require.NoError(t, err)

	assert.NotNil(t, providers.Tracer)
	assert.NotNil(t, providers.Meter)
	assert.NotNil(t, providers.Logger)
	assert.NotNil(t, providers.Registry)

	ctx, span := providers.Tracer.Start(context.Background(), "test-op")
	assert.False(t, span.SpanContext().IsValid(), "no-op tracer records nothing")
	span.End()

	assert.NotNil(t, ctx)
	assert.NoError(t, providers.Shutdown(context.Background()))
}

func TestInit_LoggerWritesToOutput(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	cfg := observability.DefaultConfig()
	cfg.Output = &buf
	cfg.LogJSON = true
	cfg.Environment = "test"
	cfg.State = "ports"

	providers, err := observability.Init(cfg)
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, providers.Shutdown(context.Background())) })

	providers.Logger.Info("hidden")
	providers.Logger.Warn("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"env":"test"`)
	assert.Contains(t, out, `"state":"ports"`)
}

func TestInit_MetricsReachRegistry(t *testing.T) {
	t.Parallel()

	cfg := observability.DefaultConfig()
	cfg.ServiceVersion = "1.2.3"
	cfg.Mode = observability.ModeEmbedded

	providers, err := observability.Init(cfg)
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, providers.Shutdown(context.Background())) })

	om, err := observability.NewOpMetrics(providers.Meter)
	require.NoError(t, err)

	om.Record(context.Background(), "reserve", nil, time.Millisecond)

	families, err := providers.Registry.Gather()
	require.NoError(t, err)

	var found bool

	for _, family := range families {
		if strings.HasPrefix(family.GetName(), "idspan_operations") {
			found = true
		}
	}

	assert.True(t, found, "operation counter exported through the registry")
}
