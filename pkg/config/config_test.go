package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/idspan/pkg/config"
	"github.com/Sumatoshi-tech/idspan/pkg/itvl"
	"github.com/Sumatoshi-tech/idspan/pkg/persist"
)

const (
	testLimit       = 4096
	testSampleRatio = 0.25
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "idspan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadConfig_EmptyFileUsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, config.Default(), cfg)
	assert.Equal(t, config.DefaultStateName, cfg.State.Name)
	assert.Equal(t, persist.CodecRaw, cfg.State.Codec)
	assert.Equal(t, uint32(itvl.MaxID), cfg.State.Limit)
	assert.Equal(t, config.DefaultLogLevel, cfg.Logging.Level)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoadConfig_FromFile(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
state:
  dir: /var/lib/idspan
  name: sessions
  codec: lz4
  limit: 4096
logging:
  level: debug
  format: json
telemetry:
  otlp_endpoint: localhost:4317
  otlp_insecure: true
  otlp_headers: "api-key=secret"
  sample_ratio: 0.25
  environment: staging
metrics:
  namespace: sessions
`)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/idspan", cfg.State.Dir)
	assert.Equal(t, "sessions", cfg.State.Name)
	assert.Equal(t, persist.CodecLZ4, cfg.State.Codec)
	assert.Equal(t, uint32(testLimit), cfg.State.Limit)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, config.LogFormatJSON, cfg.Logging.Format)
	assert.Equal(t, "sessions", cfg.Metrics.Namespace)

	obs := cfg.Observability("1.0.0")
	assert.True(t, obs.LogJSON)
	assert.True(t, obs.OTLPInsecure)
	assert.Equal(t, "localhost:4317", obs.OTLPEndpoint)
	assert.Equal(t, map[string]string{"api-key": "secret"}, obs.OTLPHeaders)
	assert.InDelta(t, testSampleRatio, obs.SampleRatio, 0)
	assert.Equal(t, "staging", obs.Environment)
	assert.Equal(t, "1.0.0", obs.ServiceVersion)
	assert.Equal(t, config.DefaultServiceName, obs.ServiceName)
	assert.Equal(t, "sessions", obs.State)
}

func TestLoadConfig_FromEnvironment(t *testing.T) {
	t.Setenv("IDSPAN_STATE_DIR", "/tmp/env-state")
	t.Setenv("IDSPAN_STATE_LIMIT", "4096")
	t.Setenv("IDSPAN_LOGGING_LEVEL", "error")
	t.Setenv("IDSPAN_METRICS_ENABLED", "false")

	cfg, err := config.LoadConfig(writeConfig(t, "state:\n  dir: /from/file\n"))
	require.NoError(t, err)

	assert.Equal(t, "/tmp/env-state", cfg.State.Dir, "environment wins over the file")
	assert.Equal(t, uint32(testLimit), cfg.State.Limit)
	assert.Equal(t, "error", cfg.Logging.Level)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	t.Parallel()

	_, err := config.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		target  error
	}{
		{name: "empty name", content: "state:\n  name: \"\"\n", target: config.ErrEmptyStateName},
		{name: "codec", content: "state:\n  codec: gob\n", target: config.ErrInvalidCodec},
		{name: "log level", content: "logging:\n  level: loud\n", target: config.ErrInvalidLogLevel},
		{name: "log format", content: "logging:\n  format: xml\n", target: config.ErrInvalidLogFormat},
		{name: "sample ratio", content: "telemetry:\n  sample_ratio: 2\n", target: config.ErrInvalidSampleRatio},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := config.LoadConfig(writeConfig(t, tt.content))
			require.ErrorIs(t, err, tt.target)
		})
	}
}

func TestWriteDefault_RoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", config.DefaultFileName)

	require.NoError(t, config.WriteDefault(path, false))

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)

	err = config.WriteDefault(path, false)
	require.ErrorIs(t, err, config.ErrConfigExists)

	require.NoError(t, config.WriteDefault(path, true))
}
