package config

import (
	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/idspan/pkg/itvl"
	"github.com/Sumatoshi-tech/idspan/pkg/metrics"
	"github.com/Sumatoshi-tech/idspan/pkg/persist"
)

// State defaults.
const (
	DefaultStateDir   = "."
	DefaultStateName  = "ids"
	DefaultStateCodec = persist.CodecRaw
	DefaultStateLimit = itvl.MaxID
)

// Logging defaults.
const (
	DefaultLogLevel  = "warn"
	DefaultLogFormat = LogFormatText
)

// Telemetry defaults.
const (
	DefaultServiceName  = "idspan"
	DefaultSampleRatio  = 1.0
	DefaultOTLPInsecure = false
)

// Metrics defaults.
const (
	DefaultMetricsEnabled   = true
	DefaultMetricsNamespace = metrics.DefaultNamespace
)

// Log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Default returns the configuration used when no file or environment overrides exist.
func Default() *Config {
	return &Config{
		State: StateConfig{
			Dir:   DefaultStateDir,
			Name:  DefaultStateName,
			Codec: DefaultStateCodec,
			Limit: uint32(DefaultStateLimit),
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Telemetry: TelemetryConfig{
			ServiceName:  DefaultServiceName,
			SampleRatio:  DefaultSampleRatio,
			OTLPInsecure: DefaultOTLPInsecure,
		},
		Metrics: MetricsConfig{
			Enabled:   DefaultMetricsEnabled,
			Namespace: DefaultMetricsNamespace,
		},
	}
}

// setDefaults registers every default with viper so that environment
// variables are picked up for keys absent from the file.
func setDefaults(viperCfg *viper.Viper) {
	def := Default()

	// State defaults.
	viperCfg.SetDefault("state.dir", def.State.Dir)
	viperCfg.SetDefault("state.name", def.State.Name)
	viperCfg.SetDefault("state.codec", def.State.Codec)
	viperCfg.SetDefault("state.limit", def.State.Limit)

	// Logging defaults.
	viperCfg.SetDefault("logging.level", def.Logging.Level)
	viperCfg.SetDefault("logging.format", def.Logging.Format)

	// Telemetry defaults.
	viperCfg.SetDefault("telemetry.otlp_endpoint", def.Telemetry.OTLPEndpoint)
	viperCfg.SetDefault("telemetry.otlp_insecure", def.Telemetry.OTLPInsecure)
	viperCfg.SetDefault("telemetry.otlp_headers", def.Telemetry.OTLPHeaders)
	viperCfg.SetDefault("telemetry.sample_ratio", def.Telemetry.SampleRatio)
	viperCfg.SetDefault("telemetry.service_name", def.Telemetry.ServiceName)
	viperCfg.SetDefault("telemetry.environment", def.Telemetry.Environment)

	// Metrics defaults.
	viperCfg.SetDefault("metrics.enabled", def.Metrics.Enabled)
	viperCfg.SetDefault("metrics.namespace", def.Metrics.Namespace)
}
