// Package config provides configuration loading and validation for idspan.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/idspan/pkg/observability"
	"github.com/Sumatoshi-tech/idspan/pkg/persist"
)

// Sentinel validation errors.
var (
	ErrEmptyStateName     = errors.New("state name must not be empty")
	ErrInvalidCodec       = errors.New("invalid state codec")
	ErrInvalidLogLevel    = errors.New("invalid log level")
	ErrInvalidLogFormat   = errors.New("invalid log format")
	ErrInvalidSampleRatio = errors.New("sample ratio must be within [0, 1]")
	ErrConfigExists       = errors.New("config file already exists")
)

const (
	// EnvPrefix prefixes every environment variable override, e.g. IDSPAN_STATE_DIR.
	EnvPrefix = "IDSPAN"

	// DefaultFileName is the config file name written by WriteDefault.
	DefaultFileName = "idspan.yaml"

	configName = "idspan"
	configType = "yaml"
	filePerm   = 0o600
	dirPerm    = 0o750
)

// Config holds all configuration for idspan.
type Config struct {
	State     StateConfig     `mapstructure:"state"     yaml:"state"`
	Logging   LoggingConfig   `mapstructure:"logging"   yaml:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
	Metrics   MetricsConfig   `mapstructure:"metrics"   yaml:"metrics"`
}

// StateConfig locates and shapes the persisted interval state.
type StateConfig struct {
	// Dir is the directory holding the state files.
	Dir string `mapstructure:"dir" yaml:"dir"`
	// Name is the base name of the state files.
	Name string `mapstructure:"name" yaml:"name"`
	// Codec is one of raw, lz4 or json.
	Codec string `mapstructure:"codec" yaml:"codec"`
	// Limit is the largest identifier of a newly initialized state.
	Limit uint32 `mapstructure:"limit" yaml:"limit"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// TelemetryConfig holds OpenTelemetry export configuration.
type TelemetryConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint" yaml:"otlp_endpoint"`
	OTLPHeaders  string  `mapstructure:"otlp_headers"  yaml:"otlp_headers"`
	ServiceName  string  `mapstructure:"service_name"  yaml:"service_name"`
	Environment  string  `mapstructure:"environment"   yaml:"environment"`
	SampleRatio  float64 `mapstructure:"sample_ratio"  yaml:"sample_ratio"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure" yaml:"otlp_insecure"`
}

// MetricsConfig holds metrics-specific configuration.
type MetricsConfig struct {
	Namespace string `mapstructure:"namespace" yaml:"namespace"`
	Enabled   bool   `mapstructure:"enabled"   yaml:"enabled"`
}

// LoadConfig loads configuration from file and environment variables.
// An empty configPath searches the working directory, $HOME/.config/idspan
// and /etc/idspan for idspan.yaml; not finding one there is not an error.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.SetConfigType(configType)
		viperCfg.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viperCfg.AddConfigPath(filepath.Join(home, ".config", configName))
		}

		viperCfg.AddConfigPath("/etc/idspan")
	}

	viperCfg.SetEnvPrefix(EnvPrefix)
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := config.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

// Validate checks the configuration for unusable values.
func (c *Config) Validate() error {
	if c.State.Name == "" {
		return ErrEmptyStateName
	}

	_, err := persist.CodecByName(c.State.Codec)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidCodec, c.State.Codec)
	}

	_, ok := observability.ParseLevel(c.Logging.Level)
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Logging.Level)
	}

	if c.Logging.Format != LogFormatText && c.Logging.Format != LogFormatJSON {
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.Logging.Format)
	}

	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidSampleRatio, c.Telemetry.SampleRatio)
	}

	return nil
}

// Observability converts the logging and telemetry sections.
func (c *Config) Observability(serviceVersion string) observability.Config {
	cfg := observability.DefaultConfig()
	cfg.ServiceVersion = serviceVersion
	cfg.LogJSON = c.Logging.Format == LogFormatJSON
	cfg.LogLevel, _ = observability.ParseLevel(c.Logging.Level)
	cfg.OTLPEndpoint = c.Telemetry.OTLPEndpoint
	cfg.OTLPInsecure = c.Telemetry.OTLPInsecure
	cfg.OTLPHeaders = observability.ParseOTLPHeaders(c.Telemetry.OTLPHeaders)
	cfg.SampleRatio = c.Telemetry.SampleRatio
	cfg.Environment = c.Telemetry.Environment
	cfg.State = c.State.Name

	if c.Telemetry.ServiceName != "" {
		cfg.ServiceName = c.Telemetry.ServiceName
	}

	return cfg
}

// WriteDefault writes the default configuration as YAML to path.
// An existing file is kept unless force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		_, err := os.Stat(path)
		if err == nil {
			return fmt.Errorf("%w: %s", ErrConfigExists, path)
		}
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}

	err = os.MkdirAll(filepath.Dir(path), dirPerm)
	if err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	err = os.WriteFile(path, data, filePerm)
	if err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}
