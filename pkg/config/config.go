// Package config provides configuration loading and validation for lanepack.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/lanepack/pkg/lane"
	"github.com/Sumatoshi-tech/lanepack/pkg/layout"
	"github.com/Sumatoshi-tech/lanepack/pkg/observability"
)

// Sentinel validation errors.
var (
	ErrUnknownOutputFormat = errors.New("unknown output format")
	ErrInvalidMaxRows      = errors.New("output max rows must not be negative")
	ErrInvalidSampleRatio  = errors.New("telemetry sample ratio must be within [0, 1]")
	ErrInvalidTimeout      = errors.New("telemetry shutdown timeout must be positive")
)

// OutputFormat selects how pack results are written.
type OutputFormat string

// Output formats.
const (
	OutputTable OutputFormat = "table"
	OutputJSON  OutputFormat = "json"
	OutputYAML  OutputFormat = "yaml"
)

// ParseOutputFormat converts a configuration string into an OutputFormat.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case OutputTable, OutputJSON, OutputYAML:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownOutputFormat, s)
	}
}

const envPrefix = "LANEPACK"

// Config holds all configuration for lanepack.
type Config struct {
	Layout    LayoutConfig    `mapstructure:"layout"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Output    OutputConfig    `mapstructure:"output"`
}

// LayoutConfig holds placement engine settings.
type LayoutConfig struct {
	Mode                string  `mapstructure:"mode"`
	Backend             string  `mapstructure:"backend"`
	MergePolicy         string  `mapstructure:"merge_policy"`
	Pitch               float64 `mapstructure:"pitch"`
	HardLaneLimit       int     `mapstructure:"hard_lane_limit"`
	MergeEpsilon        int64   `mapstructure:"merge_epsilon"`
	OversizeWidth       int64   `mapstructure:"oversize_width"`
	LinearScanThreshold int     `mapstructure:"linear_scan_threshold"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig holds OpenTelemetry export settings.
type TelemetryConfig struct {
	ServiceName        string            `mapstructure:"service_name"`
	Environment        string            `mapstructure:"environment"`
	OTLPEndpoint       string            `mapstructure:"otlp_endpoint"`
	OTLPHeaders        map[string]string `mapstructure:"otlp_headers"`
	SampleRatio        float64           `mapstructure:"sample_ratio"`
	ShutdownTimeoutSec int               `mapstructure:"shutdown_timeout_sec"`
	OTLPInsecure       bool              `mapstructure:"otlp_insecure"`
	Prometheus         bool              `mapstructure:"prometheus"`
}

// OutputConfig holds result rendering settings.
type OutputConfig struct {
	Format   string `mapstructure:"format"`
	MaxRows  int    `mapstructure:"max_rows"`
	Compress bool   `mapstructure:"compress"`
	Color    bool   `mapstructure:"color"`
}

// LoadConfig loads configuration from file and environment variables.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("lanepack")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
		viperCfg.AddConfigPath("/etc/lanepack")
	}

	viperCfg.SetEnvPrefix(envPrefix)
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

// setDefaults sets default configuration values.
func setDefaults(viperCfg *viper.Viper) {
	engine := layout.DefaultConfig()

	// Layout defaults.
	viperCfg.SetDefault("layout.mode", string(engine.Mode))
	viperCfg.SetDefault("layout.backend", string(engine.Backend))
	viperCfg.SetDefault("layout.merge_policy", string(engine.MergePolicy))
	viperCfg.SetDefault("layout.pitch", engine.Pitch)
	viperCfg.SetDefault("layout.hard_lane_limit", engine.HardLaneLimit)
	viperCfg.SetDefault("layout.merge_epsilon", engine.MergeEpsilon)
	viperCfg.SetDefault("layout.oversize_width", engine.OversizeWidth)
	viperCfg.SetDefault("layout.linear_scan_threshold", engine.LinearScanThreshold)

	obs := observability.DefaultConfig()

	// Logging defaults.
	viperCfg.SetDefault("logging.level", "info")
	viperCfg.SetDefault("logging.format", string(obs.LogFormat))

	// Telemetry defaults.
	viperCfg.SetDefault("telemetry.service_name", obs.ServiceName)
	viperCfg.SetDefault("telemetry.environment", "")
	viperCfg.SetDefault("telemetry.otlp_endpoint", "")
	viperCfg.SetDefault("telemetry.otlp_insecure", false)
	viperCfg.SetDefault("telemetry.sample_ratio", 0.0)
	viperCfg.SetDefault("telemetry.prometheus", false)
	viperCfg.SetDefault("telemetry.shutdown_timeout_sec", obs.ShutdownTimeoutSec)

	// Output defaults.
	viperCfg.SetDefault("output.format", string(OutputTable))
	viperCfg.SetDefault("output.max_rows", 0)
	viperCfg.SetDefault("output.compress", false)
	viperCfg.SetDefault("output.color", true)
}

// Validate checks every section.
func (c *Config) Validate() error {
	if _, err := c.Layout.EngineConfig(); err != nil {
		return err
	}

	if _, err := c.Observability(""); err != nil {
		return err
	}

	if _, err := ParseOutputFormat(c.Output.Format); err != nil {
		return err
	}

	if c.Output.MaxRows < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxRows, c.Output.MaxRows)
	}

	return nil
}

// EngineConfig converts the layout section into a validated engine configuration.
func (l LayoutConfig) EngineConfig() (layout.Config, error) {
	mode, err := layout.ParseMode(l.Mode)
	if err != nil {
		return layout.Config{}, err
	}

	backend, err := lane.ParseBackend(l.Backend)
	if err != nil {
		return layout.Config{}, err
	}

	policy, err := lane.ParseMergePolicy(l.MergePolicy)
	if err != nil {
		return layout.Config{}, err
	}

	cfg := layout.Config{
		Pitch:               l.Pitch,
		HardLaneLimit:       l.HardLaneLimit,
		Mode:                mode,
		Backend:             backend,
		MergeEpsilon:        l.MergeEpsilon,
		MergePolicy:         policy,
		OversizeWidth:       l.OversizeWidth,
		LinearScanThreshold: l.LinearScanThreshold,
	}

	if err := cfg.Validate(); err != nil {
		return layout.Config{}, err
	}

	return cfg, nil
}

// Observability converts the logging and telemetry sections into an
// observability configuration stamped with the given binary version.
func (c *Config) Observability(version string) (observability.Config, error) {
	level, err := observability.ParseLogLevel(c.Logging.Level)
	if err != nil {
		return observability.Config{}, err
	}

	format, err := observability.ParseLogFormat(c.Logging.Format)
	if err != nil {
		return observability.Config{}, err
	}

	t := c.Telemetry

	if t.SampleRatio < 0 || t.SampleRatio > 1 {
		return observability.Config{}, fmt.Errorf("%w: %v", ErrInvalidSampleRatio, t.SampleRatio)
	}

	if t.ShutdownTimeoutSec <= 0 {
		return observability.Config{}, fmt.Errorf("%w: %d", ErrInvalidTimeout, t.ShutdownTimeoutSec)
	}

	cfg := observability.DefaultConfig()
	cfg.ServiceVersion = version
	cfg.Environment = t.Environment
	cfg.OTLPEndpoint = t.OTLPEndpoint
	cfg.OTLPHeaders = t.OTLPHeaders
	cfg.OTLPInsecure = t.OTLPInsecure
	cfg.SampleRatio = t.SampleRatio
	cfg.Prometheus = t.Prometheus
	cfg.ShutdownTimeoutSec = t.ShutdownTimeoutSec
	cfg.LogLevel = level
	cfg.LogFormat = format

	if t.ServiceName != "" {
		cfg.ServiceName = t.ServiceName
	}

	return cfg, nil
}
