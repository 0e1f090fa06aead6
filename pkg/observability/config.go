// Package observability provides OpenTelemetry-based tracing, metrics, and
// structured logging for lanepack.
package observability

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// AppMode identifies how the process was launched.
type AppMode string

const (
	// ModeCLI is the command-line mode.
	ModeCLI AppMode = "cli"
	// ModeLibrary is an engine embedded in another program.
	ModeLibrary AppMode = "library"
)

// LogFormat selects the slog handler.
type LogFormat string

// Log formats.
const (
	LogFormatJSON   LogFormat = "json"
	LogFormatText   LogFormat = "text"
	LogFormatPretty LogFormat = "pretty"
)

const (
	// defaultServiceName is the default OTel service name.
	defaultServiceName = "lanepack"

	// defaultShutdownTimeoutSec is the default shutdown timeout in seconds.
	defaultShutdownTimeoutSec = 5
)

// Configuration errors.
var (
	ErrUnknownLogFormat = errors.New("unknown log format")
	ErrUnknownLogLevel  = errors.New("unknown log level")
)

// Config holds all observability configuration.
type Config struct {
	// ServiceName is the OTel resource service name.
	ServiceName string

	// ServiceVersion is the semantic version of the running binary.
	ServiceVersion string

	// Environment is the deployment environment (e.g. "production", "dev").
	Environment string

	// Mode identifies how the binary was launched.
	Mode AppMode

	// OTLPEndpoint is the OTLP gRPC collector address (e.g. "localhost:4317").
	// Empty disables export.
	OTLPEndpoint string

	// OTLPHeaders are additional gRPC metadata headers for the OTLP exporter.
	OTLPHeaders map[string]string

	// OTLPInsecure disables TLS for the OTLP gRPC connection.
	OTLPInsecure bool

	// SampleRatio is the trace sampling ratio (0.0 to 1.0).
	// Zero samples every root span.
	SampleRatio float64

	// Prometheus attaches a pull reader backed by a private registry.
	Prometheus bool

	// LogLevel controls the minimum slog severity.
	LogLevel slog.Level

	// LogFormat selects the log handler.
	LogFormat LogFormat

	// LogOutput receives log records. Nil means os.Stderr.
	LogOutput io.Writer

	// ShutdownTimeoutSec is the maximum seconds to wait for flush on shutdown.
	ShutdownTimeoutSec int
}

// DefaultConfig returns a Config with sensible defaults for zero-config startup.
func DefaultConfig() Config {
	return Config{
		ServiceName:        defaultServiceName,
		Mode:               ModeCLI,
		LogLevel:           slog.LevelInfo,
		LogFormat:          LogFormatText,
		ShutdownTimeoutSec: defaultShutdownTimeoutSec,
	}
}

// ParseLogFormat converts a configuration string into a LogFormat.
func ParseLogFormat(s string) (LogFormat, error) {
	switch f := LogFormat(strings.ToLower(s)); f {
	case LogFormatJSON, LogFormatText, LogFormatPretty:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownLogFormat, s)
	}
}

// ParseLogLevel converts "debug", "info", "warn" or "error" into a slog level.
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level

	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnknownLogLevel, s)
	}

	return level, nil
}
