package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	charmlog "github.com/charmbracelet/log"
	"go.opentelemetry.io/otel/trace"
)

const (
	attrTraceID = "trace_id"
	attrSpanID  = "span_id"
	attrService = "service"
	attrVersion = "version"
	attrEnv     = "env"
	attrMode    = "mode"
	attrFile    = "file"
)

// prettyTimeFormat is the timestamp layout of the pretty handler.
const prettyTimeFormat = "15:04:05.00"

type fileKey struct{}

// WithFile returns ctx tagged with the input file being laid out. Records
// logged with the returned context carry a file attribute.
func WithFile(ctx context.Context, path string) context.Context {
	return context.WithValue(ctx, fileKey{}, path)
}

// FileFromContext returns the input file set by [WithFile].
func FileFromContext(ctx context.Context) (string, bool) {
	path, ok := ctx.Value(fileKey{}).(string)

	return path, ok && path != ""
}

// ContextHandler is an [slog.Handler] that adds the OpenTelemetry span and
// the input file found in the record context. Binary metadata (service,
// version, mode, env) is attached once at construction so it stays at the
// top level under groups.
type ContextHandler struct {
	inner slog.Handler
}

// NewContextHandler wraps inner with the binary metadata of cfg.
func NewContextHandler(inner slog.Handler, cfg Config) *ContextHandler {
	attrs := []slog.Attr{
		slog.String(attrService, cfg.ServiceName),
		slog.String(attrMode, string(cfg.Mode)),
	}

	if cfg.ServiceVersion != "" {
		attrs = append(attrs, slog.String(attrVersion, cfg.ServiceVersion))
	}

	if cfg.Environment != "" {
		attrs = append(attrs, slog.String(attrEnv, cfg.Environment))
	}

	return &ContextHandler{inner: inner.WithAttrs(attrs)}
}

// Enabled delegates to the inner handler.
func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle adds span ids and the input file from ctx, then delegates.
func (h *ContextHandler) Handle(ctx context.Context, record slog.Record) error {
	if path, ok := FileFromContext(ctx); ok {
		record.AddAttrs(slog.String(attrFile, path))
	}

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		record.AddAttrs(
			slog.String(attrTraceID, sc.TraceID().String()),
			slog.String(attrSpanID, sc.SpanID().String()),
		)
	}

	err := h.inner.Handle(ctx, record)
	if err != nil {
		return fmt.Errorf("context handler: %w", err)
	}

	return nil
}

// WithAttrs implements [slog.Handler].
func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{inner: h.inner.WithAttrs(attrs)}
}

// WithGroup implements [slog.Handler].
func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{inner: h.inner.WithGroup(name)}
}

// NewLogger builds the process logger for cfg: a json, text or pretty
// handler wrapped in a ContextHandler.
func NewLogger(cfg Config) *slog.Logger {
	out := cfg.LogOutput
	if out == nil {
		out = os.Stderr
	}

	return slog.New(NewContextHandler(newFormatHandler(out, cfg), cfg))
}

func newFormatHandler(out io.Writer, cfg Config) slog.Handler {
	handlerOpts := &slog.HandlerOptions{Level: cfg.LogLevel}

	switch cfg.LogFormat {
	case LogFormatJSON:
		return slog.NewJSONHandler(out, handlerOpts)
	case LogFormatPretty:
		// Charm levels share slog's numeric scale.
		return charmlog.NewWithOptions(out, charmlog.Options{
			ReportTimestamp: true,
			TimeFormat:      prettyTimeFormat,
			Level:           charmlog.Level(cfg.LogLevel),
		})
	default:
		return slog.NewTextHandler(out, handlerOpts)
	}
}
