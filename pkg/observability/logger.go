package observability

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

const (
	attrTraceID = "trace_id"
	attrSpanID  = "span_id"
	attrService = "service"
	attrEnv     = "env"
	attrMode    = "mode"
	attrState   = "state"
)

// HandlerMeta is the set of attributes a TracingHandler puts on every record.
// Empty Environment and State are left out.
type HandlerMeta struct {
	Service     string
	Environment string
	State       string
	Mode        AppMode
}

func (hm HandlerMeta) attrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String(attrService, hm.Service),
		slog.String(attrMode, string(hm.Mode)),
	}

	if hm.Environment != "" {
		attrs = append(attrs, slog.String(attrEnv, hm.Environment))
	}

	if hm.State != "" {
		attrs = append(attrs, slog.String(attrState, hm.State))
	}

	return attrs
}

// TracingHandler is an [slog.Handler] that tags records with the trace_id and
// span_id of the active span and with the process metadata. The metadata is
// attached before any group opens, so it stays at the top level.
type TracingHandler struct {
	inner slog.Handler
}

// NewTracingHandler wraps inner.
func NewTracingHandler(inner slog.Handler, meta HandlerMeta) *TracingHandler {
	return &TracingHandler{inner: inner.WithAttrs(meta.attrs())}
}

// Enabled delegates to the inner handler.
func (th *TracingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return th.inner.Enabled(ctx, level)
}

// Handle adds the span context, then delegates.
func (th *TracingHandler) Handle(ctx context.Context, record slog.Record) error {
	sc := trace.SpanContextFromContext(ctx)
	if sc.IsValid() {
		record.AddAttrs(
			slog.String(attrTraceID, sc.TraceID().String()),
			slog.String(attrSpanID, sc.SpanID().String()),
		)
	}

	err := th.inner.Handle(ctx, record)
	if err != nil {
		return fmt.Errorf("tracing handler: %w", err)
	}

	return nil
}

// WithAttrs returns a TracingHandler whose inner handler carries attrs.
func (th *TracingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TracingHandler{inner: th.inner.WithAttrs(attrs)}
}

// WithGroup returns a TracingHandler whose inner handler opens group name.
func (th *TracingHandler) WithGroup(name string) slog.Handler {
	return &TracingHandler{inner: th.inner.WithGroup(name)}
}

// ParseLevel maps a level name (debug, info, warn, error) to a slog level.
// Unknown names yield slog.LevelInfo and false.
func ParseLevel(name string) (slog.Level, bool) {
	var level slog.Level

	err := level.UnmarshalText([]byte(name))
	if err != nil {
		return slog.LevelInfo, false
	}

	return level, true
}
