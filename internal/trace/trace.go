// Package trace gives every detection iteration and every HTTP or gRPC request a
// W3C-style trace ID that flows into its log lines.
package trace

import (
	"context"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Header and metadata keys used to carry a trace across HTTP and gRPC.
const (
	TraceIDKey      = "x-trace-id"
	SpanIDKey       = "x-span-id"
	ParentSpanIDKey = "x-parent-span-id"
)

type ctxKey struct{}

// Context identifies one span within a trace.
type Context struct {
	TraceID      string
	SpanID       string
	ParentSpanID string
}

// Root starts a new trace.
func Root() Context {
	return Context{TraceID: traceID(), SpanID: spanID()}
}

// Child returns a new span in the same trace with c as its parent.
// A zero Context yields a new root.
func (c Context) Child() Context {
	if c.TraceID == "" {
		return Root()
	}
	return Context{TraceID: c.TraceID, SpanID: spanID(), ParentSpanID: c.SpanID}
}

// FromContext returns the trace carried by ctx.
func FromContext(ctx context.Context) (Context, bool) {
	tc, ok := ctx.Value(ctxKey{}).(Context)
	return tc, ok
}

// WithContext attaches tc to ctx.
func WithContext(ctx context.Context, tc Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, tc)
}

// EnsureContext returns ctx's trace, attaching a new root when there is none.
func EnsureContext(ctx context.Context) (context.Context, Context) {
	if tc, ok := FromContext(ctx); ok {
		return ctx, tc
	}
	tc := Root()
	return WithContext(ctx, tc), tc
}

// FromMap continues the trace named in m (gRPC metadata or HTTP headers) with a new span.
func FromMap(m map[string]string) Context {
	if m[TraceIDKey] == "" {
		return Root()
	}
	return Context{TraceID: m[TraceIDKey], SpanID: spanID(), ParentSpanID: m[SpanIDKey]}
}

// 128-bit trace and 64-bit span IDs, hex encoded.
func traceID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}

func spanID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:8])
}

// Span times one operation. Attributes set on it are written with the
// debug line End emits.
type Span struct {
	Name  string
	Ctx   Context
	Start time.Time

	attrs []slog.Attr
	took  time.Duration
	done  bool
}

// StartSpan opens a child of ctx's span, or a new trace if ctx carries none.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	parent, _ := FromContext(ctx)
	s := &Span{Name: name, Ctx: parent.Child(), Start: time.Now()}
	return WithContext(ctx, s.Ctx), s
}

// SetAttr records key=val for the span's closing log line. Later values for the
// same key replace earlier ones.
func (s *Span) SetAttr(key string, val any) {
	for i := range s.attrs {
		if s.attrs[i].Key == key {
			s.attrs[i].Value = slog.AnyValue(val)
			return
		}
	}
	s.attrs = append(s.attrs, slog.Any(key, val))
}

// Attr returns the value recorded for key.
func (s *Span) Attr(key string) (any, bool) {
	for _, a := range s.attrs {
		if a.Key == key {
			return a.Value.Any(), true
		}
	}
	return nil, false
}

// End closes the span and logs it at debug level. Calls after the first are no-ops.
func (s *Span) End() {
	if s.done {
		return
	}
	s.done = true
	s.took = time.Since(s.Start)
	slog.Default().Debug("span", "span", s)
}

// Duration is zero until End.
func (s *Span) Duration() time.Duration { return s.took }

// LogValue implements slog.LogValuer.
func (s *Span) LogValue() slog.Value {
	attrs := make([]slog.Attr, 0, 5+len(s.attrs))
	attrs = append(attrs,
		slog.String("name", s.Name),
		slog.String("trace_id", s.Ctx.TraceID),
		slog.String("span_id", s.Ctx.SpanID),
		slog.Duration("duration", s.took))
	if s.Ctx.ParentSpanID != "" {
		attrs = append(attrs, slog.String("parent_span_id", s.Ctx.ParentSpanID))
	}
	attrs = append(attrs, s.attrs...)
	return slog.GroupValue(attrs...)
}

// Logger returns the default logger with ctx's trace IDs attached.
func Logger(ctx context.Context) *slog.Logger {
	tc, ok := FromContext(ctx)
	if !ok {
		return slog.Default()
	}
	l := slog.Default().With("trace_id", tc.TraceID, "span_id", tc.SpanID)
	if tc.ParentSpanID != "" {
		l = l.With("parent_span_id", tc.ParentSpanID)
	}
	return l
}
