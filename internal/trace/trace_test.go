package trace

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func captureLogs(t *testing.T, level slog.Level) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: level})))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestRoot(t *testing.T) {
	seen := make(map[string]bool)
	for range 100 {
		tc := Root()
		if len(tc.TraceID) != 32 || len(tc.SpanID) != 16 {
			t.Fatalf("Root() = %+v, want 32/16 hex chars", tc)
		}
		if tc.ParentSpanID != "" {
			t.Errorf("root has parent %q", tc.ParentSpanID)
		}
		if seen[tc.TraceID] {
			t.Fatal("duplicate trace ID")
		}
		seen[tc.TraceID] = true
	}
}

func TestChild(t *testing.T) {
	parent := Root()
	child := parent.Child()

	if child.TraceID != parent.TraceID {
		t.Errorf("child trace = %q, want %q", child.TraceID, parent.TraceID)
	}
	if child.SpanID == parent.SpanID || child.ParentSpanID != parent.SpanID {
		t.Errorf("child = %+v, parent = %+v", child, parent)
	}

	if orphan := (Context{}).Child(); orphan.TraceID == "" || orphan.ParentSpanID != "" {
		t.Errorf("zero Child() = %+v, want a new root", orphan)
	}
}

func TestContextRoundTrip(t *testing.T) {
	if _, ok := FromContext(context.Background()); ok {
		t.Error("empty context carries a trace")
	}

	ctx, tc := EnsureContext(context.Background())
	got, ok := FromContext(ctx)
	if !ok || got != tc {
		t.Errorf("FromContext() = %+v, %v; want %+v", got, ok, tc)
	}
	if _, again := EnsureContext(ctx); again != tc {
		t.Errorf("EnsureContext replaced an existing trace: %+v", again)
	}
}

func TestFromMap(t *testing.T) {
	tests := []struct {
		name       string
		in         map[string]string
		wantTrace  string
		wantParent string
	}{
		{"continues caller", map[string]string{TraceIDKey: "trace123", SpanIDKey: "span456"}, "trace123", "span456"},
		{"no trace", map[string]string{SpanIDKey: "span456"}, "", ""},
		{"empty", map[string]string{}, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := FromMap(tt.in)
			if len(tc.SpanID) != 16 {
				t.Errorf("SpanID = %q", tc.SpanID)
			}
			if tt.wantTrace == "" {
				if len(tc.TraceID) != 32 || tc.ParentSpanID != "" {
					t.Errorf("FromMap() = %+v, want a new root", tc)
				}
				return
			}
			if tc.TraceID != tt.wantTrace || tc.ParentSpanID != tt.wantParent {
				t.Errorf("FromMap() = %+v", tc)
			}
		})
	}
}

func TestSpanNesting(t *testing.T) {
	ctx, parent := StartSpan(context.Background(), "run")
	_, child := StartSpan(ctx, "detect_iteration")

	if child.Ctx.TraceID != parent.Ctx.TraceID || child.Ctx.ParentSpanID != parent.Ctx.SpanID {
		t.Errorf("child = %+v, parent = %+v", child.Ctx, parent.Ctx)
	}
}

func TestSpanAttrs(t *testing.T) {
	_, span := StartSpan(context.Background(), "detect_iteration")
	span.SetAttr("changed_pixels", 12)
	span.SetAttr("changed_pixels", 301)
	span.SetAttr("motion", true)

	if v, ok := span.Attr("changed_pixels"); !ok || v != int64(301) {
		t.Errorf("changed_pixels = %v (%T), %v", v, v, ok)
	}
	if _, ok := span.Attr("action_error"); ok {
		t.Error("unset attribute reported")
	}
	if span.Duration() != 0 {
		t.Error("Duration before End should be zero")
	}
}

func TestSpanEndLogs(t *testing.T) {
	buf := captureLogs(t, slog.LevelDebug)

	_, span := StartSpan(context.Background(), "detect_iteration")
	span.SetAttr("changed_pixels", 301)
	span.End()
	span.End()

	out := buf.String()
	if n := strings.Count(out, "span.name=detect_iteration"); n != 1 {
		t.Errorf("span logged %d times, want once: %q", n, out)
	}
	for _, want := range []string{"span.trace_id=" + span.Ctx.TraceID, "span.changed_pixels=301"} {
		if !strings.Contains(out, want) {
			t.Errorf("log %q missing %q", out, want)
		}
	}
}

func TestSpanEndQuietAtInfo(t *testing.T) {
	buf := captureLogs(t, slog.LevelInfo)
	_, span := StartSpan(context.Background(), "detect_iteration")
	span.End()
	if buf.Len() != 0 {
		t.Errorf("span logged at info level: %q", buf.String())
	}
}

func TestLogger(t *testing.T) {
	buf := captureLogs(t, slog.LevelInfo)

	ctx, span := StartSpan(context.Background(), "detect_iteration")
	Logger(ctx).Info("motion detected", "changed_pixels", 301)

	out := buf.String()
	for _, want := range []string{"trace_id=" + span.Ctx.TraceID, "span_id=" + span.Ctx.SpanID, "changed_pixels=301"} {
		if !strings.Contains(out, want) {
			t.Errorf("log line %q missing %q", out, want)
		}
	}
}

func TestLoggerWithoutTrace(t *testing.T) {
	if Logger(context.Background()) != slog.Default() {
		t.Error("Logger without trace should be the default logger")
	}
}
