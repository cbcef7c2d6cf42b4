// Package trace - HTTP/WebSocket middleware for trace extraction.
package trace

import (
	"net/http"
	"time"
)

// Middleware extracts or creates trace context for HTTP requests, echoes the trace ID
// back in the response headers and logs each request at debug level.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tc := extractFromHeaders(r)
		ctx := WithContext(r.Context(), tc)
		w.Header().Set(TraceIDKey, tc.TraceID)

		start := time.Now()
		next.ServeHTTP(w, r.WithContext(ctx))
		Logger(ctx).Debug("http request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

// extractFromHeaders gets trace context from HTTP headers.
func extractFromHeaders(r *http.Request) Context {
	return FromMap(map[string]string{
		TraceIDKey: r.Header.Get(TraceIDKey),
		SpanIDKey:  r.Header.Get(SpanIDKey),
	})
}
