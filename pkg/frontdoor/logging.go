package frontdoor

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// RequestIDHeader carries a caller-supplied request id.
const RequestIDHeader = "X-Request-ID"

type contextKey string

// RequestIDContextKey is the context key for the request id.
const RequestIDContextKey contextKey = "requestID"

// RequestIDMiddleware stores the caller's X-Request-ID, or a fresh one, in
// the request context. The request itself is not otherwise changed.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), RequestIDContextKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestIDFromContext extracts the request id from ctx.
func GetRequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(RequestIDContextKey).(string)
	return id, ok
}

// StructuredLogger writes access log records.
type StructuredLogger struct {
	logger *slog.Logger
}

// NewStructuredLogger creates a new structured logger
func NewStructuredLogger(logger *slog.Logger) *StructuredLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &StructuredLogger{logger: logger}
}

// LogHTTPRequest logs a dispatched request. Health checks are logged at
// debug level.
func (sl *StructuredLogger) LogHTTPRequest(ctx context.Context, method, path, route string, statusCode int, duration time.Duration) {
	attrs := []slog.Attr{
		slog.String("method", method),
		slog.String("path", path),
		slog.String("route", route),
		slog.Int("status_code", statusCode),
		slog.Duration("duration", duration),
	}

	if id, ok := GetRequestIDFromContext(ctx); ok {
		attrs = append(attrs, slog.String("request_id", id))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		attrs = append(attrs,
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}

	level := slog.LevelInfo
	switch {
	case statusCode >= 500:
		level = slog.LevelError
	case statusCode >= 400:
		level = slog.LevelWarn
	case route == RouteHealth.String():
		level = slog.LevelDebug
	}

	sl.logger.LogAttrs(ctx, level, "HTTP request", attrs...)
}
