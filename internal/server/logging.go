package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// pollPaths are polled by orchestrators and scrapers; they log at debug.
var pollPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// logFieldsKey identifies request-scoped logging fields.
type logFieldsKey struct{}

// logFields is shared by every goroutine serving one request, including the
// fan-out goroutines of a card request.
type logFields struct {
	mu     sync.Mutex
	values map[string]string
}

func (f *logFields) set(key, value string) {
	f.mu.Lock()
	f.values[key] = value
	f.mu.Unlock()
}

func (f *logFields) attrs() []slog.Attr {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]slog.Attr, 0, len(f.values))
	for k, v := range f.values {
		out = append(out, slog.String(k, v))
	}
	return out
}

// LoggingMiddleware emits one line when a hub request starts and one when it
// completes, carrying the fields handlers attached through AddLogField.
func LoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := GetRequestID(r.Context())
			polled := pollPaths[r.URL.Path]

			fields := &logFields{values: make(map[string]string)}
			ctx := context.WithValue(r.Context(), logFieldsKey{}, fields)
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			startLevel := slog.LevelInfo
			if polled {
				startLevel = slog.LevelDebug
			}
			logger.LogAttrs(ctx, startLevel, "request started",
				slog.String("request_id", requestID),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr),
			)

			next.ServeHTTP(rec, r.WithContext(ctx))

			attrs := append([]slog.Attr{
				slog.String("request_id", requestID),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.status),
				slog.Duration("duration", time.Since(start)),
			}, fields.attrs()...)

			logger.LogAttrs(ctx, completionLevel(rec.status, polled, fields), "request completed", attrs...)
		})
	}
}

// completionLevel is error for connector failures, warn when the backend
// rejected the forwarded credential and debug for polled paths.
func completionLevel(status int, polled bool, fields *logFields) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status == http.StatusBadRequest && fields.has("backend_status"):
		return slog.LevelWarn
	case polled:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

func (f *logFields) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.values[key]
	return ok
}

// statusRecorder captures the status code written by the handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// AddLogField attaches a key/value to the request log line. Safe for
// concurrent use. Empty values and requests outside LoggingMiddleware are
// ignored.
func AddLogField(ctx context.Context, key, value string) {
	if value == "" {
		return
	}
	if fields, ok := ctx.Value(logFieldsKey{}).(*logFields); ok {
		fields.set(key, value)
	}
}

// AddError records err on the request log line.
func AddError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	AddLogField(ctx, "error", err.Error())
}
