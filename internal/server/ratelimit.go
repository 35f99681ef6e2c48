package server

import (
	"context"
	"net/http"
	"strconv"
	"sync"
)

// rateLimitContextKey is the context key for the rate limit holder
type rateLimitContextKey struct{}

// RateLimitInfo is the most restrictive rate limit seen from the backend
// during one request.
type RateLimitInfo struct {
	Limit     int
	Remaining int
	Reset     string

	// HasRemaining is false when the backend sent no usable
	// X-RateLimit-Remaining; Remaining is then meaningless.
	HasRemaining bool
}

type rateLimitHolder struct {
	mu   sync.Mutex
	info *RateLimitInfo
}

// RecordRateLimits inspects backend response headers and keeps the lowest
// remaining budget seen so far. Safe to call from concurrent backend calls
// of the same request. No-op without RateLimitPassthroughMiddleware.
func RecordRateLimits(ctx context.Context, h http.Header) {
	holder, ok := ctx.Value(rateLimitContextKey{}).(*rateLimitHolder)
	if !ok {
		return
	}

	info, ok := parseRateLimits(h)
	if !ok {
		return
	}

	holder.mu.Lock()
	defer holder.mu.Unlock()
	if moreRestrictive(info, holder.info) {
		holder.info = info
	}
}

// moreRestrictive reports whether next should replace cur. A known remaining
// budget always beats an unknown one.
func moreRestrictive(next, cur *RateLimitInfo) bool {
	switch {
	case cur == nil:
		return true
	case !next.HasRemaining:
		return false
	case !cur.HasRemaining:
		return true
	default:
		return next.Remaining < cur.Remaining
	}
}

// GetRateLimits returns the recorded rate limits, or nil.
func GetRateLimits(ctx context.Context) *RateLimitInfo {
	holder, ok := ctx.Value(rateLimitContextKey{}).(*rateLimitHolder)
	if !ok {
		return nil
	}
	holder.mu.Lock()
	defer holder.mu.Unlock()
	return holder.info
}

func parseRateLimits(h http.Header) (*RateLimitInfo, bool) {
	limit, errLimit := strconv.Atoi(h.Get("X-RateLimit-Limit"))
	remaining, errRemaining := strconv.Atoi(h.Get("X-RateLimit-Remaining"))
	if errLimit != nil && errRemaining != nil {
		return nil, false
	}
	return &RateLimitInfo{
		Limit:        limit,
		Remaining:    remaining,
		Reset:        h.Get("X-RateLimit-Reset"),
		HasRemaining: errRemaining == nil,
	}, true
}

// RateLimitPassthroughMiddleware exposes backend rate limits to the hub as
// x-ratelimit-* response headers so it can back off polling.
func RateLimitPassthroughMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		holder := &rateLimitHolder{}
		ctx := context.WithValue(r.Context(), rateLimitContextKey{}, holder)
		wrapped := &rateLimitResponseWriter{
			ResponseWriter: w,
			holder:         holder,
		}
		next.ServeHTTP(wrapped, r.WithContext(ctx))
	})
}

// rateLimitResponseWriter wraps ResponseWriter to write rate limit headers.
type rateLimitResponseWriter struct {
	http.ResponseWriter
	holder       *rateLimitHolder
	wroteHeaders bool
}

func (rw *rateLimitResponseWriter) WriteHeader(code int) {
	rw.writeRateLimitHeaders()
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *rateLimitResponseWriter) Write(b []byte) (int, error) {
	rw.writeRateLimitHeaders()
	return rw.ResponseWriter.Write(b)
}

func (rw *rateLimitResponseWriter) writeRateLimitHeaders() {
	if rw.wroteHeaders {
		return
	}
	rw.wroteHeaders = true

	rw.holder.mu.Lock()
	rl := rw.holder.info
	rw.holder.mu.Unlock()
	if rl == nil {
		return
	}

	h := rw.Header()
	if rl.Limit > 0 {
		h.Set("x-ratelimit-limit-requests", strconv.Itoa(rl.Limit))
	}
	if rl.HasRemaining {
		h.Set("x-ratelimit-remaining-requests", strconv.Itoa(rl.Remaining))
	}
	if rl.Reset != "" {
		h.Set("x-ratelimit-reset-requests", rl.Reset)
	}
}

// Flush forwards Flush to the underlying ResponseWriter if it supports http.Flusher.
func (rw *rateLimitResponseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
