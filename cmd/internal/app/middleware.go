package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"authjwt/cmd/identity/ids"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RequestIDHeader echoes the per-request ULID to clients.
const RequestIDHeader = "X-Request-ID"

// WithRequestLogging tags each request with a ULID, logs it, and records HTTP metrics.
// It must be mounted with Router.Use so the matched route pattern is visible after next returns.
// The id is stored under chi's RequestIDKey, so middleware.GetReqID reads it downstream.
func WithRequestLogging(log *slog.Logger, metrics *httpMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ctx := r.Context()
			if id, err := ids.NewULID(start); err == nil {
				ctx = context.WithValue(ctx, middleware.RequestIDKey, id)
				w.Header().Set(RequestIDHeader, id)
			}
			r = r.WithContext(ctx)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			elapsed := time.Since(start)
			route := routePattern(r)

			level, result := requestLogMeta(status)
			log.LogAttrs(ctx, level, "http.request",
				slog.String("request_id", middleware.GetReqID(ctx)),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("route", route),
				slog.Int("status", status),
				slog.String("status_class", statusClass(status)),
				slog.String("result", result),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Int64("duration_ms", elapsed.Milliseconds()),
				slog.String("remote", r.RemoteAddr),
				slog.String("user_agent", r.UserAgent()),
			)

			metrics.observe(r.Method, route, status, elapsed)
		})
	}
}

// WithSecurityHeaders sets conservative browser hardening headers on every response.
func WithSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		next.ServeHTTP(w, r)
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

func requestLogMeta(status int) (slog.Level, string) {
	switch {
	case status >= 500:
		return slog.LevelError, "server_error"
	case status >= 400:
		return slog.LevelWarn, "client_error"
	case status >= 300:
		return slog.LevelInfo, "redirect"
	default:
		return slog.LevelInfo, "success"
	}
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
