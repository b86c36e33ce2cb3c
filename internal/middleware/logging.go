package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/Hamxay/-WhatsApp-API-server/internal/observability"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// RequestLogger stores chi's request ID in the context for observability.FromContext
// and logs one line per completed request. Must run after chimiddleware.RequestID.
func RequestLogger() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := r.Context()
			if reqID := chimiddleware.GetReqID(ctx); reqID != "" {
				ctx = observability.WithRequestID(ctx, reqID)
				r = r.WithContext(ctx)
			}

			ww := wrapWriter(w, r)
			next.ServeHTTP(ww, r)

			status := statusOf(ww, r)
			level := slog.LevelInfo
			if status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			observability.FromContext(ctx).Log(ctx, level, "http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", status),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("duration", time.Since(start)),
				slog.String("remote_addr", r.RemoteAddr))
		})
	}
}
