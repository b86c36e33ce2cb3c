package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Hamxay/-WhatsApp-API-server/internal/observability"

	"github.com/go-chi/chi/v5"
)

// Metrics records request count and latency per chi route pattern, so chatroom IDs
// and usernames in the path never become label values. Long-lived WebSocket
// requests are counted in flight until the connection ends.
func Metrics() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			observability.HTTPRequestsInFlight.Inc()
			defer observability.HTTPRequestsInFlight.Dec()

			start := time.Now()
			ww := wrapWriter(w, r)
			next.ServeHTTP(ww, r)

			labels := []string{r.Method, routePattern(r), strconv.Itoa(statusOf(ww, r))}
			observability.HTTPRequestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
			observability.HTTPRequestsTotal.WithLabelValues(labels...).Inc()
		})
	}
}

// routePattern is filled in by chi once routing finished, which is after next returns
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil || rctx.RoutePattern() == "" {
		return "unmatched"
	}
	return rctx.RoutePattern()
}
