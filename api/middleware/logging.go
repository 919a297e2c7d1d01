package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/smes-pos/smes-backend/pkg/logger"
	"github.com/smes-pos/smes-backend/pkg/metrics"
)

const unmatchedRoute = "unmatched"

// Logging records one access entry and one metrics sample per request. It
// runs inside Recoverer, so a handler that panics before writing is logged as
// a 500.
func Logging(logg *logger.Logger, httpMetrics *metrics.HTTPMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusInternalServerError
					if ww.BytesWritten() > 0 {
						status = http.StatusOK
					}
				}
				elapsed := time.Since(start)
				route := routeLabel(r)
				httpMetrics.Observe(route, r.Method, status, elapsed)

				if logg == nil {
					return
				}
				ctx := logg.WithFields(r.Context(), map[string]any{
					"method":      r.Method,
					"route":       route,
					"path":        r.URL.Path,
					"status":      status,
					"bytes":       ww.BytesWritten(),
					"duration_ms": elapsed.Milliseconds(),
					"remote_ip":   clientIP(r),
				})
				if status >= http.StatusInternalServerError {
					logg.Warn(ctx, "request.failed")
					return
				}
				logg.Info(ctx, "request.complete")
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// routeLabel prefers the chi pattern so ids do not explode metric cardinality.
// The pattern is complete only after routing, so it is read once the handler
// has returned.
func routeLabel(r *http.Request) string {
	rc := chi.RouteContext(r.Context())
	if rc == nil {
		return unmatchedRoute
	}
	if pattern := rc.RoutePattern(); pattern != "" {
		return pattern
	}
	return unmatchedRoute
}
