package middleware

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/cors"
)

const corsPreflightCache = 10 * time.Minute

// CORS allows the configured back-office origins. A "*" entry opens the API
// to any origin but then withholds credentials, since browsers refuse the
// combination anyway.
func CORS(origins []string) func(http.Handler) http.Handler {
	cleaned := make([]string, 0, len(origins))
	for _, o := range origins {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			cleaned = append(cleaned, o)
		}
	}
	if len(cleaned) == 0 {
		cleaned = []string{"http://localhost:3000"}
	}
	wildcard := slices.Contains(cleaned, "*")

	return cors.New(cors.Options{
		AllowedOrigins: cleaned,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", IdempotencyKeyHeader, RequestIDHeader},
		ExposedHeaders:   []string{RequestIDHeader, IdempotentReplayedHeader, "Retry-After"},
		AllowCredentials: !wildcard,
		MaxAge:           int(corsPreflightCache.Seconds()),
	}).Handler
}
