package server

import (
	"crypto/subtle"
	"net/http"

	"go.uber.org/zap"
)

const apiKeyHeader = "X-API-KEY"

// apiKeyMiddleware rejects requests whose X-API-KEY header does not
// match the configured key. All /api/v1 routes sit behind it; /health
// does not.
func apiKeyMiddleware(next http.Handler, apiKey string, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get(apiKeyHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(apiKey)) != 1 {
			logger.Warn("Rejected request with invalid API key",
				zap.String("path", r.URL.Path),
				zap.String("remote", r.RemoteAddr),
			)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"status":"failed","message":"Could not validate API KEY"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}
