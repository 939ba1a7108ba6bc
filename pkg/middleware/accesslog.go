package middleware

import (
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/geo-search-api/pkg/logger"
)

// AccessLog logs one line per request once it completes.
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		log := logger.FromContext(r.Context())
		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if sw.status >= http.StatusInternalServerError {
			log.Error("request", attrs...)
			return
		}
		log.Info("request", attrs...)
	})
}
