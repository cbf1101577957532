package middleware

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Linh3694/frappe-erp-sub001/internal/auth"
)

// responseWriter captures HTTP status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware logs each HTTP request with status and duration.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		log.Printf("[HTTP] %s %s %d %s from %s", r.Method, r.URL.Path, rw.statusCode, duration, r.RemoteAddr)
	})
}

// CampusScopeMiddleware reads the X-Campus-ID header into the request context
// so downstream handlers can enforce campus scoping. A missing or malformed
// header leaves the context unscoped; the upstream gateway owns authentication.
func CampusScopeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get("X-Campus-ID"))
		if raw != "" {
			if id, err := uuid.Parse(raw); err == nil {
				r = r.WithContext(auth.ContextWithCampusID(r.Context(), id))
			}
		}
		next.ServeHTTP(w, r)
	})
}
