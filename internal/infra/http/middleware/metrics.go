package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/vulnwatch/api/internal/metrics"
)

// Metrics returns the Prometheus metrics middleware.
func Metrics() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip metrics endpoint itself
			if r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			path := normalizePath(r.URL.Path)

			metrics.HTTPRequestsTotal.WithLabelValues(
				r.Method,
				path,
				strconv.Itoa(wrapped.statusCode),
			).Inc()

			metrics.HTTPRequestDuration.WithLabelValues(
				r.Method,
				path,
			).Observe(time.Since(start).Seconds())
		})
	}
}

// normalizePath replaces dynamic path segments with placeholders to
// keep metric label cardinality bounded.
func normalizePath(path string) string {
	segments := make([]byte, 0, len(path))
	i := 0
	for i < len(path) {
		if path[i] == '/' {
			segments = append(segments, '/')
			i++
			start := i
			for i < len(path) && path[i] != '/' {
				i++
			}
			segment := path[start:i]
			if isID(segment) {
				segments = append(segments, "{id}"...)
			} else {
				segments = append(segments, segment...)
			}
		} else {
			segments = append(segments, path[i])
			i++
		}
	}
	return string(segments)
}

// isID checks if a string looks like an ID (UUID or numeric).
func isID(s string) bool {
	if len(s) == 0 {
		return false
	}

	if len(s) == 36 {
		dashes := 0
		for _, c := range s {
			if c == '-' {
				dashes++
			} else if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
				return false
			}
		}
		if dashes == 4 {
			return true
		}
	}

	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) <= 20
}
