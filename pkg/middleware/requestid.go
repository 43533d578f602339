package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"siteapi/pkg/logger"
)

// RequestID assigns each request a UUID (or adopts the caller's
// X-Request-ID), stores it in the context for logging, and echoes it back
// in the response headers.
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-ID")
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", id)
			ctx := logger.WithRequestID(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
