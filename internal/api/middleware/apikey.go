package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/api/response"
)

// APIKeyHeader carries the internal API key.
const APIKeyHeader = "X-API-Key"

// APIKey returns a middleware that requires the X-API-Key header to equal key.
// An empty key disables the check.
func APIKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if key == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := r.Header.Get(APIKeyHeader)
			if provided == "" {
				response.RespondError(w, http.StatusUnauthorized, "unauthorized", "Missing API key")
				return
			}
			if subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
				response.RespondError(w, http.StatusUnauthorized, "unauthorized", "Invalid API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
