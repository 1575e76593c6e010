package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/timothy-han/mara/internal/api/response"
)

// InternalSecret guards server-to-server endpoints with a pre-shared secret
// carried in the X-Internal-Secret header. Comparison is constant time.
func InternalSecret(secret string) func(http.Handler) http.Handler {
	expected := []byte(secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := []byte(r.Header.Get("X-Internal-Secret"))
			if len(provided) == 0 || subtle.ConstantTimeCompare(provided, expected) != 1 {
				response.Error(w, http.StatusForbidden,
					"INVALID_SECRET", "Invalid secret key for internal communication", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
