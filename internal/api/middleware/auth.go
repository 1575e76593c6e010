package middleware

import (
	"net/http"
	"strings"

	"github.com/timothy-han/mara/internal/api/response"
	"github.com/timothy-han/mara/internal/auth"
)

// Auth provides bearer-token authentication middleware.
type Auth struct {
	issuer *auth.Issuer
}

// NewAuth creates a new Auth middleware.
func NewAuth(issuer *auth.Issuer) *Auth {
	return &Auth{issuer: issuer}
}

// Authenticate validates the Bearer token and sets the current user in the
// request context.
func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r)
		if token == "" {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Missing or invalid Authorization header", nil)
			return
		}

		user, err := a.issuer.Verify(token)
		if err != nil {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Token is invalid or expired", nil)
			return
		}

		next.ServeHTTP(w, r.WithContext(SetUser(r.Context(), user)))
	})
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
