package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/timothy-han/mara/internal/api/response"
	"github.com/timothy-han/mara/internal/auth"
	"github.com/timothy-han/mara/pkg/models"
)

// NewIssueTokenHandler returns the handler for POST /api/v1/auth/token. The
// route sits behind the internal-secret middleware; the upstream site calls
// it to exchange a logged-in user's identity for a bearer token.
func NewIssueTokenHandler(issuer *auth.Issuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID    int64  `json:"id"`
			Email string `json:"email"`
			Name  string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if req.ID == 0 || req.Email == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "id and email are required", nil)
			return
		}

		user := &models.User{ID: req.ID, Email: req.Email, Name: req.Name}
		token, err := issuer.Issue(user)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to issue token", nil)
			return
		}

		slog.Info("issued access token", "user_id", req.ID, "email", req.Email)
		response.JSON(w, map[string]string{
			"access_token": token,
			"token_type":   "bearer",
		})
	}
}
