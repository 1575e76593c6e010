package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/timothy-han/mara/internal/api/response"
	"github.com/timothy-han/mara/internal/session"
)

// NewGetResultHandler returns the handler for GET /api/v1/results/{resultID}.
// Intermediate stage outputs are served as plain text while their TTL lasts.
func NewGetResultHandler(sessions session.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resultID := chi.URLParam(r, "resultID")
		if resultID == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "result id is required", nil)
			return
		}

		text, err := sessions.GetArtifact(r.Context(), resultID)
		if errors.Is(err, session.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Result not found or expired", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch result", nil)
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(text))
	}
}
