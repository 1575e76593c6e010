package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	mw "github.com/timothy-han/mara/internal/api/middleware"
	"github.com/timothy-han/mara/internal/api/response"
	"github.com/timothy-han/mara/internal/store"
	"github.com/timothy-han/mara/pkg/models"
)

// RunService defines the asynchronous run operations the handlers depend on.
type RunService interface {
	TriggerRun(ctx context.Context, user *models.User, query string) (*models.Run, error)
	GetRun(ctx context.Context, id uuid.UUID, userID int64) (*models.Run, *models.AnalysisRecord, error)
	ListRuns(ctx context.Context, userID int64, page, limit int) ([]*models.Run, int, error)
}

// runResponse is a run row with its analysis attached once completed.
type runResponse struct {
	*models.Run
	Analysis *models.AnalysisResult `json:"analysis,omitempty"`
}

// NewTriggerRunHandler returns the handler for POST /api/v1/runs. The
// pipeline executes in the background; the client polls the returned run id.
func NewTriggerRunHandler(svc RunService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := mw.GetUser(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
			return
		}

		var req struct {
			Query string `json:"query"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if strings.TrimSpace(req.Query) == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "query is required", nil)
			return
		}

		run, err := svc.TriggerRun(r.Context(), user, req.Query)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create run", nil)
			return
		}
		response.Accepted(w, run)
	}
}

// NewGetRunHandler returns the handler for GET /api/v1/runs/{runID}.
func NewGetRunHandler(svc RunService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := mw.GetUser(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "runID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "run id must be a valid UUID", nil)
			return
		}

		run, rec, err := svc.GetRun(r.Context(), id, user.ID)
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Run not found", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch run", nil)
			return
		}

		resp := runResponse{Run: run}
		if rec != nil {
			result := rec.Result()
			resp.Analysis = &result
		}
		response.JSON(w, resp)
	}
}

// NewListRunsHandler returns the handler for GET /api/v1/runs.
func NewListRunsHandler(svc RunService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := mw.GetUser(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
			return
		}

		page := queryInt(r, "page", 1)
		limit := queryInt(r, "limit", 20)
		if page < 1 {
			page = 1
		}
		if limit < 1 || limit > 100 {
			limit = 20
		}

		runs, total, err := svc.ListRuns(r.Context(), user.ID, page, limit)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list runs", nil)
			return
		}

		response.Collection(w, runs, response.PaginationMeta{
			Page:    page,
			Limit:   limit,
			Total:   total,
			HasNext: page*limit < total,
		})
	}
}

func queryInt(r *http.Request, key string, defaultVal int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}
