package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	mw "github.com/timothy-han/mara/internal/api/middleware"
	"github.com/timothy-han/mara/internal/api/response"
)

// Rate limits per authenticated user. A chat run monopolizes minutes of
// model time, so it gets one slot per window; follow-ups are cheap.
const (
	chatLimit      = 1
	chatWindow     = 5 * time.Minute
	followUpLimit  = 15
	followUpWindow = time.Hour
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth           *mw.Auth
	RateLimit      *mw.RateLimit
	InternalSecret func(http.Handler) http.Handler

	HealthHandler     http.HandlerFunc
	IssueTokenHandler http.HandlerFunc

	ChatHandler      http.HandlerFunc
	FollowUpHandler  http.HandlerFunc
	GetResultHandler http.HandlerFunc

	TriggerRunHandler http.HandlerFunc
	GetRunHandler     http.HandlerFunc
	ListRunsHandler   http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public health check
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	// Server-to-server token exchange
	r.Group(func(r chi.Router) {
		r.Use(deps.InternalSecret)
		r.Post("/api/v1/auth/token", orNotImplemented(deps.IssueTokenHandler))
	})

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)

		r.With(deps.RateLimit.Limit("chat", chatLimit, chatWindow)).
			Post("/api/v1/chat", orNotImplemented(deps.ChatHandler))
		r.With(deps.RateLimit.Limit("followup", followUpLimit, followUpWindow)).
			Post("/api/v1/followup", orNotImplemented(deps.FollowUpHandler))

		r.Get("/api/v1/results/{resultID}", orNotImplemented(deps.GetResultHandler))

		r.With(deps.RateLimit.Limit("chat", chatLimit, chatWindow)).
			Post("/api/v1/runs", orNotImplemented(deps.TriggerRunHandler))
		r.Get("/api/v1/runs", orNotImplemented(deps.ListRunsHandler))
		r.Get("/api/v1/runs/{runID}", orNotImplemented(deps.GetRunHandler))
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
