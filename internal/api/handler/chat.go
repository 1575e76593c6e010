package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	mw "github.com/timothy-han/mara/internal/api/middleware"
	"github.com/timothy-han/mara/internal/api/response"
	"github.com/timothy-han/mara/internal/api/sse"
	"github.com/timothy-han/mara/internal/pipeline"
	"github.com/timothy-han/mara/pkg/models"
)

// PipelineRunner defines the pipeline operations the streaming handlers
// depend on.
type PipelineRunner interface {
	Run(ctx context.Context, user *models.User, query string, emit pipeline.Emitter) (*models.Session, error)
	FollowUp(ctx context.Context, user *models.User, conversationID, message string, emit pipeline.Emitter) error
}

// NewChatHandler returns the handler for POST /api/v1/chat. It runs the full
// pipeline synchronously, streaming progress events back as SSE. Input
// validation happens before the stream opens so client faults get a proper
// HTTP status instead of an error event.
func NewChatHandler(runner PipelineRunner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := mw.GetUser(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
			return
		}

		var req struct {
			Message string `json:"message"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if strings.TrimSpace(req.Message) == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "message is required", nil)
			return
		}

		stream, err := sse.Start(w)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Streaming unsupported", nil)
			return
		}

		// Terminal events (result, conversation_id or a single error) are
		// emitted by the runner; errors returned here were already reported
		// on the stream or mean the client is gone.
		_, _ = runner.Run(r.Context(), user, req.Message, func(ev pipeline.Event) error {
			return stream.Send(ev)
		})
	}
}
