package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	mw "github.com/timothy-han/mara/internal/api/middleware"
	"github.com/timothy-han/mara/internal/api/response"
	"github.com/timothy-han/mara/internal/api/sse"
	"github.com/timothy-han/mara/internal/pipeline"
)

// NewFollowUpHandler returns the handler for POST /api/v1/followup. Answers
// stream back as message chunks. Session lookup failures surface as error
// events on the stream, matching what the frontend's SSE consumer expects.
func NewFollowUpHandler(runner PipelineRunner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := mw.GetUser(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
			return
		}

		var req struct {
			ConversationID string `json:"conversation_id"`
			Message        string `json:"message"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if strings.TrimSpace(req.ConversationID) == "" || strings.TrimSpace(req.Message) == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "conversation_id and message are required", nil)
			return
		}

		stream, err := sse.Start(w)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Streaming unsupported", nil)
			return
		}

		err = runner.FollowUp(r.Context(), user, req.ConversationID, req.Message, func(ev pipeline.Event) error {
			return stream.Send(ev)
		})
		switch {
		case err == nil:
		case errors.Is(err, pipeline.ErrSessionNotFound):
			_ = stream.Send(pipeline.Event{Type: pipeline.EventError, Content: "Conversation not found or has expired."})
		case errors.Is(err, pipeline.ErrAccessDenied):
			_ = stream.Send(pipeline.Event{Type: pipeline.EventError, Content: "Access denied to this conversation."})
		default:
			_ = stream.Send(pipeline.Event{Type: pipeline.EventError, Content: "An error occurred while answering the follow-up."})
		}
	}
}
