package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/timothy-han/mara/internal/session"
	"github.com/timothy-han/mara/pkg/models"
)

var (
	// ErrSessionNotFound means a follow-up referenced a session that never
	// existed or whose TTL elapsed.
	ErrSessionNotFound = errors.New("conversation not found or has expired")
	// ErrAccessDenied means a follow-up referenced a session owned by a
	// different user.
	ErrAccessDenied = errors.New("access denied to this conversation")
)

// Runner drives one pipeline execution per call. Stages run strictly in
// order; progress events are emitted on entry to each stage, and the caller
// receives exactly one terminal event: a result followed by a conversation
// id, or a single error.
type Runner struct {
	stages     *Stages
	sessions   session.Store
	compaction bool
	logger     *slog.Logger
}

func NewRunner(stages *Stages, sessions session.Store, compaction bool, logger *slog.Logger) *Runner {
	return &Runner{
		stages:     stages,
		sessions:   sessions,
		compaction: compaction,
		logger:     logger,
	}
}

// Run executes the full pipeline for a query. Rejects an empty query before
// any event is emitted or gateway call made. On success the session is
// persisted before the result event goes out, so a follow-up sent
// immediately after the stream closes will find it.
func (r *Runner) Run(ctx context.Context, user *models.User, query string, emit Emitter) (*models.Session, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyInput
	}

	conversationID := uuid.NewString()
	log := r.logger.With(
		slog.String("conversation_id", conversationID),
		slog.Int64("user_id", user.ID))
	log.Info("pipeline run started")

	if err := emit(Event{Type: EventUpdate, Content: "Finding relevant studies..."}); err != nil {
		return nil, err
	}
	studies, err := r.stages.FindStudies(ctx, query)
	if err != nil {
		return nil, r.fail(log, emit, "finding studies", err)
	}
	if err := r.publishArtifact(ctx, conversationID, 1, studies, emit); err != nil {
		return nil, err
	}

	if err := emit(Event{Type: EventUpdate, Content: "Extracting study data..."}); err != nil {
		return nil, err
	}
	dataset, err := r.stages.ExtractData(ctx, studies)
	if err != nil {
		return nil, r.fail(log, emit, "extracting study data", err)
	}
	if err := r.publishArtifact(ctx, conversationID, 2, dataset, emit); err != nil {
		return nil, err
	}

	analysisInput := dataset
	if r.compaction {
		if err := emit(Event{Type: EventUpdate, Content: "Compacting data for analysis..."}); err != nil {
			return nil, err
		}
		analysisInput, err = r.stages.CompactData(ctx, dataset)
		if err != nil {
			return nil, r.fail(log, emit, "compacting data", err)
		}
	}

	if err := emit(Event{Type: EventUpdate, Content: "Analyzing study data..."}); err != nil {
		return nil, err
	}
	analysis, err := r.stages.Analyze(ctx, analysisInput)
	if err != nil {
		return nil, r.fail(log, emit, "analyzing study data", err)
	}

	sess := &models.Session{
		ConversationID: conversationID,
		UserID:         user.ID,
		OriginalQuery:  query,
		StudiesData:    dataset,
		Analysis:       analysis,
		CreatedAt:      time.Now().UTC(),
	}
	if err := r.sessions.PutSession(ctx, sess); err != nil {
		return nil, r.fail(log, emit, "saving the conversation", err)
	}

	if err := emit(Event{Type: EventResult, Content: analysis}); err != nil {
		return nil, err
	}
	if err := emit(Event{Type: EventConversationID, Content: conversationID}); err != nil {
		return nil, err
	}
	log.Info("pipeline run completed", slog.String("confidence", string(analysis.Confidence)))
	return sess, nil
}

// FollowUp answers a question about a completed run, streaming message
// chunks through emit. Ownership and existence are checked before any model
// call; both failures surface as sentinel errors so the transport layer can
// report them distinctly.
func (r *Runner) FollowUp(ctx context.Context, user *models.User, conversationID, message string, emit Emitter) error {
	if strings.TrimSpace(conversationID) == "" || strings.TrimSpace(message) == "" {
		return ErrEmptyInput
	}

	sess, err := r.sessions.GetSession(ctx, conversationID)
	if errors.Is(err, session.ErrNotFound) {
		return ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if sess.UserID != user.ID {
		r.logger.Warn("follow-up ownership check failed",
			slog.String("conversation_id", conversationID),
			slog.Int64("owner_id", sess.UserID),
			slog.Int64("caller_id", user.ID))
		return ErrAccessDenied
	}

	analysisJSON, err := json.Marshal(sess.Analysis)
	if err != nil {
		return fmt.Errorf("encode stored analysis: %w", err)
	}

	answer, err := r.stages.FollowUp(ctx, sess, string(analysisJSON), message, func(chunk string) error {
		return emit(Event{Type: EventMessage, Content: chunk})
	})
	if err != nil {
		return err
	}

	return r.sessions.AppendHistory(ctx, conversationID,
		models.Message{Role: "user", Content: message},
		models.Message{Role: "assistant", Content: answer},
	)
}

// publishArtifact stores an intermediate stage output under a short TTL and
// tells the client where to fetch it.
func (r *Runner) publishArtifact(ctx context.Context, conversationID string, stage int, text string, emit Emitter) error {
	if err := r.sessions.PutArtifact(ctx, conversationID, stage, text); err != nil {
		// Artifact storage is best effort; the run continues without the
		// fetch_result link.
		r.logger.Warn("failed to store stage artifact",
			slog.String("conversation_id", conversationID),
			slog.Int("stage", stage),
			slog.String("error", err.Error()))
		return nil
	}
	return emit(Event{
		Type: EventFetchResult,
		URL:  fmt.Sprintf("/api/v1/results/%s:step%d", conversationID, stage),
	})
}

// fail logs the stage error and emits the run's single terminal error event.
// Raw model output never reaches the client; only the stage description and
// the sentinel error text do.
func (r *Runner) fail(log *slog.Logger, emit Emitter, action string, err error) error {
	log.Error("pipeline run failed",
		slog.String("action", action),
		slog.String("error", err.Error()))
	msg := fmt.Sprintf("An error occurred while %s: %v", action, userFacing(err))
	if emitErr := emit(Event{Type: EventError, Content: msg}); emitErr != nil {
		return emitErr
	}
	return err
}

// userFacing strips wrapped detail down to the outermost sentinel so error
// events stay stable and free of internal context.
func userFacing(err error) error {
	switch {
	case errors.Is(err, models.ErrInferenceTimeout):
		return models.ErrInferenceTimeout
	case errors.Is(err, models.ErrProviderUnavailable):
		return models.ErrProviderUnavailable
	case errors.Is(err, models.ErrEmptyResponse):
		return models.ErrEmptyResponse
	case errors.Is(err, ErrAnalysisFailed):
		return ErrAnalysisFailed
	case errors.Is(err, ErrEmptyInput):
		return ErrEmptyInput
	default:
		return errors.New("internal error")
	}
}
