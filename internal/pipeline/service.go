package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/timothy-han/mara/internal/cache"
	"github.com/timothy-han/mara/internal/store"
	"github.com/timothy-han/mara/pkg/models"
)

// runStatusTTL bounds how long a run's status lives in the cache; the
// database row is the durable record.
const runStatusTTL = 24 * time.Hour

// Service wraps the Runner with the asynchronous run lifecycle: a run row is
// created in the database, the pipeline executes in the background, and the
// client polls for status instead of holding a stream open.
type Service struct {
	runner *Runner
	store  store.Store
	cache  cache.Cache
	logger *slog.Logger
}

func NewService(runner *Runner, st store.Store, c cache.Cache, logger *slog.Logger) *Service {
	return &Service{
		runner: runner,
		store:  st,
		cache:  c,
		logger: logger,
	}
}

// TriggerRun records a pending run and starts the pipeline in the
// background. Returns immediately with the run the client should poll.
func (s *Service) TriggerRun(ctx context.Context, user *models.User, query string) (*models.Run, error) {
	now := time.Now().UTC()
	run := &models.Run{
		ID:        uuid.New(),
		UserID:    user.ID,
		Query:     query,
		Status:    models.RunStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateRun(ctx, run); err != nil {
		return nil, err
	}
	if err := s.cache.SetRunStatus(ctx, run.ID, run.Status, runStatusTTL); err != nil {
		s.logger.Warn("failed to cache run status", slog.String("run_id", run.ID.String()), slog.String("error", err.Error()))
	}

	go s.execute(run, user)

	return run, nil
}

// GetRun returns a run and, when completed, its persisted analysis.
func (s *Service) GetRun(ctx context.Context, id uuid.UUID, userID int64) (*models.Run, *models.AnalysisRecord, error) {
	run, err := s.store.GetRun(ctx, id, userID)
	if err != nil {
		return nil, nil, err
	}
	if run.Status != models.RunStatusCompleted {
		return run, nil, nil
	}
	rec, err := s.store.GetAnalysisRecordByRunID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return run, rec, nil
}

// ListRuns returns a page of the user's runs, newest first.
func (s *Service) ListRuns(ctx context.Context, userID int64, page, limit int) ([]*models.Run, int, error) {
	return s.store.ListRuns(ctx, userID, page, limit)
}

// execute drives the pipeline for a background run. Uses a fresh context
// because the triggering request has already returned. Progress events are
// discarded; polling clients read status from the run row.
func (s *Service) execute(run *models.Run, user *models.User) {
	ctx := context.Background()
	log := s.logger.With(slog.String("run_id", run.ID.String()), slog.Int64("user_id", user.ID))

	defer func() {
		if r := recover(); r != nil {
			log.Error("pipeline run panicked", slog.Any("panic", r))
			s.transition(ctx, run.ID, models.RunStatusFailed, store.WithErrorMessage("internal error"))
		}
	}()

	s.transition(ctx, run.ID, models.RunStatusRunning)

	discard := func(Event) error { return nil }
	sess, err := s.runner.Run(ctx, user, run.Query, discard)
	if err != nil {
		log.Error("background run failed", slog.String("error", err.Error()))
		s.transition(ctx, run.ID, models.RunStatusFailed, store.WithErrorMessage(userFacing(err).Error()))
		return
	}

	rec := &models.AnalysisRecord{
		ID:               uuid.New(),
		RunID:            run.ID,
		UserID:           user.ID,
		ConversationID:   sess.ConversationID,
		Provider:         s.runner.stages.model.Name(),
		Summary:          sess.Analysis.Summary,
		Confidence:       sess.Analysis.Confidence,
		Process:          sess.Analysis.Details.Process,
		RegressionModels: sess.Analysis.Details.RegressionModels,
		Plots:            sess.Analysis.Details.Plots,
		CreatedAt:        time.Now().UTC(),
	}
	if err := s.store.CreateAnalysisRecord(ctx, rec); err != nil {
		log.Error("failed to persist analysis", slog.String("error", err.Error()))
		s.transition(ctx, run.ID, models.RunStatusFailed, store.WithErrorMessage("failed to persist analysis"))
		return
	}

	s.transition(ctx, run.ID, models.RunStatusCompleted, store.WithConversationID(sess.ConversationID))
	log.Info("background run completed", slog.String("conversation_id", sess.ConversationID))
}

// transition mirrors a status change to the database and the cache. Cache
// failures are logged and ignored; the database row wins.
func (s *Service) transition(ctx context.Context, id uuid.UUID, status string, opts ...store.RunUpdateOption) {
	if err := s.store.UpdateRunStatus(ctx, id, status, opts...); err != nil {
		s.logger.Error("failed to update run status",
			slog.String("run_id", id.String()),
			slog.String("status", status),
			slog.String("error", err.Error()))
	}
	if err := s.cache.SetRunStatus(ctx, id, status, runStatusTTL); err != nil {
		s.logger.Warn("failed to cache run status",
			slog.String("run_id", id.String()),
			slog.String("error", err.Error()))
	}
}
