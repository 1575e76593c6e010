package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/timothy-han/mara/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	CreateRun(ctx context.Context, run *models.Run) error
	GetRun(ctx context.Context, id uuid.UUID, userID int64) (*models.Run, error)
	ListRuns(ctx context.Context, userID int64, page, limit int) ([]*models.Run, int, error)
	UpdateRunStatus(ctx context.Context, id uuid.UUID, status string, opts ...RunUpdateOption) error

	CreateAnalysisRecord(ctx context.Context, rec *models.AnalysisRecord) error
	GetAnalysisRecordByRunID(ctx context.Context, runID uuid.UUID) (*models.AnalysisRecord, error)
}

type runUpdateParams struct {
	ErrorMessage   *string
	ConversationID *string
}

type RunUpdateOption func(*runUpdateParams)

func WithErrorMessage(msg string) RunUpdateOption {
	return func(p *runUpdateParams) {
		p.ErrorMessage = &msg
	}
}

func WithConversationID(id string) RunUpdateOption {
	return func(p *runUpdateParams) {
		p.ConversationID = &id
	}
}
