package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	RunStatusPending   = "pending"
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// Run tracks an asynchronous pipeline execution. The API returns a run_id on
// POST /api/v1/runs; the client polls GET /api/v1/runs/{run_id} until status
// is completed or failed.
type Run struct {
	ID             uuid.UUID  `db:"id"              json:"id"`
	UserID         int64      `db:"user_id"         json:"user_id"`
	Query          string     `db:"query"           json:"query"`
	Status         string     `db:"status"          json:"status"`
	ConversationID *string    `db:"conversation_id" json:"conversation_id,omitempty"`
	ErrorMessage   *string    `db:"error_message"   json:"error_message,omitempty"`
	StartedAt      *time.Time `db:"started_at"      json:"started_at,omitempty"`
	CompletedAt    *time.Time `db:"completed_at"    json:"completed_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at"      json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"      json:"updated_at"`
}

// AnalysisRecord is the durable row written when a run completes, so results
// survive session expiry and process restarts.
type AnalysisRecord struct {
	ID               uuid.UUID  `db:"id"                json:"id"`
	RunID            uuid.UUID  `db:"run_id"            json:"run_id"`
	UserID           int64      `db:"user_id"           json:"user_id"`
	ConversationID   string     `db:"conversation_id"   json:"conversation_id"`
	Provider         string     `db:"provider"          json:"provider"`
	Summary          string     `db:"summary"           json:"summary"`
	Confidence       Confidence `db:"confidence"        json:"confidence"`
	Process          string     `db:"process"           json:"process"`
	RegressionModels string     `db:"regression_models" json:"regression_models"`
	Plots            *string    `db:"plots"             json:"plots,omitempty"`
	CreatedAt        time.Time  `db:"created_at"        json:"created_at"`
}

// Result converts the durable row back into the wire-level analysis shape.
func (r *AnalysisRecord) Result() AnalysisResult {
	return AnalysisResult{
		Summary:    r.Summary,
		Confidence: r.Confidence,
		Details: AnalysisDetails{
			Process:          r.Process,
			RegressionModels: r.RegressionModels,
			Plots:            r.Plots,
		},
	}
}
