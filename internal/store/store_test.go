package store_test

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/timothy-han/mara/internal/store"
	"github.com/timothy-han/mara/pkg/models"
)

// migrationsDir returns the absolute path to the migrations directory.
func migrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
}

// setupTestDB spins up a Postgres container, runs migrations, and returns a pool.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("mara_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	err = store.RunMigrations(connStr, migrationsDir())
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	return pool
}

func newRun(userID int64) *models.Run {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &models.Run{
		ID:        uuid.New(),
		UserID:    userID,
		Query:     "effect of class size on achievement",
		Status:    models.RunStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// --- Run tests ---

func TestRun_CreateAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := store.NewPostgresStore(setupTestDB(t))
	ctx := context.Background()

	run := newRun(42)
	require.NoError(t, s.CreateRun(ctx, run))

	got, err := s.GetRun(ctx, run.ID, 42)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, run.Query, got.Query)
	assert.Equal(t, models.RunStatusPending, got.Status)
	assert.Nil(t, got.ConversationID)
	assert.Nil(t, got.StartedAt)
}

func TestRun_CreateDuplicate(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := store.NewPostgresStore(setupTestDB(t))
	ctx := context.Background()

	run := newRun(42)
	require.NoError(t, s.CreateRun(ctx, run))
	assert.ErrorIs(t, s.CreateRun(ctx, run), store.ErrDuplicateKey)
}

func TestRun_GetScopedToUser(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := store.NewPostgresStore(setupTestDB(t))
	ctx := context.Background()

	run := newRun(42)
	require.NoError(t, s.CreateRun(ctx, run))

	_, err := s.GetRun(ctx, run.ID, 99)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRun_List(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := store.NewPostgresStore(setupTestDB(t))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		run := newRun(42)
		run.CreatedAt = run.CreatedAt.Add(time.Duration(i) * time.Second)
		require.NoError(t, s.CreateRun(ctx, run))
	}
	require.NoError(t, s.CreateRun(ctx, newRun(99)))

	runs, total, err := s.ListRuns(ctx, 42, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, runs, 2)
	// Newest first.
	assert.True(t, runs[0].CreatedAt.After(runs[1].CreatedAt))
}

func TestRun_StatusLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := store.NewPostgresStore(setupTestDB(t))
	ctx := context.Background()

	run := newRun(42)
	require.NoError(t, s.CreateRun(ctx, run))

	require.NoError(t, s.UpdateRunStatus(ctx, run.ID, models.RunStatusRunning))
	got, err := s.GetRun(ctx, run.ID, 42)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusRunning, got.Status)
	assert.NotNil(t, got.StartedAt)

	require.NoError(t, s.UpdateRunStatus(ctx, run.ID, models.RunStatusCompleted,
		store.WithConversationID("conv-1")))
	got, err = s.GetRun(ctx, run.ID, 42)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, got.Status)
	assert.NotNil(t, got.CompletedAt)
	require.NotNil(t, got.ConversationID)
	assert.Equal(t, "conv-1", *got.ConversationID)
}

func TestRun_FailureStoresErrorMessage(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := store.NewPostgresStore(setupTestDB(t))
	ctx := context.Background()

	run := newRun(42)
	require.NoError(t, s.CreateRun(ctx, run))
	require.NoError(t, s.UpdateRunStatus(ctx, run.ID, models.RunStatusRunning))
	require.NoError(t, s.UpdateRunStatus(ctx, run.ID, models.RunStatusFailed,
		store.WithErrorMessage("model provider unavailable")))

	got, err := s.GetRun(ctx, run.ID, 42)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, "model provider unavailable", *got.ErrorMessage)
}

func TestRun_InvalidTransition(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := store.NewPostgresStore(setupTestDB(t))
	ctx := context.Background()

	run := newRun(42)
	require.NoError(t, s.CreateRun(ctx, run))

	// pending cannot jump straight to completed.
	err := s.UpdateRunStatus(ctx, run.ID, models.RunStatusCompleted)
	assert.ErrorContains(t, err, "invalid run status transition")
}

func TestRun_UpdateStatusNotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := store.NewPostgresStore(setupTestDB(t))

	err := s.UpdateRunStatus(context.Background(), uuid.New(), models.RunStatusRunning)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// --- Analysis record tests ---

func TestAnalysisRecord_CreateAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := store.NewPostgresStore(setupTestDB(t))
	ctx := context.Background()

	run := newRun(42)
	require.NoError(t, s.CreateRun(ctx, run))

	plots := "forest plot description"
	rec := &models.AnalysisRecord{
		ID:               uuid.New(),
		RunID:            run.ID,
		UserID:           42,
		ConversationID:   "conv-1",
		Provider:         "gemini",
		Summary:          "positive effect",
		Confidence:       "HIGH",
		Process:          "multivariate meta-regression",
		RegressionModels: "g = 0.21 (SE 0.05)",
		Plots:            &plots,
		CreatedAt:        time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, s.CreateAnalysisRecord(ctx, rec))

	got, err := s.GetAnalysisRecordByRunID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, models.Confidence("HIGH"), got.Confidence)
	require.NotNil(t, got.Plots)
	assert.Equal(t, plots, *got.Plots)

	result := got.Result()
	assert.Equal(t, "positive effect", result.Summary)
	assert.Equal(t, "multivariate meta-regression", result.Details.Process)
}

func TestAnalysisRecord_OnePerRun(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := store.NewPostgresStore(setupTestDB(t))
	ctx := context.Background()

	run := newRun(42)
	require.NoError(t, s.CreateRun(ctx, run))

	rec := &models.AnalysisRecord{
		ID: uuid.New(), RunID: run.ID, UserID: 42, ConversationID: "c",
		Provider: "mock", Summary: "s", Confidence: "LOW",
		Process: "p", RegressionModels: "r",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.CreateAnalysisRecord(ctx, rec))

	dup := *rec
	dup.ID = uuid.New()
	assert.ErrorIs(t, s.CreateAnalysisRecord(ctx, &dup), store.ErrDuplicateKey)
}

func TestAnalysisRecord_NotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := store.NewPostgresStore(setupTestDB(t))

	_, err := s.GetAnalysisRecordByRunID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}
