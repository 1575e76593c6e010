package pipeline_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timothy-han/mara/internal/pipeline"
	"github.com/timothy-han/mara/pkg/models"
)

func TestRetryPolicy_SucceedsFirstTry(t *testing.T) {
	policy := pipeline.RetryPolicy{Attempts: 3}

	calls := 0
	out, err := policy.Do(context.Background(), func() (string, error) {
		calls++
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 1, calls)
}

func TestRetryPolicy_RetriesTransientThenSucceeds(t *testing.T) {
	policy := pipeline.RetryPolicy{Attempts: 3}

	calls := 0
	out, err := policy.Do(context.Background(), func() (string, error) {
		calls++
		if calls < 3 {
			return "", models.ErrProviderUnavailable
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 3, calls)
}

// The budget is total attempts: exhausting it makes exactly Attempts calls,
// not more.
func TestRetryPolicy_ExhaustsBudgetExactly(t *testing.T) {
	policy := pipeline.RetryPolicy{Attempts: 3}

	calls := 0
	_, err := policy.Do(context.Background(), func() (string, error) {
		calls++
		return "", models.ErrInferenceTimeout
	})
	assert.ErrorIs(t, err, models.ErrInferenceTimeout)
	assert.Equal(t, 3, calls)
}

func TestRetryPolicy_PermanentErrorNotRetried(t *testing.T) {
	policy := pipeline.RetryPolicy{Attempts: 5}
	permanent := errors.New("bad request")

	calls := 0
	_, err := policy.Do(context.Background(), func() (string, error) {
		calls++
		return "", permanent
	})
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestRetryPolicy_EmptyResponseIsTransient(t *testing.T) {
	policy := pipeline.RetryPolicy{Attempts: 2}

	calls := 0
	out, err := policy.Do(context.Background(), func() (string, error) {
		calls++
		if calls == 1 {
			return "", models.ErrEmptyResponse
		}
		return "text", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "text", out)
	assert.Equal(t, 2, calls)
}

func TestRetryPolicy_CancelledContextStops(t *testing.T) {
	policy := pipeline.RetryPolicy{Attempts: 5}

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := policy.Do(ctx, func() (string, error) {
		calls++
		cancel()
		return "", models.ErrProviderUnavailable
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
