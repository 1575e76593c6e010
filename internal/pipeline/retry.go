package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/timothy-han/mara/pkg/models"
)

// RetryPolicy bounds gateway calls for a single stage. Attempts is the total
// call budget including the first attempt, so Attempts=2 means one retry.
// The policy never spans stages; each stage call gets a fresh budget.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
	Logger   *slog.Logger
}

// transient reports whether an error is worth retrying. Everything else is
// permanent: malformed input, context cancellation, emitter failures.
func transient(err error) bool {
	return errors.Is(err, models.ErrProviderUnavailable) ||
		errors.Is(err, models.ErrInferenceTimeout) ||
		errors.Is(err, models.ErrEmptyResponse)
}

// Do runs op until it succeeds, the budget is exhausted, or ctx is done.
func (p RetryPolicy) Do(ctx context.Context, op func() (string, error)) (string, error) {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	attempt := 0
	wrapped := func() (string, error) {
		attempt++
		out, err := op()
		if err == nil {
			return out, nil
		}
		if !transient(err) || ctx.Err() != nil {
			return "", backoff.Permanent(err)
		}
		if p.Logger != nil {
			p.Logger.Warn("gateway call failed, retrying",
				slog.Int("attempt", attempt),
				slog.Int("budget", attempts),
				slog.String("error", err.Error()))
		}
		return "", err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.Backoff), uint64(attempts-1)),
		ctx,
	)
	return backoff.RetryWithData(wrapped, policy)
}
