// Package pipeline implements the three-stage meta-analysis pipeline: find
// studies, extract their data, optionally compact it, then produce a
// schema-validated analysis. Stages run strictly in order; each stage makes
// exactly one logical gateway call with its own retry budget.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/timothy-han/mara/internal/config"
	"github.com/timothy-han/mara/pkg/models"
)

var (
	// ErrEmptyInput means a stage was invoked with no upstream text. No
	// gateway call is made.
	ErrEmptyInput = errors.New("stage input is empty")
	// ErrAnalysisFailed means the final stage exhausted its schema retry
	// budget without producing valid output.
	ErrAnalysisFailed = errors.New("analysis failed schema validation")
)

// Stages holds the per-stage logic. Each method composes a prompt from a
// fixed template plus the upstream text and makes one retried gateway call.
type Stages struct {
	model           models.ModelClient
	callTimeout     time.Duration
	retry           RetryPolicy
	scheme          models.ConfidenceScheme
	analysisRetries int
	logger          *slog.Logger
}

func NewStages(model models.ModelClient, cfg *config.Config, logger *slog.Logger) (*Stages, error) {
	scheme, err := models.SchemeByName(cfg.Pipeline.ConfidenceScheme)
	if err != nil {
		return nil, err
	}
	return &Stages{
		model:       model,
		callTimeout: cfg.AI.InferenceTimeout,
		retry: RetryPolicy{
			Attempts: cfg.Pipeline.StageAttempts,
			Backoff:  cfg.Pipeline.RetryBackoff,
			Logger:   logger,
		},
		scheme:          scheme,
		analysisRetries: cfg.Pipeline.AnalysisRetries,
		logger:          logger,
	}, nil
}

// Scheme returns the active confidence scheme.
func (s *Stages) Scheme() models.ConfidenceScheme { return s.scheme }

// FindStudies locates candidate studies for the query and returns them as a
// citation list, highest quality first. Double quotes in the output are
// flattened to single quotes so the list embeds cleanly in later prompts.
func (s *Stages) FindStudies(ctx context.Context, query string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", ErrEmptyInput
	}
	out, err := s.generate(ctx, composeFindStudies(query), false)
	if err != nil {
		return "", fmt.Errorf("find studies: %w", err)
	}
	return strings.ReplaceAll(out, `"`, "'"), nil
}

// ExtractData pulls the statistical fields out of each located study into a
// markdown table. Newlines are flattened because the table is forwarded
// inside a single prompt line downstream.
func (s *Stages) ExtractData(ctx context.Context, studies string) (string, error) {
	if strings.TrimSpace(studies) == "" {
		return "", ErrEmptyInput
	}
	out, err := s.generate(ctx, composeExtractData(studies), false)
	if err != nil {
		return "", fmt.Errorf("extract data: %w", err)
	}
	return flattenNewlines(out), nil
}

// CompactData re-encodes the extracted table as CSV to cut token volume
// before analysis. Purely a size reduction; it must not add or drop rows.
func (s *Stages) CompactData(ctx context.Context, table string) (string, error) {
	if strings.TrimSpace(table) == "" {
		return "", ErrEmptyInput
	}
	out, err := s.generate(ctx, composeCompaction(table), false)
	if err != nil {
		return "", fmt.Errorf("compact data: %w", err)
	}
	return strings.ReplaceAll(flattenNewlines(out), `"`, "'"), nil
}

// Analyze runs the meta-analysis over the prepared dataset and validates the
// model's JSON against the result schema. On a validation failure the same
// prompt is resubmitted up to the configured retry budget; the raw text of
// each failed attempt is logged for offline prompt diagnosis.
func (s *Stages) Analyze(ctx context.Context, dataset string) (models.AnalysisResult, error) {
	if strings.TrimSpace(dataset) == "" {
		return models.AnalysisResult{}, ErrEmptyInput
	}
	prompt := composeAnalysis(dataset, s.scheme)

	attempts := s.analysisRetries + 1
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		raw, err := s.generate(ctx, prompt, true)
		if err != nil {
			return models.AnalysisResult{}, fmt.Errorf("analyze: %w", err)
		}

		// Raw text goes to the validator untouched: it strips fences and
		// neutralizes in-string control characters itself, and flattening
		// first would glue a fence language tag onto the JSON.
		result, err := ParseAnalysis(raw, s.scheme)
		if err == nil {
			return result, nil
		}
		lastErr = err

		var schemaErr *SchemaError
		if errors.As(err, &schemaErr) {
			s.logger.Warn("analysis output rejected",
				slog.Int("attempt", attempt),
				slog.Int("budget", attempts),
				slog.String("error", schemaErr.Err.Error()),
				slog.String("raw_output", schemaErr.Raw))
		}
		if ctx.Err() != nil {
			return models.AnalysisResult{}, ctx.Err()
		}
	}
	return models.AnalysisResult{}, fmt.Errorf("%w after %d attempts: %w", ErrAnalysisFailed, attempts, lastErr)
}

// FollowUp streams an answer to a question about a completed run, grounding
// the model in the session's stored analysis and dataset. Returns the full
// concatenated response for history append.
func (s *Stages) FollowUp(ctx context.Context, sess *models.Session, analysisJSON, message string, onChunk func(string) error) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", ErrEmptyInput
	}
	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	var full strings.Builder
	err := s.model.GenerateStream(callCtx, models.GenerateRequest{
		Prompt: composeFollowUp(sess, analysisJSON, message),
	}, func(chunk string) error {
		full.WriteString(chunk)
		return onChunk(chunk)
	})
	if err != nil {
		return "", fmt.Errorf("follow-up: %w", err)
	}
	return full.String(), nil
}

// generate makes one retried gateway call with a per-call timeout.
func (s *Stages) generate(ctx context.Context, prompt string, forceJSON bool) (string, error) {
	return s.retry.Do(ctx, func() (string, error) {
		callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
		defer cancel()
		out, err := s.model.Generate(callCtx, models.GenerateRequest{Prompt: prompt, ForceJSON: forceJSON})
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(out) == "" {
			return "", models.ErrEmptyResponse
		}
		return out, nil
	})
}

func flattenNewlines(text string) string {
	text = strings.ReplaceAll(text, "\n", " ")
	return strings.ReplaceAll(text, "\r", " ")
}
