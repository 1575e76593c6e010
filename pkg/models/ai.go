// Package models contains shared data models used across the MARA codebase.
package models

import (
	"context"
	"errors"
)

// Sentinel errors for model gateway failures. Providers normalize whatever
// their SDK returns into one of these so stage logic can branch on errors.Is.
var (
	// ErrProviderUnavailable covers transport and service-side failures.
	ErrProviderUnavailable = errors.New("model provider unavailable")
	// ErrInferenceTimeout means the call exceeded its deadline.
	ErrInferenceTimeout = errors.New("model inference timeout")
	// ErrEmptyResponse means the provider answered with no usable text.
	ErrEmptyResponse = errors.New("model returned empty response")
)

// GenerateRequest is the input to a single model generation call.
type GenerateRequest struct {
	Prompt string
	// ForceJSON asks the provider for structurally-constrained JSON output.
	// The response is expected, but not guaranteed, to be valid JSON.
	ForceJSON bool
}

// ModelClient is the single choke point for all LLM calls. Never call a
// specific provider SDK directly — always inject this interface.
//
// Implementations must not retry internally; retry policy belongs to the
// caller so each pipeline stage can apply its own budget.
type ModelClient interface {
	// Generate sends one prompt and returns the response text.
	Generate(ctx context.Context, req GenerateRequest) (string, error)
	// GenerateStream sends one prompt and delivers response text
	// incrementally through onChunk. A non-nil error from onChunk
	// aborts the stream.
	GenerateStream(ctx context.Context, req GenerateRequest, onChunk func(text string) error) error
	// Name returns the provider identifier (e.g., "gemini", "anthropic").
	Name() string
}
