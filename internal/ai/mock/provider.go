// Package mock provides a scripted models.ModelClient for tests and local
// development without a real provider key.
package mock

import (
	"context"

	"github.com/timothy-han/mara/pkg/models"
)

// MockProvider satisfies models.ModelClient for testing.
type MockProvider struct {
	Name_        string
	GenerateFunc func(ctx context.Context, req models.GenerateRequest) (string, error)
	StreamFunc   func(ctx context.Context, req models.GenerateRequest, onChunk func(string) error) error
}

func (m *MockProvider) Name() string { return m.Name_ }

func (m *MockProvider) Generate(ctx context.Context, req models.GenerateRequest) (string, error) {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}
	return "", nil
}

func (m *MockProvider) GenerateStream(ctx context.Context, req models.GenerateRequest, onChunk func(string) error) error {
	if m.StreamFunc != nil {
		return m.StreamFunc(ctx, req, onChunk)
	}
	text, err := m.Generate(ctx, req)
	if err != nil {
		return err
	}
	return onChunk(text)
}

// NewProvider returns a MockProvider with sensible default responses,
// including a valid analysis JSON document for constrained calls.
func NewProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock",
		GenerateFunc: func(_ context.Context, req models.GenerateRequest) (string, error) {
			if req.ForceJSON {
				return `{"summary": "Simulated meta-analysis conclusion for testing.", "confidence": "MODERATE", "details": {"process": "Simulated multivariate meta-regression over the provided dataset.", "regression_models": "g = 0.21 (SE 0.05), tau^2 = 0.02", "plots": "Simulated forest plot description."}}`, nil
			}
			return "Mock response: processed prompt for testing", nil
		},
	}
}

// NewFailingProvider returns a MockProvider that always returns the given error.
func NewFailingProvider(err error) *MockProvider {
	return &MockProvider{
		Name_: "mock-failing",
		GenerateFunc: func(_ context.Context, _ models.GenerateRequest) (string, error) {
			return "", err
		},
		StreamFunc: func(_ context.Context, _ models.GenerateRequest, _ func(string) error) error {
			return err
		},
	}
}

// NewTimeoutProvider returns a MockProvider that blocks until context is cancelled.
func NewTimeoutProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock-timeout",
		GenerateFunc: func(ctx context.Context, _ models.GenerateRequest) (string, error) {
			<-ctx.Done()
			return "", models.ErrInferenceTimeout
		},
		StreamFunc: func(ctx context.Context, _ models.GenerateRequest, _ func(string) error) error {
			<-ctx.Done()
			return models.ErrInferenceTimeout
		},
	}
}

// Compile-time check that MockProvider implements ModelClient.
var _ models.ModelClient = (*MockProvider)(nil)
