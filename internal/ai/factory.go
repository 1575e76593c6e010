// Package ai wires the configured model provider behind models.ModelClient.
package ai

import (
	"context"
	"fmt"

	"github.com/timothy-han/mara/internal/ai/anthropic"
	"github.com/timothy-han/mara/internal/ai/gemini"
	"github.com/timothy-han/mara/internal/ai/mock"
	"github.com/timothy-han/mara/internal/config"
	"github.com/timothy-han/mara/pkg/models"
)

// NewProvider constructs the appropriate model provider based on config.
// Called once at server startup.
func NewProvider(ctx context.Context, cfg config.AIConfig) (models.ModelClient, error) {
	switch cfg.Provider {
	case "gemini":
		return gemini.NewProvider(ctx, cfg.Gemini)
	case "anthropic":
		return anthropic.NewProvider(cfg.Anthropic), nil
	case "mock":
		return mock.NewProvider(), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q: must be one of gemini, anthropic, mock", cfg.Provider)
	}
}
