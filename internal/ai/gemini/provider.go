// Package gemini implements models.ModelClient using the Google GenAI API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"google.golang.org/genai"

	"github.com/timothy-han/mara/internal/config"
	"github.com/timothy-han/mara/pkg/models"
)

// Provider implements models.ModelClient using Gemini.
type Provider struct {
	client *genai.Client
	model  string
}

func NewProvider(ctx context.Context, cfg config.GeminiConfig) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Provider{client: client, model: cfg.Model}, nil
}

func (p *Provider) Name() string { return "gemini" }

func (p *Provider) Generate(ctx context.Context, req models.GenerateRequest) (string, error) {
	resp, err := p.client.Models.GenerateContent(ctx, p.model,
		genai.Text(req.Prompt), generationConfig(req))
	if err != nil {
		return "", classifyError(err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", models.ErrEmptyResponse
	}
	return text, nil
}

func (p *Provider) GenerateStream(ctx context.Context, req models.GenerateRequest, onChunk func(string) error) error {
	sawText := false
	for chunk, err := range p.client.Models.GenerateContentStream(ctx, p.model,
		genai.Text(req.Prompt), generationConfig(req)) {
		if err != nil {
			return classifyError(err)
		}
		text := chunk.Text()
		if text == "" {
			continue
		}
		sawText = true
		if err := onChunk(text); err != nil {
			return err
		}
	}
	if !sawText {
		return models.ErrEmptyResponse
	}
	return nil
}

func generationConfig(req models.GenerateRequest) *genai.GenerateContentConfig {
	if !req.ForceJSON {
		return nil
	}
	return &genai.GenerateContentConfig{ResponseMIMEType: "application/json"}
}

// classifyError maps SDK/transport errors to the gateway sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", models.ErrInferenceTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", models.ErrInferenceTimeout, err)
	}

	return fmt.Errorf("%w: %v", models.ErrProviderUnavailable, err)
}

// Compile-time check that Provider implements ModelClient.
var _ models.ModelClient = (*Provider)(nil)
