// Package anthropic implements models.ModelClient using the Anthropic API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/timothy-han/mara/internal/config"
	"github.com/timothy-han/mara/pkg/models"
)

// jsonSystemPrompt nudges Claude toward bare JSON output when the caller
// requested a constrained response; the Messages API has no JSON mode.
const jsonSystemPrompt = "Respond with a single valid JSON object and nothing else. No markdown fences, no commentary."

// Provider implements models.ModelClient using Anthropic.
type Provider struct {
	client    sdk.Client
	model     sdk.Model
	maxTokens int64
}

func NewProvider(cfg config.AnthropicConfig) *Provider {
	return &Provider{
		client:    sdk.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:     sdk.Model(cfg.Model),
		maxTokens: int64(cfg.MaxTokens),
	}
}

func (p *Provider) Name() string { return "anthropic" }

func (p *Provider) Generate(ctx context.Context, req models.GenerateRequest) (string, error) {
	msg, err := p.client.Messages.New(ctx, p.messageParams(req))
	if err != nil {
		return "", classifyError(err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	text := b.String()
	if strings.TrimSpace(text) == "" {
		return "", models.ErrEmptyResponse
	}
	return text, nil
}

func (p *Provider) GenerateStream(ctx context.Context, req models.GenerateRequest, onChunk func(string) error) error {
	stream := p.client.Messages.NewStreaming(ctx, p.messageParams(req))
	sawText := false
	for stream.Next() {
		event := stream.Current()
		if event.Type != "content_block_delta" {
			continue
		}
		delta := event.AsContentBlockDelta()
		if delta.Delta.Type != "text_delta" || delta.Delta.Text == "" {
			continue
		}
		sawText = true
		if err := onChunk(delta.Delta.Text); err != nil {
			return err
		}
	}
	if err := stream.Err(); err != nil {
		return classifyError(err)
	}
	if !sawText {
		return models.ErrEmptyResponse
	}
	return nil
}

func (p *Provider) messageParams(req models.GenerateRequest) sdk.MessageNewParams {
	params := sdk.MessageNewParams{
		Model:     p.model,
		MaxTokens: p.maxTokens,
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(req.Prompt)),
		},
	}
	if req.ForceJSON {
		params.System = []sdk.TextBlockParam{
			{Type: "text", Text: jsonSystemPrompt},
		}
	}
	return params
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
