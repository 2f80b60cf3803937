package critic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/fyrsmithlabs/shihand/internal/config"
)

const anthropicMaxTokens = 2048

// AnthropicScorer scores plans through the Anthropic messages API.
type AnthropicScorer struct {
	model  string
	client anthropic.Client
}

// NewAnthropicScorer builds a scorer from critic configuration.
func NewAnthropicScorer(cfg config.CriticConfig) (*AnthropicScorer, error) {
	if !cfg.APIKey.IsSet() {
		return nil, errors.New("anthropic api key missing; set critic.api_key")
	}
	if cfg.Model == "" {
		return nil, errors.New("critic.model is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey.Value())}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &AnthropicScorer{model: cfg.Model, client: anthropic.NewClient(opts...)}, nil
}

// Score implements Scorer.
func (s *AnthropicScorer) Score(ctx context.Context, planText string) (Score, error) {
	msg, err := s.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: anthropicMaxTokens,
		System:    []anthropic.TextBlockParam{{Text: scoringSystemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(planText)),
		},
	})
	if err != nil {
		return Score{}, fmt.Errorf("%w: anthropic: %v", ErrScoringUnavailable, err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(tb.Text)
		}
	}
	if text.Len() == 0 {
		return Score{}, fmt.Errorf("%w: anthropic: empty response", ErrScoringUnavailable)
	}

	return parseScoreResponse(text.String())
}
