package critic

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/fyrsmithlabs/shihand/internal/config"
)

// OpenAIScorer scores plans through the OpenAI chat completions API.
type OpenAIScorer struct {
	model string
	opts  []option.RequestOption
}

// NewOpenAIScorer builds a scorer from critic configuration.
func NewOpenAIScorer(cfg config.CriticConfig) (*OpenAIScorer, error) {
	if !cfg.APIKey.IsSet() {
		return nil, errors.New("openai api key missing; set critic.api_key")
	}
	if cfg.Model == "" {
		return nil, errors.New("critic.model is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey.Value())}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIScorer{model: cfg.Model, opts: opts}, nil
}

// Score implements Scorer.
func (s *OpenAIScorer) Score(ctx context.Context, planText string) (Score, error) {
	client := openai.NewClient(s.opts...)

	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(s.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(scoringSystemPrompt),
			openai.UserMessage(planText),
		},
	})
	if err != nil {
		return Score{}, fmt.Errorf("%w: openai: %v", ErrScoringUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return Score{}, fmt.Errorf("%w: openai: empty choices", ErrScoringUnavailable)
	}

	return parseScoreResponse(resp.Choices[0].Message.Content)
}
