package critic

import (
	"fmt"

	"github.com/fyrsmithlabs/shihand/internal/config"
)

// NewScorer selects a scoring backend from configuration.
func NewScorer(cfg config.CriticConfig) (Scorer, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIScorer(cfg)
	case "anthropic":
		return NewAnthropicScorer(cfg)
	default:
		return nil, fmt.Errorf("unsupported critic provider %q", cfg.Provider)
	}
}
