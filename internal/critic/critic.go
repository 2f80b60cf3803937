// Package critic scores written plan documents ("scrolls") against a fixed
// rubric through an external scoring capability.
package critic

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrScrollNotFound indicates the plan document does not exist.
	ErrScrollNotFound = errors.New("scroll not found")

	// ErrScoringUnavailable indicates the scoring capability was
	// unreachable or timed out. It is never converted into a zero score.
	ErrScoringUnavailable = errors.New("scoring capability unavailable")
)

// Rubric bounds. The three categories sum to 100.
const (
	MaxPrecision    = 40
	MaxMinimalism   = 30
	MaxTestCoverage = 30

	// PassThreshold is the total below which a plan needs escalation.
	PassThreshold = 80
)

// Score is the rubric result for one plan. Total is always recomputed from
// the clamped categories, never trusted from the capability.
type Score struct {
	Precision    int      `json:"precision"`
	Minimalism   int      `json:"minimalism"`
	TestCoverage int      `json:"testCoverage"`
	Total        int      `json:"total"`
	Issues       []string `json:"issues"`
}

// BelowThreshold reports whether the plan needs escalation.
func (s Score) BelowThreshold() bool {
	return s.Total < PassThreshold
}

// Scorer is the abstract scoring capability. Production implementations call
// an LLM provider; tests substitute deterministic fakes.
type Scorer interface {
	// Score rates the plan text under the rubric. Implementations must
	// honor ctx cancellation and return raw, possibly out-of-bounds
	// category values; the Critic clamps.
	Score(ctx context.Context, planText string) (Score, error)
}

// Critic reads plan documents and submits them to a Scorer under a bounded
// wait.
type Critic struct {
	scorer  Scorer
	timeout time.Duration
	logger  *zap.Logger
}

// New creates a Critic. timeout bounds each capability call.
func New(scorer Scorer, timeout time.Duration, logger *zap.Logger) *Critic {
	return &Critic{scorer: scorer, timeout: timeout, logger: logger.Named("critic")}
}

// Critique scores the plan document at path. A capability timeout or
// transport failure surfaces as ErrScoringUnavailable, not a partial score.
func (c *Critic) Critique(ctx context.Context, path string) (Score, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Score{}, fmt.Errorf("%w: %s", ErrScrollNotFound, path)
		}
		return Score{}, fmt.Errorf("reading scroll %s: %w", path, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.scorer.Score(ctx, string(content))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return Score{}, fmt.Errorf("%w: %v", ErrScoringUnavailable, err)
		}
		if errors.Is(err, ErrScoringUnavailable) {
			return Score{}, err
		}
		return Score{}, fmt.Errorf("%w: %v", ErrScoringUnavailable, err)
	}

	score := clamp(raw)
	c.logger.Info("plan critiqued",
		zap.String("scroll", path),
		zap.Int("total", score.Total),
		zap.Int("issues", len(score.Issues)))

	return score, nil
}

// clamp forces each category into its declared bound and recomputes the
// total, defending against a misbehaving capability.
func clamp(s Score) Score {
	s.Precision = clampInt(s.Precision, 0, MaxPrecision)
	s.Minimalism = clampInt(s.Minimalism, 0, MaxMinimalism)
	s.TestCoverage = clampInt(s.TestCoverage, 0, MaxTestCoverage)
	s.Total = s.Precision + s.Minimalism + s.TestCoverage
	if s.Issues == nil {
		s.Issues = []string{}
	}
	return s
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
