package critic

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/shihand/internal/config"
)

// fakeScorer returns a canned score or error.
type fakeScorer struct {
	score Score
	err   error
	delay time.Duration
}

func (f *fakeScorer) Score(ctx context.Context, planText string) (Score, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return Score{}, ctx.Err()
		}
	}
	if f.err != nil {
		return Score{}, f.err
	}
	return f.score, nil
}

func writeScroll(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plan.md")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCritiqueRecomputesTotal(t *testing.T) {
	scorer := &fakeScorer{score: Score{
		Precision:    20,
		Minimalism:   10,
		TestCoverage: 10,
		Total:        99, // capability lies; critic must not trust it
		Issues:       []string{"too vague"},
	}}
	c := New(scorer, time.Second, zap.NewNop())

	score, err := c.Critique(context.Background(), writeScroll(t, "# plan"))
	require.NoError(t, err)

	assert.Equal(t, 40, score.Total)
	assert.True(t, score.BelowThreshold())
	assert.Equal(t, []string{"too vague"}, score.Issues)
}

func TestCritiqueClampsCategories(t *testing.T) {
	scorer := &fakeScorer{score: Score{
		Precision:    95, // above bound
		Minimalism:   -5, // below bound
		TestCoverage: 30,
	}}
	c := New(scorer, time.Second, zap.NewNop())

	score, err := c.Critique(context.Background(), writeScroll(t, "# plan"))
	require.NoError(t, err)

	assert.Equal(t, MaxPrecision, score.Precision)
	assert.Equal(t, 0, score.Minimalism)
	assert.Equal(t, 30, score.TestCoverage)
	assert.Equal(t, 70, score.Total)
	assert.GreaterOrEqual(t, score.Total, 0)
	assert.LessOrEqual(t, score.Total, 100)
}

func TestCritiquePassingScore(t *testing.T) {
	scorer := &fakeScorer{score: Score{Precision: 38, Minimalism: 25, TestCoverage: 28}}
	c := New(scorer, time.Second, zap.NewNop())

	score, err := c.Critique(context.Background(), writeScroll(t, "# plan"))
	require.NoError(t, err)

	assert.Equal(t, 91, score.Total)
	assert.False(t, score.BelowThreshold())
	assert.NotNil(t, score.Issues)
}

func TestCritiqueMissingScroll(t *testing.T) {
	c := New(&fakeScorer{}, time.Second, zap.NewNop())

	_, err := c.Critique(context.Background(), filepath.Join(t.TempDir(), "absent.md"))
	assert.ErrorIs(t, err, ErrScrollNotFound)
}

func TestCritiqueTimeoutIsNotAZeroScore(t *testing.T) {
	scorer := &fakeScorer{delay: time.Second, score: Score{Precision: 40}}
	c := New(scorer, 10*time.Millisecond, zap.NewNop())

	_, err := c.Critique(context.Background(), writeScroll(t, "# plan"))
	assert.ErrorIs(t, err, ErrScoringUnavailable)
}

func TestCritiqueTransportFailure(t *testing.T) {
	scorer := &fakeScorer{err: errors.New("connection refused")}
	c := New(scorer, time.Second, zap.NewNop())

	_, err := c.Critique(context.Background(), writeScroll(t, "# plan"))
	assert.ErrorIs(t, err, ErrScoringUnavailable)
}

func TestParseScoreResponse(t *testing.T) {
	t.Run("plain json", func(t *testing.T) {
		s, err := parseScoreResponse(`{"precision": 30, "minimalism": 20, "test_coverage": 25, "issues": ["a", "b"]}`)
		require.NoError(t, err)
		assert.Equal(t, 30, s.Precision)
		assert.Equal(t, []string{"a", "b"}, s.Issues)
	})

	t.Run("fenced json", func(t *testing.T) {
		s, err := parseScoreResponse("```json\n{\"precision\": 10, \"minimalism\": 5, \"test_coverage\": 5, \"issues\": []}\n```")
		require.NoError(t, err)
		assert.Equal(t, 10, s.Precision)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := parseScoreResponse("the plan looks fine to me")
		assert.Error(t, err)
	})
}

func TestNewScorer(t *testing.T) {
	base := config.CriticConfig{Model: "m", APIKey: config.Secret("k")}

	t.Run("openai", func(t *testing.T) {
		cfg := base
		cfg.Provider = "openai"
		s, err := NewScorer(cfg)
		require.NoError(t, err)
		assert.IsType(t, &OpenAIScorer{}, s)
	})

	t.Run("anthropic", func(t *testing.T) {
		cfg := base
		cfg.Provider = "anthropic"
		s, err := NewScorer(cfg)
		require.NoError(t, err)
		assert.IsType(t, &AnthropicScorer{}, s)
	})

	t.Run("missing key", func(t *testing.T) {
		cfg := base
		cfg.Provider = "openai"
		cfg.APIKey = ""
		_, err := NewScorer(cfg)
		assert.Error(t, err)
	})

	t.Run("unknown provider", func(t *testing.T) {
		cfg := base
		cfg.Provider = "psychic"
		_, err := NewScorer(cfg)
		assert.Error(t, err)
	})
}
