package critic

import (
	"encoding/json"
	"fmt"
	"strings"
)

// scoringSystemPrompt is the fixed rubric sent to every provider.
const scoringSystemPrompt = `You review written plans for an autonomous coding loop.
Rate the plan on three categories:
- precision (0-40): the plan targets one specific, well-diagnosed problem with evidence
- minimalism (0-30): the change is the smallest that fixes the problem
- test_coverage (0-30): the plan states how the fix will be verified, with concrete criteria

Respond with a single JSON object and nothing else:
{"precision": <int>, "minimalism": <int>, "test_coverage": <int>, "issues": ["<issue>", ...]}
List every concrete weakness as an issue string.`

// rawScore is the provider wire format.
type rawScore struct {
	Precision    int      `json:"precision"`
	Minimalism   int      `json:"minimalism"`
	TestCoverage int      `json:"test_coverage"`
	Issues       []string `json:"issues"`
}

// parseScoreResponse extracts a Score from a model reply. Tolerates markdown
// code fences around the JSON object.
func parseScoreResponse(text string) (Score, error) {
	trimmed := strings.TrimSpace(text)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var raw rawScore
	if err := json.Unmarshal([]byte(trimmed), &raw); err != nil {
		return Score{}, fmt.Errorf("malformed scoring response: %w", err)
	}

	return Score{
		Precision:    raw.Precision,
		Minimalism:   raw.Minimalism,
		TestCoverage: raw.TestCoverage,
		Issues:       raw.Issues,
	}, nil
}
