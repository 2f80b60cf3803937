package creed

// Severity ranks how badly a rule violation undermines the creed.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Reserved pattern IDs for per-file failures. A missing or unreadable file is
// reported as a violation so one bad path never blocks auditing the rest.
const (
	PatternMissingFile    = "missing-file"
	PatternUnreadableFile = "unreadable-file"
)

// Rule is one forbidden pattern. Rules are matched per line, in table order.
type Rule struct {
	ID          string
	Description string
	Pattern     string
	Severity    Severity
}

// DefaultRules returns the creed: the fixed ordered table of coding-style
// prohibitions enforced on the ninja's changed files.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:          "is-none",
			Description: "defensive 'is None' check",
			Pattern:     `\bis\s+None\b`,
			Severity:    SeverityMedium,
		},
		{
			ID:          "is-not-none",
			Description: "defensive 'is not None' check",
			Pattern:     `\bis\s+not\s+None\b`,
			Severity:    SeverityMedium,
		},
		{
			ID:          "kwargs",
			Description: "untyped '**kwargs' pass-through",
			Pattern:     `\*\*kwargs`,
			Severity:    SeverityLow,
		},
		{
			ID:          "mock-object",
			Description: "mock object in place of the real collaborator",
			Pattern:     `\bmock\b|\bMagicMock\b`,
			Severity:    SeverityHigh,
		},
		{
			ID:          "none-fallback",
			Description: "silent None fallback branch",
			Pattern:     `if\s+.*\bis\s+None\b`,
			Severity:    SeverityMedium,
		},
		{
			ID:          "hasattr",
			Description: "hasattr() duck-typing probe",
			Pattern:     `\bhasattr\b`,
			Severity:    SeverityLow,
		},
		{
			ID:          "silent-except",
			Description: "exception swallowed with pass",
			Pattern:     `except.*:\s*pass\b`,
			Severity:    SeverityHigh,
		},
		{
			ID:          "unused-tensor",
			Description: "tensor constructed and dropped",
			Pattern:     `torch\.tensor\([^)]*\)\s*$`,
			Severity:    SeverityLow,
		},
		{
			ID:          "zero-fallback-return",
			Description: "fallback branch returning zero",
			Pattern:     `else\s*:?\s*return\s+0\b`,
			Severity:    SeverityMedium,
		},
	}
}
