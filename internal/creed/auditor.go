// Package creed statically audits changed files against a fixed table of
// forbidden patterns.
package creed

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// maxExcerptLen bounds the offending-line excerpt in a Violation.
const maxExcerptLen = 120

// Violation is one line-level creed breach. An audit returns violations
// ordered by (file input order, ascending line number, rule-table order).
type Violation struct {
	File      string   `json:"filePath"`
	Line      int      `json:"lineNumber"`
	PatternID string   `json:"patternId"`
	Severity  Severity `json:"severity"`
	Excerpt   string   `json:"excerpt"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s:%d: %s (%s): %s", v.File, v.Line, v.PatternID, v.Severity, v.Excerpt)
}

type compiledRule struct {
	Rule
	pattern *regexp.Regexp
}

// Auditor audits file contents against its compiled rule table. The table is
// compiled once at construction and never mutated; Audit is a pure function
// of the file contents.
type Auditor struct {
	rules  []compiledRule
	logger *zap.Logger
}

// NewAuditor compiles the rule table. Use DefaultRules for the standard creed.
func NewAuditor(rules []Rule, logger *zap.Logger) (*Auditor, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		if r.ID == "" {
			return nil, fmt.Errorf("rule with pattern %q has no ID", r.Pattern)
		}
		p, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("compiling rule %s: %w", r.ID, err)
		}
		compiled = append(compiled, compiledRule{Rule: r, pattern: p})
	}
	return &Auditor{rules: compiled, logger: logger.Named("creed")}, nil
}

// Audit checks each file, in the given order, line by line against every
// rule. Every match appends one Violation; a line can violate several rules.
// A missing or unreadable file degrades to a reserved-pattern Violation
// instead of aborting the batch. Violations are a normal result, not an
// error; policy belongs to the caller.
func (a *Auditor) Audit(files []string) []Violation {
	violations := make([]Violation, 0)

	for _, file := range files {
		content, err := os.ReadFile(file)
		if err != nil {
			if os.IsNotExist(err) {
				violations = append(violations, Violation{
					File:      file,
					Line:      0,
					PatternID: PatternMissingFile,
					Severity:  SeverityHigh,
					Excerpt:   "file not found",
				})
			} else {
				violations = append(violations, Violation{
					File:      file,
					Line:      0,
					PatternID: PatternUnreadableFile,
					Severity:  SeverityHigh,
					Excerpt:   err.Error(),
				})
			}
			continue
		}
		violations = append(violations, a.auditContent(file, string(content))...)
	}

	a.logger.Debug("audit complete",
		zap.Int("files", len(files)),
		zap.Int("violations", len(violations)))

	return violations
}

// auditContent checks a single file's content. Comment lines are exempt:
// the creed governs code, not commentary.
func (a *Auditor) auditContent(file, content string) []Violation {
	var violations []Violation

	for i, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		for _, rule := range a.rules {
			if rule.pattern.MatchString(line) {
				violations = append(violations, Violation{
					File:      file,
					Line:      i + 1,
					PatternID: rule.ID,
					Severity:  rule.Severity,
					Excerpt:   excerpt(line),
				})
			}
		}
	}

	return violations
}

func excerpt(line string) string {
	trimmed := strings.TrimSpace(line)
	if len(trimmed) > maxExcerptLen {
		return trimmed[:maxExcerptLen-3] + "..."
	}
	return trimmed
}
