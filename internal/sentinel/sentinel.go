// Package sentinel inspects the tail of a growing log file and classifies
// failure signatures.
package sentinel

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrLogNotFound indicates the log file does not exist.
	ErrLogNotFound = errors.New("log file not found")
)

// maxExcerptLen bounds the classified error excerpt carried in a Summary.
const maxExcerptLen = 500

// ErrorKind classifies a failure signature found in the log.
type ErrorKind string

const (
	KindStackTrace   ErrorKind = "stack-trace"
	KindRuntimeError ErrorKind = "runtime-error"
	KindAssertion    ErrorKind = "assertion"
	KindGenericError ErrorKind = "error"
)

// signature pairs an ErrorKind with its line matcher. The table is ordered:
// for a single line matching several signatures the earliest entry wins.
type signature struct {
	kind    ErrorKind
	pattern *regexp.Regexp
}

var signatures = []signature{
	{KindStackTrace, regexp.MustCompile(`Traceback \(most recent call last\):`)},
	{KindStackTrace, regexp.MustCompile(`^panic: `)},
	{KindRuntimeError, regexp.MustCompile(`\bRuntimeError\b`)},
	{KindAssertion, regexp.MustCompile(`\bAssertionError\b`)},
	{KindGenericError, regexp.MustCompile(`\bError:`)},
}

// timestampPattern matches "2006-01-02 15:04:05" and the T-separated variant.
var timestampPattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}[ T]\d{2}:\d{2}:\d{2}`)

var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// Summary is the result of one tail inspection. Optional fields are absent,
// not zero, when not applicable.
type Summary struct {
	Window           string         `json:"windowText"`
	LastErrorKind    ErrorKind      `json:"lastErrorKind,omitempty"`
	LastErrorExcerpt string         `json:"lastErrorExcerpt,omitempty"`
	Elapsed          *time.Duration `json:"elapsedDuration,omitempty"`
}

// HasError reports whether a failure signature was classified in the window.
func (s Summary) HasError() bool {
	return s.LastErrorKind != ""
}

// Sentinel reads bounded tail windows from a single log file. Each call
// acquires and releases its own file handle; Sentinel itself holds no state
// beyond the path.
type Sentinel struct {
	path   string
	logger *zap.Logger
}

// New creates a Sentinel for the log at path.
func New(path string, logger *zap.Logger) *Sentinel {
	return &Sentinel{path: path, logger: logger.Named("sentinel")}
}

// Tail reads at most tailLines lines from the end of the log and summarizes
// them. The most recent failure signature in the window wins classification;
// earlier failures remain visible in the window text.
func (s *Sentinel) Tail(tailLines int) (Summary, error) {
	if tailLines < 1 {
		return Summary{}, fmt.Errorf("tailLines must be positive, got %d", tailLines)
	}

	content, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Summary{}, fmt.Errorf("%w: %s", ErrLogNotFound, s.path)
		}
		return Summary{}, fmt.Errorf("reading log %s: %w", s.path, err)
	}

	lines := splitLines(string(content))
	if len(lines) > tailLines {
		lines = lines[len(lines)-tailLines:]
	}
	window := strings.Join(lines, "\n")

	summary := Summary{Window: window}
	if kind, excerpt, found := classify(lines); found {
		summary.LastErrorKind = kind
		summary.LastErrorExcerpt = excerpt
	}
	summary.Elapsed = elapsed(window)

	s.logger.Debug("tailed log",
		zap.Int("lines", len(lines)),
		zap.String("last_error_kind", string(summary.LastErrorKind)))

	return summary, nil
}

// splitLines splits content into lines, dropping a trailing empty line left
// by a final newline.
func splitLines(content string) []string {
	lines := strings.Split(content, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	return lines
}

// classify scans lines from the end and returns the kind and excerpt of the
// most recent line matching a failure signature.
func classify(lines []string) (ErrorKind, string, bool) {
	for i := len(lines) - 1; i >= 0; i-- {
		for _, sig := range signatures {
			if sig.pattern.MatchString(lines[i]) {
				excerpt := strings.TrimSpace(lines[i])
				if len(excerpt) > maxExcerptLen {
					excerpt = excerpt[:maxExcerptLen-3] + "..."
				}
				return sig.kind, excerpt, true
			}
		}
	}
	return "", "", false
}

// elapsed computes the duration between the first and last parseable
// timestamps in the window. Stamps that match the pattern but do not parse
// (impossible dates) are skipped. Returns nil when fewer than two parse.
func elapsed(window string) *time.Duration {
	stamps := timestampPattern.FindAllString(window, -1)

	var first, last time.Time
	firstIdx, lastIdx := -1, -1
	for i := 0; i < len(stamps) && firstIdx < 0; i++ {
		if t, ok := parseTimestamp(stamps[i]); ok {
			first, firstIdx = t, i
		}
	}
	for i := len(stamps) - 1; i > firstIdx && lastIdx < 0; i-- {
		if t, ok := parseTimestamp(stamps[i]); ok {
			last, lastIdx = t, i
		}
	}

	if firstIdx < 0 || lastIdx < 0 || last.Before(first) {
		return nil
	}

	d := last.Sub(first)
	return &d
}

func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
