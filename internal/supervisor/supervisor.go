// Package supervisor is the decision engine tying log inspection, creed
// auditing, plan critique, and escalation delivery together.
package supervisor

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/shihand/internal/changeset"
	"github.com/fyrsmithlabs/shihand/internal/creed"
	"github.com/fyrsmithlabs/shihand/internal/critic"
	"github.com/fyrsmithlabs/shihand/internal/metrics"
	"github.com/fyrsmithlabs/shihand/internal/pager"
	"github.com/fyrsmithlabs/shihand/internal/sentinel"
)

// Component interfaces. Production wiring passes the concrete types from
// the sibling packages; tests substitute deterministic fakes.
type (
	// LogTailer reads and classifies the log tail.
	LogTailer interface {
		Tail(tailLines int) (sentinel.Summary, error)
	}

	// Auditor checks changed files against the creed.
	Auditor interface {
		Audit(files []string) []creed.Violation
	}

	// PlanCritic scores a plan document.
	PlanCritic interface {
		Critique(ctx context.Context, path string) (critic.Score, error)
	}

	// Alerter delivers escalations.
	Alerter interface {
		Page(ctx context.Context, req pager.Request) (pager.Result, error)
	}

	// ActivitySink observes processed events (the idle watchdog).
	ActivitySink interface {
		Touch()
	}
)

// Deps wires a Supervisor. Watchdog may be nil.
type Deps struct {
	Sentinel LogTailer
	Auditor  Auditor
	Critic   PlanCritic
	Pager    Alerter
	Watchdog ActivitySink
	Metrics  *metrics.Metrics
	Logger   *zap.Logger

	TailLines int
	// RepoPath enables changed-file discovery when a cycle_end event
	// declares none. Empty disables discovery.
	RepoPath        string
	AuditExtensions []string
}

// Supervisor dispatches typed events to its components and aggregates their
// results into a single Report. It holds no per-call state; each Supervise
// call runs Idle -> Dispatching -> Reporting and returns.
type Supervisor struct {
	deps   Deps
	logger *zap.Logger
}

// New creates a Supervisor.
func New(deps Deps) *Supervisor {
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	if deps.TailLines < 1 {
		deps.TailLines = 500
	}
	return &Supervisor{deps: deps, logger: deps.Logger.Named("supervisor")}
}

// pendingPage accumulates trigger conditions so that one Supervise call
// dispatches at most one page, at the highest applicable priority.
type pendingPage struct {
	title    string
	bodies   []string
	priority int
}

func (p *pendingPage) merge(title, body string, priority int) {
	if p.title == "" {
		p.title = title
	}
	p.bodies = append(p.bodies, body)
	if priority > p.priority {
		p.priority = priority
	}
}

func (p *pendingPage) request() pager.Request {
	return pager.NewRequest(p.title, strings.Join(p.bodies, "\n\n"), p.priority)
}

// Supervise runs the transition table for one event. Component failures are
// converted into issue strings and processing continues; only total pager
// failure returns a non-nil error alongside the report.
func (s *Supervisor) Supervise(ctx context.Context, ev Event) (Report, error) {
	if err := ev.Validate(); err != nil {
		return Report{}, err
	}

	if s.deps.Watchdog != nil {
		s.deps.Watchdog.Touch()
	}
	s.deps.Metrics.CyclesSupervised.WithLabelValues(string(ev.Type)).Inc()

	s.logger.Info("supervising cycle", zap.String("event", string(ev.Type)))

	report := Report{ActionsTaken: []string{}, IssuesFound: []string{}}
	var pending pendingPage

	switch ev.Type {
	case EventCycleEnd:
		s.handleCycleEnd(ev, &report, &pending)
	case EventManualCheck:
		s.handleManualCheck(&report)
	case EventScrollCommitted:
		s.handleScrollCommitted(ctx, ev, &report, &pending)
	}

	if len(pending.bodies) > 0 {
		report.Paged = true
		result, err := s.deps.Pager.Page(ctx, pending.request())
		report.PageResult = &result
		if err != nil {
			report.ActionsTaken = append(report.ActionsTaken, "page delivery failed on all channels")
			s.deps.Metrics.Pages.WithLabelValues("none").Inc()
			// Paging is the last line of defense; its total failure is
			// the one hard error a caller must see.
			return report, err
		}
		report.ActionsTaken = append(report.ActionsTaken,
			fmt.Sprintf("paged operator via %s channel", result.Channel))
		s.deps.Metrics.Pages.WithLabelValues(result.Channel).Inc()
	}

	s.logger.Info("cycle supervised",
		zap.Int("actions", len(report.ActionsTaken)),
		zap.Int("issues", len(report.IssuesFound)),
		zap.Bool("paged", report.Paged))

	return report, nil
}

// handleCycleEnd inspects the log; a classified failure pages and skips the
// audit (a crashed cycle has nothing new to safely audit), otherwise the
// changed files are audited and violations reported as issues.
func (s *Supervisor) handleCycleEnd(ev Event, report *Report, pending *pendingPage) {
	summary, err := s.deps.Sentinel.Tail(s.deps.TailLines)
	report.ActionsTaken = append(report.ActionsTaken,
		fmt.Sprintf("inspected log tail (%d lines)", s.deps.TailLines))
	if err != nil {
		report.IssuesFound = append(report.IssuesFound,
			fmt.Sprintf("log inspection failed: %v", err))
		s.deps.Metrics.ComponentErrors.WithLabelValues("sentinel").Inc()
		s.logger.Warn("log inspection failed", zap.Error(err))
	}

	if summary.HasError() {
		report.IssuesFound = append(report.IssuesFound,
			fmt.Sprintf("log error (%s): %s", summary.LastErrorKind, summary.LastErrorExcerpt))
		pending.merge(
			"error detected in training log",
			fmt.Sprintf("The training log shows a %s failure:\n\n%s",
				summary.LastErrorKind, summary.LastErrorExcerpt),
			1,
		)
		return
	}

	files := ev.ChangedFiles
	if len(files) == 0 && s.deps.RepoPath != "" {
		discovered, err := changeset.Changed(s.deps.RepoPath, s.deps.AuditExtensions)
		if err != nil {
			report.IssuesFound = append(report.IssuesFound,
				fmt.Sprintf("changed-file discovery failed: %v", err))
			s.deps.Metrics.ComponentErrors.WithLabelValues("changeset").Inc()
			return
		}
		files = discovered
	}

	if len(files) == 0 {
		report.ActionsTaken = append(report.ActionsTaken, "no changed files to audit")
		return
	}

	violations := s.deps.Auditor.Audit(files)
	report.ActionsTaken = append(report.ActionsTaken,
		fmt.Sprintf("audited %d changed files", len(files)))
	for _, v := range violations {
		report.IssuesFound = append(report.IssuesFound, v.String())
		s.deps.Metrics.Violations.WithLabelValues(string(v.Severity)).Inc()
	}
}

// handleManualCheck inspects the log only. Findings are reported, never
// paged automatically.
func (s *Supervisor) handleManualCheck(report *Report) {
	summary, err := s.deps.Sentinel.Tail(s.deps.TailLines)
	report.ActionsTaken = append(report.ActionsTaken,
		fmt.Sprintf("inspected log tail (%d lines)", s.deps.TailLines))
	if err != nil {
		report.IssuesFound = append(report.IssuesFound,
			fmt.Sprintf("log inspection failed: %v", err))
		s.deps.Metrics.ComponentErrors.WithLabelValues("sentinel").Inc()
		return
	}

	if summary.HasError() {
		report.IssuesFound = append(report.IssuesFound,
			fmt.Sprintf("log error (%s): %s", summary.LastErrorKind, summary.LastErrorExcerpt))
	}
	if summary.Elapsed != nil {
		report.ActionsTaken = append(report.ActionsTaken,
			fmt.Sprintf("observed run time %s", summary.Elapsed))
	}
}

// handleScrollCommitted critiques the committed plan and pages when the
// score falls below the threshold.
func (s *Supervisor) handleScrollCommitted(ctx context.Context, ev Event, report *Report, pending *pendingPage) {
	score, err := s.deps.Critic.Critique(ctx, ev.ScrollPath)
	report.ActionsTaken = append(report.ActionsTaken,
		fmt.Sprintf("critiqued plan %s", ev.ScrollPath))
	if err != nil {
		report.IssuesFound = append(report.IssuesFound,
			fmt.Sprintf("plan critique failed: %v", err))
		s.deps.Metrics.ComponentErrors.WithLabelValues("critic").Inc()
		return
	}

	s.deps.Metrics.PlanScores.Observe(float64(score.Total))

	if !score.BelowThreshold() {
		report.ActionsTaken = append(report.ActionsTaken,
			fmt.Sprintf("plan score acceptable: %d/100", score.Total))
		return
	}

	report.IssuesFound = append(report.IssuesFound,
		fmt.Sprintf("plan score below threshold: %d/100", score.Total))
	report.IssuesFound = append(report.IssuesFound, score.Issues...)

	gap := critic.PassThreshold - score.Total
	pending.merge(
		fmt.Sprintf("plan critique: %d/100", score.Total),
		fmt.Sprintf("The committed plan scored %d/100 (threshold %d).\n\n%s",
			score.Total, critic.PassThreshold, strings.Join(score.Issues, "\n")),
		priorityForGap(gap),
	)
}

// priorityForGap maps how far a plan fell below the threshold to a page
// priority.
func priorityForGap(gap int) int {
	switch {
	case gap < 20:
		return 0
	case gap < 50:
		return 1
	default:
		return 2
	}
}
