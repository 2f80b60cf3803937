package mcpserver

import (
	"context"
	"encoding/json"
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fyrsmithlabs/shihand/internal/creed"
	"github.com/fyrsmithlabs/shihand/internal/critic"
	"github.com/fyrsmithlabs/shihand/internal/pager"
	"github.com/fyrsmithlabs/shihand/internal/sentinel"
	"github.com/fyrsmithlabs/shihand/internal/supervisor"
)

type stubSentinel struct {
	summary  sentinel.Summary
	err      error
	gotLines int
}

func (s *stubSentinel) Tail(tailLines int) (sentinel.Summary, error) {
	s.gotLines = tailLines
	return s.summary, s.err
}

type stubAuditor struct {
	violations []creed.Violation
	gotFiles   []string
}

func (a *stubAuditor) Audit(files []string) []creed.Violation {
	a.gotFiles = files
	return a.violations
}

type stubCritic struct {
	score   critic.Score
	err     error
	gotPath string
}

func (c *stubCritic) Critique(ctx context.Context, path string) (critic.Score, error) {
	c.gotPath = path
	return c.score, c.err
}

type stubAlerter struct {
	result pager.Result
	err    error
	last   pager.Request
}

func (a *stubAlerter) Page(ctx context.Context, req pager.Request) (pager.Result, error) {
	a.last = req
	return a.result, a.err
}

func newTestServer(t *testing.T, deps Deps) *Server {
	t.Helper()
	logger := zaptest.NewLogger(t)
	if deps.Logger == nil {
		deps.Logger = logger
	}
	if deps.Sentinel == nil {
		deps.Sentinel = &stubSentinel{}
	}
	if deps.Auditor == nil {
		deps.Auditor = &stubAuditor{}
	}
	if deps.Critic == nil {
		deps.Critic = &stubCritic{}
	}
	if deps.Pager == nil {
		deps.Pager = &stubAlerter{}
	}
	if deps.Supervisor == nil {
		deps.Supervisor = supervisor.New(supervisor.Deps{
			Sentinel: deps.Sentinel,
			Auditor:  deps.Auditor,
			Critic:   deps.Critic,
			Pager:    deps.Pager,
			Logger:   logger,
		})
	}

	srv, err := NewServer(deps)
	require.NoError(t, err)
	return srv
}

func resultText(t *testing.T, result *mcpsdk.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(*mcpsdk.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestNewServerRequiresSupervisor(t *testing.T) {
	_, err := NewServer(Deps{Logger: zaptest.NewLogger(t)})
	require.Error(t, err)
}

func TestHandleTailLog(t *testing.T) {
	sent := &stubSentinel{summary: sentinel.Summary{
		Window:           "RuntimeError: boom",
		LastErrorKind:    sentinel.KindRuntimeError,
		LastErrorExcerpt: "RuntimeError: boom",
	}}
	srv := newTestServer(t, Deps{Sentinel: sent, TailLines: 250})

	result, _, err := srv.handleTailLog(context.Background(), nil, &TailLogParams{})
	require.NoError(t, err)
	assert.Equal(t, 250, sent.gotLines, "config default applies when unset")

	var summary sentinel.Summary
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &summary))
	assert.Equal(t, sentinel.KindRuntimeError, summary.LastErrorKind)
}

func TestHandleTailLogExplicitLines(t *testing.T) {
	sent := &stubSentinel{}
	srv := newTestServer(t, Deps{Sentinel: sent, TailLines: 250})

	_, _, err := srv.handleTailLog(context.Background(), nil, &TailLogParams{TailLines: 10})
	require.NoError(t, err)
	assert.Equal(t, 10, sent.gotLines)
}

func TestHandleTailLogMissingLog(t *testing.T) {
	srv := newTestServer(t, Deps{Sentinel: &stubSentinel{err: sentinel.ErrLogNotFound}})

	_, _, err := srv.handleTailLog(context.Background(), nil, &TailLogParams{})
	require.ErrorIs(t, err, sentinel.ErrLogNotFound)
}

func TestHandleAuditCreedExplicitFiles(t *testing.T) {
	aud := &stubAuditor{violations: []creed.Violation{
		{File: "a.py", Line: 7, PatternID: "is-none", Severity: creed.SeverityMedium, Excerpt: "if x is None:"},
	}}
	srv := newTestServer(t, Deps{Auditor: aud})

	result, _, err := srv.handleAuditCreed(context.Background(), nil, &AuditCreedParams{Files: []string{"a.py"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.py"}, aud.gotFiles)

	var payload struct {
		FilesAudited int               `json:"filesAudited"`
		Violations   []creed.Violation `json:"violations"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &payload))
	assert.Equal(t, 1, payload.FilesAudited)
	require.Len(t, payload.Violations, 1)
	assert.Equal(t, "is-none", payload.Violations[0].PatternID)
}

func TestHandleAuditCreedNoFilesNoRepo(t *testing.T) {
	srv := newTestServer(t, Deps{})

	_, _, err := srv.handleAuditCreed(context.Background(), nil, &AuditCreedParams{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no files given")
}

func TestHandleCritiquePlan(t *testing.T) {
	crit := &stubCritic{score: critic.Score{
		Precision: 35, Minimalism: 28, TestCoverage: 25, Total: 88, Issues: []string{},
	}}
	srv := newTestServer(t, Deps{Critic: crit})

	result, _, err := srv.handleCritiquePlan(context.Background(), nil, &CritiquePlanParams{ScrollPath: "plan.md"})
	require.NoError(t, err)
	assert.Equal(t, "plan.md", crit.gotPath)

	var score critic.Score
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &score))
	assert.Equal(t, 88, score.Total)
}

func TestHandleCritiquePlanScoringUnavailable(t *testing.T) {
	srv := newTestServer(t, Deps{Critic: &stubCritic{err: critic.ErrScoringUnavailable}})

	_, _, err := srv.handleCritiquePlan(context.Background(), nil, &CritiquePlanParams{ScrollPath: "plan.md"})
	require.ErrorIs(t, err, critic.ErrScoringUnavailable)
}

func TestHandleCritiquePlanNoScrolls(t *testing.T) {
	srv := newTestServer(t, Deps{ScrollsDir: t.TempDir()})

	_, _, err := srv.handleCritiquePlan(context.Background(), nil, &CritiquePlanParams{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no scrolls found")
}

func TestHandlePageNinja(t *testing.T) {
	alerter := &stubAlerter{result: pager.Result{Delivered: true, Channel: pager.ChannelPrimary, Reference: "req-1"}}
	srv := newTestServer(t, Deps{Pager: alerter})

	result, _, err := srv.handlePageNinja(context.Background(), nil, &PageNinjaParams{
		Title:    "training stalled",
		Body:     "no activity for an hour",
		Priority: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, "training stalled", alerter.last.Title)
	assert.Equal(t, 1, alerter.last.Priority)

	var delivered pager.Result
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &delivered))
	assert.True(t, delivered.Delivered)
	assert.Equal(t, pager.ChannelPrimary, delivered.Channel)
}

func TestHandlePageNinjaRequiresTitle(t *testing.T) {
	srv := newTestServer(t, Deps{})

	_, _, err := srv.handlePageNinja(context.Background(), nil, &PageNinjaParams{Body: "x"})
	require.Error(t, err)
}

func TestHandleSuperviseCycle(t *testing.T) {
	srv := newTestServer(t, Deps{Sentinel: &stubSentinel{summary: sentinel.Summary{Window: "ok"}}})

	result, _, err := srv.handleSuperviseCycle(context.Background(), nil, &SuperviseCycleParams{
		Event: "manual_check",
	})
	require.NoError(t, err)

	var report supervisor.Report
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &report))
	assert.False(t, report.Paged)
	assert.NotEmpty(t, report.ActionsTaken)
}

func TestHandleSuperviseCycleInvalidEvent(t *testing.T) {
	srv := newTestServer(t, Deps{})

	_, _, err := srv.handleSuperviseCycle(context.Background(), nil, &SuperviseCycleParams{Event: "bogus"})
	require.Error(t, err)
}
