package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fyrsmithlabs/shihand/internal/creed"
	"github.com/fyrsmithlabs/shihand/internal/critic"
	"github.com/fyrsmithlabs/shihand/internal/metrics"
	"github.com/fyrsmithlabs/shihand/internal/pager"
	"github.com/fyrsmithlabs/shihand/internal/sentinel"
	"github.com/fyrsmithlabs/shihand/internal/supervisor"
)

type stubSentinel struct {
	summary sentinel.Summary
	err     error
}

func (s *stubSentinel) Tail(tailLines int) (sentinel.Summary, error) {
	return s.summary, s.err
}

type stubAuditor struct {
	violations []creed.Violation
}

func (a *stubAuditor) Audit(files []string) []creed.Violation {
	return a.violations
}

type stubCritic struct {
	score critic.Score
	err   error
}

func (c *stubCritic) Critique(ctx context.Context, path string) (critic.Score, error) {
	return c.score, c.err
}

type stubAlerter struct {
	result pager.Result
	err    error
}

func (a *stubAlerter) Page(ctx context.Context, req pager.Request) (pager.Result, error) {
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

func doJSON(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, Deps{})

	rec := doJSON(t, srv, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var health HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "shihand", health.Service)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, Deps{Metrics: metrics.New()})

	rec := doJSON(t, srv, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTail(t *testing.T) {
	srv := newTestServer(t, Deps{Sentinel: &stubSentinel{summary: sentinel.Summary{
		Window:           "RuntimeError: boom",
		LastErrorKind:    sentinel.KindRuntimeError,
		LastErrorExcerpt: "RuntimeError: boom",
	}}})

	rec := doJSON(t, srv, http.MethodPost, "/v1/tail", `{}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var summary sentinel.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, sentinel.KindRuntimeError, summary.LastErrorKind)
}

func TestTailMissingLogIs404(t *testing.T) {
	srv := newTestServer(t, Deps{Sentinel: &stubSentinel{err: sentinel.ErrLogNotFound}})

	rec := doJSON(t, srv, http.MethodPost, "/v1/tail", `{}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAudit(t *testing.T) {
	srv := newTestServer(t, Deps{Auditor: &stubAuditor{violations: []creed.Violation{
		{File: "a.py", Line: 7, PatternID: "is-none", Severity: creed.SeverityMedium, Excerpt: "if x is None:"},
	}}})

	rec := doJSON(t, srv, http.MethodPost, "/v1/audit", `{"files":["a.py"]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		FilesAudited int               `json:"filesAudited"`
		Violations   []creed.Violation `json:"violations"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.FilesAudited)
	require.Len(t, resp.Violations, 1)
}

func TestAuditNoFilesNoRepoIs400(t *testing.T) {
	srv := newTestServer(t, Deps{})

	rec := doJSON(t, srv, http.MethodPost, "/v1/audit", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCritique(t *testing.T) {
	srv := newTestServer(t, Deps{Critic: &stubCritic{score: critic.Score{
		Precision: 35, Minimalism: 28, TestCoverage: 25, Total: 88, Issues: []string{},
	}}})

	rec := doJSON(t, srv, http.MethodPost, "/v1/critique", `{"scrollPath":"plan.md"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var score critic.Score
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &score))
	assert.Equal(t, 88, score.Total)
}

func TestCritiqueMissingScrollIs404(t *testing.T) {
	srv := newTestServer(t, Deps{Critic: &stubCritic{err: critic.ErrScrollNotFound}})

	rec := doJSON(t, srv, http.MethodPost, "/v1/critique", `{"scrollPath":"absent.md"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCritiqueScoringUnavailableIs502(t *testing.T) {
	srv := newTestServer(t, Deps{Critic: &stubCritic{err: critic.ErrScoringUnavailable}})

	rec := doJSON(t, srv, http.MethodPost, "/v1/critique", `{"scrollPath":"plan.md"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestPage(t *testing.T) {
	srv := newTestServer(t, Deps{Pager: &stubAlerter{result: pager.Result{
		Delivered: true, Channel: pager.ChannelPrimary, Reference: "req-1",
	}}})

	rec := doJSON(t, srv, http.MethodPost, "/v1/page", `{"title":"stalled","body":"no activity","priority":1}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var result pager.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Delivered)
}

func TestPageRequiresTitle(t *testing.T) {
	srv := newTestServer(t, Deps{})

	rec := doJSON(t, srv, http.MethodPost, "/v1/page", `{"body":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPageDeliveryFailureIs502(t *testing.T) {
	srv := newTestServer(t, Deps{Pager: &stubAlerter{err: pager.ErrDeliveryFailed}})

	rec := doJSON(t, srv, http.MethodPost, "/v1/page", `{"title":"stalled"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestSupervise(t *testing.T) {
	srv := newTestServer(t, Deps{Sentinel: &stubSentinel{summary: sentinel.Summary{Window: "ok"}}})

	rec := doJSON(t, srv, http.MethodPost, "/v1/supervise", `{"event":"manual_check"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var report supervisor.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.False(t, report.Paged)
	assert.NotEmpty(t, report.ActionsTaken)
}

func TestSuperviseInvalidEventIs400(t *testing.T) {
	srv := newTestServer(t, Deps{})

	rec := doJSON(t, srv, http.MethodPost, "/v1/supervise", `{"event":"bogus"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
