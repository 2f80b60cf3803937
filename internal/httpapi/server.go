// Package httpapi serves the supervision operations over HTTP for
// deployments where stdio transport is not an option.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/shihand/internal/changeset"
	"github.com/fyrsmithlabs/shihand/internal/critic"
	"github.com/fyrsmithlabs/shihand/internal/metrics"
	"github.com/fyrsmithlabs/shihand/internal/pager"
	"github.com/fyrsmithlabs/shihand/internal/sentinel"
	"github.com/fyrsmithlabs/shihand/internal/supervisor"
)

// Deps wires the HTTP server to the supervision components.
type Deps struct {
	Sentinel   supervisor.LogTailer
	Auditor    supervisor.Auditor
	Critic     supervisor.PlanCritic
	Pager      supervisor.Alerter
	Supervisor *supervisor.Supervisor
	Metrics    *metrics.Metrics
	Logger     *zap.Logger

	Port            int
	ShutdownTimeout time.Duration
	TailLines       int
	ScrollsDir      string
	RepoPath        string
	AuditExtensions []string
}

// Server is the HTTP front end.
type Server struct {
	deps   Deps
	echo   *echo.Echo
	logger *zap.Logger
}

// HealthResponse is the JSON response for the /health endpoint.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// NewServer creates the HTTP server with all routes registered.
func NewServer(deps Deps) (*Server, error) {
	if deps.Supervisor == nil {
		return nil, fmt.Errorf("supervisor is required")
	}
	if deps.TailLines < 1 {
		deps.TailLines = 500
	}
	if deps.ShutdownTimeout <= 0 {
		deps.ShutdownTimeout = 10 * time.Second
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	s := &Server{
		deps:   deps,
		echo:   e,
		logger: deps.Logger.Named("http"),
	}
	s.registerRoutes()

	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	if s.deps.Metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.deps.Metrics.Handler()))
	}

	v1 := s.echo.Group("/v1")
	v1.POST("/tail", s.handleTail)
	v1.POST("/audit", s.handleAudit)
	v1.POST("/critique", s.handleCritique)
	v1.POST("/page", s.handlePage)
	v1.POST("/supervise", s.handleSupervise)
}

// Start starts the server and blocks until ctx is cancelled. Returns
// http.ErrServerClosed on graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.deps.Port)

	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("server start: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.deps.ShutdownTimeout)
		defer cancel()

		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return http.ErrServerClosed
	}
}

// Echo exposes the router for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", Service: "shihand"})
}

// TailRequest is the body of POST /v1/tail.
type TailRequest struct {
	TailLines int `json:"tailLines,omitempty"`
}

func (s *Server) handleTail(c echo.Context) error {
	var req TailRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	lines := req.TailLines
	if lines == 0 {
		lines = s.deps.TailLines
	}

	summary, err := s.deps.Sentinel.Tail(lines)
	if err != nil {
		return s.mapError(err)
	}
	return c.JSON(http.StatusOK, summary)
}

// AuditRequest is the body of POST /v1/audit.
type AuditRequest struct {
	Files []string `json:"files,omitempty"`
}

// AuditResponse is the result of POST /v1/audit.
type AuditResponse struct {
	FilesAudited int `json:"filesAudited"`
	Violations   any `json:"violations"`
}

func (s *Server) handleAudit(c echo.Context) error {
	var req AuditRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	files := req.Files
	if len(files) == 0 {
		if s.deps.RepoPath == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "no files given and no repository configured")
		}
		discovered, err := changeset.Changed(s.deps.RepoPath, s.deps.AuditExtensions)
		if err != nil {
			return s.mapError(err)
		}
		files = discovered
	}

	violations := s.deps.Auditor.Audit(files)
	return c.JSON(http.StatusOK, AuditResponse{
		FilesAudited: len(files),
		Violations:   violations,
	})
}

// CritiqueRequest is the body of POST /v1/critique.
type CritiqueRequest struct {
	ScrollPath string `json:"scrollPath,omitempty"`
}

func (s *Server) handleCritique(c echo.Context) error {
	var req CritiqueRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	path := req.ScrollPath
	if path == "" {
		latest, err := changeset.LatestScroll(s.deps.ScrollsDir)
		if err != nil {
			return s.mapError(err)
		}
		if latest == "" {
			return echo.NewHTTPError(http.StatusNotFound, "no scrolls found")
		}
		path = latest
	}

	score, err := s.deps.Critic.Critique(c.Request().Context(), path)
	if err != nil {
		return s.mapError(err)
	}
	return c.JSON(http.StatusOK, score)
}

// PageRequest is the body of POST /v1/page.
type PageRequest struct {
	Title    string `json:"title"`
	Body     string `json:"body,omitempty"`
	Priority int    `json:"priority,omitempty"`
}

func (s *Server) handlePage(c echo.Context) error {
	var req PageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Title == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title is required")
	}

	result, err := s.deps.Pager.Page(c.Request().Context(), pager.NewRequest(req.Title, req.Body, req.Priority))
	if err != nil {
		return s.mapError(err)
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleSupervise(c echo.Context) error {
	var ev supervisor.Event
	if err := c.Bind(&ev); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := ev.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	report, err := s.deps.Supervisor.Supervise(c.Request().Context(), ev)
	if err != nil {
		return s.mapError(err)
	}
	return c.JSON(http.StatusOK, report)
}

// mapError translates component errors to HTTP status codes.
func (s *Server) mapError(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrLogNotFound),
		errors.Is(err, critic.ErrScrollNotFound),
		errors.Is(err, changeset.ErrNotGitRepo):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, critic.ErrScoringUnavailable),
		errors.Is(err, pager.ErrDeliveryFailed):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	default:
		s.logger.Error("request failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
