package main

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/shihand/internal/changeset"
	"github.com/fyrsmithlabs/shihand/internal/httpapi"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the supervision operations over HTTP",
	Long: `Serve the supervision operations over HTTP.

Exposes the same operations as the MCP tools under /v1, a health check at
/health, and Prometheus metrics at /metrics. Shuts down gracefully on
SIGINT or SIGTERM.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer func() { _ = rt.logger.Sync() }()

	ctx, cancel := signalContext()
	defer cancel()

	wd := rt.newWatchdog(ctx)
	sup := rt.newSupervisor(wd)

	srv, err := httpapi.NewServer(httpapi.Deps{
		Sentinel:        rt.sentinel,
		Auditor:         rt.auditor,
		Critic:          rt.critic,
		Pager:           rt.pager,
		Supervisor:      sup,
		Metrics:         rt.metrics,
		Logger:          rt.logger,
		Port:            rt.cfg.Server.Port,
		ShutdownTimeout: rt.cfg.Server.ShutdownTimeout.Duration(),
		TailLines:       rt.cfg.Sentinel.TailLines,
		ScrollsDir:      rt.cfg.Scrolls.Dir,
		RepoPath:        repoPath,
		AuditExtensions: changeset.DefaultExtensions,
	})
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	rt.logger.Info("starting shihand HTTP server",
		zap.Int("port", rt.cfg.Server.Port),
		zap.Bool("watchdog", wd != nil))

	if err := srv.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	rt.logger.Info("server shutdown complete")
	return nil
}
