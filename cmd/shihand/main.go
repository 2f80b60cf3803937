// Shihand is a supervisory watcher for autonomous coding loops.
//
// It inspects the training log for failure signatures, audits changed files
// against a coding creed, critiques committed plan documents, and pages the
// operator when something needs a human.
//
// Usage:
//
//	# Start the MCP stdio server (default mode)
//	shihand
//
//	# Start the HTTP server instead
//	shihand serve
//
//	# One-shot operations
//	shihand tail
//	shihand audit --hard-fail model.py train.py
//	shihand critique .scrolls/plan.md
//	shihand page "training stalled" --priority 1
//	shihand supervise cycle_end
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/shihand/internal/changeset"
	"github.com/fyrsmithlabs/shihand/internal/config"
	"github.com/fyrsmithlabs/shihand/internal/creed"
	"github.com/fyrsmithlabs/shihand/internal/critic"
	"github.com/fyrsmithlabs/shihand/internal/logging"
	"github.com/fyrsmithlabs/shihand/internal/mcpserver"
	"github.com/fyrsmithlabs/shihand/internal/metrics"
	"github.com/fyrsmithlabs/shihand/internal/pager"
	"github.com/fyrsmithlabs/shihand/internal/sentinel"
	"github.com/fyrsmithlabs/shihand/internal/supervisor"
	"github.com/fyrsmithlabs/shihand/internal/watchdog"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var (
	configPath string
	repoPath   string
)

// errFindings marks a successful run that surfaced findings the caller asked
// to be fatal. Mapped to exit code 1; operational failures exit 2.
var errFindings = errors.New("findings reported")

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "shihand: %v\n", err)
		if errors.Is(err, errFindings) {
			os.Exit(1)
		}
		os.Exit(2)
	}
}

var rootCmd = &cobra.Command{
	Use:   "shihand",
	Short: "Supervisory watcher for autonomous coding loops",
	Long: `shihand supervises an autonomous coding loop: it tails the training log
for failure signatures, audits changed files against the coding creed,
critiques committed plan documents, and pages the operator on escalation.

Run without arguments it serves the supervision tools over MCP stdio.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runStdio,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default ~/.config/shihand/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&repoPath, "repo", ".", "repository to discover changed files in")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tailCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(critiqueCmd)
	rootCmd.AddCommand(pageCmd)
	rootCmd.AddCommand(superviseCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("shihand by Fyrsmith Labs\n")
		fmt.Printf("Version:    %s\n", version)
		fmt.Printf("Commit:     %s\n", gitCommit)
		fmt.Printf("Build Date: %s\n", buildDate)
	},
}

// runtime holds the wired supervision components for one invocation.
type runtime struct {
	cfg      *config.Config
	logger   *zap.Logger
	metrics  *metrics.Metrics
	sentinel *sentinel.Sentinel
	auditor  *creed.Auditor
	critic   *critic.Critic
	pager    *pager.Pager
}

// newRuntime loads configuration and wires every component. A missing
// scoring credential does not fail startup; critique requests degrade to a
// scoring-unavailable error instead.
func newRuntime() (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	scorer, err := critic.NewScorer(cfg.Critic)
	if err != nil {
		logger.Warn("scoring backend unavailable", zap.Error(err))
		scorer = unavailableScorer{err: err}
	}

	var primary pager.Channel
	if cfg.Pager.PushoverToken.IsSet() && cfg.Pager.PushoverUser.IsSet() {
		primary = pager.NewPushoverChannel(cfg.Pager)
	}
	fallback := pager.NewFallbackChannel(cfg.Pager.FallbackDir)

	return &runtime{
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics.New(),
		sentinel: sentinel.New(cfg.Sentinel.LogPath, logger),
		auditor:  mustAuditor(logger),
		critic:   critic.New(scorer, cfg.Critic.Timeout.Duration(), logger),
		pager:    pager.New(primary, fallback, logger),
	}, nil
}

func mustAuditor(logger *zap.Logger) *creed.Auditor {
	a, err := creed.NewAuditor(creed.DefaultRules(), logger)
	if err != nil {
		// DefaultRules compile or the build is broken.
		panic(err)
	}
	return a
}

// unavailableScorer stands in when no scoring backend could be constructed.
type unavailableScorer struct{ err error }

func (u unavailableScorer) Score(ctx context.Context, planText string) (critic.Score, error) {
	return critic.Score{}, u.err
}

// newSupervisor builds the orchestrator, optionally wired to a watchdog.
func (r *runtime) newSupervisor(wd *watchdog.Watchdog) *supervisor.Supervisor {
	deps := supervisor.Deps{
		Sentinel:        r.sentinel,
		Auditor:         r.auditor,
		Critic:          r.critic,
		Pager:           r.pager,
		Metrics:         r.metrics,
		Logger:          r.logger,
		TailLines:       r.cfg.Sentinel.TailLines,
		RepoPath:        repoPath,
		AuditExtensions: changeset.DefaultExtensions,
	}
	if wd != nil {
		deps.Watchdog = wd
	}
	return supervisor.New(deps)
}

// newWatchdog creates and starts the idle watchdog when enabled. Returns nil
// when disabled.
func (r *runtime) newWatchdog(ctx context.Context) *watchdog.Watchdog {
	if !r.cfg.Watchdog.Enabled {
		return nil
	}

	wd := watchdog.New(
		r.pager,
		r.cfg.Watchdog.IdleTimeout.Duration(),
		r.cfg.Watchdog.TickInterval.Duration(),
		r.logger,
	)
	go func() { _ = wd.Run(ctx) }()

	if r.cfg.Watchdog.WatchLog {
		go func() {
			if err := wd.WatchLog(ctx, r.cfg.Sentinel.LogPath); err != nil && !errors.Is(err, context.Canceled) {
				r.logger.Warn("log activity watch stopped", zap.Error(err))
			}
		}()
	}

	return wd
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// runStdio starts the MCP server on stdin/stdout. Logging goes to stderr;
// stdout carries the protocol.
func runStdio(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer func() { _ = rt.logger.Sync() }()

	ctx, cancel := signalContext()
	defer cancel()

	wd := rt.newWatchdog(ctx)
	sup := rt.newSupervisor(wd)

	srv, err := mcpserver.NewServer(mcpserver.Deps{
		Sentinel:        rt.sentinel,
		Auditor:         rt.auditor,
		Critic:          rt.critic,
		Pager:           rt.pager,
		Supervisor:      sup,
		Logger:          rt.logger,
		TailLines:       rt.cfg.Sentinel.TailLines,
		ScrollsDir:      rt.cfg.Scrolls.Dir,
		RepoPath:        repoPath,
		AuditExtensions: changeset.DefaultExtensions,
	})
	if err != nil {
		return fmt.Errorf("creating mcp server: %w", err)
	}

	rt.logger.Info("starting shihand in MCP stdio mode",
		zap.String("log_path", rt.cfg.Sentinel.LogPath),
		zap.Bool("watchdog", wd != nil))

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
