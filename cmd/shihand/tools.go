package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/shihand/internal/changeset"
	"github.com/fyrsmithlabs/shihand/internal/pager"
	"github.com/fyrsmithlabs/shihand/internal/supervisor"
)

var (
	tailLinesFlag int
	hardFailFlag  bool
	pageBodyFlag  string
	pagePriority  int
	scrollFlag    string
)

func init() {
	tailCmd.Flags().IntVar(&tailLinesFlag, "lines", 0, "lines to read from the end of the log (default from config)")
	auditCmd.Flags().BoolVar(&hardFailFlag, "hard-fail", false, "exit 1 when violations are found")
	pageCmd.Flags().StringVar(&pageBodyFlag, "body", "", "page body text")
	pageCmd.Flags().IntVar(&pagePriority, "priority", 0, "0 informational, 1 urgent, 2 emergency")
	superviseCmd.Flags().StringVar(&scrollFlag, "scroll", "", "plan document path for scroll_committed events")
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Inspect the training log tail for failure signatures",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime()
		if err != nil {
			return err
		}
		defer func() { _ = rt.logger.Sync() }()

		lines := tailLinesFlag
		if lines == 0 {
			lines = rt.cfg.Sentinel.TailLines
		}

		summary, err := rt.sentinel.Tail(lines)
		if err != nil {
			return err
		}
		return printJSON(summary)
	},
}

var auditCmd = &cobra.Command{
	Use:   "audit [files...]",
	Short: "Audit source files against the coding creed",
	Long: `Audit source files against the coding creed.

With no arguments the repository's changed files are audited. With
--hard-fail the command exits 1 when any violation is found.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime()
		if err != nil {
			return err
		}
		defer func() { _ = rt.logger.Sync() }()

		files := args
		if len(files) == 0 {
			files, err = changeset.Changed(repoPath, changeset.DefaultExtensions)
			if err != nil {
				return err
			}
		}

		violations := rt.auditor.Audit(files)
		if err := printJSON(map[string]any{
			"filesAudited": len(files),
			"violations":   violations,
		}); err != nil {
			return err
		}

		if hardFailFlag && len(violations) > 0 {
			return fmt.Errorf("%w: %d creed violations", errFindings, len(violations))
		}
		return nil
	},
}

var critiqueCmd = &cobra.Command{
	Use:   "critique [scroll]",
	Short: "Score a plan document",
	Long: `Score a plan document on precision, minimalism, and test coverage.

With no argument the most recently modified scroll is critiqued.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime()
		if err != nil {
			return err
		}
		defer func() { _ = rt.logger.Sync() }()

		var path string
		if len(args) > 0 {
			path = args[0]
		} else {
			path, err = changeset.LatestScroll(rt.cfg.Scrolls.Dir)
			if err != nil {
				return err
			}
			if path == "" {
				return fmt.Errorf("no scrolls found in %s", rt.cfg.Scrolls.Dir)
			}
		}

		score, err := rt.critic.Critique(cmd.Context(), path)
		if err != nil {
			return err
		}
		if err := printJSON(score); err != nil {
			return err
		}

		if score.BelowThreshold() {
			return fmt.Errorf("%w: plan scored %d/100", errFindings, score.Total)
		}
		return nil
	},
}

var pageCmd = &cobra.Command{
	Use:   "page <title>",
	Short: "Send an escalation page to the operator",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime()
		if err != nil {
			return err
		}
		defer func() { _ = rt.logger.Sync() }()

		result, err := rt.pager.Page(cmd.Context(), pager.NewRequest(args[0], pageBodyFlag, pagePriority))
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

var superviseCmd = &cobra.Command{
	Use:   "supervise <event> [changed-files...]",
	Short: "Run one supervision pass for a lifecycle event",
	Long: `Run one supervision pass for a lifecycle event.

The event is one of cycle_end, manual_check, or scroll_committed. For
scroll_committed, pass the plan document with --scroll (defaults to the
most recently modified scroll).`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime()
		if err != nil {
			return err
		}
		defer func() { _ = rt.logger.Sync() }()

		ev := supervisor.Event{
			Type:         supervisor.EventType(args[0]),
			ScrollPath:   scrollFlag,
			ChangedFiles: args[1:],
		}
		if ev.Type == supervisor.EventScrollCommitted && ev.ScrollPath == "" {
			latest, err := changeset.LatestScroll(rt.cfg.Scrolls.Dir)
			if err != nil {
				return err
			}
			ev.ScrollPath = latest
		}

		report, err := rt.newSupervisor(nil).Supervise(cmd.Context(), ev)
		if err != nil {
			return err
		}
		if err := printJSON(report); err != nil {
			return err
		}

		if report.Paged {
			return fmt.Errorf("%w: operator paged", errFindings)
		}
		return nil
	},
}
