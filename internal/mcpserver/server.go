// Package mcpserver exposes the supervision tools over the MCP stdio
// transport for agent integration.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/shihand/internal/changeset"
	"github.com/fyrsmithlabs/shihand/internal/pager"
	"github.com/fyrsmithlabs/shihand/internal/supervisor"
)

// Deps wires the MCP server to the supervision components.
type Deps struct {
	Sentinel   supervisor.LogTailer
	Auditor    supervisor.Auditor
	Critic     supervisor.PlanCritic
	Pager      supervisor.Alerter
	Supervisor *supervisor.Supervisor
	Logger     *zap.Logger

	TailLines       int
	ScrollsDir      string
	RepoPath        string
	AuditExtensions []string
}

// Server implements the MCP protocol over stdin/stdout.
//
// All tools run in-process against the supervision components; stdout
// carries the protocol, so logging stays on stderr.
type Server struct {
	mcpServer *mcpsdk.Server
	deps      Deps
	logger    *zap.Logger
}

// NewServer creates a stdio MCP server with all supervision tools
// registered.
func NewServer(deps Deps) (*Server, error) {
	if deps.Supervisor == nil {
		return nil, fmt.Errorf("supervisor is required")
	}
	if deps.TailLines < 1 {
		deps.TailLines = 500
	}

	mcpServer := mcpsdk.NewServer(&mcpsdk.Implementation{
		Name:    "shihand",
		Version: "1.0.0",
	}, nil)

	s := &Server{
		mcpServer: mcpServer,
		deps:      deps,
		logger:    deps.Logger.Named("mcp"),
	}
	s.registerTools()

	return s, nil
}

// Run starts the MCP server using stdio transport. Blocks until the
// context is cancelled or the transport closes.
func (s *Server) Run(ctx context.Context) error {
	if err := s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{}); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "tail_log",
		Description: "Read the tail of the training log and classify the most recent failure, if any. Returns the window text, the error kind and excerpt, and the elapsed run time when timestamps allow.",
	}, s.handleTailLog)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "audit_creed",
		Description: "Audit source files against the coding creed. Omit files to audit the repository's changed files. Returns violations with file, line, pattern, and severity.",
	}, s.handleAuditCreed)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "critique_plan",
		Description: "Score a plan document on precision, minimalism, and test coverage (total out of 100, pass threshold 80). Omit the path to critique the most recently modified scroll.",
	}, s.handleCritiquePlan)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "page_ninja",
		Description: "Send an escalation page to the operator. Tries the primary channel first and falls back to a local record on failure. Priority 0 is informational, 1 is urgent, 2 is emergency.",
	}, s.handlePageNinja)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "supervise_cycle",
		Description: "Run a full supervision pass for a lifecycle event (cycle_end, manual_check, or scroll_committed). Returns the actions taken, issues found, and whether the operator was paged.",
	}, s.handleSuperviseCycle)
}

// TailLogParams defines parameters for the tail_log tool.
type TailLogParams struct {
	TailLines int `json:"tail_lines,omitempty" jsonschema:"Number of lines to read from the end of the log (default from config)"`
}

// AuditCreedParams defines parameters for the audit_creed tool.
type AuditCreedParams struct {
	Files []string `json:"files,omitempty" jsonschema:"Files to audit; omit to audit the repository's changed files"`
}

// CritiquePlanParams defines parameters for the critique_plan tool.
type CritiquePlanParams struct {
	ScrollPath string `json:"scroll_path,omitempty" jsonschema:"Path to the plan document; omit to use the latest scroll"`
}

// PageNinjaParams defines parameters for the page_ninja tool.
type PageNinjaParams struct {
	Title    string `json:"title" jsonschema:"Short page title"`
	Body     string `json:"body" jsonschema:"Page body text"`
	Priority int    `json:"priority,omitempty" jsonschema:"0 informational, 1 urgent, 2 emergency (default 0)"`
}

// SuperviseCycleParams defines parameters for the supervise_cycle tool.
type SuperviseCycleParams struct {
	Event        string   `json:"event" jsonschema:"Lifecycle event: cycle_end, manual_check, or scroll_committed"`
	ScrollPath   string   `json:"scroll_path,omitempty" jsonschema:"Plan document path, required for scroll_committed"`
	ChangedFiles []string `json:"changed_files,omitempty" jsonschema:"Files changed this cycle; omit to discover from the repository"`
}

func (s *Server) handleTailLog(ctx context.Context, req *mcpsdk.CallToolRequest, params *TailLogParams) (*mcpsdk.CallToolResult, any, error) {
	lines := params.TailLines
	if lines == 0 {
		lines = s.deps.TailLines
	}

	summary, err := s.deps.Sentinel.Tail(lines)
	if err != nil {
		return nil, nil, fmt.Errorf("tail_log failed: %w", err)
	}

	return jsonResult(summary)
}

func (s *Server) handleAuditCreed(ctx context.Context, req *mcpsdk.CallToolRequest, params *AuditCreedParams) (*mcpsdk.CallToolResult, any, error) {
	files := params.Files
	if len(files) == 0 {
		if s.deps.RepoPath == "" {
			return nil, nil, fmt.Errorf("audit_creed failed: no files given and no repository configured")
		}
		discovered, err := changeset.Changed(s.deps.RepoPath, s.deps.AuditExtensions)
		if err != nil {
			return nil, nil, fmt.Errorf("audit_creed failed: %w", err)
		}
		files = discovered
	}

	violations := s.deps.Auditor.Audit(files)

	return jsonResult(map[string]any{
		"filesAudited": len(files),
		"violations":   violations,
	})
}

func (s *Server) handleCritiquePlan(ctx context.Context, req *mcpsdk.CallToolRequest, params *CritiquePlanParams) (*mcpsdk.CallToolResult, any, error) {
	path := params.ScrollPath
	if path == "" {
		latest, err := changeset.LatestScroll(s.deps.ScrollsDir)
		if err != nil {
			return nil, nil, fmt.Errorf("critique_plan failed: %w", err)
		}
		if latest == "" {
			return nil, nil, fmt.Errorf("critique_plan failed: no scrolls found in %s", s.deps.ScrollsDir)
		}
		path = latest
	}

	score, err := s.deps.Critic.Critique(ctx, path)
	if err != nil {
		return nil, nil, fmt.Errorf("critique_plan failed: %w", err)
	}

	return jsonResult(score)
}

func (s *Server) handlePageNinja(ctx context.Context, req *mcpsdk.CallToolRequest, params *PageNinjaParams) (*mcpsdk.CallToolResult, any, error) {
	if params.Title == "" {
		return nil, nil, fmt.Errorf("page_ninja failed: title is required")
	}

	result, err := s.deps.Pager.Page(ctx, pager.NewRequest(params.Title, params.Body, params.Priority))
	if err != nil {
		return nil, nil, fmt.Errorf("page_ninja failed: %w", err)
	}

	return jsonResult(result)
}

func (s *Server) handleSuperviseCycle(ctx context.Context, req *mcpsdk.CallToolRequest, params *SuperviseCycleParams) (*mcpsdk.CallToolResult, any, error) {
	ev := supervisor.Event{
		Type:         supervisor.EventType(params.Event),
		ScrollPath:   params.ScrollPath,
		ChangedFiles: params.ChangedFiles,
	}

	report, err := s.deps.Supervisor.Supervise(ctx, ev)
	if err != nil {
		return nil, nil, fmt.Errorf("supervise_cycle failed: %w", err)
	}

	return jsonResult(report)
}

// jsonResult renders a payload as indented JSON text content.
func jsonResult(payload any) (*mcpsdk.CallToolResult, any, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("encoding result: %w", err)
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, nil, nil
}
