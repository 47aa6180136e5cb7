// Package mcp exposes the agent over the Model Context Protocol. An
// MCP client drives the same coordinator the CLI uses: it can start
// runs, answer clarifications, poll status, and cancel. The server
// speaks the stdio transport and registers one tool per operation.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dinoki-ai/osagent/internal/issue"
	"github.com/dinoki-ai/osagent/internal/logging"
	"github.com/dinoki-ai/osagent/internal/orchestrator"
)

const (
	serverName     = "osagent"
	defaultVersion = "0.1.0"
)

// Server wraps a Coordinator behind MCP tool registrations. One server
// owns one coordinator, so a clarification suspension stays live
// between an agent_run call and the agent_clarify that answers it.
type Server struct {
	srv   *mcp.Server
	coord *orchestrator.Coordinator
	store issue.Store
	log   *logging.Logger
}

// Option configures a Server.
type Option func(*options)

type options struct {
	version string
	log     *logging.Logger
}

// WithVersion sets the advertised implementation version.
func WithVersion(version string) Option {
	return func(o *options) {
		if version != "" {
			o.version = version
		}
	}
}

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(log *logging.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

// New creates the MCP server and registers the agent tools. Both
// dependencies must be non-nil.
func New(coord *orchestrator.Coordinator, store issue.Store, opts ...Option) *Server {
	if coord == nil {
		panic("mcp.New: coordinator must not be nil")
	}
	if store == nil {
		panic("mcp.New: store must not be nil")
	}

	o := &options{version: defaultVersion, log: logging.NopLogger()}
	for _, opt := range opts {
		opt(o)
	}

	s := &Server{
		srv: mcp.NewServer(&mcp.Implementation{
			Name:    serverName,
			Version: o.version,
		}, nil),
		coord: coord,
		store: store,
		log:   o.log.WithComponent("mcp"),
	}
	s.registerTools()
	return s
}

// Run serves MCP over stdio until the context ends or the client
// disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.log.Info("starting MCP server on stdio transport")
	if err := s.srv.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("mcp server run failed: %w", err)
	}
	return nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.srv, &mcp.Tool{
		Name:        "agent_run",
		Description: "Create a task from a free-form query and execute it until it completes, decomposes, or needs clarification",
	}, s.handleRun)

	mcp.AddTool(s.srv, &mcp.Tool{
		Name:        "agent_next",
		Description: "Execute the highest-priority open issue, optionally scoped to one task",
	}, s.handleNext)

	mcp.AddTool(s.srv, &mcp.Tool{
		Name:        "agent_clarify",
		Description: "Answer the clarifying question a suspended issue is waiting on and resume it",
	}, s.handleClarify)

	mcp.AddTool(s.srv, &mcp.Tool{
		Name:        "agent_status",
		Description: "Report the agent's state, any pending question, and optionally one issue's status",
	}, s.handleStatus)

	mcp.AddTool(s.srv, &mcp.Tool{
		Name:        "agent_cancel",
		Description: "Cancel the active run or discard a pending clarification",
	}, s.handleCancel)
}

type runInput struct {
	Query string `json:"query" jsonschema:"required,Task to perform; the first line becomes the issue title"`
}

type nextInput struct {
	TaskID string `json:"task_id,omitempty" jsonschema:"Limit selection to one task's open issues"`
}

type clarifyInput struct {
	IssueID string `json:"issue_id" jsonschema:"required,Suspended issue to answer"`
	Answer  string `json:"answer" jsonschema:"required,Answer to the pending question"`
}

type statusInput struct {
	IssueID string `json:"issue_id,omitempty" jsonschema:"Also report this issue's stored state"`
}

type cancelInput struct{}

// runOutput is the shared result shape for run, next, and clarify.
type runOutput struct {
	IssueID         string   `json:"issue_id" jsonschema:"Issue that was executed"`
	Status          string   `json:"status" jsonschema:"completed, decomposed, needs_clarification, or not_achieved"`
	Summary         string   `json:"summary,omitempty" jsonschema:"Verified outcome summary"`
	Question        string   `json:"question,omitempty" jsonschema:"Pending question when the run suspended"`
	Options         []string `json:"options,omitempty" jsonschema:"Suggested answers to the question"`
	ChildIssueIDs   []string `json:"child_issue_ids,omitempty" jsonschema:"Issues created by decomposition"`
	FollowUpIssueID string   `json:"follow_up_issue_id,omitempty" jsonschema:"Issue spawned for remaining work"`
	Iterations      int      `json:"iterations" jsonschema:"Reasoning iterations used"`
	ToolCalls       int      `json:"tool_calls" jsonschema:"Tool calls used"`
}

type statusOutput struct {
	State          string   `json:"state" jsonschema:"idle, executing, or awaiting_clarification"`
	CurrentIssueID string   `json:"current_issue_id,omitempty" jsonschema:"Issue occupying the execution slot"`
	Question       string   `json:"question,omitempty" jsonschema:"Pending clarification question"`
	Options        []string `json:"options,omitempty" jsonschema:"Suggested answers to the question"`
	OpenIssues     int      `json:"open_issues" jsonschema:"Open issues across all tasks"`
	IssueStatus    string   `json:"issue_status,omitempty" jsonschema:"Stored status of the requested issue"`
	IssueTitle     string   `json:"issue_title,omitempty" jsonschema:"Title of the requested issue"`
	IssueResult    string   `json:"issue_result,omitempty" jsonschema:"Recorded result of the requested issue"`
}

type cancelOutput struct {
	Cancelled bool   `json:"cancelled" jsonschema:"Whether there was anything to cancel"`
	State     string `json:"state" jsonschema:"Coordinator state after the cancel"`
}

func (s *Server) handleRun(ctx context.Context, _ *mcp.CallToolRequest, args runInput) (*mcp.CallToolResult, runOutput, error) {
	res, err := s.coord.Run(ctx, args.Query)
	if err != nil {
		return nil, runOutput{}, err
	}
	out := toRunOutput(res)
	return textResult(summaryLine(out)), out, nil
}

func (s *Server) handleNext(ctx context.Context, _ *mcp.CallToolRequest, args nextInput) (*mcp.CallToolResult, runOutput, error) {
	res, err := s.coord.Next(ctx, args.TaskID)
	if err != nil {
		return nil, runOutput{}, err
	}
	out := toRunOutput(res)
	return textResult(summaryLine(out)), out, nil
}

func (s *Server) handleClarify(ctx context.Context, _ *mcp.CallToolRequest, args clarifyInput) (*mcp.CallToolResult, runOutput, error) {
	res, err := s.coord.ProvideClarification(ctx, args.IssueID, args.Answer)
	if err != nil {
		return nil, runOutput{}, err
	}
	out := toRunOutput(res)
	return textResult(summaryLine(out)), out, nil
}

func (s *Server) handleStatus(ctx context.Context, _ *mcp.CallToolRequest, args statusInput) (*mcp.CallToolResult, statusOutput, error) {
	out := statusOutput{
		State:          s.coord.State().String(),
		CurrentIssueID: s.coord.CurrentIssueID(),
	}
	if pend := s.coord.Pending(); pend != nil {
		out.Question = pend.Question
		out.Options = pend.Options
	}

	open, err := s.store.ReadyIssues(ctx, "")
	if err != nil {
		return nil, statusOutput{}, err
	}
	out.OpenIssues = len(open)

	if args.IssueID != "" {
		iss, err := s.store.GetIssue(ctx, args.IssueID)
		if err != nil {
			return nil, statusOutput{}, err
		}
		out.IssueStatus = string(iss.Status)
		out.IssueTitle = iss.Title
		out.IssueResult = iss.Result
	}

	text := fmt.Sprintf("Agent is %s with %d open issues", out.State, out.OpenIssues)
	if out.Question != "" {
		text += fmt.Sprintf("; waiting on: %s", out.Question)
	}
	return textResult(text), out, nil
}

func (s *Server) handleCancel(_ context.Context, _ *mcp.CallToolRequest, _ cancelInput) (*mcp.CallToolResult, cancelOutput, error) {
	hadWork := s.coord.State() != orchestrator.StateIdle
	if err := s.coord.Cancel(); err != nil {
		return nil, cancelOutput{}, err
	}
	out := cancelOutput{
		Cancelled: hadWork,
		State:     s.coord.State().String(),
	}
	text := "Nothing to cancel"
	if hadWork {
		text = "Cancelled the active run"
	}
	return textResult(text), out, nil
}

func toRunOutput(res *orchestrator.ExecutionResult) runOutput {
	out := runOutput{
		IssueID:         res.IssueID,
		Summary:         res.Summary,
		ChildIssueIDs:   res.ChildIssueIDs,
		FollowUpIssueID: res.FollowUpIssueID,
		Iterations:      res.Iterations,
		ToolCalls:       res.ToolCalls,
	}
	switch {
	case res.Clarification != nil:
		out.Status = "needs_clarification"
		out.Question = res.Clarification.Question
		out.Options = res.Clarification.Options
	case len(res.ChildIssueIDs) > 0:
		out.Status = "decomposed"
	case res.Success:
		out.Status = "completed"
	default:
		out.Status = "not_achieved"
	}
	return out
}

func summaryLine(out runOutput) string {
	switch out.Status {
	case "needs_clarification":
		return fmt.Sprintf("Issue %s needs clarification: %s", out.IssueID, out.Question)
	case "decomposed":
		return fmt.Sprintf("Issue %s was decomposed into %d child issues", out.IssueID, len(out.ChildIssueIDs))
	case "completed":
		return fmt.Sprintf("Issue %s completed: %s", out.IssueID, out.Summary)
	default:
		return fmt.Sprintf("Issue %s did not achieve its goal: %s", out.IssueID, out.Summary)
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}
