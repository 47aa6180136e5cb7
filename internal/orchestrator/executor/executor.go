// Package executor runs the bounded reasoning loop: it streams the
// conversation to the model, executes the tools the model calls, and
// folds results back in until the task completes, suspends on a
// question, or runs out of budget.
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dinoki-ai/osagent/internal/errors"
	"github.com/dinoki-ai/osagent/internal/event"
	"github.com/dinoki-ai/osagent/internal/issue"
	"github.com/dinoki-ai/osagent/internal/logging"
	"github.com/dinoki-ai/osagent/internal/model"
	"github.com/dinoki-ai/osagent/internal/orchestrator/plan"
	"github.com/dinoki-ai/osagent/internal/tool"
)

// Defaults applied by New when the config leaves fields unset.
const (
	DefaultMaxIterations  = 20
	DefaultMaxToolCalls   = 10
	DefaultToolTimeout    = 120 * time.Second
	DefaultStepToolBudget = 3
	DefaultMaxTextOnly    = 3
)

// Config bounds one execution run.
type Config struct {
	// Params are the completion parameters; Tools is filled per turn
	// from the run state.
	Params model.Params

	MaxIterations int
	MaxToolCalls  int
	ToolTimeout   time.Duration

	// StepToolBudget caps sub-tool-calls per plan step in RunPlan.
	StepToolBudget int

	// MaxTextOnly aborts the loop after this many consecutive responses
	// without a tool call.
	MaxTextOnly int

	// MaxTokensPerIssue aborts the run once total token usage passes it.
	// Zero disables the budget.
	MaxTokensPerIssue int
}

// Status tags the terminal outcome of a run.
type Status int

const (
	// StatusCompleted means the model declared the task done, or the
	// loop settled for a best-effort summary.
	StatusCompleted Status = iota
	// StatusNeedsClarification means the run is suspended on a question.
	StatusNeedsClarification
	// StatusIterationLimit means the iteration budget ran out first.
	StatusIterationLimit
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusCompleted:
		return "completed"
	case StatusNeedsClarification:
		return "needs_clarification"
	case StatusIterationLimit:
		return "iteration_limit"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Result is the terminal outcome of a run. A clarification result is
// successful-but-incomplete, not an error.
type Result struct {
	Status        Status
	Summary       string
	Clarification *plan.ClarificationRequest
	Iterations    int
	ToolCalls     int
	TokensUsed    int
}

// Executor drives the reasoning loop for one issue at a time.
type Executor struct {
	client   model.Client
	registry *tool.Registry
	store    issue.Store
	bus      *event.Bus
	cfg      Config
	log      *logging.Logger
}

// New creates an Executor. The bus may be nil; a nil logger disables
// logging.
func New(client model.Client, registry *tool.Registry, store issue.Store, bus *event.Bus, cfg Config, log *logging.Logger) *Executor {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.MaxToolCalls <= 0 {
		cfg.MaxToolCalls = DefaultMaxToolCalls
	}
	if cfg.ToolTimeout <= 0 {
		cfg.ToolTimeout = DefaultToolTimeout
	}
	if cfg.StepToolBudget <= 0 {
		cfg.StepToolBudget = DefaultStepToolBudget
	}
	if cfg.MaxTextOnly <= 0 {
		cfg.MaxTextOnly = DefaultMaxTextOnly
	}
	if log == nil {
		log = logging.NopLogger()
	}
	return &Executor{
		client:   client,
		registry: registry,
		store:    store,
		bus:      bus,
		cfg:      cfg,
		log:      log.WithComponent("executor"),
	}
}

// Run executes the free reasoning loop: the model decides every action
// until it completes, asks, or exhausts a budget.
func (e *Executor) Run(ctx context.Context, st *State) (*Result, error) {
	return e.run(ctx, st, nil)
}

// RunPlan executes the bounded-planning variant: the loop advances
// through the plan step by step, each step allowed a small number of
// sub-tool-calls, every executed tool charged against the plan's shared
// budget.
func (e *Executor) RunPlan(ctx context.Context, st *State, p *plan.Plan) (*Result, error) {
	if p == nil || len(p.Steps) == 0 {
		return nil, errors.NewExecutionError(errors.KindStepOutOfBounds, "plan has no steps to execute", nil).WithIssueID(st.Issue.ID)
	}
	return e.run(ctx, st, p)
}

// run is the loop core shared by Run and RunPlan. p is nil in free mode.
func (e *Executor) run(ctx context.Context, st *State, p *plan.Plan) (*Result, error) {
	if st.Usage.MaxTokens == 0 {
		st.Usage.MaxTokens = e.cfg.MaxTokensPerIssue
	}

	var cursor *stepCursor
	if p != nil {
		cursor = newStepCursor(p, e.cfg.StepToolBudget)
		cursor.introduceNext(st)
	}

	for st.Usage.Iterations < e.cfg.MaxIterations {
		if ctx.Err() != nil {
			return nil, errors.NewExecutionError(errors.KindCancelled, "execution cancelled", ctx.Err()).WithIssueID(st.Issue.ID)
		}

		st.Usage.Iterations++
		e.publish(event.NewIterationStartedEvent(st.Issue.ID, st.Usage.Iterations, e.cfg.MaxIterations))
		e.log.Debug("iteration started",
			"issue", st.Issue.ID,
			"iteration", st.Usage.Iterations,
			"max", e.cfg.MaxIterations)

		text, calls, usage, err := e.streamTurn(ctx, st)
		if err != nil {
			if ctx.Err() != nil {
				return nil, errors.NewExecutionError(errors.KindCancelled, "execution cancelled", ctx.Err()).WithIssueID(st.Issue.ID)
			}
			return nil, e.withIssueID(err, st.Issue.ID)
		}
		st.Usage.AddUsage(usage)
		if st.Usage.Exceeded() {
			return nil, errors.NewExecutionError(errors.KindTokenLimit,
				fmt.Sprintf("token budget exhausted: %d of %d", st.Usage.TotalTokens(), st.Usage.MaxTokens), nil).
				WithIssueID(st.Issue.ID)
		}

		if len(calls) == 0 {
			if res, done := e.textTurn(st, text); done {
				return res, nil
			}
			continue
		}

		st.textOnly = 0
		st.Messages = append(st.Messages, model.Message{
			Role:      model.RoleAssistant,
			Content:   stripToolLeakage(text),
			ToolCalls: calls,
		})

		for _, call := range calls {
			res, err := e.dispatchCall(ctx, st, p, cursor, call)
			if err != nil {
				return nil, err
			}
			if res != nil {
				return res, nil
			}
		}
	}

	e.log.Info("iteration limit reached",
		"issue", st.Issue.ID,
		"iterations", st.Usage.Iterations,
		"tool_calls", st.Usage.ToolCalls)
	summary := fmt.Sprintf("iteration limit reached after %d iterations", st.Usage.Iterations)
	return e.result(st, StatusIterationLimit, summary, nil), nil
}

// textTurn handles a response without tool calls. done is false when the
// loop should nudge and re-iterate.
func (e *Executor) textTurn(st *State, text string) (*Result, bool) {
	st.Messages = append(st.Messages, model.AssistantMessage(text))

	if summary, ok := completionSummary(text); ok {
		if summary == "" {
			summary = "task complete"
		}
		e.log.Info("completion phrase detected", "issue", st.Issue.ID)
		return e.result(st, StatusCompleted, summary, nil), true
	}

	st.textOnly++
	if st.textOnly >= e.cfg.MaxTextOnly {
		e.log.Warn("aborting after consecutive text-only responses",
			"issue", st.Issue.ID,
			"count", st.textOnly)
		return e.result(st, StatusCompleted, fallbackSummary(text), nil), true
	}

	st.Messages = append(st.Messages, model.UserMessage(nudgeMessage))
	return nil, false
}

// dispatchCall handles one tool call: meta interception, budget
// accounting, execution under the timeout, audit, and conversation
// bookkeeping. A non-nil Result ends the run.
func (e *Executor) dispatchCall(ctx context.Context, st *State, p *plan.Plan, cursor *stepCursor, call model.ToolCall) (*Result, error) {
	switch call.Name {
	case tool.TaskCompleteName:
		return e.finishTaskComplete(ctx, st, call)
	case tool.AskUserName:
		return e.suspendAskUser(ctx, st, call)
	}

	if p != nil {
		if err := p.RecordToolCall(); err != nil {
			return nil, errors.NewExecutionError(errors.KindToolCallLimit, "tool call limit reached", err).WithIssueID(st.Issue.ID)
		}
	} else if st.Usage.ToolCalls >= e.cfg.MaxToolCalls {
		return nil, errors.NewExecutionError(errors.KindToolCallLimit,
			fmt.Sprintf("tool call limit reached: %d", e.cfg.MaxToolCalls), nil).
			WithIssueID(st.Issue.ID)
	}

	start := time.Now()
	result, err := e.executeTool(ctx, st.Issue.ID, call)
	if err != nil {
		return nil, err
	}
	st.Usage.ToolCalls++
	ok := !strings.HasPrefix(result, "[REJECTED]") && !strings.HasPrefix(result, "[TIMEOUT]")

	// Audit before the result is visible anywhere else.
	e.audit(ctx, st, issue.KindToolCall, toolCallAudit{
		Tool:      call.Name,
		Arguments: call.Arguments,
		Result:    result,
		OK:        ok,
	})
	e.publish(event.NewToolCalledEvent(st.Issue.ID, call.Name, call.Arguments, ok, time.Since(start).Round(time.Millisecond).String()))
	e.log.Debug("tool executed",
		"issue", st.Issue.ID,
		"tool", call.Name,
		"ok", ok)

	st.Messages = append(st.Messages, model.ToolResultMessage(call.ID, result))

	if cursor != nil {
		cursor.onToolCall(st, call)
	}
	return nil, nil
}

// executeTool races the registry call against the per-call timeout. A
// timeout synthesizes a result string; only cancellation of the parent
// context is a real error.
func (e *Executor) executeTool(ctx context.Context, issueID string, call model.ToolCall) (string, error) {
	tctx, cancel := context.WithTimeout(ctx, e.cfg.ToolTimeout)
	defer cancel()

	type outcome struct {
		result string
		err    error
	}
	ch := make(chan outcome, 1)
	go func() {
		result, err := e.registry.Execute(tctx, call.Name, call.Arguments, issueID)
		ch <- outcome{result, err}
	}()

	select {
	case out := <-ch:
		if out.err != nil {
			if ctx.Err() != nil {
				return "", errors.NewExecutionError(errors.KindCancelled, "execution cancelled", ctx.Err()).WithIssueID(issueID)
			}
			if errors.Is(out.err, context.DeadlineExceeded) {
				return e.timeoutResult(call.Name), nil
			}
			return "", out.err
		}
		return out.result, nil
	case <-tctx.Done():
		if ctx.Err() != nil {
			return "", errors.NewExecutionError(errors.KindCancelled, "execution cancelled", ctx.Err()).WithIssueID(issueID)
		}
		e.log.Warn("tool timed out", "issue", issueID, "tool", call.Name, "timeout", e.cfg.ToolTimeout)
		return e.timeoutResult(call.Name), nil
	}
}

func (e *Executor) timeoutResult(name string) string {
	return fmt.Sprintf("[TIMEOUT] tool %s did not return within %v", name, e.cfg.ToolTimeout)
}

// finishTaskComplete ends the run on the task_complete meta-tool,
// persisting a final artifact when the payload carries one.
func (e *Executor) finishTaskComplete(ctx context.Context, st *State, call model.ToolCall) (*Result, error) {
	var args tool.TaskCompleteArgs
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			e.log.Warn("task_complete arguments unreadable", "issue", st.Issue.ID, "error", err)
		}
	}
	summary := strings.TrimSpace(args.Summary)
	if summary == "" {
		summary = "task marked complete"
	}

	if args.ArtifactName != "" && args.ArtifactContent != "" {
		art := issue.NewArtifact(st.Issue.TaskID, args.ArtifactName, "text", args.ArtifactContent, true)
		if err := e.store.CreateArtifact(ctx, art); err != nil {
			e.log.Warn("final artifact write failed", "issue", st.Issue.ID, "artifact", args.ArtifactName, "error", err)
		} else {
			e.publish(event.NewArtifactGeneratedEvent(art.ID, st.Issue.TaskID, st.Issue.ID, art.Name, true))
		}
	}

	e.audit(ctx, st, issue.KindToolCall, toolCallAudit{
		Tool:      call.Name,
		Arguments: call.Arguments,
		Result:    "task complete",
		OK:        true,
	})
	e.log.Info("task_complete received", "issue", st.Issue.ID)
	return e.result(st, StatusCompleted, summary, nil), nil
}

// suspendAskUser suspends the run on the ask_user meta-tool. A call
// without a question is folded back as a rejection so the model can
// correct itself.
func (e *Executor) suspendAskUser(ctx context.Context, st *State, call model.ToolCall) (*Result, error) {
	var args tool.AskUserArgs
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			e.log.Warn("ask_user arguments unreadable", "issue", st.Issue.ID, "error", err)
		}
	}
	question := strings.TrimSpace(args.Question)
	if question == "" {
		st.Messages = append(st.Messages, model.ToolResultMessage(call.ID, "[REJECTED] ask_user requires a question"))
		return nil, nil
	}

	// Keep the conversation well-formed across the suspension: the tool
	// call gets a placeholder result, the answer arrives later as a
	// user message.
	st.Messages = append(st.Messages, model.ToolResultMessage(call.ID, "[PENDING] question sent to user"))

	req := &plan.ClarificationRequest{
		Question: question,
		Options:  args.Options,
		Context:  strings.TrimSpace(args.Context),
	}
	e.audit(ctx, st, issue.KindClarification, map[string]any{
		"question": req.Question,
		"options":  req.Options,
	})
	e.publish(event.NewClarificationNeededEvent(st.Issue.ID, req.Question, req.Options))
	e.log.Info("execution suspended on clarification", "issue", st.Issue.ID, "question", req.Question)
	return e.result(st, StatusNeedsClarification, "", req), nil
}

// streamTurn streams one model turn, forwarding deltas to the bus and
// assembling text, tool calls, and usage.
func (e *Executor) streamTurn(ctx context.Context, st *State) (string, []model.ToolCall, *model.Usage, error) {
	params := e.cfg.Params
	params.Tools = st.Tools

	ch, err := e.client.Stream(ctx, st.Messages, params)
	if err != nil {
		return "", nil, nil, err
	}

	var text strings.Builder
	var calls []model.ToolCall
	var usage *model.Usage
	for ev := range ch {
		switch ev.Type {
		case model.StreamDelta:
			text.WriteString(ev.Delta)
			e.publish(event.NewStreamDeltaEvent(st.Issue.ID, ev.Delta))
		case model.StreamToolCall:
			if ev.Call != nil {
				calls = append(calls, *ev.Call)
			}
		case model.StreamDone:
			usage = ev.Usage
			if ev.Err != nil {
				return "", nil, usage, ev.Err
			}
		}
	}
	return text.String(), calls, usage, nil
}

type toolCallAudit struct {
	Tool      string `json:"tool"`
	Arguments string `json:"arguments"`
	Result    string `json:"result"`
	OK        bool   `json:"ok"`
}

func (e *Executor) audit(ctx context.Context, st *State, kind string, payload any) {
	ev := issue.NewAuditEvent(st.Issue.TaskID, st.Issue.ID, kind, payload)
	if err := e.store.AppendEvent(ctx, ev); err != nil {
		e.log.Warn("audit event write failed", "issue", st.Issue.ID, "kind", kind, "error", err)
	}
}

func (e *Executor) publish(ev event.Event) {
	if e.bus != nil {
		e.bus.Publish(ev)
	}
}

func (e *Executor) result(st *State, status Status, summary string, clar *plan.ClarificationRequest) *Result {
	return &Result{
		Status:        status,
		Summary:       summary,
		Clarification: clar,
		Iterations:    st.Usage.Iterations,
		ToolCalls:     st.Usage.ToolCalls,
		TokensUsed:    st.Usage.TotalTokens(),
	}
}

// withIssueID stamps the issue onto execution errors that lack one.
func (e *Executor) withIssueID(err error, issueID string) error {
	var execErr *errors.ExecutionError
	if errors.As(err, &execErr) && execErr.IssueID == "" {
		execErr.WithIssueID(issueID)
	}
	return err
}

// stepCursor tracks progress through a plan during RunPlan.
type stepCursor struct {
	plan     *plan.Plan
	budget   int
	current  *plan.Step
	subCalls int
}

func newStepCursor(p *plan.Plan, budget int) *stepCursor {
	return &stepCursor{plan: p, budget: budget}
}

// introduceNext appends the next step's intro message, or the wrap-up
// prompt once every step is done.
func (c *stepCursor) introduceNext(st *State) {
	c.current = c.plan.NextStep()
	c.subCalls = 0
	if c.current != nil {
		st.AppendUserMessage(stepIntro(c.current, len(c.plan.Steps)))
		return
	}
	st.AppendUserMessage("All plan steps are complete. Summarize what was done and reply TASK COMPLETE.")
}

// onToolCall records one executed tool against the current step. The
// step closes when its expected tool fires, when the sub-call budget is
// spent, or, with no expected tool, on the first call.
func (c *stepCursor) onToolCall(st *State, call model.ToolCall) {
	if c.current == nil {
		return
	}
	c.subCalls++
	expected := c.current.Tool
	switch {
	case expected == "":
		// No expected tool: the first action settles the step.
	case call.Name == expected:
	case c.subCalls < c.budget:
		return
	}
	c.current.Completed = true
	c.introduceNext(st)
}

func stepIntro(s *plan.Step, total int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Step %d of %d: %s", s.Number, total, s.Description)
	if s.Tool != "" {
		fmt.Fprintf(&sb, " (expected tool: %s)", s.Tool)
	}
	return sb.String()
}
