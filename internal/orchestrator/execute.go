package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/dinoki-ai/osagent/internal/errors"
	"github.com/dinoki-ai/osagent/internal/event"
	"github.com/dinoki-ai/osagent/internal/issue"
	"github.com/dinoki-ai/osagent/internal/model"
	"github.com/dinoki-ai/osagent/internal/orchestrator/executor"
	"github.com/dinoki-ai/osagent/internal/orchestrator/plan"
	"github.com/dinoki-ai/osagent/internal/orchestrator/verify"
	"github.com/dinoki-ai/osagent/internal/tool"
)

// Audit payloads written to the store's event trail.
type planAudit struct {
	Steps        int      `json:"steps"`
	MaxToolCalls int      `json:"max_tool_calls"`
	Tools        []string `json:"tools,omitempty"`
	Skills       []string `json:"skills,omitempty"`
}

type clarificationAudit struct {
	Question string   `json:"question"`
	Options  []string `json:"options,omitempty"`
	Answer   string   `json:"answer,omitempty"`
	Phase    string   `json:"phase"`
}

type verificationAudit struct {
	Status    string `json:"status"`
	Summary   string `json:"summary"`
	Remaining string `json:"remaining,omitempty"`
}

type completionAudit struct {
	Summary         string `json:"summary"`
	FollowUpIssueID string `json:"follow_up_issue_id,omitempty"`
}

// Run creates a task with a single issue from a free-form query and
// executes it. The first line of the query becomes the title, the rest
// the description.
func (c *Coordinator) Run(ctx context.Context, query string) (*ExecutionResult, error) {
	title, desc := splitQuery(query)
	if title == "" {
		return nil, errors.New("query must not be empty")
	}
	t := issue.NewTask(title)
	if err := c.store.CreateTask(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	iss := issue.NewIssue(t.ID, title, desc)
	if err := c.store.CreateIssue(ctx, iss); err != nil {
		return nil, fmt.Errorf("failed to create issue: %w", err)
	}
	return c.execute(ctx, iss)
}

// Resume re-executes an existing issue. The result of a previous
// attempt, if any, is folded into the issue context so the next plan
// can account for it.
func (c *Coordinator) Resume(ctx context.Context, issueID string) (*ExecutionResult, error) {
	iss, err := c.store.GetIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}
	if foldPriorResult(iss) {
		if err := c.store.UpdateIssue(ctx, iss); err != nil {
			return nil, fmt.Errorf("failed to update issue: %w", err)
		}
	}
	return c.execute(ctx, iss)
}

// Next executes the highest-priority open issue. An empty taskID
// considers open issues across all tasks.
func (c *Coordinator) Next(ctx context.Context, taskID string) (*ExecutionResult, error) {
	ready, err := c.store.ReadyIssues(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if len(ready) == 0 {
		return nil, errors.ErrNoIssueCreated
	}
	return c.execute(ctx, ready[0])
}

// ProvideClarification answers the question the coordinator is
// suspended on and resumes the run. The issue id must match the
// suspended issue; each pending question is consumed exactly once.
func (c *Coordinator) ProvideClarification(ctx context.Context, issueID, response string) (*ExecutionResult, error) {
	pend, runCtx, err := c.takePending(ctx, issueID)
	if err != nil {
		return nil, err
	}
	res, err := c.resumeClarified(runCtx, pend, response)
	err = cancelledError(runCtx, issueID, err)
	c.finishRun(ctx, issueID, res, err)
	return res, err
}

// execute drives one issue through the full pipeline under the
// single-flight slot.
func (c *Coordinator) execute(ctx context.Context, iss *issue.Issue) (*ExecutionResult, error) {
	runCtx, err := c.begin(ctx, iss.ID)
	if err != nil {
		return nil, err
	}
	res, err := c.drive(runCtx, iss)
	err = cancelledError(runCtx, iss.ID, err)
	c.finishRun(ctx, iss.ID, res, err)
	return res, err
}

// finishRun releases the slot and records a failed run on the issue.
func (c *Coordinator) finishRun(ctx context.Context, issueID string, res *ExecutionResult, err error) {
	suspended := err == nil && res != nil && res.Clarification != nil
	c.end(suspended)
	if err != nil {
		c.publish(event.NewIssueFailedEvent(issueID, err.Error()))
		c.noteFailure(ctx, issueID, err)
	}
}

func (c *Coordinator) drive(ctx context.Context, iss *issue.Issue) (*ExecutionResult, error) {
	c.log.WithIssue(iss.ID).Info("executing issue", "title", iss.Title)
	if err := c.setStatus(ctx, iss, issue.StatusInProgress); err != nil {
		return nil, err
	}
	c.publish(event.NewIssueStartedEvent(iss.ID, iss.TaskID, iss.Title))
	return c.planAndRun(ctx, iss)
}

// planAndRun builds a plan for the issue and acts on the outcome.
func (c *Coordinator) planAndRun(ctx context.Context, iss *issue.Issue) (*ExecutionResult, error) {
	outcome, err := c.builder.Build(ctx, iss, c.registry.ModelDefinitions(), c.skills, inheritedCaps(iss))
	if err != nil {
		return nil, err
	}
	switch outcome.Kind {
	case plan.OutcomeClarify:
		return c.suspendPlanning(ctx, iss, outcome.Clarification), nil
	case plan.OutcomeDecompose:
		return c.decomposeIssue(ctx, iss, outcome.Chunks)
	default:
		return c.runReady(ctx, iss, outcome.Plan)
	}
}

func (c *Coordinator) suspendPlanning(ctx context.Context, iss *issue.Issue, req *plan.ClarificationRequest) *ExecutionResult {
	c.audit(ctx, iss, issue.KindClarification, clarificationAudit{
		Question: req.Question,
		Options:  req.Options,
		Phase:    "planning",
	})
	c.publish(event.NewClarificationNeededEvent(iss.ID, req.Question, req.Options))
	c.suspend(iss.ID, req, nil)
	c.log.Info("planning needs clarification", "issue", iss.ID, "question", req.Question)
	return &ExecutionResult{IssueID: iss.ID, Clarification: req}
}

func (c *Coordinator) decomposeIssue(ctx context.Context, iss *issue.Issue, chunks [][]plan.Step) (*ExecutionResult, error) {
	caps := plan.Capabilities{Tools: iss.SelectedTools, Skills: iss.SelectedSkills}
	children, err := c.decomposer.Decompose(ctx, iss, chunks, caps)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(children))
	for i, child := range children {
		ids[i] = child.ID
	}
	summary := fmt.Sprintf("Decomposed into %d child issues", len(children))
	c.publish(event.NewStatusEvent(iss.ID, string(issue.StatusInProgress), string(issue.StatusClosed)))
	c.publish(event.NewIssueCompletedEvent(iss.ID, summary, 0, 0, ""))
	c.log.Info("issue decomposed", "issue", iss.ID, "children", len(children))
	return &ExecutionResult{
		IssueID:       iss.ID,
		Success:       true,
		Summary:       summary,
		ChildIssueIDs: ids,
	}, nil
}

// runReady executes a ready plan and verifies the outcome.
func (c *Coordinator) runReady(ctx context.Context, iss *issue.Issue, p *plan.Plan) (*ExecutionResult, error) {
	c.audit(ctx, iss, issue.KindPlanCreated, planAudit{
		Steps:        len(p.Steps),
		MaxToolCalls: p.MaxToolCalls,
		Tools:        p.Capabilities.Tools,
		Skills:       p.Capabilities.Skills,
	})
	c.publish(event.NewPlanCreatedEvent(iss.ID, len(p.Steps), p.MaxToolCalls))
	c.rememberSelection(ctx, iss, p.Capabilities)

	st := executor.NewState(iss, c.cfg.Model.SystemPrompt,
		c.executionTools(p.Capabilities.Tools),
		c.selectedSkills(p.Capabilities.Skills), 0)

	var (
		execRes *executor.Result
		err     error
	)
	if hasExpectedTools(p) {
		execRes, err = c.executor.RunPlan(ctx, st, p)
	} else {
		execRes, err = c.executor.Run(ctx, st)
	}
	if err != nil {
		return nil, err
	}
	if execRes.Status == executor.StatusNeedsClarification {
		// The executor already audited and published the question.
		c.suspend(iss.ID, execRes.Clarification, st)
		return &ExecutionResult{
			IssueID:       iss.ID,
			Clarification: execRes.Clarification,
			Iterations:    execRes.Iterations,
			ToolCalls:     execRes.ToolCalls,
		}, nil
	}
	return c.verifyAndClose(ctx, iss, st, execRes)
}

// resumeClarified folds the answer into the issue and picks the run
// back up where it suspended.
func (c *Coordinator) resumeClarified(ctx context.Context, pend *pendingClarification, response string) (*ExecutionResult, error) {
	iss, err := c.store.GetIssue(ctx, pend.issueID)
	if err != nil {
		return nil, err
	}
	iss.AppendClarification(pend.request.Question, response)
	if err := c.store.UpdateIssue(ctx, iss); err != nil {
		return nil, fmt.Errorf("failed to persist clarification answer: %w", err)
	}
	c.audit(ctx, iss, issue.KindClarification, clarificationAudit{
		Question: pend.request.Question,
		Answer:   response,
		Phase:    "answered",
	})
	c.log.Info("clarification answered", "issue", iss.ID)

	if pend.exec == nil {
		// Planning asked; re-plan with the enriched context.
		return c.planAndRun(ctx, iss)
	}

	// Execution asked; resume the captured conversation.
	pend.exec.Issue = iss
	pend.exec.AppendUserMessage("The user answered: " + response)
	execRes, err := c.executor.Run(ctx, pend.exec)
	if err != nil {
		return nil, err
	}
	if execRes.Status == executor.StatusNeedsClarification {
		c.suspend(iss.ID, execRes.Clarification, pend.exec)
		return &ExecutionResult{
			IssueID:       iss.ID,
			Clarification: execRes.Clarification,
			Iterations:    execRes.Iterations,
			ToolCalls:     execRes.ToolCalls,
		}, nil
	}
	return c.verifyAndClose(ctx, iss, pend.exec, execRes)
}

// verifyAndClose judges the finished conversation and settles the
// issue accordingly.
func (c *Coordinator) verifyAndClose(ctx context.Context, iss *issue.Issue, st *executor.State, execRes *executor.Result) (*ExecutionResult, error) {
	vres, err := c.verifier.Verify(ctx, iss, st.Messages)
	if err != nil {
		return nil, err
	}
	c.audit(ctx, iss, issue.KindVerification, verificationAudit{
		Status:    vres.Status.String(),
		Summary:   vres.Summary,
		Remaining: vres.Remaining,
	})

	res := &ExecutionResult{
		IssueID:      iss.ID,
		Summary:      vres.Summary,
		Iterations:   execRes.Iterations,
		ToolCalls:    execRes.ToolCalls,
		Verification: vres,
	}

	if vres.Status == verify.StatusNotAchieved {
		if err := c.reopenIssue(ctx, iss, vres.Summary); err != nil {
			return nil, err
		}
		c.publish(event.NewIssueFailedEvent(iss.ID, vres.Summary))
		c.log.Info("issue goal not achieved", "issue", iss.ID, "summary", vres.Summary)
		return res, nil
	}

	if err := c.closeIssue(ctx, iss, vres.Summary); err != nil {
		return nil, err
	}
	var followID string
	if vres.Status == verify.StatusPartial && vres.Remaining != "" {
		followID = c.spawnFollowUp(ctx, iss, vres.Remaining)
	}
	c.audit(ctx, iss, issue.KindCompletion, completionAudit{
		Summary:         vres.Summary,
		FollowUpIssueID: followID,
	})
	c.publish(event.NewIssueCompletedEvent(iss.ID, vres.Summary, execRes.Iterations, execRes.ToolCalls, followID))
	c.log.Info("issue completed", "issue", iss.ID, "iterations", execRes.Iterations, "tool_calls", execRes.ToolCalls)

	res.Success = true
	res.FollowUpIssueID = followID
	return res, nil
}

func (c *Coordinator) closeIssue(ctx context.Context, iss *issue.Issue, summary string) error {
	iss.Result = summary
	return c.setStatus(ctx, iss, issue.StatusClosed)
}

func (c *Coordinator) reopenIssue(ctx context.Context, iss *issue.Issue, summary string) error {
	iss.Result = "Goal not achieved: " + summary
	return c.setStatus(ctx, iss, issue.StatusOpen)
}

// spawnFollowUp creates an open issue for the remaining work. Creation
// is best effort: the parent is already closed, and a missing follow-up
// is recoverable while duplicated work is not.
func (c *Coordinator) spawnFollowUp(ctx context.Context, parent *issue.Issue, remaining string) string {
	child := issue.NewIssue(parent.TaskID, "Follow-up: "+parent.Title, remaining)
	child.Priority = parent.Priority
	child.Type = parent.Type
	if err := c.store.CreateIssue(ctx, child); err != nil {
		c.log.Warn("failed to create follow-up issue", "parent", parent.ID, "error", err)
		return ""
	}
	c.log.Info("follow-up issue created", "parent", parent.ID, "issue", child.ID)
	return child.ID
}

// noteFailure reopens an issue that failed mid-run so it stays
// eligible for Next and Resume.
func (c *Coordinator) noteFailure(ctx context.Context, issueID string, cause error) {
	iss, err := c.store.GetIssue(ctx, issueID)
	if err != nil {
		c.log.Warn("failed to load issue after failure", "issue", issueID, "error", err)
		return
	}
	if iss.Status != issue.StatusInProgress {
		return
	}
	iss.Result = fmt.Sprintf("execution failed: %v", cause)
	if err := c.setStatus(ctx, iss, issue.StatusOpen); err != nil {
		c.log.Warn("failed to reopen issue after failure", "issue", issueID, "error", err)
	}
}

// setStatus persists a status transition and publishes it.
func (c *Coordinator) setStatus(ctx context.Context, iss *issue.Issue, status issue.Status) error {
	if iss.Status == status {
		return nil
	}
	prev := iss.Status
	iss.Status = status
	if err := c.store.UpdateIssue(ctx, iss); err != nil {
		iss.Status = prev
		return fmt.Errorf("failed to update issue status: %w", err)
	}
	c.publish(event.NewStatusEvent(iss.ID, string(prev), string(status)))
	return nil
}

func (c *Coordinator) audit(ctx context.Context, iss *issue.Issue, kind string, payload any) {
	ev := issue.NewAuditEvent(iss.TaskID, iss.ID, kind, payload)
	if err := c.store.AppendEvent(ctx, ev); err != nil {
		c.log.Warn("audit event write failed", "issue", iss.ID, "kind", kind, "error", err)
	}
}

// rememberSelection persists the planner's capability selection on the
// issue the first time one is made, so later attempts inherit it.
func (c *Coordinator) rememberSelection(ctx context.Context, iss *issue.Issue, caps plan.Capabilities) {
	if iss.SelectedTools != nil || iss.SelectedSkills != nil {
		return
	}
	if len(caps.Tools) == 0 && len(caps.Skills) == 0 {
		return
	}
	cp := caps.Clone()
	iss.SelectedTools = cp.Tools
	iss.SelectedSkills = cp.Skills
	if err := c.store.UpdateIssue(ctx, iss); err != nil {
		c.log.Warn("failed to persist capability selection", "issue", iss.ID, "error", err)
	}
}

// executionTools resolves the tool definitions handed to the executor.
// A selection that matches nothing falls back to the full catalog so a
// hallucinated tool name cannot strand the run, and the meta tools are
// always present.
func (c *Coordinator) executionTools(selected []string) []model.ToolDefinition {
	defs := c.registry.ModelDefinitions()
	if len(selected) > 0 {
		want := make(map[string]bool, len(selected))
		for _, name := range selected {
			want[name] = true
		}
		filtered := make([]model.ToolDefinition, 0, len(selected))
		for _, def := range defs {
			if want[def.Name] {
				filtered = append(filtered, def)
			}
		}
		if len(filtered) > 0 {
			defs = filtered
		}
	}
	for _, meta := range tool.MetaToolDefinitions() {
		defs = append(defs, meta.ModelDefinition())
	}
	return defs
}

func (c *Coordinator) selectedSkills(names []string) []tool.Skill {
	if len(names) == 0 {
		return nil
	}
	var out []tool.Skill
	for _, name := range names {
		for _, sk := range c.skills {
			if sk.Name == name {
				out = append(out, sk)
				break
			}
		}
	}
	return out
}

// inheritedCaps returns the capability selection recorded on the
// issue, or nil when the planner has never selected for it.
func inheritedCaps(iss *issue.Issue) *plan.Capabilities {
	if iss.SelectedTools == nil && iss.SelectedSkills == nil {
		return nil
	}
	return &plan.Capabilities{Tools: iss.SelectedTools, Skills: iss.SelectedSkills}
}

func hasExpectedTools(p *plan.Plan) bool {
	for _, step := range p.Steps {
		if step.Tool != "" {
			return true
		}
	}
	return false
}

func splitQuery(query string) (title, description string) {
	parts := strings.SplitN(strings.TrimSpace(query), "\n", 2)
	title = strings.TrimSpace(parts[0])
	if len(parts) == 2 {
		description = strings.TrimSpace(parts[1])
	}
	return title, description
}

// foldPriorResult moves a leftover result into the issue context so a
// fresh attempt sees what already happened. Reports whether the issue
// changed.
func foldPriorResult(iss *issue.Issue) bool {
	res := strings.TrimSpace(iss.Result)
	if res == "" {
		return false
	}
	note := "Result of the previous attempt:\n" + res
	if iss.Context != "" {
		iss.Context += "\n\n" + note
	} else {
		iss.Context = note
	}
	iss.Result = ""
	return true
}

// cancelledError normalizes errors surfaced after the run context was
// cancelled so callers can match ErrCancelled regardless of which
// phase observed the cancellation first.
func cancelledError(runCtx context.Context, issueID string, err error) error {
	if err == nil || runCtx.Err() == nil || errors.Is(err, errors.ErrCancelled) {
		return err
	}
	return errors.NewExecutionError(errors.KindCancelled, "execution cancelled", err).WithIssueID(issueID)
}
