package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/dinoki-ai/osagent/internal/event"
	"github.com/dinoki-ai/osagent/internal/orchestrator"
)

// ANSI color codes for terminal output
const (
	colorReset  = "\033[0m"
	colorGray   = "\033[90m"
	colorGreen  = "\033[32m"
	colorBlue   = "\033[34m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorCyan   = "\033[36m"
)

// progressPrinter renders bus events as progress lines on stdout. Model
// output streams raw; everything else gets one line each. All events for
// a run arrive from the executing goroutine, so no locking is needed.
type progressPrinter struct {
	bus       *event.Bus
	ids       []string
	streaming bool
}

// newProgressPrinter subscribes a printer to the events worth showing
// while a run is in flight. Completion and failure are left to the final
// result rendering so they are not printed twice.
func newProgressPrinter(bus *event.Bus) *progressPrinter {
	p := &progressPrinter{bus: bus}
	sub := func(eventType string, h event.Handler) {
		p.ids = append(p.ids, bus.Subscribe(eventType, h))
	}

	sub("issue.started", func(e event.Event) {
		if ev, ok := e.(event.IssueStartedEvent); ok {
			p.linef("%s▶ %s%s", colorBlue, ev.Title, colorReset)
		}
	})
	sub("plan.created", func(e event.Event) {
		if ev, ok := e.(event.PlanCreatedEvent); ok {
			p.linef("%splan: %d steps, budget %d tool calls%s", colorGray, ev.Steps, ev.MaxToolCalls, colorReset)
		}
	})
	sub("iteration.started", func(e event.Event) {
		if ev, ok := e.(event.IterationStartedEvent); ok {
			p.linef("%s[iteration %d/%d]%s", colorGray, ev.Iteration, ev.MaxIterations, colorReset)
		}
	})
	sub("stream.delta", func(e event.Event) {
		if ev, ok := e.(event.StreamDeltaEvent); ok {
			fmt.Print(ev.Text)
			p.streaming = true
		}
	})
	sub("tool.called", func(e event.Event) {
		ev, ok := e.(event.ToolCalledEvent)
		if !ok {
			return
		}
		if ev.Success {
			p.linef("%s⚙ %s (%s)%s", colorCyan, ev.Tool, ev.Duration, colorReset)
		} else {
			p.linef("%s⚙ %s failed (%s)%s", colorRed, ev.Tool, ev.Duration, colorReset)
		}
	})
	sub("issue.decomposed", func(e event.Event) {
		if ev, ok := e.(event.ChildIssuesCreatedEvent); ok {
			p.linef("%ssplit into %d child issues%s", colorCyan, len(ev.ChildIDs), colorReset)
		}
	})
	sub("artifact.generated", func(e event.Event) {
		if ev, ok := e.(event.ArtifactGeneratedEvent); ok {
			p.linef("%sartifact: %s%s", colorGray, ev.Name, colorReset)
		}
	})
	sub("retry.scheduled", func(e event.Event) {
		if ev, ok := e.(event.RetryScheduledEvent); ok {
			p.linef("%sretrying in %s (attempt %d/%d): %s%s", colorYellow, ev.Delay, ev.Attempt, ev.MaxAttempts, ev.Reason, colorReset)
		}
	})

	return p
}

// linef prints one progress line, closing any open stream output first.
func (p *progressPrinter) linef(format string, args ...any) {
	p.breakLine()
	fmt.Printf(format+"\n", args...)
}

// breakLine terminates a partially streamed line so the next write
// starts at column zero.
func (p *progressPrinter) breakLine() {
	if p.streaming {
		fmt.Println()
		p.streaming = false
	}
}

// Close detaches the printer from the bus.
func (p *progressPrinter) Close() {
	for _, id := range p.ids {
		p.bus.Unsubscribe(id)
	}
	p.breakLine()
}

// printResult renders the final outcome of an execution.
func printResult(res *orchestrator.ExecutionResult) {
	switch {
	case res.Clarification != nil:
		fmt.Printf("\n%s? %s%s\n", colorYellow, res.Clarification.Question, colorReset)
		for i, opt := range res.Clarification.Options {
			fmt.Printf("  %d. %s\n", i+1, opt)
		}
		fmt.Printf("\nAnswer with: osagent clarify %s \"<answer>\"\n", res.IssueID)
	case len(res.ChildIssueIDs) > 0:
		fmt.Printf("\n%s✓%s Decomposed into %d child issues:\n", colorGreen, colorReset, len(res.ChildIssueIDs))
		for _, id := range res.ChildIssueIDs {
			fmt.Printf("  %s\n", id)
		}
		fmt.Println("\nExecute them with: osagent next")
	case res.Success:
		fmt.Printf("\n%s✓%s %s\n", colorGreen, colorReset, res.Summary)
		if res.FollowUpIssueID != "" {
			fmt.Printf("%sfollow-up issue created: %s%s\n", colorGray, res.FollowUpIssueID, colorReset)
		}
		fmt.Printf("%s(%d iterations, %d tool calls)%s\n", colorGray, res.Iterations, res.ToolCalls, colorReset)
	default:
		fmt.Printf("\n%s✗ Goal not achieved:%s %s\n", colorRed, colorReset, res.Summary)
		fmt.Printf("The issue was reopened; retry with: osagent resume %s\n", res.IssueID)
	}
}

// resultOutput is the JSON shape emitted by --json. It mirrors the MCP
// agent_run result so both surfaces speak the same contract.
type resultOutput struct {
	IssueID         string   `json:"issue_id"`
	Status          string   `json:"status"`
	Summary         string   `json:"summary,omitempty"`
	Question        string   `json:"question,omitempty"`
	Options         []string `json:"options,omitempty"`
	ChildIssueIDs   []string `json:"child_issue_ids,omitempty"`
	FollowUpIssueID string   `json:"follow_up_issue_id,omitempty"`
	Iterations      int      `json:"iterations"`
	ToolCalls       int      `json:"tool_calls"`
}

// toResultOutput classifies an execution result the way the MCP surface
// does: needs_clarification, decomposed, completed, or not_achieved.
func toResultOutput(res *orchestrator.ExecutionResult) resultOutput {
	out := resultOutput{
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

// printJSON writes the result as indented JSON on stdout.
func printJSON(res *orchestrator.ExecutionResult) error {
	data, err := json.MarshalIndent(toResultOutput(res), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
