// Package orchestrator is the top-level state machine that drives an
// issue through plan, act, and verify. A Coordinator executes at most
// one issue at a time: it builds a plan, branches into decomposition or
// a clarification suspension when planning demands it, otherwise runs
// the reasoning loop and finalizes the issue from the verifier's
// verdict. Lifecycle events go to the bus; the audit trail goes to the
// store.
package orchestrator

import (
	"fmt"

	"github.com/dinoki-ai/osagent/internal/orchestrator/plan"
	"github.com/dinoki-ai/osagent/internal/orchestrator/verify"
)

// State is the coordinator's execution state.
type State int

const (
	// StateIdle means no issue is executing or suspended.
	StateIdle State = iota
	// StateExecuting means an issue is in flight.
	StateExecuting
	// StateAwaitingClarification means a run is suspended on a question
	// and waits for ProvideClarification.
	StateAwaitingClarification
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateExecuting:
		return "executing"
	case StateAwaitingClarification:
		return "awaiting_clarification"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ExecutionResult is what one coordinator entry point returns. A non-nil
// Clarification means the run is suspended waiting for the user, which
// is a successful-but-incomplete outcome, not an error.
type ExecutionResult struct {
	IssueID string

	// Success reports whether the issue reached a completed state:
	// verified as achieved (fully or partially) or decomposed.
	Success bool

	// Summary is the verifier's summary of what was accomplished.
	Summary string

	// Clarification is set when the run suspended on a question.
	Clarification *plan.ClarificationRequest

	// ChildIssueIDs is set when the issue was decomposed.
	ChildIssueIDs []string

	// FollowUpIssueID is set when a partial completion spawned a
	// follow-up issue for the remaining work.
	FollowUpIssueID string

	Iterations int
	ToolCalls  int

	// Verification carries the verifier's verdict when execution ran to
	// the verification stage.
	Verification *verify.Result
}
