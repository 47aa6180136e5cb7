// Package plan turns an issue into an executable step plan. It asks the
// model for a structured breakdown and parses whatever comes back, from
// clean JSON down to loosely numbered prose.
package plan

import (
	"fmt"

	"github.com/dinoki-ai/osagent/internal/errors"
)

// Step is one unit of work inside a plan.
type Step struct {
	Number      int    `json:"number"`
	Description string `json:"description"`

	// Tool names the tool the planner expects this step to use. Advisory;
	// the executor lets the model pick at execution time.
	Tool string `json:"tool,omitempty"`

	Completed bool `json:"completed,omitempty"`
}

// Capabilities is the tool and skill subset selected for an issue. Empty
// and nil sets mean the same thing: nothing selected.
type Capabilities struct {
	Tools  []string `json:"tools"`
	Skills []string `json:"skills"`
}

// Clone returns a copy that shares no slices with the receiver.
func (c Capabilities) Clone() Capabilities {
	return Capabilities{
		Tools:  append([]string(nil), c.Tools...),
		Skills: append([]string(nil), c.Skills...),
	}
}

// ClarificationRequest is the model declining to plan until the user
// answers a question.
type ClarificationRequest struct {
	Question string   `json:"question"`
	Options  []string `json:"options,omitempty"`
	Context  string   `json:"context,omitempty"`
}

// Plan is an ordered list of steps plus the tool-call budget the executor
// charges against. ToolCalls never exceeds MaxToolCalls.
type Plan struct {
	IssueID      string       `json:"issue_id"`
	Steps        []*Step      `json:"steps"`
	MaxToolCalls int          `json:"max_tool_calls"`
	ToolCalls    int          `json:"tool_calls"`
	Capabilities Capabilities `json:"capabilities"`
}

// RecordToolCall charges one tool invocation against the budget. Once the
// budget is spent it returns errors.ErrToolCallLimit and the counter stays
// at the cap.
func (p *Plan) RecordToolCall() error {
	if p.ToolCalls >= p.MaxToolCalls {
		return errors.ErrToolCallLimit
	}
	p.ToolCalls++
	return nil
}

// NextStep returns the first incomplete step, or nil when every step is
// done.
func (p *Plan) NextStep() *Step {
	for _, s := range p.Steps {
		if !s.Completed {
			return s
		}
	}
	return nil
}

// OutcomeKind discriminates what Build produced.
type OutcomeKind int

const (
	// OutcomeReady means a plan fits the budget and can be executed.
	OutcomeReady OutcomeKind = iota
	// OutcomeDecompose means the step list exceeds the budget and must be
	// split into child issues.
	OutcomeDecompose
	// OutcomeClarify means the model asked a question instead of planning.
	OutcomeClarify
)

// String returns the outcome kind name.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeReady:
		return "ready"
	case OutcomeDecompose:
		return "decompose"
	case OutcomeClarify:
		return "clarify"
	default:
		return fmt.Sprintf("outcome(%d)", int(k))
	}
}

// Outcome is the tagged result of Build. Exactly one of Plan, Steps/Chunks,
// or Clarification is populated, according to Kind.
type Outcome struct {
	Kind OutcomeKind

	// Plan is set for OutcomeReady.
	Plan *Plan

	// Steps holds the full oversized step list and Chunks the same steps
	// grouped under the budget. Both are set for OutcomeDecompose.
	Steps  []Step
	Chunks [][]Step

	// Clarification is set for OutcomeClarify.
	Clarification *ClarificationRequest
}
