// Package decompose turns an oversized plan into child issues small
// enough to execute within the per-issue tool budget.
package decompose

import (
	"context"
	"fmt"
	"strings"

	"github.com/dinoki-ai/osagent/internal/errors"
	"github.com/dinoki-ai/osagent/internal/event"
	"github.com/dinoki-ai/osagent/internal/issue"
	"github.com/dinoki-ai/osagent/internal/logging"
	"github.com/dinoki-ai/osagent/internal/orchestrator/plan"
	"github.com/dinoki-ai/osagent/internal/util"
)

// childTitleLimit caps child titles taken from step descriptions.
const childTitleLimit = 80

// Decomposer creates child issues from plan chunks and closes the parent.
type Decomposer struct {
	store issue.Store
	bus   *event.Bus
	log   *logging.Logger
}

// NewDecomposer creates a Decomposer. The bus may be nil; a nil logger
// disables logging.
func NewDecomposer(store issue.Store, bus *event.Bus, log *logging.Logger) *Decomposer {
	if store == nil {
		panic("decompose.NewDecomposer: store must not be nil")
	}
	if log == nil {
		log = logging.NopLogger()
	}
	return &Decomposer{
		store: store,
		bus:   bus,
		log:   log.WithComponent("decompose"),
	}
}

// Decompose persists one child issue per chunk, then closes the parent.
// Capabilities selected for the parent are copied verbatim onto every
// child so children never re-select. A child creation failure aborts
// with a wrapped store error; once all children exist the parent close
// and bookkeeping cannot fail the decomposition.
func (d *Decomposer) Decompose(ctx context.Context, parent *issue.Issue, chunks [][]plan.Step, caps plan.Capabilities) ([]*issue.Issue, error) {
	if len(chunks) == 0 {
		return nil, errors.New("decomposition produced no chunks")
	}

	children := make([]*issue.Issue, 0, len(chunks))
	for i, chunk := range chunks {
		if len(chunk) == 0 {
			continue
		}
		child := d.childIssue(parent, chunk, caps)
		child.Context = fmt.Sprintf("Part %d of %d of: %s", i+1, len(chunks), parent.Title)
		if err := d.store.CreateIssue(ctx, child); err != nil {
			return nil, fmt.Errorf("failed to create child issue for chunk %d: %w", i+1, err)
		}
		children = append(children, child)
	}
	if len(children) == 0 {
		return nil, errors.New("decomposition produced no chunks")
	}

	childIDs := make([]string, len(children))
	for i, c := range children {
		childIDs[i] = c.ID
	}

	parent.Status = issue.StatusClosed
	parent.Result = fmt.Sprintf("Decomposed into %d child issues", len(children))
	if err := d.store.UpdateIssue(ctx, parent); err != nil {
		d.log.Warn("failed to close decomposed parent", "issue", parent.ID, "error", err)
	}

	ev := issue.NewAuditEvent(parent.TaskID, parent.ID, issue.KindDecomposition, map[string]any{
		"child_ids": childIDs,
		"chunks":    len(children),
	})
	if err := d.store.AppendEvent(ctx, ev); err != nil {
		d.log.Warn("audit event write failed", "issue", parent.ID, "error", err)
	}
	if d.bus != nil {
		d.bus.Publish(event.NewChildIssuesCreatedEvent(parent.ID, childIDs))
	}

	d.log.Info("issue decomposed",
		"issue", parent.ID,
		"children", len(children))
	return children, nil
}

func (d *Decomposer) childIssue(parent *issue.Issue, steps []plan.Step, caps plan.Capabilities) *issue.Issue {
	child := issue.NewIssue(parent.TaskID, childTitle(steps), childBody(steps))
	child.ParentID = parent.ID
	child.Priority = parent.Priority
	child.Type = parent.Type

	// Each child gets its own copy so later mutation of one cannot
	// bleed into its siblings.
	cc := caps.Clone()
	child.SelectedTools = cc.Tools
	child.SelectedSkills = cc.Skills
	return child
}

func childTitle(steps []plan.Step) string {
	return util.TruncateString(strings.TrimSpace(steps[0].Description), childTitleLimit)
}

func childBody(steps []plan.Step) string {
	var sb strings.Builder
	for i, s := range steps {
		fmt.Fprintf(&sb, "%d. %s", i+1, s.Description)
		if s.Tool != "" {
			fmt.Fprintf(&sb, " (tool: %s)", s.Tool)
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
