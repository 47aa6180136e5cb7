package decompose

import (
	"context"
	"strings"
	"testing"

	"github.com/dinoki-ai/osagent/internal/errors"
	"github.com/dinoki-ai/osagent/internal/event"
	"github.com/dinoki-ai/osagent/internal/issue"
	"github.com/dinoki-ai/osagent/internal/orchestrator/plan"
)

func decomposeParent(t *testing.T, store issue.Store) *issue.Issue {
	t.Helper()
	parent := issue.NewIssue("tsk-1", "Build the report pipeline", "Fetch, transform, and publish the quarterly report.")
	parent.Priority = 5
	if err := store.CreateIssue(context.Background(), parent); err != nil {
		t.Fatalf("CreateIssue(parent) error = %v", err)
	}
	return parent
}

func TestDecomposer_Decompose(t *testing.T) {
	store := issue.NewMemStore()
	bus := event.NewBus()
	var created event.ChildIssuesCreatedEvent
	bus.Subscribe("issue.decomposed", func(ev event.Event) {
		created = ev.(event.ChildIssuesCreatedEvent)
	})

	parent := decomposeParent(t, store)
	caps := plan.Capabilities{Tools: []string{"write_file"}, Skills: []string{"research"}}
	chunks := [][]plan.Step{
		{
			{Number: 1, Description: "Fetch the raw numbers", Tool: "read_file"},
			{Number: 2, Description: "Normalize the dataset"},
		},
		{
			{Number: 3, Description: "Publish the final report", Tool: "write_file"},
		},
	}

	d := NewDecomposer(store, bus, nil)
	children, err := d.Decompose(context.Background(), parent, chunks, caps)
	if err != nil {
		t.Fatalf("Decompose() error = %v", err)
	}
	if len(children) != 2 {
		t.Fatalf("got %d children, want 2", len(children))
	}

	first := children[0]
	if first.Title != "Fetch the raw numbers" {
		t.Errorf("child title = %q, want first step description", first.Title)
	}
	wantBody := "1. Fetch the raw numbers (tool: read_file)\n2. Normalize the dataset"
	if first.Description != wantBody {
		t.Errorf("child body = %q, want %q", first.Description, wantBody)
	}
	if first.ParentID != parent.ID || first.TaskID != parent.TaskID {
		t.Errorf("child linkage = parent %q task %q, want %q/%q", first.ParentID, first.TaskID, parent.ID, parent.TaskID)
	}
	if first.Priority != 5 {
		t.Errorf("child priority = %d, want inherited 5", first.Priority)
	}
	if first.Status != issue.StatusOpen {
		t.Errorf("child status = %q, want open", first.Status)
	}
	if !strings.Contains(first.Context, "Part 1 of 2") {
		t.Errorf("child context = %q, want part marker", first.Context)
	}

	for i, c := range children {
		if len(c.SelectedTools) != 1 || c.SelectedTools[0] != "write_file" {
			t.Errorf("child %d SelectedTools = %v, want verbatim copy", i, c.SelectedTools)
		}
		if len(c.SelectedSkills) != 1 || c.SelectedSkills[0] != "research" {
			t.Errorf("child %d SelectedSkills = %v, want verbatim copy", i, c.SelectedSkills)
		}
	}
	children[0].SelectedTools[0] = "mutated"
	if children[1].SelectedTools[0] != "write_file" || caps.Tools[0] != "write_file" {
		t.Error("capability slices are shared between children")
	}

	// Children are persisted, the parent is closed with the exact summary.
	for _, c := range children {
		if _, err := store.GetIssue(context.Background(), c.ID); err != nil {
			t.Errorf("child %s not persisted: %v", c.ID, err)
		}
	}
	stored, err := store.GetIssue(context.Background(), parent.ID)
	if err != nil {
		t.Fatalf("GetIssue(parent) error = %v", err)
	}
	if stored.Status != issue.StatusClosed {
		t.Errorf("parent status = %q, want closed", stored.Status)
	}
	if stored.Result != "Decomposed into 2 child issues" {
		t.Errorf("parent result = %q, want %q", stored.Result, "Decomposed into 2 child issues")
	}

	evs, _ := store.ListEvents(context.Background(), parent.ID)
	if len(evs) != 1 || evs[0].Kind != issue.KindDecomposition {
		t.Errorf("audit trail = %d events, want one %s record", len(evs), issue.KindDecomposition)
	}
	if created.ParentID != parent.ID || len(created.ChildIDs) != 2 {
		t.Errorf("bus event = parent %q with %d children, want %q with 2", created.ParentID, len(created.ChildIDs), parent.ID)
	}
}

func TestDecomposer_TitleTruncation(t *testing.T) {
	store := issue.NewMemStore()
	parent := decomposeParent(t, store)
	long := strings.Repeat("describe the step in great detail ", 5)
	chunks := [][]plan.Step{{{Number: 1, Description: long}}}

	d := NewDecomposer(store, nil, nil)
	children, err := d.Decompose(context.Background(), parent, chunks, plan.Capabilities{})
	if err != nil {
		t.Fatalf("Decompose() error = %v", err)
	}
	title := children[0].Title
	if n := len([]rune(title)); n != 80 {
		t.Errorf("title length = %d runes, want 80", n)
	}
	if !strings.HasSuffix(title, "...") {
		t.Errorf("title = %q, want ... suffix", title)
	}
}

func TestDecomposer_NilCapabilitiesStayNil(t *testing.T) {
	store := issue.NewMemStore()
	parent := decomposeParent(t, store)
	chunks := [][]plan.Step{{{Number: 1, Description: "Do the only step"}}}

	d := NewDecomposer(store, nil, nil)
	children, err := d.Decompose(context.Background(), parent, chunks, plan.Capabilities{})
	if err != nil {
		t.Fatalf("Decompose() error = %v", err)
	}
	if children[0].SelectedTools != nil || children[0].SelectedSkills != nil {
		t.Errorf("capabilities = %v/%v, want nil (never selected)", children[0].SelectedTools, children[0].SelectedSkills)
	}
}

// failingStore rejects child creation to exercise the abort path.
type failingStore struct {
	issue.Store
}

func (s *failingStore) CreateIssue(context.Context, *issue.Issue) error {
	return errors.New("disk full")
}

func TestDecomposer_StoreFailureAborts(t *testing.T) {
	inner := issue.NewMemStore()
	parent := decomposeParent(t, inner)
	chunks := [][]plan.Step{{{Number: 1, Description: "Only step"}}}

	d := NewDecomposer(&failingStore{Store: inner}, nil, nil)
	_, err := d.Decompose(context.Background(), parent, chunks, plan.Capabilities{})
	if err == nil {
		t.Fatal("Decompose() error = nil, want store failure")
	}
	if !strings.Contains(err.Error(), "disk full") {
		t.Errorf("error = %v, want wrapped store failure", err)
	}

	// The parent must stay open when no child could be created.
	stored, _ := inner.GetIssue(context.Background(), parent.ID)
	if stored.Status != issue.StatusOpen {
		t.Errorf("parent status = %q, want still open", stored.Status)
	}
}

func TestDecomposer_NoChunks(t *testing.T) {
	d := NewDecomposer(issue.NewMemStore(), nil, nil)
	if _, err := d.Decompose(context.Background(), issue.NewIssue("tsk-1", "t", "d"), nil, plan.Capabilities{}); err == nil {
		t.Error("Decompose(nil chunks) error = nil, want rejection")
	}
}
