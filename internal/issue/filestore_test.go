package issue

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/dinoki-ai/osagent/internal/errors"
)

func TestNewFileStore_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "state")

	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	if store.Dir() != dir {
		t.Errorf("Dir() = %q, want %q", store.Dir(), dir)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("state directory not created: %v", err)
	}
}

func TestFileStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	task := NewTask("Ship the release")
	if err := store.CreateTask(ctx, task); err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}

	iss := NewIssue(task.ID, "Cut the tag", "Tag v1.2.0 and push")
	iss.Priority = 3
	iss.SelectedTools = []string{"read_file", "write_file"}
	if err := store.CreateIssue(ctx, iss); err != nil {
		t.Fatalf("CreateIssue() error = %v", err)
	}

	ev := NewAuditEvent(task.ID, iss.ID, KindPlanCreated, map[string]int{"steps": 4})
	if err := store.AppendEvent(ctx, ev); err != nil {
		t.Fatalf("AppendEvent() error = %v", err)
	}

	art := NewArtifact(task.ID, "notes.md", "markdown", "# Notes", true)
	if err := store.CreateArtifact(ctx, art); err != nil {
		t.Fatalf("CreateArtifact() error = %v", err)
	}

	// Reopen the same directory and verify everything survived.
	reopened, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore() reopen error = %v", err)
	}

	gotTask, err := reopened.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTask() after reopen error = %v", err)
	}
	if gotTask.Title != task.Title {
		t.Errorf("Title = %q, want %q", gotTask.Title, task.Title)
	}

	gotIssue, err := reopened.GetIssue(ctx, iss.ID)
	if err != nil {
		t.Fatalf("GetIssue() after reopen error = %v", err)
	}
	if gotIssue.Priority != 3 {
		t.Errorf("Priority = %d, want 3", gotIssue.Priority)
	}
	if len(gotIssue.SelectedTools) != 2 || gotIssue.SelectedTools[0] != "read_file" {
		t.Errorf("SelectedTools = %v", gotIssue.SelectedTools)
	}

	events, err := reopened.ListEvents(ctx, iss.ID)
	if err != nil {
		t.Fatalf("ListEvents() after reopen error = %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Kind != KindPlanCreated {
		t.Errorf("Kind = %q, want %q", events[0].Kind, KindPlanCreated)
	}
	if string(events[0].Payload) != `{"steps":4}` {
		t.Errorf("Payload = %s", events[0].Payload)
	}

	artifacts, err := reopened.ListArtifacts(ctx, task.ID)
	if err != nil {
		t.Fatalf("ListArtifacts() after reopen error = %v", err)
	}
	if len(artifacts) != 1 || artifacts[0].Name != "notes.md" {
		t.Errorf("artifacts = %+v", artifacts)
	}
}

func TestFileStore_UpdatePersisted(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	iss := NewIssue("task-1", "title", "desc")
	if err := store.CreateIssue(ctx, iss); err != nil {
		t.Fatalf("CreateIssue() error = %v", err)
	}

	iss.Status = StatusClosed
	iss.Result = "released"
	if err := store.UpdateIssue(ctx, iss); err != nil {
		t.Fatalf("UpdateIssue() error = %v", err)
	}

	reopened, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore() reopen error = %v", err)
	}
	got, err := reopened.GetIssue(ctx, iss.ID)
	if err != nil {
		t.Fatalf("GetIssue() after reopen error = %v", err)
	}
	if got.Status != StatusClosed || got.Result != "released" {
		t.Errorf("issue = status %q result %q, want closed/released", got.Status, got.Result)
	}
}

func TestFileStore_EventsFileFormat(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	for i := range 3 {
		ev := NewAuditEvent("task-1", "issue-1", KindToolCall, map[string]int{"n": i})
		if err := store.AppendEvent(ctx, ev); err != nil {
			t.Fatalf("AppendEvent() error = %v", err)
		}
	}

	file, err := os.Open(filepath.Join(dir, eventsFileName))
	if err != nil {
		t.Fatalf("open events file: %v", err)
	}
	defer file.Close()

	lines := 0
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var ev AuditEvent
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			t.Errorf("line %d is not valid JSON: %v", lines+1, err)
		}
		if ev.Kind != KindToolCall {
			t.Errorf("line %d Kind = %q, want %q", lines+1, ev.Kind, KindToolCall)
		}
		lines++
	}
	if lines != 3 {
		t.Errorf("events file has %d lines, want 3", lines)
	}
}

func TestFileStore_SkipsCorruptEventLines(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	for i := range 2 {
		ev := NewAuditEvent("task-1", "issue-1", KindToolCall, map[string]int{"n": i})
		if err := store.AppendEvent(ctx, ev); err != nil {
			t.Fatalf("AppendEvent() error = %v", err)
		}
	}

	// Simulate a torn write: a truncated JSON object on the last line.
	path := filepath.Join(dir, eventsFileName)
	file, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("open events file: %v", err)
	}
	if _, err := file.WriteString(`{"id":"ev-torn","task_id":"tas` + "\n"); err != nil {
		t.Fatalf("append corrupt line: %v", err)
	}
	file.Close()

	reopened, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore() should tolerate corrupt event lines, got %v", err)
	}
	events, err := reopened.ListEvents(ctx, "")
	if err != nil {
		t.Fatalf("ListEvents() error = %v", err)
	}
	if len(events) != 2 {
		t.Errorf("got %d events, want 2 (corrupt line skipped)", len(events))
	}
}

func TestFileStore_CorruptStateFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, stateFileName)
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("write corrupt state: %v", err)
	}

	if _, err := NewFileStore(dir); err == nil {
		t.Error("NewFileStore() should fail on a corrupt state file")
	}
}

func TestFileStore_MissLookups(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	if _, err := store.GetTask(ctx, "missing"); !errors.Is(err, errors.ErrTaskNotFound) {
		t.Errorf("GetTask(missing) error = %v, want ErrTaskNotFound", err)
	}
	if _, err := store.GetIssue(ctx, "missing"); !errors.Is(err, errors.ErrIssueNotFound) {
		t.Errorf("GetIssue(missing) error = %v, want ErrIssueNotFound", err)
	}
}
