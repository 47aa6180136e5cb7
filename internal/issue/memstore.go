package issue

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dinoki-ai/osagent/internal/errors"
)

// MemStore is an in-memory Store implementation. All reads return deep
// copies, so callers can mutate results freely and re-submit them through
// UpdateIssue.
type MemStore struct {
	mu        sync.RWMutex
	tasks     map[string]*Task
	issues    map[string]*Issue
	events    []*AuditEvent
	artifacts []*Artifact
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		tasks:  make(map[string]*Task),
		issues: make(map[string]*Issue),
	}
}

// CreateTask persists a new task.
func (m *MemStore) CreateTask(ctx context.Context, t *Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tasks[t.ID]; ok {
		return fmt.Errorf("task %s already exists", t.ID)
	}
	cp := *t
	m.tasks[t.ID] = &cp
	return nil
}

// GetTask returns the task with the given ID.
func (m *MemStore) GetTask(ctx context.Context, id string) (*Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, errors.ErrTaskNotFound)
	}
	cp := *t
	return &cp, nil
}

// CreateIssue persists a new issue.
func (m *MemStore) CreateIssue(ctx context.Context, iss *Issue) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.issues[iss.ID]; ok {
		return fmt.Errorf("issue %s already exists", iss.ID)
	}
	m.issues[iss.ID] = iss.Clone()
	return nil
}

// GetIssue returns the issue with the given ID.
func (m *MemStore) GetIssue(ctx context.Context, id string) (*Issue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	iss, ok := m.issues[id]
	if !ok {
		return nil, fmt.Errorf("issue %s: %w", id, errors.ErrIssueNotFound)
	}
	return iss.Clone(), nil
}

// UpdateIssue replaces a stored issue and bumps its UpdatedAt.
func (m *MemStore) UpdateIssue(ctx context.Context, iss *Issue) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.issues[iss.ID]; !ok {
		return fmt.Errorf("issue %s: %w", iss.ID, errors.ErrIssueNotFound)
	}
	cp := iss.Clone()
	cp.UpdatedAt = time.Now()
	m.issues[iss.ID] = cp

	// Reflect the bump on the caller's copy as well.
	iss.UpdatedAt = cp.UpdatedAt
	return nil
}

// ReadyIssues returns open issues ordered by priority descending, then
// CreatedAt ascending. An empty taskID spans all tasks.
func (m *MemStore) ReadyIssues(ctx context.Context, taskID string) ([]*Issue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ready []*Issue
	for _, iss := range m.issues {
		if iss.Status != StatusOpen {
			continue
		}
		if taskID != "" && iss.TaskID != taskID {
			continue
		}
		ready = append(ready, iss.Clone())
	}

	sort.Slice(ready, func(i, j int) bool {
		if ready[i].Priority != ready[j].Priority {
			return ready[i].Priority > ready[j].Priority
		}
		return ready[i].CreatedAt.Before(ready[j].CreatedAt)
	})

	return ready, nil
}

// ListIssues returns issues of every status ordered by CreatedAt
// ascending. An empty taskID spans all tasks.
func (m *MemStore) ListIssues(ctx context.Context, taskID string) ([]*Issue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Issue
	for _, iss := range m.issues {
		if taskID != "" && iss.TaskID != taskID {
			continue
		}
		out = append(out, iss.Clone())
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})

	return out, nil
}

// AppendEvent appends an audit event to the trail.
func (m *MemStore) AppendEvent(ctx context.Context, ev *AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events = append(m.events, ev.Clone())
	return nil
}

// ListEvents returns audit events for an issue in append order. An empty
// issueID returns the full trail.
func (m *MemStore) ListEvents(ctx context.Context, issueID string) ([]*AuditEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*AuditEvent
	for _, ev := range m.events {
		if issueID != "" && ev.IssueID != issueID {
			continue
		}
		out = append(out, ev.Clone())
	}
	return out, nil
}

// CreateArtifact persists an artifact.
func (m *MemStore) CreateArtifact(ctx context.Context, a *Artifact) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *a
	m.artifacts = append(m.artifacts, &cp)
	return nil
}

// ListArtifacts returns artifacts for a task in creation order. An empty
// taskID returns all artifacts.
func (m *MemStore) ListArtifacts(ctx context.Context, taskID string) ([]*Artifact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Artifact
	for _, a := range m.artifacts {
		if taskID != "" && a.TaskID != taskID {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

// snapshot captures all tasks, issues, and artifacts for persistence.
// Slices are ordered by creation time then ID so snapshots are stable.
func (m *MemStore) snapshot() *stateSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := &stateSnapshot{}
	for _, t := range m.tasks {
		cp := *t
		snap.Tasks = append(snap.Tasks, &cp)
	}
	for _, iss := range m.issues {
		snap.Issues = append(snap.Issues, iss.Clone())
	}
	for _, a := range m.artifacts {
		cp := *a
		snap.Artifacts = append(snap.Artifacts, &cp)
	}

	sort.Slice(snap.Tasks, func(i, j int) bool {
		if !snap.Tasks[i].CreatedAt.Equal(snap.Tasks[j].CreatedAt) {
			return snap.Tasks[i].CreatedAt.Before(snap.Tasks[j].CreatedAt)
		}
		return snap.Tasks[i].ID < snap.Tasks[j].ID
	})
	sort.Slice(snap.Issues, func(i, j int) bool {
		if !snap.Issues[i].CreatedAt.Equal(snap.Issues[j].CreatedAt) {
			return snap.Issues[i].CreatedAt.Before(snap.Issues[j].CreatedAt)
		}
		return snap.Issues[i].ID < snap.Issues[j].ID
	})

	return snap
}

// restore replaces the store contents with a snapshot. Used when a file
// store loads state from disk.
func (m *MemStore) restore(snap *stateSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tasks = make(map[string]*Task, len(snap.Tasks))
	for _, t := range snap.Tasks {
		cp := *t
		m.tasks[t.ID] = &cp
	}
	m.issues = make(map[string]*Issue, len(snap.Issues))
	for _, iss := range snap.Issues {
		m.issues[iss.ID] = iss.Clone()
	}
	m.artifacts = nil
	for _, a := range snap.Artifacts {
		cp := *a
		m.artifacts = append(m.artifacts, &cp)
	}
	m.events = nil
}
