// Package issue defines the work-item model for osagent and its storage.
//
// A Task groups related work; each Issue is one unit of work the
// orchestrator executes. AuditEvents form the persisted trail of what
// happened during execution, and Artifacts hold produced outputs. The
// Store interface abstracts persistence; MemStore keeps everything in
// memory, FileStore adds JSON snapshots plus an append-only event log
// under a state directory.
package issue

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an issue.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusClosed     Status = "closed"
)

// Type distinguishes ordinary work items from discovery items surfaced
// during execution.
type Type string

const (
	TypeTask      Type = "task"
	TypeDiscovery Type = "discovery"
)

// Audit event kinds written by the orchestrator.
const (
	KindPlanCreated   = "plan_created"
	KindClarification = "clarification_requested"
	KindToolCall      = "tool_call"
	KindCompletion    = "completion"
	KindVerification  = "verification"
	KindDecomposition = "decomposition"
)

// Task groups sibling issues under one unit of intent, typically a single
// user query.
type Task struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// NewTask creates a task with a fresh UUID.
func NewTask(title string) *Task {
	return &Task{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: time.Now(),
	}
}

// Issue is one unit of work. The orchestrator drives an issue from open
// through in_progress to closed, possibly spawning children along the way.
type Issue struct {
	ID          string `json:"id"`
	TaskID      string `json:"task_id"`
	Title       string `json:"title"`
	Description string `json:"description"`

	// Context carries free-text background for the model: prior results,
	// clarification Q/A blocks, parent-issue notes. It only grows.
	Context string `json:"context,omitempty"`

	// Priority orders ready issues, higher first.
	Priority int `json:"priority"`

	Type   Type   `json:"type"`
	Status Status `json:"status"`

	// Result summarizes the outcome once execution finishes.
	Result string `json:"result,omitempty"`

	// ParentID links a decomposition child back to the issue it was
	// split from.
	ParentID string `json:"parent_id,omitempty"`

	// SelectedTools and SelectedSkills record the capability subset
	// chosen during planning. nil means capabilities were never selected;
	// an empty, non-nil slice means "selected none".
	SelectedTools  []string `json:"selected_tools,omitempty"`
	SelectedSkills []string `json:"selected_skills,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewIssue creates an open task-type issue with a fresh UUID.
func NewIssue(taskID, title, description string) *Issue {
	now := time.Now()
	return &Issue{
		ID:          uuid.NewString(),
		TaskID:      taskID,
		Title:       title,
		Description: description,
		Type:        TypeTask,
		Status:      StatusOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// AppendClarification adds a question/answer block to the issue context.
func (i *Issue) AppendClarification(question, answer string) {
	block := "Q: " + question + "\nA: " + answer
	if i.Context == "" {
		i.Context = block
		return
	}
	i.Context += "\n\n" + block
}

// Clone returns a deep copy of the issue.
func (i *Issue) Clone() *Issue {
	c := *i
	if i.SelectedTools != nil {
		c.SelectedTools = append([]string(nil), i.SelectedTools...)
	}
	if i.SelectedSkills != nil {
		c.SelectedSkills = append([]string(nil), i.SelectedSkills...)
	}
	return &c
}

// AuditEvent is one persisted record in an issue's execution trail. It is
// distinct from the in-process event bus: audit events survive restarts
// and back the `osagent events` command.
type AuditEvent struct {
	ID        string          `json:"id"`
	TaskID    string          `json:"task_id"`
	IssueID   string          `json:"issue_id"`
	Kind      string          `json:"kind"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewAuditEvent creates an audit event, marshaling payload to JSON. A
// payload that cannot be marshaled is recorded as a marshal_error object
// rather than losing the event.
func NewAuditEvent(taskID, issueID, kind string, payload any) *AuditEvent {
	var data json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			b, _ = json.Marshal(map[string]string{"marshal_error": err.Error()})
		}
		data = b
	}
	return &AuditEvent{
		ID:        uuid.NewString(),
		TaskID:    taskID,
		IssueID:   issueID,
		Kind:      kind,
		Payload:   data,
		CreatedAt: time.Now(),
	}
}

// Clone returns a deep copy of the audit event.
func (e *AuditEvent) Clone() *AuditEvent {
	c := *e
	if e.Payload != nil {
		c.Payload = append(json.RawMessage(nil), e.Payload...)
	}
	return &c
}

// Artifact is an output produced during execution, typically through the
// completion signal. Final marks the task's end deliverable.
type Artifact struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"task_id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Content   string    `json:"content"`
	Final     bool      `json:"final"`
	CreatedAt time.Time `json:"created_at"`
}

// NewArtifact creates an artifact with a fresh UUID.
func NewArtifact(taskID, name, artifactType, content string, final bool) *Artifact {
	return &Artifact{
		ID:        uuid.NewString(),
		TaskID:    taskID,
		Name:      name,
		Type:      artifactType,
		Content:   content,
		Final:     final,
		CreatedAt: time.Now(),
	}
}
