package issue

import "context"

// Store is the persistence boundary for tasks, issues, audit events, and
// artifacts. Implementations must be safe for concurrent use and must
// return copies from read methods so callers cannot mutate stored state.
//
// Lookup misses wrap the errors package sentinels (ErrTaskNotFound,
// ErrIssueNotFound) so callers can test with errors.Is.
type Store interface {
	// CreateTask persists a new task. The task ID must not already exist.
	CreateTask(ctx context.Context, t *Task) error

	// GetTask returns the task with the given ID.
	GetTask(ctx context.Context, id string) (*Task, error)

	// CreateIssue persists a new issue. The issue ID must not already exist.
	CreateIssue(ctx context.Context, iss *Issue) error

	// GetIssue returns the issue with the given ID.
	GetIssue(ctx context.Context, id string) (*Issue, error)

	// UpdateIssue replaces a stored issue and bumps its UpdatedAt.
	UpdateIssue(ctx context.Context, iss *Issue) error

	// ReadyIssues returns open issues ordered by priority descending,
	// then CreatedAt ascending. An empty taskID spans all tasks.
	ReadyIssues(ctx context.Context, taskID string) ([]*Issue, error)

	// ListIssues returns issues of every status ordered by CreatedAt
	// ascending. An empty taskID spans all tasks.
	ListIssues(ctx context.Context, taskID string) ([]*Issue, error)

	// AppendEvent appends an audit event to the trail.
	AppendEvent(ctx context.Context, ev *AuditEvent) error

	// ListEvents returns audit events for an issue in append order.
	// An empty issueID returns the full trail.
	ListEvents(ctx context.Context, issueID string) ([]*AuditEvent, error)

	// CreateArtifact persists an artifact.
	CreateArtifact(ctx context.Context, a *Artifact) error

	// ListArtifacts returns artifacts for a task in creation order.
	// An empty taskID returns all artifacts.
	ListArtifacts(ctx context.Context, taskID string) ([]*Artifact, error)
}
