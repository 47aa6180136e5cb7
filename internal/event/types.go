package event

import "time"

// Event is the interface that all events must implement.
// It provides a common way to identify and timestamp events.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "issue.started", "plan.created")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

// newBaseEvent creates a baseEvent with the current time.
func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Issue Lifecycle Events
// -----------------------------------------------------------------------------

// IssueStartedEvent is emitted when the coordinator begins executing an issue.
type IssueStartedEvent struct {
	baseEvent
	IssueID string `json:"issue_id"`
	TaskID  string `json:"task_id"`
	Title   string `json:"title"`
}

// NewIssueStartedEvent creates an IssueStartedEvent.
func NewIssueStartedEvent(issueID, taskID, title string) IssueStartedEvent {
	return IssueStartedEvent{
		baseEvent: newBaseEvent("issue.started"),
		IssueID:   issueID,
		TaskID:    taskID,
		Title:     title,
	}
}

// StatusEvent is emitted when an issue transitions between statuses
// (open, in_progress, closed).
type StatusEvent struct {
	baseEvent
	IssueID  string `json:"issue_id"`
	Previous string `json:"previous"` // Status before the transition
	Current  string `json:"current"`  // Status after the transition
}

// NewStatusEvent creates a StatusEvent.
func NewStatusEvent(issueID, previous, current string) StatusEvent {
	return StatusEvent{
		baseEvent: newBaseEvent("issue.status_changed"),
		IssueID:   issueID,
		Previous:  previous,
		Current:   current,
	}
}

// IssueCompletedEvent is emitted when an issue finishes executing and its
// goal was verified as achieved (fully or partially).
type IssueCompletedEvent struct {
	baseEvent
	IssueID         string `json:"issue_id"`
	Summary         string `json:"summary"`                      // Verifier summary of what was accomplished
	Iterations      int    `json:"iterations"`                   // Conversation iterations consumed
	ToolCalls       int    `json:"tool_calls"`                   // Tool calls consumed
	FollowUpIssueID string `json:"follow_up_issue_id,omitempty"` // Set when partial completion spawned a follow-up
}

// NewIssueCompletedEvent creates an IssueCompletedEvent.
func NewIssueCompletedEvent(issueID, summary string, iterations, toolCalls int, followUpIssueID string) IssueCompletedEvent {
	return IssueCompletedEvent{
		baseEvent:       newBaseEvent("issue.completed"),
		IssueID:         issueID,
		Summary:         summary,
		Iterations:      iterations,
		ToolCalls:       toolCalls,
		FollowUpIssueID: followUpIssueID,
	}
}

// IssueFailedEvent is emitted when issue execution fails or the goal was
// verified as not achieved.
type IssueFailedEvent struct {
	baseEvent
	IssueID string `json:"issue_id"`
	Reason  string `json:"reason"`
}

// NewIssueFailedEvent creates an IssueFailedEvent.
func NewIssueFailedEvent(issueID, reason string) IssueFailedEvent {
	return IssueFailedEvent{
		baseEvent: newBaseEvent("issue.failed"),
		IssueID:   issueID,
		Reason:    reason,
	}
}

// ChildIssuesCreatedEvent is emitted when an oversized plan is decomposed
// into child issues. The parent issue is closed once all children exist.
type ChildIssuesCreatedEvent struct {
	baseEvent
	ParentID string   `json:"parent_id"`
	ChildIDs []string `json:"child_ids"`
}

// NewChildIssuesCreatedEvent creates a ChildIssuesCreatedEvent.
func NewChildIssuesCreatedEvent(parentID string, childIDs []string) ChildIssuesCreatedEvent {
	return ChildIssuesCreatedEvent{
		baseEvent: newBaseEvent("issue.decomposed"),
		ParentID:  parentID,
		ChildIDs:  childIDs,
	}
}

// -----------------------------------------------------------------------------
// Planning Events
// -----------------------------------------------------------------------------

// PlanCreatedEvent is emitted when planning produces an executable plan,
// before any step runs.
type PlanCreatedEvent struct {
	baseEvent
	IssueID      string `json:"issue_id"`
	Steps        int    `json:"steps"`          // Number of steps in the plan
	MaxToolCalls int    `json:"max_tool_calls"` // Tool call budget for the plan
}

// NewPlanCreatedEvent creates a PlanCreatedEvent.
func NewPlanCreatedEvent(issueID string, steps, maxToolCalls int) PlanCreatedEvent {
	return PlanCreatedEvent{
		baseEvent:    newBaseEvent("plan.created"),
		IssueID:      issueID,
		Steps:        steps,
		MaxToolCalls: maxToolCalls,
	}
}

// ClarificationNeededEvent is emitted when planning or execution determines
// that user input is required before work can continue. The issue is
// suspended until an answer arrives.
type ClarificationNeededEvent struct {
	baseEvent
	IssueID  string   `json:"issue_id"`
	Question string   `json:"question"`
	Options  []string `json:"options,omitempty"` // Suggested answers, may be empty
}

// NewClarificationNeededEvent creates a ClarificationNeededEvent.
func NewClarificationNeededEvent(issueID, question string, options []string) ClarificationNeededEvent {
	return ClarificationNeededEvent{
		baseEvent: newBaseEvent("clarification.needed"),
		IssueID:   issueID,
		Question:  question,
		Options:   options,
	}
}

// -----------------------------------------------------------------------------
// Execution Events
// -----------------------------------------------------------------------------

// IterationStartedEvent is emitted at the top of each conversation iteration
// of the execution loop.
type IterationStartedEvent struct {
	baseEvent
	IssueID       string `json:"issue_id"`
	Iteration     int    `json:"iteration"`      // 1-based iteration number
	MaxIterations int    `json:"max_iterations"` // Configured iteration cap
}

// NewIterationStartedEvent creates an IterationStartedEvent.
func NewIterationStartedEvent(issueID string, iteration, maxIterations int) IterationStartedEvent {
	return IterationStartedEvent{
		baseEvent:     newBaseEvent("iteration.started"),
		IssueID:       issueID,
		Iteration:     iteration,
		MaxIterations: maxIterations,
	}
}

// StreamDeltaEvent carries an incremental chunk of model output text.
// These are high frequency; handlers should return quickly since the bus
// dispatches synchronously.
type StreamDeltaEvent struct {
	baseEvent
	IssueID string `json:"issue_id"`
	Text    string `json:"text"`
}

// NewStreamDeltaEvent creates a StreamDeltaEvent.
func NewStreamDeltaEvent(issueID, text string) StreamDeltaEvent {
	return StreamDeltaEvent{
		baseEvent: newBaseEvent("stream.delta"),
		IssueID:   issueID,
		Text:      text,
	}
}

// ToolCalledEvent is emitted after a tool invocation returns, whether it
// succeeded, was rejected, or timed out.
type ToolCalledEvent struct {
	baseEvent
	IssueID   string `json:"issue_id"`
	Tool      string `json:"tool"`
	Arguments string `json:"arguments,omitempty"` // Raw JSON arguments as sent by the model
	Success   bool   `json:"success"`
	Duration  string `json:"duration"` // Wall clock duration, e.g. "1.2s"
}

// NewToolCalledEvent creates a ToolCalledEvent.
func NewToolCalledEvent(issueID, tool, arguments string, success bool, duration string) ToolCalledEvent {
	return ToolCalledEvent{
		baseEvent: newBaseEvent("tool.called"),
		IssueID:   issueID,
		Tool:      tool,
		Arguments: arguments,
		Success:   success,
		Duration:  duration,
	}
}

// ArtifactGeneratedEvent is emitted when execution produces an artifact,
// typically via the completion signal.
type ArtifactGeneratedEvent struct {
	baseEvent
	ArtifactID string `json:"artifact_id"`
	TaskID     string `json:"task_id"`
	IssueID    string `json:"issue_id"`
	Name       string `json:"name"`
	Final      bool   `json:"final"` // True when this is the task's final deliverable
}

// NewArtifactGeneratedEvent creates an ArtifactGeneratedEvent.
func NewArtifactGeneratedEvent(artifactID, taskID, issueID, name string, final bool) ArtifactGeneratedEvent {
	return ArtifactGeneratedEvent{
		baseEvent:  newBaseEvent("artifact.generated"),
		ArtifactID: artifactID,
		TaskID:     taskID,
		IssueID:    issueID,
		Name:       name,
		Final:      final,
	}
}

// -----------------------------------------------------------------------------
// Retry Events
// -----------------------------------------------------------------------------

// RetryScheduledEvent is emitted when a failed attempt will be retried
// after a backoff delay.
type RetryScheduledEvent struct {
	baseEvent
	IssueID     string `json:"issue_id"`
	Attempt     int    `json:"attempt"`      // Attempt that just failed, 1-based
	MaxAttempts int    `json:"max_attempts"` // Configured attempt cap
	Delay       string `json:"delay"`        // Backoff before the next attempt, e.g. "2s"
	Reason      string `json:"reason"`       // Error that triggered the retry
}

// NewRetryScheduledEvent creates a RetryScheduledEvent.
func NewRetryScheduledEvent(issueID string, attempt, maxAttempts int, delay, reason string) RetryScheduledEvent {
	return RetryScheduledEvent{
		baseEvent:   newBaseEvent("retry.scheduled"),
		IssueID:     issueID,
		Attempt:     attempt,
		MaxAttempts: maxAttempts,
		Delay:       delay,
		Reason:      reason,
	}
}
