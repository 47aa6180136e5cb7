// Package event provides a pub-sub event bus for decoupled inter-component
// communication in osagent.
//
// This package enables loose coupling between the coordinator, executor, CLI,
// and MCP server by allowing them to communicate through events rather than
// direct method calls. Components can publish events without knowing who will
// receive them, and subscribe to events without knowing who will produce them.
//
// # Main Types
//
//   - [Event]: Interface that all events must implement, providing EventType() and Timestamp()
//   - [Bus]: Synchronous pub-sub event dispatcher with thread-safe operations
//   - [Handler]: Function type for event handlers (func(Event))
//   - [NATSPublisher]: Optional bridge that mirrors all bus events to NATS subjects
//
// # Event Categories
//
// The package defines several categories of events:
//
// Issue Lifecycle:
//   - [IssueStartedEvent]: Emitted when the coordinator begins executing an issue
//   - [StatusEvent]: Emitted when an issue changes status
//   - [IssueCompletedEvent]: Emitted when an issue's goal is verified as achieved
//   - [IssueFailedEvent]: Emitted when execution fails or the goal is not achieved
//   - [ChildIssuesCreatedEvent]: Emitted when a plan is decomposed into child issues
//
// Planning:
//   - [PlanCreatedEvent]: Emitted when planning produces an executable plan
//   - [ClarificationNeededEvent]: Emitted when user input is required to continue
//
// Execution:
//   - [IterationStartedEvent]: Emitted at the top of each conversation iteration
//   - [StreamDeltaEvent]: Emitted for each chunk of streamed model output
//   - [ToolCalledEvent]: Emitted after each tool invocation returns
//   - [ArtifactGeneratedEvent]: Emitted when execution produces an artifact
//
// Retry:
//   - [RetryScheduledEvent]: Emitted when a failed attempt is scheduled for retry
//
// # Thread Safety
//
// The [Bus] type is safe for concurrent use. Multiple goroutines can publish
// and subscribe concurrently. Handlers are called synchronously and protected
// against panics - a panicking handler will not prevent other handlers from
// being called.
//
// # Basic Usage
//
//	bus := event.NewBus()
//
//	// Subscribe to specific event types
//	bus.Subscribe("issue.started", func(e event.Event) {
//	    started := e.(event.IssueStartedEvent)
//	    log.Printf("issue %s started", started.IssueID)
//	})
//
//	// Subscribe to all events (useful for logging or NATS mirroring)
//	bus.SubscribeAll(func(e event.Event) {
//	    log.Printf("event: %s at %v", e.EventType(), e.Timestamp())
//	})
//
//	// Publish events
//	bus.Publish(event.NewIssueStartedEvent("issue-1", "task-1", "Summarize the report"))
//
//	// Unsubscribe when done
//	id := bus.Subscribe("issue.completed", handler)
//	bus.Unsubscribe(id)
//
// # Event Type Naming Convention
//
// Event types follow the pattern "category.action":
//   - issue.started, issue.status_changed, issue.completed, issue.failed, issue.decomposed
//   - plan.created
//   - clarification.needed
//   - iteration.started, stream.delta, tool.called, artifact.generated
//   - retry.scheduled
package event
