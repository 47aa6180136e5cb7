// Package errors provides centralized error definitions and error handling
// utilities for the osagent codebase. It defines the orchestration error
// taxonomy, semantic error types, error constructors with context wrapping,
// and error classification helpers.
//
// # Error Types
//
// The package provides two categories of errors:
//
// Orchestration-state sentinels represent invalid requests against the
// coordinator's state machine. They are always non-retriable and surface
// immediately to the caller:
//   - ErrAlreadyExecuting: an issue is already in flight
//   - ErrIssueNotFound / ErrTaskNotFound: unknown identifiers
//   - ErrNoIssueCreated: no ready issue to execute
//   - ErrNoPendingClarification: clarification supplied with nothing pending
//   - ErrCancelled: the run was cancelled
//
// Execution errors carry an ExecutionKind that marks each failure mode as
// retriable or not. Network, rate-limit, plan-generation, verification and
// unknown failures default to retriable; structural failures (step out of
// bounds, tool-call limit, cancellation) do not.
//
// # Usage
//
// Creating errors:
//
//	// Execution error with context
//	err := errors.NewExecutionError(errors.KindNetwork, "model request failed", cause).
//		WithIssueID("issue-1")
//
//	// Exhausted retries wrapping the last failure
//	err := errors.NewMaxRetriesExceeded(3, lastErr)
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrAlreadyExecuting) { ... }
//
//	var execErr *errors.ExecutionError
//	if errors.As(err, &execErr) { ... }
//
//	if errors.IsRetryable(err) { ... }
//
// # Error Classification
//
// Errors can be classified by severity and behavior:
//   - Retryable: transient errors that may succeed on retry
//   - UserFacing: errors safe to display to users (vs internal errors)
//   - Severity: Debug, Info, Warning, Error, Critical
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Orchestration-state sentinel errors. These indicate a request that is
// invalid given the coordinator's current state and are never retriable.
var (
	// ErrAlreadyExecuting indicates that an issue is already being executed.
	ErrAlreadyExecuting = New("an issue is already executing")
	// ErrIssueNotFound indicates that an issue could not be found.
	ErrIssueNotFound = New("issue not found")
	// ErrTaskNotFound indicates that a task could not be found.
	ErrTaskNotFound = New("task not found")
	// ErrNoIssueCreated indicates that no issue exists or is ready to execute.
	ErrNoIssueCreated = New("no issue created")
	// ErrNoPendingClarification indicates that no clarification is awaiting a response.
	ErrNoPendingClarification = New("no pending clarification")
	// ErrCancelled indicates that execution was cancelled.
	ErrCancelled = New("execution cancelled")
)

// Execution-structural sentinel errors. These match ExecutionError values of
// the corresponding kind via errors.Is.
var (
	// ErrToolCallLimit indicates that the per-issue tool-call cap was reached.
	ErrToolCallLimit = New("tool call limit reached")
	// ErrStepOutOfBounds indicates a step index outside the plan.
	ErrStepOutOfBounds = New("step out of bounds")
)

// General sentinel errors
var (
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// AgentError is the base interface for all osagent errors.
// It extends the standard error interface with additional methods for
// error handling and classification.
type AgentError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	// This is used by errors.Is() for error comparison.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the error is transient and the operation
	// may succeed on retry.
	IsRetryable() bool

	// IsUserFacing returns true if the error message is safe to display
	// to end users.
	IsUserFacing() bool
}

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// IsUserFacing returns whether the error is safe to show users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// -----------------------------------------------------------------------------
// Execution Errors
// -----------------------------------------------------------------------------

// ExecutionKind identifies the failure mode of an execution error.
type ExecutionKind int

const (
	// KindUnknown is an unclassified execution failure.
	KindUnknown ExecutionKind = iota
	// KindPlanGeneration is a failure while building the execution plan.
	KindPlanGeneration
	// KindStepOutOfBounds is a reference to a step outside the plan.
	KindStepOutOfBounds
	// KindToolCallLimit is an attempt to execute a tool past the per-issue cap.
	KindToolCallLimit
	// KindVerification is a failure while verifying goal completion.
	KindVerification
	// KindCancelled is an execution interrupted by cancellation.
	KindCancelled
	// KindNetwork is a transport-level failure reaching the model.
	KindNetwork
	// KindRateLimited is a model-side rate limit rejection.
	KindRateLimited
	// KindTokenLimit is an execution that spent its per-issue token budget.
	KindTokenLimit
)

// String returns the string representation of the execution kind.
func (k ExecutionKind) String() string {
	switch k {
	case KindPlanGeneration:
		return "plan_generation"
	case KindStepOutOfBounds:
		return "step_out_of_bounds"
	case KindToolCallLimit:
		return "tool_call_limit"
	case KindVerification:
		return "verification"
	case KindCancelled:
		return "cancelled"
	case KindNetwork:
		return "network"
	case KindRateLimited:
		return "rate_limited"
	case KindTokenLimit:
		return "token_limit"
	default:
		return "unknown"
	}
}

// retryable reports whether this failure mode may succeed on retry.
// Structural failures never do; everything caused by the model or the
// network defaults to retriable.
func (k ExecutionKind) retryable() bool {
	switch k {
	case KindStepOutOfBounds, KindToolCallLimit, KindTokenLimit, KindCancelled:
		return false
	default:
		return true
	}
}

// ExecutionError represents a failure during issue execution.
//
// Example:
//
//	err := errors.NewExecutionError(errors.KindNetwork, "stream request failed", cause)
//	err = err.WithIssueID("issue-1").WithIteration(4)
type ExecutionError struct {
	baseError
	Kind      ExecutionKind
	IssueID   string
	Iteration int
}

// NewExecutionError creates a new ExecutionError. Retryability is derived
// from the kind; use WithRetryable to override.
func NewExecutionError(kind ExecutionKind, message string, cause error) *ExecutionError {
	return &ExecutionError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  kind.retryable(),
			userFacing: true,
		},
		Kind:      kind,
		Iteration: -1, // -1 indicates not set
	}
}

// WithIssueID adds an issue ID to the error context.
func (e *ExecutionError) WithIssueID(id string) *ExecutionError {
	e.IssueID = id
	return e
}

// WithIteration adds the loop iteration to the error context.
func (e *ExecutionError) WithIteration(n int) *ExecutionError {
	e.Iteration = n
	return e
}

// WithSeverity sets the error severity.
func (e *ExecutionError) WithSeverity(s Severity) *ExecutionError {
	e.severity = s
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *ExecutionError) WithRetryable(r bool) *ExecutionError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *ExecutionError) Error() string {
	parts := []string{fmt.Sprintf("kind=%s", e.Kind)}
	if e.IssueID != "" {
		parts = append(parts, fmt.Sprintf("issue=%s", e.IssueID))
	}
	if e.Iteration >= 0 {
		parts = append(parts, fmt.Sprintf("iteration=%d", e.Iteration))
	}

	prefix := fmt.Sprintf("execution error [%s]", strings.Join(parts, ", "))

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target. Structural kinds match their
// corresponding sentinels so callers can use errors.Is without unwrapping.
func (e *ExecutionError) Is(target error) bool {
	if _, ok := target.(*ExecutionError); ok {
		return true
	}
	switch {
	case target == ErrToolCallLimit && e.Kind == KindToolCallLimit:
		return true
	case target == ErrStepOutOfBounds && e.Kind == KindStepOutOfBounds:
		return true
	case target == ErrCancelled && e.Kind == KindCancelled:
		return true
	}
	return e.baseError.Is(target)
}

// MaxRetriesExceededError wraps the last failure after all retry attempts
// are spent.
//
// Example:
//
//	err := errors.NewMaxRetriesExceeded(3, lastErr)
//	fmt.Println(err) // "max retries exceeded after 3 attempts: ..."
type MaxRetriesExceededError struct {
	baseError
	Attempts int
}

// NewMaxRetriesExceeded creates a new MaxRetriesExceededError wrapping the
// last underlying error.
func NewMaxRetriesExceeded(attempts int, last error) *MaxRetriesExceededError {
	return &MaxRetriesExceededError{
		baseError: baseError{
			message:    fmt.Sprintf("max retries exceeded after %d attempts", attempts),
			cause:      last,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
		Attempts: attempts,
	}
}

// Is checks if this error matches the target.
func (e *MaxRetriesExceededError) Is(target error) bool {
	if _, ok := target.(*MaxRetriesExceededError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("query cannot be empty")
//	err = err.WithField("query").WithValue("")
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}

	prefix := "validation error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("validation error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if errors.Is(target, ErrInvalidInput) {
		return true
	}
	return e.baseError.Is(target)
}

// TimeoutError represents an operation that timed out.
//
// Example:
//
//	err := errors.NewTimeoutError("waiting for model response", 30*time.Second)
//	fmt.Println(err) // "timeout error: waiting for model response (timeout: 30s)"
type TimeoutError struct {
	baseError
	Operation string
	Duration  time.Duration
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{
		baseError: baseError{
			message:    operation,
			severity:   SeverityWarning,
			retryable:  true, // Timeouts are generally retryable
			userFacing: true,
		},
		Operation: operation,
		Duration:  duration,
	}
}

// WithCause adds a cause to the error.
func (e *TimeoutError) WithCause(cause error) *TimeoutError {
	e.cause = cause
	return e
}

// WithRetryable sets whether the error is retryable (default true for timeouts).
func (e *TimeoutError) WithRetryable(r bool) *TimeoutError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *TimeoutError) Error() string {
	base := fmt.Sprintf("timeout error: %s (timeout: %s)", e.Operation, e.Duration)
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", base, e.cause)
	}
	return base
}

// Is checks if this error matches the target.
func (e *TimeoutError) Is(target error) bool {
	if _, ok := target.(*TimeoutError); ok {
		return true
	}
	if errors.Is(target, ErrTimeout) {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry. This checks for:
//   - Errors implementing AgentError with IsRetryable() returning true
//   - Errors wrapping ErrTimeout
//
// Orchestration-state sentinels are never retryable.
//
// Example:
//
//	if errors.IsRetryable(err) {
//	    time.Sleep(backoff)
//	    return retry(operation)
//	}
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Check if error implements AgentError
	var agentErr AgentError
	if As(err, &agentErr) {
		return agentErr.IsRetryable()
	}

	// Check for known retryable sentinel errors
	if Is(err, ErrTimeout) {
		return true
	}

	return false
}

// IsUserFacing returns true if the error message is safe to display to end users.
//
// Example:
//
//	if errors.IsUserFacing(err) {
//	    displayToUser(err.Error())
//	} else {
//	    displayToUser("An internal error occurred")
//	    log.Error("internal error", "err", err)
//	}
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	// Check if error implements AgentError
	var agentErr AgentError
	if As(err, &agentErr) {
		return agentErr.IsUserFacing()
	}

	// Semantic errors are always user-facing
	var validation *ValidationError
	var timeout *TimeoutError

	if As(err, &validation) || As(err, &timeout) {
		return true
	}

	return false
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement AgentError.
//
// Example:
//
//	switch errors.GetSeverity(err) {
//	case errors.SeverityCritical:
//	    alertOnCall(err)
//	case errors.SeverityError:
//	    log.Error("error occurred", "err", err)
//	case errors.SeverityWarning:
//	    log.Warn("warning", "err", err)
//	}
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	// Check if error implements AgentError
	var agentErr AgentError
	if As(err, &agentErr) {
		return agentErr.Severity()
	}

	// Default to Error severity for unknown errors
	return SeverityError
}

// IsStateError returns true if the error is one of the orchestration-state
// sentinels (invalid request against the coordinator state machine).
func IsStateError(err error) bool {
	if err == nil {
		return false
	}
	return Is(err, ErrAlreadyExecuting) ||
		Is(err, ErrIssueNotFound) ||
		Is(err, ErrTaskNotFound) ||
		Is(err, ErrNoIssueCreated) ||
		Is(err, ErrNoPendingClarification) ||
		Is(err, ErrCancelled)
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
// Unlike fmt.Errorf with %w, this preserves nil-safety.
//
// Example:
//
//	err := errors.Wrap(baseErr, "failed to execute issue")
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
//
// Example:
//
//	err := errors.Wrapf(baseErr, "failed to execute issue %s", issueID)
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
