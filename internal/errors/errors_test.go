package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

// -----------------------------------------------------------------------------
// Severity Tests
// -----------------------------------------------------------------------------

func TestSeverity_String(t *testing.T) {
	tests := []struct {
		severity Severity
		want     string
	}{
		{SeverityDebug, "debug"},
		{SeverityInfo, "info"},
		{SeverityWarning, "warning"},
		{SeverityError, "error"},
		{SeverityCritical, "critical"},
		{Severity(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.severity.String(); got != tt.want {
				t.Errorf("Severity.String() = %q, want %q", got, tt.want)
			}
		})
	}
}

// -----------------------------------------------------------------------------
// ExecutionKind Tests
// -----------------------------------------------------------------------------

func TestExecutionKind_Retryable(t *testing.T) {
	tests := []struct {
		kind ExecutionKind
		want bool
	}{
		{KindUnknown, true},
		{KindPlanGeneration, true},
		{KindVerification, true},
		{KindNetwork, true},
		{KindRateLimited, true},
		{KindStepOutOfBounds, false},
		{KindToolCallLimit, false},
		{KindTokenLimit, false},
		{KindCancelled, false},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			err := NewExecutionError(tt.kind, "test", nil)
			if got := err.IsRetryable(); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExecutionKind_String(t *testing.T) {
	tests := []struct {
		kind ExecutionKind
		want string
	}{
		{KindUnknown, "unknown"},
		{KindPlanGeneration, "plan_generation"},
		{KindStepOutOfBounds, "step_out_of_bounds"},
		{KindToolCallLimit, "tool_call_limit"},
		{KindVerification, "verification"},
		{KindCancelled, "cancelled"},
		{KindNetwork, "network"},
		{KindRateLimited, "rate_limited"},
		{KindTokenLimit, "token_limit"},
		{ExecutionKind(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.kind.String(); got != tt.want {
				t.Errorf("ExecutionKind.String() = %q, want %q", got, tt.want)
			}
		})
	}
}

// -----------------------------------------------------------------------------
// ExecutionError Tests
// -----------------------------------------------------------------------------

func TestNewExecutionError(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewExecutionError(KindNetwork, "model request failed", cause)

	if err.Kind != KindNetwork {
		t.Errorf("Kind = %v, want %v", err.Kind, KindNetwork)
	}
	if err.cause != cause {
		t.Errorf("cause = %v, want %v", err.cause, cause)
	}
	if !err.IsRetryable() {
		t.Error("IsRetryable() = false, want true for network errors")
	}
	if !err.IsUserFacing() {
		t.Error("IsUserFacing() = false, want true")
	}
}

func TestExecutionError_WithMethods(t *testing.T) {
	err := NewExecutionError(KindUnknown, "test", nil).
		WithIssueID("issue-1").
		WithIteration(4).
		WithSeverity(SeverityCritical).
		WithRetryable(false)

	if err.IssueID != "issue-1" {
		t.Errorf("IssueID = %q, want %q", err.IssueID, "issue-1")
	}
	if err.Iteration != 4 {
		t.Errorf("Iteration = %d, want 4", err.Iteration)
	}
	if err.Severity() != SeverityCritical {
		t.Errorf("Severity() = %v, want %v", err.Severity(), SeverityCritical)
	}
	if err.IsRetryable() {
		t.Error("IsRetryable() = true, want false after override")
	}
}

func TestExecutionError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *ExecutionError
		want string
	}{
		{
			name: "kind only",
			err:  NewExecutionError(KindNetwork, "request failed", nil),
			want: "execution error [kind=network]: request failed",
		},
		{
			name: "with issue",
			err:  NewExecutionError(KindToolCallLimit, "cap reached", nil).WithIssueID("i-1"),
			want: "execution error [kind=tool_call_limit, issue=i-1]: cap reached",
		},
		{
			name: "with cause",
			err:  NewExecutionError(KindNetwork, "request failed", errors.New("EOF")),
			want: "execution error [kind=network]: request failed: EOF",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExecutionError_Is(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{
			name:   "tool call limit kind matches sentinel",
			err:    NewExecutionError(KindToolCallLimit, "cap", nil),
			target: ErrToolCallLimit,
			want:   true,
		},
		{
			name:   "cancelled kind matches sentinel",
			err:    NewExecutionError(KindCancelled, "stopped", nil),
			target: ErrCancelled,
			want:   true,
		},
		{
			name:   "step out of bounds kind matches sentinel",
			err:    NewExecutionError(KindStepOutOfBounds, "step 9", nil),
			target: ErrStepOutOfBounds,
			want:   true,
		},
		{
			name:   "network kind does not match tool call limit",
			err:    NewExecutionError(KindNetwork, "down", nil),
			target: ErrToolCallLimit,
			want:   false,
		},
		{
			name:   "matches wrapped cause",
			err:    NewExecutionError(KindUnknown, "wrapper", ErrTimeout),
			target: ErrTimeout,
			want:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, tt.target); got != tt.want {
				t.Errorf("errors.Is() = %v, want %v", got, tt.want)
			}
		})
	}
}

// -----------------------------------------------------------------------------
// MaxRetriesExceededError Tests
// -----------------------------------------------------------------------------

func TestNewMaxRetriesExceeded(t *testing.T) {
	last := NewExecutionError(KindNetwork, "request failed", nil)
	err := NewMaxRetriesExceeded(3, last)

	if !strings.Contains(err.Error(), "3 attempts") {
		t.Errorf("Error() = %q, want attempt count included", err.Error())
	}
	if err.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", err.Attempts)
	}
	if err.IsRetryable() {
		t.Error("IsRetryable() = true, want false")
	}
	if !errors.Is(err, last) {
		t.Error("errors.Is(err, last) = false, want wrapped last error to match")
	}

	var execErr *ExecutionError
	if !errors.As(err, &execErr) {
		t.Error("errors.As failed to find wrapped ExecutionError")
	}
}

// -----------------------------------------------------------------------------
// ValidationError Tests
// -----------------------------------------------------------------------------

func TestValidationError(t *testing.T) {
	err := NewValidationError("query cannot be empty").
		WithField("query")

	want := `validation error [field=query]: query cannot be empty`
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrInvalidInput) {
		t.Error("errors.Is(err, ErrInvalidInput) = false, want true")
	}
	if err.IsRetryable() {
		t.Error("IsRetryable() = true, want false")
	}
}

// -----------------------------------------------------------------------------
// TimeoutError Tests
// -----------------------------------------------------------------------------

func TestTimeoutError(t *testing.T) {
	err := NewTimeoutError("waiting for model response", 30*time.Second)

	want := "timeout error: waiting for model response (timeout: 30s)"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !err.IsRetryable() {
		t.Error("IsRetryable() = false, want true by default")
	}
	if !errors.Is(err, ErrTimeout) {
		t.Error("errors.Is(err, ErrTimeout) = false, want true")
	}
}

// -----------------------------------------------------------------------------
// Classification Helper Tests
// -----------------------------------------------------------------------------

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"plain error", errors.New("boom"), false},
		{"retriable execution error", NewExecutionError(KindRateLimited, "429", nil), true},
		{"non-retriable execution error", NewExecutionError(KindCancelled, "stop", nil), false},
		{"timeout error", NewTimeoutError("op", time.Second), true},
		{"wrapped timeout sentinel", fmt.Errorf("outer: %w", ErrTimeout), true},
		{"already executing sentinel", ErrAlreadyExecuting, false},
		{"wrapped execution error", fmt.Errorf("outer: %w", NewExecutionError(KindNetwork, "net", nil)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsStateError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"already executing", ErrAlreadyExecuting, true},
		{"issue not found wrapped", fmt.Errorf("resume: %w", ErrIssueNotFound), true},
		{"no pending clarification", ErrNoPendingClarification, true},
		{"cancelled", ErrCancelled, true},
		{"execution error", NewExecutionError(KindNetwork, "net", nil), false},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsStateError(tt.err); got != tt.want {
				t.Errorf("IsStateError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetSeverity(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Severity
	}{
		{"nil", nil, SeverityDebug},
		{"plain error", errors.New("boom"), SeverityError},
		{"validation error", NewValidationError("bad"), SeverityWarning},
		{"critical execution error", NewExecutionError(KindUnknown, "x", nil).WithSeverity(SeverityCritical), SeverityCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetSeverity(tt.err); got != tt.want {
				t.Errorf("GetSeverity() = %v, want %v", got, tt.want)
			}
		})
	}
}

// -----------------------------------------------------------------------------
// Wrap Tests
// -----------------------------------------------------------------------------

func TestWrap(t *testing.T) {
	if got := Wrap(nil, "context"); got != nil {
		t.Errorf("Wrap(nil) = %v, want nil", got)
	}

	base := ErrIssueNotFound
	wrapped := Wrap(base, "resume failed")
	if wrapped.Error() != "resume failed: issue not found" {
		t.Errorf("Wrap() = %q, want %q", wrapped.Error(), "resume failed: issue not found")
	}
	if !errors.Is(wrapped, base) {
		t.Error("wrapped error does not match base via errors.Is")
	}
}

func TestWrapf(t *testing.T) {
	if got := Wrapf(nil, "issue %s", "i-1"); got != nil {
		t.Errorf("Wrapf(nil) = %v, want nil", got)
	}

	wrapped := Wrapf(ErrIssueNotFound, "resume issue %s", "i-1")
	want := "resume issue i-1: issue not found"
	if wrapped.Error() != want {
		t.Errorf("Wrapf() = %q, want %q", wrapped.Error(), want)
	}
}
