package retry

import (
	"context"
	"testing"
	"time"

	"github.com/dinoki-ai/osagent/internal/errors"
	"github.com/dinoki-ai/osagent/internal/event"
)

func TestConfig_Delay(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name    string
		attempt int
		want    time.Duration
	}{
		{name: "first attempt is immediate", attempt: 1, want: 0},
		{name: "second attempt", attempt: 2, want: 2 * time.Second},
		{name: "third attempt", attempt: 3, want: 4 * time.Second},
		{name: "fourth attempt", attempt: 4, want: 8 * time.Second},
		{name: "large attempt hits the cap", attempt: 10, want: 30 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cfg.Delay(tt.attempt); got != tt.want {
				t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
			}
		})
	}
}

func TestConfig_Delay_Monotonic(t *testing.T) {
	cfg := DefaultConfig()

	prev := time.Duration(0)
	for attempt := 1; attempt <= 50; attempt++ {
		d := cfg.Delay(attempt)
		if d < prev {
			t.Fatalf("Delay(%d) = %v, less than Delay(%d) = %v", attempt, d, attempt-1, prev)
		}
		if d > cfg.MaxDelay {
			t.Fatalf("Delay(%d) = %v exceeds MaxDelay %v", attempt, d, cfg.MaxDelay)
		}
		prev = d
	}

	// Exponents this large overflow float64 into +Inf; the cap must hold.
	if got := cfg.Delay(200); got != cfg.MaxDelay {
		t.Errorf("Delay(200) = %v, want %v", got, cfg.MaxDelay)
	}
}

func TestController_Do_SucceedsFirstTry(t *testing.T) {
	bus := event.NewBus()
	var scheduled []event.RetryScheduledEvent
	bus.Subscribe("retry.scheduled", func(e event.Event) {
		scheduled = append(scheduled, e.(event.RetryScheduledEvent))
	})

	c := NewController(Config{MaxAttempts: 3, BaseDelay: time.Millisecond}, bus, nil)

	calls := 0
	err := c.Do(context.Background(), "iss-1", func(ctx context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if calls != 1 {
		t.Errorf("fn called %d times, want 1", calls)
	}
	if st := c.ErrorState("iss-1"); st != nil {
		t.Errorf("ErrorState = %+v, want nil", st)
	}
	if len(scheduled) != 0 {
		t.Errorf("published %d retry events, want 0", len(scheduled))
	}
}

func TestController_Do_RetriesUntilSuccess(t *testing.T) {
	bus := event.NewBus()
	var scheduled []event.RetryScheduledEvent
	bus.Subscribe("retry.scheduled", func(e event.Event) {
		scheduled = append(scheduled, e.(event.RetryScheduledEvent))
	})

	c := NewController(Config{MaxAttempts: 3, BaseDelay: time.Millisecond}, bus, nil)

	calls := 0
	err := c.Do(context.Background(), "iss-1", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.NewExecutionError(errors.KindNetwork, "connection reset", nil)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if calls != 3 {
		t.Errorf("fn called %d times, want 3", calls)
	}
	if st := c.ErrorState("iss-1"); st != nil {
		t.Errorf("ErrorState after success = %+v, want nil", st)
	}

	if len(scheduled) != 2 {
		t.Fatalf("published %d retry events, want 2", len(scheduled))
	}
	first := scheduled[0]
	if first.IssueID != "iss-1" || first.Attempt != 1 || first.MaxAttempts != 3 {
		t.Errorf("first event = %+v, want issue iss-1 attempt 1 of 3", first)
	}
	if first.Reason == "" {
		t.Error("first event has empty reason")
	}
	if scheduled[1].Attempt != 2 {
		t.Errorf("second event attempt = %d, want 2", scheduled[1].Attempt)
	}
}

func TestController_Do_NonRetriableShortCircuits(t *testing.T) {
	bus := event.NewBus()
	var scheduled []event.RetryScheduledEvent
	bus.Subscribe("retry.scheduled", func(e event.Event) {
		scheduled = append(scheduled, e.(event.RetryScheduledEvent))
	})

	c := NewController(Config{MaxAttempts: 3, BaseDelay: time.Millisecond}, bus, nil)

	cause := errors.NewExecutionError(errors.KindCancelled, "execution cancelled", nil)
	calls := 0
	err := c.Do(context.Background(), "iss-1", func(ctx context.Context) error {
		calls++
		return cause
	})
	if !errors.Is(err, cause) {
		t.Fatalf("Do returned %v, want the original error", err)
	}
	if calls != 1 {
		t.Errorf("fn called %d times, want 1", calls)
	}

	st := c.ErrorState("iss-1")
	if st == nil {
		t.Fatal("ErrorState is nil, want a record of the failure")
	}
	if st.CanRetry {
		t.Error("ErrorState.CanRetry = true, want false")
	}
	if st.Attempts != 1 {
		t.Errorf("ErrorState.Attempts = %d, want 1", st.Attempts)
	}
	if len(scheduled) != 0 {
		t.Errorf("published %d retry events, want 0", len(scheduled))
	}
}

func TestController_Do_Exhaustion(t *testing.T) {
	c := NewController(Config{MaxAttempts: 3, BaseDelay: time.Millisecond}, nil, nil)

	cause := errors.NewExecutionError(errors.KindNetwork, "connection reset", nil)
	calls := 0
	err := c.Do(context.Background(), "iss-1", func(ctx context.Context) error {
		calls++
		return cause
	})
	if calls != 3 {
		t.Errorf("fn called %d times, want 3", calls)
	}

	var maxErr *errors.MaxRetriesExceededError
	if !errors.As(err, &maxErr) {
		t.Fatalf("Do returned %T, want *errors.MaxRetriesExceededError", err)
	}
	if maxErr.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", maxErr.Attempts)
	}
	if !errors.Is(err, cause) {
		t.Error("exhaustion error does not wrap the last failure")
	}
	if errors.IsRetryable(err) {
		t.Error("exhaustion error reports retryable")
	}

	st := c.ErrorState("iss-1")
	if st == nil {
		t.Fatal("ErrorState is nil, want a record of the failure")
	}
	if st.Attempts != 3 {
		t.Errorf("ErrorState.Attempts = %d, want 3", st.Attempts)
	}
	if st.CanRetry {
		t.Error("ErrorState.CanRetry = true after exhaustion, want false")
	}
}

func TestController_Do_CancelDuringBackoff(t *testing.T) {
	c := NewController(Config{MaxAttempts: 3, BaseDelay: 5 * time.Second}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	calls := 0
	start := time.Now()
	err := c.Do(ctx, "iss-1", func(ctx context.Context) error {
		calls++
		return errors.NewExecutionError(errors.KindNetwork, "connection reset", nil)
	})
	elapsed := time.Since(start)

	if elapsed > 2*time.Second {
		t.Fatalf("Do took %v, want a prompt return on cancellation", elapsed)
	}
	if calls != 1 {
		t.Errorf("fn called %d times, want 1", calls)
	}

	var execErr *errors.ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("Do returned %T, want *errors.ExecutionError", err)
	}
	if execErr.Kind != errors.KindCancelled {
		t.Errorf("Kind = %q, want %q", execErr.Kind, errors.KindCancelled)
	}
	if execErr.IssueID != "iss-1" {
		t.Errorf("IssueID = %q, want %q", execErr.IssueID, "iss-1")
	}
}

func TestController_ErrorStates_DeepCopy(t *testing.T) {
	c := NewController(DefaultConfig(), nil, nil)
	c.record("iss-1", errors.New("boom"), 1, true)

	states := c.ErrorStates()
	if len(states) != 1 {
		t.Fatalf("ErrorStates returned %d entries, want 1", len(states))
	}
	states["iss-1"].Attempts = 99
	states["iss-2"] = &ErrorState{IssueID: "iss-2"}

	fresh := c.ErrorState("iss-1")
	if fresh == nil {
		t.Fatal("ErrorState(iss-1) is nil")
	}
	if fresh.Attempts != 1 {
		t.Errorf("mutation leaked: Attempts = %d, want 1", fresh.Attempts)
	}
	if c.ErrorState("iss-2") != nil {
		t.Error("mutation leaked: iss-2 appeared in the controller")
	}

	fresh.CanRetry = false
	again := c.ErrorState("iss-1")
	if !again.CanRetry {
		t.Error("mutation of returned state leaked back into the controller")
	}
}
