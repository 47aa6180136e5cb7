// Package retry wraps execution attempts with exponential backoff. It
// tracks per-issue error state while failures are outstanding and
// clears it on success, so callers can inspect what is still broken.
package retry

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/dinoki-ai/osagent/internal/errors"
	"github.com/dinoki-ai/osagent/internal/event"
	"github.com/dinoki-ai/osagent/internal/logging"
)

// Defaults applied by NewController when the config leaves fields unset.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 1 * time.Second
	DefaultMaxDelay    = 30 * time.Second
	DefaultMultiplier  = 2.0
)

// Config bounds the retry loop.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
}

// DefaultConfig returns the standard backoff configuration.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		MaxDelay:    DefaultMaxDelay,
		Multiplier:  DefaultMultiplier,
	}
}

// Delay returns the pause before the given 1-based attempt. The first
// attempt is immediate; later attempts back off exponentially, capped
// at MaxDelay.
func (c Config) Delay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	d := time.Duration(float64(c.BaseDelay) * math.Pow(c.Multiplier, float64(attempt-1)))
	// Large exponents overflow into negative durations.
	if d > c.MaxDelay || d < 0 {
		return c.MaxDelay
	}
	return d
}

// ErrorState is the per-issue record of outstanding failures. It exists
// only while an issue keeps failing; success removes it.
type ErrorState struct {
	IssueID     string
	LastError   string
	Attempts    int
	LastAttempt time.Time

	// CanRetry reports whether another attempt remains for this issue.
	CanRetry bool
}

// Controller retries retriable failures with exponential backoff.
// Safe for concurrent use, though attempts for one issue are expected
// to run one at a time.
type Controller struct {
	cfg Config
	bus *event.Bus
	log *logging.Logger

	mu     sync.RWMutex
	states map[string]*ErrorState
}

// NewController creates a Controller. The bus may be nil; a nil logger
// disables logging.
func NewController(cfg Config, bus *event.Bus, log *logging.Logger) *Controller {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultMaxDelay
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = DefaultMultiplier
	}
	if log == nil {
		log = logging.NopLogger()
	}
	return &Controller{
		cfg:    cfg,
		bus:    bus,
		log:    log.WithComponent("retry"),
		states: make(map[string]*ErrorState),
	}
}

// Do runs fn until it succeeds, fails with a non-retriable error, or
// exhausts the attempt budget. Every failed attempt records an
// ErrorState; success clears it. The backoff sleep is interruptible by
// the context.
func (c *Controller) Do(ctx context.Context, issueID string, fn func(context.Context) error) error {
	var last error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if delay := c.cfg.Delay(attempt); delay > 0 {
			if err := c.sleep(ctx, issueID, delay); err != nil {
				return err
			}
		}

		err := fn(ctx)
		if err == nil {
			c.clear(issueID)
			return nil
		}
		last = err

		retriable := errors.IsRetryable(err)
		canRetry := retriable && attempt < c.cfg.MaxAttempts
		c.record(issueID, err, attempt, canRetry)

		if !retriable {
			c.log.Debug("failure is not retriable", "issue", issueID, "error", err)
			return err
		}
		if canRetry {
			next := c.cfg.Delay(attempt + 1)
			if c.bus != nil {
				c.bus.Publish(event.NewRetryScheduledEvent(issueID, attempt, c.cfg.MaxAttempts, next.String(), err.Error()))
			}
			c.log.Warn("attempt failed, retrying",
				"issue", issueID,
				"attempt", attempt,
				"max", c.cfg.MaxAttempts,
				"delay", next,
				"error", err)
		}
	}

	c.log.Error("attempts exhausted", "issue", issueID, "attempts", c.cfg.MaxAttempts, "error", last)
	return errors.NewMaxRetriesExceeded(c.cfg.MaxAttempts, last)
}

func (c *Controller) sleep(ctx context.Context, issueID string, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return errors.NewExecutionError(errors.KindCancelled, "retry wait cancelled", ctx.Err()).WithIssueID(issueID)
	}
}

func (c *Controller) record(issueID string, err error, attempts int, canRetry bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states[issueID] = &ErrorState{
		IssueID:     issueID,
		LastError:   err.Error(),
		Attempts:    attempts,
		LastAttempt: time.Now(),
		CanRetry:    canRetry,
	}
}

func (c *Controller) clear(issueID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.states, issueID)
}

// ErrorState returns a copy of the outstanding failure record for an
// issue, or nil when the issue has none.
func (c *Controller) ErrorState(issueID string) *ErrorState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.states[issueID]
	if !ok {
		return nil
	}
	cp := *s
	return &cp
}

// ErrorStates returns a deep copy of all outstanding failure records.
func (c *Controller) ErrorStates() map[string]*ErrorState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]*ErrorState, len(c.states))
	for k, v := range c.states {
		cp := *v
		out[k] = &cp
	}
	return out
}
