package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/dinoki-ai/osagent/internal/config"
	"github.com/dinoki-ai/osagent/internal/errors"
	"github.com/dinoki-ai/osagent/internal/event"
	"github.com/dinoki-ai/osagent/internal/issue"
	"github.com/dinoki-ai/osagent/internal/logging"
	"github.com/dinoki-ai/osagent/internal/model"
	"github.com/dinoki-ai/osagent/internal/orchestrator/decompose"
	"github.com/dinoki-ai/osagent/internal/orchestrator/executor"
	"github.com/dinoki-ai/osagent/internal/orchestrator/plan"
	"github.com/dinoki-ai/osagent/internal/orchestrator/verify"
	"github.com/dinoki-ai/osagent/internal/tool"
)

// pendingClarification is the captured context of a suspended run. exec
// is non-nil when the suspension happened mid-execution and carries the
// conversation to resume; a nil exec means planning asked the question
// and the answer re-drives planning.
type pendingClarification struct {
	issueID string
	request *plan.ClarificationRequest
	exec    *executor.State
	askedAt time.Time
}

// Coordinator sequences plan, execution, and verification for one issue
// at a time. All mutable state sits behind a single mutex; everything
// else is owned by the goroutine currently executing.
type Coordinator struct {
	store    issue.Store
	client   model.Client
	registry *tool.Registry

	cfg    *config.Config
	skills []tool.Skill
	bus    *event.Bus
	log    *logging.Logger

	builder    *plan.Builder
	executor   *executor.Executor
	verifier   *verify.Verifier
	decomposer *decompose.Decomposer

	mu        sync.Mutex
	state     State
	currentID string
	cancelRun context.CancelFunc
	pending   *pendingClarification
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(log *logging.Logger) Option {
	return func(c *Coordinator) {
		if log != nil {
			c.log = log
		}
	}
}

// WithBus sets the event bus receiving lifecycle events.
func WithBus(bus *event.Bus) Option {
	return func(c *Coordinator) {
		c.bus = bus
	}
}

// WithConfig sets the configuration. Defaults apply when omitted.
func WithConfig(cfg *config.Config) Option {
	return func(c *Coordinator) {
		if cfg != nil {
			c.cfg = cfg
		}
	}
}

// WithSkills sets the skill catalog offered to the planner.
func WithSkills(skills []tool.Skill) Option {
	return func(c *Coordinator) {
		c.skills = skills
	}
}

// New creates a Coordinator. All three dependencies must be non-nil.
func New(store issue.Store, client model.Client, registry *tool.Registry, opts ...Option) *Coordinator {
	if store == nil {
		panic("orchestrator.New: store must not be nil")
	}
	if client == nil {
		panic("orchestrator.New: client must not be nil")
	}
	if registry == nil {
		panic("orchestrator.New: registry must not be nil")
	}

	c := &Coordinator{
		store:    store,
		client:   client,
		registry: registry,
		cfg:      config.Default(),
		log:      logging.NopLogger(),
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}

	// Sub-components tag their own component; keep the raw logger for them.
	base := c.log
	c.log = base.WithComponent("orchestrator")

	params := modelParams(c.cfg)
	c.builder = plan.NewBuilder(client, plan.Config{
		Params:       params,
		MaxToolCalls: c.cfg.Execution.MaxToolCalls,
	}, base)
	c.executor = executor.New(client, registry, store, c.bus, executor.Config{
		Params:            params,
		MaxIterations:     c.cfg.Execution.MaxIterations,
		MaxToolCalls:      c.cfg.Execution.MaxToolCalls,
		ToolTimeout:       c.cfg.Execution.ToolTimeout(),
		StepToolBudget:    c.cfg.Execution.StepToolBudget,
		MaxTextOnly:       c.cfg.Execution.MaxTextOnly,
		MaxTokensPerIssue: int(c.cfg.Execution.MaxTokensPerIssue),
	}, base)
	c.verifier = verify.NewVerifier(client, verify.Config{Params: params}, base)
	c.decomposer = decompose.NewDecomposer(store, c.bus, base)
	return c
}

// modelParams projects the model config onto completion parameters.
func modelParams(cfg *config.Config) model.Params {
	p := model.Params{
		Model:       cfg.Model.Name,
		Temperature: cfg.Model.Temperature,
		MaxTokens:   cfg.Model.MaxTokens,
	}
	if cfg.Model.TopP > 0 {
		tp := cfg.Model.TopP
		p.TopP = &tp
	}
	return p
}

// State returns the coordinator's current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CurrentIssueID returns the id of the executing or suspended issue, or
// an empty string when idle.
func (c *Coordinator) CurrentIssueID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentID
}

// Pending returns a copy of the clarification the coordinator is
// waiting on, or nil when none is pending.
func (c *Coordinator) Pending() *plan.ClarificationRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return nil
	}
	cp := *c.pending.request
	cp.Options = append([]string(nil), cp.Options...)
	return &cp
}

// Cancel stops the active run and clears any suspended clarification.
// A cancelled loop observes the context at its next iteration boundary
// and reports a cancellation error, never a false success.
func (c *Coordinator) Cancel() error {
	c.mu.Lock()
	cancel := c.cancelRun
	var suspendedID string
	if c.state == StateAwaitingClarification {
		if c.pending != nil {
			suspendedID = c.pending.issueID
		}
		c.pending = nil
		c.state = StateIdle
		c.currentID = ""
	}
	c.mu.Unlock()

	// While a run is in flight the executing goroutine performs the state
	// transition once it observes the cancellation.
	if cancel != nil {
		cancel()
	}

	if suspendedID != "" {
		c.publish(event.NewIssueFailedEvent(suspendedID, errors.ErrCancelled.Error()))
		c.noteFailure(context.Background(), suspendedID, errors.ErrCancelled)
		c.log.Info("suspended clarification cancelled", "issue", suspendedID)
	}
	return nil
}

// begin acquires the single-flight slot and derives the run context.
func (c *Coordinator) begin(ctx context.Context, issueID string) (context.Context, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateIdle {
		return nil, errors.ErrAlreadyExecuting
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.state = StateExecuting
	c.currentID = issueID
	c.cancelRun = cancel
	return runCtx, nil
}

// end releases the single-flight slot. A run that suspended keeps the
// slot in AwaitingClarification unless Cancel already cleared it.
func (c *Coordinator) end(suspended bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancelRun != nil {
		c.cancelRun()
		c.cancelRun = nil
	}
	if suspended && c.pending != nil {
		c.state = StateAwaitingClarification
		return
	}
	c.pending = nil
	c.state = StateIdle
	c.currentID = ""
}

// suspend captures the clarification the run is blocked on.
func (c *Coordinator) suspend(issueID string, req *plan.ClarificationRequest, st *executor.State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = &pendingClarification{
		issueID: issueID,
		request: req,
		exec:    st,
		askedAt: time.Now(),
	}
}

// takePending consumes the suspension for the given issue and re-enters
// Executing. The consumption happens exactly once: a second call, or a
// call with a mismatched issue id, fails.
func (c *Coordinator) takePending(ctx context.Context, issueID string) (*pendingClarification, context.Context, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateAwaitingClarification || c.pending == nil || c.pending.issueID != issueID {
		return nil, nil, errors.ErrNoPendingClarification
	}
	pend := c.pending
	c.pending = nil
	runCtx, cancel := context.WithCancel(ctx)
	c.state = StateExecuting
	c.currentID = issueID
	c.cancelRun = cancel
	return pend, runCtx, nil
}

func (c *Coordinator) publish(ev event.Event) {
	if c.bus != nil {
		c.bus.Publish(ev)
	}
}
