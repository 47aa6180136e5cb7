package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/dinoki-ai/osagent/internal/config"
	"github.com/dinoki-ai/osagent/internal/errors"
	"github.com/dinoki-ai/osagent/internal/event"
	"github.com/dinoki-ai/osagent/internal/issue"
	"github.com/dinoki-ai/osagent/internal/logging"
	"github.com/dinoki-ai/osagent/internal/model"
	"github.com/dinoki-ai/osagent/internal/orchestrator"
	"github.com/dinoki-ai/osagent/internal/orchestrator/retry"
	"github.com/dinoki-ai/osagent/internal/tool"
)

// runtime bundles the wired components behind every issue-executing
// command: config, logger, store, event bus, optional NATS publisher,
// and the coordinator itself.
type runtime struct {
	cfg   *config.Config
	log   *logging.Logger
	store issue.Store
	bus   *event.Bus
	coord *orchestrator.Coordinator

	pub *event.NATSPublisher
}

// loadConfig resolves the effective configuration and rejects invalid
// values before any component is built.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newRuntime wires a full agent runtime from cfg. The approver handles
// "ask"-policy tools; a nil approver denies them, which is what
// non-interactive modes want.
func newRuntime(cfg *config.Config, approver tool.Approver) (*runtime, error) {
	log := logging.NopLogger()
	if cfg.Logging.Enabled {
		var err error
		log, err = logging.NewWithRotation(cfg.Logging.ResolveFile(), logging.ParseLevel(cfg.Logging.Level), logging.RotationConfig{
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			Compress:   cfg.Logging.Compress,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}

	var store issue.Store
	if dir := cfg.Store.ResolveDir(cwd); dir != "" {
		store, err = issue.NewFileStore(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to open state store: %w", err)
		}
	} else {
		store = issue.NewMemStore()
	}

	registry := tool.NewRegistry()
	if err := tool.RegisterFileTools(registry, cfg.Tools.Root); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}
	registry.ApplyPolicies(cfg.Tools.Policies)
	if approver != nil {
		registry.SetApprover(approver)
	}

	skills, err := loadSkills(cfg)
	if err != nil {
		return nil, err
	}

	bus := event.NewBus()

	var pub *event.NATSPublisher
	if cfg.Events.NATSURL != "" {
		pub, err = event.NewNATSPublisher(bus, cfg.Events.NATSURL, cfg.Events.SubjectPrefix, log)
		if err != nil {
			// Event publishing is best effort; the run proceeds without it.
			log.Warn("nats publishing disabled", "url", cfg.Events.NATSURL, "error", err)
			pub = nil
		}
	}

	client := model.NewOpenAIClient(model.ClientConfig{
		BaseURL: cfg.Model.BaseURL,
		APIKey:  cfg.Model.APIKey,
		Timeout: cfg.Model.RequestTimeout(),
	})

	coord := orchestrator.New(store, client, registry,
		orchestrator.WithConfig(cfg),
		orchestrator.WithLogger(log),
		orchestrator.WithBus(bus),
		orchestrator.WithSkills(skills),
	)

	return &runtime{
		cfg:   cfg,
		log:   log,
		store: store,
		bus:   bus,
		coord: coord,
		pub:   pub,
	}, nil
}

// Close releases the runtime's external resources.
func (rt *runtime) Close() {
	if rt.pub != nil {
		rt.pub.Close()
	}
	_ = rt.log.Close()
}

// loadSkills merges the optional skill-pack file with skills declared
// inline in the config. Inline declarations win on name collisions.
func loadSkills(cfg *config.Config) ([]tool.Skill, error) {
	declared := make([]tool.Skill, 0, len(cfg.Skills))
	for _, sc := range cfg.Skills {
		declared = append(declared, tool.Skill{
			Name:         sc.Name,
			Description:  sc.Description,
			Instructions: sc.Prompt,
		})
	}

	fromFile, err := tool.LoadSkills(cfg.SkillsFile)
	if err != nil {
		return nil, err
	}

	return tool.MergeSkills(fromFile, declared), nil
}

// runAttempts executes invoke, then retries while the failure is
// retriable. Run and Next only learn their issue ID from the first
// attempt, so later attempts go through Resume instead of repeating the
// original operation, which would create duplicate work.
func (rt *runtime) runAttempts(ctx context.Context, noRetry bool, invoke func(context.Context) (*orchestrator.ExecutionResult, error)) (*orchestrator.ExecutionResult, error) {
	res, err := invoke(ctx)
	if err == nil || noRetry || !errors.IsRetryable(err) {
		return res, err
	}

	issueID := failedIssueID(err)
	if issueID == "" {
		return res, err
	}

	// The attempt above consumed one slot of the configured budget.
	remaining := rt.cfg.Retry.MaxAttempts - 1
	if remaining < 1 {
		return res, err
	}

	ctl := retry.NewController(retry.Config{
		MaxAttempts: remaining,
		BaseDelay:   rt.cfg.Retry.BaseDelay(),
		MaxDelay:    rt.cfg.Retry.MaxDelay(),
		Multiplier:  rt.cfg.Retry.Multiplier,
	}, rt.bus, rt.log)

	if derr := ctl.Do(ctx, issueID, func(ctx context.Context) error {
		var aerr error
		res, aerr = rt.coord.Resume(ctx, issueID)
		return aerr
	}); derr != nil {
		return res, derr
	}
	return res, nil
}

// failedIssueID extracts the issue a failure belongs to, when the error
// carries one.
func failedIssueID(err error) string {
	var execErr *errors.ExecutionError
	if errors.As(err, &execErr) {
		return execErr.IssueID
	}
	return ""
}
