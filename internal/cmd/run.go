package cmd

import (
	"bufio"
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dinoki-ai/osagent/internal/config"
	"github.com/dinoki-ai/osagent/internal/orchestrator"
	"github.com/dinoki-ai/osagent/internal/tool"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run \"<query>\"",
	Short: "Execute a task from a natural language query",
	Long: `Execute a task from a natural language query.

The first line of the query becomes the issue title; the rest becomes
its description. The agent plans the issue, executes the plan with
tools, verifies the outcome against the goal, and closes the issue when
the goal is met. If the agent needs input it asks on stdin.

Examples:
  # Let the agent work a task end to end
  osagent run "Write a haiku about autumn to haiku.txt"

  # Override the configured model for one run
  osagent run -m llama-3.2-3b "List the files in this directory"

  # Machine-readable result for scripting
  osagent run --json "Summarize notes.md"`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

var (
	runModel         string
	runMaxIterations int
	runMaxToolCalls  int
	runToolTimeout   int
	runNoRetry       bool
	runJSON          bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runModel, "model", "m", "", "Model name override")
	runCmd.Flags().IntVar(&runMaxIterations, "max-iterations", 0, "Maximum model round-trips per issue")
	runCmd.Flags().IntVar(&runMaxToolCalls, "max-tool-calls", 0, "Maximum tool executions per issue")
	runCmd.Flags().IntVar(&runToolTimeout, "tool-timeout", 0, "Per-tool timeout in seconds")
	runCmd.Flags().BoolVar(&runNoRetry, "no-retry", false, "Disable automatic retry of transient failures")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Print the result as JSON")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyRunFlags(cmd, cfg)

	query := args[0]
	return executeIssue(cfg, runNoRetry, runJSON, func(ctx context.Context, rt *runtime) (*orchestrator.ExecutionResult, error) {
		return rt.coord.Run(ctx, query)
	})
}

// applyRunFlags folds explicit command line overrides into the config.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("model") {
		cfg.Model.Name = runModel
	}
	if cmd.Flags().Changed("max-iterations") {
		cfg.Execution.MaxIterations = runMaxIterations
	}
	if cmd.Flags().Changed("max-tool-calls") {
		cfg.Execution.MaxToolCalls = runMaxToolCalls
	}
	if cmd.Flags().Changed("tool-timeout") {
		cfg.Execution.ToolTimeoutSeconds = runToolTimeout
	}
}

// executeIssue wires a runtime, runs invoke under the retry policy,
// answers clarifications interactively, and renders the result. Shared
// by run, resume, next, and clarify.
func executeIssue(cfg *config.Config, noRetry, jsonOut bool, invoke func(context.Context, *runtime) (*orchestrator.ExecutionResult, error)) error {
	in := bufio.NewScanner(os.Stdin)

	// JSON mode is for scripts; nothing may prompt, so "ask" tools deny.
	var approver tool.Approver
	if !jsonOut {
		approver = stdinApprover(in)
	}

	rt, err := newRuntime(cfg, approver)
	if err != nil {
		return err
	}
	defer rt.Close()
	watchConfig(rt.log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var printer *progressPrinter
	if !jsonOut {
		printer = newProgressPrinter(rt.bus)
	}

	res, err := rt.runAttempts(ctx, noRetry, func(ctx context.Context) (*orchestrator.ExecutionResult, error) {
		return invoke(ctx, rt)
	})
	if err == nil && !jsonOut {
		res, err = rt.promptClarifications(ctx, res, in)
	}

	if printer != nil {
		printer.Close()
	}
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(res)
	}
	printResult(res)
	return nil
}
