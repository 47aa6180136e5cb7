package cmd

import (
	"context"
	"fmt"

	"github.com/dinoki-ai/osagent/internal/errors"
	"github.com/dinoki-ai/osagent/internal/orchestrator"
	"github.com/spf13/cobra"
)

var nextCmd = &cobra.Command{
	Use:   "next [task-id]",
	Short: "Execute the highest priority open issue",
	Long: `Execute the highest priority open issue.

Open issues are ordered by priority, then age. With a task ID only that
task's backlog is considered; without one the whole backlog is. Useful
for working through the children of a decomposed issue one at a time.

Examples:
  # Execute whatever is most urgent
  osagent next

  # Stay within one task's backlog
  osagent next 8c9d1a2b-3e4f-5061-7283-94a5b6c7d8e9`,
	Args: cobra.MaximumNArgs(1),
	RunE: runNext,
}

var (
	nextNoRetry bool
	nextJSON    bool
)

func init() {
	rootCmd.AddCommand(nextCmd)

	nextCmd.Flags().BoolVar(&nextNoRetry, "no-retry", false, "Disable automatic retry of transient failures")
	nextCmd.Flags().BoolVar(&nextJSON, "json", false, "Print the result as JSON")
}

func runNext(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var taskID string
	if len(args) > 0 {
		taskID = args[0]
	}
	err = executeIssue(cfg, nextNoRetry, nextJSON, func(ctx context.Context, rt *runtime) (*orchestrator.ExecutionResult, error) {
		return rt.coord.Next(ctx, taskID)
	})
	if !nextJSON && errors.Is(err, errors.ErrNoIssueCreated) {
		fmt.Println("No open issues.")
		return nil
	}
	return err
}
