package cmd

import (
	"context"

	"github.com/dinoki-ai/osagent/internal/orchestrator"
	"github.com/spf13/cobra"
)

var resumeCmd = &cobra.Command{
	Use:   "resume <issue-id>",
	Short: "Resume a previously created issue",
	Long: `Resume a previously created issue.

The issue's prior result, if any, is folded into its context so the
model knows what already happened. Seeing issues from earlier runs
requires a persistent store (store.dir in the config).

Examples:
  # Pick a reopened issue back up
  osagent resume 4f1c22d8-9c1e-4f2a-b111-2f6e7a9d3c41`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

var (
	resumeNoRetry bool
	resumeJSON    bool
)

func init() {
	rootCmd.AddCommand(resumeCmd)

	resumeCmd.Flags().BoolVar(&resumeNoRetry, "no-retry", false, "Disable automatic retry of transient failures")
	resumeCmd.Flags().BoolVar(&resumeJSON, "json", false, "Print the result as JSON")
}

func runResume(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	issueID := args[0]
	return executeIssue(cfg, resumeNoRetry, resumeJSON, func(ctx context.Context, rt *runtime) (*orchestrator.ExecutionResult, error) {
		return rt.coord.Resume(ctx, issueID)
	})
}
