package cmd

import (
	"fmt"
	"os"

	"github.com/dinoki-ai/osagent/internal/config"
	"github.com/dinoki-ai/osagent/internal/issue"
	"github.com/spf13/cobra"
)

var issuesCmd = &cobra.Command{
	Use:   "issues",
	Short: "List issues in the state store",
	Long: `List issues in the state store.

By default only ready issues are shown: open issues whose children are
all closed, ordered by priority then age. Pass --all to include every
issue regardless of status.

Requires a persistent store (store.dir in the config); without one the
store is in-memory and empty between runs.

Examples:
  osagent issues
  osagent issues --all
  osagent issues --task 7d0b7f4e-5b3c-4ad1-9a27-d41f9f3f8b6c`,
	RunE: runIssues,
}

var (
	issuesTask string
	issuesAll  bool
)

func init() {
	rootCmd.AddCommand(issuesCmd)

	issuesCmd.Flags().StringVar(&issuesTask, "task", "", "Limit to issues of the given task")
	issuesCmd.Flags().BoolVar(&issuesAll, "all", false, "Include in-progress and closed issues")
}

func runIssues(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	var list []*issue.Issue
	if issuesAll {
		list, err = store.ListIssues(ctx, issuesTask)
	} else {
		list, err = store.ReadyIssues(ctx, issuesTask)
	}
	if err != nil {
		return fmt.Errorf("failed to list issues: %w", err)
	}

	if len(list) == 0 {
		fmt.Println("No issues found.")
		return nil
	}

	for _, iss := range list {
		fmt.Printf("%s  %s%-11s%s  P%d  %s\n",
			iss.ID, statusColor(iss.Status), iss.Status, colorReset, iss.Priority, iss.Title)
	}
	return nil
}

func statusColor(s issue.Status) string {
	switch s {
	case issue.StatusOpen:
		return colorYellow
	case issue.StatusInProgress:
		return colorBlue
	case issue.StatusClosed:
		return colorGreen
	default:
		return colorReset
	}
}

// openStore opens the configured state store without the rest of the
// runtime. Inspection commands need no model client or event bus.
func openStore(cfg *config.Config) (issue.Store, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}
	if dir := cfg.Store.ResolveDir(cwd); dir != "" {
		fs, err := issue.NewFileStore(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to open state store: %w", err)
		}
		return fs, nil
	}
	return issue.NewMemStore(), nil
}
