package cmd

import (
	"fmt"

	"github.com/dinoki-ai/osagent/internal/issue"
	"github.com/dinoki-ai/osagent/internal/util"
	"github.com/spf13/cobra"
)

var eventsCmd = &cobra.Command{
	Use:   "events <issue-id>",
	Short: "Show the audit trail of an issue",
	Long: `Show the audit trail of an issue.

Every plan, tool call, clarification, verification verdict, and
decomposition is recorded against the issue as it executes. The trail
explains what the agent did and why an issue ended up in its current
state.

Examples:
  osagent events 4f1c22d8-9c1e-4f2a-b111-2f6e7a9d3c41`,
	Args: cobra.ExactArgs(1),
	RunE: runEvents,
}

func init() {
	rootCmd.AddCommand(eventsCmd)
}

func runEvents(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	iss, err := store.GetIssue(ctx, args[0])
	if err != nil {
		return err
	}

	events, err := store.ListEvents(ctx, iss.ID)
	if err != nil {
		return fmt.Errorf("failed to list events: %w", err)
	}

	fmt.Printf("%s  %s%s%s\n", iss.Title, statusColor(iss.Status), iss.Status, colorReset)
	if len(events) == 0 {
		fmt.Println("No events recorded.")
		return nil
	}

	for _, ev := range events {
		fmt.Printf("%s[%s]%s %s%s%s %s\n",
			colorGray, ev.CreatedAt.Format("15:04:05"), colorReset,
			kindColor(ev.Kind), ev.Kind, colorReset,
			util.TruncateString(string(ev.Payload), 160))
	}
	return nil
}

func kindColor(kind string) string {
	switch kind {
	case issue.KindPlanCreated, issue.KindVerification:
		return colorBlue
	case issue.KindToolCall, issue.KindDecomposition:
		return colorCyan
	case issue.KindClarification:
		return colorYellow
	case issue.KindCompletion:
		return colorGreen
	default:
		return colorReset
	}
}
