package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dinoki-ai/osagent/internal/issue"
	"github.com/dinoki-ai/osagent/internal/orchestrator"
	"github.com/spf13/cobra"
)

var clarifyCmd = &cobra.Command{
	Use:   "clarify <issue-id> <answer>...",
	Short: "Answer a question the agent asked and continue the issue",
	Long: `Answer a question the agent asked and continue the issue.

Use this when the process that asked is gone: the answer is appended to
the issue's stored context as a Q/A block and the issue is re-planned
from that enriched context. Requires a persistent store (store.dir in
the config). While the asking process is still alive, answering at its
prompt keeps the original conversation instead.

Examples:
  osagent clarify 4f1c22d8-9c1e-4f2a-b111-2f6e7a9d3c41 use the staging cluster`,
	Args: cobra.MinimumNArgs(2),
	RunE: runClarify,
}

var (
	clarifyNoRetry bool
	clarifyJSON    bool
)

func init() {
	rootCmd.AddCommand(clarifyCmd)

	clarifyCmd.Flags().BoolVar(&clarifyNoRetry, "no-retry", false, "Disable automatic retry of transient failures")
	clarifyCmd.Flags().BoolVar(&clarifyJSON, "json", false, "Print the result as JSON")
}

func runClarify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	issueID := args[0]
	answer := strings.Join(args[1:], " ")

	return executeIssue(cfg, clarifyNoRetry, clarifyJSON, func(ctx context.Context, rt *runtime) (*orchestrator.ExecutionResult, error) {
		if err := recordAnswer(ctx, rt.store, issueID, answer); err != nil {
			return nil, err
		}
		return rt.coord.Resume(ctx, issueID)
	})
}

// recordAnswer appends the answer to the stored issue's context against
// the question the agent last asked, and mirrors the pair onto the
// audit trail the way an in-process answer would be recorded.
func recordAnswer(ctx context.Context, store issue.Store, issueID, answer string) error {
	iss, err := store.GetIssue(ctx, issueID)
	if err != nil {
		return err
	}

	events, err := store.ListEvents(ctx, issueID)
	if err != nil {
		return err
	}
	question := pendingQuestion(events)
	if question == "" {
		return fmt.Errorf("issue %s has no unanswered clarification", issueID)
	}

	iss.AppendClarification(question, answer)
	if err := store.UpdateIssue(ctx, iss); err != nil {
		return fmt.Errorf("failed to persist clarification answer: %w", err)
	}

	ev := issue.NewAuditEvent(iss.TaskID, iss.ID, issue.KindClarification, map[string]string{
		"question": question,
		"answer":   answer,
		"phase":    "answered",
	})
	if err := store.AppendEvent(ctx, ev); err != nil {
		return fmt.Errorf("failed to record clarification answer: %w", err)
	}
	return nil
}

// pendingQuestion returns the most recent clarification question with no
// recorded answer, or "" when none is outstanding.
func pendingQuestion(events []*issue.AuditEvent) string {
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Kind != issue.KindClarification {
			continue
		}
		var p struct {
			Question string `json:"question"`
			Answer   string `json:"answer"`
		}
		if err := json.Unmarshal(events[i].Payload, &p); err != nil {
			continue
		}
		if p.Answer != "" {
			return ""
		}
		return p.Question
	}
	return ""
}
