package cmd

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/dinoki-ai/osagent/internal/orchestrator"
	"github.com/dinoki-ai/osagent/internal/tool"
	"github.com/dinoki-ai/osagent/internal/util"
)

// promptClarifications answers clarification suspensions interactively
// until execution settles. Each answer resumes the captured conversation
// in-process, so the model keeps the context it had when it asked.
func (rt *runtime) promptClarifications(ctx context.Context, res *orchestrator.ExecutionResult, in *bufio.Scanner) (*orchestrator.ExecutionResult, error) {
	for res != nil && res.Clarification != nil {
		req := res.Clarification
		fmt.Printf("\n%s? %s%s\n", colorYellow, req.Question, colorReset)
		if req.Context != "" {
			fmt.Printf("%s  %s%s\n", colorGray, req.Context, colorReset)
		}
		for i, opt := range req.Options {
			fmt.Printf("  %d. %s\n", i+1, opt)
		}
		fmt.Print("> ")

		if !in.Scan() {
			// Input is gone; release the suspension so the issue is not
			// stranded in_progress, and point at the offline path.
			rt.coord.Cancel()
			fmt.Printf("\nAnswer later with: osagent clarify %s \"<answer>\"\n", res.IssueID)
			return res, nil
		}
		answer := resolveAnswer(in.Text(), req.Options)
		if answer == "" {
			continue
		}

		var err error
		res, err = rt.coord.ProvideClarification(ctx, res.IssueID, answer)
		if err != nil {
			return res, err
		}
	}
	return res, nil
}

// resolveAnswer trims the input and maps a bare option number to its
// option text, so "2" with options [alpha, beta] answers "beta".
func resolveAnswer(input string, options []string) string {
	answer := strings.TrimSpace(input)
	if n, err := strconv.Atoi(answer); err == nil && n >= 1 && n <= len(options) {
		return options[n-1]
	}
	return answer
}

// stdinApprover prompts for tools whose permission policy is "ask". It
// shares the command's stdin scanner with the clarification prompt.
func stdinApprover(in *bufio.Scanner) tool.ApproverFunc {
	return func(ctx context.Context, name, argsJSON, issueID string) (bool, error) {
		fmt.Printf("\n%s? Allow tool %s?%s %s [y/N] ", colorYellow, name, colorReset, util.TruncateString(argsJSON, 120))
		if !in.Scan() {
			return false, nil
		}
		switch strings.ToLower(strings.TrimSpace(in.Text())) {
		case "y", "yes":
			return true, nil
		}
		return false, nil
	}
}
