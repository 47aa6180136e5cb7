// Package verify judges whether an executed issue achieved its goal. The
// verdict drives the issue lifecycle: achieved closes, partial closes
// with a follow-up, not achieved reopens.
package verify

import (
	"context"
	"fmt"
	"strings"

	"github.com/dinoki-ai/osagent/internal/errors"
	"github.com/dinoki-ai/osagent/internal/issue"
	"github.com/dinoki-ai/osagent/internal/logging"
	"github.com/dinoki-ai/osagent/internal/model"
	"github.com/dinoki-ai/osagent/internal/util"
)

// Status is the verifier's verdict on an issue's goal.
type Status int

const (
	// StatusAchieved means the goal was met in full.
	StatusAchieved Status = iota
	// StatusPartial means some of the goal was met and work remains.
	StatusPartial
	// StatusNotAchieved means the goal was not met.
	StatusNotAchieved
)

// String returns the verdict name.
func (s Status) String() string {
	switch s {
	case StatusAchieved:
		return "achieved"
	case StatusPartial:
		return "partial"
	case StatusNotAchieved:
		return "not_achieved"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Result is one parsed verdict.
type Result struct {
	Status  Status
	Summary string

	// Remaining describes outstanding work. Empty means nothing remains;
	// for a partial verdict it seeds the follow-up issue.
	Remaining string
}

// transcriptMessageLimit caps each rendered message so tool output
// cannot blow up the verification prompt.
const transcriptMessageLimit = 1000

const defaultSystemPrompt = `You are a strict verification judge. You review an agent's work transcript and decide whether the stated goal was achieved. Respond with exactly three lines:
STATUS: YES, NO, or PARTIAL
SUMMARY: one or two sentences on what was accomplished
REMAINING: what still needs doing, or "none"`

// Config adjusts how verdicts are requested.
type Config struct {
	// Params are the completion parameters for the judge call.
	Params model.Params

	// SystemPrompt overrides the default judge framing.
	SystemPrompt string
}

// Verifier asks the model for a verdict on a finished run.
type Verifier struct {
	client model.Client
	cfg    Config
	log    *logging.Logger
}

// NewVerifier creates a Verifier. A nil logger disables logging.
func NewVerifier(client model.Client, cfg Config, log *logging.Logger) *Verifier {
	if client == nil {
		panic("verify.NewVerifier: client must not be nil")
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = defaultSystemPrompt
	}
	if log == nil {
		log = logging.NopLogger()
	}
	return &Verifier{
		client: client,
		cfg:    cfg,
		log:    log.WithComponent("verify"),
	}
}

// Verify judges the conversation against the issue's goal. Completion
// failures come back as retryable verification errors; an unparseable
// verdict does not fail, it degrades to a partial result.
func (v *Verifier) Verify(ctx context.Context, iss *issue.Issue, conversation []model.Message) (*Result, error) {
	msgs := []model.Message{
		model.SystemMessage(v.cfg.SystemPrompt),
		model.UserMessage(buildVerifyPrompt(iss, conversation)),
	}

	raw, err := v.client.Complete(ctx, msgs, v.cfg.Params)
	if err != nil {
		return nil, errors.NewExecutionError(errors.KindVerification, "verification failed", err).WithIssueID(iss.ID)
	}

	res := parseVerdict(raw)
	v.log.Info("verification verdict",
		"issue", iss.ID,
		"status", res.Status.String(),
		"remaining", res.Remaining != "")
	return res, nil
}

// parseVerdict extracts STATUS / SUMMARY / REMAINING by line prefix,
// first occurrence of each. A STATUS containing YES is achieved, one
// containing NO is not achieved, and anything else, a missing line
// included, is partial: when the judge is unclear the issue closes with
// a follow-up rather than flapping between open and closed.
func parseVerdict(raw string) *Result {
	res := &Result{Status: StatusPartial}
	var haveStatus, haveSummary, haveRemaining bool

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		upper := strings.ToUpper(line)
		switch {
		case !haveStatus && strings.HasPrefix(upper, "STATUS:"):
			haveStatus = true
			value := upper[len("STATUS:"):]
			switch {
			case strings.Contains(value, "YES"):
				res.Status = StatusAchieved
			case strings.Contains(value, "NO"):
				res.Status = StatusNotAchieved
			}
		case !haveSummary && strings.HasPrefix(upper, "SUMMARY:"):
			haveSummary = true
			res.Summary = strings.TrimSpace(line[len("SUMMARY:"):])
		case !haveRemaining && strings.HasPrefix(upper, "REMAINING:"):
			haveRemaining = true
			remaining := strings.TrimSpace(line[len("REMAINING:"):])
			if !strings.EqualFold(remaining, "none") {
				res.Remaining = remaining
			}
		}
	}

	if res.Summary == "" {
		res.Summary = strings.TrimSpace(raw)
	}
	if res.Summary == "" {
		res.Summary = "verification produced no output"
	}
	return res
}

func buildVerifyPrompt(iss *issue.Issue, conversation []model.Message) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Goal: %s\n\n", iss.Title)
	if desc := strings.TrimSpace(iss.Description); desc != "" {
		sb.WriteString(desc)
		sb.WriteString("\n\n")
	}
	sb.WriteString("## Transcript\n\n")
	sb.WriteString(renderTranscript(conversation))
	sb.WriteString("\nJudge the transcript against the goal. Respond with the three lines only.")
	return sb.String()
}

// renderTranscript flattens the conversation into labeled lines. The
// system prompt is framing, not evidence, and is skipped.
func renderTranscript(msgs []model.Message) string {
	var sb strings.Builder
	for _, m := range msgs {
		switch m.Role {
		case model.RoleSystem:
			continue
		case model.RoleTool:
			fmt.Fprintf(&sb, "[tool] %s\n", util.TruncateString(m.Content, transcriptMessageLimit))
		case model.RoleAssistant:
			if m.Content != "" {
				fmt.Fprintf(&sb, "[assistant] %s\n", util.TruncateString(m.Content, transcriptMessageLimit))
			}
			for _, call := range m.ToolCalls {
				fmt.Fprintf(&sb, "[assistant] -> %s(%s)\n", call.Name, util.TruncateString(call.Arguments, 200))
			}
		default:
			fmt.Fprintf(&sb, "[%s] %s\n", m.Role, util.TruncateString(m.Content, transcriptMessageLimit))
		}
	}
	return sb.String()
}
