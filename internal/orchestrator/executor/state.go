package executor

import (
	"fmt"
	"strings"

	"github.com/dinoki-ai/osagent/internal/issue"
	"github.com/dinoki-ai/osagent/internal/model"
	"github.com/dinoki-ai/osagent/internal/tool"
)

// defaultSystemPrompt frames the reasoning loop. NewState uses it when
// no prompt is supplied; selected skills are appended either way.
const defaultSystemPrompt = `You are an autonomous agent working through a task. Use the available tools to make progress, one concrete action at a time. Call task_complete with a summary when the goal is met, or ask_user if you are blocked on a decision only the user can make. Tool failures come back as [REJECTED] or [TIMEOUT] messages; read them and adjust.`

// State is the mutable conversation state of one execution run. It
// survives a clarification suspension: the coordinator holds it, appends
// the user's answer, and hands it back to Run.
type State struct {
	Issue    *issue.Issue
	Messages []model.Message

	// Tools is the catalog offered to the model, meta-tools included.
	Tools []model.ToolDefinition

	Usage UsageTracker

	// textOnly counts consecutive iterations without a tool call.
	textOnly int
}

// NewState builds the starting conversation for an issue: a system
// prompt with skill instructions folded in, then a user message carrying
// the issue itself.
func NewState(iss *issue.Issue, systemPrompt string, tools []model.ToolDefinition, skills []tool.Skill, maxTokens int) *State {
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}
	return &State{
		Issue: iss,
		Messages: []model.Message{
			model.SystemMessage(composeSystemPrompt(systemPrompt, skills)),
			model.UserMessage(buildTaskMessage(iss)),
		},
		Tools: tools,
		Usage: UsageTracker{MaxTokens: maxTokens},
	}
}

// AppendUserMessage adds a user turn, typically a clarification answer
// supplied while the run was suspended.
func (s *State) AppendUserMessage(content string) {
	s.Messages = append(s.Messages, model.UserMessage(content))
}

func composeSystemPrompt(base string, skills []tool.Skill) string {
	if len(skills) == 0 {
		return base
	}
	var sb strings.Builder
	sb.WriteString(base)
	sb.WriteString("\n\nApply the following skills while working:\n")
	for _, sk := range skills {
		fmt.Fprintf(&sb, "\n## Skill: %s\n", sk.Name)
		if sk.Description != "" {
			sb.WriteString(sk.Description)
			sb.WriteString("\n")
		}
		if sk.Instructions != "" {
			sb.WriteString(sk.Instructions)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func buildTaskMessage(iss *issue.Issue) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Task: %s\n\n", iss.Title)
	if desc := strings.TrimSpace(iss.Description); desc != "" {
		sb.WriteString(desc)
		sb.WriteString("\n\n")
	}
	if prior := strings.TrimSpace(iss.Context); prior != "" {
		sb.WriteString("## Prior Context\n\n")
		sb.WriteString(prior)
		sb.WriteString("\n\n")
	}
	sb.WriteString("Work through this now. Take one action at a time and finish with task_complete.")
	return sb.String()
}
