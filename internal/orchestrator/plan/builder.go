package plan

import (
	"context"
	"fmt"
	"strings"

	"github.com/dinoki-ai/osagent/internal/errors"
	"github.com/dinoki-ai/osagent/internal/issue"
	"github.com/dinoki-ai/osagent/internal/logging"
	"github.com/dinoki-ai/osagent/internal/model"
	"github.com/dinoki-ai/osagent/internal/tool"
)

// DefaultMaxToolCalls caps plan size when the config leaves it unset.
const DefaultMaxToolCalls = 10

// defaultSystemPrompt frames the planning call. Config.SystemPrompt
// overrides it.
const defaultSystemPrompt = `You are the planning stage of an autonomous agent. Break the given task into small, concrete steps that can each be carried out with a single tool invocation. Select only the tools and skills the task genuinely needs. If the task is too ambiguous to plan, ask one clarifying question instead. Respond only with JSON.`

// Config controls plan generation.
type Config struct {
	// Params are the completion parameters for the planning request.
	Params model.Params

	// MaxToolCalls is the per-issue tool budget. Step lists larger than
	// this trigger decomposition instead of a plan.
	MaxToolCalls int

	// SystemPrompt overrides the built-in planning system prompt.
	SystemPrompt string
}

// Builder generates plans by asking the model for a step breakdown.
type Builder struct {
	client model.Client
	cfg    Config
	log    *logging.Logger
}

// NewBuilder creates a Builder. A nil logger disables logging.
func NewBuilder(client model.Client, cfg Config, log *logging.Logger) *Builder {
	if cfg.MaxToolCalls <= 0 {
		cfg.MaxToolCalls = DefaultMaxToolCalls
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = defaultSystemPrompt
	}
	if log == nil {
		log = logging.NopLogger()
	}
	return &Builder{client: client, cfg: cfg, log: log.WithComponent("plan")}
}

// Build asks the model to break the issue into steps and classifies the
// result. A step list within the budget becomes a ready plan; an
// oversized list becomes a decomposition request; a clarification object
// suspends planning until the user answers. When inherited is non-nil
// the issue is a decomposition child: it keeps the parent's capability
// selection and the prompt offers no catalog to choose from.
func (b *Builder) Build(ctx context.Context, iss *issue.Issue, tools []model.ToolDefinition, skills []tool.Skill, inherited *Capabilities) (*Outcome, error) {
	msgs := []model.Message{
		model.SystemMessage(b.cfg.SystemPrompt),
		model.UserMessage(b.buildPrompt(iss, tools, skills, inherited)),
	}

	raw, err := b.client.Complete(ctx, msgs, b.cfg.Params)
	if err != nil {
		return nil, errors.NewExecutionError(errors.KindPlanGeneration, "plan generation failed", err).WithIssueID(iss.ID)
	}

	parsed := parseResponse(raw)
	if parsed.Clarification != nil {
		b.log.Info("planning suspended on clarification",
			"issue", iss.ID,
			"question", parsed.Clarification.Question)
		return &Outcome{Kind: OutcomeClarify, Clarification: parsed.Clarification}, nil
	}
	if len(parsed.Steps) == 0 {
		return nil, errors.NewExecutionError(errors.KindPlanGeneration, "plan response contained no actionable steps", nil).WithIssueID(iss.ID)
	}
	b.log.Debug("plan parsed",
		"issue", iss.ID,
		"strategy", parsed.Strategy,
		"steps", len(parsed.Steps))

	if len(parsed.Steps) > b.cfg.MaxToolCalls {
		chunks := chunkSteps(parsed.Steps, b.cfg.MaxToolCalls)
		b.log.Info("plan exceeds tool budget, decomposing",
			"issue", iss.ID,
			"steps", len(parsed.Steps),
			"chunks", len(chunks))
		return &Outcome{Kind: OutcomeDecompose, Steps: parsed.Steps, Chunks: chunks}, nil
	}

	caps := Capabilities{Tools: parsed.Tools, Skills: parsed.Skills}
	if inherited != nil {
		caps = inherited.Clone()
	}

	steps := make([]*Step, len(parsed.Steps))
	for i := range parsed.Steps {
		s := parsed.Steps[i]
		steps[i] = &s
	}
	p := &Plan{
		IssueID:      iss.ID,
		Steps:        steps,
		MaxToolCalls: b.cfg.MaxToolCalls,
		Capabilities: caps,
	}
	return &Outcome{Kind: OutcomeReady, Plan: p}, nil
}

// buildPrompt assembles the planning prompt as markdown sections.
func (b *Builder) buildPrompt(iss *issue.Issue, tools []model.ToolDefinition, skills []tool.Skill, inherited *Capabilities) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Task: %s\n\n", iss.Title)

	if desc := strings.TrimSpace(iss.Description); desc != "" {
		sb.WriteString("## Description\n\n")
		sb.WriteString(desc)
		sb.WriteString("\n\n")
	}
	if prior := strings.TrimSpace(iss.Context); prior != "" {
		sb.WriteString("## Prior Context\n\n")
		sb.WriteString(prior)
		sb.WriteString("\n\n")
	}

	if inherited != nil {
		writeInheritedCapabilities(&sb, inherited)
	} else {
		writeToolCatalog(&sb, tools)
		writeSkillCatalog(&sb, skills)
	}

	b.writeResponseFormat(&sb, inherited != nil)
	return sb.String()
}

func writeToolCatalog(sb *strings.Builder, tools []model.ToolDefinition) {
	if len(tools) == 0 {
		return
	}
	sb.WriteString("## Available Tools\n\n")
	for _, t := range tools {
		fmt.Fprintf(sb, "- `%s`: %s\n", t.Name, t.Description)
	}
	sb.WriteString("\n")
}

func writeSkillCatalog(sb *strings.Builder, skills []tool.Skill) {
	if len(skills) == 0 {
		return
	}
	sb.WriteString("## Available Skills\n\n")
	for _, s := range skills {
		fmt.Fprintf(sb, "- `%s`: %s\n", s.Name, s.Description)
	}
	sb.WriteString("\n")
}

func writeInheritedCapabilities(sb *strings.Builder, caps *Capabilities) {
	sb.WriteString("## Inherited Capabilities\n\n")
	sb.WriteString("This issue was split from a larger task. The capability selection below was made for the parent and is fixed; do not select tools or skills yourself.\n\n")
	if len(caps.Tools) > 0 {
		fmt.Fprintf(sb, "Tools: %s\n", strings.Join(caps.Tools, ", "))
	}
	if len(caps.Skills) > 0 {
		fmt.Fprintf(sb, "Skills: %s\n", strings.Join(caps.Skills, ", "))
	}
	sb.WriteString("\n")
}

func (b *Builder) writeResponseFormat(sb *strings.Builder, inherited bool) {
	sb.WriteString("## Response Format\n\n")
	sb.WriteString("Respond with a single JSON object. To plan the work:\n\n")
	sb.WriteString("```json\n")
	if inherited {
		sb.WriteString(`{"steps": [{"description": "...", "tool": "optional tool name"}]}` + "\n")
	} else {
		sb.WriteString(`{"steps": [{"description": "...", "tool": "optional tool name"}], "tools": ["tools this task needs"], "skills": ["skills to apply"]}` + "\n")
	}
	sb.WriteString("```\n\n")
	sb.WriteString("If the task is too ambiguous to plan, ask instead:\n\n")
	sb.WriteString("```json\n")
	sb.WriteString(`{"clarification": {"question": "...", "options": ["optional choices"], "context": "why you are asking"}}` + "\n")
	sb.WriteString("```\n\n")
	fmt.Fprintf(sb, "Keep the plan to at most %d steps; larger plans are split into separate issues automatically. ", b.cfg.MaxToolCalls)
	sb.WriteString("Each step should be one concrete action. Respond ONLY with the JSON object, no surrounding text.\n")
}
