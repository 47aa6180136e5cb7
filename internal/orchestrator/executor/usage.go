package executor

import "github.com/dinoki-ai/osagent/internal/model"

// UsageTracker accumulates model usage over one execution run. A
// MaxTokens of zero means unlimited.
type UsageTracker struct {
	PromptTokens     int
	CompletionTokens int
	Iterations       int
	ToolCalls        int
	MaxTokens        int
}

// AddUsage folds in the usage payload from one streamed turn. Servers
// that omit usage reporting contribute nothing.
func (u *UsageTracker) AddUsage(usage *model.Usage) {
	if usage == nil {
		return
	}
	u.PromptTokens += usage.PromptTokens
	u.CompletionTokens += usage.CompletionTokens
}

// TotalTokens returns prompt plus completion tokens so far.
func (u *UsageTracker) TotalTokens() int {
	return u.PromptTokens + u.CompletionTokens
}

// Exceeded reports whether the token budget is spent.
func (u *UsageTracker) Exceeded() bool {
	return u.MaxTokens > 0 && u.TotalTokens() >= u.MaxTokens
}
