package executor

import (
	"encoding/json"
	"strings"

	"github.com/dinoki-ai/osagent/internal/util"
)

// nudgeMessage pushes a model that keeps talking instead of acting.
const nudgeMessage = "Continue with the next action. Use a tool to make progress, or reply TASK COMPLETE when the task is finished."

// completionPhrases end the loop when they appear in plain text, outside
// fenced code blocks. Matched case-insensitively.
var completionPhrases = []string{"TASK COMPLETE", "TASK_COMPLETE", "ALL DONE"}

// completionSummary reports whether text declares completion. When it
// does, the returned summary is the text with the first marker removed.
func completionSummary(text string) (string, bool) {
	inFence := false
	found := false
	var kept []string

	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
			kept = append(kept, line)
			continue
		}
		if !inFence && !found {
			upper := strings.ToUpper(line)
			for _, phrase := range completionPhrases {
				idx := strings.Index(upper, phrase)
				if idx < 0 {
					continue
				}
				found = true
				// Index math into line is only valid while upper-casing
				// preserved byte length.
				if len(upper) == len(line) {
					line = line[:idx] + line[idx+len(phrase):]
				} else {
					line = ""
				}
				break
			}
			if found && strings.TrimSpace(line) == "" {
				continue
			}
		}
		kept = append(kept, line)
	}

	if !found {
		return "", false
	}
	return strings.TrimSpace(strings.Join(kept, "\n")), true
}

// stripToolLeakage removes tool-call-shaped JSON objects that some models
// leak into commentary alongside the real out-of-band call.
func stripToolLeakage(text string) string {
	var sb strings.Builder
	rest := text
	for {
		start, end, ok := util.BalancedJSONBlock(rest)
		if !ok {
			sb.WriteString(rest)
			break
		}
		if isToolCallJSON(rest[start:end]) {
			sb.WriteString(rest[:start])
		} else {
			sb.WriteString(rest[:end])
		}
		rest = rest[end:]
	}
	return strings.TrimSpace(sb.String())
}

func isToolCallJSON(block string) bool {
	var probe struct {
		Name       string          `json:"name"`
		Tool       string          `json:"tool"`
		Arguments  json.RawMessage `json:"arguments"`
		Parameters json.RawMessage `json:"parameters"`
	}
	if err := json.Unmarshal([]byte(block), &probe); err != nil {
		return false
	}
	name := probe.Name
	if name == "" {
		name = probe.Tool
	}
	return name != "" && (len(probe.Arguments) > 0 || len(probe.Parameters) > 0)
}

// fallbackSummary condenses the last assistant text when the loop aborts
// without an explicit completion.
func fallbackSummary(lastText string) string {
	s := strings.TrimSpace(lastText)
	if s == "" {
		return "execution ended without an explicit summary"
	}
	return util.TruncateString(s, 500)
}
