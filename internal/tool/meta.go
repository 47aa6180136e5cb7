package tool

import "encoding/json"

// Meta-tool names. These appear in the model's tool catalog like any
// other tool, but the executor intercepts calls to them before dispatch;
// the registry never executes them.
const (
	// TaskCompleteName signals the task goal is met. Arguments carry the
	// summary and an optional final artifact.
	TaskCompleteName = "task_complete"

	// AskUserName suspends execution pending a human answer.
	AskUserName = "ask_user"
)

// IsMetaTool reports whether name belongs to an executor-intercepted
// meta-tool.
func IsMetaTool(name string) bool {
	return name == TaskCompleteName || name == AskUserName
}

// TaskCompleteArgs is the argument object of a task_complete call.
type TaskCompleteArgs struct {
	Summary         string `json:"summary"`
	ArtifactName    string `json:"artifact_name,omitempty"`
	ArtifactContent string `json:"artifact_content,omitempty"`
}

// AskUserArgs is the argument object of an ask_user call.
type AskUserArgs struct {
	Question string   `json:"question"`
	Options  []string `json:"options,omitempty"`
	Context  string   `json:"context,omitempty"`
}

// MetaToolDefinitions returns the task_complete and ask_user definitions
// for inclusion in the model's tool catalog.
func MetaToolDefinitions() []Definition {
	return []Definition{
		{
			Name:        TaskCompleteName,
			Description: "Signal that the task is complete. Call this exactly once, when the goal is fully met.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"summary": {
						"type": "string",
						"description": "What was accomplished, in one or two sentences"
					},
					"artifact_name": {
						"type": "string",
						"description": "Optional name for a final deliverable file"
					},
					"artifact_content": {
						"type": "string",
						"description": "Optional content of the final deliverable"
					}
				},
				"required": ["summary"]
			}`),
			Policy: PolicyAuto,
		},
		{
			Name:        AskUserName,
			Description: "Ask the user a clarifying question when the task is ambiguous. Execution pauses until they answer.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"question": {
						"type": "string",
						"description": "The question to ask"
					},
					"options": {
						"type": "array",
						"items": {"type": "string"},
						"description": "Optional multiple-choice answers"
					},
					"context": {
						"type": "string",
						"description": "Optional background for why the question is needed"
					}
				},
				"required": ["question"]
			}`),
			Policy: PolicyAuto,
		},
	}
}
