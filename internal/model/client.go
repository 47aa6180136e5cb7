// Package model provides the model-calling layer: chat message types, a
// Client interface for one-shot and streaming completions, and an
// implementation for OpenAI-compatible servers.
package model

import (
	"context"
	"encoding/json"
)

// Message roles understood by OpenAI-compatible chat endpoints.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one turn of a chat conversation.
type Message struct {
	Role    string
	Content string

	// ToolCalls echoes the calls an assistant turn requested.
	ToolCalls []ToolCall

	// ToolCallID links a tool-role result back to the call that produced it.
	ToolCallID string
}

// SystemMessage returns a system-role message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage returns a user-role message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage returns an assistant-role message.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// ToolResultMessage returns a tool-role message carrying a tool's output.
func ToolResultMessage(callID, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: callID}
}

// ToolCall is a model-requested tool invocation.
type ToolCall struct {
	ID   string
	Name string

	// Arguments is the raw JSON argument object as produced by the model.
	Arguments string
}

// ToolDefinition describes a callable tool offered to the model.
type ToolDefinition struct {
	Name        string
	Description string

	// Parameters is a JSON Schema describing the argument object.
	Parameters json.RawMessage
}

// Params configures a single completion request.
type Params struct {
	// Model selects the model; empty uses the server's default.
	Model string

	Temperature float64
	MaxTokens   int

	// TopP overrides nucleus sampling when non-nil.
	TopP *float64

	// Tools the model may call during this request.
	Tools []ToolDefinition
}

// Usage reports token consumption for one request.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// StreamEventType discriminates StreamEvent values.
type StreamEventType int

const (
	// StreamDelta carries an incremental fragment of assistant text.
	StreamDelta StreamEventType = iota

	// StreamToolCall carries one fully assembled tool invocation.
	StreamToolCall

	// StreamDone is the terminal event of every stream. Usage is set when
	// the server reported it; Err is set when the stream failed.
	StreamDone
)

// StreamEvent is one item of a streamed completion. The field matching
// Type is meaningful; the others are zero.
type StreamEvent struct {
	Type  StreamEventType
	Delta string
	Call  *ToolCall
	Usage *Usage
	Err   error
}

// Client converses with a language model.
type Client interface {
	// Complete sends the conversation and returns the first choice's text.
	Complete(ctx context.Context, msgs []Message, params Params) (string, error)

	// Stream sends the conversation and returns a channel of stream
	// events. The channel always ends with a StreamDone event and is
	// closed afterwards.
	Stream(ctx context.Context, msgs []Message, params Params) (<-chan StreamEvent, error)

	// Close releases any resources held by the client.
	Close() error
}
