package model

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dinoki-ai/osagent/internal/errors"
)

const (
	// DefaultBaseURL points at a local Osaurus server.
	DefaultBaseURL = "http://127.0.0.1:1337/v1"

	doneMarker    = "[DONE]"
	streamBuffer  = 16
	maxStreamLine = 1024 * 1024
)

// ClientConfig configures an OpenAIClient.
type ClientConfig struct {
	// BaseURL is the API base. Empty uses DefaultBaseURL.
	BaseURL string

	// APIKey is sent as a bearer token when non-empty. Local servers
	// generally do not need one.
	APIKey string

	// Timeout bounds a single Complete call. Zero means no timeout.
	// Streaming requests are bounded by their context instead, since a
	// healthy stream can legitimately outlive any fixed deadline.
	Timeout time.Duration
}

// OpenAIClient talks to any OpenAI-compatible chat completion endpoint.
type OpenAIClient struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	http    *http.Client
}

var _ Client = (*OpenAIClient)(nil)

// NewOpenAIClient creates a client for an OpenAI-compatible server.
func NewOpenAIClient(cfg ClientConfig) *OpenAIClient {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &OpenAIClient{
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		timeout: cfg.Timeout,
		http:    &http.Client{},
	}
}

// ----------------------------------------------------------------------------
// Wire Types
// ----------------------------------------------------------------------------

type chatRequest struct {
	Model         string         `json:"model,omitempty"`
	Messages      []chatMessage  `json:"messages"`
	Temperature   float64        `json:"temperature,omitempty"`
	MaxTokens     int            `json:"max_tokens,omitempty"`
	TopP          *float64       `json:"top_p,omitempty"`
	Stream        bool           `json:"stream,omitempty"`
	StreamOptions *streamOptions `json:"stream_options,omitempty"`
	Tools         []chatTool     `json:"tools,omitempty"`
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type chatMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []chatToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type chatTool struct {
	Type     string           `json:"type"`
	Function chatToolFunction `json:"function"`
}

type chatToolFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type chatToolCall struct {
	Index    int                  `json:"index"`
	ID       string               `json:"id,omitempty"`
	Type     string               `json:"type,omitempty"`
	Function chatToolCallFunction `json:"function"`
}

type chatToolCallFunction struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// chatResponse covers both full responses and streaming chunks; full
// responses populate choice.message, chunks populate choice.delta.
type chatResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   *chatUsage   `json:"usage,omitempty"`
	Error   *apiError    `json:"error,omitempty"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	Delta        chatDelta   `json:"delta"`
	FinishReason string      `json:"finish_reason"`
}

type chatDelta struct {
	Role      string         `json:"role,omitempty"`
	Content   string         `json:"content,omitempty"`
	ToolCalls []chatToolCall `json:"tool_calls,omitempty"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// ----------------------------------------------------------------------------
// Requests
// ----------------------------------------------------------------------------

func buildRequest(msgs []Message, params Params, stream bool) *chatRequest {
	req := &chatRequest{
		Model:       params.Model,
		Messages:    make([]chatMessage, 0, len(msgs)),
		Temperature: params.Temperature,
		MaxTokens:   params.MaxTokens,
		TopP:        params.TopP,
		Stream:      stream,
	}
	if stream {
		req.StreamOptions = &streamOptions{IncludeUsage: true}
	}

	for _, m := range msgs {
		cm := chatMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, call := range m.ToolCalls {
			cm.ToolCalls = append(cm.ToolCalls, chatToolCall{
				ID:   call.ID,
				Type: "function",
				Function: chatToolCallFunction{
					Name:      call.Name,
					Arguments: call.Arguments,
				},
			})
		}
		req.Messages = append(req.Messages, cm)
	}

	for _, t := range params.Tools {
		req.Tools = append(req.Tools, chatTool{
			Type: "function",
			Function: chatToolFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return req
}

func (c *OpenAIClient) newRequest(ctx context.Context, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return req, nil
}

// Complete sends the conversation and returns the first choice's text.
func (c *OpenAIClient) Complete(ctx context.Context, msgs []Message, params Params) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	body, err := json.Marshal(buildRequest(msgs, params, false))
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := c.newRequest(ctx, body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", errors.NewExecutionError(errors.KindNetwork, "model request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.NewExecutionError(errors.KindNetwork, "failed to read model response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", c.statusError(resp.StatusCode, respBody)
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse model response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("model response contained no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// Stream sends the conversation with streaming enabled. Events arrive on
// the returned channel; the reader goroutine owns the response body and
// closes the channel after the terminal StreamDone event.
func (c *OpenAIClient) Stream(ctx context.Context, msgs []Message, params Params) (<-chan StreamEvent, error) {
	body, err := json.Marshal(buildRequest(msgs, params, true))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := c.newRequest(ctx, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.NewExecutionError(errors.KindNetwork, "stream request failed", err)
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, c.statusError(resp.StatusCode, respBody)
	}

	events := make(chan StreamEvent, streamBuffer)
	go c.readStream(resp, events)
	return events, nil
}

// readStream scans the SSE body line by line, forwarding content deltas
// as they arrive and assembling tool-call fragments until the stream
// terminates.
func (c *OpenAIClient) readStream(resp *http.Response, events chan<- StreamEvent) {
	defer close(events)
	defer resp.Body.Close()

	var (
		calls []*ToolCall
		usage *Usage
	)

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxStreamLine)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}
		if data == doneMarker {
			finishStream(events, calls, usage, nil)
			return
		}

		var chunk chatResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			finishStream(events, nil, usage, fmt.Errorf("failed to parse stream chunk: %w", err))
			return
		}

		// With include_usage the server sends usage in a trailing chunk
		// whose choices array is empty.
		if chunk.Usage != nil {
			usage = &Usage{
				PromptTokens:     chunk.Usage.PromptTokens,
				CompletionTokens: chunk.Usage.CompletionTokens,
				TotalTokens:      chunk.Usage.TotalTokens,
			}
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]

		if choice.Delta.Content != "" {
			events <- StreamEvent{Type: StreamDelta, Delta: choice.Delta.Content}
		}
		for _, frag := range choice.Delta.ToolCalls {
			calls = appendFragment(calls, frag)
		}
	}

	// Stream ended without a [DONE] marker. Some servers close the body
	// right after the final chunk; deliver what was assembled.
	if err := scanner.Err(); err != nil {
		finishStream(events, nil, usage, errors.NewExecutionError(errors.KindNetwork, "stream read failed", err))
		return
	}
	finishStream(events, calls, usage, nil)
}

// appendFragment folds one streamed tool-call fragment into the assembly
// slice. The id and name arrive on the first fragment for an index;
// argument text arrives in pieces and concatenates.
func appendFragment(calls []*ToolCall, frag chatToolCall) []*ToolCall {
	if frag.Index < 0 {
		return calls
	}
	for frag.Index >= len(calls) {
		calls = append(calls, nil)
	}
	call := calls[frag.Index]
	if call == nil {
		call = &ToolCall{}
		calls[frag.Index] = call
	}
	if frag.ID != "" {
		call.ID = frag.ID
	}
	if frag.Function.Name != "" {
		call.Name = frag.Function.Name
	}
	call.Arguments += frag.Function.Arguments
	return calls
}

// finishStream emits the terminal event sequence: assembled tool calls in
// index order, then StreamDone. On error the partial calls are dropped;
// their argument JSON cannot be trusted.
func finishStream(events chan<- StreamEvent, calls []*ToolCall, usage *Usage, err error) {
	if err != nil {
		events <- StreamEvent{Type: StreamDone, Usage: usage, Err: err}
		return
	}
	for _, call := range calls {
		if call == nil || call.Name == "" {
			continue
		}
		events <- StreamEvent{Type: StreamToolCall, Call: call}
	}
	events <- StreamEvent{Type: StreamDone, Usage: usage}
}

// statusError maps a non-200 response to an execution error: 429 is
// rate-limited, everything else is a network-kind failure. Both are
// retriable.
func (c *OpenAIClient) statusError(status int, body []byte) error {
	msg := apiErrorMessage(body)
	if status == http.StatusTooManyRequests {
		return errors.NewExecutionError(errors.KindRateLimited, "model server rate limited the request: "+msg, nil)
	}
	return errors.NewExecutionError(errors.KindNetwork, fmt.Sprintf("model server returned HTTP %d: %s", status, msg), nil)
}

// apiErrorMessage extracts the message from an OpenAI-style error body,
// falling back to a truncated copy of the raw body.
func apiErrorMessage(body []byte) string {
	var parsed struct {
		Error *apiError `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

// Close releases idle connections.
func (c *OpenAIClient) Close() error {
	c.http.CloseIdleConnections()
	return nil
}
