// Package compat implements the completion.Model contract (C4) against
// generic OpenAI-Chat-Completions-compatible endpoints (local inference
// servers, proxies, anything mimicking /v1/chat/completions) that have no
// official Go SDK of their own. Unlike providers/openai — which wraps
// openai-go/v3 and so can target a custom baseURL for compatible servers
// too — this package is the fallback for endpoints where even openai-go/v3
// isn't a safe bet (non-standard auth headers, partial API surfaces), so it
// talks the wire format by hand over internal/transport, staying
// dependency-free by construction per spec §6.1/§6.3.
package compat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/agentflow-go/agentflow/completion"
	"github.com/agentflow-go/agentflow/internal/transport"
	"github.com/agentflow-go/agentflow/message"
	"github.com/agentflow-go/agentflow/providers/registry"
	"github.com/agentflow-go/agentflow/tool"
)

func init() {
	registry.Register("compat", "COMPAT_API_KEY", func(apiKey, model string) (completion.Model, error) {
		baseURL := os.Getenv("COMPAT_BASE_URL")
		if baseURL == "" {
			return nil, &completion.ConfigError{Reason: "COMPAT_BASE_URL must be set to use the compat provider"}
		}
		return New(apiKey, baseURL, model), nil
	})
}

// Model adapts a generic OpenAI-Chat-Completions-compatible endpoint to
// completion.Model.
type Model struct {
	client  transport.Client
	apiKey  string
	baseURL string
	model   string
}

// New builds a Model targeting baseURL (e.g. "http://localhost:11434/v1")
// using the default net/http-backed transport.Client.
func New(apiKey, baseURL, model string) *Model {
	return NewWithClient(transport.New(), apiKey, baseURL, model)
}

// NewWithClient builds a Model against an explicit transport.Client, letting
// tests substitute transporttest.Recorder for real network access.
func NewWithClient(client transport.Client, apiKey, baseURL, model string) *Model {
	return &Model{client: client, apiKey: apiKey, baseURL: strings.TrimRight(baseURL, "/"), model: model}
}

func (m *Model) Complete(ctx context.Context, req *completion.Request) (*completion.Response, error) {
	body, err := buildRequestBody(m.model, req, false)
	if err != nil {
		return nil, err
	}
	resp, err := m.client.Send(ctx, m.request(body))
	if err != nil {
		return nil, &completion.HttpError{Err: fmt.Errorf("compat: %w", err)}
	}
	if resp.StatusCode >= 300 {
		return nil, &completion.ProviderError{Message: fmt.Sprintf("compat: %s", string(resp.Body)), StatusCode: resp.StatusCode}
	}

	var parsed chatCompletion
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return nil, &completion.ResponseError{Message: fmt.Sprintf("compat: decode response: %v", err)}
	}
	return convertResponse(&parsed)
}

func (m *Model) Stream(ctx context.Context, req *completion.Request) (completion.StreamingResponse, error) {
	body, err := buildRequestBody(m.model, req, true)
	if err != nil {
		return nil, err
	}
	stream, err := m.client.SendStreaming(ctx, m.request(body))
	if err != nil {
		return nil, &completion.HttpError{Err: fmt.Errorf("compat: %w", err)}
	}
	return &streamingResponse{stream: stream, toolBufs: make(map[int]*toolBuf)}, nil
}

func (m *Model) request(body []byte) transport.Request {
	header := make(map[string][]string)
	if m.apiKey != "" {
		header["Authorization"] = []string{"Bearer " + m.apiKey}
	}
	header["Content-Type"] = []string{"application/json"}
	return transport.Request{
		Method: "POST",
		URL:    m.baseURL + "/chat/completions",
		Header: header,
		Body:   bytes.NewReader(body),
	}
}

type chatRequest struct {
	Model       string          `json:"model"`
	Messages    []chatMessage   `json:"messages"`
	Tools       []compatTool    `json:"tools,omitempty"`
	ToolChoice  any             `json:"tool_choice,omitempty"`
	Temperature *float64        `json:"temperature,omitempty"`
	MaxTokens   *int            `json:"max_tokens,omitempty"`
	Stream      bool            `json:"stream,omitempty"`
	StreamOpts  *streamOptions  `json:"stream_options,omitempty"`
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type chatMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content,omitempty"`
	ToolCalls  []compatToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type compatToolCall struct {
	ID       string             `json:"id"`
	Type     string             `json:"type"`
	Function compatFunctionCall `json:"function"`
}

type compatFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type compatTool struct {
	Type     string            `json:"type"`
	Function compatFunctionDef `json:"function"`
}

type compatFunctionDef struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Parameters  any    `json:"parameters"`
}

type chatCompletion struct {
	ID      string         `json:"id"`
	Choices []chatChoice   `json:"choices"`
	Usage   compatUsage    `json:"usage"`
}

type chatChoice struct {
	Message chatResponseMessage `json:"message"`
}

type chatResponseMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []compatToolCall `json:"tool_calls"`
}

type compatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

func buildRequestBody(model string, req *completion.Request, stream bool) ([]byte, error) {
	messages, err := convertMessages(req)
	if err != nil {
		return nil, err
	}
	body := chatRequest{
		Model:    model,
		Messages: messages,
		Stream:   stream,
	}
	if stream {
		body.StreamOpts = &streamOptions{IncludeUsage: true}
	}
	if req.Temperature != nil {
		body.Temperature = req.Temperature
	}
	if req.MaxTokens != nil {
		body.MaxTokens = req.MaxTokens
	}
	if len(req.Tools) > 0 {
		tools, err := convertTools(req.Tools)
		if err != nil {
			return nil, err
		}
		body.Tools = tools
	}
	if req.ToolChoice != nil {
		body.ToolChoice = convertToolChoice(req.ToolChoice)
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("compat: marshal request: %w", err)
	}
	return raw, nil
}

func convertMessages(req *completion.Request) ([]chatMessage, error) {
	var messages []chatMessage

	systemText := req.Preamble
	docsText, err := convertDocuments(req.Documents)
	if err != nil {
		return nil, err
	}
	if docsText != "" {
		if systemText != "" {
			systemText += "\n\n"
		}
		systemText += docsText
	}
	if systemText != "" {
		messages = append(messages, chatMessage{Role: "system", Content: systemText})
	}

	for _, msg := range req.History.Slice() {
		switch m := msg.(type) {
		case message.UserMessage:
			messages = append(messages, convertUserParts(m)...)
		case message.AssistantMessage:
			messages = append(messages, convertAssistantMessage(m))
		}
	}
	return messages, nil
}

// convertDocuments mirrors providers/openai's/providers/cohere's
// document-folding pattern: generic OpenAI-compatible endpoints have no
// standardized file-input slot, so text-disposition documents join the
// system message and file-input-only documents are rejected.
func convertDocuments(docs []message.DocumentContent) (string, error) {
	var text string
	for i, d := range docs {
		disposition, err := message.ResolveDocument(d, false)
		if err != nil {
			return "", fmt.Errorf("compat: document %d: %w", i, err)
		}
		if disposition != message.DocumentAsText {
			return "", fmt.Errorf("compat: document %d: file-input documents are not supported", i)
		}
		if d.Source.Kind != message.SourceString {
			return "", fmt.Errorf("compat: document %d: only inline text documents are supported", i)
		}
		if text != "" {
			text += "\n\n"
		}
		text += d.Source.Text
	}
	return text, nil
}

func convertUserParts(m message.UserMessage) []chatMessage {
	var out []chatMessage
	var textBuf string
	for _, part := range m.Content.Slice() {
		switch p := part.(type) {
		case message.TextContent:
			if textBuf != "" {
				textBuf += "\n"
			}
			textBuf += p.Text
		case message.ToolResultContent:
			out = append(out, chatMessage{Role: "tool", ToolCallID: p.ToolCallID, Content: toolResultText(p)})
		}
	}
	if textBuf != "" {
		out = append([]chatMessage{{Role: "user", Content: textBuf}}, out...)
	}
	return out
}

func toolResultText(r message.ToolResultContent) string {
	if t, ok := r.Content.First().(message.TextContent); ok {
		return t.Text
	}
	return ""
}

func convertAssistantMessage(m message.AssistantMessage) chatMessage {
	texts, toolCalls, _ := message.SplitAssistant(m)
	var text string
	for i, t := range texts {
		if i > 0 {
			text += "\n"
		}
		text += t.Text
	}

	out := chatMessage{Role: "assistant", Content: text}
	for _, tc := range toolCalls {
		out.ToolCalls = append(out.ToolCalls, compatToolCall{
			ID:   tc.ID,
			Type: "function",
			Function: compatFunctionCall{
				Name:      tc.Name,
				Arguments: string(tc.Arguments),
			},
		})
	}
	return out
}

func convertTools(defs []tool.Definition) ([]compatTool, error) {
	out := make([]compatTool, len(defs))
	for i, d := range defs {
		params, err := schemaToMap(d.Parameters)
		if err != nil {
			return nil, fmt.Errorf("compat: convert tool %q schema: %w", d.Name, err)
		}
		out[i] = compatTool{
			Type: "function",
			Function: compatFunctionDef{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  params,
			},
		}
	}
	return out, nil
}

func schemaToMap(schema any) (map[string]any, error) {
	if schema == nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}, nil
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, &completion.JsonError{Err: fmt.Errorf("compat: marshal tool schema: %w", err)}
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, &completion.JsonError{Err: fmt.Errorf("compat: unmarshal tool schema: %w", err)}
	}
	return m, nil
}

func convertToolChoice(tc *completion.ToolChoice) any {
	switch tc.Mode {
	case completion.ToolChoiceNone:
		return "none"
	case completion.ToolChoiceAny:
		return "required"
	case completion.ToolChoiceTool:
		return map[string]any{"type": "function", "function": map[string]any{"name": tc.Name}}
	default:
		return "auto"
	}
}

func convertResponse(resp *chatCompletion) (*completion.Response, error) {
	if len(resp.Choices) == 0 {
		return nil, &completion.ResponseError{Message: "compat: response has no choices"}
	}
	choice := resp.Choices[0]

	var parts []message.AssistantPart
	if choice.Message.Content != "" {
		parts = append(parts, message.TextContent{Text: choice.Message.Content})
	}
	for _, tc := range choice.Message.ToolCalls {
		parts = append(parts, message.ToolCallContent{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}
	if len(parts) == 0 {
		parts = append(parts, message.TextContent{Text: ""})
	}

	oneOrMany, err := message.FromSlice(parts)
	if err != nil {
		return nil, err
	}
	id := resp.ID
	return &completion.Response{
		Choice:            oneOrMany,
		Usage:             convertUsage(resp.Usage),
		Raw:               resp,
		ProviderMessageID: &id,
	}, nil
}

func convertUsage(u compatUsage) completion.Usage {
	return completion.Usage{
		InputTokens:  u.PromptTokens,
		OutputTokens: u.CompletionTokens,
		TotalTokens:  u.TotalTokens,
	}
}
