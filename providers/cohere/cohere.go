// Package cohere implements the completion.Model contract (C4) against
// Cohere's Chat API (v2) over internal/transport's hand-rolled HTTP/SSE
// client. No pack repo carries a Cohere SDK or adapter, so this package has
// no direct teacher code to generalize from; it is grounded on spec §6.2's
// "Cohere style: typed event stream (content-delta, tool-call-start,
// tool-call-delta, tool-call-end, message-end with usage)" note and on
// internal/transport's own contract (§6.3), following the same
// request/response JSON-struct shape providers/openai/providers/gemini use
// for their own wire types, but marshaled by hand since there is no SDK.
package cohere

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/agentflow-go/agentflow/completion"
	"github.com/agentflow-go/agentflow/internal/transport"
	"github.com/agentflow-go/agentflow/message"
	"github.com/agentflow-go/agentflow/providers/registry"
	"github.com/agentflow-go/agentflow/tool"
)

func init() {
	registry.Register("cohere", "COHERE_API_KEY", func(apiKey, model string) (completion.Model, error) {
		return New(apiKey, model), nil
	})
}

const defaultBaseURL = "https://api.cohere.com/v2/chat"

// Model adapts Cohere's Chat API to completion.Model.
type Model struct {
	client  transport.Client
	apiKey  string
	model   string
	baseURL string
}

// New builds a Model against Cohere's hosted API using the default
// net/http-backed transport.Client.
func New(apiKey, model string) *Model {
	return NewWithClient(transport.New(), apiKey, model)
}

// NewWithClient builds a Model against an explicit transport.Client, letting
// tests substitute transporttest.Recorder for real network access.
func NewWithClient(client transport.Client, apiKey, model string) *Model {
	return &Model{client: client, apiKey: apiKey, model: model, baseURL: defaultBaseURL}
}

func (m *Model) Complete(ctx context.Context, req *completion.Request) (*completion.Response, error) {
	body, err := buildRequestBody(m.model, req, false)
	if err != nil {
		return nil, err
	}
	resp, err := m.client.Send(ctx, m.request(body))
	if err != nil {
		return nil, &completion.HttpError{Err: fmt.Errorf("cohere: %w", err)}
	}
	if resp.StatusCode >= 300 {
		return nil, &completion.ProviderError{Message: fmt.Sprintf("cohere: %s", string(resp.Body)), StatusCode: resp.StatusCode}
	}

	var parsed chatResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return nil, &completion.ResponseError{Message: fmt.Sprintf("cohere: decode response: %v", err)}
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
		return nil, &completion.HttpError{Err: fmt.Errorf("cohere: %w", err)}
	}
	return &streamingResponse{stream: stream, toolBufs: make(map[int]*toolBuf)}, nil
}

func (m *Model) request(body []byte) transport.Request {
	header := make(map[string][]string)
	header["Authorization"] = []string{"Bearer " + m.apiKey}
	header["Content-Type"] = []string{"application/json"}
	return transport.Request{
		Method: "POST",
		URL:    m.baseURL,
		Header: header,
		Body:   bytes.NewReader(body),
	}
}

type chatRequest struct {
	Model       string          `json:"model"`
	Messages    []cohereMessage `json:"messages"`
	Tools       []cohereTool    `json:"tools,omitempty"`
	ToolChoice  string          `json:"tool_choice,omitempty"`
	Temperature *float64        `json:"temperature,omitempty"`
	MaxTokens   *int            `json:"max_tokens,omitempty"`
	Stream      bool            `json:"stream,omitempty"`
}

type cohereMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content,omitempty"`
	ToolCalls  []cohereToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type cohereToolCall struct {
	ID       string             `json:"id"`
	Type     string             `json:"type"`
	Function cohereFunctionCall `json:"function"`
}

type cohereFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type cohereTool struct {
	Type     string            `json:"type"`
	Function cohereFunctionDef `json:"function"`
}

type cohereFunctionDef struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Parameters  any    `json:"parameters"`
}

type chatResponse struct {
	ID      string                `json:"id"`
	Message cohereResponseMessage `json:"message"`
	Usage   cohereUsage           `json:"usage"`
}

type cohereResponseMessage struct {
	Role      string               `json:"role"`
	Content   []cohereContentBlock `json:"content"`
	ToolCalls []cohereToolCall     `json:"tool_calls"`
}

type cohereContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type cohereUsage struct {
	Tokens struct {
		InputTokens  float64 `json:"input_tokens"`
		OutputTokens float64 `json:"output_tokens"`
	} `json:"tokens"`
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
		return nil, fmt.Errorf("cohere: marshal request: %w", err)
	}
	return raw, nil
}

func convertMessages(req *completion.Request) ([]cohereMessage, error) {
	var messages []cohereMessage

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
		messages = append(messages, cohereMessage{Role: "system", Content: systemText})
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

// convertDocuments mirrors providers/openai's/providers/gemini's/
// providers/anthropic's document-folding pattern: Cohere's Chat API v2 has
// no dedicated document-input field comparable to its older v1 `documents`
// parameter, so text-disposition documents join the system message and
// file-input-only documents are rejected.
func convertDocuments(docs []message.DocumentContent) (string, error) {
	var text string
	for i, d := range docs {
		disposition, err := message.ResolveDocument(d, false)
		if err != nil {
			return "", fmt.Errorf("cohere: document %d: %w", i, err)
		}
		if disposition != message.DocumentAsText {
			return "", fmt.Errorf("cohere: document %d: file-input documents are not supported", i)
		}
		if d.Source.Kind != message.SourceString {
			return "", fmt.Errorf("cohere: document %d: only inline text documents are supported", i)
		}
		if text != "" {
			text += "\n\n"
		}
		text += d.Source.Text
	}
	return text, nil
}

func convertUserParts(m message.UserMessage) []cohereMessage {
	var out []cohereMessage
	var textBuf string
	for _, part := range m.Content.Slice() {
		switch p := part.(type) {
		case message.TextContent:
			if textBuf != "" {
				textBuf += "\n"
			}
			textBuf += p.Text
		case message.ToolResultContent:
			out = append(out, cohereMessage{Role: "tool", ToolCallID: p.ToolCallID, Content: toolResultText(p)})
		}
	}
	if textBuf != "" {
		out = append([]cohereMessage{{Role: "user", Content: textBuf}}, out...)
	}
	return out
}

func toolResultText(r message.ToolResultContent) string {
	if t, ok := r.Content.First().(message.TextContent); ok {
		return t.Text
	}
	return ""
}

func convertAssistantMessage(m message.AssistantMessage) cohereMessage {
	texts, toolCalls, _ := message.SplitAssistant(m)
	var text string
	for i, t := range texts {
		if i > 0 {
			text += "\n"
		}
		text += t.Text
	}

	out := cohereMessage{Role: "assistant", Content: text}
	for _, tc := range toolCalls {
		out.ToolCalls = append(out.ToolCalls, cohereToolCall{
			ID:   tc.ID,
			Type: "function",
			Function: cohereFunctionCall{
				Name:      tc.Name,
				Arguments: string(tc.Arguments),
			},
		})
	}
	return out
}

func convertTools(defs []tool.Definition) ([]cohereTool, error) {
	out := make([]cohereTool, len(defs))
	for i, d := range defs {
		params, err := schemaToMap(d.Parameters)
		if err != nil {
			return nil, fmt.Errorf("cohere: convert tool %q schema: %w", d.Name, err)
		}
		out[i] = cohereTool{
			Type: "function",
			Function: cohereFunctionDef{
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
		return nil, &completion.JsonError{Err: fmt.Errorf("cohere: marshal tool schema: %w", err)}
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, &completion.JsonError{Err: fmt.Errorf("cohere: unmarshal tool schema: %w", err)}
	}
	return m, nil
}

// convertToolChoice maps onto Cohere's two-valued tool_choice
// ("required"/"none"; omitted means automatic). Cohere's Chat API has no
// named-tool-choice concept, unlike OpenAI/Anthropic/Gemini, so
// ToolChoiceTool degrades to "required" rather than failing the request —
// a documented best-effort widening (every tool remains eligible) rather
// than the silent content-dropping spec invariant 1 forbids, since no
// content is lost, only a preference is relaxed.
func convertToolChoice(tc *completion.ToolChoice) string {
	switch tc.Mode {
	case completion.ToolChoiceNone:
		return "none"
	case completion.ToolChoiceAny, completion.ToolChoiceTool:
		return "required"
	default:
		return ""
	}
}

func convertResponse(resp *chatResponse) (*completion.Response, error) {
	var parts []message.AssistantPart
	for _, block := range resp.Message.Content {
		if block.Type == "text" && block.Text != "" {
			parts = append(parts, message.TextContent{Text: block.Text})
		}
	}
	for _, tc := range resp.Message.ToolCalls {
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

func convertUsage(u cohereUsage) completion.Usage {
	in := int(u.Tokens.InputTokens)
	out := int(u.Tokens.OutputTokens)
	return completion.Usage{InputTokens: in, OutputTokens: out, TotalTokens: in + out}
}
