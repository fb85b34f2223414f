// Package openai implements the completion.Model contract (C4) against
// OpenAI's Chat Completions API via the official SDK, grounded on the
// teacher's agent/adapters/openai_adapter.go (OpenAIAdapter), generalized
// to round-trip tool calls across turns and to stream through the
// provider-agnostic completion.Chunk contract instead of a single
// onChunk(string) callback.
package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/tidwall/sjson"

	"github.com/agentflow-go/agentflow/completion"
	"github.com/agentflow-go/agentflow/message"
	"github.com/agentflow-go/agentflow/providers/registry"
	"github.com/agentflow-go/agentflow/tool"
)

func init() {
	registry.Register("openai", "OPENAI_API_KEY", func(apiKey, model string) (completion.Model, error) {
		return New(apiKey, "", model), nil
	})
}

// Model adapts openai.Client to completion.Model. Supports OpenAI itself and
// any OpenAI-compatible endpoint reachable via a custom baseURL (Ollama,
// Azure OpenAI, ...), exactly as the teacher's NewOpenAIAdapter doc comment
// describes.
type Model struct {
	client *openai.Client
	model  string
}

// New builds a Model. baseURL == "" targets api.openai.com.
func New(apiKey, baseURL, model string) *Model {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return &Model{client: &client, model: model}
}

func (m *Model) Complete(ctx context.Context, req *completion.Request) (*completion.Response, error) {
	params, err := m.buildParams(req)
	if err != nil {
		return nil, err
	}

	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, &completion.ProviderError{Message: fmt.Sprintf("openai: %v", err)}
	}
	return convertResponse(resp)
}

func (m *Model) Stream(ctx context.Context, req *completion.Request) (completion.StreamingResponse, error) {
	params, err := m.buildParams(req)
	if err != nil {
		return nil, err
	}
	stream := m.client.Chat.Completions.NewStreaming(ctx, params)
	return &streamingResponse{stream: stream}, nil
}

func (m *Model) buildParams(req *completion.Request) (openai.ChatCompletionNewParams, error) {
	messages, err := convertMessages(req)
	if err != nil {
		return openai.ChatCompletionNewParams{}, err
	}
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(m.model),
		Messages: messages,
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if req.MaxTokens != nil {
		params.MaxTokens = openai.Int(int64(*req.MaxTokens))
	}
	if len(req.Tools) > 0 {
		tools, err := convertTools(req.Tools)
		if err != nil {
			return params, err
		}
		params.Tools = tools
	}
	if req.ToolChoice != nil {
		switch req.ToolChoice.Mode {
		case completion.ToolChoiceNone:
			params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String("none")}
		case completion.ToolChoiceAny:
			params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String("required")}
		case completion.ToolChoiceTool:
			params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{
				OfChatCompletionNamedToolChoice: &openai.ChatCompletionNamedToolChoiceParam{
					Function: openai.ChatCompletionNamedToolChoiceFunctionParam{Name: req.ToolChoice.Name},
				},
			}
		default:
			params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String("auto")}
		}
	}

	if len(req.AdditionalParams) > 0 {
		return mergeAdditionalParams(params, req.AdditionalParams)
	}
	return params, nil
}

// mergeAdditionalParams merges req.AdditionalParams's top-level keys into
// params' marshaled JSON, then unmarshals back. Grounded on SPEC_FULL.md's
// DOMAIN STACK entry for tidwall/sjson (Open Question 4): provider-specific
// knobs the common Request shape doesn't name (e.g. reasoning effort) travel
// as opaque JSON and are merged in without a full param-struct redesign.
func mergeAdditionalParams(params openai.ChatCompletionNewParams, additional json.RawMessage) (openai.ChatCompletionNewParams, error) {
	base, err := json.Marshal(params)
	if err != nil {
		return params, &completion.JsonError{Err: fmt.Errorf("openai: marshal base params: %w", err)}
	}

	var extra map[string]json.RawMessage
	if err := json.Unmarshal(additional, &extra); err != nil {
		return params, &completion.JsonError{Err: fmt.Errorf("openai: parse additional params: %w", err)}
	}

	merged := base
	for k, v := range extra {
		merged, err = sjson.SetRawBytes(merged, k, v)
		if err != nil {
			return params, &completion.JsonError{Err: fmt.Errorf("openai: merge additional param %q: %w", k, err)}
		}
	}

	var out openai.ChatCompletionNewParams
	if err := json.Unmarshal(merged, &out); err != nil {
		return params, &completion.JsonError{Err: fmt.Errorf("openai: unmarshal merged params: %w", err)}
	}
	return out, nil
}

func convertMessages(req *completion.Request) ([]openai.ChatCompletionMessageParamUnion, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, req.History.Len()+2)
	if req.Preamble != "" {
		messages = append(messages, openai.SystemMessage(req.Preamble))
	}

	docsText, err := convertDocuments(req.Documents)
	if err != nil {
		return nil, err
	}
	if docsText != "" {
		messages = append(messages, openai.SystemMessage(docsText))
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

// convertDocuments applies the universal document conversion rules
// (message.ResolveDocument) and concatenates every text-disposition document
// into one block, passed to the model as an extra system message. The Chat
// Completions API has no native file-input slot the way the Responses API
// does, so file-input-only documents (PDFs) are rejected here rather than
// silently dropped.
func convertDocuments(docs []message.DocumentContent) (string, error) {
	var text string
	for i, d := range docs {
		disposition, err := message.ResolveDocument(d, false)
		if err != nil {
			return "", fmt.Errorf("openai: document %d: %w", i, err)
		}
		if disposition != message.DocumentAsText {
			return "", fmt.Errorf("openai: document %d: file-input documents are not supported by the Chat Completions API", i)
		}
		body, err := documentText(d)
		if err != nil {
			return "", fmt.Errorf("openai: document %d: %w", i, err)
		}
		if text != "" {
			text += "\n\n"
		}
		text += body
	}
	return text, nil
}

func documentText(d message.DocumentContent) (string, error) {
	switch d.Source.Kind {
	case message.SourceString:
		return d.Source.Text, nil
	case message.SourceBase64:
		decoded, err := base64.StdEncoding.DecodeString(d.Source.Base64)
		if err != nil {
			return "", fmt.Errorf("decode base64 source: %w", err)
		}
		return string(decoded), nil
	case message.SourceURL:
		return d.Source.URL, nil
	default:
		return "", fmt.Errorf("unsupported document source kind %q", d.Source.Kind)
	}
}

func convertUserParts(m message.UserMessage) []openai.ChatCompletionMessageParamUnion {
	var out []openai.ChatCompletionMessageParamUnion
	var textBuf string
	for _, part := range m.Content.Slice() {
		switch p := part.(type) {
		case message.TextContent:
			if textBuf != "" {
				textBuf += "\n"
			}
			textBuf += p.Text
		case message.ToolResultContent:
			out = append(out, openai.ToolMessage(toolResultText(p), p.ToolCallID))
		}
	}
	if textBuf != "" {
		out = append([]openai.ChatCompletionMessageParamUnion{openai.UserMessage(textBuf)}, out...)
	}
	return out
}

func toolResultText(r message.ToolResultContent) string {
	if t, ok := r.Content.First().(message.TextContent); ok {
		return t.Text
	}
	return ""
}

func convertAssistantMessage(m message.AssistantMessage) openai.ChatCompletionMessageParamUnion {
	texts, toolCalls, _ := message.SplitAssistant(m)
	var text string
	for i, t := range texts {
		if i > 0 {
			text += "\n"
		}
		text += t.Text
	}

	if len(toolCalls) == 0 {
		return openai.AssistantMessage(text)
	}

	calls := make([]openai.ChatCompletionMessageToolCallUnionParam, len(toolCalls))
	for i, tc := range toolCalls {
		calls[i] = openai.ChatCompletionMessageToolCallUnionParam{
			OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
				ID: tc.ID,
				Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
					Name:      tc.Name,
					Arguments: string(tc.Arguments),
				},
			},
		}
	}

	assistantParam := openai.ChatCompletionAssistantMessageParam{ToolCalls: calls}
	if text != "" {
		assistantParam.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
			OfString: openai.String(text),
		}
	}
	return openai.ChatCompletionMessageParamUnion{OfAssistant: &assistantParam}
}

func convertTools(defs []tool.Definition) ([]openai.ChatCompletionToolUnionParam, error) {
	out := make([]openai.ChatCompletionToolUnionParam, len(defs))
	for i, d := range defs {
		params, err := schemaToFunctionParameters(d.Parameters)
		if err != nil {
			return nil, &completion.JsonError{Err: fmt.Errorf("openai: convert tool %q schema: %w", d.Name, err)}
		}
		out[i] = openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        d.Name,
			Description: openai.String(d.Description),
			Parameters:  params,
		})
	}
	return out, nil
}

// schemaToFunctionParameters round-trips an invopop/jsonschema.Schema through
// JSON into the map[string]any shape openai.FunctionParameters expects; the
// two types are structurally JSON-compatible but not the same Go type.
func schemaToFunctionParameters(schema any) (openai.FunctionParameters, error) {
	if schema == nil {
		return openai.FunctionParameters{"type": "object", "properties": map[string]any{}}, nil
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, &completion.JsonError{Err: fmt.Errorf("openai: marshal tool schema: %w", err)}
	}
	var params openai.FunctionParameters
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, &completion.JsonError{Err: fmt.Errorf("openai: unmarshal tool schema: %w", err)}
	}
	return params, nil
}

func convertResponse(resp *openai.ChatCompletion) (*completion.Response, error) {
	if len(resp.Choices) == 0 {
		id := resp.ID
		return &completion.Response{
			Choice:            message.One[message.AssistantPart](message.TextContent{Text: ""}),
			Usage:             convertUsage(resp.Usage),
			Raw:               resp,
			ProviderMessageID: &id,
		}, nil
	}

	choice := resp.Choices[0].Message
	var parts []message.AssistantPart
	if choice.Content != "" {
		parts = append(parts, message.TextContent{Text: choice.Content})
	}
	for _, tc := range choice.ToolCalls {
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

func convertUsage(u openai.CompletionUsage) completion.Usage {
	return completion.Usage{
		InputTokens:  int(u.PromptTokens),
		OutputTokens: int(u.CompletionTokens),
		TotalTokens:  int(u.TotalTokens),
	}
}
