// Package anthropic implements the completion.Model contract (C4) against
// Anthropic's Messages API via the official SDK, grounded on
// goadesign-goa-ai's features/model/anthropic/client.go (the only pack repo
// with a genuine anthropic-sdk-go adapter; the teacher has none). Generalized
// from that source's goa-ai-specific concerns (toolset-prefixed name
// sanitization, model-class resolution) to this module's plain
// tool.Definition/completion.Request shapes, and extended to decode
// "thinking"/"redacted_thinking" response blocks into message.ReasoningContent
// and re-encode them on the next turn — the grounding source's translateResponse
// only handles "text"/"tool_use" blocks, silently dropping reasoning, which
// spec §4.4 point 4 (reasoning blocks must be preserved verbatim, including
// signatures) does not allow.
package anthropic

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/agentflow-go/agentflow/completion"
	"github.com/agentflow-go/agentflow/message"
	"github.com/agentflow-go/agentflow/providers/registry"
	"github.com/agentflow-go/agentflow/tool"
)

func init() {
	registry.Register("anthropic", "ANTHROPIC_API_KEY", func(apiKey, model string) (completion.Model, error) {
		return New(apiKey, model), nil
	})
}

// defaultMaxTokens is used when a Request doesn't set MaxTokens; unlike
// OpenAI and Gemini, Anthropic's Messages API requires max_tokens on every
// request, grounded on the source's Options.MaxTokens/effectiveMaxTokens
// fallback.
const defaultMaxTokens = 4096

// Model adapts sdk.Client to completion.Model.
type Model struct {
	client *sdk.Client
	model  string
}

// New builds a Model against Anthropic's hosted API.
func New(apiKey, model string) *Model {
	client := sdk.NewClient(option.WithAPIKey(apiKey))
	return &Model{client: &client, model: model}
}

func (m *Model) Complete(ctx context.Context, req *completion.Request) (*completion.Response, error) {
	params, err := m.buildParams(req)
	if err != nil {
		return nil, err
	}
	msg, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return nil, &completion.ProviderError{Message: fmt.Sprintf("anthropic: %v", err)}
	}
	return translateResponse(msg)
}

func (m *Model) Stream(ctx context.Context, req *completion.Request) (completion.StreamingResponse, error) {
	params, err := m.buildParams(req)
	if err != nil {
		return nil, err
	}
	stream := m.client.Messages.NewStreaming(ctx, params)
	return &streamingResponse{stream: stream, proc: newChunkProcessor()}, nil
}

func (m *Model) buildParams(req *completion.Request) (sdk.MessageNewParams, error) {
	messages, system, err := encodeMessages(req)
	if err != nil {
		return sdk.MessageNewParams{}, err
	}

	maxTokens := defaultMaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(m.model),
		MaxTokens: int64(maxTokens),
		Messages:  messages,
	}
	if len(system) > 0 {
		params.System = system
	}

	if req.Temperature != nil {
		temp := *req.Temperature
		if temp > 1.0 {
			temp = 1.0 // Anthropic's range is 0-1, unlike OpenAI's 0-2.
		}
		params.Temperature = sdk.Float(temp)
	}

	if len(req.Tools) > 0 {
		tools, err := encodeTools(req.Tools)
		if err != nil {
			return params, err
		}
		params.Tools = tools
	}
	if req.ToolChoice != nil {
		params.ToolChoice = encodeToolChoice(req.ToolChoice)
	}
	return params, nil
}

// encodeMessages translates the canonical history into Anthropic's
// conversation plus a top-level system block list, grounded on the source's
// encodeMessages (system prompt as a top-level field rather than a message
// role, per spec §6.2's "Anthropic style" note).
func encodeMessages(req *completion.Request) ([]sdk.MessageParam, []sdk.TextBlockParam, error) {
	var system []sdk.TextBlockParam
	if req.Preamble != "" {
		system = append(system, sdk.TextBlockParam{Text: req.Preamble})
	}
	docsText, err := convertDocuments(req.Documents)
	if err != nil {
		return nil, nil, err
	}
	if docsText != "" {
		system = append(system, sdk.TextBlockParam{Text: docsText})
	}

	all := req.History.Slice()
	conversation := make([]sdk.MessageParam, 0, len(all))
	for _, msg := range all {
		blocks, err := encodeMessageBlocks(msg)
		if err != nil {
			return nil, nil, err
		}
		if len(blocks) == 0 {
			continue
		}
		switch msg.Role() {
		case message.RoleUser:
			conversation = append(conversation, sdk.NewUserMessage(blocks...))
		case message.RoleAssistant:
			conversation = append(conversation, sdk.NewAssistantMessage(blocks...))
		}
	}
	return conversation, system, nil
}

func encodeMessageBlocks(msg message.Message) ([]sdk.ContentBlockParamUnion, error) {
	switch m := msg.(type) {
	case message.UserMessage:
		return encodeUserBlocks(m)
	case message.AssistantMessage:
		return encodeAssistantBlocks(m)
	default:
		return nil, nil
	}
}

func encodeUserBlocks(m message.UserMessage) ([]sdk.ContentBlockParamUnion, error) {
	var blocks []sdk.ContentBlockParamUnion
	for _, part := range m.Content.Slice() {
		switch p := part.(type) {
		case message.TextContent:
			if p.Text != "" {
				blocks = append(blocks, sdk.NewTextBlock(p.Text))
			}
		case message.ToolResultContent:
			blocks = append(blocks, sdk.NewToolResultBlock(p.ToolCallID, toolResultText(p), false))
		default:
			return nil, &completion.RequestError{Err: fmt.Errorf("anthropic: unsupported user content %T", part)}
		}
	}
	return blocks, nil
}

func toolResultText(r message.ToolResultContent) string {
	if t, ok := r.Content.First().(message.TextContent); ok {
		return t.Text
	}
	return ""
}

// encodeAssistantBlocks preserves the caller's part ordering verbatim —
// spec §4.4 point 4 requires reasoning precede tool calls within a turn when
// echoed back, and the canonical history already carries that order.
func encodeAssistantBlocks(m message.AssistantMessage) ([]sdk.ContentBlockParamUnion, error) {
	var blocks []sdk.ContentBlockParamUnion
	for _, part := range m.Content.Slice() {
		switch p := part.(type) {
		case message.TextContent:
			if p.Text != "" {
				blocks = append(blocks, sdk.NewTextBlock(p.Text))
			}
		case message.ToolCallContent:
			var args map[string]any
			if len(p.Arguments) > 0 {
				if err := json.Unmarshal(p.Arguments, &args); err != nil {
					return nil, &completion.JsonError{Err: fmt.Errorf("anthropic: parse tool call %q arguments: %w", p.Name, err)}
				}
			}
			blocks = append(blocks, sdk.NewToolUseBlock(p.ID, args, p.Name))
		case message.ReasoningContent:
			reasoningBlocks, err := encodeReasoningParts(p.Content)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, reasoningBlocks...)
		default:
			return nil, &completion.RequestError{Err: fmt.Errorf("anthropic: unsupported assistant content %T", part)}
		}
	}
	return blocks, nil
}

// encodeReasoningParts maps ReasoningText/ReasoningRedacted onto Anthropic's
// thinking/redacted_thinking blocks, preserving signatures verbatim.
// ReasoningSummary and ReasoningEncrypted have no Anthropic wire equivalent;
// per spec invariant 1 ("unsupported variants produce a typed error rather
// than silently dropping"), echoing one back is a RequestError, not a
// best-effort downgrade.
func encodeReasoningParts(content message.OneOrMany[message.ReasoningPart]) ([]sdk.ContentBlockParamUnion, error) {
	var blocks []sdk.ContentBlockParamUnion
	for _, part := range content.Slice() {
		switch p := part.(type) {
		case message.ReasoningText:
			signature := ""
			if p.Signature != nil {
				signature = *p.Signature
			}
			blocks = append(blocks, sdk.NewThinkingBlock(signature, p.Text))
		case message.ReasoningRedacted:
			blocks = append(blocks, sdk.NewRedactedThinkingBlock(base64.StdEncoding.EncodeToString(p.Blob)))
		default:
			return nil, &completion.RequestError{Err: fmt.Errorf("anthropic: reasoning content kind %T cannot be echoed back to this provider", part)}
		}
	}
	return blocks, nil
}

// convertDocuments mirrors providers/openai's and providers/gemini's
// document folding: Anthropic's Messages API has no generic text-document
// input slot either, so text-disposition documents join the system prompt
// and file-input-only documents (PDFs without native support wired here)
// are rejected rather than silently dropped.
func convertDocuments(docs []message.DocumentContent) (string, error) {
	var text string
	for i, d := range docs {
		disposition, err := message.ResolveDocument(d, false)
		if err != nil {
			return "", fmt.Errorf("anthropic: document %d: %w", i, err)
		}
		if disposition != message.DocumentAsText {
			return "", fmt.Errorf("anthropic: document %d: file-input documents are not supported", i)
		}
		if d.Source.Kind != message.SourceString {
			return "", fmt.Errorf("anthropic: document %d: only inline text documents are supported", i)
		}
		if text != "" {
			text += "\n\n"
		}
		text += d.Source.Text
	}
	return text, nil
}

func encodeTools(defs []tool.Definition) ([]sdk.ToolUnionParam, error) {
	out := make([]sdk.ToolUnionParam, len(defs))
	for i, d := range defs {
		schema, err := toolInputSchema(d.Parameters)
		if err != nil {
			return nil, &completion.JsonError{Err: fmt.Errorf("anthropic: convert tool %q schema: %w", d.Name, err)}
		}
		u := sdk.ToolUnionParamOfTool(schema, d.Name)
		if u.OfTool != nil {
			u.OfTool.Description = sdk.String(d.Description)
		}
		out[i] = u
	}
	return out, nil
}

// toolInputSchema round-trips an invopop/jsonschema.Schema through JSON into
// the ExtraFields map sdk.ToolInputSchemaParam carries, matching the
// grounding source's toolInputSchema.
func toolInputSchema(schema any) (sdk.ToolInputSchemaParam, error) {
	if schema == nil {
		return sdk.ToolInputSchemaParam{ExtraFields: map[string]any{"type": "object", "properties": map[string]any{}}}, nil
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return sdk.ToolInputSchemaParam{}, &completion.JsonError{Err: fmt.Errorf("anthropic: marshal tool schema: %w", err)}
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return sdk.ToolInputSchemaParam{}, &completion.JsonError{Err: fmt.Errorf("anthropic: unmarshal tool schema: %w", err)}
	}
	return sdk.ToolInputSchemaParam{ExtraFields: m}, nil
}

func encodeToolChoice(tc *completion.ToolChoice) sdk.ToolChoiceUnionParam {
	switch tc.Mode {
	case completion.ToolChoiceNone:
		none := sdk.NewToolChoiceNoneParam()
		return sdk.ToolChoiceUnionParam{OfNone: &none}
	case completion.ToolChoiceAny:
		return sdk.ToolChoiceUnionParam{OfAny: &sdk.ToolChoiceAnyParam{}}
	case completion.ToolChoiceTool:
		return sdk.ToolChoiceParamOfTool(tc.Name)
	default:
		return sdk.ToolChoiceUnionParam{}
	}
}

// translateResponse maps a buffered Message onto completion.Response,
// preserving block order (reasoning before tool calls falls out naturally:
// Anthropic itself emits thinking blocks before the tool_use blocks they
// preceded).
func translateResponse(msg *sdk.Message) (*completion.Response, error) {
	var parts []message.AssistantPart
	for i, block := range msg.Content {
		switch block.Type {
		case "text":
			if block.Text != "" {
				parts = append(parts, message.TextContent{Text: block.Text})
			}
		case "tool_use":
			parts = append(parts, message.ToolCallContent{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: json.RawMessage(block.Input),
			})
		case "thinking":
			if block.Thinking == "" {
				continue
			}
			var sig *string
			if block.Signature != "" {
				sig = &block.Signature
			}
			id := fmt.Sprintf("%d", i)
			parts = append(parts, message.ReasoningContent{
				ID:      &id,
				Content: message.One[message.ReasoningPart](message.ReasoningText{Text: block.Thinking, Signature: sig}),
			})
		case "redacted_thinking":
			data, err := base64.StdEncoding.DecodeString(block.Data)
			if err != nil {
				return nil, fmt.Errorf("anthropic: decode redacted thinking block: %w", err)
			}
			id := fmt.Sprintf("%d", i)
			parts = append(parts, message.ReasoningContent{
				ID:      &id,
				Content: message.One[message.ReasoningPart](message.ReasoningRedacted{Blob: data}),
			})
		}
	}
	if len(parts) == 0 {
		parts = append(parts, message.TextContent{Text: ""})
	}

	oneOrMany, err := message.FromSlice(parts)
	if err != nil {
		return nil, err
	}
	id := msg.ID
	return &completion.Response{
		Choice:            oneOrMany,
		Usage:             convertUsage(msg.Usage),
		Raw:               msg,
		ProviderMessageID: &id,
	}, nil
}

func convertUsage(u sdk.Usage) completion.Usage {
	return completion.Usage{
		InputTokens:       int(u.InputTokens),
		OutputTokens:      int(u.OutputTokens),
		TotalTokens:       int(u.InputTokens + u.OutputTokens),
		CachedInputTokens: int(u.CacheReadInputTokens),
	}
}
