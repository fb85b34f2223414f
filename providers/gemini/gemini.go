// Package gemini implements the completion.Model contract (C4) against
// Google's Generative AI API, grounded on the teacher's
// agent/adapters/gemini_adapter.go (GeminiAdapter), generalized from its
// single-flattened-parts conversion (which ignores conversation structure
// entirely) to a proper genai.ChatSession history so multi-turn tool-calling
// round-trips correctly.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	"github.com/agentflow-go/agentflow/completion"
	"github.com/agentflow-go/agentflow/message"
	"github.com/agentflow-go/agentflow/providers/registry"
	"github.com/agentflow-go/agentflow/tool"
)

func init() {
	registry.Register("gemini", "GEMINI_API_KEY", func(apiKey, model string) (completion.Model, error) {
		return New(context.Background(), apiKey, model)
	})
}

// Model adapts genai.Client to completion.Model.
type Model struct {
	client *genai.Client
	model  string
}

// New builds a Model, dialing Google's Generative AI service with apiKey.
func New(ctx context.Context, apiKey, model string) (*Model, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Model{client: client, model: model}, nil
}

func (m *Model) Complete(ctx context.Context, req *completion.Request) (*completion.Response, error) {
	_, cs, lastParts, err := m.prepare(req)
	if err != nil {
		return nil, err
	}
	resp, err := cs.SendMessage(ctx, lastParts...)
	if err != nil {
		return nil, &completion.ProviderError{Message: fmt.Sprintf("gemini: %v", err)}
	}
	return convertResponse(resp)
}

func (m *Model) Stream(ctx context.Context, req *completion.Request) (completion.StreamingResponse, error) {
	_, cs, lastParts, err := m.prepare(req)
	if err != nil {
		return nil, err
	}
	iter := cs.SendMessageStream(ctx, lastParts...)
	return &streamingResponse{iter: iter}, nil
}

func (m *Model) prepare(req *completion.Request) (*genai.GenerativeModel, *genai.ChatSession, []genai.Part, error) {
	gm := m.client.GenerativeModel(m.model)
	if err := configureModel(gm, req); err != nil {
		return nil, nil, nil, err
	}

	history, lastParts, err := convertHistory(req.History)
	if err != nil {
		return nil, nil, nil, err
	}
	cs := gm.StartChat()
	cs.History = history
	return gm, cs, lastParts, nil
}

// configureModel sets system instruction, sampling parameters, and tools —
// grounded on the teacher's configureModel, extended with document context
// (Gemini has no file-input slot equivalent, so documents fold into the
// system instruction like the preamble) and function-declaration tools.
func configureModel(gm *genai.GenerativeModel, req *completion.Request) error {
	instruction := req.Preamble
	docsText, err := convertDocuments(req.Documents)
	if err != nil {
		return err
	}
	if docsText != "" {
		if instruction != "" {
			instruction += "\n\n"
		}
		instruction += docsText
	}
	if instruction != "" {
		gm.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(instruction)}}
	}

	if req.Temperature != nil {
		temp := float32(*req.Temperature)
		if temp > 1.0 {
			temp = 1.0 // Gemini's range is 0-1, unlike OpenAI's 0-2.
		}
		gm.SetTemperature(temp)
	}
	if req.MaxTokens != nil {
		gm.SetMaxOutputTokens(int32(*req.MaxTokens))
	}

	if len(req.Tools) > 0 {
		tools, err := convertTools(req.Tools)
		if err != nil {
			return err
		}
		gm.Tools = tools
	}
	if req.ToolChoice != nil {
		gm.ToolConfig = convertToolChoice(req.ToolChoice)
	}
	return nil
}

func convertToolChoice(tc *completion.ToolChoice) *genai.ToolConfig {
	switch tc.Mode {
	case completion.ToolChoiceNone:
		return &genai.ToolConfig{FunctionCallingConfig: &genai.FunctionCallingConfig{Mode: genai.FunctionCallingNone}}
	case completion.ToolChoiceAny:
		return &genai.ToolConfig{FunctionCallingConfig: &genai.FunctionCallingConfig{Mode: genai.FunctionCallingAny}}
	case completion.ToolChoiceTool:
		return &genai.ToolConfig{FunctionCallingConfig: &genai.FunctionCallingConfig{
			Mode:                 genai.FunctionCallingAny,
			AllowedFunctionNames: []string{tc.Name},
		}}
	default:
		return &genai.ToolConfig{FunctionCallingConfig: &genai.FunctionCallingConfig{Mode: genai.FunctionCallingAuto}}
	}
}

// convertHistory turns every message but the last into genai.Content chat
// history, returning the final message's parts separately since
// ChatSession.SendMessage only accepts the new turn's parts — history is
// set directly on the session beforehand. toolNames tracks each tool call's
// id->name as assistant turns are seen, since message.ToolResultContent
// carries only the call id and Gemini's FunctionResponse part requires the
// function's name.
func convertHistory(history message.OneOrMany[message.Message]) ([]*genai.Content, []genai.Part, error) {
	all := history.Slice()
	toolNames := map[string]string{}

	var contents []*genai.Content
	for i, msg := range all {
		parts, err := convertMessageParts(msg, toolNames)
		if err != nil {
			return nil, nil, err
		}
		if i == len(all)-1 {
			return contents, parts, nil
		}
		if len(parts) == 0 {
			continue
		}
		contents = append(contents, &genai.Content{Role: roleFor(msg), Parts: parts})
	}
	return contents, nil, nil
}

func roleFor(msg message.Message) string {
	if msg.Role() == message.RoleAssistant {
		return "model"
	}
	return "user"
}

func convertMessageParts(msg message.Message, toolNames map[string]string) ([]genai.Part, error) {
	switch m := msg.(type) {
	case message.UserMessage:
		return convertUserParts(m, toolNames)
	case message.AssistantMessage:
		return convertAssistantParts(m, toolNames)
	default:
		return nil, nil
	}
}

func convertUserParts(m message.UserMessage, toolNames map[string]string) ([]genai.Part, error) {
	var parts []genai.Part
	for _, part := range m.Content.Slice() {
		switch p := part.(type) {
		case message.TextContent:
			parts = append(parts, genai.Text(p.Text))
		case message.ToolResultContent:
			name := toolNames[p.ToolCallID]
			text, ok := p.Content.First().(message.TextContent)
			var response string
			if ok {
				response = text.Text
			}
			parts = append(parts, genai.FunctionResponse{
				Name:     name,
				Response: map[string]any{"result": response},
			})
		}
	}
	return parts, nil
}

func convertAssistantParts(m message.AssistantMessage, toolNames map[string]string) ([]genai.Part, error) {
	texts, toolCalls, _ := message.SplitAssistant(m)
	var parts []genai.Part
	for _, t := range texts {
		parts = append(parts, genai.Text(t.Text))
	}
	for _, tc := range toolCalls {
		toolNames[tc.ID] = tc.Name
		var args map[string]any
		if len(tc.Arguments) > 0 {
			if err := json.Unmarshal(tc.Arguments, &args); err != nil {
				return nil, &completion.JsonError{Err: fmt.Errorf("gemini: parse tool call %q arguments: %w", tc.Name, err)}
			}
		}
		parts = append(parts, genai.FunctionCall{Name: tc.Name, Args: args})
	}
	return parts, nil
}

func convertDocuments(docs []message.DocumentContent) (string, error) {
	var text string
	for i, d := range docs {
		disposition, err := message.ResolveDocument(d, false)
		if err != nil {
			return "", fmt.Errorf("document %d: %w", i, err)
		}
		if disposition != message.DocumentAsText {
			return "", fmt.Errorf("document %d: file-input documents are not supported", i)
		}
		if d.Source.Kind != message.SourceString {
			return "", fmt.Errorf("document %d: only inline text documents are supported", i)
		}
		if text != "" {
			text += "\n\n"
		}
		text += d.Source.Text
	}
	return text, nil
}

func convertTools(defs []tool.Definition) ([]*genai.Tool, error) {
	decls := make([]*genai.FunctionDeclaration, len(defs))
	for i, d := range defs {
		schema, err := schemaToGenaiSchema(d.Parameters)
		if err != nil {
			return nil, fmt.Errorf("gemini: convert tool %q schema: %w", d.Name, err)
		}
		decls[i] = &genai.FunctionDeclaration{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  schema,
		}
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}, nil
}

// schemaToGenaiSchema round-trips an invopop/jsonschema.Schema through JSON
// into genai.Schema; the teacher's adapter hard-codes {Type: TypeObject} with
// no properties as an acknowledged simplification, which this generalizes by
// actually converting the derived schema.
func schemaToGenaiSchema(schema any) (*genai.Schema, error) {
	if schema == nil {
		return &genai.Schema{Type: genai.TypeObject}, nil
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, &completion.JsonError{Err: fmt.Errorf("gemini: marshal tool schema: %w", err)}
	}
	var out genai.Schema
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &completion.JsonError{Err: fmt.Errorf("gemini: unmarshal tool schema: %w", err)}
	}
	if out.Type == "" {
		out.Type = genai.TypeObject
	}
	return &out, nil
}

func convertResponse(resp *genai.GenerateContentResponse) (*completion.Response, error) {
	parts, err := responseParts(resp)
	if err != nil {
		return nil, err
	}
	oneOrMany, err := message.FromSlice(parts)
	if err != nil {
		return nil, err
	}
	return &completion.Response{
		Choice: oneOrMany,
		Usage:  convertUsage(resp.UsageMetadata),
		Raw:    resp,
	}, nil
}

func responseParts(resp *genai.GenerateContentResponse) ([]message.AssistantPart, error) {
	var parts []message.AssistantPart
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return []message.AssistantPart{message.TextContent{Text: ""}}, nil
	}

	var textBuf string
	for _, p := range resp.Candidates[0].Content.Parts {
		switch v := p.(type) {
		case genai.Text:
			textBuf += string(v)
		case genai.FunctionCall:
			argsJSON, err := json.Marshal(v.Args)
			if err != nil {
				return nil, &completion.JsonError{Err: fmt.Errorf("gemini: marshal function call args: %w", err)}
			}
			if textBuf != "" {
				parts = append(parts, message.TextContent{Text: textBuf})
				textBuf = ""
			}
			// Gemini assigns no id to a function call, unlike OpenAI/Anthropic;
			// synthesize one so dispatchToolCalls/tool results have something
			// stable to key on, per the teacher's acknowledged simplification
			// (its ToolCall.ID is always "").
			parts = append(parts, message.ToolCallContent{
				ID:        uuid.NewString(),
				Name:      v.Name,
				Arguments: json.RawMessage(argsJSON),
			})
		}
	}
	if textBuf != "" {
		parts = append(parts, message.TextContent{Text: textBuf})
	}
	if len(parts) == 0 {
		parts = append(parts, message.TextContent{Text: ""})
	}
	return parts, nil
}

func convertUsage(u *genai.UsageMetadata) completion.Usage {
	if u == nil {
		return completion.Usage{}
	}
	return completion.Usage{
		InputTokens:  int(u.PromptTokenCount),
		OutputTokens: int(u.CandidatesTokenCount),
		TotalTokens:  int(u.TotalTokenCount),
	}
}
