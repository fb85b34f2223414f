package anthropic

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/invopop/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentflow-go/agentflow/completion"
	"github.com/agentflow-go/agentflow/message"
	"github.com/agentflow-go/agentflow/tool"
)

func TestEncodeMessagesBuildsSystemFromPreambleAndDocuments(t *testing.T) {
	req := &completion.Request{
		Preamble: "be concise",
		Documents: []message.DocumentContent{
			{Source: message.StringSource("doc body"), MediaType: "text/plain"},
		},
		History: message.NewOneOrMany[message.Message](message.User("hi")),
	}
	_, system, err := encodeMessages(req)
	require.NoError(t, err)
	require.Len(t, system, 2)
	assert.Equal(t, "be concise", system[0].Text)
	assert.Equal(t, "doc body", system[1].Text)
}

func TestEncodeMessagesRejectsFileInputDocument(t *testing.T) {
	req := &completion.Request{
		Documents: []message.DocumentContent{
			{Source: message.Base64Source("ZmFrZQ=="), MediaType: "application/pdf"},
		},
		History: message.NewOneOrMany[message.Message](message.User("hi")),
	}
	_, _, err := encodeMessages(req)
	assert.Error(t, err)
}

func TestEncodeMessagesUserAssistantToolRoundTrips(t *testing.T) {
	toolCall := message.ToolCallContent{ID: "call_1", Name: "get_weather", Arguments: json.RawMessage(`{"location":"NYC"}`)}
	assistantTurn := message.AssistantWithParts(message.One[message.AssistantPart](toolCall))
	toolResult := message.ToolResults(message.NewToolResult("call_1", "72F and sunny"))

	req := &completion.Request{
		History: message.NewOneOrMany[message.Message](
			message.User("what's the weather?"),
			assistantTurn,
			toolResult,
		),
	}
	conversation, _, err := encodeMessages(req)
	require.NoError(t, err)
	assert.Len(t, conversation, 3)
}

func TestEncodeReasoningPartsPreservesSignature(t *testing.T) {
	sig := "sig-123"
	content := message.One[message.ReasoningPart](message.ReasoningText{Text: "step one", Signature: &sig})
	blocks, err := encodeReasoningParts(content)
	require.NoError(t, err)
	assert.Len(t, blocks, 1)
}

func TestEncodeReasoningPartsRejectsSummary(t *testing.T) {
	content := message.One[message.ReasoningPart](message.ReasoningSummary{Text: "tl;dr"})
	_, err := encodeReasoningParts(content)
	assert.Error(t, err)
}

func TestEncodeReasoningPartsRedactedRoundTrips(t *testing.T) {
	content := message.One[message.ReasoningPart](message.ReasoningRedacted{Blob: []byte("opaque")})
	blocks, err := encodeReasoningParts(content)
	require.NoError(t, err)
	assert.Len(t, blocks, 1)
}

func TestEncodeToolsDerivesSchema(t *testing.T) {
	schema := (&jsonschema.Reflector{}).Reflect(struct {
		Location string `json:"location"`
	}{})
	defs := []tool.Definition{{Name: "get_weather", Description: "Get the weather", Parameters: schema}}
	tools, err := encodeTools(defs)
	require.NoError(t, err)
	require.Len(t, tools, 1)
	require.NotNil(t, tools[0].OfTool)
	assert.Equal(t, "get_weather", tools[0].OfTool.Name)
}

func TestEncodeToolChoiceModes(t *testing.T) {
	for _, tt := range []struct {
		name string
		mode completion.ToolChoiceMode
	}{
		{name: "[P1] auto", mode: completion.ToolChoiceAuto},
		{name: "[P2] none", mode: completion.ToolChoiceNone},
		{name: "[P2] any", mode: completion.ToolChoiceAny},
		{name: "[P2] named tool", mode: completion.ToolChoiceTool},
	} {
		t.Run(tt.name, func(t *testing.T) {
			tc := encodeToolChoice(&completion.ToolChoice{Mode: tt.mode, Name: "get_weather"})
			switch tt.mode {
			case completion.ToolChoiceNone:
				assert.NotNil(t, tc.OfNone)
			case completion.ToolChoiceAny:
				assert.NotNil(t, tc.OfAny)
			case completion.ToolChoiceTool:
				assert.NotNil(t, tc.OfTool)
			}
		})
	}
}

func TestTranslateResponseTextToolUseAndThinking(t *testing.T) {
	msg := &sdk.Message{
		ID: "msg_1",
		Content: []sdk.ContentBlockUnion{
			{Type: "thinking", Thinking: "step one", Signature: "sig-1"},
			{Type: "text", Text: "the weather is"},
			{Type: "tool_use", ID: "call_1", Name: "get_weather", Input: json.RawMessage(`{"location":"NYC"}`)},
		},
		Usage: sdk.Usage{InputTokens: 10, OutputTokens: 5},
	}
	resp, err := translateResponse(msg)
	require.NoError(t, err)

	texts, toolCalls, reasoning := message.SplitAssistant(message.AssistantMessage{Content: resp.Choice})
	require.Len(t, reasoning, 1)
	require.Len(t, texts, 1)
	require.Len(t, toolCalls, 1)
	require.NotNil(t, reasoning[0].ID)

	textPart, ok := reasoning[0].Content.First().(message.ReasoningText)
	require.True(t, ok)
	assert.Equal(t, "step one", textPart.Text)
	require.NotNil(t, textPart.Signature)
	assert.Equal(t, "sig-1", *textPart.Signature)

	assert.Equal(t, "the weather is", texts[0].Text)
	assert.Equal(t, "get_weather", toolCalls[0].Name)
	assert.Equal(t, completion.Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15}, resp.Usage)
}

func TestTranslateResponseRedactedThinking(t *testing.T) {
	data := base64.StdEncoding.EncodeToString([]byte("opaque-bytes"))
	msg := &sdk.Message{
		ID:      "msg_2",
		Content: []sdk.ContentBlockUnion{{Type: "redacted_thinking", Data: data}},
	}
	resp, err := translateResponse(msg)
	require.NoError(t, err)
	_, _, reasoning := message.SplitAssistant(message.AssistantMessage{Content: resp.Choice})
	require.Len(t, reasoning, 1)
	redacted, ok := reasoning[0].Content.First().(message.ReasoningRedacted)
	require.True(t, ok)
	assert.Equal(t, []byte("opaque-bytes"), redacted.Blob)
}

func TestTranslateResponseEmptyContentProducesEmptyText(t *testing.T) {
	msg := &sdk.Message{ID: "msg_3"}
	resp, err := translateResponse(msg)
	require.NoError(t, err)
	texts, toolCalls, reasoning := message.SplitAssistant(message.AssistantMessage{Content: resp.Choice})
	require.Len(t, texts, 1)
	assert.Empty(t, texts[0].Text)
	assert.Empty(t, toolCalls)
	assert.Empty(t, reasoning)
}

func TestConvertUsage(t *testing.T) {
	u := convertUsage(sdk.Usage{InputTokens: 3, OutputTokens: 4, CacheReadInputTokens: 2})
	assert.Equal(t, completion.Usage{InputTokens: 3, OutputTokens: 4, TotalTokens: 7, CachedInputTokens: 2}, u)
}
