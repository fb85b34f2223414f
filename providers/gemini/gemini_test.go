package gemini

import (
	"encoding/json"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/invopop/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentflow-go/agentflow/completion"
	"github.com/agentflow-go/agentflow/message"
	"github.com/agentflow-go/agentflow/tool"
)

func TestConvertHistorySplitsLastMessageAsCurrentTurn(t *testing.T) {
	history := message.NewOneOrMany[message.Message](
		message.User("hi"),
		message.Assistant("hello"),
		message.User("what's the weather?"),
	)
	contents, lastParts, err := convertHistory(history)
	require.NoError(t, err)
	require.Len(t, contents, 2)
	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, "model", contents[1].Role)
	require.Len(t, lastParts, 1)
	assert.Equal(t, genai.Text("what's the weather?"), lastParts[0])
}

func TestConvertHistoryToolCallThenResultRoundTrips(t *testing.T) {
	toolCall := message.ToolCallContent{ID: "call_1", Name: "get_weather", Arguments: json.RawMessage(`{"location":"NYC"}`)}
	assistantTurn := message.AssistantWithParts(message.One[message.AssistantPart](toolCall))
	toolResult := message.ToolResults(message.NewToolResult("call_1", "72F and sunny"))

	history := message.NewOneOrMany[message.Message](
		message.User("what's the weather?"),
		assistantTurn,
		toolResult,
	)
	contents, lastParts, err := convertHistory(history)
	require.NoError(t, err)
	require.Len(t, contents, 2)

	require.Len(t, lastParts, 1)
	resp, ok := lastParts[0].(genai.FunctionResponse)
	require.True(t, ok)
	assert.Equal(t, "get_weather", resp.Name)
	assert.Equal(t, "72F and sunny", resp.Response["result"])
}

func TestConvertToolsDerivesFunctionDeclaration(t *testing.T) {
	schema := (&jsonschema.Reflector{}).Reflect(struct {
		Location string `json:"location"`
	}{})
	defs := []tool.Definition{{Name: "get_weather", Description: "Get the weather", Parameters: schema}}
	tools, err := convertTools(defs)
	require.NoError(t, err)
	require.Len(t, tools, 1)
	require.Len(t, tools[0].FunctionDeclarations, 1)
	assert.Equal(t, "get_weather", tools[0].FunctionDeclarations[0].Name)
}

func TestConvertDocumentsConcatenatesInlineText(t *testing.T) {
	docs := []message.DocumentContent{
		{Source: message.StringSource("doc one"), MediaType: "text/plain"},
		{Source: message.StringSource("doc two"), MediaType: "text/plain"},
	}
	text, err := convertDocuments(docs)
	require.NoError(t, err)
	assert.Equal(t, "doc one\n\ndoc two", text)
}

func TestConvertDocumentsRejectsFileInput(t *testing.T) {
	docs := []message.DocumentContent{
		{Source: message.Base64Source("ZmFrZQ=="), MediaType: "application/pdf"},
	}
	_, err := convertDocuments(docs)
	assert.Error(t, err)
}

func TestConvertResponseEmptyCandidatesProducesEmptyText(t *testing.T) {
	resp := &genai.GenerateContentResponse{}
	out, err := convertResponse(resp)
	require.NoError(t, err)
	texts, toolCalls, _ := message.SplitAssistant(message.AssistantMessage{Content: out.Choice})
	require.Len(t, texts, 1)
	assert.Empty(t, texts[0].Text)
	assert.Empty(t, toolCalls)
}

func TestConvertToolChoiceModes(t *testing.T) {
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
			cfg := convertToolChoice(&completion.ToolChoice{Mode: tt.mode, Name: "get_weather"})
			require.NotNil(t, cfg)
			require.NotNil(t, cfg.FunctionCallingConfig)
		})
	}
}

func TestConvertUsageNilMetadata(t *testing.T) {
	usage := convertUsage(nil)
	assert.Equal(t, completion.Usage{}, usage)
}
