package openai

import (
	"encoding/json"
	"testing"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentflow-go/agentflow/completion"
	"github.com/agentflow-go/agentflow/message"
	"github.com/agentflow-go/agentflow/tool"
)

const testModel = "gpt-4o-mini"

// TestNewBuildsClientForBaseURL covers [P1] default and [P2] custom baseURL
// construction, grounded on the teacher's TestNewOpenAIAdapter.
func TestNewBuildsClientForBaseURL(t *testing.T) {
	tests := []struct {
		name    string
		apiKey  string
		baseURL string
	}{
		{name: "[P1] default api.openai.com", apiKey: "sk-test", baseURL: ""},
		{name: "[P2] custom baseURL (Ollama-compatible)", apiKey: "test-key", baseURL: "http://localhost:11434/v1"},
		{name: "[P2] empty API key still constructs", apiKey: "", baseURL: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(tt.apiKey, tt.baseURL, testModel)
			require.NotNil(t, m)
			assert.NotNil(t, m.client)
			assert.Equal(t, testModel, m.model)
		})
	}
}

func userText(text string) message.Message {
	return message.User(text)
}

func TestConvertMessagesPreamble(t *testing.T) {
	req := &completion.Request{
		Preamble: "You are a helpful assistant",
		History:  message.NewOneOrMany(userText("Hello")),
	}
	msgs, err := convertMessages(req)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.NotNil(t, msgs[0].OfSystem)
}

func TestConvertMessagesNoPreamble(t *testing.T) {
	req := &completion.Request{
		History: message.NewOneOrMany(userText("Hello")),
	}
	msgs, err := convertMessages(req)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
}

func TestConvertMessagesToolResultRoundTrip(t *testing.T) {
	toolCall := message.ToolCallContent{ID: "call_1", Name: "get_weather", Arguments: json.RawMessage(`{"location":"NYC"}`)}
	assistantTurn := message.AssistantWithParts(message.One[message.AssistantPart](toolCall))
	userResult := message.ToolResults(message.NewToolResult("call_1", "72F and sunny"))

	req := &completion.Request{
		History: message.NewOneOrMany(userText("what's the weather?"), assistantTurn, userResult),
	}
	msgs, err := convertMessages(req)
	require.NoError(t, err)
	// user text, assistant w/ tool call, tool result
	require.Len(t, msgs, 3)
	assert.NotNil(t, msgs[1].OfAssistant)
	require.Len(t, msgs[1].OfAssistant.ToolCalls, 1)
	assert.NotNil(t, msgs[2].OfTool)
}

func TestConvertToolsDerivesFunctionParameters(t *testing.T) {
	schema := (&jsonschema.Reflector{}).Reflect(struct {
		Location string `json:"location"`
	}{})
	defs := []tool.Definition{
		{Name: "get_weather", Description: "Get the weather", Parameters: schema},
	}
	out, err := convertTools(defs)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.NotNil(t, out[0].OfFunction)
	assert.Equal(t, "get_weather", out[0].OfFunction.Function.Name)
}

func TestConvertToolsNilSchemaDoesNotError(t *testing.T) {
	defs := []tool.Definition{{Name: "ping", Description: "ping", Parameters: nil}}
	out, err := convertTools(defs)
	require.NoError(t, err)
	require.Len(t, out, 1)
}

func TestConvertResponseEmptyChoicesProducesEmptyText(t *testing.T) {
	chatCompletion := &openai.ChatCompletion{ID: "resp-1", Choices: []openai.ChatCompletionChoice{}}
	resp, err := convertResponse(chatCompletion)
	require.NoError(t, err)
	require.NotNil(t, resp.ProviderMessageID)
	texts, toolCalls, _ := message.SplitAssistant(message.AssistantMessage{Content: resp.Choice})
	require.Len(t, texts, 1)
	assert.Empty(t, texts[0].Text)
	assert.Empty(t, toolCalls)
}

func TestBuildParamsMergesAdditionalParams(t *testing.T) {
	m := New("test-key", "", testModel)
	req := &completion.Request{
		History:          message.NewOneOrMany(userText("hi")),
		AdditionalParams: json.RawMessage(`{"temperature":0.9}`),
	}
	params, err := m.buildParams(req)
	require.NoError(t, err)
	raw, err := json.Marshal(params)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"temperature":0.9`)
}

func TestBuildParamsRejectsInvalidAdditionalParamsJSON(t *testing.T) {
	m := New("test-key", "", testModel)
	req := &completion.Request{
		History:          message.NewOneOrMany(userText("hi")),
		AdditionalParams: json.RawMessage(`not json`),
	}
	_, err := m.buildParams(req)
	require.Error(t, err)
	var jsonErr *completion.JsonError
	require.ErrorAs(t, err, &jsonErr)
}

func TestBuildParamsToolChoiceModes(t *testing.T) {
	m := New("test-key", "", testModel)
	base := func(choice *completion.ToolChoice) *completion.Request {
		return &completion.Request{
			History:    message.NewOneOrMany(userText("hi")),
			ToolChoice: choice,
		}
	}

	for _, tt := range []struct {
		name   string
		choice *completion.ToolChoice
	}{
		{name: "[P1] auto", choice: &completion.ToolChoice{Mode: completion.ToolChoiceAuto}},
		{name: "[P2] none", choice: &completion.ToolChoice{Mode: completion.ToolChoiceNone}},
		{name: "[P2] any", choice: &completion.ToolChoice{Mode: completion.ToolChoiceAny}},
		{name: "[P2] named tool", choice: &completion.ToolChoice{Mode: completion.ToolChoiceTool, Name: "get_weather"}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.buildParams(base(tt.choice))
			require.NoError(t, err)
		})
	}
}
