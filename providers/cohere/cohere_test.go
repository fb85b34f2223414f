package cohere

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/invopop/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentflow-go/agentflow/completion"
	"github.com/agentflow-go/agentflow/internal/transport"
	"github.com/agentflow-go/agentflow/internal/transport/transporttest"
	"github.com/agentflow-go/agentflow/message"
	"github.com/agentflow-go/agentflow/tool"
)

func TestConvertMessagesBuildsSystemFromPreambleAndDocuments(t *testing.T) {
	req := &completion.Request{
		Preamble: "be helpful",
		Documents: []message.DocumentContent{
			{Source: message.StringSource("doc body")},
		},
		History: message.NewOneOrMany[message.Message](message.User("hi")),
	}
	messages, err := convertMessages(req)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(messages), 2)
	assert.Equal(t, "system", messages[0].Role)
	assert.Contains(t, messages[0].Content, "be helpful")
	assert.Contains(t, messages[0].Content, "doc body")
	assert.Equal(t, "user", messages[1].Role)
	assert.Equal(t, "hi", messages[1].Content)
}

func TestConvertMessagesRejectsFileInputDocument(t *testing.T) {
	req := &completion.Request{
		Documents: []message.DocumentContent{
			{Source: message.Base64Source("binarydata=="), MediaType: "application/pdf"},
		},
	}
	_, err := convertMessages(req)
	assert.Error(t, err)
}

func TestConvertAssistantMessageToolCallThenResultRoundTrips(t *testing.T) {
	toolCall := message.ToolCallContent{ID: "call_1", Name: "get_weather", Arguments: json.RawMessage(`{"location":"NYC"}`)}
	assistantTurn := message.AssistantWithParts(message.One[message.AssistantPart](toolCall))
	toolResult := message.ToolResults(message.NewToolResult("call_1", "72F and sunny"))

	history := message.NewOneOrMany[message.Message](
		message.User("what's the weather?"),
		assistantTurn,
		toolResult,
	)
	messages, err := convertMessages(&completion.Request{History: history})
	require.NoError(t, err)
	require.Len(t, messages, 3)

	assert.Equal(t, "assistant", messages[1].Role)
	require.Len(t, messages[1].ToolCalls, 1)
	assert.Equal(t, "get_weather", messages[1].ToolCalls[0].Function.Name)

	assert.Equal(t, "tool", messages[2].Role)
	assert.Equal(t, "call_1", messages[2].ToolCallID)
	assert.Equal(t, "72F and sunny", messages[2].Content)
}

func TestConvertToolsDerivesSchema(t *testing.T) {
	schema := (&jsonschema.Reflector{}).Reflect(struct {
		Location string `json:"location"`
	}{})
	defs := []tool.Definition{{Name: "get_weather", Description: "Get the weather", Parameters: schema}}
	tools, err := convertTools(defs)
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "function", tools[0].Type)
	assert.Equal(t, "get_weather", tools[0].Function.Name)
}

func TestConvertToolChoiceModes(t *testing.T) {
	cases := []struct {
		name string
		mode completion.ToolChoiceMode
		want string
	}{
		{"[P1] none maps to none", completion.ToolChoiceNone, "none"},
		{"[P2] any maps to required", completion.ToolChoiceAny, "required"},
		{"[P3] named tool widens to required", completion.ToolChoiceTool, "required"},
		{"[P4] auto omits the field", completion.ToolChoiceAuto, ""},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := convertToolChoice(&completion.ToolChoice{Mode: c.mode, Name: "get_weather"})
			assert.Equal(t, c.want, got)
		})
	}
}

func TestConvertResponseTextAndToolCalls(t *testing.T) {
	resp := &chatResponse{
		ID: "msg_1",
		Message: cohereResponseMessage{
			Role:    "assistant",
			Content: []cohereContentBlock{{Type: "text", Text: "hello"}},
			ToolCalls: []cohereToolCall{
				{ID: "call_1", Type: "function", Function: cohereFunctionCall{Name: "get_weather", Arguments: `{"location":"NYC"}`}},
			},
		},
		Usage: cohereUsage{},
	}
	resp.Usage.Tokens.InputTokens = 5
	resp.Usage.Tokens.OutputTokens = 10

	out, err := convertResponse(resp)
	require.NoError(t, err)
	require.NotNil(t, out.ProviderMessageID)
	assert.Equal(t, "msg_1", *out.ProviderMessageID)
	assert.Equal(t, 5, out.Usage.InputTokens)
	assert.Equal(t, 10, out.Usage.OutputTokens)
	assert.Equal(t, 15, out.Usage.TotalTokens)

	require.Equal(t, 2, out.Choice.Len())
	text, ok := out.Choice.First().(message.TextContent)
	require.True(t, ok)
	assert.Equal(t, "hello", text.Text)
	toolCall, ok := out.Choice.Rest()[0].(message.ToolCallContent)
	require.True(t, ok)
	assert.Equal(t, "get_weather", toolCall.Name)
}

func TestCompleteSendsRequestAndParsesResponse(t *testing.T) {
	body, err := json.Marshal(chatResponse{
		ID: "msg_1",
		Message: cohereResponseMessage{
			Content: []cohereContentBlock{{Type: "text", Text: "hi there"}},
		},
	})
	require.NoError(t, err)

	recorder := &transporttest.Recorder{
		Responses: []*transport.Response{
			{StatusCode: http.StatusOK, Body: body},
		},
	}
	m := NewWithClient(recorder, "key", "command-r-plus")
	out, err := m.Complete(context.Background(), &completion.Request{
		History: message.NewOneOrMany[message.Message](message.User("hi")),
	})
	require.NoError(t, err)
	require.Len(t, recorder.Requests, 1)
	assert.Equal(t, "POST", recorder.Requests[0].Method)
	assert.Equal(t, defaultBaseURL, recorder.Requests[0].URL)

	text, ok := out.Choice.First().(message.TextContent)
	require.True(t, ok)
	assert.Equal(t, "hi there", text.Text)
}

func TestStreamAssemblesToolCallFromStartDeltaEnd(t *testing.T) {
	events := []string{
		`{"type":"content-delta","delta":{"message":{"content":{"text":"thinking..."}}}}`,
		`{"type":"tool-call-start","index":0,"delta":{"message":{"tool_calls":{"id":"call_1","function":{"name":"get_weather"}}}}}`,
		`{"type":"tool-call-delta","index":0,"delta":{"message":{"tool_calls":{"function":{"arguments":"{\"loc"}}}}}`,
		`{"type":"tool-call-delta","index":0,"delta":{"message":{"tool_calls":{"function":{"arguments":"ation\":\"NYC\"}"}}}}}`,
		`{"type":"tool-call-end","index":0}`,
		`{"type":"message-end","delta":{"usage":{"tokens":{"input_tokens":3,"output_tokens":7}}}}`,
	}
	recorder := &transporttest.Recorder{StreamResponses: [][]string{events}}
	m := NewWithClient(recorder, "key", "command-r-plus")
	stream, err := m.Stream(context.Background(), &completion.Request{
		History: message.NewOneOrMany[message.Message](message.User("weather?")),
	})
	require.NoError(t, err)

	var chunks []completion.Chunk
	for {
		c, err := stream.Recv(context.Background())
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		chunks = append(chunks, c)
	}

	var toolCall *completion.ToolCallChunk
	var final *completion.FinalResponseChunk
	for _, c := range chunks {
		switch v := c.(type) {
		case completion.ToolCallChunk:
			tc := v
			toolCall = &tc
		case completion.FinalResponseChunk:
			f := v
			final = &f
		}
	}
	require.NotNil(t, toolCall)
	assert.Equal(t, "call_1", toolCall.ToolCall.ID)
	assert.Equal(t, "get_weather", toolCall.ToolCall.Name)
	assert.Equal(t, `{"location":"NYC"}`, toolCall.ToolCall.ArgumentsJSON)

	require.NotNil(t, final)
	assert.Equal(t, 3, final.Usage.InputTokens)
	assert.Equal(t, 7, final.Usage.OutputTokens)
}
