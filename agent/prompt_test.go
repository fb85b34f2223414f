package agent

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentflow-go/agentflow/completion"
	"github.com/agentflow-go/agentflow/message"
	"github.com/agentflow-go/agentflow/tool"
	"github.com/agentflow-go/agentflow/toolserver"
)

// mustEmptyToolServer starts a tool server actor with no registered tools,
// for tests that exercise the hook's skip path (the skip decision never
// reaches CallTool, so the actor is never asked to resolve "dangerous").
func mustEmptyToolServer(t *testing.T) *toolserver.Server {
	t.Helper()
	return toolserver.New(context.Background(), tool.NewSet(), nil, 0, nil)
}

// scriptedModel returns one canned Response per Complete call, in order.
type scriptedModel struct {
	responses []*completion.Response
	calls     int
}

func (m *scriptedModel) Complete(ctx context.Context, req *completion.Request) (*completion.Response, error) {
	resp := m.responses[m.calls]
	if m.calls < len(m.responses)-1 {
		m.calls++
	}
	return resp, nil
}

func (m *scriptedModel) Stream(ctx context.Context, req *completion.Request) (completion.StreamingResponse, error) {
	panic("scriptedModel does not support Stream")
}

func textResponse(text string) *completion.Response {
	return &completion.Response{
		Choice: message.One[message.AssistantPart](message.TextContent{Text: text}),
		Usage:  completion.Usage{TotalTokens: 10},
	}
}

func toolCallResponse(calls ...message.ToolCallContent) *completion.Response {
	parts := make([]message.AssistantPart, len(calls))
	for i, c := range calls {
		parts[i] = c
	}
	oneOrMany, _ := message.FromSlice(parts)
	return &completion.Response{Choice: oneOrMany, Usage: completion.Usage{TotalTokens: 5}}
}

func argsJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

type addArgs struct {
	X int `json:"x"`
	Y int `json:"y"`
}
type addOutput struct {
	Sum int `json:"sum"`
}

func addTool() tool.Dyn {
	return tool.Func("add", "adds two integers", func(ctx context.Context, a addArgs) (addOutput, error) {
		return addOutput{Sum: a.X + a.Y}, nil
	})
}

// S1: Text-only buffered prompt.
func TestTextOnlyBufferedPrompt(t *testing.T) {
	model := &scriptedModel{responses: []*completion.Response{
		textResponse("The capital of France is Paris."),
	}}
	a, err := NewBuilder(model).Preamble("You are helpful.").Build(context.Background())
	require.NoError(t, err)

	resp, err := a.Prompt(context.Background(), "Whats the capital of France?", nil)
	require.NoError(t, err)
	assert.Contains(t, strings.ToLower(resp.Output), "paris")
	assert.Equal(t, 10, resp.Usage.TotalTokens)
}

// S2: Single-turn tool call, buffered.
func TestSingleToolCallBuffered(t *testing.T) {
	model := &scriptedModel{responses: []*completion.Response{
		toolCallResponse(message.ToolCallContent{ID: "c1", Name: "add", Arguments: argsJSON(t, addArgs{X: 2, Y: 5})}),
		textResponse("7"),
	}}
	a, err := NewBuilder(model).Tool(addTool()).Build(context.Background())
	require.NoError(t, err)

	resp, err := a.Prompt(context.Background(), "Add 2 and 5", nil)
	require.NoError(t, err)
	assert.Contains(t, resp.Output, "7")
	assert.Equal(t, 2, model.calls+1)

	last := resp.History[len(resp.History)-1]
	assert.Equal(t, message.RoleAssistant, last.Role())
}

// S3: Multi-tool concurrent, buffered — tool results preserve call order
// regardless of completion order.
func TestMultiToolConcurrentOrdering(t *testing.T) {
	slow := tool.Func("get_time", "returns the time", func(ctx context.Context, _ struct{}) (string, error) {
		time.Sleep(30 * time.Millisecond)
		return "12:00", nil
	})
	fast := tool.Func("get_weather", "returns the weather", func(ctx context.Context, args struct {
		City string `json:"city"`
	}) (string, error) {
		return "sunny in " + args.City, nil
	})

	model := &scriptedModel{responses: []*completion.Response{
		toolCallResponse(
			message.ToolCallContent{ID: "c1", Name: "get_time", Arguments: json.RawMessage(`{}`)},
			message.ToolCallContent{ID: "c2", Name: "get_weather", Arguments: json.RawMessage(`{"city":"NYC"}`)},
		),
		textResponse("done"),
	}}
	a, err := NewBuilder(model).Tools(slow, fast).ToolConcurrency(2).Build(context.Background())
	require.NoError(t, err)

	resp, err := a.Prompt(context.Background(), "what time is it and how's the weather in NYC?", &PromptOptions{ToolConcurrency: 2})
	require.NoError(t, err)
	assert.Contains(t, resp.Output, "done")

	// The user turn right before the final assistant turn holds the tool
	// results; find it and assert call order [get_time, get_weather].
	var toolResultsMsg message.UserMessage
	for _, m := range resp.History {
		if um, ok := m.(message.UserMessage); ok {
			if _, isToolResult := um.Content.First().(message.ToolResultContent); isToolResult {
				toolResultsMsg = um
			}
		}
	}
	require.NotZero(t, toolResultsMsg.Content.Len())
	first := toolResultsMsg.Content.First().(message.ToolResultContent)
	second := toolResultsMsg.Content.Rest()[0].(message.ToolResultContent)
	assert.Equal(t, "c1", first.ToolCallID)
	assert.Equal(t, "c2", second.ToolCallID)
}

// S4: Turn-limit exhaustion.
func TestTurnLimitExceeded(t *testing.T) {
	alwaysToolCall := &scriptedModel{responses: []*completion.Response{
		toolCallResponse(message.ToolCallContent{ID: "c1", Name: "add", Arguments: argsJSON(t, addArgs{X: 1, Y: 1})}),
	}}
	maxTurns := 2
	a, err := NewBuilder(alwaysToolCall).Tool(addTool()).DefaultMaxTurns(maxTurns).Build(context.Background())
	require.NoError(t, err)

	_, err = a.Prompt(context.Background(), "loop forever", nil)
	require.Error(t, err)
	var exceeded *MaxTurnsExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, maxTurns, exceeded.Max)
}

type skipHook struct {
	NoopHook
	reason string
}

func (h skipHook) OnToolCall(ctx context.Context, name, callID, internalID, args string) ToolDecision {
	return ToolSkip(h.reason)
}

// S6: Hook-skipped tool.
func TestHookSkippedTool(t *testing.T) {
	model := &scriptedModel{responses: []*completion.Response{
		toolCallResponse(message.ToolCallContent{ID: "c1", Name: "dangerous", Arguments: json.RawMessage(`{}`)}),
		textResponse("ok"),
	}}
	a, err := NewBuilder(model).
		ToolServerHandle(mustEmptyToolServer(t)).
		WithHook(skipHook{reason: "not allowed"}).
		Build(context.Background())
	require.NoError(t, err)

	resp, err := a.Prompt(context.Background(), "do something dangerous", nil)
	require.NoError(t, err)
	assert.Contains(t, resp.Output, "ok")

	var toolResultsMsg message.UserMessage
	for _, m := range resp.History {
		if um, ok := m.(message.UserMessage); ok {
			if _, isToolResult := um.Content.First().(message.ToolResultContent); isToolResult {
				toolResultsMsg = um
			}
		}
	}
	trc := toolResultsMsg.Content.First().(message.ToolResultContent)
	text := trc.Content.First().(message.TextContent)
	assert.Equal(t, "not allowed", text.Text)
}
