package agent

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentflow-go/agentflow/completion"
	"github.com/agentflow-go/agentflow/message"
)

// terminateAfterFirstCall stops the loop as soon as the model is about to be
// called a second time, proving the loop checks the hook's decision before
// issuing another completion (invariant 9).
type terminateAfterFirstCall struct {
	NoopHook
	calls int
}

func (h *terminateAfterFirstCall) OnCompletionCall(ctx context.Context, prompt message.Message, history []message.Message) Decision {
	h.calls++
	if h.calls > 1 {
		return Terminate("enough turns")
	}
	return Continue()
}

func TestHookTerminationStopsLoopBeforeSecondModelCall(t *testing.T) {
	model := &scriptedModel{responses: []*completion.Response{
		toolCallResponse(message.ToolCallContent{ID: "c1", Name: "add", Arguments: argsJSON(t, addArgs{X: 1, Y: 1})}),
		textResponse("unreachable"),
	}}
	hook := &terminateAfterFirstCall{}
	a, err := NewBuilder(model).Tool(addTool()).WithHook(hook).Build(context.Background())
	require.NoError(t, err)

	_, err = a.Prompt(context.Background(), "go", nil)
	require.Error(t, err)

	var cancelled *PromptCancelledError
	require.ErrorAs(t, err, &cancelled)
	assert.Equal(t, "enough turns", cancelled.Reason)
	assert.Equal(t, 2, hook.calls)
	assert.Equal(t, 1, model.calls)
}

// TestToolTerminateStopsDispatchWithoutCallingTool proves a ToolTerminate
// decision never reaches the tool server: "danger" is never registered on
// the (empty) tool server handle, so a CallTool attempt would itself error;
// a clean PromptCancelledError instead confirms dispatch never ran.
func TestToolTerminateStopsDispatchWithoutCallingTool(t *testing.T) {
	model := &scriptedModel{responses: []*completion.Response{
		toolCallResponse(message.ToolCallContent{ID: "c1", Name: "danger", Arguments: []byte(`{}`)}),
	}}

	hook := toolTerminateHook{}
	a, err := NewBuilder(model).ToolServerHandle(mustEmptyToolServer(t)).WithHook(hook).Build(context.Background())
	require.NoError(t, err)

	_, err = a.Prompt(context.Background(), "go", nil)
	require.Error(t, err)
	var cancelled *PromptCancelledError
	require.ErrorAs(t, err, &cancelled)
	assert.Equal(t, "blocked by policy", cancelled.Reason)
}

type toolTerminateHook struct {
	NoopHook
}

func (toolTerminateHook) OnToolCall(ctx context.Context, name, callID, internalID, args string) ToolDecision {
	return ToolTerminate("blocked by policy")
}

// TestToolTerminateStopsRemainingCallsInSameDispatch proves invariant 9 holds
// across a multi-call dispatch, not just a single-call one: once any call's
// OnToolCall returns ToolTerminate, no other call in the same dispatch may
// reach hook.OnToolCall at all, even though every call's goroutine raced for
// the same semaphore slot. ToolConcurrency(1) makes this deterministic: only
// one goroutine ever holds the slot at a time, so whichever call acquires it
// first sets stopDecision before releasing, and every other call observes
// stopDecision != nil the moment it acquires its own turn.
func TestToolTerminateStopsRemainingCallsInSameDispatch(t *testing.T) {
	model := &scriptedModel{responses: []*completion.Response{
		toolCallResponse(
			message.ToolCallContent{ID: "c1", Name: "danger", Arguments: []byte(`{}`)},
			message.ToolCallContent{ID: "c2", Name: "danger", Arguments: []byte(`{}`)},
			message.ToolCallContent{ID: "c3", Name: "danger", Arguments: []byte(`{}`)},
		),
	}}

	hook := &countingToolTerminateHook{}
	a, err := NewBuilder(model).
		ToolServerHandle(mustEmptyToolServer(t)).
		WithHook(hook).
		ToolConcurrency(1).
		Build(context.Background())
	require.NoError(t, err)

	_, err = a.Prompt(context.Background(), "go", &PromptOptions{ToolConcurrency: 1})
	require.Error(t, err)
	var cancelled *PromptCancelledError
	require.ErrorAs(t, err, &cancelled)
	assert.Equal(t, "blocked by policy", cancelled.Reason)

	assert.EqualValues(t, 1, atomic.LoadInt32(&hook.onToolCallCount))
	assert.EqualValues(t, 0, atomic.LoadInt32(&hook.onToolResultCount))
}

type countingToolTerminateHook struct {
	NoopHook
	onToolCallCount   int32
	onToolResultCount int32
}

func (h *countingToolTerminateHook) OnToolCall(ctx context.Context, name, callID, internalID, args string) ToolDecision {
	atomic.AddInt32(&h.onToolCallCount, 1)
	return ToolTerminate("blocked by policy")
}

func (h *countingToolTerminateHook) OnToolResult(ctx context.Context, name, callID, internalID, args, result string) Decision {
	atomic.AddInt32(&h.onToolResultCount, 1)
	return Decision{}
}
