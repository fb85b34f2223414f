package agent

import (
	"context"

	"github.com/agentflow-go/agentflow/completion"
	"github.com/agentflow-go/agentflow/message"
)

// Decision is what most hook callbacks return: continue the loop or
// terminate it with a reason (§4.7, §5 cancellation).
type Decision struct {
	terminate bool
	reason    string
}

// Continue lets the loop proceed.
func Continue() Decision { return Decision{} }

// Terminate ends the loop after this event; reason is surfaced on
// PromptCancelledError.
func Terminate(reason string) Decision { return Decision{terminate: true, reason: reason} }

// ShouldTerminate reports whether the loop must stop, and why.
func (d Decision) ShouldTerminate() (bool, string) { return d.terminate, d.reason }

type toolDecisionKind int

const (
	toolContinue toolDecisionKind = iota
	toolTerminate
	toolSkip
)

// ToolDecision is on_tool_call's three-way return: dispatch normally,
// terminate the loop, or skip dispatch and substitute a result (§4.7).
type ToolDecision struct {
	kind      toolDecisionKind
	reason    string
	skipValue string
}

// ToolContinue dispatches the tool call normally.
func ToolContinue() ToolDecision { return ToolDecision{kind: toolContinue} }

// ToolTerminate ends the loop instead of dispatching.
func ToolTerminate(reason string) ToolDecision {
	return ToolDecision{kind: toolTerminate, reason: reason}
}

// ToolSkip substitutes value as the tool result without invoking the tool.
func ToolSkip(value string) ToolDecision {
	return ToolDecision{kind: toolSkip, skipValue: value}
}

// Hook observes agent lifecycle events (§4.7). Embed NoopHook to implement
// only the events a caller cares about.
type Hook interface {
	OnCompletionCall(ctx context.Context, prompt message.Message, history []message.Message) Decision
	OnCompletionResponse(ctx context.Context, prompt message.Message, resp *completion.Response) Decision
	OnStreamCompletionResponseFinish(ctx context.Context, prompt message.Message, final *completion.Response) Decision
	OnTextDelta(ctx context.Context, delta, accumulated string) Decision
	OnToolCall(ctx context.Context, name, callID, internalID, argsJSON string) ToolDecision
	OnToolCallDelta(ctx context.Context, id, internalID string, name *string, delta string) Decision
	OnToolResult(ctx context.Context, name, callID, internalID, argsJSON, result string) Decision
}

// NoopHook implements Hook with every event continuing. Embed it in a
// partial hook implementation to avoid defining every method.
type NoopHook struct{}

func (NoopHook) OnCompletionCall(context.Context, message.Message, []message.Message) Decision {
	return Continue()
}
func (NoopHook) OnCompletionResponse(context.Context, message.Message, *completion.Response) Decision {
	return Continue()
}
func (NoopHook) OnStreamCompletionResponseFinish(context.Context, message.Message, *completion.Response) Decision {
	return Continue()
}
func (NoopHook) OnTextDelta(context.Context, string, string) Decision { return Continue() }
func (NoopHook) OnToolCall(context.Context, string, string, string, string) ToolDecision {
	return ToolContinue()
}
func (NoopHook) OnToolCallDelta(context.Context, string, string, *string, string) Decision {
	return Continue()
}
func (NoopHook) OnToolResult(context.Context, string, string, string, string, string) Decision {
	return Continue()
}

const defaultCancelReason = "hook requested termination"
