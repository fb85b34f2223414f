package agent

import (
	"context"
	"io"
	"strings"

	"github.com/agentflow-go/agentflow/completion"
	"github.com/agentflow-go/agentflow/message"
	"github.com/agentflow-go/agentflow/stream"
)

// StreamPromptOptions configures one multi-turn streaming prompt (§4.9).
type StreamPromptOptions struct {
	// History, if non-nil, is cloned and extended rather than starting a
	// fresh conversation. Its presence also gates whether the final
	// StreamPromptResult carries a History snapshot (§4.9).
	History []message.Message
	MaxTurns *int
	Hook     Hook
	// ToolConcurrency bounds concurrent tool dispatch within one turn.
	ToolConcurrency int
	// OnEvent is invoked for every stream.Event in arrival order, across all
	// turns of the loop (text/tool-call/tool-call-delta/reasoning/
	// reasoning-delta/final), plus a synthetic ToolResultEvent per
	// dispatched tool call.
	OnEvent func(ctx context.Context, ev stream.Event)
	// Cancel, if supplied, lets the caller abort an in-flight stream (S7);
	// the same signal is reused across every turn's aggregator.
	Cancel *stream.CancelSignal
	Pause  *stream.PauseController
}

// ToolResultEvent is a synthetic event StreamPrompt emits after dispatching
// each tool call, mirroring spec §4.9's StreamUserItem::ToolResult.
type ToolResultEvent struct {
	ToolCallID string
	Result     string
}

func (ToolResultEvent) isEvent() {}

// StreamPromptResult is the streaming driver's terminal, successful value.
type StreamPromptResult struct {
	Output  string
	Usage   completion.Usage
	History []message.Message // nil unless the caller supplied History in StreamPromptOptions
}

// StreamPrompt drives the streaming multi-turn loop (C9).
func (a *Agent) StreamPrompt(ctx context.Context, prompt string, opts *StreamPromptOptions) (*StreamPromptResult, error) {
	if opts == nil {
		opts = &StreamPromptOptions{}
	}
	promptMsg := message.User(prompt)
	hook := a.resolveHook(opts.Hook)
	maxTurns := a.defaultMaxTurns
	if opts.MaxTurns != nil {
		maxTurns = *opts.MaxTurns
	}
	concurrency := opts.ToolConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	historySupplied := opts.History != nil
	emit := opts.OnEvent
	if emit == nil {
		emit = func(context.Context, stream.Event) {}
	}

	history := append([]message.Message(nil), opts.History...)
	history = append(history, promptMsg)

	var usage completion.Usage

	for turn := 1; ; turn++ {
		if turn > maxTurns+1 {
			return nil, &MaxTurnsExceededError{Max: maxTurns, History: history, LastPrompt: promptMsg}
		}

		if decision := hook.OnCompletionCall(ctx, promptMsg, history[:len(history)-1]); mustStop(decision) {
			return nil, cancelled(history, decision)
		}

		req, err := a.buildRequest(ctx, history)
		if err != nil {
			return nil, err
		}

		source, err := a.model.Stream(ctx, req)
		if err != nil {
			return nil, err
		}

		agg := stream.New(source, opts.Cancel, opts.Pause)
		var finalUsage completion.Usage
		var finalRaw any
		for {
			ev, err := agg.Next(ctx)
			if err != nil {
				if err == io.EOF {
					break
				}
				source.Close()
				return nil, err
			}
			emit(ctx, ev)

			switch e := ev.(type) {
			case stream.TextDeltaEvent:
				if decision := hook.OnTextDelta(ctx, e.Delta, e.Accumulated); mustStop(decision) {
					source.Close()
					return nil, cancelled(history, decision)
				}
			case stream.ToolCallDeltaEvent:
				if decision := hook.OnToolCallDelta(ctx, e.ID, e.ID, e.NameFragment, derefOr(e.DeltaFragment, "")); mustStop(decision) {
					source.Close()
					return nil, cancelled(history, decision)
				}
			case stream.FinalEvent:
				finalUsage = e.Usage
				finalRaw = e.Raw
			}
		}
		source.Close()

		aggregated := agg.Finish()
		usage = usage.Add(finalUsage)

		finalResp := &completion.Response{
			Choice:            aggregated.Choice,
			Usage:             finalUsage,
			Raw:               finalRaw,
			ProviderMessageID: aggregated.ProviderMessageID,
		}
		if decision := hook.OnStreamCompletionResponseFinish(ctx, promptMsg, finalResp); mustStop(decision) {
			return nil, cancelled(history, decision)
		}

		assistantMsg := message.AssistantMessage{ID: aggregated.ProviderMessageID, Content: reorderReasoningBeforeToolCalls(aggregated.Choice)}
		texts, toolCalls, _ := message.SplitAssistant(assistantMsg)
		history = append(history, assistantMsg)

		if len(toolCalls) == 0 {
			var b strings.Builder
			for i, t := range texts {
				if i > 0 {
					b.WriteString("\n")
				}
				b.WriteString(t.Text)
			}
			result := &StreamPromptResult{Output: b.String(), Usage: usage}
			if historySupplied {
				result.History = history
			}
			return result, nil
		}

		results, stopDecision, err := a.dispatchToolCalls(ctx, toolCalls, hook, concurrency)
		if err != nil {
			return nil, err
		}
		for i, r := range results {
			text := ""
			if tc, ok := r.Content.First().(message.TextContent); ok {
				text = tc.Text
			}
			emit(ctx, ToolResultEvent{ToolCallID: toolCalls[i].ID, Result: text})
		}
		if stopDecision != nil {
			return nil, cancelled(history, *stopDecision)
		}
		history = append(history, message.ToolResults(results...))
	}
}

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}

// reorderReasoningBeforeToolCalls enforces spec §4.9's mandatory
// reasoning-before-tool-calls ordering on the stream-end assistant turn.
// stream/aggregator.go appends items in raw provider chunk-arrival order,
// which a provider could interleave; this stably moves every
// message.ToolCallContent item to the end of the turn, so every
// message.ReasoningContent item (and every text item) precedes the tool
// calls. Non-tool-call items keep their relative order, and so do the tool
// calls.
func reorderReasoningBeforeToolCalls(choice message.OneOrMany[message.AssistantPart]) message.OneOrMany[message.AssistantPart] {
	items := choice.Slice()
	ordered := make([]message.AssistantPart, 0, len(items))
	var toolCalls []message.AssistantPart
	for _, item := range items {
		if _, ok := item.(message.ToolCallContent); ok {
			toolCalls = append(toolCalls, item)
			continue
		}
		if _, ok := item.(message.ReasoningContent); ok {
			ordered = append(ordered, item)
			continue
		}
		ordered = append(ordered, item)
	}
	ordered = append(ordered, toolCalls...)
	reordered, err := message.FromSlice(ordered)
	if err != nil {
		return choice
	}
	return reordered
}
