package agent

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/agentflow-go/agentflow/completion"
	"github.com/agentflow-go/agentflow/message"
)

// PromptOptions configures one multi-turn buffered prompt (§4.8).
type PromptOptions struct {
	// History, if non-nil, is cloned and extended rather than starting a
	// fresh conversation.
	History []message.Message
	// MaxTurns overrides the agent's default turn budget.
	MaxTurns *int
	// Hook overrides the agent's default hook for this call.
	Hook Hook
	// ToolConcurrency bounds concurrent tool dispatch within one turn.
	// Defaults to 1 (sequential) when unset or <= 0.
	ToolConcurrency int
}

// PromptResponse is the buffered driver's terminal, successful value.
type PromptResponse struct {
	Output  string
	Usage   completion.Usage
	History []message.Message
}

// Prompt drives the buffered multi-turn loop (C8) with a plain-text prompt.
func (a *Agent) Prompt(ctx context.Context, prompt string, opts *PromptOptions) (*PromptResponse, error) {
	return a.PromptMessage(ctx, message.User(prompt), opts)
}

// PromptMessage drives the buffered multi-turn loop (C8) with an arbitrary
// prompt message (e.g. one carrying image content).
func (a *Agent) PromptMessage(ctx context.Context, prompt message.Message, opts *PromptOptions) (*PromptResponse, error) {
	if opts == nil {
		opts = &PromptOptions{}
	}
	hook := a.resolveHook(opts.Hook)
	maxTurns := a.defaultMaxTurns
	if opts.MaxTurns != nil {
		maxTurns = *opts.MaxTurns
	}
	concurrency := opts.ToolConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	history := append([]message.Message(nil), opts.History...)
	history = append(history, prompt)

	var usage completion.Usage

	for turn := 1; ; turn++ {
		if turn > maxTurns+1 {
			return nil, &MaxTurnsExceededError{Max: maxTurns, History: history, LastPrompt: prompt}
		}

		if decision := hook.OnCompletionCall(ctx, prompt, history[:len(history)-1]); mustStop(decision) {
			return nil, cancelled(history, decision)
		}

		req, err := a.buildRequest(ctx, history)
		if err != nil {
			return nil, err
		}

		resp, err := a.model.Complete(ctx, req)
		if err != nil {
			return nil, err
		}
		usage = usage.Add(resp.Usage)

		if decision := hook.OnCompletionResponse(ctx, prompt, resp); mustStop(decision) {
			return nil, cancelled(history, decision)
		}

		assistantMsg := message.AssistantMessage{Content: resp.Choice}
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
			return &PromptResponse{Output: b.String(), Usage: usage, History: history}, nil
		}

		results, stopDecision, err := a.dispatchToolCalls(ctx, toolCalls, hook, concurrency)
		if err != nil {
			return nil, err
		}
		if stopDecision != nil {
			return nil, cancelled(history, *stopDecision)
		}
		history = append(history, message.ToolResults(results...))
	}
}

// dispatchToolCalls executes toolCalls with bounded concurrency, preserving
// call order in the returned slice regardless of completion order (§4.8,
// invariant 7), grounded on the teacher's tool_parallel.go "collect into
// indexed slots, reassemble in call order" pattern, implemented with
// errgroup+semaphore instead of a hand-rolled channel+WaitGroup pool.
func (a *Agent) dispatchToolCalls(ctx context.Context, calls []message.ToolCallContent, hook Hook, concurrency int) ([]message.ToolResultContent, *Decision, error) {
	results := make([]message.ToolResultContent, len(calls))
	sem := semaphore.NewWeighted(int64(concurrency))
	g, gctx := errgroup.WithContext(ctx)

	var stopMu sync.Mutex
	var stopDecision *Decision

	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			stopMu.Lock()
			alreadyStopped := stopDecision != nil
			stopMu.Unlock()
			if alreadyStopped {
				return nil
			}

			callID := call.ID
			if call.ProviderCallID != nil {
				callID = *call.ProviderCallID
			}

			toolDecision := hook.OnToolCall(gctx, call.Name, callID, call.ID, string(call.Arguments))
			var resultText string
			switch toolDecision.kind {
			case toolTerminate:
				stopMu.Lock()
				if stopDecision == nil {
					d := Terminate(toolDecision.reason)
					stopDecision = &d
				}
				stopMu.Unlock()
				return nil
			case toolSkip:
				resultText = toolDecision.skipValue
			default:
				out, err := a.toolServer.CallTool(gctx, call.Name, string(call.Arguments))
				if err != nil {
					resultText = err.Error()
				} else {
					resultText = out
				}
			}

			if decision := hook.OnToolResult(gctx, call.Name, callID, call.ID, string(call.Arguments), resultText); decision.terminate {
				stopMu.Lock()
				if stopDecision == nil {
					stopDecision = &decision
				}
				stopMu.Unlock()
			}

			results[i] = message.NewToolResult(call.ID, resultText)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return results, stopDecision, nil
}

func (a *Agent) resolveHook(override Hook) Hook {
	if override != nil {
		return override
	}
	if a.hook != nil {
		return a.hook
	}
	return NoopHook{}
}

func mustStop(d Decision) bool {
	stop, _ := d.ShouldTerminate()
	return stop
}

func cancelled(history []message.Message, d Decision) error {
	_, reason := d.ShouldTerminate()
	if reason == "" {
		reason = defaultCancelReason
	}
	return &PromptCancelledError{History: history, Reason: reason}
}
