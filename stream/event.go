package stream

import (
	"github.com/agentflow-go/agentflow/completion"
	"github.com/agentflow-go/agentflow/message"
)

// Event is one item the aggregator forwards to the consumer while streaming.
type Event interface {
	isEvent()
}

// TextDeltaEvent carries a text delta.
type TextDeltaEvent struct {
	Delta       string
	Accumulated string
}

func (TextDeltaEvent) isEvent() {}

// ToolCallEvent carries a fully assembled tool call.
type ToolCallEvent struct {
	ToolCall message.ToolCallContent
}

func (ToolCallEvent) isEvent() {}

// ToolCallDeltaEvent carries tool-call progress for UI purposes; it does not
// mutate the aggregated turn.
type ToolCallDeltaEvent struct {
	ID            string
	NameFragment  *string
	DeltaFragment *string
}

func (ToolCallDeltaEvent) isEvent() {}

// ReasoningEvent carries a fully assembled reasoning block.
type ReasoningEvent struct {
	Block message.ReasoningContent
}

func (ReasoningEvent) isEvent() {}

// ReasoningDeltaEvent carries incremental reasoning text.
type ReasoningDeltaEvent struct {
	ID   *string
	Text string
}

func (ReasoningDeltaEvent) isEvent() {}

// FinalEvent is terminal: yielded at most once per aggregator (rule 5).
type FinalEvent struct {
	Usage completion.Usage
	Raw   any
}

func (FinalEvent) isEvent() {}
