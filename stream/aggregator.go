package stream

import (
	"context"
	"errors"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/agentflow-go/agentflow/completion"
	"github.com/agentflow-go/agentflow/message"
)

var tracer = otel.Tracer("github.com/agentflow-go/agentflow/stream")

// AggregatedTurn is the final value an Aggregator produces once its source
// stream ends: equivalent to what a buffered completion.Model.Complete call
// would have returned for the same turn.
type AggregatedTurn struct {
	Choice            message.OneOrMany[message.AssistantPart]
	Usage             completion.Usage
	ProviderMessageID *string
}

// Aggregator wraps a completion.StreamingResponse, applying the §4.5
// aggregation rules as chunks arrive.
type Aggregator struct {
	source completion.StreamingResponse
	cancel *CancelSignal
	pause  *PauseController

	items    []message.AssistantPart
	textIdx  int
	reasIdx  int
	reasID   *string
	textBuf  string
	reasBuf  string

	usage    completion.Usage
	msgID    *string
	finalSent bool
	closed   bool
}

// New wraps source. cancel and pause may be nil, in which case the
// aggregator is never cancellable/pausable from the outside.
func New(source completion.StreamingResponse, cancel *CancelSignal, pause *PauseController) *Aggregator {
	return &Aggregator{
		source:  source,
		cancel:  cancel,
		pause:   pause,
		textIdx: -1,
		reasIdx: -1,
	}
}

// Next returns the next Event, or (nil, io.EOF) once the stream has ended
// (naturally or via cancellation — both are EOF, not error, per §4.5).
func (a *Aggregator) Next(ctx context.Context) (Event, error) {
	for {
		if a.closed {
			return nil, io.EOF
		}

		if a.cancel != nil {
			if cancelled, _ := a.cancel.Cancelled(); cancelled {
				a.closed = true
				return nil, io.EOF
			}
		}
		if a.pause != nil {
			a.pause.Wait()
		}

		chunk, err := a.source.Recv(ctx)
		if err != nil {
			a.closed = true
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, err
		}

		// Span covers only the synchronous classification work for this one
		// chunk, not the blocking Recv above or the yield back to the
		// caller below — so no span is ever held open across a suspension
		// point, per §4.9's span-hygiene design note.
		_, span := tracer.Start(ctx, "stream.aggregate_chunk", trace.WithAttributes())
		ev, hasEvent := a.applyChunk(chunk)
		span.End()

		if hasEvent {
			return ev, nil
		}
		// No event for this chunk (e.g. MessageIDChunk) — keep pulling.
	}
}

// Finish must be called after Next has returned io.EOF. It synthesizes an
// empty text item if the turn produced no content (rule 6).
func (a *Aggregator) Finish() AggregatedTurn {
	if len(a.items) == 0 {
		a.items = append(a.items, message.TextContent{Text: ""})
	}
	choice, _ := message.FromSlice(a.items)
	return AggregatedTurn{Choice: choice, Usage: a.usage, ProviderMessageID: a.msgID}
}

func (a *Aggregator) applyChunk(c completion.Chunk) (Event, bool) {
	switch chunk := c.(type) {
	case completion.MessageChunk:
		return a.applyText(chunk)
	case completion.ToolCallChunk:
		return a.applyToolCall(chunk)
	case completion.ToolCallDeltaChunk:
		return a.applyToolCallDelta(chunk)
	case completion.ReasoningChunk:
		return a.applyReasoning(chunk)
	case completion.ReasoningDeltaChunk:
		return a.applyReasoningDelta(chunk)
	case completion.MessageIDChunk:
		id := chunk.ID
		a.msgID = &id
		return nil, false
	case completion.FinalResponseChunk:
		if a.finalSent {
			return nil, false
		}
		a.finalSent = true
		a.usage = a.usage.Add(chunk.Usage)
		return FinalEvent{Usage: chunk.Usage, Raw: chunk.Raw}, true
	default:
		return nil, false
	}
}

func (a *Aggregator) applyText(chunk completion.MessageChunk) (Event, bool) {
	if a.textIdx >= 0 && a.textIdx == len(a.items)-1 {
		a.textBuf += chunk.Text
		a.items[a.textIdx] = message.TextContent{Text: a.textBuf}
	} else {
		a.textBuf = chunk.Text
		a.items = append(a.items, message.TextContent{Text: a.textBuf})
		a.textIdx = len(a.items) - 1
	}
	a.reasIdx = -1
	a.reasID = nil
	return TextDeltaEvent{Delta: chunk.Text, Accumulated: a.textBuf}, true
}

func (a *Aggregator) applyToolCall(chunk completion.ToolCallChunk) (Event, bool) {
	rtc := chunk.ToolCall
	tc := message.ToolCallContent{
		ID:             rtc.ID,
		ProviderCallID: rtc.ProviderCallID,
		Name:           rtc.Name,
		Arguments:      []byte(rtc.ArgumentsJSON),
		Signature:      rtc.Signature,
		Extras:         rtc.Extras,
	}
	a.items = append(a.items, tc)
	a.textIdx = -1
	a.reasIdx = -1
	a.reasID = nil
	return ToolCallEvent{ToolCall: tc}, true
}

func (a *Aggregator) applyToolCallDelta(chunk completion.ToolCallDeltaChunk) (Event, bool) {
	a.textIdx = -1
	a.reasIdx = -1
	a.reasID = nil

	ev := ToolCallDeltaEvent{ID: chunk.ID}
	switch content := chunk.Content.(type) {
	case completion.ToolCallDeltaName:
		ev.NameFragment = &content.Name
	case completion.ToolCallDeltaArgs:
		ev.DeltaFragment = &content.Delta
	}
	return ev, true
}

func (a *Aggregator) applyReasoning(chunk completion.ReasoningChunk) (Event, bool) {
	content := message.One(chunk.Content)
	block := message.ReasoningContent{ID: chunk.ID, Content: content}
	a.items = append(a.items, block)
	// Fully assembled reasoning blocks supersede delta coalescence.
	a.reasIdx = -1
	a.reasID = nil
	a.textIdx = -1
	return ReasoningEvent{Block: block}, true
}

func (a *Aggregator) applyReasoningDelta(chunk completion.ReasoningDeltaChunk) (Event, bool) {
	if a.reasIdx >= 0 && a.reasIdx == len(a.items)-1 && idsMatch(a.reasID, chunk.ID) {
		a.reasBuf += chunk.Text
	} else {
		a.reasBuf = chunk.Text
		a.items = append(a.items, message.ReasoningContent{})
		a.reasIdx = len(a.items) - 1
		a.reasID = chunk.ID
	}
	a.items[a.reasIdx] = message.ReasoningContent{
		ID:      a.reasID,
		Content: message.One[message.ReasoningPart](message.ReasoningText{Text: a.reasBuf}),
	}
	a.textIdx = -1
	return ReasoningDeltaEvent{ID: chunk.ID, Text: chunk.Text}, true
}

func idsMatch(a, b *string) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return *a == *b
}
