package openairesponses

import (
	"context"
	"fmt"
	"io"

	"github.com/openai/openai-go/v3/packages/ssestream"
	"github.com/openai/openai-go/v3/responses"

	"github.com/agentflow-go/agentflow/completion"
	"github.com/agentflow-go/agentflow/message"
)

type chunkProcessor struct {
	out   []completion.Chunk
	usage completion.Usage
}

func newChunkProcessor() *chunkProcessor {
	return &chunkProcessor{}
}

func (p *chunkProcessor) queue(c completion.Chunk) {
	p.out = append(p.out, c)
}

func (p *chunkProcessor) dequeue() (completion.Chunk, bool) {
	if len(p.out) == 0 {
		return nil, false
	}
	c := p.out[0]
	p.out = p.out[1:]
	return c, true
}

// handle ports codalotl's openAIResponsesProcessEvent switch, replacing its
// Event/Turn model with completion.Chunk emission; only
// response.completed/response.failed/response.incomplete and the "error"
// event end the stream,
// matching the grounding source's (cont bool) contract.
func (p *chunkProcessor) handle(evt responses.ResponseStreamEventUnion) (done bool, err error) {
	switch evt.Type {
	case "response.output_text.delta":
		d := evt.AsResponseOutputTextDelta()
		if d.Delta != "" {
			p.queue(completion.MessageChunk{Text: d.Delta})
		}
	case "response.reasoning_summary_text.delta":
		d := evt.AsResponseReasoningSummaryTextDelta()
		if d.Delta != "" {
			id := d.ItemID
			p.queue(completion.ReasoningDeltaChunk{ID: &id, Text: d.Delta})
		}
	case "response.reasoning_summary_part.done":
		d := evt.AsResponseReasoningSummaryPartDone()
		if d.Part.Text != "" {
			id := d.ItemID
			p.queue(completion.ReasoningChunk{ID: &id, Content: message.ReasoningSummary{Text: d.Part.Text}})
		}
	case "response.output_item.done":
		d := evt.AsResponseOutputItemDone()
		item := d.Item
		switch item.Type {
		case "function_call":
			fn := item.AsFunctionCall()
			itemID := item.ID
			p.queue(completion.ToolCallChunk{ToolCall: completion.RawToolCall{
				ID:             fn.CallID,
				ProviderCallID: &itemID,
				Name:           fn.Name,
				ArgumentsJSON:  fn.Arguments,
			}})
		case "custom_tool_call":
			custom := item.AsCustomToolCall()
			itemID := item.ID
			p.queue(completion.ToolCallChunk{ToolCall: completion.RawToolCall{
				ID:             custom.CallID,
				ProviderCallID: &itemID,
				Name:           custom.Name,
				ArgumentsJSON:  custom.Input,
			}})
		}
	case "response.completed":
		d := evt.AsResponseCompleted()
		p.usage = convertUsage(d.Response.Usage)
		p.queue(completion.FinalResponseChunk{Usage: p.usage, Raw: d.Response})
		return true, nil
	case "response.failed":
		d := evt.AsResponseFailed()
		msg := d.Response.Error.Message
		if msg == "" {
			msg = "openai-responses: response failed"
		}
		return true, &completion.ProviderError{Message: msg}
	case "response.incomplete":
		d := evt.AsResponseIncomplete()
		reason := d.Response.IncompleteDetails.Reason
		if reason == "" {
			reason = "incomplete"
		}
		return true, &completion.ProviderError{Message: fmt.Sprintf("openai-responses: incomplete (%s)", reason)}
	case "error":
		e := evt.AsError()
		msg := e.Message
		if msg == "" {
			msg = "openai-responses: streaming error"
		}
		return true, &completion.ProviderError{Message: msg}
	}
	return false, nil
}

type streamingResponse struct {
	stream *ssestream.Stream[responses.ResponseStreamEventUnion]
	proc   *chunkProcessor
	done   bool
}

func (s *streamingResponse) Recv(ctx context.Context) (completion.Chunk, error) {
	if c, ok := s.proc.dequeue(); ok {
		return c, nil
	}
	if s.done {
		return nil, io.EOF
	}
	if !s.stream.Next() {
		s.done = true
		if err := s.stream.Err(); err != nil {
			return nil, &completion.ProviderError{Message: fmt.Sprintf("openai-responses: %v", err)}
		}
		return nil, io.EOF
	}

	finished, err := s.proc.handle(s.stream.Current())
	if err != nil {
		s.done = true
		return nil, err
	}
	if finished {
		s.done = true
	}
	return s.Recv(ctx)
}

func (s *streamingResponse) Close() error { return s.stream.Close() }
