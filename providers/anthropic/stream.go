package anthropic

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/agentflow-go/agentflow/completion"
	"github.com/agentflow-go/agentflow/message"
)

// streamingResponse adapts Anthropic's ssestream.Stream onto
// completion.StreamingResponse's pull contract, grounded on the source's
// anthropicStreamer/anthropicChunkProcessor but collapsed from its
// goroutine-plus-channel design (built for goa-ai's push-style model.Streamer)
// into the same synchronous pull-and-queue shape providers/openai and
// providers/gemini already use here, since completion.StreamingResponse.Recv
// is itself pull-based.
type streamingResponse struct {
	stream *ssestream.Stream[sdk.MessageStreamEventUnion]
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
			return nil, &completion.ProviderError{Message: fmt.Sprintf("anthropic: %v", err)}
		}
		s.proc.queue(completion.FinalResponseChunk{Usage: s.proc.usage})
		return s.Recv(ctx)
	}

	if err := s.proc.handle(s.stream.Current()); err != nil {
		s.done = true
		return nil, &completion.ProviderError{Message: fmt.Sprintf("anthropic: %v", err)}
	}
	return s.Recv(ctx)
}

func (s *streamingResponse) Close() error {
	return s.stream.Close()
}

// chunkProcessor converts Anthropic streaming events into completion.Chunks,
// buffering partial tool-call-argument and thinking-block state per content
// index, grounded on the source's anthropicChunkProcessor.
type chunkProcessor struct {
	out []completion.Chunk

	toolBlocks     map[int]*toolBuffer
	thinkingBlocks map[int]*thinkingBuffer

	usage completion.Usage
}

func newChunkProcessor() *chunkProcessor {
	return &chunkProcessor{
		toolBlocks:     make(map[int]*toolBuffer),
		thinkingBlocks: make(map[int]*thinkingBuffer),
	}
}

func (p *chunkProcessor) queue(c completion.Chunk) { p.out = append(p.out, c) }

func (p *chunkProcessor) dequeue() (completion.Chunk, bool) {
	if len(p.out) == 0 {
		return nil, false
	}
	c := p.out[0]
	p.out = p.out[1:]
	return c, true
}

func reasoningID(index int) string { return fmt.Sprintf("%d", index) }

func (p *chunkProcessor) handle(event sdk.MessageStreamEventUnion) error {
	switch ev := event.AsAny().(type) {
	case sdk.MessageStartEvent:
		p.toolBlocks = make(map[int]*toolBuffer)
		p.thinkingBlocks = make(map[int]*thinkingBuffer)
		p.usage = completion.Usage{
			InputTokens:       int(ev.Message.Usage.InputTokens),
			CachedInputTokens: int(ev.Message.Usage.CacheReadInputTokens),
		}
		return nil

	case sdk.ContentBlockStartEvent:
		idx := int(ev.Index)
		switch block := ev.ContentBlock.AsAny().(type) {
		case sdk.ToolUseBlock:
			if block.ID == "" {
				return fmt.Errorf("tool_use block missing id")
			}
			if block.Name == "" {
				return fmt.Errorf("tool_use block %q missing name", block.ID)
			}
			p.toolBlocks[idx] = &toolBuffer{id: block.ID, name: block.Name}
		case sdk.RedactedThinkingBlock:
			p.thinkingBlocks[idx] = &thinkingBuffer{redacted: block.Data}
		}
		return nil

	case sdk.ContentBlockDeltaEvent:
		idx := int(ev.Index)
		switch delta := ev.Delta.AsAny().(type) {
		case sdk.TextDelta:
			if delta.Text == "" {
				return nil
			}
			p.queue(completion.MessageChunk{Text: delta.Text})
		case sdk.InputJSONDelta:
			if delta.PartialJSON == "" {
				return nil
			}
			tb := p.toolBlocks[idx]
			if tb == nil {
				return nil
			}
			tb.fragments = append(tb.fragments, delta.PartialJSON)
			p.queue(completion.ToolCallDeltaChunk{
				ID:      tb.id,
				Content: completion.ToolCallDeltaArgs{Delta: delta.PartialJSON},
			})
		case sdk.ThinkingDelta:
			if delta.Thinking == "" {
				return nil
			}
			tb := p.thinkingBuffer(idx)
			tb.text.WriteString(delta.Thinking)
			id := reasoningID(idx)
			p.queue(completion.ReasoningDeltaChunk{ID: &id, Text: delta.Thinking})
		case sdk.SignatureDelta:
			if delta.Signature == "" {
				return nil
			}
			p.thinkingBuffer(idx).signature = delta.Signature
		}
		return nil

	case sdk.ContentBlockStopEvent:
		idx := int(ev.Index)
		if tb, ok := p.thinkingBlocks[idx]; ok {
			delete(p.thinkingBlocks, idx)
			part, err := tb.finalize()
			if err != nil {
				return err
			}
			if part != nil {
				id := reasoningID(idx)
				p.queue(completion.ReasoningChunk{ID: &id, Content: part})
			}
		}
		if tb, ok := p.toolBlocks[idx]; ok {
			delete(p.toolBlocks, idx)
			p.queue(completion.ToolCallChunk{ToolCall: completion.RawToolCall{
				ID:            tb.id,
				Name:          tb.name,
				ArgumentsJSON: tb.finalArguments(),
			}})
		}
		return nil

	case sdk.MessageDeltaEvent:
		p.usage.OutputTokens = int(ev.Usage.OutputTokens)
		p.usage.TotalTokens = p.usage.InputTokens + p.usage.OutputTokens
		return nil

	case sdk.MessageStopEvent:
		return nil
	}
	return nil
}

func (p *chunkProcessor) thinkingBuffer(idx int) *thinkingBuffer {
	tb := p.thinkingBlocks[idx]
	if tb == nil {
		tb = &thinkingBuffer{}
		p.thinkingBlocks[idx] = tb
	}
	return tb
}

type toolBuffer struct {
	id        string
	name      string
	fragments []string
}

func (tb *toolBuffer) finalArguments() string {
	if len(tb.fragments) == 0 {
		return "{}"
	}
	joined := strings.Join(tb.fragments, "")
	if strings.TrimSpace(joined) == "" {
		return "{}"
	}
	return joined
}

type thinkingBuffer struct {
	text      strings.Builder
	signature string
	redacted  string // base64 data, set only for a redacted_thinking block
}

func (tb *thinkingBuffer) finalize() (message.ReasoningPart, error) {
	if tb.redacted != "" {
		data, err := base64.StdEncoding.DecodeString(tb.redacted)
		if err != nil {
			return nil, fmt.Errorf("decode redacted thinking block: %w", err)
		}
		return message.ReasoningRedacted{Blob: data}, nil
	}
	text := tb.text.String()
	if text == "" {
		return nil, nil
	}
	var sig *string
	if tb.signature != "" {
		sig = &tb.signature
	}
	return message.ReasoningText{Text: text, Signature: sig}, nil
}
