package cohere

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/agentflow-go/agentflow/completion"
	"github.com/agentflow-go/agentflow/internal/transport"
)

// streamEvent mirrors Cohere's typed chat-stream events: content-delta,
// tool-call-start, tool-call-delta, tool-call-end, message-end (spec §6.2).
type streamEvent struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
	Delta struct {
		Message struct {
			Content struct {
				Text string `json:"text"`
			} `json:"content"`
			ToolCalls struct {
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
		FinishReason string      `json:"finish_reason"`
		Usage        cohereUsage `json:"usage"`
	} `json:"delta"`
}

type toolBuf struct {
	id   string
	name string
	args []string
}

type streamingResponse struct {
	stream   transport.ChunkStream
	pending  []completion.Chunk
	toolBufs map[int]*toolBuf
	done     bool
}

func (s *streamingResponse) Recv(ctx context.Context) (completion.Chunk, error) {
	if len(s.pending) > 0 {
		c := s.pending[0]
		s.pending = s.pending[1:]
		return c, nil
	}
	if s.done {
		return nil, io.EOF
	}

	payload, err := s.stream.Next(ctx)
	if err == io.EOF {
		s.done = true
		s.queue(completion.FinalResponseChunk{})
		return s.Recv(ctx)
	}
	if err != nil {
		s.done = true
		return nil, &completion.ProviderError{Message: fmt.Sprintf("cohere: %v", err)}
	}

	var event streamEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		s.done = true
		return nil, &completion.ProviderError{Message: fmt.Sprintf("cohere: decode stream event: %v", err)}
	}
	s.handle(event)
	return s.Recv(ctx)
}

func (s *streamingResponse) Close() error {
	return s.stream.Close()
}

func (s *streamingResponse) queue(c completion.Chunk) {
	s.pending = append(s.pending, c)
}

func (s *streamingResponse) handle(event streamEvent) {
	switch event.Type {
	case "content-delta":
		if event.Delta.Message.Content.Text != "" {
			s.queue(completion.MessageChunk{Text: event.Delta.Message.Content.Text})
		}
	case "tool-call-start":
		tb := &toolBuf{id: event.Delta.Message.ToolCalls.ID, name: event.Delta.Message.ToolCalls.Function.Name}
		s.toolBufs[event.Index] = tb
		s.queue(completion.ToolCallDeltaChunk{
			ID:      tb.id,
			Content: completion.ToolCallDeltaName{Name: tb.name},
		})
	case "tool-call-delta":
		tb, ok := s.toolBufs[event.Index]
		if !ok {
			return
		}
		delta := event.Delta.Message.ToolCalls.Function.Arguments
		tb.args = append(tb.args, delta)
		s.queue(completion.ToolCallDeltaChunk{
			ID:      tb.id,
			Content: completion.ToolCallDeltaArgs{Delta: delta},
		})
	case "tool-call-end":
		tb, ok := s.toolBufs[event.Index]
		if !ok {
			return
		}
		delete(s.toolBufs, event.Index)
		args := strings.Join(tb.args, "")
		if args == "" {
			args = "{}"
		}
		s.queue(completion.ToolCallChunk{ToolCall: completion.RawToolCall{
			ID:            tb.id,
			Name:          tb.name,
			ArgumentsJSON: args,
		}})
	case "message-end":
		s.queue(completion.FinalResponseChunk{Usage: convertUsage(event.Delta.Usage)})
		s.done = true
	}
}
