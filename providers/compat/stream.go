package compat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/agentflow-go/agentflow/completion"
	"github.com/agentflow-go/agentflow/internal/transport"
)

// streamChunk mirrors an OpenAI-Chat-Completions-compatible SSE payload: a
// choices[0].delta carrying a text fragment and/or tool-call fragments,
// with a final "[DONE]"-preceding chunk (empty choices, populated usage)
// when the server honors stream_options.include_usage.
type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				Index    int    `json:"index"`
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *compatUsage `json:"usage"`
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
		s.flushToolBuffers()
		s.queue(completion.FinalResponseChunk{})
		return s.Recv(ctx)
	}
	if err != nil {
		s.done = true
		return nil, &completion.ProviderError{Message: fmt.Sprintf("compat: %v", err)}
	}

	var chunk streamChunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		s.done = true
		return nil, &completion.ProviderError{Message: fmt.Sprintf("compat: decode stream chunk: %v", err)}
	}
	s.handle(chunk)
	return s.Recv(ctx)
}

func (s *streamingResponse) Close() error {
	return s.stream.Close()
}

func (s *streamingResponse) queue(c completion.Chunk) {
	s.pending = append(s.pending, c)
}

func (s *streamingResponse) handle(chunk streamChunk) {
	if chunk.Usage != nil {
		s.queue(completion.FinalResponseChunk{Usage: convertUsage(*chunk.Usage)})
		s.done = true
		return
	}
	if len(chunk.Choices) == 0 {
		return
	}
	delta := chunk.Choices[0].Delta
	if delta.Content != "" {
		s.queue(completion.MessageChunk{Text: delta.Content})
	}
	for _, tc := range delta.ToolCalls {
		tb, ok := s.toolBufs[tc.Index]
		if !ok {
			tb = &toolBuf{id: tc.ID, name: tc.Function.Name}
			s.toolBufs[tc.Index] = tb
			s.queue(completion.ToolCallDeltaChunk{ID: tb.id, Content: completion.ToolCallDeltaName{Name: tb.name}})
		}
		if tc.Function.Arguments != "" {
			tb.args = append(tb.args, tc.Function.Arguments)
			s.queue(completion.ToolCallDeltaChunk{ID: tb.id, Content: completion.ToolCallDeltaArgs{Delta: tc.Function.Arguments}})
		}
	}
	if chunk.Choices[0].FinishReason != "" {
		s.flushToolBuffers()
	}
}

// flushToolBuffers turns every buffered tool call into a full ToolCallChunk.
// Compatible servers signal tool-call completion via finish_reason rather
// than Anthropic/Cohere's explicit per-call "end" event, so buffers are
// flushed once per finish_reason (idempotent: an empty map flushes nothing).
func (s *streamingResponse) flushToolBuffers() {
	for idx, tb := range s.toolBufs {
		args := strings.Join(tb.args, "")
		if args == "" {
			args = "{}"
		}
		s.queue(completion.ToolCallChunk{ToolCall: completion.RawToolCall{
			ID:            tb.id,
			Name:          tb.name,
			ArgumentsJSON: args,
		}})
		delete(s.toolBufs, idx)
	}
}
