package openai

import (
	"context"
	"io"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/packages/ssestream"

	"github.com/agentflow-go/agentflow/completion"
)

// streamingResponse adapts openai-go v3's push-style ssestream.Stream (Next/
// Current/Err) onto completion.StreamingResponse's pull-style Recv(ctx)
// contract, grounded on the teacher's Stream method (which drove the same
// SDK stream with a for stream.Next() loop and a ChatCompletionAccumulator).
// Content and tool-call fragments are forwarded live as delta chunks for
// §4.5's delta events, while the accumulator also reassembles the full
// message so that once the stream ends, each complete tool call can be
// queued as a ToolCallChunk — the Aggregator (stream/aggregator.go) only
// folds fully assembled tool calls into the final turn, deltas alone never
// appear in AggregatedTurn.Choice.
type streamingResponse struct {
	stream  *ssestream.Stream[openai.ChatCompletionChunk]
	acc     openai.ChatCompletionAccumulator
	pending []completion.Chunk
	toolIDs map[int64]string
	done    bool
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

	if !s.stream.Next() {
		s.done = true
		if err := s.stream.Err(); err != nil {
			return nil, &completion.ProviderError{Message: err.Error()}
		}
		s.queueFinalToolCalls()
		s.pending = append(s.pending, completion.FinalResponseChunk{
			Usage: convertUsage(s.acc.Usage),
			Raw:   s.acc.ChatCompletion,
		})
		return s.Recv(ctx)
	}

	chunk := s.stream.Current()
	s.acc.AddChunk(chunk)
	s.queueChunk(chunk)
	return s.Recv(ctx)
}

func (s *streamingResponse) queueChunk(chunk openai.ChatCompletionChunk) {
	if len(chunk.Choices) == 0 {
		return
	}

	delta := chunk.Choices[0].Delta
	if delta.Content != "" {
		s.pending = append(s.pending, completion.MessageChunk{Text: delta.Content})
	}
	for _, tc := range delta.ToolCalls {
		id := s.resolveToolID(tc.Index, tc.ID)
		if tc.Function.Name != "" {
			name := tc.Function.Name
			s.pending = append(s.pending, completion.ToolCallDeltaChunk{
				ID:      id,
				Content: completion.ToolCallDeltaName{Name: name},
			})
		}
		if tc.Function.Arguments != "" {
			s.pending = append(s.pending, completion.ToolCallDeltaChunk{
				ID:      id,
				Content: completion.ToolCallDeltaArgs{Delta: tc.Function.Arguments},
			})
		}
	}
}

// queueFinalToolCalls emits one ToolCallChunk per tool call the accumulator
// reassembled across the whole stream, called once after stream.Next()
// returns false so arguments are guaranteed complete.
func (s *streamingResponse) queueFinalToolCalls() {
	if len(s.acc.Choices) == 0 {
		return
	}
	for i, tc := range s.acc.Choices[0].Message.ToolCalls {
		id := s.resolveToolID(int64(i), tc.ID)
		s.pending = append(s.pending, completion.ToolCallChunk{
			ToolCall: completion.RawToolCall{
				ID:            id,
				Name:          tc.Function.Name,
				ArgumentsJSON: tc.Function.Arguments,
			},
		})
	}
}

func (s *streamingResponse) resolveToolID(index int64, providerID string) string {
	if s.toolIDs == nil {
		s.toolIDs = make(map[int64]string)
	}
	if providerID != "" {
		s.toolIDs[index] = providerID
		return providerID
	}
	return s.toolIDs[index]
}

func (s *streamingResponse) Close() error {
	return s.stream.Close()
}
