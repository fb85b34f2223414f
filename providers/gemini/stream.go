package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	"github.com/agentflow-go/agentflow/completion"
)

// streamingResponse adapts genai's pull-style iterator (Next returning
// iterator.Done, grounded on the teacher's Stream method's `for { ...
// iter.Next() ...}` loop) onto completion.StreamingResponse's Recv(ctx)
// contract. Unlike OpenAI's delta-fragment wire format, Gemini streams whole
// Text/FunctionCall parts per response chunk, so no delta-reassembly state
// is needed here.
type streamingResponse struct {
	iter    *genai.GenerateContentResponseIterator
	pending []completion.Chunk
	usage   completion.Usage
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

	resp, err := s.iter.Next()
	if err == iterator.Done {
		s.done = true
		s.pending = append(s.pending, completion.FinalResponseChunk{Usage: s.usage})
		return s.Recv(ctx)
	}
	if err != nil {
		s.done = true
		return nil, &completion.ProviderError{Message: fmt.Sprintf("gemini: %v", err)}
	}

	s.queueResponse(resp)
	return s.Recv(ctx)
}

func (s *streamingResponse) queueResponse(resp *genai.GenerateContentResponse) {
	if resp.UsageMetadata != nil {
		s.usage = convertUsage(resp.UsageMetadata)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return
	}
	for _, p := range resp.Candidates[0].Content.Parts {
		switch v := p.(type) {
		case genai.Text:
			s.pending = append(s.pending, completion.MessageChunk{Text: string(v)})
		case genai.FunctionCall:
			argsJSON, err := json.Marshal(v.Args)
			if err != nil {
				continue
			}
			s.pending = append(s.pending, completion.ToolCallChunk{
				ToolCall: completion.RawToolCall{
					ID:            uuid.NewString(),
					Name:          v.Name,
					ArgumentsJSON: string(argsJSON),
				},
			})
		}
	}
}

// Close is a no-op: genai's iterator holds no separate closable resource
// beyond the client itself.
func (s *streamingResponse) Close() error {
	return nil
}
