// Package transporttest provides a canned-response transport.Client double
// so provider adapter tests (providers/cohere, providers/compat) run without
// real network access, grounded on the teacher's reliance on interfaces for
// testing throughout agent/adapters/*_test.go.
package transporttest

import (
	"context"
	"io"

	"github.com/agentflow-go/agentflow/internal/transport"
)

// Recorder records every request it receives and replays canned responses in
// order.
type Recorder struct {
	Responses       []*transport.Response
	StreamResponses [][]string // one []string of SSE payloads per SendStreaming call

	Requests []transport.Request
	calls    int
	streams  int
}

func (r *Recorder) Send(ctx context.Context, req transport.Request) (*transport.Response, error) {
	r.Requests = append(r.Requests, req)
	resp := r.Responses[r.calls]
	if r.calls < len(r.Responses)-1 {
		r.calls++
	}
	return resp, nil
}

func (r *Recorder) SendMultipart(ctx context.Context, req transport.Request, parts []transport.Part) (*transport.Response, error) {
	return r.Send(ctx, req)
}

func (r *Recorder) SendStreaming(ctx context.Context, req transport.Request) (transport.ChunkStream, error) {
	r.Requests = append(r.Requests, req)
	payloads := r.StreamResponses[r.streams]
	if r.streams < len(r.StreamResponses)-1 {
		r.streams++
	}
	return &recordedStream{payloads: payloads}, nil
}

type recordedStream struct {
	payloads []string
	idx      int
}

func (s *recordedStream) Next(ctx context.Context) (string, error) {
	if s.idx >= len(s.payloads) {
		return "", io.EOF
	}
	p := s.payloads[s.idx]
	s.idx++
	return p, nil
}

func (s *recordedStream) Close() error { return nil }
