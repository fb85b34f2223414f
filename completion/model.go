// Package completion defines the provider-agnostic completion request and
// response shapes (C3): the shared contract every provider adapter in
// providers/* implements, and that the agent package drives.
package completion

import "context"

// Model is the completion-model trait (§4.3). A concrete provider adapter
// (providers/openai, providers/anthropic, ...) implements Model once.
//
// Unlike the source this module generalizes from, Model is not parameterized
// over a provider-specific raw-response type: Response.Raw carries it as
// `any` instead. Agents are constructed at runtime from a provider name
// (agent.FromEnv("anthropic", ...)), so a generic Model[R, S] would force
// every caller of agent.FromEnv to also pick a type parameter for a value they
// never touch; Raw any keeps the common path monomorphic while still letting
// advanced callers type-assert down to the provider's own response type when
// they need provider-specific fields the canonical Response doesn't expose.
type Model interface {
	// Complete issues a buffered completion request.
	Complete(ctx context.Context, req *Request) (*Response, error)
	// Stream issues a streaming completion request.
	Stream(ctx context.Context, req *Request) (StreamingResponse, error)
}

// StreamingResponse is the handle a Model.Stream call returns: a pull-based
// source of raw chunks (consumed by the stream package's aggregator) plus
// metadata about the underlying transport.
type StreamingResponse interface {
	// Recv returns the next raw chunk, or io.EOF when the stream has ended
	// normally (a FinalResponse chunk will have already been delivered).
	Recv(ctx context.Context) (Chunk, error)
	// Close releases any underlying transport resources (e.g. the SSE body).
	Close() error
}
