// Package agent implements the agent builder and the buffered (C8) and
// streaming (C9) multi-turn tool-calling drivers, generalizing the
// teacher's single-provider fluent Builder onto the multi-component
// architecture: a completion.Model, a tool.Set served by a toolserver.Server,
// and a Hook observing the loop.
package agent

import (
	"context"
	"encoding/json"

	"github.com/agentflow-go/agentflow/completion"
	"github.com/agentflow-go/agentflow/message"
	"github.com/agentflow-go/agentflow/tool"
	"github.com/agentflow-go/agentflow/toolserver"
)

// DynamicDocSource resolves dynamic context documents for a prompt,
// mirroring §6.2's VectorStoreIndexDyn restricted to the document-returning
// half the agent needs (top_n). It is defined for agents to consume; no
// implementation ships in this module (vector stores are an external
// collaborator per spec §1).
type DynamicDocSource interface {
	TopN(ctx context.Context, query string, sampleCount int) ([]ScoredDocument, error)
}

// ScoredDocument is one result from a DynamicDocSource.
type ScoredDocument struct {
	Score    float64
	ID       string
	Document message.DocumentContent
}

type dynamicContextEntry struct {
	sampleCount int
	source      DynamicDocSource
}

// Agent is an immutable value describing a configured completion model,
// prompt-assembly policy, and tool registry. It is safe to share across
// goroutines; multiple concurrent prompts against the same Agent are
// permitted (§3 "Lifecycles").
type Agent struct {
	model       completion.Model
	name        string
	description string
	preamble    string

	staticDocs     []message.DocumentContent
	dynamicContext []dynamicContextEntry

	temperature      *float64
	maxTokens        *int
	additionalParams json.RawMessage
	toolChoice       *completion.ToolChoice
	outputSchema     json.RawMessage
	defaultMaxTurns  int

	toolServer *toolserver.Server
	hook       Hook
}

// Name returns the agent's configured name, or "" if unset.
func (a *Agent) Name() string { return a.name }

// Description returns the agent's configured description, or "" if unset.
func (a *Agent) Description() string { return a.description }

// resolveDynamicContext queries every registered dynamic-context source for
// its configured sample count of documents relevant to query, in the order
// the sources were registered.
func (a *Agent) resolveDynamicContext(ctx context.Context, query string) ([]message.DocumentContent, error) {
	if len(a.dynamicContext) == 0 {
		return nil, nil
	}
	var docs []message.DocumentContent
	for _, entry := range a.dynamicContext {
		results, err := entry.source.TopN(ctx, query, entry.sampleCount)
		if err != nil {
			return nil, err
		}
		for _, r := range results {
			docs = append(docs, r.Document)
		}
	}
	return docs, nil
}

// buildRequest assembles a CompletionRequest per §4.8's pseudocode: preamble
// + static context + dynamic context sample + tool defs + history except the
// last message + current prompt. history must already include prompt as its
// last element.
func (a *Agent) buildRequest(ctx context.Context, history []message.Message) (*completion.Request, error) {
	if len(history) == 0 {
		return nil, &ConfigError{Reason: "buildRequest called with empty history"}
	}
	prompt := history[len(history)-1]

	docs := append([]message.DocumentContent(nil), a.staticDocs...)
	if promptText := promptQueryText(prompt); promptText != "" {
		dynamicDocs, err := a.resolveDynamicContext(ctx, promptText)
		if err != nil {
			return nil, err
		}
		docs = append(docs, dynamicDocs...)
	}

	var toolDefs []tool.Definition
	if a.toolServer != nil {
		promptText := promptQueryText(prompt)
		var promptPtr *string
		if promptText != "" {
			promptPtr = &promptText
		}
		defs, err := a.toolServer.GetToolDefs(ctx, promptPtr)
		if err != nil {
			return nil, err
		}
		toolDefs = defs
	}

	oneOrMany, err := message.FromSlice(history)
	if err != nil {
		return nil, err
	}

	return &completion.Request{
		Preamble:         a.preamble,
		History:          oneOrMany,
		Documents:        docs,
		Tools:            toolDefs,
		Temperature:      a.temperature,
		MaxTokens:        a.maxTokens,
		ToolChoice:       a.toolChoice,
		AdditionalParams: a.additionalParams,
		OutputSchema:     a.outputSchema,
	}, nil
}

func promptQueryText(m message.Message) string {
	um, ok := m.(message.UserMessage)
	if !ok {
		return ""
	}
	for _, part := range um.Content.Slice() {
		if t, ok := part.(message.TextContent); ok {
			return t.Text
		}
	}
	return ""
}
