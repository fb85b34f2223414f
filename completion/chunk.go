package completion

import "github.com/agentflow-go/agentflow/message"

// Chunk is one raw event emitted by a provider adapter's stream (§4.5). It is
// a closed sum of seven variants, modeled as a marker interface so a
// consumer's type switch can be checked for exhaustiveness by adding a
// panic("unhandled chunk type") default case — the shape spec §4.5 needs far
// more than a single Type-string-tagged struct could express cleanly, since
// ToolCallDelta's payload is itself a two-case union (Name vs Delta).
type Chunk interface {
	isChunk()
}

// MessageChunk is a text delta.
type MessageChunk struct {
	Text string
}

func (MessageChunk) isChunk() {}

// RawToolCall is a fully assembled tool call as emitted by an adapter before
// aggregation turns it into message.ToolCallContent.
type RawToolCall struct {
	ID             string // internal id; synthesized by the adapter/aggregator if the provider omits one
	ProviderCallID *string
	Name           string
	ArgumentsJSON  string
	Signature      *string
	Extras         map[string]any
}

// ToolCallChunk carries a fully assembled tool call.
type ToolCallChunk struct {
	ToolCall RawToolCall
}

func (ToolCallChunk) isChunk() {}

// ToolCallDeltaContent is the two-case union a ToolCallDeltaChunk carries:
// either a fragment of the tool's name or a fragment of its JSON arguments.
type ToolCallDeltaContent interface {
	isToolCallDeltaContent()
}

// ToolCallDeltaName is a name fragment.
type ToolCallDeltaName struct{ Name string }

func (ToolCallDeltaName) isToolCallDeltaContent() {}

// ToolCallDeltaArgs is an arguments-JSON fragment.
type ToolCallDeltaArgs struct{ Delta string }

func (ToolCallDeltaArgs) isToolCallDeltaContent() {}

// ToolCallDeltaChunk is a partial tool call; name fragments may arrive
// separately from argument fragments.
type ToolCallDeltaChunk struct {
	ID             string
	ProviderCallID *string
	Content        ToolCallDeltaContent
}

func (ToolCallDeltaChunk) isChunk() {}

// ReasoningChunk carries a fully assembled reasoning block.
type ReasoningChunk struct {
	ID      *string
	Content message.ReasoningPart
}

func (ReasoningChunk) isChunk() {}

// ReasoningDeltaChunk carries incremental reasoning text.
type ReasoningDeltaChunk struct {
	ID   *string
	Text string
}

func (ReasoningDeltaChunk) isChunk() {}

// FinalResponseChunk is terminal: it carries final usage and the provider's
// own raw response value (the adapter's R, erased to any per Model's doc
// comment).
type FinalResponseChunk struct {
	Usage Usage
	Raw   any
}

func (FinalResponseChunk) isChunk() {}

// MessageIDChunk carries the provider-assigned assistant-turn id, captured
// silently into the aggregated response.
type MessageIDChunk struct {
	ID string
}

func (MessageIDChunk) isChunk() {}
