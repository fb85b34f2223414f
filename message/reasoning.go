package message

// ReasoningPart is one element of a reasoning block's ordered content.
// Providers that emit signed or encrypted chain-of-thought content must have
// it preserved verbatim; never reorder or drop a ReasoningPart.
type ReasoningPart interface {
	isReasoningPart()
}

// ReasoningText is plain reasoning text, optionally signed by the provider.
type ReasoningText struct {
	Text      string
	Signature *string
}

func (ReasoningText) isReasoningPart() {}

// ReasoningSummary is a provider-generated summary of reasoning, distinct
// from the verbatim reasoning text.
type ReasoningSummary struct {
	Text string
}

func (ReasoningSummary) isReasoningPart() {}

// ReasoningEncrypted is an opaque, provider-encrypted reasoning payload that
// must be echoed back byte-for-byte in subsequent requests.
type ReasoningEncrypted struct {
	Blob []byte
}

func (ReasoningEncrypted) isReasoningPart() {}

// ReasoningRedacted is an opaque, provider-redacted reasoning payload. Like
// ReasoningEncrypted, it must be echoed back verbatim.
type ReasoningRedacted struct {
	Blob []byte
}

func (ReasoningRedacted) isReasoningPart() {}

// ReasoningContent is an assistant-turn reasoning block: an optional
// provider-assigned id (used to coalesce streamed deltas that share an id)
// and an ordered, non-empty sequence of ReasoningPart.
type ReasoningContent struct {
	ID      *string
	Content OneOrMany[ReasoningPart]
}

func (ReasoningContent) isAssistantPart() {}
