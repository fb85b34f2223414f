package message

import "encoding/json"

// ToolResultPart is one element of a tool result's ordered content: either
// text or an image produced by the tool.
type ToolResultPart interface {
	isToolResultPart()
}

// ToolCallContent is an assistant-emitted request to invoke a tool. ID is
// the opaque identifier that must be echoed in the matching ToolResult.
// Some providers additionally expose a separate provider call id
// (ProviderCallID) distinct from the internal id; adapters populate both
// where the wire format distinguishes them.
type ToolCallContent struct {
	ID             string
	ProviderCallID *string
	Name           string
	Arguments      json.RawMessage
	Signature      *string
	Extras         map[string]any
}

func (ToolCallContent) isAssistantPart() {}

// ToolResultContent is a user-turn reply to one or more tool calls. ToolCallID
// must match the ToolCallContent.ID it answers.
type ToolResultContent struct {
	ToolCallID     string
	ProviderCallID *string
	Content        OneOrMany[ToolResultPart]
}

func (ToolResultContent) isUserPart() {}

// NewToolResult builds a ToolResultContent carrying a single text part, the
// common case.
func NewToolResult(toolCallID, result string) ToolResultContent {
	return ToolResultContent{
		ToolCallID: toolCallID,
		Content:    One[ToolResultPart](TextContent{Text: result}),
	}
}
