package completion

import (
	"encoding/json"

	"github.com/agentflow-go/agentflow/message"
	"github.com/agentflow-go/agentflow/tool"
)

// Request is the provider-agnostic completion request (§4.3). History's
// trailing message is the current prompt.
type Request struct {
	Preamble        string
	History         message.OneOrMany[message.Message]
	Documents       []message.DocumentContent
	Tools           []tool.Definition
	Temperature     *float64
	MaxTokens       *int
	ToolChoice      *ToolChoice
	AdditionalParams json.RawMessage
	OutputSchema    json.RawMessage
}

// ToolChoiceMode selects how a model should use the available tools.
type ToolChoiceMode string

const (
	ToolChoiceAuto ToolChoiceMode = "auto"
	ToolChoiceNone ToolChoiceMode = "none"
	ToolChoiceAny  ToolChoiceMode = "any"
	ToolChoiceTool ToolChoiceMode = "tool"
)

// ToolChoice pairs a mode with the named tool when Mode is ToolChoiceTool.
type ToolChoice struct {
	Mode ToolChoiceMode
	Name string
}
