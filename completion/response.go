package completion

import "github.com/agentflow-go/agentflow/message"

// Response is the provider-agnostic completion response (§4.3).
type Response struct {
	Choice           message.OneOrMany[message.AssistantPart]
	Usage            Usage
	Raw              any
	ProviderMessageID *string
}
