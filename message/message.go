package message

// Role identifies which side of the conversation a Message belongs to.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// UserPart is one element of a user message's ordered content.
type UserPart interface {
	isUserPart()
}

// AssistantPart is one element of an assistant message's ordered content.
type AssistantPart interface {
	isAssistantPart()
}

// Message is a tagged union over UserMessage and AssistantMessage. It has no
// other implementations outside this package; a type switch on the two
// concrete types is exhaustive.
type Message interface {
	Role() Role
}

// UserMessage carries a non-empty ordered sequence of user content.
type UserMessage struct {
	Content OneOrMany[UserPart]
}

func (UserMessage) Role() Role { return RoleUser }

// AssistantMessage carries an optional provider-assigned id and a non-empty
// ordered sequence of assistant content.
type AssistantMessage struct {
	ID      *string
	Content OneOrMany[AssistantPart]
}

func (AssistantMessage) Role() Role { return RoleAssistant }

// User builds a user message with a single text part.
func User(text string) Message {
	return UserMessage{Content: One[UserPart](TextContent{Text: text})}
}

// UserWithParts builds a user message from an explicit ordered part list.
func UserWithParts(parts OneOrMany[UserPart]) Message {
	return UserMessage{Content: parts}
}

// Assistant builds an assistant message with a single text part.
func Assistant(text string) Message {
	return AssistantMessage{Content: One[AssistantPart](TextContent{Text: text})}
}

// AssistantWithParts builds an assistant message from an explicit ordered
// part list, preserving the reasoning-before-tool-calls ordering the caller
// supplies.
func AssistantWithParts(parts OneOrMany[AssistantPart]) Message {
	return AssistantMessage{Content: parts}
}

// ToolResults builds a user message carrying one or more tool results, in
// the order their originating tool calls were made. This is the message the
// multi-turn drivers append after dispatching an assistant turn's tool calls.
func ToolResults(results ...ToolResultContent) Message {
	parts := make([]UserPart, len(results))
	for i, r := range results {
		parts[i] = r
	}
	one, err := FromSlice(parts)
	if err != nil {
		// results is caller-controlled and already validated non-empty by
		// every call site (the driver never invokes this with zero tool
		// calls); panic surfaces a programming error rather than silently
		// producing an invalid message.
		panic("message: ToolResults requires at least one result")
	}
	return UserMessage{Content: one}
}

// SplitAssistant partitions an assistant message's content into its three
// kinds, preserving relative order within each kind. Shared by provider
// adapters that must echo reasoning before tool calls (§4.4 point 4) and by
// the buffered driver, which partitions a turn into {tool_calls, texts,
// reasoning} before deciding whether to continue the loop.
func SplitAssistant(msg AssistantMessage) (texts []TextContent, toolCalls []ToolCallContent, reasoning []ReasoningContent) {
	for _, part := range msg.Content.Slice() {
		switch p := part.(type) {
		case TextContent:
			texts = append(texts, p)
		case ToolCallContent:
			toolCalls = append(toolCalls, p)
		case ReasoningContent:
			reasoning = append(reasoning, p)
		}
	}
	return texts, toolCalls, reasoning
}
