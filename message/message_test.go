package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitAssistantPreservesOrderAndKind(t *testing.T) {
	id := "r1"
	reasoning := ReasoningContent{ID: &id, Content: One[ReasoningPart](ReasoningText{Text: "step 1"})}
	toolCall := ToolCallContent{ID: "t1", Name: "weather"}
	text := TextContent{Text: "done"}

	parts := NewOneOrMany[AssistantPart](reasoning, toolCall, text)
	msg := AssistantMessage{Content: parts}

	texts, toolCalls, reasonings := SplitAssistant(msg)

	require.Len(t, texts, 1)
	require.Len(t, toolCalls, 1)
	require.Len(t, reasonings, 1)
	assert.Equal(t, "done", texts[0].Text)
	assert.Equal(t, "t1", toolCalls[0].ID)
	assert.Equal(t, "r1", *reasonings[0].ID)
}

func TestToolResultsPreservesCallOrder(t *testing.T) {
	r1 := NewToolResult("c1", "7")
	r2 := NewToolResult("c2", "sunny")

	msg := ToolResults(r1, r2)
	userMsg, ok := msg.(UserMessage)
	require.True(t, ok)

	parts := userMsg.Content.Slice()
	require.Len(t, parts, 2)
	assert.Equal(t, "c1", parts[0].(ToolResultContent).ToolCallID)
	assert.Equal(t, "c2", parts[1].(ToolResultContent).ToolCallID)
}

func TestToolResultsRequiresAtLeastOne(t *testing.T) {
	assert.Panics(t, func() {
		ToolResults()
	})
}

func TestUserAndAssistantConstructors(t *testing.T) {
	u := User("hello")
	assert.Equal(t, RoleUser, u.Role())

	a := Assistant("hi")
	assert.Equal(t, RoleAssistant, a.Role())
}
