package anthropic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentflow-go/agentflow/completion"
	"github.com/agentflow-go/agentflow/message"
)

func TestToolBufferFinalArgumentsJoinsFragments(t *testing.T) {
	tb := &toolBuffer{id: "call_1", name: "get_weather"}
	tb.fragments = append(tb.fragments, `{"loc`, `ation":"NYC"}`)
	assert.Equal(t, `{"location":"NYC"}`, tb.finalArguments())
}

func TestToolBufferFinalArgumentsDefaultsToEmptyObject(t *testing.T) {
	tb := &toolBuffer{id: "call_1", name: "get_weather"}
	assert.Equal(t, "{}", tb.finalArguments())
}

func TestThinkingBufferFinalizeTextWithSignature(t *testing.T) {
	tb := &thinkingBuffer{}
	tb.text.WriteString("step one")
	tb.signature = "sig-1"
	part, err := tb.finalize()
	require.NoError(t, err)
	require.NotNil(t, part)
	text, ok := part.(message.ReasoningText)
	require.True(t, ok)
	assert.Equal(t, "step one", text.Text)
	require.NotNil(t, text.Signature)
	assert.Equal(t, "sig-1", *text.Signature)
}

func TestThinkingBufferFinalizeEmptyYieldsNil(t *testing.T) {
	tb := &thinkingBuffer{}
	part, err := tb.finalize()
	require.NoError(t, err)
	assert.Nil(t, part)
}

func TestThinkingBufferFinalizeRedacted(t *testing.T) {
	tb := &thinkingBuffer{redacted: "b3BhcXVl"} // base64("opaque")
	part, err := tb.finalize()
	require.NoError(t, err)
	require.NotNil(t, part)
	redacted, ok := part.(message.ReasoningRedacted)
	require.True(t, ok)
	assert.Equal(t, []byte("opaque"), redacted.Blob)
}

func TestChunkProcessorQueueDequeueOrdersFIFO(t *testing.T) {
	p := newChunkProcessor()
	p.queue(completion.MessageChunk{Text: "one"})
	p.queue(completion.MessageChunk{Text: "two"})
	first, ok := p.dequeue()
	require.True(t, ok)
	assert.Equal(t, completion.MessageChunk{Text: "one"}, first)
	second, ok := p.dequeue()
	require.True(t, ok)
	assert.Equal(t, completion.MessageChunk{Text: "two"}, second)
	_, ok = p.dequeue()
	assert.False(t, ok)
}
