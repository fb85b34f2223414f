package agent

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentflow-go/agentflow/completion"
	"github.com/agentflow-go/agentflow/message"
	"github.com/agentflow-go/agentflow/tool"
)

type fakeMcpClient struct {
	result tool.McpToolResult
}

func (f *fakeMcpClient) CallTool(_ context.Context, _ string, _ json.RawMessage) (tool.McpToolResult, error) {
	return f.result, nil
}

// TestRmcpToolDispatchesThroughOwnedToolServer covers spec §4.7's
// rmcp_tool builder transition: an MCP-advertised tool, wired through
// RmcpTool, participates in the ordinary tool-call loop exactly like a
// builder-owned native tool.
func TestRmcpToolDispatchesThroughOwnedToolServer(t *testing.T) {
	client := &fakeMcpClient{result: tool.McpToolResult{Content: []tool.McpContent{
		{Kind: tool.McpContentText, Text: "72F and sunny"},
	}}}
	def := tool.Definition{Name: "get_weather", Description: "Get the weather"}

	model := &scriptedModel{responses: []*completion.Response{
		toolCallResponse(message.ToolCallContent{ID: "c1", Name: "get_weather", Arguments: json.RawMessage(`{"location":"NYC"}`)}),
		textResponse("it's sunny"),
	}}

	a, err := NewBuilder(model).RmcpTool(def, client).Build(context.Background())
	require.NoError(t, err)

	resp, err := a.Prompt(context.Background(), "what's the weather in NYC?", nil)
	require.NoError(t, err)
	assert.Equal(t, "it's sunny", resp.Output)
}
