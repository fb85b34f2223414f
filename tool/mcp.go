package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
)

// McpClient is the call surface agentflow needs from an MCP client
// connection — grounded on rig-core's rmcp::service::ServerSink, narrowed to
// the one method a tool invocation needs. A caller wires in whichever
// concrete MCP client library they depend on (no such library ships in this
// module); McpClient lets that client satisfy agentflow's tool.Dyn contract
// without agentflow importing an MCP SDK of its own.
type McpClient interface {
	CallTool(ctx context.Context, name string, argumentsJSON json.RawMessage) (McpToolResult, error)
}

// McpToolResult is MCP's call_tool response, reduced to the content
// agentflow can render into a tool result string: text passed through, image
// content turned into a data URI, resource content turned into "uri:text"
// (prefixed with "data:<mime>;" when the resource has a MIME type),
// following rig-core's McpTool::call content-flattening switch.
type McpToolResult struct {
	IsError bool
	Content []McpContent
}

// McpContentKind selects which McpContent field is populated.
type McpContentKind int

const (
	McpContentText McpContentKind = iota
	McpContentImage
	McpContentResource
)

type McpContent struct {
	Kind McpContentKind

	Text string // McpContentText, McpContentResource (resource body)

	MimeType string // McpContentImage, McpContentResource
	Data     string // McpContentImage: base64 payload
	URI      string // McpContentResource
}

// McpToolError wraps a failure reported by the MCP server, either a
// transport-level CallTool error or an IsError result — the McpToolError
// variant rig-core's rmcp module defines.
type McpToolError struct {
	Tool    string
	Message string
}

func (e *McpToolError) Error() string {
	return fmt.Sprintf("tool %s: mcp error: %s", e.Tool, e.Message)
}

// mcpTool adapts a single MCP-advertised tool into tool.Dyn, grounded on
// rig-core's tool::rmcp::McpTool. Unlike Erase, it does not derive or
// validate a JSON schema locally — the schema in Definition is whatever the
// MCP server advertised, and argument validation is the server's job.
type mcpTool struct {
	def    Definition
	client McpClient
}

// NewMcpTool wraps an MCP server's advertised tool (name, description,
// parameter schema) plus a client connection into a Dyn callable through the
// ordinary tool-dispatch path, the same role rmcp_tool/RmcpTool::from_mcp_server
// play in the Rust original.
func NewMcpTool(def Definition, client McpClient) Dyn {
	return &mcpTool{def: def, client: client}
}

// McpToolDefinition converts an MCP tool name/description/raw JSON-schema
// triple (as advertised over list_tools) into agentflow's Definition,
// mirroring rig-core's `impl From<rmcp::model::Tool> for ToolDefinition`.
func McpToolDefinition(name, description string, rawSchema json.RawMessage) (Definition, error) {
	def := Definition{Name: name, Description: description}
	if len(rawSchema) == 0 {
		return def, nil
	}
	var schema jsonschema.Schema
	if err := json.Unmarshal(rawSchema, &schema); err != nil {
		return Definition{}, &JSONError{Stage: "unmarshal-mcp-schema", Err: err}
	}
	def.Parameters = &schema
	return def, nil
}

func (m *mcpTool) Name() string           { return m.def.Name }
func (m *mcpTool) Definition() Definition { return m.def }

func (m *mcpTool) CallJSON(ctx context.Context, argsJSON string) (string, error) {
	result, err := m.client.CallTool(ctx, m.def.Name, json.RawMessage(argsJSON))
	if err != nil {
		return "", &McpToolError{Tool: m.def.Name, Message: err.Error()}
	}
	if result.IsError {
		return "", &McpToolError{Tool: m.def.Name, Message: flattenMcpText(result.Content)}
	}
	return renderMcpContent(result.Content), nil
}

func flattenMcpText(content []McpContent) string {
	var parts []string
	for _, c := range content {
		if c.Kind == McpContentText && c.Text != "" {
			parts = append(parts, c.Text)
		}
	}
	if len(parts) == 0 {
		return "no message returned"
	}
	return strings.Join(parts, "\n")
}

func renderMcpContent(content []McpContent) string {
	var b strings.Builder
	for _, c := range content {
		switch c.Kind {
		case McpContentText:
			b.WriteString(c.Text)
		case McpContentImage:
			fmt.Fprintf(&b, "data:%s;base64,%s", c.MimeType, c.Data)
		case McpContentResource:
			if c.MimeType != "" {
				fmt.Fprintf(&b, "data:%s;%s:%s", c.MimeType, c.URI, c.Text)
			} else {
				fmt.Fprintf(&b, "%s:%s", c.URI, c.Text)
			}
		}
	}
	return b.String()
}
