package agent

import (
	"context"
	"encoding/json"

	"github.com/agentflow-go/agentflow/completion"
	"github.com/agentflow-go/agentflow/logging"
	"github.com/agentflow-go/agentflow/message"
	"github.com/agentflow-go/agentflow/tool"
	"github.com/agentflow-go/agentflow/toolserver"
)

type toolConfigState int

const (
	toolConfigNone toolConfigState = iota
	toolConfigOwned
	toolConfigExternalHandle
)

// Builder assembles an Agent. Spec §4.7 models tool configuration as a
// typestate (builder-owned tools vs. an external tool-server handle are
// mutually exclusive, transitions irreversible); Go has no compile-time
// typestate without duplicating every other builder method across two
// types, so this tracks the state at runtime and panics at the call that
// makes the illegal combination, matching the teacher's single fluent-Builder shape
// (agent/builder.go) rather than forking into parallel builder types.
type Builder struct {
	model       completion.Model
	name        string
	description string
	preamble    string

	staticDocs     []message.DocumentContent
	dynamicContext []dynamicContextEntry

	temperature      *float64
	maxTokens        *int
	additionalParams json.RawMessage
	toolChoice       *completion.ToolChoice
	outputSchema     json.RawMessage
	defaultMaxTurns  int

	toolConfig     toolConfigState
	ownedTools     *tool.Set
	ownedDynamic   []toolserver.DynamicEntrySpec
	toolConcurrency int
	externalHandle *toolserver.Server

	hook   Hook
	logger logging.Logger
}

// NewBuilder starts a Builder around a configured completion model.
func NewBuilder(model completion.Model) *Builder {
	return &Builder{
		model:           model,
		defaultMaxTurns: 5,
		toolConcurrency: 10,
	}
}

func (b *Builder) Name(name string) *Builder               { b.name = name; return b }
func (b *Builder) Description(description string) *Builder { b.description = description; return b }

// Preamble replaces the system prompt.
func (b *Builder) Preamble(preamble string) *Builder { b.preamble = preamble; return b }

// AppendPreamble concatenates to the existing preamble with a newline.
func (b *Builder) AppendPreamble(extra string) *Builder {
	if b.preamble == "" {
		b.preamble = extra
	} else {
		b.preamble = b.preamble + "\n" + extra
	}
	return b
}

// WithoutPreamble clears the preamble.
func (b *Builder) WithoutPreamble() *Builder { b.preamble = ""; return b }

// Context adds a static context document.
func (b *Builder) Context(doc message.DocumentContent) *Builder {
	b.staticDocs = append(b.staticDocs, doc)
	return b
}

// DynamicContext registers a dynamic-context document source queried for up
// to sampleCount documents per prompt.
func (b *Builder) DynamicContext(sampleCount int, source DynamicDocSource) *Builder {
	b.dynamicContext = append(b.dynamicContext, dynamicContextEntry{sampleCount: sampleCount, source: source})
	return b
}

func (b *Builder) Temperature(t float64) *Builder { b.temperature = &t; return b }
func (b *Builder) MaxTokens(n int) *Builder        { b.maxTokens = &n; return b }
func (b *Builder) AdditionalParams(raw json.RawMessage) *Builder {
	b.additionalParams = raw
	return b
}
func (b *Builder) ToolChoice(choice completion.ToolChoice) *Builder { b.toolChoice = &choice; return b }
func (b *Builder) DefaultMaxTurns(n int) *Builder                   { b.defaultMaxTurns = n; return b }
func (b *Builder) OutputSchema(raw json.RawMessage) *Builder        { b.outputSchema = raw; return b }
func (b *Builder) WithHook(h Hook) *Builder                         { b.hook = h; return b }
func (b *Builder) WithLogger(l logging.Logger) *Builder             { b.logger = l; return b }
func (b *Builder) ToolConcurrency(n int) *Builder                   { b.toolConcurrency = n; return b }

// Tool registers one builder-owned tool. Mutually exclusive with
// ToolServerHandle.
func (b *Builder) Tool(t tool.Dyn) *Builder {
	b.enterOwnedToolState()
	b.ownedTools.Add(t)
	return b
}

// Tools registers several builder-owned tools at once.
func (b *Builder) Tools(ts ...tool.Dyn) *Builder {
	b.enterOwnedToolState()
	for _, t := range ts {
		b.ownedTools.Add(t)
	}
	return b
}

// RmcpTool registers a single MCP-advertised tool, backed by client, as a
// builder-owned tool — the Go counterpart of rig-core's rmcp_tool, minus the
// rmcp crate itself: def is built from whatever the MCP server's list_tools
// advertised (see tool.McpToolDefinition), and client is the caller's own MCP
// connection satisfying tool.McpClient. Mutually exclusive with
// ToolServerHandle, like Tool/Tools/DynamicTools.
func (b *Builder) RmcpTool(def tool.Definition, client tool.McpClient) *Builder {
	return b.Tool(tool.NewMcpTool(def, client))
}

// RmcpTools registers several MCP-advertised tools sharing one client
// connection — the Go counterpart of rig-core's rmcp_tools.
func (b *Builder) RmcpTools(defs []tool.Definition, client tool.McpClient) *Builder {
	for _, def := range defs {
		b.Tool(tool.NewMcpTool(def, client))
	}
	return b
}

// DynamicTools registers a dynamic tool source resolved at GetToolDefs time,
// sampling up to sampleCount tool ids per prompt from source, looked up
// against set.
func (b *Builder) DynamicTools(sampleCount int, source toolserver.DynamicSource, set *tool.Set) *Builder {
	b.enterOwnedToolState()
	b.ownedTools.Merge(set)
	b.ownedDynamic = append(b.ownedDynamic, toolserver.DynamicEntrySpec{SampleCount: sampleCount, Source: source})
	return b
}

// ToolServerHandle configures the agent to use an externally-owned tool
// server instead of spinning up its own. Mutually exclusive with
// Tool/Tools/DynamicTools.
func (b *Builder) ToolServerHandle(h *toolserver.Server) *Builder {
	if b.toolConfig == toolConfigOwned {
		panic("agent: ToolServerHandle is mutually exclusive with builder-owned tools")
	}
	b.toolConfig = toolConfigExternalHandle
	b.externalHandle = h
	return b
}

func (b *Builder) enterOwnedToolState() {
	if b.toolConfig == toolConfigExternalHandle {
		panic("agent: Tool/Tools/DynamicTools is mutually exclusive with ToolServerHandle")
	}
	b.toolConfig = toolConfigOwned
	if b.ownedTools == nil {
		b.ownedTools = tool.NewSet()
	}
}

// Build produces an Agent. In the builder-owned tool state it spins up a
// fresh tool-server actor with the accumulated tools, scoped to ctx (the
// actor stops when ctx is cancelled).
func (b *Builder) Build(ctx context.Context) (*Agent, error) {
	if b.model == nil {
		return nil, &ConfigError{Reason: "no completion model configured"}
	}

	a := &Agent{
		model:            b.model,
		name:             b.name,
		description:      b.description,
		preamble:         b.preamble,
		staticDocs:       b.staticDocs,
		dynamicContext:   b.dynamicContext,
		temperature:      b.temperature,
		maxTokens:        b.maxTokens,
		additionalParams: b.additionalParams,
		toolChoice:       b.toolChoice,
		outputSchema:     b.outputSchema,
		defaultMaxTurns:  b.defaultMaxTurns,
		hook:             b.hook,
	}

	switch b.toolConfig {
	case toolConfigExternalHandle:
		a.toolServer = b.externalHandle
	case toolConfigOwned:
		logger := b.logger
		if logger == nil {
			logger = logging.NoopLogger{}
		}
		a.toolServer = toolserver.New(ctx, b.ownedTools, b.ownedDynamic, b.toolConcurrency, logger)
	}

	return a, nil
}
