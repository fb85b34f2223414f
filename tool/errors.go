package tool

import "fmt"

// JSONError indicates a tool's argument parse, argument schema validation,
// result serialize or MCP schema decode step failed — the JsonError variant
// from §4.2.
type JSONError struct {
	Stage string // "unmarshal-args", "marshal-result", "decode-for-validation", "schema-validation" or "unmarshal-mcp-schema"
	Err   error
}

func (e *JSONError) Error() string {
	return fmt.Sprintf("tool: json error at %s: %v", e.Stage, e.Err)
}
func (e *JSONError) Unwrap() error { return e.Err }

// CallError wraps an opaque error returned by the tool's own Call
// implementation — the ToolCallError variant from §4.2.
type CallError struct {
	Tool string
	Err  error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("tool %s: call failed: %v", e.Tool, e.Err)
}
func (e *CallError) Unwrap() error { return e.Err }
