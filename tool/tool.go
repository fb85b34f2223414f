// Package tool defines the two-layer typed/erased tool abstraction: authors
// write a typed Tool[Args, Output] against a Go struct; the dispatch wrapper
// erases both types into a (string) -> (string, error) callable that the
// tool server actor stores and invokes.
package tool

import (
	"context"
	"encoding/json"

	"github.com/invopop/jsonschema"
	jsonschemavalidate "github.com/santhosh-tekuri/jsonschema/v5"
)

// Definition is the wire-level description of a tool: {name, description,
// JSON-schema parameters}, as sent to a provider alongside a completion
// request.
type Definition struct {
	Name        string
	Description string
	Parameters  *jsonschema.Schema
}

// Typed is the compile-time-typed tool trait authors implement. Args is
// deserialized from the model's JSON arguments; Output is serialized back to
// JSON as the tool result.
type Typed[Args any, Output any] interface {
	// Name is the tool's compile-time identifier, echoed in Definition.Name.
	Name() string
	// Description is shown to the model in the tool definition.
	Description() string
	// Call executes the tool against typed arguments.
	Call(ctx context.Context, args Args) (Output, error)
}

// Dyn is the erased form every Typed tool is wrapped into for storage and
// actor dispatch: a callable over JSON strings plus a definition accessor.
type Dyn interface {
	Name() string
	Definition() Definition
	// CallJSON accepts the model's raw JSON arguments and returns the JSON
	// result or a ToolError.
	CallJSON(ctx context.Context, argsJSON string) (string, error)
}

// erased adapts a Typed[Args, Output] into Dyn.
type erased[Args any, Output any] struct {
	t         Typed[Args, Output]
	schema    *jsonschema.Schema
	validator *jsonschemavalidate.Schema
}

// Erase wraps a typed tool into its erased Dyn form, deriving its JSON
// schema from Args by reflection and compiling that schema into a validator
// CallJSON runs incoming arguments through. Compilation failure degrades to
// an unvalidated tool (best-effort: a handful of Go types don't reflect into
// schemas jsonschema/v5 accepts, e.g. recursive types) rather than making
// every tool author responsible for schema compilation.
func Erase[Args any, Output any](t Typed[Args, Output]) Dyn {
	reflector := &jsonschema.Reflector{
		ExpandedStruct: true,
		DoNotReference: true,
	}
	var zero Args
	schema := reflector.Reflect(zero)

	validator, _ := compileValidator(t.Name(), schema)

	return &erased[Args, Output]{t: t, schema: schema, validator: validator}
}

func (e *erased[Args, Output]) Name() string { return e.t.Name() }

func (e *erased[Args, Output]) Definition() Definition {
	return Definition{
		Name:        e.t.Name(),
		Description: e.t.Description(),
		Parameters:  e.schema,
	}
}

func (e *erased[Args, Output]) CallJSON(ctx context.Context, argsJSON string) (string, error) {
	if err := validateArgsJSON(e.validator, argsJSON); err != nil {
		return "", err
	}

	var args Args
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return "", &JSONError{Stage: "unmarshal-args", Err: err}
	}

	out, err := e.t.Call(ctx, args)
	if err != nil {
		return "", &CallError{Tool: e.t.Name(), Err: err}
	}

	resultJSON, err := json.Marshal(out)
	if err != nil {
		return "", &JSONError{Stage: "marshal-result", Err: err}
	}
	return string(resultJSON), nil
}

// Func builds a Dyn directly from a name, description, argument-less schema
// source and a handler, for tools that don't warrant a dedicated Typed type
// (grounded on the teacher's NewTool/WithHandler builder pattern, adapted to
// the typed/erased split: the schema is still derived from Args).
func Func[Args any, Output any](name, description string, handler func(context.Context, Args) (Output, error)) Dyn {
	return Erase[Args, Output](funcTool[Args, Output]{name: name, description: description, handler: handler})
}

type funcTool[Args any, Output any] struct {
	name        string
	description string
	handler     func(context.Context, Args) (Output, error)
}

func (f funcTool[Args, Output]) Name() string        { return f.name }
func (f funcTool[Args, Output]) Description() string { return f.description }
func (f funcTool[Args, Output]) Call(ctx context.Context, args Args) (Output, error) {
	return f.handler(ctx, args)
}
