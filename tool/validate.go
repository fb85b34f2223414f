package tool

import (
	"bytes"
	"encoding/json"
	"fmt"

	jsonschemavalidate "github.com/santhosh-tekuri/jsonschema/v5"
)

// compileValidator compiles a tool's derived JSON schema into a validator
// that CallJSON runs arguments through before unmarshaling, so malformed
// arguments surface as a JSONError rather than a bare unmarshal failure or
// (worse) a zero-valued Args struct silently passed to the handler.
func compileValidator(toolName string, schema any) (*jsonschemavalidate.Schema, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("tool %s: marshal derived schema: %w", toolName, err)
	}

	resourceURL := "mem://tool/" + toolName + ".json"
	compiler := jsonschemavalidate.NewCompiler()
	if err := compiler.AddResource(resourceURL, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("tool %s: register derived schema: %w", toolName, err)
	}
	return compiler.Compile(resourceURL)
}

// validateArgsJSON decodes argsJSON into an any value and runs it through v,
// returning a JSONError on either decode or schema-validation failure.
func validateArgsJSON(v *jsonschemavalidate.Schema, argsJSON string) error {
	if v == nil {
		return nil
	}
	var decoded any
	if err := json.Unmarshal([]byte(argsJSON), &decoded); err != nil {
		return &JSONError{Stage: "decode-for-validation", Err: err}
	}
	if err := v.Validate(decoded); err != nil {
		return &JSONError{Stage: "schema-validation", Err: err}
	}
	return nil
}
