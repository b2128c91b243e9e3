// Package validate admits or rejects tool arguments before any Elasticsearch
// interaction occurs. Schemas are plain JSON Schema documents checked by a
// structural walk of the argument payload; extra fields a schema does not
// mention pass through untouched for forward compatibility.
package validate

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/esmcp/mcp"
)

// Compile parses a tool's input schema. Called once per tool at registry
// construction; a broken schema is a boot-time configuration error, not a
// per-request one.
func Compile(schema json.RawMessage) (*gojsonschema.Schema, error) {
	if len(schema) == 0 {
		return nil, fmt.Errorf("empty input schema")
	}
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schema))
	if err != nil {
		return nil, fmt.Errorf("invalid input schema: %w", err)
	}
	return compiled, nil
}

// Arguments checks a raw argument payload against a compiled schema. On
// failure the returned error names the first offending field.
func Arguments(schema *gojsonschema.Schema, args json.RawMessage) error {
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(args))
	if err != nil {
		return mcp.NewInvalidArgumentsError("", fmt.Sprintf("arguments are not a JSON object: %s", err))
	}
	if result.Valid() {
		return nil
	}

	first := result.Errors()[0]
	return mcp.NewInvalidArgumentsError(offendingField(first), first.String())
}

// offendingField resolves the field a validation error is about. A missing
// required property is reported against the root, with the property name in
// the error details.
func offendingField(e gojsonschema.ResultError) string {
	if prop, ok := e.Details()["property"].(string); ok && e.Type() == "required" {
		return prop
	}
	if f := e.Field(); f != "(root)" {
		return f
	}
	return ""
}
