package tools

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esmcp/mcp"
)

func testRegistry(t *testing.T, calls *atomic.Int64, seen *json.RawMessage) *Registry {
	t.Helper()
	reg, err := NewRegistry(Descriptor{
		Name:        "echo",
		Description: "echo back the value argument",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {"value": {"type": "string"}},
			"required": ["value"]
		}`),
		Handler: func(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error) {
			calls.Add(1)
			b, _ := json.Marshal(args)
			*seen = b
			return mcp.NewToolResult(mcp.NewTextContent(args["value"].(string))), nil
		},
	})
	require.NoError(t, err)
	return reg
}

func TestRegistryCall(t *testing.T) {
	var calls atomic.Int64
	var seen json.RawMessage
	reg := testRegistry(t, &calls, &seen)

	result, err := reg.Call(context.Background(), "echo", json.RawMessage(`{"value":"hi","extra":1}`))
	require.NoError(t, err)
	require.Len(t, result.Content, 1)
	assert.Equal(t, "hi", result.Content[0].Text)
	assert.Equal(t, int64(1), calls.Load())

	// Arguments reach the handler unmodified, extra fields included.
	var got map[string]any
	require.NoError(t, json.Unmarshal(seen, &got))
	assert.Equal(t, float64(1), got["extra"])
}

func TestRegistryUnknownTool(t *testing.T) {
	var calls atomic.Int64
	var seen json.RawMessage
	reg := testRegistry(t, &calls, &seen)

	_, err := reg.Call(context.Background(), "nope", json.RawMessage(`{"value":"hi"}`))
	require.Error(t, err)

	me := mcp.AsError(err)
	assert.Equal(t, mcp.KindUnknownTool, me.Kind)
	assert.Equal(t, int64(0), calls.Load(), "handler must not run for unknown tools")
}

func TestRegistryInvalidArguments(t *testing.T) {
	var calls atomic.Int64
	var seen json.RawMessage
	reg := testRegistry(t, &calls, &seen)

	_, err := reg.Call(context.Background(), "echo", json.RawMessage(`{}`))
	require.Error(t, err)

	me := mcp.AsError(err)
	assert.Equal(t, mcp.KindInvalidArguments, me.Kind)
	assert.Equal(t, "value", me.Field)
	assert.Equal(t, int64(0), calls.Load(), "handler must not run on validation failure")
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	noop := func(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error) {
		return mcp.NewToolResult(), nil
	}
	schema := json.RawMessage(`{"type":"object"}`)

	_, err := NewRegistry(
		Descriptor{Name: "a", InputSchema: schema, Handler: noop},
		Descriptor{Name: "a", InputSchema: schema, Handler: noop},
	)
	assert.Error(t, err)
}

func TestRegistryListOrder(t *testing.T) {
	noop := func(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error) {
		return mcp.NewToolResult(), nil
	}
	schema := json.RawMessage(`{"type":"object"}`)

	reg, err := NewRegistry(
		Descriptor{Name: "b", InputSchema: schema, Handler: noop},
		Descriptor{Name: "a", InputSchema: schema, Handler: noop},
	)
	require.NoError(t, err)

	list := reg.List()
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].Name)
	assert.Equal(t, "a", list[1].Name)
}
