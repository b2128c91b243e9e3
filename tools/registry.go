// Package tools holds the tool registry and the Elasticsearch tool handlers.
// The registry is built once at boot and read-only afterwards, so every
// session can consult it without locking.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/esmcp/mcp"
	"github.com/esmcp/validate"
)

// HandlerFunc executes one tool against validated arguments. It suspends on
// Elasticsearch I/O and must abandon the call when ctx is cancelled.
type HandlerFunc func(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error)

// Descriptor binds a tool name to its input schema and handler.
type Descriptor struct {
	Name        string
	Description string
	InputSchema json.RawMessage
	Annotations *mcp.ToolAnnotations
	Handler     HandlerFunc

	compiled *gojsonschema.Schema
}

type Registry struct {
	byName map[string]*Descriptor
	order  []string
}

// NewRegistry compiles every descriptor's schema and freezes the mapping.
// Duplicate names and broken schemas are boot-time errors.
func NewRegistry(descs ...Descriptor) (*Registry, error) {
	r := &Registry{byName: make(map[string]*Descriptor, len(descs))}
	for i := range descs {
		d := descs[i]
		if d.Name == "" || d.Handler == nil {
			return nil, fmt.Errorf("tool descriptor %d is missing a name or handler", i)
		}
		if _, dup := r.byName[d.Name]; dup {
			return nil, fmt.Errorf("duplicate tool name %q", d.Name)
		}
		compiled, err := validate.Compile(d.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("tool %q: %w", d.Name, err)
		}
		d.compiled = compiled
		r.byName[d.Name] = &d
		r.order = append(r.order, d.Name)
	}
	return r, nil
}

// List returns the discovery view of every registered tool, in registration
// order.
func (r *Registry) List() []mcp.Tool {
	out := make([]mcp.Tool, 0, len(r.order))
	for _, name := range r.order {
		d := r.byName[name]
		out = append(out, mcp.Tool{
			Name:        d.Name,
			Description: d.Description,
			InputSchema: d.InputSchema,
			Annotations: d.Annotations,
		})
	}
	return out
}

// Call looks up a tool, validates the raw arguments against its schema and
// invokes the handler. No handler runs, and no Elasticsearch call is made,
// unless validation passed.
func (r *Registry) Call(ctx context.Context, name string, rawArgs json.RawMessage) (*mcp.CallToolResult, error) {
	d, ok := r.byName[name]
	if !ok {
		return nil, mcp.NewUnknownToolError(name)
	}

	if err := validate.Arguments(d.compiled, rawArgs); err != nil {
		return nil, err
	}

	args := map[string]any{}
	if len(rawArgs) > 0 {
		if err := json.Unmarshal(rawArgs, &args); err != nil {
			return nil, mcp.NewInvalidArgumentsError("", fmt.Sprintf("arguments are not a JSON object: %s", err))
		}
	}
	return d.Handler(ctx, args)
}
