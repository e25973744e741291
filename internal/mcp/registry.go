// ABOUTME: Tool registry mapping tool names to descriptions, schemas, and handlers.
// ABOUTME: Populated once at start-up; listing preserves registration order.

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
)

// ErrToolNotFound indicates no tool is registered under the requested name.
var ErrToolNotFound = errors.New("tool not found")

// ToolHandler executes a tool with the raw arguments object from tools/call.
// A returned *RPCError is reported as a protocol error; any other error is
// reported to the client as an isError result.
type ToolHandler func(ctx context.Context, arguments json.RawMessage) (*CallToolResult, error)

// Tool is a registered tool definition and its handler.
type Tool struct {
	Name        string
	Description string
	InputSchema *InputSchema
	Handler     ToolHandler
}

// Info returns the tools/list representation of the tool.
func (t *Tool) Info() ToolInfo {
	return ToolInfo{
		Name:        t.Name,
		Description: t.Description,
		InputSchema: t.InputSchema,
	}
}

// Registry holds the tools exposed by the server.
type Registry struct {
	mu     sync.RWMutex
	order  []string
	tools  map[string]*Tool
	logger *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tools:  make(map[string]*Tool),
		logger: logger,
	}
}

// Register adds a tool. Registering an existing name replaces the earlier
// tool in place, keeping its position in the listing.
func (r *Registry) Register(tool *Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[tool.Name]; exists {
		r.logger.Warn("tool re-registered, replacing previous definition", "tool_name", tool.Name)
	} else {
		r.order = append(r.order, tool.Name)
	}
	r.tools[tool.Name] = tool

	r.logger.Debug("tool registered", "tool_name", tool.Name, "total_tools", len(r.tools))
}

// List returns all tools in registration order.
func (r *Registry) List() []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]*Tool, 0, len(r.order))
	for _, name := range r.order {
		tools = append(tools, r.tools[name])
	}
	return tools
}

// Resolve looks up a tool by name.
func (r *Registry) Resolve(name string) (*Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return tool, nil
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// AddTool derives the input schema from P and registers fn under name.
// The registered handler decodes and validates the arguments into a P
// before calling fn.
func AddTool[P any](r *Registry, name, description string, fn func(context.Context, P) (*CallToolResult, error)) error {
	schema, err := DeriveSchema(name, reflect.TypeFor[P]())
	if err != nil {
		return fmt.Errorf("deriving schema for %s: %w", name, err)
	}

	r.Register(&Tool{
		Name:        name,
		Description: description,
		InputSchema: schema,
		Handler: func(ctx context.Context, arguments json.RawMessage) (*CallToolResult, error) {
			var params P
			if err := decodeArguments(schema, arguments, &params); err != nil {
				return nil, err
			}
			return fn(ctx, params)
		},
	})
	return nil
}
