// Package tools holds the registry of side-effecting capabilities that roles
// can invoke through the backend's tool-call mechanism.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lewflauta/AgenticSocialBot/internal/backend"
)

var (
	// ErrUnknownTool is returned when a name is not registered.
	ErrUnknownTool = errors.New("unknown tool")
	// ErrInvalidArguments is returned when arguments do not conform to the
	// tool's declared input schema.
	ErrInvalidArguments = errors.New("invalid tool arguments")
)

// tool is the type-erased form of a registered capability.
type tool struct {
	def      backend.ToolDefinition
	resolved *jsonschema.Resolved
	call     func(ctx context.Context, raw json.RawMessage) (any, error)
	mount    func(server *mcp.Server)
}

// Registry maps tool names to capabilities. It is safe for concurrent use and
// holds no per-run state.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*tool
	order []string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*tool)}
}

// Register adds a tool whose argument schema is derived from In. Fields
// without omitempty are required. The handler's Out value is JSON-encoded as
// the tool result.
func Register[In, Out any](r *Registry, name, description string, fn func(ctx context.Context, in In) (Out, error)) error {
	if name == "" {
		return errors.New("tools: name is required")
	}
	if fn == nil {
		return fmt.Errorf("tools: %s: handler is required", name)
	}
	schema, err := jsonschema.For[In](nil)
	if err != nil {
		return fmt.Errorf("tools: %s: infer input schema: %w", name, err)
	}
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return fmt.Errorf("tools: %s: resolve input schema: %w", name, err)
	}

	t := &tool{
		def: backend.ToolDefinition{
			Name:        name,
			Description: description,
			InputSchema: schema,
		},
		resolved: resolved,
		call: func(ctx context.Context, raw json.RawMessage) (any, error) {
			var in In
			if err := json.Unmarshal(raw, &in); err != nil {
				return nil, fmt.Errorf("%w: %s: %w", ErrInvalidArguments, name, err)
			}
			return fn(ctx, in)
		},
		mount: func(server *mcp.Server) {
			mcp.AddTool(server, &mcp.Tool{Name: name, Description: description},
				func(ctx context.Context, _ *mcp.CallToolRequest, in In) (*mcp.CallToolResult, Out, error) {
					out, err := fn(ctx, in)
					return nil, out, err
				})
		},
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tools: %s: already registered", name)
	}
	r.tools[name] = t
	r.order = append(r.order, name)
	return nil
}

// Names returns registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// Definitions returns the definitions for the named tools, in the order
// given. With no names every registered tool is returned. Unknown names fail
// with ErrUnknownTool.
func (r *Registry) Definitions(names ...string) ([]backend.ToolDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(names) == 0 {
		names = r.order
	}
	defs := make([]backend.ToolDefinition, 0, len(names))
	for _, name := range names {
		t, ok := r.tools[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTool, name)
		}
		defs = append(defs, t.def)
	}
	return defs, nil
}

// Invoke validates raw against the tool's schema, runs it and returns the
// JSON-encoded result. Empty arguments are treated as an empty object.
func (r *Registry) Invoke(ctx context.Context, name string, raw json.RawMessage) (string, error) {
	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		raw = json.RawMessage("{}")
	}
	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return "", fmt.Errorf("%w: %s: arguments are not valid JSON: %w", ErrInvalidArguments, name, err)
	}
	if err := t.resolved.Validate(instance); err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrInvalidArguments, name, err)
	}

	out, err := t.call(ctx, raw)
	if err != nil {
		return "", err
	}
	encoded, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("tools: %s: encode result: %w", name, err)
	}
	return string(encoded), nil
}

// NewMCPServer exposes every registered tool over the Model Context Protocol.
func (r *Registry) NewMCPServer(name, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, nil)
	r.MountMCP(server)
	return server
}

// MountMCP adds every registered tool to an existing MCP server.
func (r *Registry) MountMCP(server *mcp.Server) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range r.order {
		r.tools[name].mount(server)
	}
}
