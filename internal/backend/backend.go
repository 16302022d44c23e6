// Package backend defines the text-generation contract the pipeline runs
// against and the adapters that implement it.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"slices"

	"github.com/google/jsonschema-go/jsonschema"
)

// ErrUnavailable is returned when the backend cannot be reached or answers
// with a transport-level failure. Callers decide whether to retry.
var ErrUnavailable = errors.New("backend unavailable")

// ErrRejected is returned when the backend refuses the request itself, for
// example a bad API key or an unknown model. Retrying will not help.
var ErrRejected = errors.New("backend rejected the request")

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry of the conversation sent to the backend.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// ToolCall is a tool invocation requested by the backend. Arguments are the
// raw JSON object the backend produced; they are validated by the registry.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// ToolDefinition declares a callable tool to the backend.
type ToolDefinition struct {
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	InputSchema *jsonschema.Schema `json:"input_schema,omitempty"`
}

// OutputSpec asks the backend for a structured answer conforming to Schema.
type OutputSpec struct {
	Name   string
	Schema *jsonschema.Schema
}

// Request is the input of one backend call.
type Request struct {
	Instructions string
	Messages     []Message
	Output       *OutputSpec
	Tools        []ToolDefinition
}

// Response is either a FinalAnswer or a ToolRequest.
type Response interface {
	isResponse()
}

// FinalAnswer ends a role's interaction loop. Structured is set when the
// backend honored an OutputSpec; Text otherwise.
type FinalAnswer struct {
	Text       string
	Structured json.RawMessage
}

// ToolRequest asks the caller to run Calls and resubmit the results.
type ToolRequest struct {
	Text  string
	Calls []ToolCall
}

func (FinalAnswer) isResponse() {}
func (ToolRequest) isResponse() {}

// Backend produces the next response for a conversation. Implementations must
// be safe for concurrent use.
type Backend interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// CloneMessages returns deep copies of msgs so callers can append without
// aliasing the caller's slice.
func CloneMessages(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m
		if len(m.ToolCalls) > 0 {
			out[i].ToolCalls = make([]ToolCall, len(m.ToolCalls))
			for j, c := range m.ToolCalls {
				out[i].ToolCalls[j] = ToolCall{ID: c.ID, Name: c.Name, Arguments: slices.Clone(c.Arguments)}
			}
		}
	}
	return out
}
