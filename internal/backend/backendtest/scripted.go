// Package backendtest provides deterministic backend doubles for tests.
package backendtest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/lewflauta/AgenticSocialBot/internal/backend"
)

// Step configures one backend turn in a scripted sequence. When Func is set
// it computes the response from the request.
type Step struct {
	Response backend.Response
	Err      error
	Func     func(req backend.Request) (backend.Response, error)
}

// Scripted replays a fixed sequence of responses and records every request.
type Scripted struct {
	mu       sync.Mutex
	index    int
	steps    []Step
	requests []backend.Request
}

func NewScripted(steps ...Step) *Scripted {
	cloned := make([]Step, len(steps))
	copy(cloned, steps)
	return &Scripted{steps: cloned}
}

var _ backend.Backend = (*Scripted)(nil)

func (s *Scripted) Complete(ctx context.Context, req backend.Request) (backend.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", backend.ErrUnavailable, err)
	}

	s.mu.Lock()
	s.requests = append(s.requests, backend.Request{
		Instructions: req.Instructions,
		Messages:     backend.CloneMessages(req.Messages),
		Output:       req.Output,
		Tools:        append([]backend.ToolDefinition(nil), req.Tools...),
	})
	if s.index >= len(s.steps) {
		s.mu.Unlock()
		return nil, fmt.Errorf("script exhausted at step %d", s.index+1)
	}
	current := s.steps[s.index]
	s.index++
	s.mu.Unlock()

	if current.Func != nil {
		return current.Func(req)
	}
	if current.Err != nil {
		return nil, current.Err
	}
	return current.Response, nil
}

// Calls returns how many times Complete was invoked.
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// Requests returns copies of the recorded requests in call order.
func (s *Scripted) Requests() []backend.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]backend.Request(nil), s.requests...)
}

// Text is a FinalAnswer step carrying free text.
func Text(text string) Step {
	return Step{Response: backend.FinalAnswer{Text: text}}
}

// Structured is a FinalAnswer step carrying v encoded as JSON.
func Structured(v any) Step {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("backendtest: marshal structured answer: %v", err))
	}
	return Step{Response: backend.FinalAnswer{Structured: raw}}
}

// StructuredFrom is a FinalAnswer step whose JSON value is computed from the
// request, typically from the tool results already in the conversation.
func StructuredFrom(fn func(req backend.Request) any) Step {
	return Step{Func: func(req backend.Request) (backend.Response, error) {
		raw, err := json.Marshal(fn(req))
		if err != nil {
			return nil, fmt.Errorf("backendtest: marshal structured answer: %w", err)
		}
		return backend.FinalAnswer{Structured: raw}, nil
	}}
}

// Call is a ToolRequest step for a single tool call. args is encoded as JSON
// unless it is already a json.RawMessage.
func Call(id, name string, args any) Step {
	return Calls(backend.ToolCall{ID: id, Name: name, Arguments: encodeArgs(args)})
}

// Calls is a ToolRequest step for several tool calls issued in one turn.
func Calls(calls ...backend.ToolCall) Step {
	return Step{Response: backend.ToolRequest{Calls: calls}}
}

// Args encodes v as tool call arguments.
func Args(v any) json.RawMessage {
	return encodeArgs(v)
}

// Fail is a step that returns err.
func Fail(err error) Step {
	return Step{Err: err}
}

func encodeArgs(v any) json.RawMessage {
	if raw, ok := v.(json.RawMessage); ok {
		return raw
	}
	raw, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("backendtest: marshal arguments: %v", err))
	}
	return raw
}
