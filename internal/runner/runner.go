// Package runner executes one role against a conversation: it calls the
// backend, dispatches requested tools and loops until the backend returns a
// final answer or the iteration cap is reached.
package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lewflauta/AgenticSocialBot/internal/agent"
	"github.com/lewflauta/AgenticSocialBot/internal/backend"
	"github.com/lewflauta/AgenticSocialBot/internal/logging"
	"github.com/lewflauta/AgenticSocialBot/internal/tools"
)

// DefaultMaxIterations bounds backend calls per role execution.
const DefaultMaxIterations = 8

// Failure kinds. Every error returned by Run wraps exactly one of these, or
// a context error when the run was cancelled.
var (
	ErrBackendUnavailable     = errors.New("backend unavailable")
	ErrToolNotFound           = errors.New("tool not found")
	ErrToolExecutionFailed    = errors.New("tool execution failed")
	ErrSchemaViolation        = errors.New("schema violation")
	ErrIterationLimitExceeded = errors.New("iteration limit exceeded")
)

// Tools is the registry surface the runner needs.
type Tools interface {
	Definitions(names ...string) ([]backend.ToolDefinition, error)
	Invoke(ctx context.Context, name string, raw json.RawMessage) (string, error)
}

// Config bounds a role execution. Zero timeouts mean no per-call deadline.
type Config struct {
	MaxIterations  int
	BackendTimeout time.Duration
	ToolTimeout    time.Duration
}

// Output is either TextOutput or StructuredOutput.
type Output interface {
	isOutput()
}

// TextOutput is the answer of a role without an output schema.
type TextOutput struct {
	Text string
}

// StructuredOutput is a schema-conforming JSON answer.
type StructuredOutput struct {
	Value json.RawMessage
}

func (TextOutput) isOutput()       {}
func (StructuredOutput) isOutput() {}

// ToolInvocation records one completed tool call.
type ToolInvocation struct {
	CallID    string          `json:"call_id,omitempty"`
	ToolName  string          `json:"tool_name"`
	Arguments json.RawMessage `json:"arguments"`
	Result    string          `json:"result"`
}

// Result is the materialized outcome of one role execution. Context is the
// input conversation followed by everything the role appended.
type Result struct {
	Output      Output
	Invocations []ToolInvocation
	Context     []backend.Message
}

// Text returns the text answer, if the output is textual.
func (r *Result) Text() (string, bool) {
	out, ok := r.Output.(TextOutput)
	return out.Text, ok
}

// InvocationsOf returns the invocations of the named tool in call order.
func (r *Result) InvocationsOf(name string) []ToolInvocation {
	var out []ToolInvocation
	for _, inv := range r.Invocations {
		if inv.ToolName == name {
			out = append(out, inv)
		}
	}
	return out
}

// Decode unmarshals a structured output into T.
func Decode[T any](r *Result) (T, error) {
	var v T
	out, ok := r.Output.(StructuredOutput)
	if !ok {
		return v, fmt.Errorf("%w: expected structured output, got %T", ErrSchemaViolation, r.Output)
	}
	if err := json.Unmarshal(out.Value, &v); err != nil {
		return v, fmt.Errorf("%w: decode %T: %w", ErrSchemaViolation, v, err)
	}
	return v, nil
}

// Runner is stateless between calls and safe for concurrent use.
type Runner struct {
	backend backend.Backend
	tools   Tools
	cfg     Config
	log     logging.Logger
}

// Option customizes a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(log logging.Logger) Option {
	return func(r *Runner) {
		if log != nil {
			r.log = log
		}
	}
}

// New creates a Runner.
func New(b backend.Backend, t Tools, cfg Config, opts ...Option) (*Runner, error) {
	if b == nil {
		return nil, errors.New("runner: backend is required")
	}
	if t == nil {
		return nil, errors.New("runner: tool registry is required")
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	r := &Runner{backend: b, tools: t, cfg: cfg, log: logging.NewDiscard()}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run executes role against input. Tool invocations are recorded only once
// they complete, so a cancelled run never leaves a partial record.
func (r *Runner) Run(ctx context.Context, role agent.Role, input []backend.Message) (*Result, error) {
	var defs []backend.ToolDefinition
	if len(role.AllowedTools) > 0 {
		var err error
		defs, err = r.tools.Definitions(role.AllowedTools...)
		if err != nil {
			return nil, fmt.Errorf("%w: role %s: %w", ErrToolNotFound, role.Name, err)
		}
	}

	log := r.log.WithField("role", role.Name)
	res := &Result{Context: backend.CloneMessages(input)}

	for step := 1; step <= r.cfg.MaxIterations; step++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("role %s: %w", role.Name, err)
		}

		resp, err := r.complete(ctx, backend.Request{
			Instructions: role.Instructions,
			Messages:     backend.CloneMessages(res.Context),
			Output:       role.OutputSpec(),
			Tools:        defs,
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("role %s: %w", role.Name, ctxErr)
			}
			return nil, fmt.Errorf("%w: role %s: %w", ErrBackendUnavailable, role.Name, err)
		}

		switch v := resp.(type) {
		case backend.FinalAnswer:
			return r.finish(log, role, res, v, step)
		case backend.ToolRequest:
			if len(v.Calls) == 0 {
				return r.finish(log, role, res, backend.FinalAnswer{Text: v.Text}, step)
			}
			res.Context = append(res.Context, backend.Message{
				Role:      backend.RoleAssistant,
				Content:   v.Text,
				ToolCalls: v.Calls,
			})
			for _, call := range v.Calls {
				if err := r.dispatch(ctx, log, role, res, call); err != nil {
					return nil, err
				}
			}
		default:
			return nil, fmt.Errorf("%w: role %s: unexpected response %T", ErrBackendUnavailable, role.Name, resp)
		}
	}

	iterationLimitTotal.WithLabelValues(role.Name).Inc()
	return nil, fmt.Errorf("%w: role %s: no final answer after %d backend calls",
		ErrIterationLimitExceeded, role.Name, r.cfg.MaxIterations)
}

func (r *Runner) complete(ctx context.Context, req backend.Request) (backend.Response, error) {
	if r.cfg.BackendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.BackendTimeout)
		defer cancel()
	}
	start := time.Now()
	resp, err := r.backend.Complete(ctx, req)
	status := "ok"
	if err != nil {
		status = "error"
	}
	backendCallsTotal.WithLabelValues(status).Inc()
	backendDuration.Observe(time.Since(start).Seconds())
	return resp, err
}

func (r *Runner) dispatch(ctx context.Context, log logging.Entry, role agent.Role, res *Result, call backend.ToolCall) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("role %s: %w", role.Name, err)
	}
	if !role.Allows(call.Name) {
		toolCallsTotal.WithLabelValues(call.Name, "not_found").Inc()
		return fmt.Errorf("%w: role %s cannot call %q", ErrToolNotFound, role.Name, call.Name)
	}

	toolCtx := ctx
	if r.cfg.ToolTimeout > 0 {
		var cancel context.CancelFunc
		toolCtx, cancel = context.WithTimeout(ctx, r.cfg.ToolTimeout)
		defer cancel()
	}
	start := time.Now()
	result, err := r.tools.Invoke(toolCtx, call.Name, call.Arguments)
	toolDuration.WithLabelValues(call.Name).Observe(time.Since(start).Seconds())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			toolCallsTotal.WithLabelValues(call.Name, "cancelled").Inc()
			return fmt.Errorf("role %s: %w", role.Name, ctxErr)
		}
		if errors.Is(err, tools.ErrUnknownTool) {
			toolCallsTotal.WithLabelValues(call.Name, "not_found").Inc()
			return fmt.Errorf("%w: role %s: %w", ErrToolNotFound, role.Name, err)
		}
		toolCallsTotal.WithLabelValues(call.Name, "failed").Inc()
		log.WithError(err).WithField("tool", call.Name).Warn("tool call failed")
		return fmt.Errorf("%w: role %s: %s: %w", ErrToolExecutionFailed, role.Name, call.Name, err)
	}

	toolCallsTotal.WithLabelValues(call.Name, "ok").Inc()
	log.WithField("tool", call.Name).Debug("tool call completed")
	res.Invocations = append(res.Invocations, ToolInvocation{
		CallID:    call.ID,
		ToolName:  call.Name,
		Arguments: append(json.RawMessage(nil), call.Arguments...),
		Result:    result,
	})
	res.Context = append(res.Context, backend.Message{
		Role:       backend.RoleTool,
		Content:    result,
		ToolCallID: call.ID,
		Name:       call.Name,
	})
	return nil
}

func (r *Runner) finish(log logging.Entry, role agent.Role, res *Result, ans backend.FinalAnswer, step int) (*Result, error) {
	if role.Output == nil {
		text := ans.Text
		if text == "" && len(ans.Structured) > 0 {
			text = string(ans.Structured)
		}
		res.Output = TextOutput{Text: text}
		res.Context = append(res.Context, backend.Message{Role: backend.RoleAssistant, Content: text})
		log.WithField("steps", step).Debug("role finished with text")
		return res, nil
	}

	raw := ans.Structured
	if len(raw) == 0 {
		raw = extractJSON(ans.Text)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: role %s: backend returned no %s value", ErrSchemaViolation, role.Name, role.Output.Name)
	}
	if err := role.Output.Validate(raw); err != nil {
		return nil, fmt.Errorf("%w: role %s: %w", ErrSchemaViolation, role.Name, err)
	}
	res.Output = StructuredOutput{Value: raw}
	res.Context = append(res.Context, backend.Message{Role: backend.RoleAssistant, Content: string(raw)})
	log.WithField("steps", step).Debug("role finished with structured output")
	return res, nil
}

// extractJSON returns the JSON document in text, unwrapping a markdown code
// fence when present. It returns nil when no JSON object is found.
func extractJSON(text string) json.RawMessage {
	text = strings.TrimSpace(text)
	if start := strings.Index(text, "```"); start >= 0 {
		body := text[start+3:]
		if nl := strings.Index(body, "\n"); nl >= 0 {
			body = body[nl+1:]
		}
		if end := strings.Index(body, "```"); end >= 0 {
			body = body[:end]
		}
		text = strings.TrimSpace(body)
	}
	if text == "" || !json.Valid([]byte(text)) {
		return nil
	}
	return json.RawMessage(text)
}
