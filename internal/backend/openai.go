package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
)

const (
	defaultOpenAIURL      = "https://api.openai.com/v1"
	defaultRetryBaseDelay = 500 * time.Millisecond
	defaultRetryMaxDelay  = 8 * time.Second
)

// OpenAIConfig captures the settings needed to talk to an OpenAI-compatible
// chat completions endpoint.
type OpenAIConfig struct {
	APIKey          string
	BaseURL         string
	Model           string
	MaxOutputTokens int
	RetryAttempts   int
	// WebSearch asks a search-capable model to consult the web before
	// answering.
	WebSearch bool
}

// OpenAI implements Backend against the Chat Completions API.
type OpenAI struct {
	cfg        OpenAIConfig
	httpClient *http.Client
	executor   failsafe.Executor[*http.Response]
}

// Option customizes the OpenAI adapter.
type Option func(*openAIOptions)

type openAIOptions struct {
	httpClient *http.Client
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(o *openAIOptions) {
		if client != nil {
			o.httpClient = client
		}
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(o *openAIOptions) {
		o.baseDelay = baseDelay
		o.maxDelay = maxDelay
	}
}

// NewOpenAI constructs the adapter. Timeouts are taken from the caller's
// context; the HTTP client carries no timeout of its own.
func NewOpenAI(cfg OpenAIConfig, opts ...Option) *OpenAI {
	o := openAIOptions{
		httpClient: &http.Client{},
		baseDelay:  defaultRetryBaseDelay,
		maxDelay:   defaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxDelay < o.baseDelay {
		o.maxDelay = o.baseDelay
	}

	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOpenAIURL
	}
	if cfg.RetryAttempts < 0 {
		cfg.RetryAttempts = 0
	}

	//nolint:bodyclose // false positive: [*http.Response] is a generic type parameter
	retry := retrypolicy.NewBuilder[*http.Response]().
		WithBackoff(o.baseDelay, o.maxDelay).
		WithMaxRetries(cfg.RetryAttempts).
		WithJitterFactor(0.1).
		HandleIf(func(_ *http.Response, err error) bool {
			if err == nil {
				return false
			}
			return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		}).
		Build()

	return &OpenAI{
		cfg:        cfg,
		httpClient: o.httpClient,
		executor:   failsafe.With(retry),
	}
}

// statusError reports a retryable HTTP status. The body is drained before
// the error is returned so no response leaks between attempts.
type statusError struct {
	status string
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %s: %s", e.status, e.body)
}

var _ Backend = (*OpenAI)(nil)

// Complete sends one chat completion request and maps the reply onto a
// FinalAnswer or ToolRequest.
func (p *OpenAI) Complete(ctx context.Context, req Request) (Response, error) {
	if p.cfg.Model == "" {
		return nil, errors.New("openai: model is required")
	}
	payload, err := json.Marshal(p.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("openai: marshal request: %w", err)
	}

	resp, err := p.executor.WithContext(ctx).Get(func() (*http.Response, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if p.cfg.APIKey != "" {
			httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
		}
		resp, err := p.httpClient.Do(httpReq)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			_ = resp.Body.Close()
			return nil, &statusError{status: resp.Status, body: strings.TrimSpace(string(body))}
		}
		return resp, nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: openai: %w", ErrUnavailable, ctxErr)
		}
		return nil, fmt.Errorf("%w: openai: request failed: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: openai: read response: %w", ErrUnavailable, err)
	}
	if resp.StatusCode >= http.StatusBadRequest && resp.StatusCode < http.StatusInternalServerError {
		return nil, fmt.Errorf("%w: openai: status %s: %s", ErrRejected, resp.Status, strings.TrimSpace(string(body)))
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: openai: unexpected status %s: %s", ErrUnavailable, resp.Status, strings.TrimSpace(string(body)))
	}

	var decoded openAIResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("%w: openai: decode response: %w", ErrUnavailable, err)
	}
	if len(decoded.Choices) == 0 {
		return nil, fmt.Errorf("%w: openai: response has no choices", ErrUnavailable)
	}
	return toResponse(decoded.Choices[0].Message, req.Output != nil), nil
}

func (p *OpenAI) buildRequest(req Request) openAIRequest {
	out := openAIRequest{
		Model:    p.cfg.Model,
		Messages: make([]openAIMessage, 0, len(req.Messages)+1),
	}
	if p.cfg.MaxOutputTokens > 0 {
		out.MaxCompletionTokens = p.cfg.MaxOutputTokens
	}
	if p.cfg.WebSearch {
		out.WebSearchOptions = &openAIWebSearchOptions{}
	}
	if req.Instructions != "" {
		out.Messages = append(out.Messages, openAIMessage{Role: "system", Content: req.Instructions})
	}
	for _, m := range req.Messages {
		msg := openAIMessage{
			Role:       string(m.Role),
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
			Name:       m.Name,
		}
		for _, c := range m.ToolCalls {
			args := string(c.Arguments)
			if args == "" {
				args = "{}"
			}
			msg.ToolCalls = append(msg.ToolCalls, openAIToolCall{
				ID:       c.ID,
				Type:     "function",
				Function: openAIFunctionCall{Name: c.Name, Arguments: args},
			})
		}
		out.Messages = append(out.Messages, msg)
	}
	for _, t := range req.Tools {
		var params any = map[string]any{"type": "object", "properties": map[string]any{}}
		if t.InputSchema != nil {
			params = t.InputSchema
		}
		out.Tools = append(out.Tools, openAITool{
			Type: "function",
			Function: openAIFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}
	if req.Output != nil && req.Output.Schema != nil {
		name := req.Output.Name
		if name == "" {
			name = "output"
		}
		out.ResponseFormat = &openAIResponseFormat{
			Type: "json_schema",
			JSONSchema: &openAIJSONSchema{
				Name:   name,
				Schema: req.Output.Schema,
			},
		}
	}
	return out
}

func toResponse(msg openAIMessage, structured bool) Response {
	if len(msg.ToolCalls) > 0 {
		calls := make([]ToolCall, 0, len(msg.ToolCalls))
		for _, c := range msg.ToolCalls {
			calls = append(calls, ToolCall{
				ID:        c.ID,
				Name:      c.Function.Name,
				Arguments: json.RawMessage(c.Function.Arguments),
			})
		}
		return ToolRequest{Text: msg.Content, Calls: calls}
	}
	content := strings.TrimSpace(msg.Content)
	if structured && json.Valid([]byte(content)) {
		return FinalAnswer{Structured: json.RawMessage(content)}
	}
	return FinalAnswer{Text: content}
}

type openAIRequest struct {
	Model               string                  `json:"model"`
	Messages            []openAIMessage         `json:"messages"`
	Tools               []openAITool            `json:"tools,omitempty"`
	ResponseFormat      *openAIResponseFormat   `json:"response_format,omitempty"`
	MaxCompletionTokens int                     `json:"max_completion_tokens,omitempty"`
	WebSearchOptions    *openAIWebSearchOptions `json:"web_search_options,omitempty"`
}

type openAIWebSearchOptions struct {
	SearchContextSize string `json:"search_context_size,omitempty"`
}

type openAIMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	Name       string           `json:"name,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
	ToolCalls  []openAIToolCall `json:"tool_calls,omitempty"`
}

type openAITool struct {
	Type     string         `json:"type"`
	Function openAIFunction `json:"function"`
}

type openAIFunction struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parameters  any    `json:"parameters"`
}

type openAIToolCall struct {
	ID       string             `json:"id"`
	Type     string             `json:"type"`
	Function openAIFunctionCall `json:"function"`
}

type openAIFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type openAIResponseFormat struct {
	Type       string            `json:"type"`
	JSONSchema *openAIJSONSchema `json:"json_schema,omitempty"`
}

type openAIJSONSchema struct {
	Name   string `json:"name"`
	Schema any    `json:"schema"`
}

type openAIResponse struct {
	Choices []struct {
		Message      openAIMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
}
