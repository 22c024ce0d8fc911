package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/teilomillet/gollm"
)

// GollmAdapter wraps a gollm.LLM instance and implements ProviderAdapter.
type GollmAdapter struct {
	provider string
	llm      gollm.LLM
	model    string
}

// GollmOption configures a GollmAdapter.
type GollmOption func(*gollmConfig)

type gollmConfig struct {
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	extra       []gollm.ConfigOption
}

// WithAPIKey sets the API key for the adapter.
func WithAPIKey(key string) GollmOption {
	return func(c *gollmConfig) { c.apiKey = key }
}

// WithModel sets the default model for the adapter.
func WithModel(model string) GollmOption {
	return func(c *gollmConfig) { c.model = model }
}

// WithMaxTokens sets the default max tokens.
func WithMaxTokens(n int) GollmOption {
	return func(c *gollmConfig) { c.maxTokens = n }
}

// WithTemperature sets the default temperature.
func WithTemperature(t float64) GollmOption {
	return func(c *gollmConfig) { c.temperature = t }
}

// WithGollmOptions appends raw gollm configuration options.
func WithGollmOptions(opts ...gollm.ConfigOption) GollmOption {
	return func(c *gollmConfig) { c.extra = append(c.extra, opts...) }
}

// NewGollmAdapter creates an adapter for the given provider. If apiKey is
// empty, gollm reads it from the provider's environment variable.
func NewGollmAdapter(provider, apiKey string, opts ...GollmOption) (*GollmAdapter, error) {
	cfg := &gollmConfig{
		apiKey:      apiKey,
		maxTokens:   4096,
		temperature: 0.2,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	model := cfg.model
	if model == "" {
		for _, m := range ListModels(provider) {
			if m.Tier == "frontier" {
				model = m.ID
				break
			}
		}
	}
	if model == "" {
		return nil, NewAPIError(ErrConfiguration, provider,
			fmt.Sprintf("no default model known for provider %q", provider), nil)
	}

	gollmOpts := []gollm.ConfigOption{
		gollm.SetProvider(provider),
		gollm.SetModel(model),
		gollm.SetMaxTokens(cfg.maxTokens),
		gollm.SetTemperature(cfg.temperature),
		gollm.SetMaxRetries(0), // retries are handled by llm.Retry
		gollm.SetLogLevel(gollm.LogLevelWarn),
	}
	if cfg.apiKey != "" {
		gollmOpts = append(gollmOpts, gollm.SetAPIKey(cfg.apiKey))
	}
	gollmOpts = append(gollmOpts, cfg.extra...)

	backend, err := gollm.NewLLM(gollmOpts...)
	if err != nil {
		return nil, fmt.Errorf("create gollm backend for %s: %w", provider, err)
	}

	return &GollmAdapter{provider: provider, llm: backend, model: model}, nil
}

// Name returns the provider identifier.
func (a *GollmAdapter) Name() string { return a.provider }

// Complete sends a blocking request and returns the full response.
func (a *GollmAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	prompt := a.buildPrompt(req)
	a.applyOverrides(req)

	text, err := a.llm.Generate(ctx, prompt)
	if err != nil {
		return nil, a.classifyError(err)
	}
	return a.buildResponse(req, text), nil
}

// Stream sends a streaming request and returns a channel of StreamEvents.
// Providers without native streaming get a single-delta fallback stream.
func (a *GollmAdapter) Stream(ctx context.Context, req Request) (<-chan StreamEvent, error) {
	prompt := a.buildPrompt(req)
	a.applyOverrides(req)

	ch := make(chan StreamEvent, 64)

	if !a.llm.SupportsStreaming() {
		go func() {
			defer close(ch)
			ch <- StreamEvent{Type: StreamStart}
			text, err := a.llm.Generate(ctx, prompt)
			if err != nil {
				ch <- StreamEvent{Type: StreamFailure, Err: a.classifyError(err)}
				return
			}
			a.finishStream(ch, req, text)
		}()
		return ch, nil
	}

	stream, err := a.llm.Stream(ctx, prompt)
	if err != nil {
		return nil, a.classifyError(err)
	}

	go func() {
		defer close(ch)
		defer stream.Close()

		ch <- StreamEvent{Type: StreamStart}

		var full strings.Builder
		for {
			token, err := stream.Next(ctx)
			if err == io.EOF {
				break
			}
			if err != nil {
				ch <- StreamEvent{Type: StreamFailure, Err: a.classifyError(err)}
				return
			}
			if token == nil {
				continue
			}
			ch <- StreamEvent{Type: TextDelta, Delta: token.Text}
			full.WriteString(token.Text)
		}

		a.finishStream(ch, req, full.String())
	}()

	return ch, nil
}

// finishStream emits tool call events and the terminal finish event for
// accumulated text.
func (a *GollmAdapter) finishStream(ch chan<- StreamEvent, req Request, text string) {
	resp := a.buildResponse(req, text)
	for i := range resp.Message.Content {
		part := resp.Message.Content[i]
		if part.Kind == ContentToolCall && part.ToolCall != nil {
			ch <- StreamEvent{Type: ToolCallEnd, ToolCall: &ToolCall{
				ID:        part.ToolCall.ID,
				Name:      part.ToolCall.Name,
				Arguments: part.ToolCall.Arguments,
			}}
		}
	}
	ch <- StreamEvent{
		Type:         StreamFinish,
		FinishReason: &resp.FinishReason,
		Usage:        &resp.Usage,
		Response:     resp,
	}
}

// buildPrompt flattens the message history into a gollm prompt. gollm
// takes a single prompt string plus a system prompt, so non-user turns
// are rendered with role prefixes.
func (a *GollmAdapter) buildPrompt(req Request) *gollm.Prompt {
	var system strings.Builder
	var parts []string

	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			system.WriteString(msg.TextContent())
			system.WriteString("\n")
		case RoleUser:
			parts = append(parts, msg.TextContent())
		case RoleAssistant:
			if text := msg.TextContent(); text != "" {
				parts = append(parts, "[Assistant]: "+text)
			}
			for _, part := range msg.Content {
				if part.Kind == ContentToolCall && part.ToolCall != nil {
					parts = append(parts, fmt.Sprintf("[Assistant tool call] %s(%s)",
						part.ToolCall.Name, string(part.ToolCall.Arguments)))
				}
			}
		case RoleTool:
			for _, part := range msg.Content {
				if part.Kind != ContentToolResult || part.ToolResult == nil {
					continue
				}
				prefix := "[Tool result]"
				if part.ToolResult.IsError {
					prefix = "[Tool error]"
				}
				parts = append(parts, prefix+": "+part.ToolResult.Content)
			}
		}
	}

	promptText := strings.Join(parts, "\n")
	if promptText == "" {
		promptText = "Proceed."
	}

	var opts []gollm.PromptOption
	if system.Len() > 0 {
		opts = append(opts, gollm.WithSystemPrompt(strings.TrimSpace(system.String()), gollm.CacheTypeEphemeral))
	}
	if req.MaxTokens != nil {
		opts = append(opts, gollm.WithMaxLength(*req.MaxTokens))
	}
	if len(req.Tools) > 0 {
		tools := make([]gollm.Tool, 0, len(req.Tools))
		for _, t := range req.Tools {
			tools = append(tools, gollm.Tool{
				Type: "function",
				Function: gollm.Function{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  t.Parameters,
				},
			})
		}
		opts = append(opts, gollm.WithTools(tools))
	}
	if req.ToolChoice != nil {
		opts = append(opts, gollm.WithToolChoice(req.ToolChoice.Mode))
	}

	return gollm.NewPrompt(promptText, opts...)
}

// applyOverrides pushes request-level parameters into the gollm backend.
func (a *GollmAdapter) applyOverrides(req Request) {
	if req.Model != "" {
		a.llm.SetOption("model", req.Model)
	}
	if req.Temperature != nil {
		a.llm.SetOption("temperature", *req.Temperature)
	}
	if req.MaxTokens != nil {
		a.llm.SetOption("max_tokens", *req.MaxTokens)
	}
}

// buildResponse constructs a Response from generated text, extracting any
// embedded tool call JSON.
func (a *GollmAdapter) buildResponse(req Request, text string) *Response {
	model := req.Model
	if model == "" {
		model = a.model
	}

	calls, remainder := extractToolCalls(text)

	var content []ContentPart
	if remainder != "" {
		content = append(content, TextPart(remainder))
	}
	for _, call := range calls {
		content = append(content, ToolCallPart(call.ID, call.Name, call.Arguments))
	}
	if len(content) == 0 {
		content = []ContentPart{TextPart(text)}
	}

	finish := FinishReason{Reason: "stop", Raw: "stop"}
	if len(calls) > 0 {
		finish = FinishReason{Reason: "tool_calls", Raw: "tool_calls"}
	}

	inTokens := estimateRequestTokens(req)
	outTokens := len(text) / 4

	return &Response{
		ID:       "resp_" + uuid.New().String()[:8],
		Model:    model,
		Provider: a.provider,
		Message: Message{
			Role:    RoleAssistant,
			Content: content,
		},
		FinishReason: finish,
		// gollm does not surface provider usage; estimate from lengths.
		Usage: Usage{
			InputTokens:  inTokens,
			OutputTokens: outTokens,
			TotalTokens:  inTokens + outTokens,
		},
		CreatedAt: time.Now(),
	}
}

// extractToolCalls finds an embedded tool-call JSON block in response text
// and returns the parsed calls plus the remaining visible text. gollm
// providers that lack native tool calling return the block inline.
func extractToolCalls(text string) ([]ToolCall, string) {
	start := strings.Index(text, `{"tool_calls"`)
	if start == -1 {
		start = strings.Index(text, `[{"name"`)
	}
	if start == -1 {
		return nil, text
	}

	var rawCalls []struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}

	blob := text[start:]
	if strings.HasPrefix(blob, `{"tool_calls"`) {
		var wrapper struct {
			ToolCalls []struct {
				Name      string          `json:"name"`
				Arguments json.RawMessage `json:"arguments"`
			} `json:"tool_calls"`
		}
		if err := json.Unmarshal([]byte(blob), &wrapper); err != nil {
			return nil, text
		}
		rawCalls = wrapper.ToolCalls
	} else if err := json.Unmarshal([]byte(blob), &rawCalls); err != nil {
		return nil, text
	}

	var calls []ToolCall
	for _, rc := range rawCalls {
		calls = append(calls, ToolCall{
			ID:        "call_" + uuid.New().String()[:8],
			Name:      rc.Name,
			Arguments: rc.Arguments,
		})
	}
	if len(calls) == 0 {
		return nil, text
	}
	return calls, strings.TrimSpace(text[:start])
}

// classifyError converts a gollm error into a classified APIError, based
// on the message since gollm does not expose structured errors.
func (a *GollmAdapter) classifyError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	lower := strings.ToLower(msg)

	kind := ErrUnknown
	status := 0
	switch {
	case strings.Contains(lower, "401") || strings.Contains(lower, "unauthorized") || strings.Contains(lower, "invalid api key"):
		kind, status = ErrAuthentication, 401
	case strings.Contains(lower, "403") || strings.Contains(lower, "forbidden"):
		kind, status = ErrAccessDenied, 403
	case strings.Contains(lower, "404") || strings.Contains(lower, "not found"):
		kind, status = ErrNotFound, 404
	case strings.Contains(lower, "429") || strings.Contains(lower, "rate limit"):
		kind, status = ErrRateLimit, 429
	case strings.Contains(lower, "context length") || strings.Contains(lower, "too many tokens"):
		kind, status = ErrContextLength, 413
	case strings.Contains(lower, "500") || strings.Contains(lower, "internal server"):
		kind, status = ErrServer, 500
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline"):
		kind = ErrTimeout
	case strings.Contains(lower, "content filter") || strings.Contains(lower, "safety"):
		kind = ErrContentFilter
	}

	e := NewAPIError(kind, a.provider, msg, err)
	e.StatusCode = status
	return e
}

// estimateRequestTokens gives a rough token count for request messages.
func estimateRequestTokens(req Request) int {
	total := 0
	for _, msg := range req.Messages {
		for _, part := range msg.Content {
			if part.Kind == ContentText {
				total += len(part.Text) / 4
			}
		}
	}
	if total == 0 {
		total = 10
	}
	return total
}
