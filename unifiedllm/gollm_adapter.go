package unifiedllm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/teilomillet/gollm"
)

// toolCallMarker opens the JSON array gollm providers use to report tool
// calls inside plain text.
const toolCallMarker = `[{"name"`

// GollmAdapter serves providers without an OpenAI-compatible endpoint
// (anthropic, ollama, ...) through gollm. Tool calls are recovered from
// the generated text.
type GollmAdapter struct {
	provider string
	llm      gollm.LLM
	model    string
}

// GollmAdapterOption configures a GollmAdapter.
type GollmAdapterOption func(*gollmSettings)

type gollmSettings struct {
	model       string
	maxTokens   int
	temperature float64
}

// WithModel sets the model used when a request names none.
func WithModel(model string) GollmAdapterOption {
	return func(s *gollmSettings) { s.model = model }
}

// WithMaxTokens caps the length of each completion.
func WithMaxTokens(n int) GollmAdapterOption {
	return func(s *gollmSettings) { s.maxTokens = n }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) GollmAdapterOption {
	return func(s *gollmSettings) { s.temperature = t }
}

// NewGollmAdapter builds a gollm client for provider. An empty apiKey lets
// gollm read the provider's usual environment variable.
func NewGollmAdapter(provider, apiKey string, opts ...GollmAdapterOption) (*GollmAdapter, error) {
	s := resolveGollmSettings(provider, opts)
	config := []gollm.ConfigOption{
		gollm.SetProvider(provider),
		gollm.SetModel(s.model),
		gollm.SetMaxTokens(s.maxTokens),
		gollm.SetTemperature(s.temperature),
		gollm.SetMaxRetries(0),
		gollm.SetLogLevel(gollm.LogLevelWarn),
	}
	if apiKey != "" {
		config = append(config, gollm.SetAPIKey(apiKey))
	}

	llm, err := gollm.NewLLM(config...)
	if err != nil {
		return nil, fmt.Errorf("create %s client: %w", provider, err)
	}
	return &GollmAdapter{provider: provider, llm: llm, model: s.model}, nil
}

// resolveGollmSettings applies opts over the defaults. Without a model the
// provider's newest catalog entry is used.
func resolveGollmSettings(provider string, opts []GollmAdapterOption) gollmSettings {
	s := gollmSettings{maxTokens: 4096, temperature: 0.7}
	for _, opt := range opts {
		opt(&s)
	}
	if s.model == "" {
		s.model = "gpt-4o-mini"
		if info := GetLatestModel(provider); info != nil {
			s.model = info.ID
		}
	}
	return s
}

// Name returns the provider identifier.
func (a *GollmAdapter) Name() string {
	return a.provider
}

// Complete generates the whole reply in one call.
func (a *GollmAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	a.configure(req)
	text, err := a.llm.Generate(ctx, gollmPrompt(req))
	if err != nil {
		return nil, withStatus(err)
	}
	return a.buildResponse(req, text), nil
}

// Stream emits text deltas as gollm produces them. Tool calls can only be
// parsed once the text is complete, so they follow the last delta.
func (a *GollmAdapter) Stream(ctx context.Context, req Request) (<-chan StreamEvent, error) {
	a.configure(req)
	prompt := gollmPrompt(req)
	out := make(chan StreamEvent, 64)
	send := func(ev StreamEvent) bool {
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	if !a.llm.SupportsStreaming() {
		go func() {
			defer close(out)
			text, err := a.llm.Generate(ctx, prompt)
			if err != nil {
				send(StreamEvent{Type: StreamError, Err: withStatus(err)})
				return
			}
			resp := a.buildResponse(req, text)
			if body := resp.Text(); body != "" && !send(StreamEvent{Type: TextDelta, Delta: body}) {
				return
			}
			a.finish(send, resp)
		}()
		return out, nil
	}

	stream, err := a.llm.Stream(ctx, prompt)
	if err != nil {
		return nil, withStatus(err)
	}

	go func() {
		defer close(out)
		defer stream.Close()

		var text strings.Builder
		for {
			token, err := stream.Next(ctx)
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				send(StreamEvent{Type: StreamError, Err: withStatus(err)})
				return
			}
			if token == nil {
				continue
			}
			text.WriteString(token.Text)
			if !send(StreamEvent{Type: TextDelta, Delta: token.Text}) {
				return
			}
		}
		a.finish(send, a.buildResponse(req, text.String()))
	}()
	return out, nil
}

func (a *GollmAdapter) finish(send func(StreamEvent) bool, resp *Response) {
	for _, call := range resp.ToolCalls() {
		call := call
		if !send(StreamEvent{Type: ToolCallDelta, ToolCall: &call}) {
			return
		}
	}
	send(StreamEvent{Type: StreamFinish, FinishReason: &resp.FinishReason, Usage: &resp.Usage})
}

// configure pushes per-request settings into the shared gollm client.
func (a *GollmAdapter) configure(req Request) {
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

// gollmPrompt flattens the conversation into one prompt. gollm has no
// multi-turn message type, so assistant turns and tool traffic are
// rendered as tagged lines.
func gollmPrompt(req Request) *gollm.Prompt {
	var system []string
	var lines []string
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			system = append(system, msg.TextContent())
		case RoleUser:
			lines = append(lines, msg.TextContent())
		case RoleAssistant:
			if text := msg.TextContent(); text != "" {
				lines = append(lines, "[Assistant]: "+text)
			}
			for _, call := range msg.ToolCalls() {
				lines = append(lines, fmt.Sprintf("[Tool Call %s]: %s(%s)", call.ID, call.Name, call.Arguments))
			}
		case RoleTool:
			for _, r := range msg.ToolResults() {
				tag := "[Tool Result]: "
				if r.IsError() {
					tag = "[Tool Error]: "
				}
				lines = append(lines, tag+r.Output.Value)
			}
		}
	}

	input := strings.Join(lines, "\n")
	if input == "" {
		input = "Hello"
	}

	var opts []gollm.PromptOption
	if len(system) > 0 {
		opts = append(opts, gollm.WithSystemPrompt(strings.TrimSpace(strings.Join(system, "\n")), gollm.CacheTypeEphemeral))
	}
	if req.MaxTokens != nil {
		opts = append(opts, gollm.WithMaxLength(*req.MaxTokens))
	}
	if len(req.Tools) > 0 {
		declared := make([]gollm.Tool, len(req.Tools))
		for i, def := range req.Tools {
			declared[i] = gollm.Tool{
				Type:     "function",
				Function: gollm.Function{Name: def.Name, Description: def.Description, Parameters: def.Parameters},
			}
		}
		opts = append(opts, gollm.WithTools(declared))
	}
	if req.ToolChoice != "" {
		opts = append(opts, gollm.WithToolChoice(req.ToolChoice))
	}
	return gollm.NewPrompt(input, opts...)
}

func (a *GollmAdapter) buildResponse(req Request, text string) *Response {
	model := req.Model
	if model == "" {
		model = a.model
	}
	prose, calls := splitToolCalls(text)

	reason := "stop"
	if len(calls) > 0 {
		reason = "tool_calls"
	}
	in := estimateTokens(req)
	out := len(text) / 4

	return &Response{
		ID:           "resp_" + uuid.New().String()[:8],
		Model:        model,
		Provider:     a.provider,
		Message:      AssistantMessage(prose, calls...),
		FinishReason: FinishReason{Reason: reason, Raw: reason},
		Usage:        Usage{InputTokens: in, OutputTokens: out, TotalTokens: in + out},
	}
}

// splitToolCalls separates a trailing JSON array of tool calls from the
// prose before it. Text without a parsable array is returned unchanged.
func splitToolCalls(text string) (string, []ToolCall) {
	start := strings.Index(text, toolCallMarker)
	if start < 0 {
		return text, nil
	}
	var raw []struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal([]byte(text[start:]), &raw); err != nil || len(raw) == 0 {
		return text, nil
	}

	calls := make([]ToolCall, len(raw))
	for i, r := range raw {
		args := string(r.Arguments)
		if args == "" {
			args = "{}"
		}
		calls[i] = ToolCall{ID: "call_" + uuid.New().String()[:8], Name: r.Name, Arguments: args}
	}
	return strings.TrimSpace(text[:start]), calls
}

// statusHints maps phrases found in gollm error text to the HTTP status
// they imply. Order matters: the first match wins.
var statusHints = []struct {
	status  int
	phrases []string
}{
	{401, []string{"401", "unauthorized", "invalid api key"}},
	{403, []string{"403", "forbidden"}},
	{404, []string{"404", "model not found"}},
	{429, []string{"429", "rate limit"}},
	{400, []string{"400", "bad request"}},
	{500, []string{"500", "internal server"}},
	{502, []string{"502", "bad gateway"}},
	{503, []string{"503", "unavailable"}},
}

// withStatus recovers an HTTP status from a gollm error so Classify can
// read it. Errors without a recognizable status are returned as is.
func withStatus(err error) error {
	if err == nil {
		return nil
	}
	lower := strings.ToLower(err.Error())
	for _, hint := range statusHints {
		for _, phrase := range hint.phrases {
			if strings.Contains(lower, phrase) {
				return &HTTPStatusError{StatusCode: hint.status, Message: err.Error(), Cause: err}
			}
		}
	}
	return err
}

// estimateTokens approximates prompt size; gollm does not report usage.
func estimateTokens(req Request) int {
	n := 0
	for _, msg := range req.Messages {
		n += len(msg.TextContent()) / 4
	}
	if n == 0 {
		return 10
	}
	return n
}
