package unifiedllm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// DefaultBaseURL is the xAI endpoint used when no base URL override is set.
const DefaultBaseURL = "https://api.x.ai/v1"

// defaultRequestTimeout bounds a single attempt.
const defaultRequestTimeout = 360 * time.Second

// OpenAIAdapter talks to any OpenAI-compatible chat completions endpoint,
// xAI by default. Tool declarations become native function tools and the
// search directive travels as the "search_parameters" body field.
type OpenAIAdapter struct {
	name        string
	client      openai.Client
	baseURL     string
	temperature *float64
	maxTokens   int
}

// OpenAIAdapterOption configures an OpenAIAdapter.
type OpenAIAdapterOption func(*openAIAdapterConfig)

type openAIAdapterConfig struct {
	baseURL     string
	timeout     time.Duration
	temperature *float64
	maxTokens   int
}

// WithBaseURL overrides the endpoint base URL.
func WithBaseURL(url string) OpenAIAdapterOption {
	return func(c *openAIAdapterConfig) {
		if url != "" {
			c.baseURL = url
		}
	}
}

// WithRequestTimeout bounds each request attempt.
func WithRequestTimeout(d time.Duration) OpenAIAdapterOption {
	return func(c *openAIAdapterConfig) {
		c.timeout = d
	}
}

// WithDefaultTemperature sets the temperature sent when a request does not
// carry its own.
func WithDefaultTemperature(t float64) OpenAIAdapterOption {
	return func(c *openAIAdapterConfig) {
		c.temperature = &t
	}
}

// WithDefaultMaxTokens caps completions for requests that set no limit.
// Zero leaves the cap to the provider.
func WithDefaultMaxTokens(n int) OpenAIAdapterOption {
	return func(c *openAIAdapterConfig) {
		c.maxTokens = n
	}
}

// NewOpenAIAdapter creates an adapter registered under name.
func NewOpenAIAdapter(name, apiKey string, opts ...OpenAIAdapterOption) *OpenAIAdapter {
	cfg := &openAIAdapterConfig{
		baseURL: DefaultBaseURL,
		timeout: defaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(cfg.baseURL),
		option.WithMaxRetries(0), // retries happen in Client
		option.WithRequestTimeout(cfg.timeout),
	)

	return &OpenAIAdapter{
		name:        name,
		client:      client,
		baseURL:     strings.TrimRight(cfg.baseURL, "/"),
		temperature: cfg.temperature,
		maxTokens:   cfg.maxTokens,
	}
}

// Name returns the provider identifier.
func (a *OpenAIAdapter) Name() string {
	return a.name
}

// Endpoint returns the chat completions URL.
func (a *OpenAIAdapter) Endpoint() string {
	return a.baseURL + "/chat/completions"
}

// Complete sends a blocking request and returns the full response.
func (a *OpenAIAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	resp, err := a.client.Chat.Completions.New(ctx, a.buildParams(req))
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("malformed response: no choices returned")
	}

	choice := resp.Choices[0]
	calls := make([]ToolCall, 0, len(choice.Message.ToolCalls))
	for _, tc := range choice.Message.ToolCalls {
		id := tc.ID
		if id == "" {
			id = "call_" + uuid.New().String()[:8]
		}
		calls = append(calls, ToolCall{ID: id, Name: tc.Function.Name, Arguments: tc.Function.Arguments})
	}

	return &Response{
		ID:           resp.ID,
		Model:        resp.Model,
		Provider:     a.name,
		Message:      AssistantMessage(choice.Message.Content, calls...),
		FinishReason: mapFinishReason(string(choice.FinishReason)),
		Usage: Usage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:  int(resp.Usage.TotalTokens),
		},
	}, nil
}

// Stream sends a streaming request and returns a channel of StreamEvent objects.
func (a *OpenAIAdapter) Stream(ctx context.Context, req Request) (<-chan StreamEvent, error) {
	stream := a.client.Chat.Completions.NewStreaming(ctx, a.buildParams(req))
	ch := make(chan StreamEvent, 64)

	go func() {
		defer close(ch)
		defer stream.Close()

		send := func(ev StreamEvent) bool {
			select {
			case ch <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		// Backends stream tool calls by index; only the first fragment of a
		// call carries its ID.
		idsByIndex := make(map[int64]string)
		var finish *FinishReason
		var usage *Usage

		for stream.Next() {
			chunk := stream.Current()
			if chunk.Usage.TotalTokens > 0 {
				usage = &Usage{
					InputTokens:  int(chunk.Usage.PromptTokens),
					OutputTokens: int(chunk.Usage.CompletionTokens),
					TotalTokens:  int(chunk.Usage.TotalTokens),
				}
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			choice := chunk.Choices[0]

			if choice.Delta.Content != "" {
				if !send(StreamEvent{Type: TextDelta, Delta: choice.Delta.Content}) {
					return
				}
			}

			for _, tc := range choice.Delta.ToolCalls {
				id := tc.ID
				if id == "" {
					id = idsByIndex[tc.Index]
				}
				if id == "" {
					id = "call_" + uuid.New().String()[:8]
				}
				idsByIndex[tc.Index] = id
				call := &ToolCall{ID: id, Name: tc.Function.Name, Arguments: tc.Function.Arguments}
				if !send(StreamEvent{Type: ToolCallDelta, ToolCall: call}) {
					return
				}
			}

			if choice.FinishReason != "" {
				fr := mapFinishReason(string(choice.FinishReason))
				finish = &fr
			}
		}

		if err := stream.Err(); err != nil {
			send(StreamEvent{Type: StreamError, Err: err})
			return
		}

		if finish == nil {
			fr := FinishReason{Reason: "stop"}
			if len(idsByIndex) > 0 {
				fr = FinishReason{Reason: "tool_calls"}
			}
			finish = &fr
		}
		send(StreamEvent{Type: StreamFinish, FinishReason: finish, Usage: usage})
	}()

	return ch, nil
}

func (a *OpenAIAdapter) buildParams(req Request) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(req.Model),
		Messages: buildOpenAIMessages(req.Messages),
	}
	if len(req.Tools) > 0 {
		params.Tools = buildOpenAITools(req.Tools)
		if req.ToolChoice != "" {
			params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{
				OfAuto: openai.String(req.ToolChoice),
			}
		}
	}
	switch {
	case req.Temperature != nil:
		params.Temperature = openai.Float(*req.Temperature)
	case a.temperature != nil:
		params.Temperature = openai.Float(*a.temperature)
	}
	switch {
	case req.MaxTokens != nil:
		params.MaxTokens = openai.Int(int64(*req.MaxTokens))
	case a.maxTokens > 0:
		params.MaxTokens = openai.Int(int64(a.maxTokens))
	}
	if req.Search != nil {
		params.SetExtraFields(map[string]any{"search_parameters": req.Search})
	}
	return params
}

func buildOpenAITools(defs []ToolDefinition) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, 0, len(defs))
	for _, def := range defs {
		fn := shared.FunctionDefinitionParam{
			Name:        def.Name,
			Description: openai.String(def.Description),
		}
		if def.Parameters != nil {
			fn.Parameters = shared.FunctionParameters(def.Parameters)
		}
		out = append(out, openai.ChatCompletionToolParam{Function: fn})
	}
	return out
}

func buildOpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(msg.TextContent()))
		case RoleUser:
			out = append(out, openai.UserMessage(msg.TextContent()))
		case RoleAssistant:
			calls := msg.ToolCalls()
			if len(calls) == 0 {
				out = append(out, openai.AssistantMessage(msg.TextContent()))
				continue
			}
			toolCalls := make([]openai.ChatCompletionMessageToolCallParam, 0, len(calls))
			for _, call := range calls {
				toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallParam{
					ID: call.ID,
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      call.Name,
						Arguments: call.Arguments,
					},
				})
			}
			assistant := openai.ChatCompletionAssistantMessageParam{ToolCalls: toolCalls}
			if text := msg.TextContent(); text != "" {
				assistant.Content = openai.ChatCompletionAssistantMessageParamContentUnion{OfString: openai.String(text)}
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
		case RoleTool:
			for _, result := range msg.ToolResults() {
				out = append(out, openai.ToolMessage(result.Output.Value, result.ToolCallID))
			}
		}
	}
	return out
}

func mapFinishReason(raw string) FinishReason {
	switch raw {
	case "stop", "length", "tool_calls", "content_filter":
		return FinishReason{Reason: raw, Raw: raw}
	case "function_call":
		return FinishReason{Reason: "tool_calls", Raw: raw}
	case "":
		return FinishReason{Reason: "stop"}
	default:
		return FinishReason{Reason: "other", Raw: raw}
	}
}
