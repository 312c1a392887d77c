// Package unifiedllm is the model transport used by the agent. It sends
// chat requests to an OpenAI-compatible backend (xAI by default), retries
// failed attempts with exponential backoff, and reports every failure as a
// classified *APIError.
//
// # Architecture
//
// The package is layered:
//
//   - Provider adapters implement ProviderAdapter. OpenAIAdapter speaks the
//     chat completions wire format with native tool calling and the
//     search_parameters side channel. GollmAdapter wraps gollm for backends
//     without an OpenAI-compatible endpoint.
//   - Classify and RetryPolicy turn raw failures into APIErrorInfo and decide
//     whether to try again.
//   - Client routes requests to adapters, runs middleware, retries, and logs
//     each request and failure through log/slog.
//
// # Quick Start
//
//	adapter := unifiedllm.NewOpenAIAdapter("xai", os.Getenv("GROK_API_KEY"))
//	client := unifiedllm.NewClient(unifiedllm.WithProvider("xai", adapter))
//
//	resp, err := client.Complete(ctx, unifiedllm.Request{
//	    Model:    "grok-code-fast-1",
//	    Messages: []unifiedllm.Message{unifiedllm.UserMessage("Hello")},
//	})
//
// # Streaming
//
// CompleteStream returns a channel of StreamEvent values. When an attempt
// fails after some events were delivered, the client emits a StreamRestart
// event before replaying the request; consumers discard what they have
// accumulated. StreamAccumulator does this automatically:
//
//	acc := unifiedllm.NewStreamAccumulator()
//	for ev := range client.CompleteStream(ctx, req) {
//	    if ev.Type == unifiedllm.StreamError {
//	        return ev.Err
//	    }
//	    acc.Process(ev)
//	}
//	resp := acc.Response()
//
// # Search
//
// Models whose name starts with "grok" accept a real-time search directive.
// SearchDirectiveFor picks "auto" or "off" from the user's message, and
// Client.Search forces it on for a one-shot query.
package unifiedllm
