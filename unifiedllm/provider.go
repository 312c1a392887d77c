package unifiedllm

import "context"

// ProviderAdapter is the interface every model backend implements.
//
// Adapters return raw backend errors; the Client classifies them. A stream
// reports a mid-flight failure as a single StreamError event and then
// closes the channel.
type ProviderAdapter interface {
	// Name returns the provider identifier (e.g. "xai", "anthropic").
	Name() string

	// Complete sends a blocking request and returns the full response.
	Complete(ctx context.Context, req Request) (*Response, error)

	// Stream sends a request and returns a channel of stream events.
	Stream(ctx context.Context, req Request) (<-chan StreamEvent, error)
}

// Closer is implemented by adapters that hold resources.
type Closer interface {
	Close() error
}

// Endpointer is implemented by adapters that can report the endpoint they
// call, for request logging.
type Endpointer interface {
	Endpoint() string
}
