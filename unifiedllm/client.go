package unifiedllm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Middleware wraps a provider call. It receives the request and a next function
// that calls the downstream handler, and returns the response.
type Middleware func(ctx context.Context, req Request, next func(context.Context, Request) (*Response, error)) (*Response, error)

// StreamMiddleware wraps a streaming provider call.
type StreamMiddleware func(ctx context.Context, req Request, next func(context.Context, Request) (<-chan StreamEvent, error)) (<-chan StreamEvent, error)

// Client is the model transport. It routes requests to registered provider
// adapters, applies middleware, retries failed attempts, and converts every
// failure into an *APIError.
type Client struct {
	providers       map[string]ProviderAdapter
	defaultProvider string
	defaultModel    string
	middleware      []Middleware
	streamMW        []StreamMiddleware
	retry           RetryPolicy
	logger          *slog.Logger
	verbose         bool
	mu              sync.RWMutex
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithProvider registers a provider adapter.
func WithProvider(name string, adapter ProviderAdapter) ClientOption {
	return func(c *Client) {
		c.providers[name] = adapter
	}
}

// WithDefaultProvider sets the default provider name.
func WithDefaultProvider(name string) ClientOption {
	return func(c *Client) {
		c.defaultProvider = name
	}
}

// WithDefaultModel sets the model used when a request names none.
func WithDefaultModel(model string) ClientOption {
	return func(c *Client) {
		c.defaultModel = model
	}
}

// WithMiddleware adds middleware to the client.
func WithMiddleware(mw ...Middleware) ClientOption {
	return func(c *Client) {
		c.middleware = append(c.middleware, mw...)
	}
}

// WithStreamMiddleware adds stream middleware to the client.
func WithStreamMiddleware(mw ...StreamMiddleware) ClientOption {
	return func(c *Client) {
		c.streamMW = append(c.streamMW, mw...)
	}
}

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(policy RetryPolicy) ClientOption {
	return func(c *Client) {
		c.retry = policy
	}
}

// WithLogger sets the logger used for request and failure logging.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithVerbose enables logging of successful response bodies.
func WithVerbose(verbose bool) ClientOption {
	return func(c *Client) {
		c.verbose = verbose
	}
}

// NewClient creates a new Client with the given options.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		providers:    make(map[string]ProviderAdapter),
		defaultModel: DefaultModel,
		retry:        DefaultRetryPolicy(),
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.middleware = append([]Middleware{c.logAttempt}, c.middleware...)
	c.streamMW = append([]StreamMiddleware{c.logStreamAttempt}, c.streamMW...)
	// If no default and exactly one provider, use it.
	if c.defaultProvider == "" && len(c.providers) == 1 {
		for name := range c.providers {
			c.defaultProvider = name
		}
	}
	return c
}

// RegisterProvider adds a provider adapter to the client.
func (c *Client) RegisterProvider(name string, adapter ProviderAdapter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.providers[name] = adapter
	if c.defaultProvider == "" {
		c.defaultProvider = name
	}
}

// DefaultModel returns the model used when a request names none.
func (c *Client) DefaultModel() string {
	return c.defaultModel
}

// resolveProvider determines which provider adapter to use for a request.
func (c *Client) resolveProvider(req Request) (ProviderAdapter, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	name := req.Provider
	if name == "" {
		name = c.defaultProvider
	}
	if name == "" {
		if info := GetModelInfo(req.Model); info != nil {
			name = info.Provider
		}
	}
	if name == "" {
		return nil, errors.New("no provider specified and no default provider configured")
	}

	adapter, ok := c.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %q is not registered", name)
	}
	return adapter, nil
}

func (c *Client) prepare(req Request) (ProviderAdapter, Request, error) {
	if req.Model == "" {
		req.Model = c.defaultModel
	}
	adapter, err := c.resolveProvider(req)
	if err != nil {
		return nil, req, err
	}
	if req.Provider == "" {
		req.Provider = adapter.Name()
	}
	return adapter, req, nil
}

// Complete sends a blocking request through middleware to the resolved
// provider, retrying retryable failures. Errors are always *APIError.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	adapter, req, err := c.prepare(req)
	if err != nil {
		apiErr := AsAPIError(err)
		c.logFailure(apiErr.Info, 0)
		return nil, apiErr
	}

	handler := adapter.Complete

	// Apply middleware in reverse order so first registered runs first.
	for i := len(c.middleware) - 1; i >= 0; i-- {
		mw := c.middleware[i]
		next := handler
		handler = func(ctx context.Context, r Request) (*Response, error) {
			return mw(ctx, r, next)
		}
	}

	endpoint := endpointOf(adapter)
	var resp *Response
	apiErr := runWithRetry(ctx, c.retry, func(ctx context.Context, attempt int) error {
		r, err := handler(withAttempt(ctx, attempt, endpoint), req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if apiErr != nil {
		return nil, apiErr
	}
	return resp, nil
}

// CompleteStream sends a streaming request and returns the events as they
// arrive. A failed attempt is retried by re-issuing the whole request; when
// events were already delivered, a StreamRestart event precedes the fresh
// attempt. A terminal failure arrives as one StreamError event carrying an
// *APIError, after which the channel is closed.
func (c *Client) CompleteStream(ctx context.Context, req Request) <-chan StreamEvent {
	out := make(chan StreamEvent)

	go func() {
		defer close(out)

		send := func(ev StreamEvent) bool {
			select {
			case out <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		adapter, req, err := c.prepare(req)
		if err != nil {
			apiErr := AsAPIError(err)
			c.logFailure(apiErr.Info, 0)
			send(StreamEvent{Type: StreamError, Err: apiErr})
			return
		}

		handler := func(ctx context.Context, r Request) (<-chan StreamEvent, error) {
			return adapter.Stream(ctx, r)
		}
		for i := len(c.streamMW) - 1; i >= 0; i-- {
			mw := c.streamMW[i]
			next := handler
			handler = func(ctx context.Context, r Request) (<-chan StreamEvent, error) {
				return mw(ctx, r, next)
			}
		}

		endpoint := endpointOf(adapter)
		delivered := false
		apiErr := runWithRetry(ctx, c.retry, func(ctx context.Context, attempt int) error {
			if delivered {
				if !send(StreamEvent{Type: StreamRestart, Attempt: attempt}) {
					return ctx.Err()
				}
				delivered = false
			}

			events, err := handler(withAttempt(ctx, attempt, endpoint), req)
			if err != nil {
				return err
			}
			for ev := range events {
				if ev.Type == StreamError {
					drain(events)
					return streamErr(ev)
				}
				if !send(ev) {
					drain(events)
					return ctx.Err()
				}
				delivered = true
			}
			return nil
		})
		if apiErr != nil {
			send(StreamEvent{Type: StreamError, Err: apiErr})
		}
	}()

	return out
}

// Search issues one buffered request for query with the search directive
// forced on. Optional params refine the directive.
func (c *Client) Search(ctx context.Context, query string, params *SearchParameters) (*Response, error) {
	directive := SearchParameters{}
	if params != nil {
		directive = *params
	}
	directive.Mode = SearchOn

	return c.Complete(ctx, Request{
		Messages: []Message{UserMessage(query)},
		Search:   &directive,
	})
}

// Close releases resources held by all registered providers.
func (c *Client) Close() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var firstErr error
	for _, adapter := range c.providers {
		if closer, ok := adapter.(Closer); ok {
			if err := closer.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// drain discards the remainder of an abandoned stream so its producer can
// finish.
func drain(events <-chan StreamEvent) {
	go func() {
		for range events {
		}
	}()
}
