package unifiedllm

import (
	"context"
	"errors"
	"time"
)

type attemptKey struct{}

type attemptInfo struct {
	n        int
	endpoint string
}

func withAttempt(ctx context.Context, n int, endpoint string) context.Context {
	return context.WithValue(ctx, attemptKey{}, attemptInfo{n: n, endpoint: endpoint})
}

// attemptFrom returns the attempt number and endpoint the client stored in
// ctx, or zero values outside a client call.
func attemptFrom(ctx context.Context) attemptInfo {
	info, _ := ctx.Value(attemptKey{}).(attemptInfo)
	return info
}

func endpointOf(adapter ProviderAdapter) string {
	if e, ok := adapter.(Endpointer); ok {
		return e.Endpoint()
	}
	return adapter.Name()
}

// streamErr is the error a StreamError event carries, never nil.
func streamErr(ev StreamEvent) error {
	if ev.Err != nil {
		return ev.Err
	}
	return errors.New("stream failed")
}

// logAttempt is the outermost middleware of every client. It logs each
// attempt, its failure, and the response that ended it.
func (c *Client) logAttempt(ctx context.Context, req Request, next func(context.Context, Request) (*Response, error)) (*Response, error) {
	attempt := attemptFrom(ctx)
	c.logRequest(attempt, req, false)
	resp, err := next(ctx, req)
	if err == nil && resp == nil {
		err = errors.New("malformed response: provider returned no response")
	}
	if err != nil {
		c.logFailure(Classify(err), attempt.n)
		return nil, err
	}
	c.logResponse(resp)
	return resp, nil
}

// logStreamAttempt does for streams what logAttempt does for blocking
// calls. The response is assembled from the events it forwards.
func (c *Client) logStreamAttempt(ctx context.Context, req Request, next func(context.Context, Request) (<-chan StreamEvent, error)) (<-chan StreamEvent, error) {
	attempt := attemptFrom(ctx)
	c.logRequest(attempt, req, true)
	events, err := next(ctx, req)
	if err != nil {
		c.logFailure(Classify(err), attempt.n)
		return nil, err
	}

	out := make(chan StreamEvent)
	go func() {
		defer close(out)
		acc := NewStreamAccumulator()
		for ev := range events {
			if ev.Type == StreamError {
				c.logFailure(Classify(streamErr(ev)), attempt.n)
			} else {
				acc.Process(ev)
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				drain(events)
				return
			}
			if ev.Type == StreamError {
				drain(events)
				return
			}
		}
		c.logResponse(acc.Response())
	}()
	return out, nil
}

func (c *Client) logRequest(attempt attemptInfo, req Request, stream bool) {
	c.logger.Info("model request",
		"method", "POST",
		"endpoint", attempt.endpoint,
		"model", req.Model,
		"messages", len(req.Messages),
		"tools", len(req.Tools),
		"attempt", attempt.n,
		"stream", stream,
	)
}

func (c *Client) logFailure(info APIErrorInfo, attempt int) {
	c.logger.Warn("model request failed",
		"status", info.Status,
		"code", info.Code,
		"message", info.Message,
		"retryable", info.Retryable,
		"attempt", attempt,
	)
}

func (c *Client) logResponse(resp *Response) {
	c.logger.Info("model response",
		"finish_reason", resp.FinishReason.Reason,
		"tool_calls", len(resp.ToolCalls()) > 0,
	)
	if body := resp.Text(); c.verbose && body != "" {
		c.logger.Debug("model response body", "body", body)
	}
}

// AttemptTimeout returns middleware that bounds each attempt to d, for
// adapters whose backend library has no request timeout of its own. The
// stream half keeps the deadline until the stream ends.
func AttemptTimeout(d time.Duration) (Middleware, StreamMiddleware) {
	complete := func(ctx context.Context, req Request, next func(context.Context, Request) (*Response, error)) (*Response, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return next(ctx, req)
	}
	stream := func(ctx context.Context, req Request, next func(context.Context, Request) (<-chan StreamEvent, error)) (<-chan StreamEvent, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		events, err := next(ctx, req)
		if err != nil {
			cancel()
			return nil, err
		}
		out := make(chan StreamEvent)
		go func() {
			defer close(out)
			defer cancel()
		forward:
			for ev := range events {
				select {
				case out <- ev:
				case <-ctx.Done():
					drain(events)
					break forward
				}
			}
			// Adapters may close a stream quietly when ctx ends.
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				out <- StreamEvent{Type: StreamError, Err: ctx.Err()}
			}
		}()
		return out, nil
	}
	return complete, stream
}
