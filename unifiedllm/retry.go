package unifiedllm

import (
	"context"
	"math/rand"
	"time"
)

const (
	// DefaultMaxRetries is the number of retries after the initial attempt.
	DefaultMaxRetries = 3
	// DefaultBaseDelay is the delay before the first retry, doubled per attempt.
	DefaultBaseDelay = 1000 * time.Millisecond
	// DefaultMaxJitter bounds the uniform random jitter added to each delay.
	DefaultMaxJitter = 500 * time.Millisecond
)

// RetryPolicy configures retry behavior with exponential backoff.
type RetryPolicy struct {
	MaxRetries int           // retries after the initial attempt
	BaseDelay  time.Duration // delay for attempt 0, doubled per attempt
	MaxJitter  time.Duration // jitter is uniform in [0, MaxJitter)
	OnRetry    func(info APIErrorInfo, attempt int, delay time.Duration)
}

// DefaultRetryPolicy returns the transport's default retry policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultBaseDelay,
		MaxJitter:  DefaultMaxJitter,
	}
}

// Delay calculates the delay after a failed attempt n (0-indexed).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	delay := p.BaseDelay << uint(attempt)
	if p.MaxJitter > 0 {
		delay += time.Duration(rand.Int63n(int64(p.MaxJitter)))
	}
	return delay
}

// runWithRetry calls fn for attempts 0..MaxRetries until it succeeds or
// fails with a non-retryable error. The returned error is always an
// *APIError built from the last attempt's classification.
func runWithRetry(ctx context.Context, policy RetryPolicy, fn func(ctx context.Context, attempt int) error) *APIError {
	for attempt := 0; ; attempt++ {
		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}
		apiErr := AsAPIError(err)
		if !apiErr.Info.Retryable || attempt >= policy.MaxRetries {
			return apiErr
		}

		delay := policy.Delay(attempt)
		if policy.OnRetry != nil {
			policy.OnRetry(apiErr.Info, attempt+1, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return AsAPIError(ctx.Err())
		case <-timer.C:
		}
	}
}
