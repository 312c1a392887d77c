package unifiedllm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// instantPolicy retries without sleeping.
func instantPolicy(maxRetries int) RetryPolicy {
	return RetryPolicy{MaxRetries: maxRetries}
}

func TestRetryPolicyDelay(t *testing.T) {
	policy := RetryPolicy{BaseDelay: time.Second}

	expected := []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}
	for i, want := range expected {
		assert.Equal(t, want, policy.Delay(i), "attempt %d", i)
	}
}

func TestRetryPolicyDelayWithJitter(t *testing.T) {
	policy := DefaultRetryPolicy()

	for attempt := 0; attempt < 3; attempt++ {
		base := DefaultBaseDelay << uint(attempt)
		for i := 0; i < 50; i++ {
			got := policy.Delay(attempt)
			assert.GreaterOrEqual(t, got, base)
			assert.Less(t, got, base+DefaultMaxJitter)
		}
	}
}

func TestDefaultRetryPolicy(t *testing.T) {
	p := DefaultRetryPolicy()
	assert.Equal(t, 3, p.MaxRetries)
	assert.Equal(t, 1000*time.Millisecond, p.BaseDelay)
	assert.Equal(t, 500*time.Millisecond, p.MaxJitter)
}

func TestRetrySuccess(t *testing.T) {
	calls := 0
	err := runWithRetry(context.Background(), instantPolicy(3), func(ctx context.Context, attempt int) error {
		assert.Equal(t, calls, attempt)
		calls++
		if calls < 3 {
			return &HTTPStatusError{StatusCode: 503}
		}
		return nil
	})
	assert.Nil(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryNonRetryableError(t *testing.T) {
	calls := 0
	apiErr := runWithRetry(context.Background(), instantPolicy(3), func(ctx context.Context, _ int) error {
		calls++
		return &HTTPStatusError{StatusCode: 401}
	})
	require.NotNil(t, apiErr)
	assert.Equal(t, CodeAuth, apiErr.Info.Code)
	assert.Equal(t, 1, calls)
}

func TestRetryExhausted(t *testing.T) {
	calls := 0
	var retries []int
	policy := instantPolicy(DefaultMaxRetries)
	policy.OnRetry = func(info APIErrorInfo, attempt int, delay time.Duration) {
		retries = append(retries, attempt)
	}

	apiErr := runWithRetry(context.Background(), policy, func(ctx context.Context, _ int) error {
		calls++
		if calls == DefaultMaxRetries+1 {
			return &HTTPStatusError{StatusCode: 429}
		}
		return errors.New("fetch failed")
	})

	require.NotNil(t, apiErr)
	assert.Equal(t, DefaultMaxRetries+1, calls)
	assert.Equal(t, []int{1, 2, 3}, retries)
	// The error reflects the final attempt.
	assert.Equal(t, CodeRateLimit, apiErr.Info.Code)
}

func TestRetryCancelled(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 5, BaseDelay: time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	apiErr := runWithRetry(ctx, policy, func(ctx context.Context, _ int) error {
		calls++
		return errors.New("fetch failed")
	})
	require.NotNil(t, apiErr)
	assert.Equal(t, CodeTimeout, apiErr.Info.Code)
	assert.Equal(t, 1, calls)
}
