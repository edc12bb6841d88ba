package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreaker_ClosedState(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig())
	assert.Equal(t, StateClosed, cb.State())

	err := cb.Execute(func() error { return nil })
	require.NoError(t, err)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_OpenOnMaxFailures(t *testing.T) {
	cb := NewCircuitBreaker(&CircuitBreakerConfig{
		MaxFailures:      3,
		Timeout:          time.Second,
		HalfOpenMaxCalls: 1,
	})

	// 连续失败应打开熔断器
	testErr := errors.New("boom")
	for i := 0; i < 3; i++ {
		assert.Error(t, cb.Execute(func() error { return testErr }))
	}
	assert.Equal(t, StateOpen, cb.State())

	err := cb.Execute(func() error { return nil })
	assert.ErrorIs(t, err, ErrCircuitBreakerOpen)
	assert.Equal(t, 1, cb.Stats().Opens)
}

func TestCircuitBreaker_CanceledCallsDoNotCount(t *testing.T) {
	cb := NewCircuitBreaker(&CircuitBreakerConfig{MaxFailures: 1, Timeout: time.Second, HalfOpenMaxCalls: 1})

	_ = cb.Execute(func() error { return context.Canceled })
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenTransition(t *testing.T) {
	cb := NewCircuitBreaker(&CircuitBreakerConfig{
		MaxFailures:      2,
		Timeout:          50 * time.Millisecond,
		HalfOpenMaxCalls: 1,
	})

	for i := 0; i < 2; i++ {
		_ = cb.Execute(func() error { return errors.New("boom") })
	}
	require.Equal(t, StateOpen, cb.State())

	// 等待超时后探测成功，回到关闭状态
	time.Sleep(80 * time.Millisecond)
	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailure(t *testing.T) {
	cb := NewCircuitBreaker(&CircuitBreakerConfig{
		MaxFailures:      1,
		Timeout:          50 * time.Millisecond,
		HalfOpenMaxCalls: 1,
	})

	_ = cb.Execute(func() error { return errors.New("boom") })
	time.Sleep(80 * time.Millisecond)

	_ = cb.Execute(func() error { return errors.New("still down") })
	assert.Equal(t, StateOpen, cb.State())
	assert.Equal(t, 2, cb.Stats().Opens)
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb := NewCircuitBreaker(&CircuitBreakerConfig{MaxFailures: 1, Timeout: time.Minute, HalfOpenMaxCalls: 1})
	_ = cb.Execute(func() error { return errors.New("boom") })
	require.Equal(t, StateOpen, cb.State())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 0, cb.Stats().Failures)
}

func TestRetryWithBackoff_Success(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), DefaultRetryConfig(), func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryWithBackoff_EventualSuccess(t *testing.T) {
	cfg := FixedRetryConfig(3, time.Millisecond, func(error) bool { return true })

	calls := 0
	err := RetryWithBackoff(context.Background(), cfg, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryWithBackoff_FixedDelayExhausted(t *testing.T) {
	cfg := FixedRetryConfig(3, 2*time.Second, func(error) bool { return true })

	var waits []time.Duration
	cfg.Sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	var retried []int
	cfg.OnRetry = func(attempt int, _ time.Duration, _ error) {
		retried = append(retried, attempt)
	}

	calls := 0
	err := RetryWithBackoff(context.Background(), cfg, func() error {
		calls++
		return errors.New("read timeout")
	})

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempts)
	assert.EqualError(t, exhausted.Last, "read timeout")
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, waits)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestRetryWithBackoff_NonRetryableError(t *testing.T) {
	permanent := errors.New("permanent")
	cfg := FixedRetryConfig(3, time.Millisecond, func(err error) bool {
		return !errors.Is(err, permanent)
	})

	calls := 0
	err := RetryWithBackoff(context.Background(), cfg, func() error {
		calls++
		return permanent
	})
	assert.Same(t, permanent, err)
	assert.Equal(t, 1, calls)
}

func TestRetryWithBackoff_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := FixedRetryConfig(5, time.Second, func(error) bool { return true })

	calls := 0
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := RetryWithBackoff(ctx, cfg, func() error {
		calls++
		return errors.New("transient")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestRetryWithBackoff_ExponentialBackoff(t *testing.T) {
	cfg := &RetryConfig{
		MaxAttempts:  4,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     300 * time.Millisecond,
		Multiplier:   2,
	}
	var waits []time.Duration
	cfg.Sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}

	_ = RetryWithBackoff(context.Background(), cfg, func() error { return errors.New("x") })
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 300 * time.Millisecond}, waits)
}

func TestRetryWithCircuitBreaker(t *testing.T) {
	cb := NewCircuitBreaker(&CircuitBreakerConfig{MaxFailures: 2, Timeout: time.Minute, HalfOpenMaxCalls: 1})
	cfg := FixedRetryConfig(5, 0, func(err error) bool {
		return !errors.Is(err, ErrCircuitBreakerOpen)
	})

	calls := 0
	err := RetryWithCircuitBreaker(context.Background(), cfg, cb, func() error {
		calls++
		return errors.New("down")
	})
	assert.ErrorIs(t, err, ErrCircuitBreakerOpen)
	assert.Equal(t, 2, calls)
}

func BenchmarkCircuitBreaker_Execute(b *testing.B) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig())
	for i := 0; i < b.N; i++ {
		_ = cb.Execute(func() error { return nil })
	}
}
