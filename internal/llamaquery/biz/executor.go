package biz

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/kart-io/logger"
	"go.opentelemetry.io/otel/attribute"

	"github.com/overlordausritter/beastgpt/internal/llamaquery/metrics"
	"github.com/overlordausritter/beastgpt/pkg/infra/pool"
	"github.com/overlordausritter/beastgpt/pkg/infra/tracing"
	"github.com/overlordausritter/beastgpt/pkg/llm/resilience"
)

// ExecutorConfig 执行器配置。
type ExecutorConfig struct {
	// MaxAttempts 总尝试次数（包括首次）。
	MaxAttempts int
	// Backoff 两次尝试之间的固定等待。
	Backoff time.Duration
	// Sleep 等待函数，测试时替换。nil 使用定时器。
	Sleep func(ctx context.Context, d time.Duration) error
}

// Executor 在工作池上运行上游调用，并对瞬时网络错误做有限次重试。
type Executor struct {
	pool    *pool.Pool
	config  *ExecutorConfig
	metrics *metrics.DispatchMetrics
}

// NewExecutor creates an executor. m may be nil.
func NewExecutor(p *pool.Pool, config *ExecutorConfig, m *metrics.DispatchMetrics) *Executor {
	if config == nil {
		config = &ExecutorConfig{MaxAttempts: 3, Backoff: 2 * time.Second}
	}
	return &Executor{pool: p, config: config, metrics: m}
}

// Execute runs fn on the executor's pool. Each attempt is a separate pool
// task; the backoff wait happens on the caller's goroutine.
// Exhausting the attempts yields *resilience.ExhaustedError.
// Only index store transport errors are retried; *LLMError never is.
func Execute[T any](ctx context.Context, e *Executor, stage string, fn func(ctx context.Context) (T, error)) (T, error) {
	retry := resilience.FixedRetryConfig(e.config.MaxAttempts, e.config.Backoff, isRetryableStoreError)
	retry.Sleep = e.config.Sleep
	retry.OnRetry = func(attempt int, delay time.Duration, err error) {
		e.metrics.RecordRetry()
		logger.Warnw("retrying upstream call",
			"stage", stage,
			"attempt", attempt,
			"max_attempts", e.config.MaxAttempts,
			"delay", delay.String(),
			"error", err.Error(),
		)
	}

	var result T
	attempt := 0
	err := resilience.RetryWithBackoff(ctx, retry, func() error {
		attempt++
		e.metrics.RecordAttempt()

		attemptCtx, span := tracing.StartSpan(ctx, "llamaquery."+stage,
			attribute.Int(tracing.QueryAttempt, attempt))
		defer span.End()

		v, err := pool.Run(attemptCtx, e.pool, fn)
		if err != nil {
			tracing.RecordError(attemptCtx, err)
			return err
		}
		result = v
		return nil
	})
	return result, err
}

func isRetryableStoreError(err error) bool {
	var llmErr *LLMError
	if stderrors.As(err, &llmErr) {
		return false
	}
	return resilience.IsRetryableError(err)
}

func isCanceled(err error) bool {
	return stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded)
}
