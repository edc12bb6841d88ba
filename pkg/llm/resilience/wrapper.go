package resilience

import (
	"context"
	"errors"

	"github.com/overlordausritter/beastgpt/pkg/llm"
	"github.com/overlordausritter/beastgpt/pkg/utils/httpclient"
)

// ResilientChatProvider 带熔断和可选重试的 Chat Provider 包装器。
type ResilientChatProvider struct {
	provider llm.ChatProvider
	retry    *RetryConfig
	cb       *CircuitBreaker
}

// NewResilientChatProvider 创建带韧性功能的 Chat Provider。
// retryConfig 为 nil 时只尝试一次。
func NewResilientChatProvider(
	provider llm.ChatProvider,
	retryConfig *RetryConfig,
	cbConfig *CircuitBreakerConfig,
) *ResilientChatProvider {
	if retryConfig == nil {
		retryConfig = &RetryConfig{MaxAttempts: 1}
	}
	if retryConfig.RetryableErrors == nil {
		retryConfig.RetryableErrors = IsRetryableError
	}

	return &ResilientChatProvider{
		provider: provider,
		retry:    retryConfig,
		cb:       NewCircuitBreaker(cbConfig),
	}
}

// Chat 进行多轮对话（带重试和熔断）。
func (r *ResilientChatProvider) Chat(ctx context.Context, messages []llm.Message, opts ...llm.ChatOption) (string, error) {
	var result string
	err := RetryWithCircuitBreaker(ctx, r.retry, r.cb, func() error {
		var err error
		result, err = r.provider.Chat(ctx, messages, opts...)
		return err
	})
	return result, err
}

// Generate 根据提示生成文本（带重试和熔断）。
func (r *ResilientChatProvider) Generate(ctx context.Context, prompt string, systemPrompt string, opts ...llm.ChatOption) (string, error) {
	var result string
	err := RetryWithCircuitBreaker(ctx, r.retry, r.cb, func() error {
		var err error
		result, err = r.provider.Generate(ctx, prompt, systemPrompt, opts...)
		return err
	})
	return result, err
}

// Name 返回供应商名称。
func (r *ResilientChatProvider) Name() string {
	return r.provider.Name() + "-resilient"
}

// CircuitBreaker 获取熔断器实例（用于监控）。
func (r *ResilientChatProvider) CircuitBreaker() *CircuitBreaker {
	return r.cb
}

// IsRetryableError 判断 LLM 调用错误是否可重试。
// 只有读超时和连接中断这类瞬时网络错误会重试。
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrCircuitBreakerOpen) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return httpclient.IsTransient(httpclient.Classify(err))
}
