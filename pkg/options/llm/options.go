// Package llm provides LLM provider configuration options.
package llm

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/overlordausritter/beastgpt/pkg/options"
)

var _ options.IOptions = (*ProviderOptions)(nil)

// APIKeyEnv is the environment variable holding the LLM API key.
const APIKeyEnv = "OPENAI_API_KEY"

// ProviderOptions 定义 LLM 供应商配置。
type ProviderOptions struct {
	// Provider 供应商名称，对应 llm 注册表中的名字。
	Provider string `json:"provider" mapstructure:"provider"`

	// BaseURL API 基础地址。
	BaseURL string `json:"base-url" mapstructure:"base-url"`

	// APIKey 覆盖 OPENAI_API_KEY 环境变量。
	APIKey string `json:"-" mapstructure:"api-key"`

	// Model 使用的模型名称。
	Model string `json:"model" mapstructure:"model"`

	// Timeout 单次调用超时时间。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// Organization 组织 ID（OpenAI 可选）。
	Organization string `json:"organization" mapstructure:"organization"`

	// CircuitBreaker 是否用熔断器包装供应商。
	CircuitBreaker bool `json:"circuit-breaker" mapstructure:"circuit-breaker"`

	// BreakerMaxFailures 触发熔断的连续失败次数。
	BreakerMaxFailures int `json:"breaker-max-failures" mapstructure:"breaker-max-failures"`

	// BreakerTimeout 熔断打开后进入半开状态的等待时间。
	BreakerTimeout time.Duration `json:"breaker-timeout" mapstructure:"breaker-timeout"`
}

// NewProviderOptions 创建默认 LLM 供应商配置。
func NewProviderOptions() *ProviderOptions {
	return &ProviderOptions{
		Provider:           "openai",
		BaseURL:            "https://api.openai.com/v1",
		Model:              "gpt-4o-mini",
		Timeout:            120 * time.Second,
		CircuitBreaker:     false,
		BreakerMaxFailures: 5,
		BreakerTimeout:     60 * time.Second,
	}
}

// ResolveAPIKey returns the configured key, falling back on the environment.
func (o *ProviderOptions) ResolveAPIKey() string {
	if o.APIKey != "" {
		return o.APIKey
	}
	return os.Getenv(APIKeyEnv)
}

// ToConfigMap 转换为配置 map，用于供应商工厂。
func (o *ProviderOptions) ToConfigMap() map[string]any {
	return map[string]any{
		"base_url":     o.BaseURL,
		"api_key":      o.ResolveAPIKey(),
		"chat_model":   o.Model,
		"timeout":      o.Timeout,
		"organization": o.Organization,
	}
}

// AddFlags adds flags for LLM provider options to the specified FlagSet.
func (o *ProviderOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "llm."
	fs.StringVar(&o.Provider, p+"provider", o.Provider, "LLM provider name.")
	fs.StringVar(&o.BaseURL, p+"base-url", o.BaseURL, "LLM API base URL.")
	fs.StringVar(&o.APIKey, p+"api-key", o.APIKey, "LLM API key (defaults to $"+APIKeyEnv+").")
	fs.StringVar(&o.Model, p+"model", o.Model, "LLM model name used by the selector and synthesizer.")
	fs.DurationVar(&o.Timeout, p+"timeout", o.Timeout, "LLM request timeout.")
	fs.StringVar(&o.Organization, p+"organization", o.Organization, "LLM organization ID (optional).")
	fs.BoolVar(&o.CircuitBreaker, p+"circuit-breaker", o.CircuitBreaker, "Wrap LLM calls in a circuit breaker.")
	fs.IntVar(&o.BreakerMaxFailures, p+"breaker-max-failures", o.BreakerMaxFailures, "Consecutive failures that open the breaker.")
	fs.DurationVar(&o.BreakerTimeout, p+"breaker-timeout", o.BreakerTimeout, "How long the breaker stays open before probing.")
}

// Validate validates the LLM provider options.
// A missing API key is not a configuration error: it is reported per request.
func (o *ProviderOptions) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Provider == "" {
		errs = append(errs, fmt.Errorf("llm.provider is required"))
	}
	if o.BaseURL == "" {
		errs = append(errs, fmt.Errorf("llm.base-url is required"))
	}
	if o.Model == "" {
		errs = append(errs, fmt.Errorf("llm.model is required"))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("llm.timeout must be positive"))
	}
	if o.CircuitBreaker {
		if o.BreakerMaxFailures <= 0 {
			errs = append(errs, fmt.Errorf("llm.breaker-max-failures must be positive"))
		}
		if o.BreakerTimeout <= 0 {
			errs = append(errs, fmt.Errorf("llm.breaker-timeout must be positive"))
		}
	}
	return errs
}

// Complete completes the LLM provider options with defaults.
func (o *ProviderOptions) Complete() error {
	return nil
}
