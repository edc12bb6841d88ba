// Package llm 提供统一的 LLM 供应商抽象层。
// 查询服务只使用 Chat 能力：路由选择器和 refine 答案合成。
package llm

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// ChatProvider 定义 Chat 供应商接口。
type ChatProvider interface {
	// Chat 进行多轮对话。
	Chat(ctx context.Context, messages []Message, opts ...ChatOption) (string, error)

	// Generate 根据提示生成文本（单轮）。
	Generate(ctx context.Context, prompt string, systemPrompt string, opts ...ChatOption) (string, error)

	// Name 返回供应商名称。
	Name() string
}

// Message 表示对话中的一条消息。
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Role 定义消息角色。
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatOptions 单次调用的生成参数，零值表示使用供应商默认值。
type ChatOptions struct {
	// Temperature 采样温度，nil 表示不设置。
	Temperature *float32
	// JSONMode 要求模型只输出 JSON 对象。
	JSONMode bool
	// MaxTokens 最大生成 token 数。
	MaxTokens int
}

// ChatOption 配置单次调用。
type ChatOption func(*ChatOptions)

// WithTemperature 设置采样温度。
func WithTemperature(t float32) ChatOption {
	return func(o *ChatOptions) {
		o.Temperature = &t
	}
}

// WithJSONMode 要求 JSON 对象输出。
func WithJSONMode() ChatOption {
	return func(o *ChatOptions) {
		o.JSONMode = true
	}
}

// WithMaxTokens 限制生成长度。
func WithMaxTokens(n int) ChatOption {
	return func(o *ChatOptions) {
		o.MaxTokens = n
	}
}

// ApplyChatOptions 合并调用选项。
func ApplyChatOptions(opts ...ChatOption) ChatOptions {
	var o ChatOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ChatProviderFactory Chat 供应商工厂函数类型。
type ChatProviderFactory func(config map[string]any) (ChatProvider, error)

var registry = &providerRegistry{
	chatProviders: make(map[string]ChatProviderFactory),
}

type providerRegistry struct {
	mu            sync.RWMutex
	chatProviders map[string]ChatProviderFactory
}

// RegisterChatProvider 注册 Chat 供应商工厂。
func RegisterChatProvider(name string, factory ChatProviderFactory) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.chatProviders[name] = factory
}

// NewChatProvider 根据名称创建 Chat 供应商实例。
func NewChatProvider(name string, config map[string]any) (ChatProvider, error) {
	registry.mu.RLock()
	factory, ok := registry.chatProviders[name]
	registry.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown chat provider: %s", name)
	}
	return factory(config)
}

// ListProviders 列出所有已注册的供应商名称（按名称排序）。
func ListProviders() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	names := make([]string, 0, len(registry.chatProviders))
	for name := range registry.chatProviders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
