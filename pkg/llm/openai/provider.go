// Package openai 提供基于 go-openai 的 Chat 供应商实现。
// 同时支持 OpenAI API 和兼容 OpenAI API 的服务。
//
// 基本用法示例：
//
//	import _ "github.com/overlordausritter/beastgpt/pkg/llm/openai"
//
//	provider, err := llm.NewChatProvider("openai", map[string]any{
//	    "api_key":    os.Getenv("OPENAI_API_KEY"),
//	    "chat_model": "gpt-4o-mini",
//	})
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/overlordausritter/beastgpt/pkg/llm"
)

// ProviderName 是 OpenAI 供应商的名称标识符
const ProviderName = "openai"

func init() {
	llm.RegisterChatProvider(ProviderName, NewProvider)
}

// Config OpenAI 供应商配置。
type Config struct {
	// BaseURL API 基础地址，默认为 OpenAI 官方地址。
	BaseURL string `json:"base_url" mapstructure:"base_url"`

	// APIKey API 密钥。
	APIKey string `json:"api_key" mapstructure:"api_key"`

	// ChatModel 用于对话的模型。
	ChatModel string `json:"chat_model" mapstructure:"chat_model"`

	// Organization 组织 ID（可选）。
	Organization string `json:"organization" mapstructure:"organization"`

	// MaxTokens 默认最大生成 token 数，0 表示使用 API 默认值。
	MaxTokens int `json:"max_tokens" mapstructure:"max_tokens"`

	// HTTPClient 共享的出站 HTTP 客户端（可选）。
	HTTPClient *http.Client `json:"-" mapstructure:"-"`
}

// DefaultConfig 返回默认配置。
func DefaultConfig() *Config {
	return &Config{
		BaseURL:   "https://api.openai.com/v1",
		ChatModel: "gpt-4o-mini",
	}
}

// Provider OpenAI 供应商实现。
type Provider struct {
	config *Config
	client *goopenai.Client
}

// NewProvider 从配置 map 创建 OpenAI 供应商。
func NewProvider(configMap map[string]any) (llm.ChatProvider, error) {
	cfg := DefaultConfig()

	if v, ok := configMap["base_url"].(string); ok && v != "" {
		cfg.BaseURL = v
	}
	if v, ok := configMap["api_key"].(string); ok && v != "" {
		cfg.APIKey = v
	}
	if v, ok := configMap["chat_model"].(string); ok && v != "" {
		cfg.ChatModel = v
	}
	if v, ok := configMap["organization"].(string); ok && v != "" {
		cfg.Organization = v
	}
	if v, ok := configMap["max_tokens"].(int); ok && v > 0 {
		cfg.MaxTokens = v
	}
	if v, ok := configMap["http_client"].(*http.Client); ok && v != nil {
		cfg.HTTPClient = v
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: api_key 是必需的")
	}

	return NewProviderWithConfig(cfg), nil
}

// NewProviderWithConfig 使用结构化配置创建 OpenAI 供应商。
func NewProviderWithConfig(cfg *Config) *Provider {
	clientConfig := goopenai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	clientConfig.OrgID = cfg.Organization
	if cfg.HTTPClient != nil {
		clientConfig.HTTPClient = cfg.HTTPClient
	}

	return &Provider{
		config: cfg,
		client: goopenai.NewClientWithConfig(clientConfig),
	}
}

// Name 返回供应商名称。
func (p *Provider) Name() string {
	return ProviderName
}

// Model 返回对话模型名称。
func (p *Provider) Model() string {
	return p.config.ChatModel
}

// Chat 进行多轮对话。
func (p *Provider) Chat(ctx context.Context, messages []llm.Message, opts ...llm.ChatOption) (string, error) {
	o := llm.ApplyChatOptions(opts...)

	req := goopenai.ChatCompletionRequest{
		Model:    p.config.ChatModel,
		Messages: make([]goopenai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, m := range messages {
		if m.Content == "" && m.Role == llm.RoleSystem {
			continue
		}
		req.Messages = append(req.Messages, goopenai.ChatCompletionMessage{
			Role:    toOpenAIRole(m.Role),
			Content: m.Content,
		})
	}

	if o.Temperature != nil {
		req.Temperature = *o.Temperature
	}
	if o.JSONMode {
		req.ResponseFormat = &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	switch {
	case o.MaxTokens > 0:
		req.MaxTokens = o.MaxTokens
	case p.config.MaxTokens > 0:
		req.MaxTokens = p.config.MaxTokens
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *goopenai.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("openai chat completion failed (status %d): %s: %w", apiErr.HTTPStatusCode, apiErr.Message, err)
		}
		return "", fmt.Errorf("openai chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: 响应中没有 choices")
	}

	return resp.Choices[0].Message.Content, nil
}

// Generate 根据提示生成文本（单轮）。
func (p *Provider) Generate(ctx context.Context, prompt string, systemPrompt string, opts ...llm.ChatOption) (string, error) {
	messages := make([]llm.Message, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: prompt})
	return p.Chat(ctx, messages, opts...)
}

func toOpenAIRole(r llm.Role) string {
	switch r {
	case llm.RoleSystem:
		return goopenai.ChatMessageRoleSystem
	case llm.RoleAssistant:
		return goopenai.ChatMessageRoleAssistant
	default:
		return goopenai.ChatMessageRoleUser
	}
}
