package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/overlordausritter/beastgpt/pkg/llm"
)

const testAPIKey = "test-key"

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.BaseURL != "https://api.openai.com/v1" {
		t.Errorf("expected BaseURL https://api.openai.com/v1, got %s", cfg.BaseURL)
	}
	if cfg.ChatModel != "gpt-4o-mini" {
		t.Errorf("expected ChatModel gpt-4o-mini, got %s", cfg.ChatModel)
	}
}

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name      string
		config    map[string]any
		wantError bool
	}{
		{
			name:   "valid config",
			config: map[string]any{"api_key": testAPIKey},
		},
		{
			name: "custom config",
			config: map[string]any{
				"api_key":      testAPIKey,
				"base_url":     "https://example.test/v1",
				"chat_model":   "gpt-4o",
				"organization": "org-123",
				"http_client":  &http.Client{},
			},
		},
		{
			name:      "missing api_key",
			config:    map[string]any{},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvider(tt.config)
			if tt.wantError {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.Name() != ProviderName {
				t.Errorf("expected name %s, got %s", ProviderName, p.Name())
			}
		})
	}
}

func TestRegisteredInRegistry(t *testing.T) {
	p, err := llm.NewChatProvider(ProviderName, map[string]any{"api_key": testAPIKey})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name() != ProviderName {
		t.Errorf("expected %s, got %s", ProviderName, p.Name())
	}
}

func newTestServer(t *testing.T, reply string, capture *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer "+testAPIKey {
			t.Errorf("unexpected Authorization header %q", got)
		}
		if capture != nil {
			_ = json.NewDecoder(r.Body).Decode(capture)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": reply},
			}},
		})
	}))
}

func TestChat(t *testing.T) {
	var body map[string]any
	srv := newTestServer(t, `{"choice": 2, "reason": "market research"}`, &body)
	defer srv.Close()

	p := NewProviderWithConfig(&Config{BaseURL: srv.URL + "/v1", APIKey: testAPIKey, ChatModel: "gpt-4o-mini"})

	out, err := p.Chat(context.Background(), []llm.Message{
		{Role: llm.RoleSystem, Content: "route the question"},
		{Role: llm.RoleUser, Content: "latest news on fintech"},
	}, llm.WithTemperature(0.2), llm.WithJSONMode())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != `{"choice": 2, "reason": "market research"}` {
		t.Errorf("unexpected content %q", out)
	}

	if body["model"] != "gpt-4o-mini" {
		t.Errorf("expected model gpt-4o-mini, got %v", body["model"])
	}
	if temp, _ := body["temperature"].(float64); temp < 0.19 || temp > 0.21 {
		t.Errorf("expected temperature 0.2, got %v", body["temperature"])
	}
	rf, _ := body["response_format"].(map[string]any)
	if rf["type"] != "json_object" {
		t.Errorf("expected json_object response format, got %v", body["response_format"])
	}
	msgs, _ := body["messages"].([]any)
	if len(msgs) != 2 {
		t.Errorf("expected 2 messages, got %d", len(msgs))
	}
}

func TestGenerateSkipsEmptySystemPrompt(t *testing.T) {
	var body map[string]any
	srv := newTestServer(t, "answer", &body)
	defer srv.Close()

	p := NewProviderWithConfig(&Config{BaseURL: srv.URL + "/v1", APIKey: testAPIKey, ChatModel: "gpt-4o-mini"})
	out, err := p.Generate(context.Background(), "hello", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "answer" {
		t.Errorf("unexpected content %q", out)
	}
	if msgs, _ := body["messages"].([]any); len(msgs) != 1 {
		t.Errorf("expected a single user message, got %d", len(msgs))
	}
}

func TestChatAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	p := NewProviderWithConfig(&Config{BaseURL: srv.URL + "/v1", APIKey: testAPIKey, ChatModel: "gpt-4o-mini"})
	_, err := p.Generate(context.Background(), "hello", "")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("expected status in error, got %v", err)
	}
}
