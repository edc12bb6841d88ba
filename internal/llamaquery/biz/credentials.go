package biz

import (
	llamaopts "github.com/overlordausritter/beastgpt/pkg/options/llamacloud"
	llmopts "github.com/overlordausritter/beastgpt/pkg/options/llm"
)

// Credentials 启动时解析的上游密钥，之后只读。
type Credentials struct {
	LlamaAPIKey  string
	OpenAIAPIKey string
}

// String never prints the keys.
func (c Credentials) String() string {
	return "Credentials{llama=" + presence(c.LlamaAPIKey) + ", openai=" + presence(c.OpenAIAPIKey) + "}"
}

func presence(s string) string {
	if s == "" {
		return "unset"
	}
	return "set"
}

// CredentialResolver 在任何出站调用之前检查所需密钥。
type CredentialResolver struct {
	creds    Credentials
	needsLLM bool
}

// NewCredentialResolver creates a resolver. needsLLM makes the LLM key mandatory.
func NewCredentialResolver(creds Credentials, needsLLM bool) *CredentialResolver {
	return &CredentialResolver{creds: creds, needsLLM: needsLLM}
}

// Check reports the first missing credential, index key first.
func (r *CredentialResolver) Check() error {
	if r.creds.LlamaAPIKey == "" {
		return missingCredential(llamaopts.APIKeyEnv)
	}
	if r.needsLLM && r.creds.OpenAIAPIKey == "" {
		return missingCredential(llmopts.APIKeyEnv)
	}
	return nil
}

// Credentials returns the resolved keys.
func (r *CredentialResolver) Credentials() Credentials {
	return r.creds
}
