package llamaquery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/overlordausritter/beastgpt/pkg/llm"
	llmopts "github.com/overlordausritter/beastgpt/pkg/options/llm"
	"github.com/overlordausritter/beastgpt/pkg/utils/httpclient"
)

type timeoutProvider struct {
	calls int
}

func (p *timeoutProvider) Name() string { return "timeout" }

func (p *timeoutProvider) Chat(context.Context, []llm.Message, ...llm.ChatOption) (string, error) {
	p.calls++
	return "", &httpclient.TransportError{Kind: httpclient.KindReadTimeout, Err: errors.New("timed out")}
}

func (p *timeoutProvider) Generate(ctx context.Context, prompt, systemPrompt string, opts ...llm.ChatOption) (string, error) {
	return p.Chat(ctx, nil, opts...)
}

func TestWrapChatProviderSingleAttempt(t *testing.T) {
	opts := llmopts.NewProviderOptions()
	opts.BreakerMaxFailures = 5
	opts.BreakerTimeout = time.Minute

	inner := &timeoutProvider{}
	wrapped := wrapChatProvider(inner, opts)

	start := time.Now()
	_, err := wrapped.Generate(context.Background(), "q", "system")
	require.Error(t, err)
	assert.Equal(t, httpclient.KindReadTimeout, httpclient.KindOf(err))
	assert.Equal(t, 1, inner.calls)
	assert.Less(t, time.Since(start), time.Second)
	require.NotNil(t, wrapped.CircuitBreaker())
}
