package biz

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/overlordausritter/beastgpt/internal/llamaquery/model"
	"github.com/overlordausritter/beastgpt/internal/llamaquery/store"
	"github.com/overlordausritter/beastgpt/pkg/infra/pool"
	"github.com/overlordausritter/beastgpt/pkg/llm"
)

// fakeStore 按脚本返回结果或错误。
type fakeStore struct {
	mu        sync.Mutex
	calls     atomic.Int32
	indexHits []string
	queries   []string
	errs      []error // 依次返回，用完后返回 nodes
	nodes     []*model.RetrievedNode
}

func (f *fakeStore) next(index, query string) ([]*model.RetrievedNode, error) {
	n := int(f.calls.Add(1))
	f.mu.Lock()
	f.indexHits = append(f.indexHits, index)
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	if n <= len(f.errs) {
		return nil, f.errs[n-1]
	}
	return f.nodes, nil
}

func (f *fakeStore) RetrieveIndex(_ context.Context, index string, query string) ([]*model.RetrievedNode, error) {
	return f.next(index, query)
}

func (f *fakeStore) RetrieveComposite(_ context.Context, spec *store.CompositeSpec, query string) ([]*model.RetrievedNode, error) {
	return f.next(spec.Name, query)
}

// scriptedProvider 依次返回预设输出。
type scriptedProvider struct {
	mu      sync.Mutex
	outputs []string
	err     error
	prompts []string
	opts    []llm.ChatOptions
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Chat(_ context.Context, messages []llm.Message, opts ...llm.ChatOption) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prompts = append(p.prompts, messages[len(messages)-1].Content)
	p.opts = append(p.opts, llm.ApplyChatOptions(opts...))
	if p.err != nil {
		return "", p.err
	}
	if len(p.outputs) == 0 {
		return "", nil
	}
	out := p.outputs[0]
	p.outputs = p.outputs[1:]
	return out, nil
}

func (p *scriptedProvider) Generate(ctx context.Context, prompt string, systemPrompt string, opts ...llm.ChatOption) (string, error) {
	return p.Chat(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: prompt},
	}, opts...)
}

// sleepRecorder 记录等待时长而不真正等待。
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *sleepRecorder) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

func newTestPool(t *testing.T) *pool.Pool {
	t.Helper()
	p, err := pool.NewPool("test", pool.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(p.Release)
	return p
}

func newTestExecutor(t *testing.T, sleeper *sleepRecorder) *Executor {
	t.Helper()
	return NewExecutor(newTestPool(t), &ExecutorConfig{
		MaxAttempts: 3,
		Backoff:     2 * time.Second,
		Sleep:       sleeper.Sleep,
	}, nil)
}

func nodes(texts ...string) []*model.RetrievedNode {
	out := make([]*model.RetrievedNode, 0, len(texts))
	for _, t := range texts {
		out = append(out, &model.RetrievedNode{Text: t, Metadata: map[string]any{"file_name": t + ".pdf"}})
	}
	return out
}
