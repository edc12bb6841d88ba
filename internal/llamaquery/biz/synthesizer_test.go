package biz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefineDiscardsUnsatisfiedSteps(t *testing.T) {
	p := &scriptedProvider{outputs: []string{
		`{"answer": "draft one", "query_satisfied": true}`,
		`{"answer": "useless", "query_satisfied": false}`,
		`{"answer": "refined", "query_satisfied": true}`,
	}}
	s := NewRefineSynthesizer(p, &SynthesizerConfig{Temperature: 0.2, Budget: 1000}, nil)

	answer, err := s.Synthesize(context.Background(), "what is ARR?", nodes("c1", "", "c2", "c3"))
	require.NoError(t, err)
	assert.Equal(t, "refined", answer)

	require.Len(t, p.prompts, 3, "空文本节点不参与合成")
	assert.Contains(t, p.prompts[0], "c1")
	assert.Contains(t, p.prompts[1], "existing answer: draft one")
	assert.Contains(t, p.prompts[2], "existing answer: draft one", "被丢弃的步骤不改变草稿")
	for _, o := range p.opts {
		require.NotNil(t, o.Temperature)
		assert.InDelta(t, 0.2, *o.Temperature, 1e-6)
		assert.True(t, o.JSONMode)
	}
}

func TestRefineAllDiscarded(t *testing.T) {
	p := &scriptedProvider{outputs: []string{
		`{"answer": "a", "query_satisfied": false}`,
		`{"answer": "b", "query_satisfied": false}`,
	}}
	s := NewRefineSynthesizer(p, nil, nil)

	answer, err := s.Synthesize(context.Background(), "q", nodes("x", "y"))
	require.NoError(t, err)
	assert.Equal(t, EmptyResponse, answer)
}

func TestRefineNoNodes(t *testing.T) {
	p := &scriptedProvider{}
	answer, err := NewRefineSynthesizer(p, nil, nil).Synthesize(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Equal(t, EmptyResponse, answer)
	assert.Empty(t, p.prompts)
}

func TestRefinePacksContextToBudget(t *testing.T) {
	p := &scriptedProvider{outputs: []string{`{"answer": "ok", "query_satisfied": true}`}}
	s := NewRefineSynthesizer(p, &SynthesizerConfig{Temperature: 0.2, Budget: 1}, nil)

	_, err := s.Synthesize(context.Background(), "q", nodes("abcdefgh", "second"))
	require.NoError(t, err)
	require.Len(t, p.prompts, 1)
	assert.Contains(t, p.prompts[0], "abcd\n")
	assert.NotContains(t, p.prompts[0], "second")
}

func TestRefineUnparseable(t *testing.T) {
	p := &scriptedProvider{outputs: []string{"not json"}}
	_, err := NewRefineSynthesizer(p, nil, nil).Synthesize(context.Background(), "q", nodes("x"))
	require.Error(t, err)
}
