package biz

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/overlordausritter/beastgpt/internal/llamaquery/model"
)

func TestNormalizeConcatenation(t *testing.T) {
	n := NewNormalizer(nil)
	resp := n.Normalize("q", &model.Retrieval{Nodes: nodes("B", "", "A")})

	require.NotNil(t, resp.Text)
	assert.Equal(t, "B\nA", *resp.Text)
	require.Len(t, resp.Results, 3)
	assert.Equal(t, "B", resp.Results[0].Text)
	assert.Equal(t, "", resp.Results[1].Text)
	assert.Equal(t, "A", resp.Results[2].Text)
	assert.Empty(t, resp.Message)
	assert.False(t, resp.Streamed)
	assert.Nil(t, resp.SelectedTool)
}

func TestNormalizeTrims(t *testing.T) {
	n := NewNormalizer(nil)
	resp := n.Normalize("q", &model.Retrieval{Nodes: nodes("  lead", "tail \n")})
	assert.Equal(t, "lead\ntail", *resp.Text)
}

func TestNormalizeEmpty(t *testing.T) {
	n := NewNormalizer(nil)
	resp := n.Normalize("q", &model.Retrieval{})

	assert.Equal(t, "q", resp.Query)
	assert.NotNil(t, resp.Results)
	assert.Empty(t, resp.Results)
	assert.Equal(t, "No relevant documents found.", resp.Message)
	assert.Nil(t, resp.Text)
}

func TestNormalizeStreamingThreshold(t *testing.T) {
	n := NewNormalizer(&NormalizerConfig{Budget: 100, StreamThreshold: 10})

	below := n.Normalize("q", &model.Retrieval{Nodes: nodes("12345", "12345")})
	assert.False(t, below.Streamed, "恰好等于阈值时不流式")

	above := n.Normalize("q", &model.Retrieval{Nodes: nodes("12345", "", "123456")})
	assert.True(t, above.Streamed)
	require.Len(t, above.Results, 3)
	assert.Equal(t, "12345", above.Results[0].Text)
	assert.Equal(t, "123456", above.Results[2].Text)

	off := NewNormalizer(&NormalizerConfig{Budget: 100, StreamThreshold: 0})
	assert.False(t, off.Normalize("q", &model.Retrieval{Nodes: nodes(strings.Repeat("x", 50))}).Streamed)
}

func TestNormalizeRouterFields(t *testing.T) {
	n := NewNormalizer(nil)
	answer := "ARR grew 40%"
	resp := n.Normalize("q", &model.Retrieval{
		Nodes:            nodes("x"),
		SelectedTool:     "Deals",
		Answer:           &answer,
		SelectorMetadata: &model.SelectorMetadata{Selections: []model.Selection{{Index: 0, Reason: "deal query"}}},
	})
	require.NotNil(t, resp.SelectedTool)
	assert.Equal(t, "Deals", *resp.SelectedTool)
	assert.Equal(t, &answer, resp.Response)
	assert.Equal(t, "deal query", resp.SelectorMetadata.Selections[0].Reason)
}

func TestNormalizeTruncate(t *testing.T) {
	n := NewNormalizer(&NormalizerConfig{Truncate: true, Budget: 3})
	resp := n.Normalize("q", &model.Retrieval{Nodes: nodes("aaaa", "bbbbbbbb", "cccc")})

	// 1 + 2 tokens fill the budget, the third chunk is dropped
	assert.Equal(t, "aaaa\nbbbbbbbb", *resp.Text)
	assert.Len(t, resp.Results, 3, "截断只影响拼接文本")
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abc"))
	assert.Equal(t, 1, EstimateTokens("abcd"))
	assert.Equal(t, 2, EstimateTokens("abcde"))
	assert.Equal(t, 1, EstimateTokens("日本語"))
}

func TestTruncateChunks(t *testing.T) {
	chunks := []string{"aaaa", "bbbbbbbb", "cccccccccccc", "dddd"}

	t.Run("everything fits", func(t *testing.T) {
		assert.Equal(t, chunks, TruncateChunks(chunks, 100))
	})

	t.Run("cuts first overflowing chunk and drops the rest", func(t *testing.T) {
		got := TruncateChunks(chunks, 4)
		assert.Equal(t, []string{"aaaa", "bbbbbbbb", "cccc"}, got)
	})

	t.Run("respects budget and order", func(t *testing.T) {
		for budget := 0; budget <= 8; budget++ {
			got := TruncateChunks(chunks, budget)
			total := 0
			for i, c := range got {
				total += EstimateTokens(c)
				assert.True(t, strings.HasPrefix(chunks[i], c))
			}
			assert.LessOrEqual(t, total, budget)
		}
	})

	t.Run("zero budget", func(t *testing.T) {
		assert.Empty(t, TruncateChunks(chunks, 0))
	})

	t.Run("multibyte runes are not split", func(t *testing.T) {
		got := TruncateChunks([]string{"日本語のテキストです"}, 1)
		assert.Equal(t, []string{"日本語の"}, got)
	})
}
