package biz

import (
	"strings"
	"unicode/utf8"

	"github.com/overlordausritter/beastgpt/internal/llamaquery/model"
)

// runesPerToken 估算 token 时每个 token 对应的字符数。
const runesPerToken = 4

// NormalizerConfig 归一化配置。
type NormalizerConfig struct {
	// Truncate 是否将拼接文本截断到 Budget。
	Truncate bool
	// Budget 上下文预算（估算 token）。
	Budget int
	// StreamThreshold 文本总字符数超过该值时流式输出，0 表示关闭。
	StreamThreshold int
}

// Normalizer 把检索结果映射为响应。
type Normalizer struct {
	config *NormalizerConfig
}

// NewNormalizer creates a normalizer.
func NewNormalizer(config *NormalizerConfig) *Normalizer {
	if config == nil {
		config = &NormalizerConfig{Budget: 32000 - 1024, StreamThreshold: 3_000_000}
	}
	return &Normalizer{config: config}
}

// Normalize builds the success response for query. Records keep the upstream order.
func (n *Normalizer) Normalize(query string, r *model.Retrieval) *model.QueryResponse {
	resp := &model.QueryResponse{
		Query:   query,
		Results: make([]*model.ResultRecord, 0, len(r.Nodes)),
	}
	if r.SelectorMetadata != nil {
		resp.SelectedTool = model.StringPtr(r.SelectedTool)
		resp.SelectorMetadata = r.SelectorMetadata
	}
	resp.Response = r.Answer

	if len(r.Nodes) == 0 {
		resp.Message = model.EmptyResultMessage
		return resp
	}

	for _, node := range r.Nodes {
		resp.Results = append(resp.Results, model.NewResultRecord(node))
	}

	texts := nonEmptyTexts(r.Nodes)
	if n.config.Truncate {
		texts = TruncateChunks(texts, n.config.Budget)
	}
	resp.Text = model.StringPtr(strings.TrimSpace(strings.Join(texts, "\n")))

	if n.config.StreamThreshold > 0 && EstimatedSize(r.Nodes) > n.config.StreamThreshold {
		resp.Streamed = true
	}
	return resp
}

// EstimatedSize is the summed rune length of the non-empty node texts.
func EstimatedSize(nodes []*model.RetrievedNode) int {
	size := 0
	for _, node := range nodes {
		size += utf8.RuneCountInString(node.Text)
	}
	return size
}

// EstimateTokens approximates the token count of s as ceil(runes/4).
func EstimateTokens(s string) int {
	return (utf8.RuneCountInString(s) + runesPerToken - 1) / runesPerToken
}

// TruncateChunks keeps whole chunks from the front while they fit in budget.
// The first chunk that does not fit is cut to the remaining budget and
// everything after it is dropped. Order is never changed.
func TruncateChunks(chunks []string, budget int) []string {
	if budget <= 0 {
		return nil
	}

	out := make([]string, 0, len(chunks))
	remaining := budget
	for _, chunk := range chunks {
		cost := EstimateTokens(chunk)
		if cost <= remaining {
			out = append(out, chunk)
			remaining -= cost
			continue
		}
		if remaining > 0 {
			out = append(out, truncateRunes(chunk, remaining*runesPerToken))
		}
		break
	}
	return out
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

func nonEmptyTexts(nodes []*model.RetrievedNode) []string {
	texts := make([]string, 0, len(nodes))
	for _, node := range nodes {
		if node.Text != "" {
			texts = append(texts, node.Text)
		}
	}
	return texts
}
