package biz

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/overlordausritter/beastgpt/internal/llamaquery/metrics"
	"github.com/overlordausritter/beastgpt/internal/llamaquery/model"
	"github.com/overlordausritter/beastgpt/pkg/llm"
	"github.com/overlordausritter/beastgpt/pkg/utils/json"
)

// EmptyResponse is the answer when no refine step satisfied the query.
const EmptyResponse = "Empty Response"

const synthesisSystemPrompt = "You answer questions using only the provided context. " +
	"Reply with a JSON object {\"answer\": string, \"query_satisfied\": bool}. " +
	"Set query_satisfied to false when the context does not help answer the query."

const qaPromptTemplate = `Context information is below.
---------------------
%s
---------------------
Given the context information and not prior knowledge, answer the query.
Query: %s`

const refinePromptTemplate = `The original query is as follows: %s
We have provided an existing answer: %s
We have the opportunity to refine the existing answer (only if needed) with some more context below.
------------
%s
------------
Given the new context, refine the original answer to better answer the query. If the context isn't useful, return the original answer.`

// SynthesizerConfig refine 合成配置。
type SynthesizerConfig struct {
	// Temperature 采样温度。
	Temperature float64
	// Budget 上下文预算（估算 token）。
	Budget int
}

// RefineSynthesizer 按节点顺序逐步生成并改写答案。
type RefineSynthesizer struct {
	provider llm.ChatProvider
	config   *SynthesizerConfig
	metrics  *metrics.DispatchMetrics
}

// NewRefineSynthesizer creates a refine-mode synthesizer. m may be nil.
func NewRefineSynthesizer(provider llm.ChatProvider, config *SynthesizerConfig, m *metrics.DispatchMetrics) *RefineSynthesizer {
	if config == nil {
		config = &SynthesizerConfig{Temperature: 0.2, Budget: 32000 - 1024}
	}
	return &RefineSynthesizer{provider: provider, config: config, metrics: m}
}

type structuredAnswer struct {
	Answer         string `json:"answer"`
	QuerySatisfied bool   `json:"query_satisfied"`
}

// Synthesize answers query from nodes. Steps whose output reports
// query_satisfied=false are discarded and the running answer is kept.
func (s *RefineSynthesizer) Synthesize(ctx context.Context, query string, nodes []*model.RetrievedNode) (string, error) {
	chunks := TruncateChunks(nonEmptyTexts(nodes), s.config.Budget)

	answer := ""
	satisfied := false
	for i, chunk := range chunks {
		var prompt string
		if !satisfied {
			prompt = fmt.Sprintf(qaPromptTemplate, chunk, query)
		} else {
			prompt = fmt.Sprintf(refinePromptTemplate, query, answer, chunk)
		}

		start := time.Now()
		out, err := s.provider.Generate(ctx, prompt, synthesisSystemPrompt,
			llm.WithTemperature(float32(s.config.Temperature)), llm.WithJSONMode())
		s.metrics.RecordLLMCall(time.Since(start), err)
		if err != nil {
			return "", &LLMError{Stage: fmt.Sprintf("refine step %d", i+1), Err: err}
		}

		var step structuredAnswer
		if err := json.Unmarshal([]byte(extractJSONObject(out)), &step); err != nil {
			return "", fmt.Errorf("refine step %d: unparseable answer: %w", i+1, err)
		}
		if !step.QuerySatisfied {
			continue
		}
		answer = strings.TrimSpace(step.Answer)
		satisfied = true
	}

	if !satisfied {
		return EmptyResponse, nil
	}
	return answer, nil
}
