package biz

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/overlordausritter/beastgpt/internal/llamaquery/metrics"
	"github.com/overlordausritter/beastgpt/pkg/llm"
	"github.com/overlordausritter/beastgpt/pkg/utils/json"
)

const selectorSystemPrompt = "You route questions to the single most relevant data source. " +
	"Answer with a JSON object only."

const selectorPromptTemplate = `Some choices are given below. It is provided in a numbered list (1 to %d), where each item in the list corresponds to a summary.
---------------------
%s
---------------------
Using only the choices above and not prior knowledge, return the choice that is most relevant to the question: '%s'

Respond with a JSON object of the form {"choice": <number between 1 and %d>, "reason": "<short explanation>"}.`

// Selected 选择结果，Index 从 0 开始。
type Selected struct {
	Index  int
	Reason string
}

// LLMSelector 单选选择器：让 LLM 从编号列表中挑选一项。
type LLMSelector struct {
	provider llm.ChatProvider
	metrics  *metrics.DispatchMetrics
}

// NewLLMSelector creates a selector over provider. m may be nil.
func NewLLMSelector(provider llm.ChatProvider, m *metrics.DispatchMetrics) *LLMSelector {
	return &LLMSelector{provider: provider, metrics: m}
}

type selectorOutput struct {
	Choice *int   `json:"choice"`
	Reason string `json:"reason"`
}

// Select asks the LLM to pick exactly one tool.
// The model answers with a 1-based choice; the returned index is 0-based.
func (s *LLMSelector) Select(ctx context.Context, query string, tools []Tool) (*Selected, error) {
	if len(tools) == 0 {
		return nil, fmt.Errorf("selector: no tools to choose from")
	}

	start := time.Now()
	out, err := s.provider.Generate(ctx, buildSelectorPrompt(query, tools), selectorSystemPrompt,
		llm.WithJSONMode(), llm.WithTemperature(0))
	s.metrics.RecordLLMCall(time.Since(start), err)
	if err != nil {
		return nil, &LLMError{Stage: "selector", Err: err}
	}

	return parseSelection(out, len(tools))
}

func buildSelectorPrompt(query string, tools []Tool) string {
	var sb strings.Builder
	for i, t := range tools {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "(%d) %s: %s", i+1, t.Name, t.Description)
	}
	return fmt.Sprintf(selectorPromptTemplate, len(tools), sb.String(), query, len(tools))
}

func parseSelection(out string, n int) (*Selected, error) {
	var parsed selectorOutput
	if err := json.Unmarshal([]byte(extractJSONObject(out)), &parsed); err != nil {
		return nil, &SelectionError{Output: out, Reason: "not a JSON object"}
	}
	if parsed.Choice == nil {
		return nil, &SelectionError{Output: out, Reason: "missing choice"}
	}
	choice := *parsed.Choice
	if choice < 1 || choice > n {
		return nil, &SelectionError{Output: out, Reason: fmt.Sprintf("choice %d out of range 1-%d", choice, n)}
	}
	return &Selected{Index: choice - 1, Reason: parsed.Reason}, nil
}

// extractJSONObject 去掉代码围栏和前后说明文字，只保留第一个 { 到最后一个 } 之间的内容。
func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return strings.TrimSpace(s)
	}
	return s[start : end+1]
}
