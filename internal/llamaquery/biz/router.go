package biz

import (
	"context"
	"fmt"

	"github.com/kart-io/logger"

	"github.com/overlordausritter/beastgpt/internal/llamaquery/model"
	"github.com/overlordausritter/beastgpt/internal/llamaquery/store"
	dispatchopts "github.com/overlordausritter/beastgpt/pkg/options/dispatch"
)

// Tool 路由器可选择的一项能力。
type Tool struct {
	Name        string
	Description string
}

func toolsFromIndices(indices []store.IndexRef) []Tool {
	tools := make([]Tool, 0, len(indices))
	for _, idx := range indices {
		tools = append(tools, Tool{Name: idx.Name, Description: idx.Description})
	}
	return tools
}

// RouterRetrieverStrategy 由 LLM 选择一个索引，再在该索引上检索。
type RouterRetrieverStrategy struct {
	store    store.IndexStore
	selector *LLMSelector
	tools    []Tool
}

// NewRouterRetrieverStrategy creates a retriever-level router.
func NewRouterRetrieverStrategy(s store.IndexStore, selector *LLMSelector, indices []store.IndexRef) *RouterRetrieverStrategy {
	return &RouterRetrieverStrategy{store: s, selector: selector, tools: toolsFromIndices(indices)}
}

func (s *RouterRetrieverStrategy) Name() string  { return dispatchopts.StrategyRouter }
func (s *RouterRetrieverStrategy) NeedsLLM() bool { return true }

// Execute selects one tool and delegates retrieval to it.
func (s *RouterRetrieverStrategy) Execute(ctx context.Context, query string) (*model.Retrieval, error) {
	sel, err := s.selector.Select(ctx, query, s.tools)
	if err != nil {
		return nil, err
	}
	tool := s.tools[sel.Index]
	logger.Debugw("router selected index", "index", tool.Name, "reason", sel.Reason)

	nodes, err := s.store.RetrieveIndex(ctx, tool.Name, query)
	if err != nil {
		return nil, err
	}
	return &model.Retrieval{Nodes: nodes}, nil
}

// RouterEngineStrategy 由 LLM 选择一个查询引擎（检索 + refine 合成）。
type RouterEngineStrategy struct {
	store       store.IndexStore
	selector    *LLMSelector
	synthesizer *RefineSynthesizer
	tools       []Tool
}

// NewRouterEngineStrategy creates an engine-level router with synthesis.
func NewRouterEngineStrategy(s store.IndexStore, selector *LLMSelector, synth *RefineSynthesizer, indices []store.IndexRef) *RouterEngineStrategy {
	return &RouterEngineStrategy{store: s, selector: selector, synthesizer: synth, tools: toolsFromIndices(indices)}
}

func (s *RouterEngineStrategy) Name() string  { return dispatchopts.StrategyRouterEngine }
func (s *RouterEngineStrategy) NeedsLLM() bool { return true }

// Execute selects an engine, retrieves from it and synthesizes an answer.
func (s *RouterEngineStrategy) Execute(ctx context.Context, query string) (*model.Retrieval, error) {
	sel, err := s.selector.Select(ctx, query, s.tools)
	if err != nil {
		return nil, err
	}
	tool := s.tools[sel.Index]

	nodes, err := s.store.RetrieveIndex(ctx, tool.Name, query)
	if err != nil {
		return nil, err
	}

	answer, err := s.synthesizer.Synthesize(ctx, query, nodes)
	if err != nil {
		return nil, fmt.Errorf("synthesize answer with %q: %w", tool.Name, err)
	}

	return &model.Retrieval{
		Nodes:        nodes,
		SelectedTool: tool.Name,
		Answer:       &answer,
		SelectorMetadata: &model.SelectorMetadata{
			Selections: []model.Selection{{Index: sel.Index, Reason: sel.Reason}},
		},
	}, nil
}
