package biz

import (
	"context"
	"fmt"

	"github.com/overlordausritter/beastgpt/internal/llamaquery/model"
	"github.com/overlordausritter/beastgpt/internal/llamaquery/store"
	dispatchopts "github.com/overlordausritter/beastgpt/pkg/options/dispatch"
)

// Strategy 检索策略。每个部署通过配置选择一种。
type Strategy interface {
	// Name 返回策略名称。
	Name() string
	// NeedsLLM 策略自身是否调用 LLM。
	NeedsLLM() bool
	// Execute 对查询执行一次检索。
	Execute(ctx context.Context, query string) (*model.Retrieval, error)
}

// StrategyConfig 构建策略所需的依赖。
type StrategyConfig struct {
	Name       string
	Store      store.IndexStore
	Indices    []store.IndexRef
	Composite  *store.CompositeSpec
	Selector   *LLMSelector
	Synthesize *RefineSynthesizer
}

// NewStrategy builds the strategy named by cfg.Name.
func NewStrategy(cfg *StrategyConfig) (Strategy, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("strategy %q: index store is required", cfg.Name)
	}
	if len(cfg.Indices) == 0 {
		return nil, fmt.Errorf("strategy %q: at least one index is required", cfg.Name)
	}

	switch cfg.Name {
	case dispatchopts.StrategySingle:
		return NewSingleIndexStrategy(cfg.Store, cfg.Indices[0].Name), nil
	case dispatchopts.StrategyComposite:
		if cfg.Composite == nil {
			return nil, fmt.Errorf("strategy %q: composite spec is required", cfg.Name)
		}
		return NewCompositeStrategy(cfg.Store, cfg.Composite), nil
	case dispatchopts.StrategyRouter:
		if cfg.Selector == nil {
			return nil, fmt.Errorf("strategy %q: selector is required", cfg.Name)
		}
		return NewRouterRetrieverStrategy(cfg.Store, cfg.Selector, cfg.Indices), nil
	case dispatchopts.StrategyRouterEngine:
		if cfg.Selector == nil || cfg.Synthesize == nil {
			return nil, fmt.Errorf("strategy %q: selector and synthesizer are required", cfg.Name)
		}
		return NewRouterEngineStrategy(cfg.Store, cfg.Selector, cfg.Synthesize, cfg.Indices), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", cfg.Name)
	}
}

// SingleIndexStrategy 在一个固定索引上检索。
type SingleIndexStrategy struct {
	store store.IndexStore
	index string
}

// NewSingleIndexStrategy creates a strategy bound to one index.
func NewSingleIndexStrategy(s store.IndexStore, index string) *SingleIndexStrategy {
	return &SingleIndexStrategy{store: s, index: index}
}

func (s *SingleIndexStrategy) Name() string  { return dispatchopts.StrategySingle }
func (s *SingleIndexStrategy) NeedsLLM() bool { return false }

// Execute retrieves from the bound index.
func (s *SingleIndexStrategy) Execute(ctx context.Context, query string) (*model.Retrieval, error) {
	nodes, err := s.store.RetrieveIndex(ctx, s.index, query)
	if err != nil {
		return nil, err
	}
	return &model.Retrieval{Nodes: nodes}, nil
}

// CompositeStrategy 合并多个索引的结果并统一重排。
type CompositeStrategy struct {
	store store.IndexStore
	spec  *store.CompositeSpec
}

// NewCompositeStrategy creates a merge-and-rerank strategy.
func NewCompositeStrategy(s store.IndexStore, spec *store.CompositeSpec) *CompositeStrategy {
	return &CompositeStrategy{store: s, spec: spec}
}

func (s *CompositeStrategy) Name() string  { return dispatchopts.StrategyComposite }
func (s *CompositeStrategy) NeedsLLM() bool { return false }

// Execute retrieves through the composite retriever.
func (s *CompositeStrategy) Execute(ctx context.Context, query string) (*model.Retrieval, error) {
	nodes, err := s.store.RetrieveComposite(ctx, s.spec, query)
	if err != nil {
		return nil, err
	}
	return &model.Retrieval{Nodes: nodes}, nil
}
