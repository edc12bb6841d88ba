package biz

import (
	"context"
	"time"

	"github.com/kart-io/logger"
	"go.opentelemetry.io/otel/attribute"

	"github.com/overlordausritter/beastgpt/internal/llamaquery/metrics"
	"github.com/overlordausritter/beastgpt/internal/llamaquery/model"
	"github.com/overlordausritter/beastgpt/pkg/infra/tracing"
	dispatchopts "github.com/overlordausritter/beastgpt/pkg/options/dispatch"
)

// Dispatcher 查询分发器，启动时构建一次，每个请求运行一遍流水线。
type Dispatcher interface {
	// Dispatch validates the raw body and runs the pipeline.
	Dispatch(ctx context.Context, body []byte) (*model.QueryResponse, error)
	// Query runs the pipeline for an already validated query.
	Query(ctx context.Context, query string) (*model.QueryResponse, error)
}

// DispatcherDeps 分发器依赖。
type DispatcherDeps struct {
	Strategy    Strategy
	Credentials *CredentialResolver
	Executor    *Executor
	Normalizer  *Normalizer
	// Synthesizer 非空时为非路由策略追加合成答案。
	Synthesizer *RefineSynthesizer
	Cache       *QueryCache
	Metrics     *metrics.DispatchMetrics
}

type dispatcher struct {
	deps   DispatcherDeps
	routed bool
}

// NewDispatcher creates the query dispatcher.
func NewDispatcher(deps DispatcherDeps) Dispatcher {
	return &dispatcher{
		deps:   deps,
		routed: deps.Strategy.Name() == dispatchopts.StrategyRouterEngine,
	}
}

// Dispatch validates the raw body and runs the pipeline.
func (d *dispatcher) Dispatch(ctx context.Context, body []byte) (*model.QueryResponse, error) {
	query, err := ParseQuery(body)
	if err != nil {
		d.deps.Metrics.RecordQuery(d.deps.Strategy.Name(), 0, KindOf(err))
		return nil, err
	}
	return d.Query(ctx, query)
}

// Query runs credential check, retrieval, optional synthesis and normalization.
func (d *dispatcher) Query(ctx context.Context, query string) (resp *model.QueryResponse, err error) {
	strategy := d.deps.Strategy.Name()
	start := time.Now()

	ctx, span := tracing.StartSpan(ctx, "llamaquery.dispatch", attribute.String(tracing.QueryStrategy, strategy))
	defer func() {
		d.deps.Metrics.RecordQuery(strategy, time.Since(start), KindOf(err))
		if err != nil {
			tracing.RecordError(ctx, err)
		}
		span.End()
	}()

	if err := d.deps.Credentials.Check(); err != nil {
		return nil, err
	}

	if cached, cerr := d.deps.Cache.Get(ctx, strategy, query); cerr == nil && cached != nil {
		d.deps.Metrics.RecordCache(true)
		return cached, nil
	} else if d.deps.Cache.enabled() {
		d.deps.Metrics.RecordCache(false)
	}

	retrieval, err := Execute(ctx, d.deps.Executor, "retrieve", func(ctx context.Context) (*model.Retrieval, error) {
		return d.deps.Strategy.Execute(ctx, query)
	})
	if err != nil {
		logger.Warnw("query failed", "strategy", strategy, "error", err.Error())
		return nil, classifyError(err, d.routed)
	}

	if d.deps.Synthesizer != nil && !d.routed && len(retrieval.Nodes) > 0 {
		answer, err := Execute(ctx, d.deps.Executor, "synthesize", func(ctx context.Context) (string, error) {
			return d.deps.Synthesizer.Synthesize(ctx, query, retrieval.Nodes)
		})
		if err != nil {
			logger.Warnw("synthesis failed", "strategy", strategy, "error", err.Error())
			return nil, classifyError(err, d.routed)
		}
		retrieval.Answer = &answer
	}

	resp = d.deps.Normalizer.Normalize(query, retrieval)
	span.SetAttributes(attribute.Int(tracing.QueryNodes, len(resp.Results)))

	if len(resp.Results) == 0 {
		d.deps.Metrics.RecordEmpty()
	}
	if resp.Streamed {
		d.deps.Metrics.RecordStreamed()
	}

	if err := d.deps.Cache.Set(ctx, strategy, query, resp); err != nil {
		logger.Debugw("response not cached", "error", err.Error())
	}

	logger.Infow("query served",
		"strategy", strategy,
		"results", len(resp.Results),
		"streamed", resp.Streamed,
		"duration", time.Since(start).String(),
	)
	return resp, nil
}
