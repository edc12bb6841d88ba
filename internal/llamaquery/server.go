// Package llamaquery assembles the query service: the index client, the
// dispatch pipeline and the HTTP surface in front of it.
package llamaquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/overlordausritter/beastgpt/internal/llamaquery/biz"
	"github.com/overlordausritter/beastgpt/internal/llamaquery/handler"
	"github.com/overlordausritter/beastgpt/internal/llamaquery/metrics"
	"github.com/overlordausritter/beastgpt/internal/llamaquery/router"
	"github.com/overlordausritter/beastgpt/internal/llamaquery/store"
	"github.com/overlordausritter/beastgpt/pkg/infra/app"
	"github.com/overlordausritter/beastgpt/pkg/infra/middleware"
	"github.com/overlordausritter/beastgpt/pkg/infra/pool"
	"github.com/overlordausritter/beastgpt/pkg/infra/tracing"
	"github.com/overlordausritter/beastgpt/pkg/llm"
	// 导入 LLM 供应商以自动注册
	_ "github.com/overlordausritter/beastgpt/pkg/llm/openai"
	"github.com/overlordausritter/beastgpt/pkg/llm/resilience"
	cacheopts "github.com/overlordausritter/beastgpt/pkg/options/cache"
	dispatchopts "github.com/overlordausritter/beastgpt/pkg/options/dispatch"
	llamaopts "github.com/overlordausritter/beastgpt/pkg/options/llamacloud"
	llmopts "github.com/overlordausritter/beastgpt/pkg/options/llm"
	logopts "github.com/overlordausritter/beastgpt/pkg/options/logger"
	mwopts "github.com/overlordausritter/beastgpt/pkg/options/middleware"
	poolopts "github.com/overlordausritter/beastgpt/pkg/options/pool"
	httpopts "github.com/overlordausritter/beastgpt/pkg/options/server/http"
	"github.com/overlordausritter/beastgpt/pkg/utils/httpclient"
)

const (
	// Name is the name of the application.
	Name = "llamaquery"
	// Title is the public service title.
	Title = "The Beast API"
	// APIVersion is the public API version.
	APIVersion = "2.1.0"
)

// Config contains application-related configurations.
type Config struct {
	HTTPOptions       *httpopts.Options
	LogOptions        *logopts.Options
	LlamaCloudOptions *llamaopts.Options
	LLMOptions        *llmopts.ProviderOptions
	DispatchOptions   *dispatchopts.Options
	PoolOptions       *poolopts.Options
	CacheOptions      *cacheopts.Options
	TracingOptions    *tracing.Options
	MiddlewareOptions *mwopts.Options
}

// Server represents the query server.
type Server struct {
	httpServer      *http.Server
	shutdownTimeout time.Duration

	pool           *pool.Pool
	releaseTimeout time.Duration
	tracer         *tracing.Provider
	redisClose     func()
}

// NewServer initializes and returns a new Server instance.
func (cfg *Config) NewServer(ctx context.Context) (*Server, error) {
	// 1. 初始化日志
	if err := cfg.LogOptions.Init(Name, app.GetVersion()); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Infow("Starting query service...", "title", Title, "api_version", APIVersion)

	// 2. 初始化链路追踪
	tracer, err := tracing.NewProvider(ctx, cfg.TracingOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	logger.Infow("Tracing initialized", "enabled", tracer.Enabled())

	// 3. 初始化上游 HTTP 客户端
	lc := cfg.LlamaCloudOptions
	cloudClient := httpclient.NewClient(&httpclient.Config{
		ConnectTimeout:  lc.ConnectTimeout,
		ReadTimeout:     lc.ReadTimeout,
		WriteTimeout:    lc.WriteTimeout,
		PoolTimeout:     lc.PoolTimeout,
		MaxConns:        lc.MaxConns,
		MaxIdleConns:    httpclient.DefaultConfig().MaxIdleConns,
		IdleConnTimeout: httpclient.DefaultConfig().IdleConnTimeout,
	})

	// 4. 初始化 Store 层，密钥在启动时解析一次
	creds := biz.Credentials{
		LlamaAPIKey:  lc.ResolveAPIKey(),
		OpenAIAPIKey: cfg.LLMOptions.ResolveAPIKey(),
	}
	indexStore := store.NewLlamaCloudStore(cloudClient, &store.LlamaCloudConfig{
		BaseURL:        lc.BaseURL,
		APIKey:         creds.LlamaAPIKey,
		OrganizationID: lc.OrganizationID,
		ProjectName:    lc.ProjectName,
		IDCacheTTL:     lc.IDCacheTTL,
	})
	logger.Infow("Index store initialized",
		"base_url", lc.BaseURL,
		"project", lc.ProjectName,
		"indices", len(lc.Indices),
		"credentials", creds.String(),
	)

	// 5. 初始化 Redis 客户端（用于缓存）
	queryCache, redisClose := newQueryCache(ctx, cfg.CacheOptions)

	// 6. 初始化 LLM 供应商，未配置密钥时按请求报错
	dm := metrics.NewDispatchMetrics()
	chatProvider, breaker, err := newChatProvider(cfg.LLMOptions, creds.OpenAIAPIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat provider: %w", err)
	}

	// 7. 初始化检索工作池
	workerPool, err := pool.NewPool("retrieval", cfg.PoolOptions.Config())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize worker pool: %w", err)
	}

	// 8. 初始化 Biz 层
	d := cfg.DispatchOptions
	indices := make([]store.IndexRef, 0, len(lc.Indices))
	for _, idx := range lc.Indices {
		indices = append(indices, store.IndexRef{Name: idx.Name, Description: idx.Description})
	}
	synthesizer := biz.NewRefineSynthesizer(chatProvider, &biz.SynthesizerConfig{
		Temperature: d.Synthesis.Temperature,
		Budget:      d.Normalizer.Budget(),
	}, dm)
	strategy, err := biz.NewStrategy(&biz.StrategyConfig{
		Name:    d.Strategy,
		Store:   indexStore,
		Indices: indices,
		Composite: &store.CompositeSpec{
			Name:       lc.CompositeRetrieverName,
			Indices:    indices,
			RerankTopN: lc.RerankTopN,
		},
		Selector:   biz.NewLLMSelector(chatProvider, dm),
		Synthesize: synthesizer,
	})
	if err != nil {
		workerPool.Release()
		return nil, fmt.Errorf("failed to initialize strategy: %w", err)
	}

	deps := biz.DispatcherDeps{
		Strategy:    strategy,
		Credentials: biz.NewCredentialResolver(creds, d.NeedsLLM()),
		Executor: biz.NewExecutor(workerPool, &biz.ExecutorConfig{
			MaxAttempts: d.Retry.MaxAttempts,
			Backoff:     d.Retry.Backoff,
		}, dm),
		Normalizer: biz.NewNormalizer(&biz.NormalizerConfig{
			Truncate:        d.Normalizer.Truncate,
			Budget:          d.Normalizer.Budget(),
			StreamThreshold: d.Stream.Threshold,
		}),
		Cache:   queryCache,
		Metrics: dm,
	}
	if d.Synthesis.Enabled {
		deps.Synthesizer = synthesizer
	}
	dispatcher := biz.NewDispatcher(deps)
	logger.Infow("Dispatcher initialized",
		"strategy", strategy.Name(),
		"retry.max_attempts", d.Retry.MaxAttempts,
		"retry.backoff", d.Retry.Backoff.String(),
		"synthesis.enabled", d.Synthesis.Enabled,
		"truncate", d.Normalizer.Truncate,
		"cache.enabled", queryCache != nil,
	)

	// 9. 初始化 HTTP 引擎与路由
	gin.SetMode(cfg.HTTPOptions.Mode)
	engine := gin.New()
	handlers, err := middleware.Build(cfg.MiddlewareOptions)
	if err != nil {
		workerPool.Release()
		return nil, fmt.Errorf("failed to build middleware: %w", err)
	}
	engine.Use(handlers...)

	routes := &router.Handlers{Query: handler.NewQueryHandler(dispatcher)}
	if d.MetricsEnabled {
		routes.Metrics = handler.NewMetricsHandler(dm, workerPool, breaker)
	}
	router.Register(engine, routes)

	logger.Info("Query service is ready")
	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.HTTPOptions.Addr,
			Handler:      engine,
			ReadTimeout:  cfg.HTTPOptions.ReadTimeout,
			WriteTimeout: cfg.HTTPOptions.WriteTimeout,
			IdleTimeout:  cfg.HTTPOptions.IdleTimeout,
		},
		shutdownTimeout: cfg.HTTPOptions.ShutdownTimeout,
		pool:            workerPool,
		releaseTimeout:  cfg.PoolOptions.ReleaseTimeout,
		tracer:          tracer,
		redisClose:      redisClose,
	}, nil
}

// newQueryCache 连接 Redis；连接失败时降级为不缓存。
func newQueryCache(ctx context.Context, opts *cacheopts.Options) (*biz.QueryCache, func()) {
	if opts == nil || !opts.Enabled {
		logger.Info("Cache is disabled")
		return nil, nil
	}

	r := opts.Redis
	client := goredis.NewClient(&goredis.Options{
		Addr:         r.Addr(),
		Password:     r.Password,
		DB:           r.Database,
		MaxRetries:   r.MaxRetries,
		PoolSize:     r.PoolSize,
		MinIdleConns: r.MinIdleConns,
		DialTimeout:  r.DialTimeout,
		ReadTimeout:  r.ReadTimeout,
		WriteTimeout: r.WriteTimeout,
		PoolTimeout:  r.PoolTimeout,
	})

	// 测试 Redis 连接
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warnw("failed to connect to redis, cache will be disabled", "error", err.Error())
		_ = client.Close()
		return nil, nil
	}

	logger.Infow("Redis cache initialized", "addr", r.Addr(), "ttl", opts.TTL.String())
	return biz.NewQueryCache(client, &biz.QueryCacheConfig{
		Enabled:   true,
		TTL:       opts.TTL,
		KeyPrefix: opts.KeyPrefix,
	}), func() { _ = client.Close() }
}

// newChatProvider builds the LLM provider. Without a key it returns nil and the
// credential check rejects requests that need it.
func newChatProvider(opts *llmopts.ProviderOptions, apiKey string) (llm.ChatProvider, *resilience.CircuitBreaker, error) {
	if apiKey == "" {
		logger.Warnw("LLM API key not set, LLM-backed features will fail per request", "env", llmopts.APIKeyEnv)
		return nil, nil, nil
	}

	conf := opts.ToConfigMap()
	conf["http_client"] = httpclient.NewClient(&httpclient.Config{
		ConnectTimeout:  10 * time.Second,
		ReadTimeout:     opts.Timeout,
		WriteTimeout:    10 * time.Second,
		PoolTimeout:     10 * time.Second,
		MaxConns:        httpclient.DefaultConfig().MaxConns,
		MaxIdleConns:    httpclient.DefaultConfig().MaxIdleConns,
		IdleConnTimeout: httpclient.DefaultConfig().IdleConnTimeout,
	}).HTTPClient()

	provider, err := llm.NewChatProvider(opts.Provider, conf)
	if err != nil {
		return nil, nil, err
	}
	logger.Infow("Chat provider initialized", "provider", opts.Provider, "model", opts.Model)

	if !opts.CircuitBreaker {
		return provider, nil, nil
	}
	wrapped := wrapChatProvider(provider, opts)
	return wrapped, wrapped.CircuitBreaker(), nil
}

// wrapChatProvider 只加熔断。LLM 调用只尝试一次，重试由执行器负责且只针对索引存储。
func wrapChatProvider(provider llm.ChatProvider, opts *llmopts.ProviderOptions) *resilience.ResilientChatProvider {
	return resilience.NewResilientChatProvider(provider,
		&resilience.RetryConfig{MaxAttempts: 1},
		&resilience.CircuitBreakerConfig{
			MaxFailures:      opts.BreakerMaxFailures,
			Timeout:          opts.BreakerTimeout,
			HalfOpenMaxCalls: 1,
		})
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	defer s.cleanup()

	errCh := make(chan error, 1)
	go func() {
		logger.Infow("HTTP server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down query service...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	logger.Info("Query service stopped")
	return nil
}

func (s *Server) cleanup() {
	if err := s.pool.ReleaseTimeout(s.releaseTimeout); err != nil {
		logger.Warnw("worker pool release timed out", "error", err.Error())
	}
	if s.redisClose != nil {
		s.redisClose()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.tracer.Shutdown(ctx); err != nil {
		logger.Warnw("tracer shutdown failed", "error", err.Error())
	}
	_ = logger.Flush()
}
