// Package metrics 提供查询分发服务的业务指标收集。
package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// DispatchMetrics 查询分发业务指标。所有方法对 nil 接收者安全。
type DispatchMetrics struct {
	// 查询指标
	queriesTotal    uint64 // 总查询次数
	queriesEmpty    uint64 // 空结果次数
	queriesStreamed uint64 // 流式响应次数
	cacheHits       uint64 // 缓存命中次数
	cacheMisses     uint64 // 缓存未命中次数

	// 上游调用指标
	attemptsTotal uint64 // 检索尝试次数
	retriesTotal  uint64 // 重试次数

	// LLM 调用指标
	llmCallsTotal  uint64 // LLM 总调用次数
	llmCallsErrors uint64 // LLM 调用错误次数

	// 熔断器状态 (0=closed, 1=open, 2=half-open)
	circuitBreakerState int32

	mu     sync.Mutex
	errors map[string]uint64 // 按错误类型统计

	durationMu      sync.Mutex
	strategySeconds map[string]float64 // 每种策略的累计耗时
	strategyCount   map[string]uint64
	llmSeconds      float64

	startTime time.Time
}

// NewDispatchMetrics 创建指标实例。
func NewDispatchMetrics() *DispatchMetrics {
	return &DispatchMetrics{
		errors:          make(map[string]uint64),
		strategySeconds: make(map[string]float64),
		strategyCount:   make(map[string]uint64),
		startTime:       time.Now(),
	}
}

// RecordQuery 记录一次查询。kind 为空表示成功。
func (m *DispatchMetrics) RecordQuery(strategy string, duration time.Duration, kind string) {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.queriesTotal, 1)

	if kind != "" {
		m.mu.Lock()
		m.errors[kind]++
		m.mu.Unlock()
		return
	}

	m.durationMu.Lock()
	m.strategySeconds[strategy] += duration.Seconds()
	m.strategyCount[strategy]++
	m.durationMu.Unlock()
}

// RecordEmpty 记录空结果。
func (m *DispatchMetrics) RecordEmpty() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.queriesEmpty, 1)
}

// RecordStreamed 记录流式响应。
func (m *DispatchMetrics) RecordStreamed() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.queriesStreamed, 1)
}

// RecordCache 记录缓存命中或未命中。
func (m *DispatchMetrics) RecordCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		atomic.AddUint64(&m.cacheHits, 1)
	} else {
		atomic.AddUint64(&m.cacheMisses, 1)
	}
}

// RecordAttempt 记录一次上游尝试。
func (m *DispatchMetrics) RecordAttempt() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.attemptsTotal, 1)
}

// RecordRetry 记录一次重试。
func (m *DispatchMetrics) RecordRetry() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.retriesTotal, 1)
}

// RecordLLMCall 记录 LLM 调用。
func (m *DispatchMetrics) RecordLLMCall(duration time.Duration, err error) {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.llmCallsTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.llmCallsErrors, 1)
		return
	}
	m.durationMu.Lock()
	m.llmSeconds += duration.Seconds()
	m.durationMu.Unlock()
}

// SetCircuitBreakerState 记录熔断器状态。
func (m *DispatchMetrics) SetCircuitBreakerState(state int32) {
	if m == nil {
		return
	}
	atomic.StoreInt32(&m.circuitBreakerState, state)
}

// Snapshot 指标快照，用于 /metrics 的 JSON 输出。
type Snapshot struct {
	QueriesTotal        uint64             `json:"queries_total"`
	QueriesEmpty        uint64             `json:"queries_empty"`
	QueriesStreamed     uint64             `json:"queries_streamed"`
	Errors              map[string]uint64  `json:"errors"`
	CacheHits           uint64             `json:"cache_hits"`
	CacheMisses         uint64             `json:"cache_misses"`
	AttemptsTotal       uint64             `json:"upstream_attempts_total"`
	RetriesTotal        uint64             `json:"upstream_retries_total"`
	LLMCallsTotal       uint64             `json:"llm_calls_total"`
	LLMCallsErrors      uint64             `json:"llm_calls_errors"`
	AvgLLMSeconds       float64            `json:"avg_llm_seconds"`
	AvgStrategySeconds  map[string]float64 `json:"avg_strategy_seconds"`
	CircuitBreakerState int32              `json:"circuit_breaker_state"`
	UptimeSeconds       float64            `json:"uptime_seconds"`
}

// Snapshot 返回当前统计信息。
func (m *DispatchMetrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{Errors: map[string]uint64{}, AvgStrategySeconds: map[string]float64{}}
	}

	s := Snapshot{
		QueriesTotal:        atomic.LoadUint64(&m.queriesTotal),
		QueriesEmpty:        atomic.LoadUint64(&m.queriesEmpty),
		QueriesStreamed:     atomic.LoadUint64(&m.queriesStreamed),
		CacheHits:           atomic.LoadUint64(&m.cacheHits),
		CacheMisses:         atomic.LoadUint64(&m.cacheMisses),
		AttemptsTotal:       atomic.LoadUint64(&m.attemptsTotal),
		RetriesTotal:        atomic.LoadUint64(&m.retriesTotal),
		LLMCallsTotal:       atomic.LoadUint64(&m.llmCallsTotal),
		LLMCallsErrors:      atomic.LoadUint64(&m.llmCallsErrors),
		CircuitBreakerState: atomic.LoadInt32(&m.circuitBreakerState),
		UptimeSeconds:       time.Since(m.startTime).Seconds(),
		Errors:              make(map[string]uint64),
		AvgStrategySeconds:  make(map[string]float64),
	}

	m.mu.Lock()
	for k, v := range m.errors {
		s.Errors[k] = v
	}
	m.mu.Unlock()

	m.durationMu.Lock()
	for k, total := range m.strategySeconds {
		if n := m.strategyCount[k]; n > 0 {
			s.AvgStrategySeconds[k] = total / float64(n)
		}
	}
	llmOK := s.LLMCallsTotal - s.LLMCallsErrors
	if llmOK > 0 {
		s.AvgLLMSeconds = m.llmSeconds / float64(llmOK)
	}
	m.durationMu.Unlock()

	return s
}

// Export 导出 Prometheus 文本格式指标。
func (m *DispatchMetrics) Export(namespace, subsystem string) string {
	s := m.Snapshot()

	prefix := namespace
	if subsystem != "" {
		prefix = prefix + "_" + subsystem
	}

	var sb strings.Builder
	counter := func(name, help string, v uint64) {
		fmt.Fprintf(&sb, "# HELP %s_%s %s\n", prefix, name, help)
		fmt.Fprintf(&sb, "# TYPE %s_%s counter\n", prefix, name)
		fmt.Fprintf(&sb, "%s_%s %d\n\n", prefix, name, v)
	}

	counter("queries_total", "Total number of queries.", s.QueriesTotal)
	counter("queries_empty_total", "Queries that returned no nodes.", s.QueriesEmpty)
	counter("queries_streamed_total", "Queries answered as NDJSON streams.", s.QueriesStreamed)
	counter("cache_hits_total", "Result cache hits.", s.CacheHits)
	counter("cache_misses_total", "Result cache misses.", s.CacheMisses)
	counter("upstream_attempts_total", "Upstream retrieval attempts.", s.AttemptsTotal)
	counter("upstream_retries_total", "Upstream retrieval retries.", s.RetriesTotal)
	counter("llm_calls_total", "Total number of LLM calls.", s.LLMCallsTotal)
	counter("llm_calls_errors_total", "Number of LLM call errors.", s.LLMCallsErrors)

	// 按错误类型
	kinds := make([]string, 0, len(s.Errors))
	for k := range s.Errors {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	fmt.Fprintf(&sb, "# HELP %s_errors_total Query errors by kind.\n", prefix)
	fmt.Fprintf(&sb, "# TYPE %s_errors_total counter\n", prefix)
	for _, k := range kinds {
		fmt.Fprintf(&sb, "%s_errors_total{kind=%q} %d\n", prefix, k, s.Errors[k])
	}
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "# HELP %s_circuit_breaker_state Circuit breaker state (0=closed, 1=open, 2=half-open).\n", prefix)
	fmt.Fprintf(&sb, "# TYPE %s_circuit_breaker_state gauge\n", prefix)
	fmt.Fprintf(&sb, "%s_circuit_breaker_state %d\n\n", prefix, s.CircuitBreakerState)

	fmt.Fprintf(&sb, "# HELP %s_uptime_seconds Service uptime in seconds.\n", prefix)
	fmt.Fprintf(&sb, "# TYPE %s_uptime_seconds gauge\n", prefix)
	fmt.Fprintf(&sb, "%s_uptime_seconds %.2f\n", prefix, s.UptimeSeconds)

	return sb.String()
}
