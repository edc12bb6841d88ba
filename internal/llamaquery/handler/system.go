package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/overlordausritter/beastgpt/internal/llamaquery/metrics"
	"github.com/overlordausritter/beastgpt/pkg/infra/pool"
	"github.com/overlordausritter/beastgpt/pkg/llm/resilience"
	"github.com/overlordausritter/beastgpt/pkg/utils/errors"
	"github.com/overlordausritter/beastgpt/pkg/utils/response"
)

// RootMessage is returned by GET /.
type RootMessage struct {
	Message  string `json:"message"`
	Endpoint string `json:"endpoint"`
}

// Root 服务存活信息。
func Root(c *gin.Context) {
	response.JSON(c, http.StatusOK, RootMessage{
		Message:  "The Beast API is running",
		Endpoint: "/llamaquery",
	})
}

// Healthz 健康检查。
func Healthz(c *gin.Context) {
	response.JSON(c, http.StatusOK, gin.H{"status": "ok"})
}

// NoRoute 未注册路由。
func NoRoute(c *gin.Context) {
	response.Fail(c, errors.ErrNotFound)
}

// MetricsHandler exposes dispatch counters, pool stats and breaker state.
type MetricsHandler struct {
	metrics *metrics.DispatchMetrics
	pool    *pool.Pool
	breaker *resilience.CircuitBreaker
}

// NewMetricsHandler creates a MetricsHandler. breaker may be nil.
func NewMetricsHandler(m *metrics.DispatchMetrics, p *pool.Pool, breaker *resilience.CircuitBreaker) *MetricsHandler {
	return &MetricsHandler{metrics: m, pool: p, breaker: breaker}
}

// MetricsReport is the JSON body of GET /metrics.
type MetricsReport struct {
	Dispatch       metrics.Snapshot         `json:"dispatch"`
	Pool           *pool.Stats              `json:"pool,omitempty"`
	CircuitBreaker *resilience.BreakerStats `json:"circuit_breaker,omitempty"`
}

// Metrics 返回 JSON 快照；?format=prometheus 时返回文本格式。
func (h *MetricsHandler) Metrics(c *gin.Context) {
	if h.breaker != nil {
		h.metrics.SetCircuitBreakerState(int32(h.breaker.State()))
	}

	if c.Query("format") == "prometheus" {
		c.Data(http.StatusOK, "text/plain; version=0.0.4; charset=utf-8",
			[]byte(h.metrics.Export("llamaquery", "dispatch")))
		return
	}

	report := MetricsReport{Dispatch: h.metrics.Snapshot()}
	if h.pool != nil {
		stats := h.pool.Stats()
		report.Pool = &stats
	}
	if h.breaker != nil {
		stats := h.breaker.Stats()
		report.CircuitBreaker = &stats
	}
	response.JSON(c, http.StatusOK, report)
}
