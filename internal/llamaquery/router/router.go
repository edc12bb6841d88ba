// Package router registers the query service routes.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/overlordausritter/beastgpt/internal/llamaquery/handler"
)

// Handlers groups the handlers mounted on the engine.
type Handlers struct {
	Query *handler.QueryHandler
	// Metrics 为 nil 时不注册 /metrics。
	Metrics *handler.MetricsHandler
}

// Register registers the query service routes.
func Register(engine *gin.Engine, h *Handlers) {
	logger.Info("Registering llamaquery routes...")

	engine.GET("/", handler.Root)
	engine.GET("/healthz", handler.Healthz)

	// Query endpoint
	engine.POST("/llamaquery", h.Query.Query)

	if h.Metrics != nil {
		engine.GET("/metrics", h.Metrics.Metrics)
	}

	engine.NoRoute(handler.NoRoute)

	logger.Infow("HTTP routes registered", "routes", len(engine.Routes()))
}
