// Package middleware 按配置顺序组装 HTTP 中间件链。
package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/overlordausritter/beastgpt/pkg/infra/middleware/observability"
	"github.com/overlordausritter/beastgpt/pkg/infra/middleware/performance"
	"github.com/overlordausritter/beastgpt/pkg/infra/middleware/resilience"
	mwopts "github.com/overlordausritter/beastgpt/pkg/options/middleware"
)

// Build 返回 opts.Middleware 中列出的中间件，保持配置顺序。
func Build(opts *mwopts.Options) ([]gin.HandlerFunc, error) {
	if err := opts.Complete(); err != nil {
		return nil, err
	}

	handlers := make([]gin.HandlerFunc, 0, len(opts.Middleware))
	for _, name := range opts.Middleware {
		switch name {
		case mwopts.MiddlewareRecovery:
			handlers = append(handlers, resilience.RecoveryWithOptions(*opts.Recovery, nil))
		case mwopts.MiddlewareRequestID:
			handlers = append(handlers, RequestIDWithOptions(*opts.RequestID))
		case mwopts.MiddlewareLogger:
			handlers = append(handlers, observability.LoggerWithOptions(*opts.Logger))
		case mwopts.MiddlewareTracing:
			handlers = append(handlers, observability.TracingWithOptions(*opts.Tracing))
		case mwopts.MiddlewareCompression:
			handlers = append(handlers, performance.CompressionWithOptions(*opts.Compression))
		default:
			return nil, fmt.Errorf("unknown middleware %q", name)
		}
	}
	return handlers, nil
}
