// Package observability provides access logging and tracing middleware.
package observability

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/overlordausritter/beastgpt/pkg/infra/middleware/requestutil"
	"github.com/overlordausritter/beastgpt/pkg/infra/tracing"
	mwopts "github.com/overlordausritter/beastgpt/pkg/options/middleware"
)

// LoggerWithOptions 返回访问日志中间件，每个请求完成后输出一条结构化日志。
func LoggerWithOptions(opts mwopts.LoggerOptions) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(opts.SkipPaths))
	for _, p := range opts.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if _, ok := skip[path]; ok {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		ctx := c.Request.Context()
		fields := []interface{}{
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
			"bytes", c.Writer.Size(),
		}
		if id := requestutil.GetRequestID(ctx); id != "" {
			fields = append(fields, "request_id", id)
		}
		if traceID := tracing.TraceIDFromContext(ctx); traceID != "" {
			fields = append(fields, "trace_id", traceID)
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "errors", c.Errors.String())
		}

		switch status := c.Writer.Status(); {
		case status >= 500:
			logger.Errorw("HTTP request", fields...)
		case status >= 400:
			logger.Warnw("HTTP request", fields...)
		default:
			logger.Infow("HTTP request", fields...)
		}
	}
}
