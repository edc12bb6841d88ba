package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/overlordausritter/beastgpt/pkg/infra/middleware/requestutil"
	mwopts "github.com/overlordausritter/beastgpt/pkg/options/middleware"
)

// RequestIDWithOptions 返回请求 ID 中间件。
// 已携带请求 ID 的请求沿用原值，否则生成新 ID；ID 写入响应头和请求上下文。
func RequestIDWithOptions(opts mwopts.RequestIDOptions) gin.HandlerFunc {
	header := opts.Header
	if header == "" {
		header = requestutil.HeaderXRequestID
	}
	gen := requestutil.NewGenerator(opts.GeneratorType)

	return func(c *gin.Context) {
		requestID := c.GetHeader(header)
		if requestID == "" {
			requestID = gen.Generate()
		}

		c.Header(header, requestID)
		c.Request = c.Request.WithContext(requestutil.WithRequestID(c.Request.Context(), requestID))
		c.Next()
	}
}
