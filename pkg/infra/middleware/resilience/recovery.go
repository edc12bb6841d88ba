// Package resilience provides panic recovery for HTTP handlers.
package resilience

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/overlordausritter/beastgpt/pkg/infra/middleware/requestutil"
	mwopts "github.com/overlordausritter/beastgpt/pkg/options/middleware"
	"github.com/overlordausritter/beastgpt/pkg/utils/errors"
	"github.com/overlordausritter/beastgpt/pkg/utils/response"
)

// PanicHandler 定义 panic 处理器类型。
type PanicHandler func(c *gin.Context, err interface{}, stack []byte)

// RecoveryWithOptions 返回 Recovery 中间件。
// 完整堆栈始终写入日志；只有 EnableStackTrace 打开时才返回给客户端。
func RecoveryWithOptions(opts mwopts.RecoveryOptions, onPanic PanicHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			stack := debug.Stack()

			logger.Errorw("panic recovered",
				"panic", r,
				"stack_trace", string(stack),
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
				"request_id", requestutil.GetRequestID(c.Request.Context()),
			)

			if onPanic != nil {
				onPanic(c, r, stack)
			}

			err := errors.ErrInternal
			if opts.EnableStackTrace {
				err = err.WithMessage(fmt.Sprintf("panic: %v\n%s", r, stack))
			}
			if c.Writer.Written() {
				c.Abort()
				return
			}
			response.Fail(c, err)
		}()
		c.Next()
	}
}
