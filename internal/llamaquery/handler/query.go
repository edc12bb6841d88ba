// Package handler provides HTTP handlers for the query service.
package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/overlordausritter/beastgpt/internal/llamaquery/biz"
	"github.com/overlordausritter/beastgpt/pkg/utils/errors"
	"github.com/overlordausritter/beastgpt/pkg/utils/json"
	"github.com/overlordausritter/beastgpt/pkg/utils/response"
)

// ContentTypeNDJSON 流式响应的 Content-Type。
const ContentTypeNDJSON = "application/x-ndjson"

// QueryHandler handles POST /llamaquery.
type QueryHandler struct {
	dispatcher biz.Dispatcher
}

// NewQueryHandler creates a new QueryHandler.
func NewQueryHandler(dispatcher biz.Dispatcher) *QueryHandler {
	return &QueryHandler{dispatcher: dispatcher}
}

// Query runs one query. 失败时返回 {"error": ...}，状态码由错误码决定。
func (h *QueryHandler) Query(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.Fail(c, errors.ErrInternal.WithMessagef("read request body: %v", err).WithCause(err))
		return
	}

	resp, err := h.dispatcher.Dispatch(c.Request.Context(), body)
	if err != nil {
		response.Fail(c, err)
		return
	}

	if !resp.Streamed {
		response.JSON(c, http.StatusOK, resp)
		return
	}

	// 大结果集逐条写出，每行一个记录
	c.Header("Content-Type", ContentTypeNDJSON)
	c.Status(http.StatusOK)
	enc := json.NewEncoder(c.Writer)
	for _, record := range resp.Results {
		if err := enc.Encode(record); err != nil {
			logger.Warnw("stream aborted", "query", resp.Query, "error", err.Error())
			return
		}
	}
	c.Writer.Flush()
}
