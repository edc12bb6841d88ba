// Package response writes the JSON payloads shared by every endpoint.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/overlordausritter/beastgpt/pkg/utils/errors"
	"github.com/overlordausritter/beastgpt/pkg/utils/json"
)

// ContentTypeJSON is the Content-Type of buffered responses.
const ContentTypeJSON = "application/json; charset=utf-8"

// ErrorBody is the error payload: a single "error" member.
type ErrorBody struct {
	Error string `json:"error"`
}

// Err builds the error payload for e.
func Err(e *errors.Errno) ErrorBody {
	return ErrorBody{Error: e.Message}
}

// JSON encodes v with the configured JSON engine and writes it with status.
func JSON(c *gin.Context, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		data, _ = json.Marshal(Err(errors.ErrInternal))
	}
	c.Data(status, ContentTypeJSON, data)
}

// Fail writes err as an error payload and aborts the handler chain.
// Errors that are not an *errors.Errno are reported as internal errors.
func Fail(c *gin.Context, err error) {
	e := errors.FromError(err)
	JSON(c, HTTPStatus(e), Err(e))
	c.Abort()
}

// HTTPStatus returns the HTTP status for e, falling back on its category.
func HTTPStatus(e *errors.Errno) int {
	if e.HTTP != 0 {
		return e.HTTP
	}
	if registered, ok := errors.Lookup(e.Code); ok && registered.HTTP != 0 {
		return registered.HTTP
	}

	_, category, _ := errors.ParseCode(e.Code)
	switch category {
	case errors.CategorySuccess:
		return http.StatusOK
	case errors.CategoryRequest:
		return http.StatusBadRequest
	case errors.CategoryAuth:
		return http.StatusUnauthorized
	case errors.CategoryResource:
		return http.StatusNotFound
	case errors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case errors.CategoryTimeout:
		return http.StatusGatewayTimeout
	case errors.CategoryNetwork:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
