package errors

import "net/http"

var (
	// ErrBadRequest indicates a malformed request.
	ErrBadRequest = Register(New(MakeCode(ServiceCommon, CategoryRequest, 0), http.StatusBadRequest, "Bad request"))

	// ErrNotFound indicates the route or resource does not exist.
	ErrNotFound = Register(New(MakeCode(ServiceCommon, CategoryResource, 0), http.StatusNotFound, "route not found"))

	// ErrInternal indicates an unexpected server error.
	ErrInternal = Register(New(MakeCode(ServiceCommon, CategoryInternal, 0), http.StatusInternalServerError, "Internal server error"))
)
