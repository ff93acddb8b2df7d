// Package handlers implements the HTTP endpoints of the takeoff API.
package handlers

import (
	stderrors "errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/KeyQTO/pkg/errors"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// parsePagination reads limit and offset, clamping limit to (0, 100].
func parsePagination(c *gin.Context) (limit, offset int) {
	limit = defaultPageSize
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

// writeError maps err to a status through its error code.  Server-side
// failures keep their code but hide the message.
func writeError(c *gin.Context, err error) {
	code := errors.GetCode(err)
	status := errors.HTTPStatusForCode(code)
	_ = c.Error(err)

	resp := ErrorResponse{Code: code.String()}
	if status >= http.StatusInternalServerError {
		resp.Message = errors.DefaultMessageForCode(code)
	} else {
		resp.Message = err.Error()
		var appErr *errors.AppError
		if stderrors.As(err, &appErr) {
			resp.Message = appErr.Message
			resp.Detail = appErr.Detail
		}
	}
	c.AbortWithStatusJSON(status, resp)
}

//Personal.AI order the ending
