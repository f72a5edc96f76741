// Package response writes the JSON envelopes shared by every handler.
// Errors are {"ok": 0, "code": status, "message": ...}; slices are wrapped in
// {"data": [...]}.
package response

import (
	"net/http"
	"reflect"

	"github.com/gin-gonic/gin"
)

// Pagination is the page metadata sent next to a page of items.
type Pagination struct {
	Total       int64 `json:"total"`
	CurrentPage int   `json:"current_page"`
	TotalPage   int   `json:"total_page"`
	Size        int   `json:"size"`
	HasNextPage bool  `json:"has_next_page"`
}

// ErrorBody is the error envelope. Field is set for validation errors.
type ErrorBody struct {
	OK      int    `json:"ok"`
	Code    int    `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// OK writes 200 with data, wrapping slices in {"data": ...}.
func OK(c *gin.Context, data interface{}) {
	if data != nil && reflect.ValueOf(data).Kind() == reflect.Slice {
		c.JSON(http.StatusOK, gin.H{"data": data})
		return
	}
	c.JSON(http.StatusOK, data)
}

// Paged writes 200 with one page of items.
func Paged(c *gin.Context, data interface{}, pagination Pagination) {
	c.JSON(http.StatusOK, gin.H{"data": data, "pagination": pagination})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

func abort(c *gin.Context, body ErrorBody) {
	c.AbortWithStatusJSON(body.Code, body)
}

func BadRequest(c *gin.Context, message string) {
	abort(c, ErrorBody{Code: http.StatusBadRequest, Message: message})
}

func Unauthorized(c *gin.Context) {
	abort(c, ErrorBody{Code: http.StatusUnauthorized, Message: "authentication required"})
}

func NotFound(c *gin.Context) {
	NotFoundMsg(c, "not found")
}

func NotFoundMsg(c *gin.Context, message string) {
	abort(c, ErrorBody{Code: http.StatusNotFound, Message: message})
}

func Conflict(c *gin.Context, message string) {
	abort(c, ErrorBody{Code: http.StatusConflict, Message: message})
}

func UnprocessableEntity(c *gin.Context, message string) {
	abort(c, ErrorBody{Code: http.StatusUnprocessableEntity, Message: message})
}

// Invalid writes 422 naming the offending field.
func Invalid(c *gin.Context, field, message string) {
	abort(c, ErrorBody{Code: http.StatusUnprocessableEntity, Field: field, Message: message})
}

func TooManyRequests(c *gin.Context) {
	abort(c, ErrorBody{Code: http.StatusTooManyRequests, Message: "too many requests"})
}

// InternalError writes a generic 500 and attaches err to the context for the
// request logger. The error text never reaches the client.
func InternalError(c *gin.Context, err error) {
	if err != nil {
		_ = c.Error(err)
	}
	abort(c, ErrorBody{Code: http.StatusInternalServerError, Message: "internal server error"})
}
