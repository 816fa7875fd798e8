package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorBody is the shape of every error response.
type ErrorBody struct {
	Detail string    `json:"detail"`
	Code   ErrorCode `json:"code"`
}

// Detail is the body of mutations that return no entity.
type Detail struct {
	Detail string `json:"detail"`
}

// Success sends data as the bare JSON body with status 200.
// The site frontend reads entities directly, so no envelope is added.
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// Message sends {"detail": msg} with status 200.
func Message(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, Detail{Detail: msg})
}

// HTTPError sends an HTTP error response with the specified HTTP code, error message, and error code.
func HTTPError(c *gin.Context, httpCode int, msg string, errorCode ErrorCode) {
	c.JSON(httpCode, ErrorBody{Detail: msg, Code: errorCode})
}

// AbortWithError is HTTPError for middleware: the remaining handlers are skipped.
func AbortWithError(c *gin.Context, httpCode int, msg string, errorCode ErrorCode) {
	c.AbortWithStatusJSON(httpCode, ErrorBody{Detail: msg, Code: errorCode})
}

// 用于 Gin ShouldBind 等绑定参数失败时返回错误
func BadRequestError(c *gin.Context, msg string) {
	HTTPError(c, http.StatusBadRequest, msg, InvalidRequest)
}

func NotFoundError(c *gin.Context, msg string) {
	HTTPError(c, http.StatusNotFound, msg, NotFound)
}

func InternalError(c *gin.Context, msg string) {
	HTTPError(c, http.StatusInternalServerError, msg, Internal)
}
