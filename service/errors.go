package service

import (
	"errors"
	"net/http"

	"github.com/morf1ng/105site/logutils"
	"github.com/morf1ng/105site/response"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Error is a request failure with the status and detail sent to the client.
type Error struct {
	Status int
	Code   response.ErrorCode
	Detail string
}

func (e *Error) Error() string { return e.Detail }

func badRequest(detail string) *Error {
	return &Error{Status: http.StatusBadRequest, Code: response.InvalidRequest, Detail: detail}
}

func forbidden(code response.ErrorCode, detail string) *Error {
	return &Error{Status: http.StatusForbidden, Code: code, Detail: detail}
}

func notFound(detail string) *Error {
	return &Error{Status: http.StatusNotFound, Code: response.NotFound, Detail: detail}
}

// notFoundIf turns gorm.ErrRecordNotFound into a 404 with detail.
func notFoundIf(err error, detail string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound(detail)
	}
	return err
}

// writeError sends err to the client. Anything that is not an *Error is an
// unexpected failure: it is logged and reported as a 500.
func writeError(c *gin.Context, err error) {
	var e *Error
	if errors.As(err, &e) {
		response.HTTPError(c, e.Status, e.Detail, e.Code)
		return
	}
	logutils.WithRequest(c.GetString(requestIDKey)).WithField("path", c.FullPath()).Error(err)
	response.InternalError(c, "Internal server error")
}
