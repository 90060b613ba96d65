package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/handiism/albumpdf/internal/model"
)

// Error codes returned in error_code.
const (
	codeBadRequest       = 1000
	codeAccessDenied     = 1001
	codeNotFound         = 1002
	codeRateLimited      = 1003
	codeProtocolError    = 1004
	codeEmptyAlbum       = 1005
	codeSourceUnreadable = 1006
	codeUnclassified     = 9999
)

type errorResponse struct {
	Status    string `json:"status"`
	ErrorCode int    `json:"error_code"`
	Message   string `json:"message"`
	Solution  string `json:"solution,omitempty"`
}

// errorStatus maps an error kind to its HTTP status and error code.
func errorStatus(kind model.ErrorKind) (int, int) {
	switch kind {
	case model.KindAccessDenied:
		return http.StatusForbidden, codeAccessDenied
	case model.KindNotFound:
		return http.StatusNotFound, codeNotFound
	case model.KindRateLimited:
		return http.StatusTooManyRequests, codeRateLimited
	case model.KindProtocolError:
		return http.StatusInternalServerError, codeProtocolError
	case model.KindEmptyAlbum:
		return http.StatusInternalServerError, codeEmptyAlbum
	case model.KindSourceUnreadable:
		return http.StatusInternalServerError, codeSourceUnreadable
	default:
		return http.StatusInternalServerError, codeUnclassified
	}
}

func writeError(c *gin.Context, err error) {
	_ = c.Error(err)

	if errors.Is(err, model.ErrInvalidAlbumID) {
		badRequest(c, err.Error())
		return
	}

	var e *model.Error
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		e = &model.Error{Kind: model.KindUnclassified, Message: "request cancelled", Err: err}
	default:
		e = model.AsError(err)
	}

	status, code := errorStatus(e.Kind)
	c.JSON(status, errorResponse{
		Status:    statusError,
		ErrorCode: code,
		Message:   e.Error(),
		Solution:  e.Hint,
	})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, errorResponse{
		Status:    statusError,
		ErrorCode: codeBadRequest,
		Message:   message,
	})
}
