package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Dicklesworthstone/osdiag/internal/engine"
	"github.com/Dicklesworthstone/osdiag/internal/model"
)

// Response is the envelope of every JSON reply.
type Response struct {
	Code int    `json:"code"`
	Data any    `json:"data"`
	Msg  string `json:"message"`
}

// Business codes carried in Response.Code.
const (
	CodeSuccess         = 0
	CodeError           = -1
	CodeInvalidArgument = 40001
	CodeNotFound        = 40400
	CodeNotInitialized  = 40900
	CodePartialFailure  = 50300
)

var codeMessages = map[int]string{
	CodeSuccess:         "ok",
	CodeError:           "operation failed",
	CodeInvalidArgument: "invalid argument",
	CodeNotFound:        "not found",
	CodeNotInitialized:  "session not initialized",
	CodePartialFailure:  "subsystem unavailable",
}

func success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Code: CodeSuccess, Data: data, Msg: codeMessages[CodeSuccess]})
}

func fail(c *gin.Context, code int, msg string) {
	if msg == "" {
		msg = codeMessages[code]
	}
	c.JSON(httpStatus(code), Response{Code: code, Msg: msg})
}

// failErr maps an engine error onto a business code.
func failErr(c *gin.Context, err error) {
	code := CodeError
	switch {
	case errors.Is(err, engine.ErrUnknownTool):
		code = CodeNotFound
	case model.KindOf(err) == model.KindNotInitialized:
		code = CodeNotInitialized
	case model.KindOf(err) == model.KindInvalidArgument:
		code = CodeInvalidArgument
	case model.KindOf(err) == model.KindPartialFailure:
		code = CodePartialFailure
	}
	fail(c, code, err.Error())
}

func httpStatus(code int) int {
	switch code {
	case CodeSuccess:
		return http.StatusOK
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeNotInitialized:
		return http.StatusConflict
	case CodePartialFailure:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
