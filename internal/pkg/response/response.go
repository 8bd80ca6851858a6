package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/webapi/proxyutil"

	"github.com/xxxsen/tierdoc/internal/pkg/errcode"
	appErr "github.com/xxxsen/tierdoc/internal/pkg/errors"
)

type apiError struct {
	code uint32
	msg  string
}

func (e *apiError) Error() string {
	return e.msg
}

func (e *apiError) Code() uint32 {
	return e.code
}

func Success(c *gin.Context, data interface{}) {
	proxyutil.SuccessJson(c, data)
}

// Fail writes the error envelope and stops the remaining handlers.
// An empty message falls back to the code's default text.
func Fail(c *gin.Context, code int, message string) {
	if message == "" {
		message = errcode.Message(code)
	}
	proxyutil.FailJson(c, http.StatusOK, &apiError{code: uint32(code), msg: message})
	c.Abort()
}

// FailWith writes err under the code of its kind. Only caller errors echo
// their text back; backend failures use the generic message.
func FailWith(c *gin.Context, err error) {
	code := Classify(err)
	msg := ""
	if code == errcode.ErrInvalid || code == errcode.ErrMalformedDocument {
		msg = err.Error()
	}
	Fail(c, code, msg)
}

func Classify(err error) int {
	switch {
	case err == nil:
		return errcode.ErrUnknown
	case appErr.IsInvalid(err):
		return errcode.ErrInvalid
	case appErr.IsNotFound(err):
		return errcode.ErrNotFound
	case appErr.IsBusy(err):
		return errcode.ErrBusy
	case appErr.IsMalformedDocument(err):
		return errcode.ErrMalformedDocument
	case appErr.IsExternalServiceUnavailable(err):
		return errcode.ErrServiceUnavailable
	case appErr.IsIndexOperationFailed(err):
		return errcode.ErrIndexFailed
	default:
		return errcode.ErrInternal
	}
}
