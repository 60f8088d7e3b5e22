package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Business codes carried next to the HTTP status so clients can branch on
// the failure kind without parsing messages.
const (
	CodeParamError         = 400
	CodeUnauthorized       = 401
	CodeForbidden          = 403
	CodeNotFound           = 404
	CodeServerError        = 500
	CodeServiceUnavailable = 503
)

const (
	CodeInsufficientCredit = 1001
	CodeAccountNotFound    = 1002
	CodeWebsiteNotFound    = 1003
	CodeGenerationFailed   = 1004
	CodeBackendUnavailable = 1005
	CodePersistenceFailed  = 1006
	CodeStorageUnavailable = 1007
)

type ErrorBody struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

// Success writes data as the whole body with 200.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

func Error(c *gin.Context, status, code int, message string) {
	c.AbortWithStatusJSON(status, ErrorBody{Error: message, Code: code})
}

func ParamError(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, CodeParamError, message)
}

func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, CodeUnauthorized, message)
}

func Forbidden(c *gin.Context, message string) {
	Error(c, http.StatusForbidden, CodeForbidden, message)
}

func ServerError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, CodeServerError, message)
}

func ServiceUnavailable(c *gin.Context, message string) {
	Error(c, http.StatusServiceUnavailable, CodeServiceUnavailable, message)
}
