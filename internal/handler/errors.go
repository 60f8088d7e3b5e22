package handler

import (
	"errors"
	"net/http"

	"sitegen/internal/service"
	"sitegen/pkg/response"

	"github.com/gin-gonic/gin"
)

type errorMapping struct {
	target error
	status int
	code   int
}

// errorTable is checked in order with errors.Is.
var errorTable = []errorMapping{
	{service.ErrInvalidInput, http.StatusBadRequest, response.CodeParamError},
	{service.ErrUnauthenticated, http.StatusUnauthorized, response.CodeUnauthorized},
	{service.ErrInsufficientCredit, http.StatusPaymentRequired, response.CodeInsufficientCredit},
	{service.ErrPermissionDenied, http.StatusForbidden, response.CodeForbidden},
	{service.ErrAccountNotFound, http.StatusNotFound, response.CodeAccountNotFound},
	{service.ErrWebsiteNotFound, http.StatusNotFound, response.CodeWebsiteNotFound},
	{service.ErrServiceUnavailable, http.StatusServiceUnavailable, response.CodeServiceUnavailable},
	{service.ErrGenerationFailed, http.StatusInternalServerError, response.CodeGenerationFailed},
	{service.ErrBackendUnavailable, http.StatusInternalServerError, response.CodeBackendUnavailable},
	{service.ErrPersistenceFailed, http.StatusInternalServerError, response.CodePersistenceFailed},
	{service.ErrUnavailable, http.StatusInternalServerError, response.CodeStorageUnavailable},
}

// writeError answers with the taxonomy entry err belongs to. Only invalid
// input carries its detail to the client; other causes are logged.
func (h *Handler) writeError(c *gin.Context, err error) {
	for _, m := range errorTable {
		if !errors.Is(err, m.target) {
			continue
		}
		msg := m.target.Error()
		if m.target == service.ErrInvalidInput {
			msg = err.Error()
		}
		if m.status >= http.StatusInternalServerError {
			h.log.WithError(err).WithField("path", c.FullPath()).Error("request failed")
		}
		response.Error(c, m.status, m.code, msg)
		return
	}

	h.log.WithError(err).WithField("path", c.FullPath()).Error("unexpected error")
	response.ServerError(c, "internal server error")
}
