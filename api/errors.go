package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/vultisig/multisigner/internal/types"
)

var codeStatus = map[string]int{
	types.CodeValidation:         http.StatusBadRequest,
	types.CodeUnauthorized:       http.StatusForbidden,
	types.CodeNotFound:           http.StatusNotFound,
	types.CodeDuplicateSignature: http.StatusConflict,
	types.CodeInvalidState:       http.StatusConflict,
	types.CodeConflict:           http.StatusConflict,
	types.CodeExpired:            http.StatusGone,
	types.CodeSigning:            http.StatusUnprocessableEntity,
	types.CodeBroadcast:          http.StatusBadGateway,
	types.CodeStorage:            http.StatusInternalServerError,
}

func statusOf(code string) int {
	if status, ok := codeStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// errorResponse writes err as a JSON error body with the status of its kind.
func (s *Server) errorResponse(c echo.Context, err error) error {
	code := types.ErrorCode(err)
	status := statusOf(code)
	if status >= http.StatusInternalServerError {
		s.logger.WithError(err).WithField("path", c.Path()).Error("request failed")
	}
	return c.JSON(status, types.ErrorResponse{Code: code, Error: err.Error()})
}

func (s *Server) badRequest(c echo.Context, format string, args ...any) error {
	return s.errorResponse(c, types.ValidationErrorf(format, args...))
}
