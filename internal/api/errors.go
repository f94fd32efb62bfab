package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/donovan0902/project-hunt/pkg/types"
)

// ErrorResponse is the body of every non-2xx response produced by a handler.
type ErrorResponse struct {
	Error   string `json:"error"`
	Kind    string `json:"kind"`
	EntryID string `json:"entry_id,omitempty"`
}

// statusFor maps a service error kind to an HTTP status.
func statusFor(err error) int {
	switch types.KindOf(err) {
	case types.KindNotFound:
		return http.StatusNotFound
	case types.KindUnauthorized:
		return http.StatusUnauthorized
	case types.KindForbidden:
		return http.StatusForbidden
	case types.KindInvalidState:
		return http.StatusConflict
	case types.KindValidation:
		return http.StatusBadRequest
	case types.KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as a JSON error response.
func (s *Server) fail(c echo.Context, err error) error {
	return s.failWithEntry(c, err, "")
}

func (s *Server) failWithEntry(c echo.Context, err error, entryID string) error {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("uri", c.Request().RequestURI),
			zap.Int("status", status),
			zap.Error(err))
	}

	msg := err.Error()
	var e *types.Error
	if status == http.StatusInternalServerError && !errors.As(err, &e) {
		// Do not leak storage details
		msg = "internal error"
	}
	return c.JSON(status, ErrorResponse{
		Error:   msg,
		Kind:    types.KindOf(err).String(),
		EntryID: entryID,
	})
}
