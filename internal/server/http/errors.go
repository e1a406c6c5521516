package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/imgkeeper/internal/common"
	"github.com/labstack/echo/v4"
)

// statusFor maps service errors to HTTP statuses and client-facing messages.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrorValidation):
		return http.StatusBadRequest, causeOf(err)
	case errors.Is(err, common.ErrorAlreadyExists):
		return http.StatusConflict, "username already exists"
	case errors.Is(err, common.ErrorUnauthorized):
		return http.StatusUnauthorized, "invalid credentials or token"
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, common.ErrorStorageUnavailable):
		return http.StatusServiceUnavailable, "storage unavailable, retry later"
	case errors.Is(err, common.ErrorTransformFailed):
		return http.StatusBadGateway, "background removal failed"
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return http.StatusRequestEntityTooLarge, "request body too large"
	}
	return http.StatusInternalServerError, "internal error"
}

// causeOf drops the sentinel line of a common.Wrap error.
func causeOf(err error) string {
	msg := err.Error()
	if _, rest, ok := strings.Cut(msg, "\n"); ok {
		return strings.ReplaceAll(rest, "\n", ": ")
	}
	return msg
}

func (s *Server) fail(c echo.Context, err error) error {
	code, msg := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error(c.Request().Context(), "request failed",
			"request_id", requestID(c), "status", code, "error", err)
	}
	return c.JSON(code, echo.Map{"error": msg})
}

// httpErrorHandler renders echo's own errors (unknown route, bad method) as JSON.
func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg, ok := he.Message.(string)
		if !ok {
			msg = http.StatusText(he.Code)
		}
		_ = c.JSON(he.Code, echo.Map{"error": msg})
		return
	}
	_ = s.fail(c, err)
}
