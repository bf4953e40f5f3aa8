package httpapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/chronoflow/chronoflow/internal/assistant"
	"github.com/chronoflow/chronoflow/internal/auth"
	"github.com/chronoflow/chronoflow/internal/dateutil"
	"github.com/chronoflow/chronoflow/internal/recur"
	"github.com/chronoflow/chronoflow/internal/schedule"
)

var (
	errRateLimited    = errors.New("too many requests, slow down")
	errNoAssistant    = errors.New("assistant is not configured")
	errNothingToPatch = errors.New("no fields to update")
)

var statusByError = []struct {
	err    error
	status int
}{
	{schedule.ErrEmptyTitle, http.StatusBadRequest},
	{schedule.ErrInvalidType, http.StatusBadRequest},
	{schedule.ErrInvalidDateFormat, http.StatusBadRequest},
	{schedule.ErrInvalidTimeFormat, http.StatusBadRequest},
	{schedule.ErrPartialTimeRange, http.StatusBadRequest},
	{schedule.ErrTimeWithoutDate, http.StatusBadRequest},
	{schedule.ErrZeroLength, http.StatusBadRequest},
	{dateutil.ErrInvalidDateFormat, http.StatusBadRequest},
	{dateutil.ErrEndDateBeforeStart, http.StatusBadRequest},
	{dateutil.ErrRangeTooLong, http.StatusBadRequest},
	{recur.ErrInvalidRule, http.StatusBadRequest},
	{assistant.ErrEmptyMessage, http.StatusBadRequest},
	{errNothingToPatch, http.StatusBadRequest},

	{schedule.ErrItemNotFound, http.StatusNotFound},
	{schedule.ErrUserNotFound, http.StatusNotFound},

	{auth.ErrMissingHash, http.StatusUnauthorized},
	{auth.ErrInvalidHash, http.StatusUnauthorized},
	{auth.ErrLoginExpired, http.StatusUnauthorized},
	{auth.ErrLoginFuture, http.StatusUnauthorized},
	{auth.ErrInvalidToken, http.StatusUnauthorized},

	{errRateLimited, http.StatusTooManyRequests},

	{auth.ErrNoBotToken, http.StatusServiceUnavailable},
	{errNoAssistant, http.StatusServiceUnavailable},
}

// statusFor maps a domain error to an HTTP status, or 0 if unknown.
func statusFor(err error) int {
	for _, m := range statusByError {
		if errors.Is(err, m.err) {
			return m.status
		}
	}
	return 0
}

// handleError converts domain errors to echo HTTP errors with a JSON
// {"message": ...} body. Unknown errors become a 500 without details.
func (s *Server) handleError(err error, c echo.Context) {
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		if status := statusFor(err); status != 0 {
			he = echo.NewHTTPError(status, err.Error())
		} else {
			s.logger.Error("request failed",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Path()),
				zap.Error(err))
			he = echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
		}
	}
	s.echo.DefaultHTTPErrorHandler(he, c)
}
