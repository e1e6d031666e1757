package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/tasktracker/internal/service"
	"github.com/Skotchmaster/tasktracker/pkg/tokens"
)

// httpError maps domain errors to responses. Unknown errors become a bare
// 500 so internals never reach the client.
func httpError(err error) *echo.HTTPError {
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		return he
	case errors.Is(err, service.ErrInvalidCredentials):
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid username or password")
	case errors.Is(err, tokens.ErrTokenMissing):
		return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
	case errors.Is(err, tokens.ErrTokenExpired):
		return echo.NewHTTPError(http.StatusUnauthorized, "token has expired")
	case errors.Is(err, tokens.ErrTokenMalformed), errors.Is(err, service.ErrUnknownSubject):
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	case errors.Is(err, service.ErrTokenRevoked):
		return echo.NewHTTPError(http.StatusUnauthorized, "token has been revoked")
	case errors.Is(err, service.ErrAuthRequired):
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	case errors.Is(err, service.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, "access denied")
	case errors.Is(err, service.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	case errors.Is(err, service.ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, "username or email already taken")
	case errors.Is(err, service.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrSearchUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "search is not configured")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
	}
}
