package httpserver

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/tasktracker/internal/service"
	"github.com/Skotchmaster/tasktracker/pkg/logging"
)

const identityKey = "identity"

type Authenticator interface {
	Authenticate(ctx context.Context, raw string) (service.Identity, error)
}

type AuthMiddleware struct {
	Auth Authenticator
}

// requestToken prefers an Authorization bearer header and falls back to the
// access token cookie.
func requestToken(c echo.Context) string {
	auth := strings.TrimSpace(c.Request().Header.Get(echo.HeaderAuthorization))
	if parts := strings.SplitN(auth, " ", 2); len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		if tok := strings.TrimSpace(parts[1]); tok != "" {
			return tok
		}
	}
	if ck, err := c.Cookie(AccessCookieName); err == nil {
		return ck.Value
	}
	return ""
}

func identityFrom(c echo.Context) (service.Identity, bool) {
	id, ok := c.Get(identityKey).(service.Identity)
	return id, ok
}

func (m *AuthMiddleware) authenticate(c echo.Context, raw string) error {
	ctx := c.Request().Context()
	id, err := m.Auth.Authenticate(ctx, raw)
	if err != nil {
		he := httpError(err)
		logging.FromContext(ctx).Warn("auth_rejected", "status", he.Code, "reason", he.Message, "error", err)
		return he
	}
	c.Set(identityKey, id)
	c.SetRequest(c.Request().WithContext(logging.IntoContext(ctx,
		logging.FromContext(ctx).With("user_id", id.UserID))))
	return nil
}

func (m *AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := m.authenticate(c, requestToken(c)); err != nil {
			return err
		}
		return next(c)
	}
}

// OptionalAuth resolves the identity when a token is present. A present but
// invalid token is still rejected.
func (m *AuthMiddleware) OptionalAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw := requestToken(c)
		if raw == "" {
			return next(c)
		}
		if err := m.authenticate(c, raw); err != nil {
			return err
		}
		return next(c)
	}
}

func RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, ok := identityFrom(c)
		if !ok {
			return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
		}
		if err := service.RequireAdmin(id); err != nil {
			logging.FromContext(c.Request().Context()).Warn("admin_required", "status", 403)
			return httpError(err)
		}
		return next(c)
	}
}
