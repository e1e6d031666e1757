package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/tasktracker/internal/service"
	"github.com/Skotchmaster/tasktracker/internal/transport"
	"github.com/Skotchmaster/tasktracker/pkg/logging"
)

type AuthHTTP struct {
	Svc          *service.AuthService
	CookieSecure bool
}

func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	var req transport.LoginRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("login_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := transport.Check(req); err != nil {
		l.Warn("login_error", "status", 400, "error", err)
		return httpError(err)
	}

	res, err := h.Svc.Login(ctx, req.Username, req.Password)
	if err != nil {
		return httpError(err)
	}

	c.SetCookie(createCookie(AccessCookieName, res.AccessToken, "/", res.ExpiresAt, h.CookieSecure))
	l.Info("login_successful", "user_id", res.UserID)

	return c.JSON(http.StatusOK, transport.LoginResponse{
		Message:     "Login successful",
		UserID:      res.UserID,
		AccessToken: res.AccessToken,
	})
}

func (h *AuthHTTP) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_logout")

	if err := h.Svc.Logout(ctx, requestToken(c)); err != nil {
		he := httpError(err)
		if he.Code == http.StatusUnauthorized {
			c.SetCookie(deleteCookie(AccessCookieName, "/", h.CookieSecure))
		}
		return he
	}

	c.SetCookie(deleteCookie(AccessCookieName, "/", h.CookieSecure))
	l.Info("successful_logout")
	return c.JSON(http.StatusOK, transport.MessageResponse{Message: "Logout successful"})
}
