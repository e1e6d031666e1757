package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/tasktracker/internal/service"
	"github.com/Skotchmaster/tasktracker/internal/transport"
	"github.com/Skotchmaster/tasktracker/pkg/logging"
)

type UserHTTP struct {
	Auth *service.AuthService
	Svc  *service.UserService
}

func (h *UserHTTP) Create(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user_create")

	var req transport.CreateUserRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("user_create_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	var requester *service.Identity
	if id, ok := identityFrom(c); ok {
		requester = &id
	}

	user, err := h.Auth.Register(ctx, req.Input(), requester)
	if err != nil {
		l.Warn("user_create_error", "error", err)
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, transport.NewUserResponse(*user))
}

func (h *UserHTTP) List(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user_list")
	actor, _ := identityFrom(c)

	p := parsePage(c)
	total, items, err := h.Svc.List(ctx, actor, p.offset, p.limit)
	if err != nil {
		l.Warn("user_list_error", "error", err)
		return httpError(err)
	}
	return c.JSON(http.StatusOK, listResponse[transport.UserResponse]{
		Data: transport.NewUserResponses(items),
		Meta: p.meta(total),
	})
}

func (h *UserHTTP) Get(c echo.Context) error {
	ctx := c.Request().Context()
	actor, _ := identityFrom(c)

	id, err := parseID(c)
	if err != nil {
		return err
	}
	user, err := h.Svc.Get(ctx, actor, id)
	if err != nil {
		logging.FromContext(ctx).Warn("user_get_error", "handler", "user_get", "id", id, "error", err)
		return httpError(err)
	}
	return c.JSON(http.StatusOK, transport.NewUserResponse(*user))
}

func (h *UserHTTP) Replace(c echo.Context) error { return h.update(c, true) }

func (h *UserHTTP) Patch(c echo.Context) error { return h.update(c, false) }

func (h *UserHTTP) update(c echo.Context, full bool) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user_update", "full", full)
	actor, _ := identityFrom(c)

	id, err := parseID(c)
	if err != nil {
		return err
	}

	var req transport.UpdateUserRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("user_update_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	user, err := h.Svc.Update(ctx, actor, id, req.Input(), full)
	if err != nil {
		l.Warn("user_update_error", "id", id, "error", err)
		return httpError(err)
	}
	return c.JSON(http.StatusOK, transport.NewUserResponse(*user))
}

func (h *UserHTTP) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	actor, _ := identityFrom(c)

	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.Svc.Delete(ctx, actor, id); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, transport.MessageResponse{Message: "User deleted"})
}
