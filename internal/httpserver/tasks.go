package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/tasktracker/internal/service"
	"github.com/Skotchmaster/tasktracker/internal/transport"
	"github.com/Skotchmaster/tasktracker/pkg/logging"
)

type TaskHTTP struct {
	Svc *service.TaskService
}

func (h *TaskHTTP) Create(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "task_create")
	actor, _ := identityFrom(c)

	var req transport.CreateTaskRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("task_create_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := transport.Check(req); err != nil {
		l.Warn("task_create_error", "status", 400, "error", err)
		return httpError(err)
	}

	task, err := h.Svc.Create(ctx, actor, req.Input())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, transport.NewTaskResponse(*task))
}

func (h *TaskHTTP) Get(c echo.Context) error {
	ctx := c.Request().Context()
	actor, _ := identityFrom(c)

	id, err := parseID(c)
	if err != nil {
		return err
	}
	task, err := h.Svc.Get(ctx, actor, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, transport.NewTaskResponse(*task))
}

func (h *TaskHTTP) Replace(c echo.Context) error { return h.update(c, true) }

func (h *TaskHTTP) Patch(c echo.Context) error { return h.update(c, false) }

func (h *TaskHTTP) update(c echo.Context, full bool) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "task_update", "full", full)
	actor, _ := identityFrom(c)

	id, err := parseID(c)
	if err != nil {
		return err
	}

	var req transport.UpdateTaskRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("task_update_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	task, err := h.Svc.Update(ctx, actor, id, req.Input(), full)
	if err != nil {
		l.Warn("task_update_error", "id", id, "error", err)
		return httpError(err)
	}
	return c.JSON(http.StatusOK, transport.NewTaskResponse(*task))
}

func (h *TaskHTTP) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	actor, _ := identityFrom(c)

	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.Svc.Delete(ctx, actor, id); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, transport.MessageResponse{Message: "Task deleted"})
}

func (h *TaskHTTP) ListAll(c echo.Context) error {
	ctx := c.Request().Context()
	actor, _ := identityFrom(c)

	p := parsePage(c)
	total, items, err := h.Svc.ListAll(ctx, actor, p.offset, p.limit)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, listResponse[transport.TaskResponse]{
		Data: transport.NewTaskResponses(items),
		Meta: p.meta(total),
	})
}

func (h *TaskHTTP) ListByOwner(c echo.Context) error {
	ctx := c.Request().Context()
	actor, _ := identityFrom(c)

	ownerID, err := parseID(c)
	if err != nil {
		return err
	}
	p := parsePage(c)
	total, items, err := h.Svc.ListByOwner(ctx, actor, ownerID, p.offset, p.limit)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, listResponse[transport.TaskResponse]{
		Data: transport.NewTaskResponses(items),
		Meta: p.meta(total),
	})
}

func (h *TaskHTTP) Search(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "task_search")
	actor, _ := identityFrom(c)

	p := parsePage(c)
	total, items, err := h.Svc.Search(ctx, actor, c.QueryParam("q"), p.offset, p.limit)
	if err != nil {
		l.Warn("task_search_error", "error", err)
		return httpError(err)
	}
	return c.JSON(http.StatusOK, listResponse[transport.TaskResponse]{
		Data: transport.NewTaskResponses(items),
		Meta: p.meta(total),
	})
}
