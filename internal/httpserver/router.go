package httpserver

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Skotchmaster/tasktracker/internal/middleware/csrf"
	loggingmw "github.com/Skotchmaster/tasktracker/pkg/middleware/logging"
)

type Deps struct {
	AuthHandler *AuthHTTP
	UserHandler *UserHTTP
	TaskHandler *TaskHTTP
	Authn       *AuthMiddleware

	// Ready reports whether dependencies can serve traffic.
	Ready func(ctx context.Context) error
	// CSRF enables the double submit check on cookie authenticated writes.
	CSRF        *csrf.Config
	CORSOrigins []string
}

// New builds the echo instance with the shared middleware chain and routes.
func New(base *slog.Logger, d *Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID())
	e.Use(loggingmw.RequestLogger(base))
	if len(d.CORSOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:     d.CORSOrigins,
			AllowCredentials: true,
			AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderAuthorization, "X-CSRF-Token"},
		}))
	}
	if d.CSRF != nil {
		e.Use(csrf.Middleware(*d.CSRF))
	}

	Register(e, d)
	return e
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready != nil {
			if err := d.Ready(c.Request().Context()); err != nil {
				return c.NoContent(http.StatusServiceUnavailable)
			}
		}
		return c.NoContent(http.StatusOK)
	})

	authn := d.Authn

	e.POST("/login", d.AuthHandler.Login)
	e.GET("/logout", d.AuthHandler.Logout)

	users := e.Group("/users")
	users.POST("", d.UserHandler.Create, authn.OptionalAuth)
	users.GET("", d.UserHandler.List, authn.RequireAuth, RequireAdmin)
	users.GET("/:id", d.UserHandler.Get, authn.RequireAuth)
	users.PUT("/:id", d.UserHandler.Replace, authn.RequireAuth)
	users.PATCH("/:id", d.UserHandler.Patch, authn.RequireAuth)
	users.DELETE("/:id", d.UserHandler.Delete, authn.RequireAuth)

	tasks := e.Group("/tasks", authn.RequireAuth)
	tasks.GET("", d.TaskHandler.ListAll, RequireAdmin)
	tasks.POST("", d.TaskHandler.Create)
	tasks.GET("/search", d.TaskHandler.Search)
	tasks.GET("/user/:id", d.TaskHandler.ListByOwner)
	tasks.GET("/:id", d.TaskHandler.Get)
	tasks.PUT("/:id", d.TaskHandler.Replace)
	tasks.PATCH("/:id", d.TaskHandler.Patch)
	tasks.DELETE("/:id", d.TaskHandler.Delete)
}
