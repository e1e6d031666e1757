package httpserver

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/tasktracker/internal/util"
)

func parseID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return uint(id), nil
}

type page struct {
	number int
	offset int
	limit  int
}

func parsePage(c echo.Context) page {
	n := util.ParseIntDefault(c.QueryParam("page"), 1)
	size := util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	n, offset, limit := util.Calculate(n, size)
	return page{number: n, offset: offset, limit: limit}
}

func (p page) meta(total int64) util.Meta {
	return util.NewMeta(p.number, p.offset, p.limit, total)
}

type listResponse[T any] struct {
	Data []T       `json:"data"`
	Meta util.Meta `json:"meta"`
}
