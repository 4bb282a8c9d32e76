package httpserver

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/galenos/internal/middleware/auth"
	"github.com/Skotchmaster/galenos/internal/service"
)

type UsersHTTP struct {
	Svc *service.AuthService
}

func (h *UsersHTTP) List(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	size, _ := strconv.Atoi(c.QueryParam("size"))

	users, total, err := h.Svc.ListUsers(c.Request().Context(), page, size)
	if err != nil {
		return err
	}
	c.Response().Header().Set("X-Total-Count", strconv.FormatInt(total, 10))
	return c.JSON(http.StatusOK, users)
}

func (h *UsersHTTP) Update(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}

	var patch service.UserPatch
	if err := c.Bind(&patch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	actor, _ := auth.UserFromContext(c)
	user, err := h.Svc.UpdateUser(c.Request().Context(), actor, uint(id), patch)
	if err != nil {
		return userError(err)
	}
	return c.JSON(http.StatusOK, user)
}
