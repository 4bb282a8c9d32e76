package httpserver

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/galenos/internal/audit"
	"github.com/Skotchmaster/galenos/internal/repo"
)

type AuditHTTP struct {
	Svc *audit.Service
}

// List serves GET /audit?entity=&action=&user_id=&limit=.
func (h *AuditHTTP) List(c echo.Context) error {
	f := repo.AuditFilter{
		Entity: c.QueryParam("entity"),
		Action: c.QueryParam("action"),
	}
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		f.Limit = n
	}
	if v := c.QueryParam("user_id"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid user_id")
		}
		uid := uint(n)
		f.UserID = &uid
	}

	rows, err := h.Svc.List(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rows)
}
