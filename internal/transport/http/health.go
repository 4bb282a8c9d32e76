package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

const pingTimeout = 2 * time.Second

type Pinger func(ctx context.Context) error

type HealthHTTP struct {
	DB Pinger
}

func (h *HealthHTTP) ping(c echo.Context) error {
	if h.DB == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), pingTimeout)
	defer cancel()
	return h.DB(ctx)
}

// Health always answers 200; a failed database ping downgrades the status.
func (h *HealthHTTP) Health(c echo.Context) error {
	if err := h.ping(c); err != nil {
		return c.JSON(http.StatusOK, echo.Map{"status": "degraded", "db": "down"})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "healthy"})
}

func (h *HealthHTTP) Live(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

func (h *HealthHTTP) Ready(c echo.Context) error {
	if err := h.ping(c); err != nil {
		return c.NoContent(http.StatusServiceUnavailable)
	}
	return c.NoContent(http.StatusOK)
}
