package ratelimit

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/galenos/internal/logging"
	"github.com/Skotchmaster/galenos/internal/metrics"
)

// Middleware limits the wrapped routes per client address. Counters are
// separate per scope, so login and register do not share a budget.
func Middleware(l *Limiter, scope string, m *metrics.Auth) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			d, err := l.Allow(c.Request().Context(), scope+":"+c.RealIP())
			if err != nil {
				logging.FromContext(c.Request().Context()).Warn().Err(err).Str("scope", scope).Msg("rate limiter unavailable")
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			if d.Allowed {
				return next(c)
			}

			m.RateLimited(scope)
			h.Set("Retry-After", strconv.Itoa(int(math.Ceil(d.RetryAfter.Seconds()))))
			return c.JSON(http.StatusTooManyRequests, map[string]string{
				"error":  "rate limit exceeded",
				"detail": fmt.Sprintf("Rate limit exceeded: %d per %s", l.Limit(), window(l.Window())),
			})
		}
	}
}

func window(d time.Duration) string {
	switch {
	case d == time.Minute:
		return "1 minute"
	case d%time.Minute == 0:
		return fmt.Sprintf("%d minutes", int(d/time.Minute))
	}
	return d.String()
}
