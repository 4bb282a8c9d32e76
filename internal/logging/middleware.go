package logging

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// RequestLogger attaches a request scoped logger to the request context and
// logs one line per request. Errors are rendered here so the logged status is
// the one the client sees.
func RequestLogger(base zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			rid := req.Header.Get(echo.HeaderXRequestID)
			if rid == "" {
				rid = uuid.NewString()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, rid)
			c.Set("request_id", rid)

			l := base.With().
				Str("request_id", rid).
				Str("method", req.Method).
				Str("path", c.Path()).
				Str("remote_ip", c.RealIP()).
				Logger()
			c.SetRequest(req.WithContext(IntoContext(req.Context(), l)))

			start := time.Now()
			err := next(c)
			if err != nil {
				c.Echo().HTTPErrorHandler(err, c)
			}
			status := c.Response().Status

			var evt *zerolog.Event
			switch {
			case status >= 500:
				evt = l.Error().Err(err)
			case status >= 400:
				evt = l.Warn()
			default:
				evt = l.Info().Int64("bytes", c.Response().Size)
			}
			evt.Int("status", status).Dur("latency", time.Since(start)).Msg("request completed")
			return nil
		}
	}
}

// Recovery turns a panic into a 500. Mount it inside RequestLogger so the
// request still gets its completion line; it then logs through the request
// logger and falls back to base otherwise.
func Recovery(base zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					l := FromContext(c.Request().Context())
					if l.GetLevel() == zerolog.Disabled {
						fallback := base.With().Str("request_id", fmt.Sprintf("%v", c.Get("request_id"))).Logger()
						l = &fallback
					}
					var stack [4096]byte
					n := runtime.Stack(stack[:], false)
					l.Error().
						Str("panic", fmt.Sprintf("%v", r)).
						Str("stack", string(stack[:n])).
						Msg("panic recovered")
					err = echo.NewHTTPError(http.StatusInternalServerError, "internal error")
				}
			}()
			return next(c)
		}
	}
}
