package httpserver

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/galenos/internal/logging"
)

// ErrorHandler renders every error as {"detail": ...}. Anything that is not
// an *echo.HTTPError is reported as a bare 500 so no driver or SQL text leaks.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	detail := "internal error"

	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		switch m := he.Message.(type) {
		case string:
			detail = m
		case nil:
			detail = http.StatusText(code)
		default:
			detail = fmt.Sprint(m)
		}
		if code >= http.StatusInternalServerError {
			detail = "internal error"
		}
	}
	if code >= http.StatusInternalServerError {
		logging.FromContext(c.Request().Context()).Error().Err(err).Msg("unhandled error")
	}
	if code == http.StatusUnauthorized {
		c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
	}

	var werr error
	if c.Request().Method == http.MethodHead {
		werr = c.NoContent(code)
	} else {
		werr = c.JSON(code, echo.Map{"detail": detail})
	}
	if werr != nil {
		logging.FromContext(c.Request().Context()).Error().Err(werr).Msg("write error response")
	}
}
