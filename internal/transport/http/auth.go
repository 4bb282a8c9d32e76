package httpserver

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/galenos/internal/logging"
	"github.com/Skotchmaster/galenos/internal/middleware/auth"
	"github.com/Skotchmaster/galenos/internal/service"
)

type AuthHTTP struct {
	Svc *service.AuthService
}

type loginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" form:"refresh_token"`
}

func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With().Str("handler", "auth_login").Logger()

	var req loginRequest
	if err := c.Bind(&req); err != nil {
		l.Warn().Err(err).Int("status", http.StatusBadRequest).Msg("login_error")
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	pair, err := h.Svc.Login(ctx, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			return echo.NewHTTPError(http.StatusUnauthorized, "Incorrect username or password")
		}
		return err
	}
	return c.JSON(http.StatusOK, pair)
}

func (h *AuthHTTP) Refresh(c echo.Context) error {
	ctx := c.Request().Context()

	var req refreshRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	pair, err := h.Svc.Refresh(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, service.ErrInvalidToken) {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
		}
		return err
	}
	return c.JSON(http.StatusOK, pair)
}

func (h *AuthHTTP) LogOut(c echo.Context) error {
	ctx := c.Request().Context()

	var req refreshRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	if err := h.Svc.LogOut(ctx, req.RefreshToken); err != nil {
		if errors.Is(err, service.ErrInvalidToken) {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
		}
		return err
	}
	logging.FromContext(ctx).Info().Msg("successful_logout")
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

func (h *AuthHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()
	actor, _ := auth.UserFromContext(c)

	var req service.RegisterInput
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	user, err := h.Svc.Register(ctx, actor, req)
	if err != nil {
		return userError(err)
	}
	return c.JSON(http.StatusCreated, user)
}

func (h *AuthHTTP) Me(c echo.Context) error {
	u, ok := auth.UserFromContext(c)
	if !ok {
		return auth.Unauthorized()
	}
	return c.JSON(http.StatusOK, u)
}

// userError maps registration and user update failures to 400/404.
func userError(err error) error {
	switch {
	case errors.Is(err, service.ErrUsernameTaken):
		return echo.NewHTTPError(http.StatusBadRequest, "Username already registered")
	case errors.Is(err, service.ErrEmailTaken):
		return echo.NewHTTPError(http.StatusBadRequest, "Email already registered")
	case errors.Is(err, service.ErrConflict):
		return echo.NewHTTPError(http.StatusBadRequest, "User already exists")
	case errors.Is(err, service.ErrValidation):
		msg := strings.TrimPrefix(err.Error(), service.ErrValidation.Error()+": ")
		return echo.NewHTTPError(http.StatusBadRequest, msg)
	case errors.Is(err, service.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "User not found")
	}
	return err
}
