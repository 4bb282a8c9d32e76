package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/galenos/internal/logging"
	"github.com/Skotchmaster/galenos/internal/models"
	"github.com/Skotchmaster/galenos/internal/service"
)

const userContextKey = "user"

var (
	AdminOnly = []models.Role{models.RoleAdmin}
	Clinical  = []models.Role{models.RoleDoctor, models.RoleAdmin}
	// AnyRole admits every authenticated, active user.
	AnyRole []models.Role
)

type Authenticator interface {
	Authenticate(ctx context.Context, raw string) (*models.User, error)
}

type Gate struct {
	authenticate echo.MiddlewareFunc
}

func NewGate(a Authenticator) *Gate {
	return &Gate{authenticate: echojwt.WithConfig(echojwt.Config{
		ContextKey:  userContextKey,
		TokenLookup: "header:Authorization:Bearer ",
		ParseTokenFunc: func(c echo.Context, raw string) (interface{}, error) {
			u, err := a.Authenticate(c.Request().Context(), raw)
			if err != nil && !errors.Is(err, service.ErrInvalidToken) {
				return nil, &lookupError{err: err}
			}
			return u, err
		},
		ErrorHandler: func(c echo.Context, err error) error {
			var lerr *lookupError
			if errors.As(err, &lerr) {
				logging.FromContext(c.Request().Context()).Error().Err(lerr.err).Msg("authenticate_error")
				return echo.NewHTTPError(http.StatusInternalServerError, "internal error").SetInternal(lerr.err)
			}
			// missing header, wrong scheme, bad or expired token, unknown user
			return Unauthorized()
		},
	})}
}

// lookupError marks failures that are not the caller's fault, such as the
// user store being unreachable.
type lookupError struct{ err error }

func (e *lookupError) Error() string { return e.err.Error() }
func (e *lookupError) Unwrap() error { return e.err }

// Unauthorized is the single 401 every authentication failure maps to.
func Unauthorized() *echo.HTTPError {
	return echo.NewHTTPError(http.StatusUnauthorized, "Could not validate credentials")
}

// Authenticate resolves the bearer token to a user and stores it for
// UserFromContext. It does not check the active flag.
func (g *Gate) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return g.authenticate(next)
}

func (g *Gate) RequireActive(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		u, ok := UserFromContext(c)
		if !ok {
			return Unauthorized()
		}
		if err := CheckActive(u); err != nil {
			return err
		}
		return next(c)
	}
}

func (g *Gate) RequireRole(roles ...models.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			u, ok := UserFromContext(c)
			if !ok {
				return Unauthorized()
			}
			if err := CheckRole(u, roles); err != nil {
				return err
			}
			return next(c)
		}
	}
}

// Protect is the usual chain: authenticate, require active, then require one
// of roles (none means any role).
func (g *Gate) Protect(roles ...models.Role) []echo.MiddlewareFunc {
	chain := []echo.MiddlewareFunc{g.Authenticate, g.RequireActive}
	if len(roles) > 0 {
		chain = append(chain, g.RequireRole(roles...))
	}
	return chain
}

func CheckActive(u *models.User) error {
	if !u.IsActive {
		return echo.NewHTTPError(http.StatusBadRequest, "Inactive user")
	}
	return nil
}

func CheckRole(u *models.User, roles []models.Role) error {
	if len(roles) == 0 || slices.Contains(roles, u.Role) {
		return nil
	}
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return echo.NewHTTPError(http.StatusForbidden, fmt.Sprintf("Operation requires %s role", strings.Join(names, " or ")))
}

func UserFromContext(c echo.Context) (*models.User, bool) {
	u, ok := c.Get(userContextKey).(*models.User)
	return u, ok && u != nil
}
