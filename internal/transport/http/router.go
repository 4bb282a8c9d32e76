package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/galenos/internal/middleware/auth"
	"github.com/Skotchmaster/galenos/internal/metrics"
	"github.com/Skotchmaster/galenos/internal/ratelimit"
	"github.com/Skotchmaster/galenos/internal/service"
)

type Deps struct {
	AuthHandler   *AuthHTTP
	UsersHandler  *UsersHTTP
	AuditHandler  *AuditHTTP
	HealthHandler *HealthHTTP
	Gate          *auth.Gate
	Limiter       *ratelimit.Limiter
	Metrics       *metrics.Auth
	MetricsPage   http.Handler
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health", d.HealthHandler.Health)
	e.GET("/health/live", d.HealthHandler.Live)
	e.GET("/health/ready", d.HealthHandler.Ready)
	if d.MetricsPage != nil {
		e.GET("/metrics", echo.WrapHandler(d.MetricsPage))
	}

	v1 := e.Group("/api/v1", clientIP)

	authg := v1.Group("/auth")
	authg.POST("/login", d.AuthHandler.Login, ratelimit.Middleware(d.Limiter, "login", d.Metrics))
	authg.POST("/refresh", d.AuthHandler.Refresh)
	authg.POST("/logout", d.AuthHandler.LogOut)

	register := append([]echo.MiddlewareFunc{ratelimit.Middleware(d.Limiter, "register", d.Metrics)}, d.Gate.Protect(auth.AdminOnly...)...)
	authg.POST("/register", d.AuthHandler.Register, register...)
	authg.GET("/me", d.AuthHandler.Me, d.Gate.Protect(auth.AnyRole...)...)

	users := v1.Group("/users", d.Gate.Protect(auth.AdminOnly...)...)
	users.GET("", d.UsersHandler.List)
	users.PATCH("/:id", d.UsersHandler.Update)

	v1.GET("/audit", d.AuditHandler.List, d.Gate.Protect(auth.AdminOnly...)...)
}

func clientIP(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		c.SetRequest(req.WithContext(service.WithClientIP(req.Context(), c.RealIP())))
		return next(c)
	}
}
