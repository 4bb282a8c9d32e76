// Package app assembles the server from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/Skotchmaster/galenos/internal/audit"
	"github.com/Skotchmaster/galenos/internal/config"
	"github.com/Skotchmaster/galenos/internal/events"
	"github.com/Skotchmaster/galenos/internal/hash"
	"github.com/Skotchmaster/galenos/internal/logging"
	"github.com/Skotchmaster/galenos/internal/metrics"
	"github.com/Skotchmaster/galenos/internal/middleware/auth"
	"github.com/Skotchmaster/galenos/internal/ratelimit"
	"github.com/Skotchmaster/galenos/internal/repo"
	"github.com/Skotchmaster/galenos/internal/service"
	"github.com/Skotchmaster/galenos/internal/tokens"
	httpserver "github.com/Skotchmaster/galenos/internal/transport/http"
)

type App struct {
	Echo    *echo.Echo
	DB      *gorm.DB
	Auth    *service.AuthService
	Limiter *ratelimit.Limiter
	Log     zerolog.Logger

	closers []io.Closer
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// New opens every backing service named in cfg and wires the HTTP server.
// Optional backends (Redis, Kafka, Elasticsearch) are skipped when their URL
// is empty. cfg must already be validated.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (_ *App, err error) {
	a := &App{Log: log}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	db, err := config.OpenDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	a.DB = db
	a.closers = append(a.closers, closerFunc(func() error { return config.CloseDB(db) }))
	if err := config.Migrate(db); err != nil {
		return nil, err
	}

	codec, err := tokens.NewCodec(cfg.TokenSettings(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrConfig, err)
	}

	limiter, err := a.newLimiter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Limiter = limiter

	publisher, err := a.newPublisher(cfg)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewAuth(reg)

	store := repo.New(db)
	auditSvc := &audit.Service{Store: store}
	if cfg.ESURL != "" {
		idx, err := audit.NewESIndexer(audit.ESConfig{
			URL:      cfg.ESURL,
			Username: cfg.ESUser,
			Password: cfg.ESPassword,
			Index:    cfg.ESAuditIndex,
		})
		if err != nil {
			log.Warn().Err(err).Msg("audit search index disabled")
		} else {
			auditSvc.Indexer = idx
		}
	}

	a.Auth = &service.AuthService{
		Repo:    store,
		Codec:   codec,
		Hasher:  hash.New(cfg.BcryptCost),
		Audit:   auditSvc,
		Events:  publisher,
		Metrics: m,
	}

	extractor, err := ipExtractor(cfg.Proxies())
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.IPExtractor = extractor
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = httpserver.ErrorHandler
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(
		logging.RequestLogger(log),
		logging.Recovery(log),
		middleware.Secure(),
		middleware.BodyLimit("1M"),
		middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:     cfg.Origins(),
			AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
			AllowHeaders:     []string{echo.HeaderAuthorization, echo.HeaderContentType},
			AllowCredentials: true,
		}),
	)

	httpserver.Register(e, &httpserver.Deps{
		AuthHandler:   &httpserver.AuthHTTP{Svc: a.Auth},
		UsersHandler:  &httpserver.UsersHTTP{Svc: a.Auth},
		AuditHandler:  &httpserver.AuditHTTP{Svc: auditSvc},
		HealthHandler: &httpserver.HealthHTTP{DB: pinger(db)},
		Gate:          auth.NewGate(a.Auth),
		Limiter:       limiter,
		Metrics:       m,
		MetricsPage:   metrics.Handler(reg),
	})
	a.Echo = e
	return a, nil
}

func (a *App) newLimiter(ctx context.Context, cfg *config.Config) (*ratelimit.Limiter, error) {
	var store ratelimit.Store = ratelimit.NewMemoryStore()
	if cfg.RedisURL != "" {
		rs, err := ratelimit.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rs)
		store = rs
	}
	l := ratelimit.New(store, cfg.RateLimitAttempts, cfg.RateLimitWindow)
	l.SetEnabled(cfg.RateLimitEnabled)
	return l, nil
}

func (a *App) newPublisher(cfg *config.Config) (events.Publisher, error) {
	brokers := cfg.Brokers()
	if len(brokers) == 0 {
		return events.Nop{}, nil
	}
	p, err := events.NewKafkaPublisher(brokers, cfg.KafkaTopic, a.Log)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, p)
	return p, nil
}

// ipExtractor decides what c.RealIP returns, and with it the rate limit key.
// Forwarding headers are only read from the listed proxy ranges.
func ipExtractor(cidrs []string) (echo.IPExtractor, error) {
	if len(cidrs) == 0 {
		return echo.ExtractIPDirect(), nil
	}
	opts := []echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}
	for _, c := range cidrs {
		_, ipnet, err := net.ParseCIDR(c)
		if err != nil {
			return nil, fmt.Errorf("%w: TRUSTED_PROXIES: %w", config.ErrConfig, err)
		}
		opts = append(opts, echo.TrustIPRange(ipnet))
	}
	return echo.ExtractIPFromXFFHeader(opts...), nil
}

func pinger(db *gorm.DB) httpserver.Pinger {
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
