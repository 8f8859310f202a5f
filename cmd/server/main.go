package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/damacus/bucketview/internal/capability"
	"github.com/damacus/bucketview/internal/config"
	"github.com/damacus/bucketview/internal/coordinator"
	"github.com/damacus/bucketview/internal/handlers"
	"github.com/damacus/bucketview/internal/metrics"
	customMiddleware "github.com/damacus/bucketview/internal/middleware"
	"github.com/damacus/bucketview/internal/services"
	"github.com/damacus/bucketview/internal/tree"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load(args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	cfg.Log(logger)

	a, err := newApp(cfg, logger, &services.RealMinioFactory{})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.serve(ctx)
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).Level(lvl).With().Timestamp().Str("service", "bucketview").Logger()
}

// app holds the wired components behind one echo server
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
	echo   *echo.Echo
	store  services.ObjectStore
	cache  *tree.Cache
	pinger interface{ Ping(context.Context) error }
}

// newApp builds the store client once from immutable configuration and
// shares it read-only with every component.
func newApp(cfg *config.Config, logger zerolog.Logger, factory services.MinioClientFactory) (*app, error) {
	m := metrics.New()
	a := &app{cfg: cfg, logger: logger}

	var backend services.ObjectStore
	var memory *services.MemoryStore
	var usage handlers.UsageSource
	switch cfg.Backend {
	case config.BackendMemory:
		store, err := services.NewMemoryStore(cfg.BaseURL(), []byte(cfg.MemoryStoreSecret))
		if err != nil {
			return nil, err
		}
		memory, backend = store, store
		logger.Warn().Msg("using in-memory object store; contents are lost on restart")
	default:
		creds := cfg.Credentials()
		client, err := factory.NewClient(creds)
		if err != nil {
			return nil, fmt.Errorf("create store client: %w", err)
		}
		store := services.NewMinioStore(client, cfg.Bucket)
		backend, a.pinger = store, store
		if cfg.AdminUsage {
			admin, err := factory.NewAdminClient(creds)
			if err != nil {
				return nil, fmt.Errorf("create admin client: %w", err)
			}
			usage = services.NewUsageReporter(admin, cfg.Bucket)
		}
	}

	a.store = services.NewInstrumentedStore(backend, m, logger.With().Str("component", "store").Logger())

	builder := tree.NewBuilder(a.store, cfg.TreeOptions())
	builder.SetLogger(logger.With().Str("component", "tree").Logger())
	a.cache = tree.NewCache(builder, cfg.CacheTTL)
	a.cache.SetMaxEntries(cfg.CacheEntries)
	a.cache.SetObserver(m)
	a.cache.SetLogger(logger.With().Str("component", "cache").Logger())

	issuer := capability.NewIssuer(a.store, cfg.CapabilityTTL)
	issuer.SetObserver(m)
	issuer.SetLogger(logger.With().Str("component", "capability").Logger())

	coord := coordinator.New(a.store, issuer, a.cache)
	coord.SetLogger(logger.With().Str("component", "coordinator").Logger())

	a.echo = newServer(cfg, logger, m, serverDeps{
		objects: handlers.NewObjectsHandler(a.cache, coord),
		usage:   handlers.NewUsageHandler(usage),
		memory:  memory,
	})
	return a, nil
}

type serverDeps struct {
	objects *handlers.ObjectsHandler
	usage   *handlers.UsageHandler
	memory  *services.MemoryStore
}

func newServer(cfg *config.Config, logger zerolog.Logger, m *metrics.Metrics, deps serverDeps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handlers.ErrorHandler(logger)

	// Middleware
	e.Use(middleware.RequestID())
	e.Use(customMiddleware.RequestLogger(logger))
	e.Use(middleware.Recover())
	e.Use(m.Middleware())
	e.Use(customMiddleware.SecurityHeaders())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:  cfg.AllowOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodHead, http.MethodPut, http.MethodPost, http.MethodDelete},
		AllowHeaders:  []string{echo.HeaderContentType, echo.HeaderAuthorization, "X-Api-Token"},
		ExposeHeaders: []string{echo.HeaderXRequestID},
	}))
	// Applied globally; public routes are skipped internally
	e.Use(customMiddleware.APIToken(cfg.APIToken))

	// Public Routes
	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})
	e.GET("/metrics", echo.WrapHandler(m.Handler()))

	// Namespace and capabilities
	e.GET("/objects", deps.objects.ListObjects)
	e.GET("/upload-url", deps.objects.UploadURL)
	e.GET("/signed-url", deps.objects.SignedURL)
	e.DELETE("/delete-file", deps.objects.DeleteFile)
	e.POST("/upload-complete", deps.objects.UploadComplete)
	e.GET("/usage", deps.usage.GetUsage)

	// Capability redemption, memory backend only
	if deps.memory != nil {
		store := handlers.NewStoreHandler(deps.memory)
		e.Match([]string{http.MethodGet, http.MethodHead, http.MethodPut}, services.MemoryStorePath, store.Redeem)
	}

	return e
}

// serve runs until ctx is cancelled, then drains in-flight requests
func (a *app) serve(ctx context.Context) error {
	if a.pinger != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := a.pinger.Ping(pingCtx); err != nil {
			a.logger.Warn().Err(err).Str("bucket", a.cfg.Bucket).Msg("bucket is not reachable yet")
		}
		cancel()
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info().Str("addr", a.cfg.ListenAddr).Msg("listening")
		errCh <- a.echo.Start(a.cfg.ListenAddr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return a.echo.Shutdown(shutdownCtx)
}
