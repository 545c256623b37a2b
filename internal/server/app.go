package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/websearch-worker/internal/api"
	"github.com/JakeFAU/websearch-worker/internal/cache"
	"github.com/JakeFAU/websearch-worker/internal/clock/system"
	"github.com/JakeFAU/websearch-worker/internal/config"
	collyfetcher "github.com/JakeFAU/websearch-worker/internal/fetcher/colly"
	"github.com/JakeFAU/websearch-worker/internal/id/uuid"
	"github.com/JakeFAU/websearch-worker/internal/logging"
	"github.com/JakeFAU/websearch-worker/internal/metrics"
	"github.com/JakeFAU/websearch-worker/internal/tools"
)

// App contains the worker's dependencies.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	fetcher *collyfetcher.Fetcher
	cache   *cache.TTL[*tools.FetchResult]
	server  *Server
	diag    *api.Server
	diagLn  net.Listener
}

// Build creates the worker's dependencies. Responses are written to out.
// A diagnostics listener that cannot bind fails the build.
func Build(cfg config.Config, out io.Writer) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Debug)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	metrics.Init()

	app := &App{cfg: cfg, logger: logger}
	logger.Info("building worker",
		zap.String("name", cfg.Server.Name),
		zap.Duration("request_timeout", cfg.RequestTimeout()),
		zap.Duration("cache_ttl", cfg.CacheTTL()),
	)

	clock := system.New()
	app.fetcher = collyfetcher.New(collyfetcher.Config{
		UserAgent:    cfg.HTTP.UserAgent,
		Timeout:      cfg.RequestTimeout(),
		MaxBodyBytes: cfg.HTTP.MaxBodyBytes,
	}, logger.Named("fetcher"))
	app.cache = cache.New[*tools.FetchResult](cfg.CacheTTL(), clock)

	toolbox := tools.NewToolbox(app.fetcher, app.cache, tools.Options{
		SearchEndpoint:   cfg.Search.Endpoint,
		DefaultResults:   cfg.Search.DefaultResults,
		MaxResults:       cfg.Search.MaxResults,
		MaxTextChars:     cfg.Fetch.MaxTextChars,
		MaxLinkTextChars: cfg.Links.MaxTextChars,
	}, logger.Named("tools"))

	app.server = New(cfg.Server.Name, cfg.Server.Version, Deps{
		Registry: tools.NewRegistry(toolbox),
		Fetcher:  app.fetcher,
		Clock:    clock,
		IDs:      uuid.New(),
		Logger:   logger.Named("dispatch"),
	}, out)

	if cfg.Diagnostics.Addr != "" {
		ln, err := net.Listen("tcp", cfg.Diagnostics.Addr)
		if err != nil {
			_ = app.fetcher.Close()
			return nil, fmt.Errorf("diagnostics listen %s: %w", cfg.Diagnostics.Addr, err)
		}
		app.diagLn = ln
		app.diag = api.NewServer(app.cache, logger.Named("api"))
	}

	return app, nil
}

// Logger returns the worker's root logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Run announces the worker, then serves requests from in until end of input
// or a termination signal. Both end cleanly with a nil error.
func (a *App) Run(ctx context.Context, in io.Reader) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.server.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(serveCtx)
	g.Go(func() error {
		defer cancel()
		return a.server.Serve(gctx, in)
	})
	if a.diag != nil {
		g.Go(func() error {
			return a.diag.Serve(gctx, a.diagLn)
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		a.logger.Info("shutdown initiated", zap.Error(context.Cause(ctx)))
		return nil
	}
	return err
}

// Close releases the HTTP session and flushes logs.
func (a *App) Close() error {
	err := a.server.Stop()
	if a.diagLn != nil {
		// Already closed when the diagnostics server ran; ignore the error.
		_ = a.diagLn.Close()
	}
	a.logger.Info("shutdown complete")
	if syncErr := a.logger.Sync(); syncErr != nil && !errors.Is(syncErr, syscall.EINVAL) && !errors.Is(syncErr, syscall.ENOTTY) {
		err = errors.Join(err, fmt.Errorf("logger sync: %w", syncErr))
	}
	return err
}
