package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/metroflow/internal/adapters/http/api"
	"github.com/okian/metroflow/internal/adapters/http/swagger"
	"github.com/okian/metroflow/internal/adapters/repository"
	service "github.com/okian/metroflow/internal/app"
	"github.com/okian/metroflow/internal/config"
	"github.com/okian/metroflow/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "server failed", logger.Error(err))
		os.Exit(1)
	}
}

func snapshotPaths(cfg *config.Config) repository.SnapshotPaths {
	return repository.SnapshotPaths{
		Stations:   cfg.Path(cfg.StationsFile),
		Scores:     cfg.Path(cfg.ScoresFile),
		POIs:       cfg.Path(cfg.POIsFile),
		Normalized: cfg.Path(cfg.NormalizedFile),
	}
}

// newHandler loads the first snapshot and builds every route.
func newHandler(ctx context.Context, cfg *config.Config) (*service.Query, http.Handler, error) {
	paths := snapshotPaths(cfg)
	query, err := service.NewQuery(ctx,
		func(ctx context.Context) (*repository.Snapshot, error) {
			return repository.LoadSnapshot(ctx, paths)
		},
		service.WithReferenceDate(cfg.ReferenceDate),
		service.WithDefaultWidth(cfg.FlowIntervalMinutes),
		service.WithCacheSize(cfg.AnalysisCacheSize),
	)
	if err != nil {
		return nil, nil, err
	}
	srv := api.NewServer(query)
	swagger.Register(srv.Engine())
	return query, srv, nil
}

func run(ctx context.Context, cfg *config.Config) error {
	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	query, handler, err := newHandler(ctx, cfg)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		reloadOnHangup(gctx, query)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info(ctx, "shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	log.Info(ctx, "server stopped")
	return err
}

// reloadOnHangup swaps in a fresh snapshot on every SIGHUP.
func reloadOnHangup(ctx context.Context, query *service.Query) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := query.Reload(ctx); err != nil {
				logger.Get().Error(ctx, "snapshot reload failed; keeping the current one", logger.Error(err))
			}
		}
	}
}
