package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/merit/internal/adapters/http/api"
	"github.com/okian/merit/internal/adapters/http/swagger"
	"github.com/okian/merit/internal/adapters/repository"
	app "github.com/okian/merit/internal/app"
	"github.com/okian/merit/internal/config"
	"github.com/okian/merit/pkg/logger"
	"github.com/okian/merit/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 35 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	systemMetricsInterval  = 10 * time.Second
	serviceMetricsInterval = 5 * time.Second
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logger.Get().Error(ctx, "meritd exited with error", logger.Error(err))
		stop()
		os.Exit(1) //nolint:gocritic // exitAfterDefer: stop already called
	}
}

// run wires config, storage, the service and the HTTP server, and blocks
// until ctx is cancelled or a component fails.
func run(ctx context.Context) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		return err
	}
	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	store, err := repository.Open(ctx, cfg.DBPath,
		repository.WithTimeout(cfg.StoreTimeout()),
		repository.WithLogger(log.Named("store")))
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error(ctx, "store close failed", logger.Error(err))
		}
	}()

	opts, err := app.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}
	svc, err := app.New(store, append(opts, app.WithLogger(log.Named("service")))...)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return err
	}

	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: api.NewServer(svc,
			api.WithMaxLimit(cfg.MaxLeaderboardLimit),
			api.WithLogger(log.Named("http")),
			api.WithRoutes(swagger.Register),
		).Handler(),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info(gctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info(gctx, "shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error(gctx, "server shutdown failed", logger.Error(err))
		}
		return svc.Stop(shutdownCtx)
	})
	g.Go(func() error {
		streakRolloverLoop(gctx, svc, cfg.StreakRolloverInterval(), log)
		return nil
	})
	g.Go(func() error {
		reloadOnHangup(gctx, svc, cfg.RulesPath, log)
		return nil
	})
	g.Go(func() error {
		tick(gctx, systemMetricsInterval, updateSystemMetrics)
		return nil
	})
	g.Go(func() error {
		tick(gctx, serviceMetricsInterval, func() { svc.Stats(gctx) })
		return nil
	})

	err = g.Wait()
	log.Info(ctx, "server stopped")
	return err
}

// tick calls fn every interval until ctx is done.
func tick(ctx context.Context, interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

// streakRoller is the part of the service the rollover job needs.
type streakRoller interface {
	RollStreaks(ctx context.Context) (int, error)
}

// streakRolloverLoop runs the streak rollover once at start and then every
// interval. A zero interval disables the job.
func streakRolloverLoop(ctx context.Context, svc streakRoller, interval time.Duration, log logger.Logger) {
	if interval <= 0 {
		log.Info(ctx, "streak rollover job disabled")
		return
	}
	roll := func() {
		if _, err := svc.RollStreaks(ctx); err != nil && ctx.Err() == nil {
			log.Warn(ctx, "streak rollover failed", logger.Error(err))
		}
	}
	roll()
	tick(ctx, interval, roll)
}

// rulesReloader is the part of the service SIGHUP reloads need.
type rulesReloader interface {
	ReloadRules(ctx context.Context, r config.Rules) (int64, error)
}

// reloadRules reads the catalog at path and swaps it into svc. A bad file
// leaves the running rules untouched.
func reloadRules(ctx context.Context, svc rulesReloader, path string, log logger.Logger) error {
	rules, err := config.LoadRules(path)
	if err != nil {
		log.Error(ctx, "rules reload rejected", logger.String("path", path), logger.Error(err))
		return err
	}
	version, err := svc.ReloadRules(ctx, rules)
	if err != nil {
		log.Error(ctx, "rules reload rejected", logger.String("path", path), logger.Error(err))
		return err
	}
	log.Info(ctx, "rules reloaded", logger.String("path", path), logger.Int64("version", version))
	return nil
}

func reloadOnHangup(ctx context.Context, svc rulesReloader, path string, log logger.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			_ = reloadRules(ctx, svc, path, log)
		}
	}
}

// updateSystemMetrics updates process-level gauges.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}
