// Command fintrack serves the JSON API, optionally running the recurring
// transaction scheduler in the same process.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"fintrack/internal/auth"
	"fintrack/internal/cli"
	apphttp "fintrack/internal/http"
	applog "fintrack/internal/log"
	"fintrack/internal/scheduler"
	"fintrack/internal/services"

	"golang.org/x/sync/errgroup"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code so deferred cleanup always runs.
func run() int {
	cfg, logger := cli.Bootstrap()
	logger.Info("Starting fintrack", "environment", cfg.Environment, "backend", cfg.DataBackend)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	res := cli.InitStore(ctx, logger, cfg)
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Cleanup failed", "error", err)
		}
	}()

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL)
	svc := services.New(res.Store, services.Options{
		Tokens:    tokens,
		Hasher:    auth.NewPasswordHasher(cfg.BcryptCost),
		Publisher: res.Publisher,
		Location:  cfg.Location(),
		Logger:    applog.New(applog.Config{Handler: logger.Handler(), Component: applog.ComponentTransactions}),
	})

	srv := apphttp.NewServer(apphttp.Options{
		Addr:           ":" + cfg.Port,
		Services:       svc,
		Tokens:         tokens,
		Pinger:         res.Store,
		CORSOrigins:    cfg.CORSAllowedOrigins,
		AuthRateLimit:  cfg.RateLimitPerMinute,
		TrustedProxies: cfg.TrustedProxies,
		Logger:         applog.New(applog.Config{Handler: logger.Handler(), Component: applog.ComponentApp}),
	})

	var sched *scheduler.Scheduler
	if cfg.SchedulerEnabled {
		var err error
		sched, err = scheduler.New(svc.Recurring, scheduler.Options{
			Spec:     cfg.RecurringCron,
			Location: cfg.Location(),
			Logger:   logger,
		})
		if err != nil {
			logger.Error("Failed to configure scheduler", "error", err, "spec", cfg.RecurringCron)
			return 1
		}
	}

	sigCtx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	})

	g, gctx := errgroup.WithContext(sigCtx)
	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if sched != nil {
		g.Go(func() error {
			return sched.Run(gctx)
		})
	}

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Server error", "error", err)
		return 1
	}

	cli.WaitForShutdown(sigCtx, done)
	logger.Info("Server stopped gracefully")
	return 0
}
