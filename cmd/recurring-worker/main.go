// Command recurring-worker runs the scheduled recurring transaction sweep
// on its own, for deployments that keep the API process stateless.
package main

import (
	"flag"
	"os"

	"fintrack/internal/cli"
	"fintrack/internal/scheduler"
	"fintrack/internal/services"
)

func main() {
	once := flag.Bool("once", false, "run a single sweep and exit")
	flag.Parse()
	os.Exit(run(*once))
}

func run(once bool) int {
	cfg, logger := cli.Bootstrap()
	logger.Info("Starting recurring-worker",
		"spec", cfg.RecurringCron,
		"timezone", cfg.Location().String())

	sigCtx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, nil)
	res := cli.InitStore(sigCtx, logger, cfg)
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Cleanup failed", "error", err)
		}
	}()

	svc := services.New(res.Store, services.Options{
		Publisher: res.Publisher,
		Location:  cfg.Location(),
	})
	sched, err := scheduler.New(svc.Recurring, scheduler.Options{
		Spec:       cfg.RecurringCron,
		Location:   cfg.Location(),
		RunOnStart: true,
		Logger:     logger,
	})
	if err != nil {
		logger.Error("Failed to configure scheduler", "error", err)
		return 1
	}

	if once {
		if _, err := sched.RunOnce(sigCtx); err != nil {
			logger.Error("Recurring sweep failed", "error", err)
			return 1
		}
		return 0
	}

	if err := sched.Run(sigCtx); err != nil {
		logger.Error("Scheduler stopped with error", "error", err)
	}
	cli.WaitForShutdown(sigCtx, done)
	return 0
}
