// Command ledger-worker consumes transaction events from the broker and
// mirrors them into a Google Sheets ledger.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/cli"
	"fintrack/internal/config"
	"fintrack/internal/sheets"
	gsheet "fintrack/internal/sheets/google"
	mem "fintrack/internal/sheets/memory"
	"fintrack/internal/worker"
)

const statsInterval = 5 * time.Minute

func main() {
	backfillUser := flag.Int64("backfill-user", 0, "write every stored transaction of this user before consuming")
	flag.Parse()

	cfg, logger := cli.Bootstrap()
	logger.Info("Starting ledger-worker", "queue", cfg.AMQPQueue)

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the ledger worker")
		os.Exit(1)
	}

	sigCtx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, nil)

	ledger, err := newLedger(sigCtx, logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize ledger", "error", err)
		os.Exit(1)
	}
	w := worker.NewLedgerWorker(ledger)

	if *backfillUser > 0 {
		res := cli.InitStore(sigCtx, logger, cfg)
		n, err := w.Backfill(sigCtx, res.Store, *backfillUser)
		if cerr := res.Cleanup(); cerr != nil {
			logger.Error("Cleanup failed", "error", cerr)
		}
		if err != nil {
			logger.Error("Ledger backfill failed", "error", err, "user_id", *backfillUser, "rows", n)
			os.Exit(1)
		}
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	go logStats(sigCtx, logger, w)

	if err := client.RunConsumer(sigCtx, w.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", "error", err)
	}
	cli.WaitForShutdown(sigCtx, done)

	processed, failed := w.Stats()
	logger.Info("Ledger worker stopped", "processed", processed, "failed", failed)
}

// newLedger connects to the configured spreadsheet, or keeps rows in
// memory when none is configured.
func newLedger(ctx context.Context, logger *slog.Logger, cfg *config.Config) (sheets.LedgerWriter, error) {
	if cfg.GoogleSpreadsheetID == "" {
		logger.Warn("GOOGLE_SPREADSHEET_ID not set, ledger rows are kept in memory only")
		return mem.New(), nil
	}
	client, err := gsheet.New(ctx, gsheet.Options{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
		OAuthClientJSON: cfg.GoogleOAuthClientJSON,
		OAuthClientFile: cfg.GoogleOAuthClientFile,
		OAuthTokenFile:  cfg.GoogleOAuthTokenFile,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("Google Sheets ledger initialized",
		"spreadsheet_id", cfg.GoogleSpreadsheetID,
		"sheet", cfg.GoogleSheetName)
	return client, nil
}

func logStats(ctx context.Context, logger *slog.Logger, w *worker.LedgerWorker) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			processed, failed := w.Stats()
			logger.Info("Ledger worker stats", "processed", processed, "failed", failed)
		}
	}
}
