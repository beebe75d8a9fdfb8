package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"fintrack/internal/amqp"
	"fintrack/internal/sheets"
	"fintrack/internal/storage"
)

const backfillPageSize = 100

// LedgerWorker mirrors transaction events into a spreadsheet ledger.
type LedgerWorker struct {
	ledger sheets.LedgerWriter

	processed atomic.Int64
	failed    atomic.Int64
}

func NewLedgerWorker(ledger sheets.LedgerWriter) *LedgerWorker {
	return &LedgerWorker{ledger: ledger}
}

// HandleEvent applies one event to the ledger. Returning an error asks the
// consumer to redeliver.
func (w *LedgerWorker) HandleEvent(ctx context.Context, ev *amqp.TransactionEvent) error {
	slog.InfoContext(ctx, "Processing transaction event",
		"type", ev.Type,
		"message_id", ev.MessageID,
		"transaction_id", ev.TransactionID)

	var err error
	switch ev.Type {
	case amqp.TransactionCreated, amqp.TransactionUpdated:
		var ref string
		ref, err = w.ledger.Upsert(ctx, sheets.RowFromTransaction(*ev.Transaction))
		if err == nil {
			slog.InfoContext(ctx, "Ledger row written", "transaction_id", ev.TransactionID, "sheets_ref", ref)
		}
	case amqp.TransactionDeleted:
		err = w.ledger.MarkDeleted(ctx, ev.TransactionID)
	default:
		err = fmt.Errorf("unsupported event type %q", ev.Type)
	}

	if err != nil {
		w.failed.Add(1)
		return fmt.Errorf("apply %s for transaction %d: %w", ev.Type, ev.TransactionID, err)
	}
	w.processed.Add(1)
	return nil
}

// Stats returns the number of applied and failed events since start.
func (w *LedgerWorker) Stats() (processed, failed int64) {
	return w.processed.Load(), w.failed.Load()
}

// Backfill writes every stored transaction of one user to the ledger. It
// recovers from events lost while the broker or the worker was down.
func (w *LedgerWorker) Backfill(ctx context.Context, store storage.TransactionStore, userID int64) (int, error) {
	written := 0
	for offset := 0; ; offset += backfillPageSize {
		items, total, err := store.ListTransactions(ctx, userID, storage.TransactionFilter{
			SortBy: storage.SortByDate,
			Limit:  backfillPageSize,
			Offset: offset,
		})
		if err != nil {
			return written, fmt.Errorf("list transactions: %w", err)
		}
		for _, tx := range items {
			if _, err := w.ledger.Upsert(ctx, sheets.RowFromTransaction(tx)); err != nil {
				return written, fmt.Errorf("write transaction %d: %w", tx.ID, err)
			}
			written++
		}
		if len(items) == 0 || offset+len(items) >= total {
			break
		}
	}
	slog.InfoContext(ctx, "Ledger backfill completed", "user_id", userID, "rows", written)
	return written, nil
}
