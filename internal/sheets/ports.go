package sheets

import (
	"context"

	"fintrack/internal/core"
)

// Row statuses written to the ledger.
const (
	StatusActive  = "active"
	StatusDeleted = "deleted"
)

// LedgerRow is one transaction as mirrored to the spreadsheet.
type LedgerRow struct {
	TransactionID int64
	UserID        int64
	Date          core.Date
	Type          core.TransactionType
	Category      string
	Description   string
	Amount        core.Money
	Tags          []string
	Status        string
}

// RowFromTransaction builds the ledger row for an active transaction.
func RowFromTransaction(tx core.Transaction) LedgerRow {
	row := LedgerRow{
		TransactionID: tx.ID,
		UserID:        tx.UserID,
		Date:          tx.Date,
		Type:          tx.Type,
		Description:   tx.Description,
		Amount:        tx.Amount,
		Tags:          tx.Tags,
		Status:        StatusActive,
	}
	if tx.Category != nil {
		row.Category = tx.Category.Name
	}
	return row
}

// Ports for outbound adapters.
type (
	// LedgerWriter keeps one row per transaction id.
	LedgerWriter interface {
		// Upsert overwrites the row for row.TransactionID, appending it when missing.
		Upsert(ctx context.Context, row LedgerRow) (rowRef string, err error)
		// MarkDeleted flags the row; unknown ids are ignored.
		MarkDeleted(ctx context.Context, transactionID int64) error
	}

	LedgerReader interface {
		ListRows(ctx context.Context) ([]LedgerRow, error)
	}
)
