package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

var csvHeader = []string{"Date", "Type", "Category", "Description", "Amount", "Tags"}

// WriteCSV writes one line per transaction. Amounts are plain decimals so
// spreadsheets can sum them.
func WriteCSV(w io.Writer, r Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, t := range r.Transactions {
		rec := []string{
			t.Date.String(),
			string(t.Type),
			categoryName(t),
			t.Description,
			t.Amount.String(),
			strings.Join(t.Tags, ";"),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write csv row %d: %w", t.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
