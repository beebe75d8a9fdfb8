// Package export renders transaction reports as PDF and CSV documents.
package export

import (
	"fmt"
	"time"

	"fintrack/internal/core"
)

// MaxBreakdownRows is the number of categories listed in a report.
const MaxBreakdownRows = 10

// Report is everything a rendered document shows.
type Report struct {
	UserName     string
	Currency     string
	From         *core.Date
	To           *core.Date
	GeneratedAt  time.Time
	Summary      core.Summary
	Transactions []core.Transaction
	// Breakdown lists expense categories, largest first.
	Breakdown []core.CategoryTotal
}

// Period describes the covered range for humans.
func (r Report) Period() string {
	switch {
	case r.From == nil && r.To == nil:
		return "All time"
	case r.From == nil:
		return "Until " + r.To.String()
	case r.To == nil:
		return "From " + r.From.String()
	default:
		return r.From.String() + " to " + r.To.String()
	}
}

// Filename is the download name, e.g. transactions-2024-03-01-2024-03-31.pdf.
func (r Report) Filename(ext string) string {
	from, to := "all", r.GeneratedAt.Format(core.DateLayout)
	if r.From != nil {
		from = r.From.String()
	}
	if r.To != nil {
		to = r.To.String()
	}
	return fmt.Sprintf("transactions-%s-%s.%s", from, to, ext)
}

func (r Report) money(m core.Money) string {
	return core.FormatMoney(m, r.Currency)
}

func categoryName(t core.Transaction) string {
	if t.Category == nil {
		return ""
	}
	return t.Category.Name
}
