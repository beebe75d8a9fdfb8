package google

import (
	"strconv"
	"strings"
	"time"

	"fintrack/internal/core"
	ports "fintrack/internal/sheets"
)

var headerRow = []any{"ID", "User", "Date", "Type", "Category", "Description", "Amount", "Tags", "Status", "Updated"}

// rowValues renders a ledger row in column order A..J.
func rowValues(row ports.LedgerRow, updated time.Time) []any {
	status := row.Status
	if status == "" {
		status = ports.StatusActive
	}
	return []any{
		row.TransactionID,
		row.UserID,
		row.Date.String(),
		string(row.Type),
		row.Category,
		row.Description,
		row.Amount.String(),
		strings.Join(row.Tags, ", "),
		status,
		updated.Format(time.RFC3339),
	}
}

// parseLedgerRow is the inverse of rowValues. Rows whose id, date or amount
// do not parse (the header included) are rejected.
func parseLedgerRow(cols []string) (ports.LedgerRow, bool) {
	if len(cols) < 7 {
		return ports.LedgerRow{}, false
	}
	id, err := strconv.ParseInt(cols[0], 10, 64)
	if err != nil {
		return ports.LedgerRow{}, false
	}
	userID, _ := strconv.ParseInt(safeGet(cols, 1), 10, 64)
	date, err := core.ParseDate(cols[2])
	if err != nil {
		return ports.LedgerRow{}, false
	}
	amount, ok := parseAmount(cols[6])
	if !ok {
		return ports.LedgerRow{}, false
	}

	var tags []string
	for _, t := range strings.Split(safeGet(cols, 7), ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	status := safeGet(cols, 8)
	if status == "" {
		status = ports.StatusActive
	}

	return ports.LedgerRow{
		TransactionID: id,
		UserID:        userID,
		Date:          date,
		Type:          core.TransactionType(cols[3]),
		Category:      cols[4],
		Description:   cols[5],
		Amount:        amount,
		Tags:          tags,
		Status:        status,
	}, true
}

// parseAmount accepts the formatted cell value, including a decimal comma
// and thousands separators applied by the spreadsheet locale.
func parseAmount(s string) (core.Money, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return core.Money{}, false
	}
	if strings.Contains(s, ",") && !strings.Contains(s, ".") {
		s = strings.ReplaceAll(s, ",", ".")
	} else {
		s = strings.ReplaceAll(s, ",", "")
	}
	m, err := core.ParseMoney(s)
	if err != nil {
		return core.Money{}, false
	}
	return m, true
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return strings.TrimSpace(arr[idx])
}
