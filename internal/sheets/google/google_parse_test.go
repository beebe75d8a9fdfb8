package google

import (
	"testing"
	"time"

	"fintrack/internal/core"
	ports "fintrack/internal/sheets"
)

func TestRowValuesRoundTrip(t *testing.T) {
	row := ports.LedgerRow{
		TransactionID: 42,
		UserID:        7,
		Date:          core.NewDate(2024, 3, 1),
		Type:          core.Expense,
		Category:      "Groceries",
		Description:   "Weekly shop",
		Amount:        core.Money{Cents: 5000},
		Tags:          []string{"weekly", "food"},
	}
	values := rowValues(row, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))
	if len(values) != len(headerRow) {
		t.Fatalf("got %d columns, want %d", len(values), len(headerRow))
	}
	if values[6] != "50.00" {
		t.Fatalf("amount cell = %v, want 50.00", values[6])
	}
	if values[8] != ports.StatusActive {
		t.Fatalf("status cell = %v, want active", values[8])
	}

	parsed, ok := parseLedgerRow(toStrings(values))
	if !ok {
		t.Fatal("rendered row should parse")
	}
	if parsed.TransactionID != 42 || parsed.UserID != 7 {
		t.Fatalf("ids = %d/%d", parsed.TransactionID, parsed.UserID)
	}
	if parsed.Date.String() != "2024-03-01" || parsed.Amount.Cents != 5000 {
		t.Fatalf("date/amount = %s/%d", parsed.Date, parsed.Amount.Cents)
	}
	if len(parsed.Tags) != 2 || parsed.Tags[1] != "food" {
		t.Fatalf("tags = %v", parsed.Tags)
	}
}

func TestParseLedgerRow_Rejects(t *testing.T) {
	tests := []struct {
		name string
		cols []string
	}{
		{"header", toStrings(headerRow)},
		{"too short", []string{"1", "2", "2024-03-01"}},
		{"bad date", []string{"1", "2", "03/01/2024", "expense", "Food", "x", "1.00"}},
		{"bad amount", []string{"1", "2", "2024-03-01", "expense", "Food", "x", "abc"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := parseLedgerRow(tt.cols); ok {
				t.Fatalf("parseLedgerRow(%v) should fail", tt.cols)
			}
		})
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"50.00", 5000, true},
		{"50,5", 5050, true},
		{"1,234.56", 123456, true},
		{"", 0, false},
		{"-3", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := parseAmount(tt.in)
			if ok != tt.ok || got.Cents != tt.want {
				t.Fatalf("parseAmount(%q) = %d,%v want %d,%v", tt.in, got.Cents, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestIndexRows(t *testing.T) {
	values := [][]any{{"ID"}, {"3"}, {}, {float64(9)}, {"not-an-id"}}
	index := indexRows(values)
	if index[3] != 2 {
		t.Fatalf("row for 3 = %d, want 2", index[3])
	}
	if index[9] != 4 {
		t.Fatalf("row for 9 = %d, want 4", index[9])
	}
	if len(index) != 2 {
		t.Fatalf("index = %v", index)
	}
}
