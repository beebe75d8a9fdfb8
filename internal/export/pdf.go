package export

import (
	"fmt"
	"io"
	"strconv"

	"fintrack/internal/core"

	"github.com/go-pdf/fpdf"
)

const (
	pageMargin  = 15.0
	rowHeight   = 7.0
	headerFont  = "Helvetica"
	maxDescRune = 48
)

type column struct {
	title string
	width float64
	align string
}

var txColumns = []column{
	{"Date", 25, "L"},
	{"Description", 70, "L"},
	{"Category", 40, "L"},
	{"Type", 20, "L"},
	{"Amount", 25, "R"},
}

// WritePDF renders r as an A4 portrait document.
func WritePDF(w io.Writer, r Report) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin+5)
	pdf.AliasNbPages("")
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFooterFunc(func() {
		pdf.SetY(-pageMargin)
		pdf.SetFont(headerFont, "I", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d of {nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	writeTitle(pdf, tr, r)
	writeSummary(pdf, tr, r)
	writeTransactions(pdf, tr, r)
	writeBreakdown(pdf, tr, r)

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}

func writeTitle(pdf *fpdf.Fpdf, tr func(string) string, r Report) {
	pdf.SetFont(headerFont, "B", 18)
	pdf.SetTextColor(17, 24, 39)
	pdf.CellFormat(0, 10, "Transaction Report", "", 1, "L", false, 0, "")

	pdf.SetFont(headerFont, "", 10)
	pdf.SetTextColor(75, 85, 99)
	if r.UserName != "" {
		pdf.CellFormat(0, 6, tr(r.UserName), "", 1, "L", false, 0, "")
	}
	pdf.CellFormat(0, 6, "Period: "+r.Period(), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Generated: "+r.GeneratedAt.Format("2006-01-02 15:04 MST"), "", 1, "L", false, 0, "")
	pdf.Ln(4)
}

func writeSummary(pdf *fpdf.Fpdf, tr func(string) string, r Report) {
	sectionTitle(pdf, "Summary")
	s := r.Summary
	lines := [][2]string{
		{"Total income", r.money(s.TotalIncome)},
		{"Total expenses", r.money(s.TotalExpense)},
		{"Balance", r.money(s.Balance)},
		{"Income transactions", strconv.Itoa(s.IncomeCount)},
		{"Expense transactions", strconv.Itoa(s.ExpenseCount)},
	}
	pdf.SetFont(headerFont, "", 10)
	pdf.SetTextColor(17, 24, 39)
	for _, l := range lines {
		pdf.CellFormat(60, 6, l[0], "", 0, "L", false, 0, "")
		pdf.CellFormat(50, 6, tr(l[1]), "", 1, "R", false, 0, "")
	}
	pdf.Ln(4)
}

func writeTransactions(pdf *fpdf.Fpdf, tr func(string) string, r Report) {
	sectionTitle(pdf, fmt.Sprintf("Transactions (%d)", len(r.Transactions)))
	if len(r.Transactions) == 0 {
		pdf.SetFont(headerFont, "I", 10)
		pdf.CellFormat(0, 6, "No transactions in this period.", "", 1, "L", false, 0, "")
		pdf.Ln(4)
		return
	}

	_, pageHeight := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	limit := pageHeight - bottom - rowHeight

	tableHeader(pdf)
	pdf.SetFont(headerFont, "", 9)
	for i, t := range r.Transactions {
		if pdf.GetY() > limit {
			pdf.AddPage()
			tableHeader(pdf)
			pdf.SetFont(headerFont, "", 9)
		}
		fill := i%2 == 1
		pdf.SetFillColor(243, 244, 246)
		amount := r.money(t.Amount)
		if t.Type == core.Expense {
			amount = "-" + amount
		}
		cells := []string{t.Date.String(), truncate(t.Description, maxDescRune), categoryName(t), string(t.Type), amount}
		for j, c := range txColumns {
			if j != len(txColumns)-1 {
				pdf.SetTextColor(17, 24, 39)
			} else if t.Type == core.Income {
				pdf.SetTextColor(21, 128, 61)
			} else {
				pdf.SetTextColor(185, 28, 28)
			}
			pdf.CellFormat(c.width, rowHeight, tr(cells[j]), "", 0, c.align, fill, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.Ln(4)
}

func writeBreakdown(pdf *fpdf.Fpdf, tr func(string) string, r Report) {
	sectionTitle(pdf, "Top expense categories")
	rows := r.Breakdown
	if len(rows) > MaxBreakdownRows {
		rows = rows[:MaxBreakdownRows]
	}
	pdf.SetFont(headerFont, "", 10)
	pdf.SetTextColor(17, 24, 39)
	if len(rows) == 0 {
		pdf.SetFont(headerFont, "I", 10)
		pdf.CellFormat(0, 6, "No expenses in this period.", "", 1, "L", false, 0, "")
		return
	}
	for _, c := range rows {
		pdf.CellFormat(80, 6, tr(c.Name), "", 0, "L", false, 0, "")
		pdf.CellFormat(40, 6, tr(r.money(c.Total)), "", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%.2f%%", c.Percentage), "", 1, "R", false, 0, "")
	}
}

func sectionTitle(pdf *fpdf.Fpdf, title string) {
	pdf.SetFont(headerFont, "B", 13)
	pdf.SetTextColor(17, 24, 39)
	pdf.CellFormat(0, 8, title, "B", 1, "L", false, 0, "")
	pdf.Ln(2)
}

func tableHeader(pdf *fpdf.Fpdf) {
	pdf.SetFont(headerFont, "B", 9)
	pdf.SetFillColor(31, 41, 55)
	pdf.SetTextColor(255, 255, 255)
	for _, c := range txColumns {
		pdf.CellFormat(c.width, rowHeight, c.title, "", 0, c.align, true, 0, "")
	}
	pdf.Ln(-1)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
