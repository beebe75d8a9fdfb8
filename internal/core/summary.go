package core

import "github.com/shopspring/decimal"

// TypeTotal is a sum and count of one transaction type.
type TypeTotal struct {
	Type  TransactionType
	Total Money
	Count int
}

// PeriodTotal is a sum for one type over one bucket ("2024-03" or "2024-03-01").
type PeriodTotal struct {
	Period string
	Type   TransactionType
	Total  Money
}

// Summary is the income/expense rollup of a set of transactions.
type Summary struct {
	TotalIncome      Money `json:"totalIncome"`
	TotalExpense     Money `json:"totalExpense"`
	Balance          Money `json:"balance"`
	IncomeCount      int   `json:"incomeCount"`
	ExpenseCount     int   `json:"expenseCount"`
	TransactionCount int   `json:"transactionCount"`
	AverageIncome    Money `json:"averageIncome"`
	AverageExpense   Money `json:"averageExpense"`
}

// NewSummary folds per-type totals into a Summary.
func NewSummary(totals []TypeTotal) Summary {
	var s Summary
	for _, t := range totals {
		switch t.Type {
		case Income:
			s.TotalIncome = s.TotalIncome.Add(t.Total)
			s.IncomeCount += t.Count
		case Expense:
			s.TotalExpense = s.TotalExpense.Add(t.Total)
			s.ExpenseCount += t.Count
		}
	}
	s.Balance = s.TotalIncome.Sub(s.TotalExpense)
	s.TransactionCount = s.IncomeCount + s.ExpenseCount
	s.AverageIncome = s.TotalIncome.DivideBy(s.IncomeCount)
	s.AverageExpense = s.TotalExpense.DivideBy(s.ExpenseCount)
	return s
}

// CategoryTotal is one row of a category breakdown.
type CategoryTotal struct {
	CategoryID int64           `json:"categoryId"`
	Name       string          `json:"name"`
	Color      string          `json:"color"`
	Icon       string          `json:"icon"`
	Type       TransactionType `json:"type"`
	Total      Money           `json:"total"`
	Count      int             `json:"count"`
	Percentage float64         `json:"percentage"`
}

// MonthlyTrend is one point of the dense monthly series.
type MonthlyTrend struct {
	Month   string `json:"month"`
	Income  Money  `json:"income"`
	Expense Money  `json:"expense"`
	Balance Money  `json:"balance"`
}

// DailyTotal is one point of the dense daily series.
type DailyTotal struct {
	Date    Date  `json:"date"`
	Income  Money `json:"income"`
	Expense Money `json:"expense"`
}

// Change compares one metric across two periods.
type Change struct {
	Current  Money   `json:"current"`
	Previous Money   `json:"previous"`
	Change   float64 `json:"change"`
}

// Comparison compares the current period with the preceding one.
type Comparison struct {
	Period        string `json:"period"`
	CurrentStart  Date   `json:"currentStart"`
	CurrentEnd    Date   `json:"currentEnd"`
	PreviousStart Date   `json:"previousStart"`
	PreviousEnd   Date   `json:"previousEnd"`
	Income        Change `json:"income"`
	Expense       Change `json:"expense"`
	Balance       Change `json:"balance"`
}

// PercentChange applies the comparison policy: relative change when the
// previous value is non-zero, otherwise 100 for growth from zero and 0.
func PercentChange(current, previous Money) float64 {
	if previous.Cents == 0 {
		if current.Cents > 0 {
			return 100
		}
		return 0
	}
	abs := previous
	if abs.Cents < 0 {
		abs.Cents = -abs.Cents
	}
	return Percentage(current.Sub(previous), abs)
}

// BudgetState classifies spending against a budget.
type BudgetState string

const (
	BudgetSafe     BudgetState = "safe"
	BudgetWarning  BudgetState = "warning"
	BudgetExceeded BudgetState = "exceeded"
)

// Budget thresholds, in percent of the budget amount.
const (
	WarningThreshold  = 70.0
	ExceededThreshold = 100.0
)

// BudgetStatus is a budget with its live spending for the current window.
type BudgetStatus struct {
	Budget            Budget      `json:"budget"`
	WindowStart       Date        `json:"windowStart"`
	WindowEnd         Date        `json:"windowEnd"`
	Spent             Money       `json:"spent"`
	Remaining         Money       `json:"remaining"`
	Percentage        float64     `json:"percentage"`
	DisplayPercentage float64     `json:"displayPercentage"`
	Status            BudgetState `json:"status"`
}

// ClassifyBudget derives the status from the exact, unrounded ratio; only
// the reported percentages are rounded and the display value is capped at 100.
func ClassifyBudget(spent, amount Money) (percentage, display float64, state BudgetState) {
	exact := ratio(spent, amount)
	percentage = exact.Round(2).InexactFloat64()
	display = percentage
	if display > 100 {
		display = 100
	}
	switch {
	case exact.GreaterThanOrEqual(decimal.NewFromFloat(ExceededThreshold)):
		state = BudgetExceeded
	case exact.GreaterThanOrEqual(decimal.NewFromFloat(WarningThreshold)):
		state = BudgetWarning
	default:
		state = BudgetSafe
	}
	return percentage, display, state
}

// UpcomingOccurrence is a projected future run of a recurring transaction.
type UpcomingOccurrence struct {
	RecurringID int64           `json:"recurringId"`
	Date        Date            `json:"date"`
	Description string          `json:"description"`
	Amount      Money           `json:"amount"`
	Type        TransactionType `json:"type"`
	Category    *CategoryRef    `json:"category,omitempty"`
}
