package services

import (
	"context"
	"fmt"
	"sort"

	"fintrack/internal/core"
	"fintrack/internal/storage"

	"golang.org/x/sync/errgroup"
)

// Defaults and limits of the analytics queries.
const (
	DefaultTrendMonths = 6
	MaxTrendMonths     = 24
	DefaultDailyDays   = 30
	MaxDailyDays       = 366
	DefaultRecentLimit = 10
	MaxRecentLimit     = 50
	DefaultTopLimit    = 5
	MaxTopLimit        = 20
)

// Comparison periods.
const (
	PeriodWeek  = "week"
	PeriodMonth = "month"
	PeriodYear  = "year"
)

type analyticsStore interface {
	storage.TransactionStore
	storage.AnalyticsStore
}

// DateRange is an optional inclusive range; nil bounds are open.
type DateRange struct {
	From *core.Date
	To   *core.Date
}

func (r DateRange) validate() error {
	if r.From != nil && r.To != nil && r.To.Before(*r.From) {
		return core.ValidationErrors{{Field: "endDate", Message: core.ErrInvalidDateRange.Error()}}
	}
	return nil
}

type AnalyticsService struct {
	store analyticsStore
	cal   calendar
}

func NewAnalyticsService(store analyticsStore, cal calendar) *AnalyticsService {
	return &AnalyticsService{store: store, cal: cal}
}

func (s *AnalyticsService) Summary(ctx context.Context, userID int64, rng DateRange) (core.Summary, error) {
	if err := rng.validate(); err != nil {
		return core.Summary{}, err
	}
	totals, err := s.store.TotalsByType(ctx, userID, storage.TransactionFilter{StartDate: rng.From, EndDate: rng.To})
	if err != nil {
		return core.Summary{}, err
	}
	return core.NewSummary(totals), nil
}

// CategoryBreakdown returns per-category totals of typ, largest first, with
// each category's share of the grand total.
func (s *AnalyticsService) CategoryBreakdown(ctx context.Context, userID int64, typ core.TransactionType, rng DateRange) ([]core.CategoryTotal, error) {
	if typ == "" {
		typ = core.Expense
	}
	if !typ.Valid() {
		return nil, core.ValidationErrors{{Field: "type", Message: "must be one of expense, income"}}
	}
	if err := rng.validate(); err != nil {
		return nil, err
	}
	totals, err := s.store.TotalsByCategory(ctx, userID, typ, rng.From, rng.To)
	if err != nil {
		return nil, err
	}
	if totals == nil {
		totals = []core.CategoryTotal{}
	}
	applyShares(totals)
	return totals, nil
}

// TopCategories is the head of the breakdown.
func (s *AnalyticsService) TopCategories(ctx context.Context, userID int64, typ core.TransactionType, rng DateRange, limit int) ([]core.CategoryTotal, error) {
	limit = clamp(limit, DefaultTopLimit, MaxTopLimit)
	totals, err := s.CategoryBreakdown(ctx, userID, typ, rng)
	if err != nil {
		return nil, err
	}
	if len(totals) > limit {
		totals = totals[:limit]
	}
	return totals, nil
}

// MonthlyTrends returns one point per month for the last months months,
// ending with the current one. Months without transactions are zero.
func (s *AnalyticsService) MonthlyTrends(ctx context.Context, userID int64, months int) ([]core.MonthlyTrend, error) {
	months = clamp(months, DefaultTrendMonths, MaxTrendMonths)
	today := s.cal.today()
	first := today.StartOfMonth()
	start := core.NewDate(first.Year(), first.Month()-(months-1), 1)

	rows, err := s.store.TotalsByPeriod(ctx, userID, storage.BucketMonth, start, today.EndOfMonth())
	if err != nil {
		return nil, err
	}
	byKey := indexPeriods(rows)

	out := make([]core.MonthlyTrend, 0, months)
	for i := 0; i < months; i++ {
		m := core.NewDate(start.Year(), start.Month()+i, 1)
		key := m.Format("2006-01")
		p := byKey[key]
		out = append(out, core.MonthlyTrend{
			Month:   key,
			Income:  p.income,
			Expense: p.expense,
			Balance: p.income.Sub(p.expense),
		})
	}
	return out, nil
}

// DailyPattern returns one point per day, either for rng when both bounds
// are set or for the last days days.
func (s *AnalyticsService) DailyPattern(ctx context.Context, userID int64, days int, rng DateRange) ([]core.DailyTotal, error) {
	var from, to core.Date
	if rng.From != nil && rng.To != nil {
		if err := rng.validate(); err != nil {
			return nil, err
		}
		from, to = *rng.From, *rng.To
		if to.Sub(from.Time).Hours()/24 >= MaxDailyDays {
			return nil, core.ValidationErrors{{Field: "endDate", Message: fmt.Sprintf("range must not exceed %d days", MaxDailyDays)}}
		}
	} else {
		days = clamp(days, DefaultDailyDays, MaxDailyDays)
		to = s.cal.today()
		from = to.AddDays(-(days - 1))
	}

	rows, err := s.store.TotalsByPeriod(ctx, userID, storage.BucketDay, from, to)
	if err != nil {
		return nil, err
	}
	byKey := indexPeriods(rows)

	out := []core.DailyTotal{}
	for d := from; !d.After(to); d = d.AddDays(1) {
		p := byKey[d.String()]
		out = append(out, core.DailyTotal{Date: d, Income: p.income, Expense: p.expense})
	}
	return out, nil
}

// RecentTransactions returns the newest transactions with their category.
func (s *AnalyticsService) RecentTransactions(ctx context.Context, userID int64, limit int) ([]core.Transaction, error) {
	limit = clamp(limit, DefaultRecentLimit, MaxRecentLimit)
	items, _, err := s.store.ListTransactions(ctx, userID, storage.TransactionFilter{
		SortBy: storage.SortByDate,
		Desc:   true,
		Limit:  limit,
	})
	return items, err
}

// Comparison compares the current period up to today with the whole
// preceding period of the same kind. Weeks start on Monday.
func (s *AnalyticsService) Comparison(ctx context.Context, userID int64, period string) (core.Comparison, error) {
	if period == "" {
		period = PeriodMonth
	}
	today := s.cal.today()

	var curStart, prevStart core.Date
	switch period {
	case PeriodWeek:
		curStart = today.StartOfWeek()
		prevStart = curStart.AddDays(-7)
	case PeriodMonth:
		curStart = today.StartOfMonth()
		prevStart = curStart.AddDays(-1).StartOfMonth()
	case PeriodYear:
		curStart = today.StartOfYear()
		prevStart = curStart.AddDays(-1).StartOfYear()
	default:
		return core.Comparison{}, core.ValidationErrors{{Field: "period", Message: "must be one of week, month, year"}}
	}
	prevEnd := curStart.AddDays(-1)

	var cur, prev core.Summary
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		cur, err = s.Summary(gctx, userID, DateRange{From: &curStart, To: &today})
		return err
	})
	g.Go(func() error {
		var err error
		prev, err = s.Summary(gctx, userID, DateRange{From: &prevStart, To: &prevEnd})
		return err
	})
	if err := g.Wait(); err != nil {
		return core.Comparison{}, err
	}

	return core.Comparison{
		Period:        period,
		CurrentStart:  curStart,
		CurrentEnd:    today,
		PreviousStart: prevStart,
		PreviousEnd:   prevEnd,
		Income:        change(cur.TotalIncome, prev.TotalIncome),
		Expense:       change(cur.TotalExpense, prev.TotalExpense),
		Balance:       change(cur.Balance, prev.Balance),
	}, nil
}

func change(cur, prev core.Money) core.Change {
	return core.Change{Current: cur, Previous: prev, Change: core.PercentChange(cur, prev)}
}

type periodSums struct {
	income, expense core.Money
}

func indexPeriods(rows []core.PeriodTotal) map[string]periodSums {
	out := make(map[string]periodSums, len(rows))
	for _, r := range rows {
		p := out[r.Period]
		switch r.Type {
		case core.Income:
			p.income = p.income.Add(r.Total)
		case core.Expense:
			p.expense = p.expense.Add(r.Total)
		}
		out[r.Period] = p
	}
	return out
}

// applyShares sets Percentage on every row so the shares add up to exactly
// 100 (in hundredths of a percent, largest remainder first). A zero grand
// total leaves every share at 0.
func applyShares(rows []core.CategoryTotal) {
	var grand int64
	for _, r := range rows {
		grand += r.Total.Cents
	}
	if grand <= 0 {
		return
	}

	const whole = 10000 // 100.00%
	type rem struct {
		idx  int
		frac int64
	}
	basis := make([]int64, len(rows))
	rems := make([]rem, len(rows))
	var assigned int64
	for i, r := range rows {
		scaled := r.Total.Cents * whole
		basis[i] = scaled / grand
		rems[i] = rem{idx: i, frac: scaled % grand}
		assigned += basis[i]
	}
	sort.SliceStable(rems, func(a, b int) bool { return rems[a].frac > rems[b].frac })
	for i := int64(0); i < whole-assigned; i++ {
		basis[rems[i].idx]++
	}
	for i := range rows {
		rows[i].Percentage = float64(basis[i]) / 100
	}
}

func clamp(v, def, max int) int {
	if v <= 0 {
		return def
	}
	if v > max {
		return max
	}
	return v
}
