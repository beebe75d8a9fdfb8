package services

import (
	"context"
	"fmt"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/export"
	"fintrack/internal/storage"
)

// maxReportRows caps the transactions listed in one export.
const maxReportRows = 5000

type reportStore interface {
	storage.UserStore
	storage.TransactionStore
	storage.AnalyticsStore
}

// ReportService gathers the data behind PDF and CSV exports.
type ReportService struct {
	store     reportStore
	analytics *AnalyticsService
	now       Clock
}

func NewReportService(store reportStore, analytics *AnalyticsService) *ReportService {
	return &ReportService{store: store, analytics: analytics, now: time.Now}
}

// Build collects the report for the filtered transactions, oldest first.
func (s *ReportService) Build(ctx context.Context, userID int64, f storage.TransactionFilter) (export.Report, error) {
	if err := validateFilter(f); err != nil {
		return export.Report{}, err
	}
	u, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return export.Report{}, err
	}

	f.SortBy, f.Desc = storage.SortByDate, false
	f.Limit, f.Offset = maxReportRows, 0
	items, _, err := s.store.ListTransactions(ctx, userID, f)
	if err != nil {
		return export.Report{}, fmt.Errorf("list report transactions: %w", err)
	}
	totals, err := s.store.TotalsByType(ctx, userID, f)
	if err != nil {
		return export.Report{}, fmt.Errorf("report totals: %w", err)
	}

	var breakdown []core.CategoryTotal
	if f.Type == "" || f.Type == core.Expense {
		breakdown, err = s.analytics.TopCategories(ctx, userID, core.Expense,
			DateRange{From: f.StartDate, To: f.EndDate}, export.MaxBreakdownRows)
		if err != nil {
			return export.Report{}, fmt.Errorf("report breakdown: %w", err)
		}
	}

	return export.Report{
		UserName:     u.FullName(),
		Currency:     u.Currency,
		From:         f.StartDate,
		To:           f.EndDate,
		GeneratedAt:  s.now().UTC(),
		Summary:      core.NewSummary(totals),
		Transactions: items,
		Breakdown:    breakdown,
	}, nil
}
