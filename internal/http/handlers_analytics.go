package http

import (
	"net/http"

	"fintrack/internal/core"
)

func (s *Server) handleAnalyticsSummary(w http.ResponseWriter, r *http.Request) {
	p := newQueryParser(r)
	rng := p.dateRange()
	if err := p.err(); err != nil {
		writeError(w, r, err)
		return
	}
	sum, err := s.svc.Analytics.Summary(r.Context(), userID(r), rng)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, sum)
}

func (s *Server) handleCategoryBreakdown(w http.ResponseWriter, r *http.Request) {
	p := newQueryParser(r)
	typ := p.txType(core.Expense)
	rng := p.dateRange()
	if err := p.err(); err != nil {
		writeError(w, r, err)
		return
	}
	rows, err := s.svc.Analytics.CategoryBreakdown(r.Context(), userID(r), typ, rng)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, rows)
}

func (s *Server) handleTopCategories(w http.ResponseWriter, r *http.Request) {
	p := newQueryParser(r)
	typ := p.txType(core.Expense)
	rng := p.dateRange()
	limit := p.integer("limit")
	if err := p.err(); err != nil {
		writeError(w, r, err)
		return
	}
	rows, err := s.svc.Analytics.TopCategories(r.Context(), userID(r), typ, rng, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, rows)
}

func (s *Server) handleMonthlyTrends(w http.ResponseWriter, r *http.Request) {
	p := newQueryParser(r)
	months := p.integer("months")
	if err := p.err(); err != nil {
		writeError(w, r, err)
		return
	}
	trends, err := s.svc.Analytics.MonthlyTrends(r.Context(), userID(r), months)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, trends)
}

func (s *Server) handleDailyPattern(w http.ResponseWriter, r *http.Request) {
	p := newQueryParser(r)
	days := p.integer("days")
	rng := p.dateRange()
	if err := p.err(); err != nil {
		writeError(w, r, err)
		return
	}
	points, err := s.svc.Analytics.DailyPattern(r.Context(), userID(r), days, rng)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, points)
}

func (s *Server) handleRecentTransactions(w http.ResponseWriter, r *http.Request) {
	p := newQueryParser(r)
	limit := p.integer("limit")
	if err := p.err(); err != nil {
		writeError(w, r, err)
		return
	}
	items, err := s.svc.Analytics.RecentTransactions(r.Context(), userID(r), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, items)
}

func (s *Server) handleComparison(w http.ResponseWriter, r *http.Request) {
	period := newQueryParser(r).str("period")
	cmp, err := s.svc.Analytics.Comparison(r.Context(), userID(r), period)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, cmp)
}
