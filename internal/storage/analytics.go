package storage

import (
	"context"
	"fmt"

	"fintrack/internal/core"
)

var bucketExpr = map[Bucket]string{
	BucketMonth: "substr(t.date, 1, 7)",
	BucketDay:   "t.date",
}

func (r *SQLiteRepository) TotalsByType(ctx context.Context, userID int64, f TransactionFilter) ([]core.TypeTotal, error) {
	where, args := filterClause(userID, f)
	rows, err := r.db.QueryContext(ctx,
		`SELECT t.type, COALESCE(SUM(t.amount_cents), 0), COUNT(*) FROM transactions t`+where+` GROUP BY t.type`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("totals by type: %w", err)
	}
	defer rows.Close()

	var totals []core.TypeTotal
	for rows.Next() {
		var tt core.TypeTotal
		if err := rows.Scan(&tt.Type, &tt.Total.Cents, &tt.Count); err != nil {
			return nil, fmt.Errorf("scan type total: %w", err)
		}
		totals = append(totals, tt)
	}
	return totals, rows.Err()
}

func (r *SQLiteRepository) TotalsByCategory(ctx context.Context, userID int64, typ core.TransactionType, from, to *core.Date) ([]core.CategoryTotal, error) {
	where, args := filterClause(userID, TransactionFilter{Type: typ, StartDate: from, EndDate: to})
	rows, err := r.db.QueryContext(ctx,
		`SELECT c.id, c.name, c.color, c.icon, t.type, SUM(t.amount_cents) AS total, COUNT(*)
		 FROM transactions t
		 JOIN categories c ON c.id = t.category_id`+where+`
		 GROUP BY c.id, c.name, c.color, c.icon, t.type
		 ORDER BY total DESC, c.name`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("totals by category: %w", err)
	}
	defer rows.Close()

	totals := []core.CategoryTotal{}
	for rows.Next() {
		var ct core.CategoryTotal
		if err := rows.Scan(&ct.CategoryID, &ct.Name, &ct.Color, &ct.Icon, &ct.Type, &ct.Total.Cents, &ct.Count); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		totals = append(totals, ct)
	}
	return totals, rows.Err()
}

func (r *SQLiteRepository) TotalsByPeriod(ctx context.Context, userID int64, bucket Bucket, from, to core.Date) ([]core.PeriodTotal, error) {
	expr, ok := bucketExpr[bucket]
	if !ok {
		return nil, fmt.Errorf("unknown bucket %q", bucket)
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+expr+` AS bucket, t.type, SUM(t.amount_cents)
		 FROM transactions t
		 WHERE t.user_id = ? AND t.date >= ? AND t.date <= ?
		 GROUP BY bucket, t.type
		 ORDER BY bucket, t.type`,
		userID, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("totals by period: %w", err)
	}
	defer rows.Close()

	var totals []core.PeriodTotal
	for rows.Next() {
		var pt core.PeriodTotal
		if err := rows.Scan(&pt.Period, &pt.Type, &pt.Total.Cents); err != nil {
			return nil, fmt.Errorf("scan period total: %w", err)
		}
		totals = append(totals, pt)
	}
	return totals, rows.Err()
}
