package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fintrack/internal/core"
)

const budgetSelect = `SELECT b.id, b.user_id, b.category_id, b.amount_cents, b.period, b.start_date,
	b.created_at, b.updated_at, c.name, c.color, c.icon
	FROM budgets b
	JOIN categories c ON c.id = b.category_id`

var errDuplicateBudget = core.NewDomainError(core.ErrDuplicate, "a budget for this category and period already exists")

func scanBudget(s rowScanner) (core.Budget, error) {
	var (
		b                 core.Budget
		start             string
		created, updated  string
		name, color, icon string
	)
	if err := s.Scan(&b.ID, &b.UserID, &b.CategoryID, &b.Amount.Cents, &b.Period, &start,
		&created, &updated, &name, &color, &icon); err != nil {
		return core.Budget{}, err
	}
	var err error
	if b.StartDate, err = core.ParseDate(start); err != nil {
		return core.Budget{}, err
	}
	if b.CreatedAt, err = parseTime(created); err != nil {
		return core.Budget{}, fmt.Errorf("parse created_at: %w", err)
	}
	if b.UpdatedAt, err = parseTime(updated); err != nil {
		return core.Budget{}, fmt.Errorf("parse updated_at: %w", err)
	}
	b.Category = &core.CategoryRef{ID: b.CategoryID, Name: name, Color: color, Icon: icon}
	return b, nil
}

func (r *SQLiteRepository) CreateBudget(ctx context.Context, b *core.Budget) error {
	ts := now()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO budgets (user_id, category_id, amount_cents, period, start_date, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.UserID, b.CategoryID, b.Amount.Cents, b.Period, b.StartDate.String(), formatTime(ts), formatTime(ts))
	if err != nil {
		switch {
		case IsUniqueViolation(err):
			return errDuplicateBudget
		case IsForeignKeyViolation(err):
			return NotFound("category")
		}
		return fmt.Errorf("insert budget: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("budget id: %w", err)
	}
	b.ID = id
	b.CreatedAt, b.UpdatedAt = ts, ts
	return nil
}

func (r *SQLiteRepository) GetBudget(ctx context.Context, userID, id int64) (core.Budget, error) {
	b, err := scanBudget(r.db.QueryRowContext(ctx, budgetSelect+` WHERE b.id = ? AND b.user_id = ?`, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, NotFound("budget")
	}
	if err != nil {
		return core.Budget{}, fmt.Errorf("get budget: %w", err)
	}
	return b, nil
}

func (r *SQLiteRepository) ListBudgets(ctx context.Context, userID int64) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx, budgetSelect+` WHERE b.user_id = ? ORDER BY c.name, b.period`, userID)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	budgets := []core.Budget{}
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		budgets = append(budgets, b)
	}
	return budgets, rows.Err()
}

func (r *SQLiteRepository) UpdateBudget(ctx context.Context, b *core.Budget) error {
	ts := now()
	res, err := r.db.ExecContext(ctx,
		`UPDATE budgets SET amount_cents = ?, period = ?, start_date = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		b.Amount.Cents, b.Period, b.StartDate.String(), formatTime(ts), b.ID, b.UserID)
	if err != nil {
		if IsUniqueViolation(err) {
			return errDuplicateBudget
		}
		return fmt.Errorf("update budget: %w", err)
	}
	if err := rowsAffected(res, "budget"); err != nil {
		return err
	}
	b.UpdatedAt = ts
	return nil
}

func (r *SQLiteRepository) DeleteBudget(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM budgets WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	return rowsAffected(res, "budget")
}

func (r *SQLiteRepository) SumExpenses(ctx context.Context, userID, categoryID int64, from, to core.Date) (core.Money, error) {
	var cents int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM transactions
		 WHERE user_id = ? AND category_id = ? AND type = 'expense' AND date >= ? AND date <= ?`,
		userID, categoryID, from.String(), to.String()).Scan(&cents)
	if err != nil {
		return core.Money{}, fmt.Errorf("sum expenses: %w", err)
	}
	return core.Money{Cents: cents}, nil
}
