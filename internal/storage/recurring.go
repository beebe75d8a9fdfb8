package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"fintrack/internal/core"
)

const recurringSelect = `SELECT r.id, r.user_id, r.category_id, r.type, r.amount_cents, r.description,
	r.frequency, r.start_date, r.end_date, r.next_date, r.is_active, r.last_generated,
	r.created_at, r.updated_at, c.name, c.color, c.icon
	FROM recurring_transactions r
	JOIN categories c ON c.id = r.category_id`

func scanRecurring(s rowScanner) (core.RecurringTransaction, error) {
	var (
		rt                core.RecurringTransaction
		start, next       string
		end, last         sql.NullString
		active            int
		created, updated  string
		name, color, icon string
	)
	if err := s.Scan(&rt.ID, &rt.UserID, &rt.CategoryID, &rt.Type, &rt.Amount.Cents, &rt.Description,
		&rt.Frequency, &start, &end, &next, &active, &last,
		&created, &updated, &name, &color, &icon); err != nil {
		return core.RecurringTransaction{}, err
	}
	var err error
	if rt.StartDate, err = core.ParseDate(start); err != nil {
		return core.RecurringTransaction{}, err
	}
	if rt.NextDate, err = core.ParseDate(next); err != nil {
		return core.RecurringTransaction{}, err
	}
	if rt.EndDate, err = parseNullDate(end); err != nil {
		return core.RecurringTransaction{}, err
	}
	if rt.LastGenerated, err = parseNullDate(last); err != nil {
		return core.RecurringTransaction{}, err
	}
	if rt.CreatedAt, err = parseTime(created); err != nil {
		return core.RecurringTransaction{}, fmt.Errorf("parse created_at: %w", err)
	}
	if rt.UpdatedAt, err = parseTime(updated); err != nil {
		return core.RecurringTransaction{}, fmt.Errorf("parse updated_at: %w", err)
	}
	rt.IsActive = active != 0
	rt.Category = &core.CategoryRef{ID: rt.CategoryID, Name: name, Color: color, Icon: icon}
	return rt, nil
}

func (r *SQLiteRepository) queryRecurring(ctx context.Context, query string, args ...any) ([]core.RecurringTransaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []core.RecurringTransaction{}
	for rows.Next() {
		rt, err := scanRecurring(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recurring transaction: %w", err)
		}
		out = append(out, rt)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CreateRecurring(ctx context.Context, rt *core.RecurringTransaction) error {
	ts := now()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO recurring_transactions
		 (user_id, category_id, type, amount_cents, description, frequency, start_date, end_date,
		  next_date, is_active, last_generated, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rt.UserID, rt.CategoryID, rt.Type, rt.Amount.Cents, rt.Description, rt.Frequency,
		rt.StartDate.String(), nullableDate(rt.EndDate), rt.NextDate.String(), boolInt(rt.IsActive),
		nullableDate(rt.LastGenerated), formatTime(ts), formatTime(ts))
	if err != nil {
		if IsForeignKeyViolation(err) {
			return NotFound("category")
		}
		return fmt.Errorf("insert recurring transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("recurring transaction id: %w", err)
	}
	rt.ID = id
	rt.CreatedAt, rt.UpdatedAt = ts, ts
	return nil
}

func (r *SQLiteRepository) GetRecurring(ctx context.Context, userID, id int64) (core.RecurringTransaction, error) {
	rt, err := scanRecurring(r.db.QueryRowContext(ctx,
		recurringSelect+` WHERE r.id = ? AND r.user_id = ?`, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return core.RecurringTransaction{}, NotFound("recurring transaction")
	}
	if err != nil {
		return core.RecurringTransaction{}, fmt.Errorf("get recurring transaction: %w", err)
	}
	return rt, nil
}

func (r *SQLiteRepository) ListRecurring(ctx context.Context, userID int64, active *bool) ([]core.RecurringTransaction, error) {
	query := recurringSelect + ` WHERE r.user_id = ?`
	args := []any{userID}
	if active != nil {
		query += ` AND r.is_active = ?`
		args = append(args, boolInt(*active))
	}
	query += ` ORDER BY r.next_date, r.id`

	out, err := r.queryRecurring(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list recurring transactions: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) UpdateRecurring(ctx context.Context, rt *core.RecurringTransaction) error {
	ts := now()
	res, err := r.db.ExecContext(ctx,
		`UPDATE recurring_transactions SET category_id = ?, type = ?, amount_cents = ?, description = ?,
		 frequency = ?, start_date = ?, end_date = ?, next_date = ?, is_active = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		rt.CategoryID, rt.Type, rt.Amount.Cents, rt.Description, rt.Frequency, rt.StartDate.String(),
		nullableDate(rt.EndDate), rt.NextDate.String(), boolInt(rt.IsActive), formatTime(ts), rt.ID, rt.UserID)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return NotFound("category")
		}
		return fmt.Errorf("update recurring transaction: %w", err)
	}
	if err := rowsAffected(res, "recurring transaction"); err != nil {
		return err
	}
	rt.UpdatedAt = ts
	return nil
}

func (r *SQLiteRepository) DeleteRecurring(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM recurring_transactions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete recurring transaction: %w", err)
	}
	return rowsAffected(res, "recurring transaction")
}

func (r *SQLiteRepository) ListDueRecurring(ctx context.Context, asOf core.Date, userID int64) ([]core.RecurringTransaction, error) {
	query := recurringSelect + ` WHERE r.is_active = 1 AND r.next_date <= ?
		AND (r.end_date IS NULL OR r.end_date >= ?)`
	args := []any{asOf.String(), asOf.String()}
	if userID > 0 {
		query += ` AND r.user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY r.user_id, r.next_date, r.id`

	out, err := r.queryRecurring(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list due recurring transactions: %w", err)
	}
	return out, nil
}

// ApplyGeneration checks the category still matches, advances the schedule
// only if nobody else did since it was read, and inserts the occurrence.
func (r *SQLiteRepository) ApplyGeneration(ctx context.Context, g *Generation) error {
	rt := g.Recurring
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var catType core.TransactionType
		err := tx.QueryRowContext(ctx,
			`SELECT type FROM categories WHERE id = ? AND user_id = ?`, rt.CategoryID, rt.UserID).Scan(&catType)
		if errors.Is(err, sql.ErrNoRows) {
			return NotFound("category")
		}
		if err != nil {
			return fmt.Errorf("load category: %w", err)
		}
		if catType != g.Transaction.Type {
			return core.ErrCategoryTypeMismatch
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE recurring_transactions
			 SET next_date = ?, last_generated = ?, is_active = ?, updated_at = ?
			 WHERE id = ? AND user_id = ? AND next_date = ? AND is_active = 1`,
			rt.NextDate.String(), nullableDate(rt.LastGenerated), boolInt(rt.IsActive), formatTime(now()),
			rt.ID, rt.UserID, g.ExpectedNextDate.String())
		if err != nil {
			return fmt.Errorf("advance recurring transaction: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			return core.ErrConcurrentGeneration
		}

		return insertTransaction(ctx, tx, &g.Transaction)
	})
	if err != nil {
		return err
	}

	slog.DebugContext(ctx, "Recurring occurrence stored",
		"recurring_id", rt.ID,
		"transaction_id", g.Transaction.ID,
		"date", g.Transaction.Date.String(),
		"next_date", rt.NextDate.String())
	return nil
}
