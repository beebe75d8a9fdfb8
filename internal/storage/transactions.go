package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"fintrack/internal/core"
)

const transactionSelect = `SELECT t.id, t.user_id, t.category_id, t.amount_cents, t.type, t.description,
	t.date, t.tags, t.created_at, t.updated_at,
	c.name, c.color, c.icon
	FROM transactions t
	JOIN categories c ON c.id = t.category_id`

var sortColumns = map[string]string{
	SortByDate:      "t.date",
	SortByAmount:    "t.amount_cents",
	SortByCreatedAt: "t.created_at",
}

func scanTransaction(s rowScanner) (core.Transaction, error) {
	var (
		t                          core.Transaction
		date, tags                 string
		created, updated           string
		catName, catColor, catIcon string
	)
	if err := s.Scan(&t.ID, &t.UserID, &t.CategoryID, &t.Amount.Cents, &t.Type, &t.Description,
		&date, &tags, &created, &updated, &catName, &catColor, &catIcon); err != nil {
		return core.Transaction{}, err
	}
	var err error
	if t.Date, err = core.ParseDate(date); err != nil {
		return core.Transaction{}, err
	}
	if t.Tags, err = decodeTags(tags); err != nil {
		return core.Transaction{}, err
	}
	if t.CreatedAt, err = parseTime(created); err != nil {
		return core.Transaction{}, fmt.Errorf("parse created_at: %w", err)
	}
	if t.UpdatedAt, err = parseTime(updated); err != nil {
		return core.Transaction{}, fmt.Errorf("parse updated_at: %w", err)
	}
	t.Category = &core.CategoryRef{ID: t.CategoryID, Name: catName, Color: catColor, Icon: catIcon}
	return t, nil
}

// filterClause renders the WHERE clause shared by listings and totals.
func filterClause(userID int64, f TransactionFilter) (string, []any) {
	conds := []string{"t.user_id = ?"}
	args := []any{userID}
	if f.Type != "" {
		conds = append(conds, "t.type = ?")
		args = append(args, f.Type)
	}
	if f.CategoryID > 0 {
		conds = append(conds, "t.category_id = ?")
		args = append(args, f.CategoryID)
	}
	if f.StartDate != nil {
		conds = append(conds, "t.date >= ?")
		args = append(args, f.StartDate.String())
	}
	if f.EndDate != nil {
		conds = append(conds, "t.date <= ?")
		args = append(args, f.EndDate.String())
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		conds = append(conds, `t.description LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(s)+"%")
	}
	if f.MinAmount != nil {
		conds = append(conds, "t.amount_cents >= ?")
		args = append(args, f.MinAmount.Cents)
	}
	if f.MaxAmount != nil {
		conds = append(conds, "t.amount_cents <= ?")
		args = append(args, f.MaxAmount.Cents)
	}
	if tag := strings.TrimSpace(f.Tag); tag != "" {
		conds = append(conds, "EXISTS (SELECT 1 FROM json_each(t.tags) WHERE json_each.value = ?)")
		args = append(args, tag)
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func orderClause(f TransactionFilter) string {
	col, ok := sortColumns[f.SortBy]
	if !ok {
		col = sortColumns[SortByDate]
	}
	dir := "ASC"
	if f.Desc {
		dir = "DESC"
	}
	return fmt.Sprintf(" ORDER BY %s %s, t.id %s", col, dir, dir)
}

func insertTransaction(ctx context.Context, ex execer, t *core.Transaction) error {
	tags, err := encodeTags(t.Tags)
	if err != nil {
		return err
	}
	ts := now()
	res, err := ex.ExecContext(ctx,
		`INSERT INTO transactions (user_id, category_id, amount_cents, type, description, date, tags, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.UserID, t.CategoryID, t.Amount.Cents, t.Type, t.Description, t.Date.String(), tags,
		formatTime(ts), formatTime(ts))
	if err != nil {
		if IsForeignKeyViolation(err) {
			return NotFound("category")
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("transaction id: %w", err)
	}
	t.ID = id
	t.CreatedAt, t.UpdatedAt = ts, ts
	return nil
}

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t *core.Transaction) error {
	return insertTransaction(ctx, r.db, t)
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, userID, id int64) (core.Transaction, error) {
	t, err := scanTransaction(r.db.QueryRowContext(ctx,
		transactionSelect+` WHERE t.id = ? AND t.user_id = ?`, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, NotFound("transaction")
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, userID int64, f TransactionFilter) ([]core.Transaction, int, error) {
	where, args := filterClause(userID, f)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions t`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	query := transactionSelect + where + orderClause(f)
	if f.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	items := []core.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan transaction: %w", err)
		}
		items = append(items, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate transactions: %w", err)
	}
	return items, total, nil
}

func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, t *core.Transaction) error {
	tags, err := encodeTags(t.Tags)
	if err != nil {
		return err
	}
	ts := now()
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET category_id = ?, amount_cents = ?, type = ?, description = ?, date = ?, tags = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		t.CategoryID, t.Amount.Cents, t.Type, t.Description, t.Date.String(), tags, formatTime(ts), t.ID, t.UserID)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return NotFound("category")
		}
		return fmt.Errorf("update transaction: %w", err)
	}
	if err := rowsAffected(res, "transaction"); err != nil {
		return err
	}
	t.UpdatedAt = ts
	return nil
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return rowsAffected(res, "transaction")
}
