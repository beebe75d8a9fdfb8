package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"fintrack/internal/core"
)

const categoryColumns = `id, user_id, name, type, color, icon, is_default, created_at, updated_at`

var errDuplicateCategory = core.NewDomainError(core.ErrDuplicate, "a category with this name and type already exists")

func scanCategory(s rowScanner) (core.Category, error) {
	var (
		c                core.Category
		isDefault        int
		created, updated string
	)
	if err := s.Scan(&c.ID, &c.UserID, &c.Name, &c.Type, &c.Color, &c.Icon, &isDefault, &created, &updated); err != nil {
		return core.Category{}, err
	}
	c.IsDefault = isDefault != 0
	var err error
	if c.CreatedAt, err = parseTime(created); err != nil {
		return core.Category{}, fmt.Errorf("parse created_at: %w", err)
	}
	if c.UpdatedAt, err = parseTime(updated); err != nil {
		return core.Category{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return c, nil
}

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c *core.Category) error {
	ts := now()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (user_id, name, type, color, icon, is_default, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.UserID, c.Name, c.Type, c.Color, c.Icon, boolInt(c.IsDefault), formatTime(ts), formatTime(ts))
	if err != nil {
		if IsUniqueViolation(err) {
			return errDuplicateCategory
		}
		return fmt.Errorf("insert category: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("category id: %w", err)
	}
	c.ID = id
	c.CreatedAt, c.UpdatedAt = ts, ts
	return nil
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, userID, id int64) (core.Category, error) {
	c, err := scanCategory(r.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE id = ? AND user_id = ?`, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, NotFound("category")
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context, userID int64, typ core.TransactionType) ([]core.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE user_id = ?`
	args := []any{userID}
	if typ != "" {
		query += ` AND type = ?`
		args = append(args, typ)
	}
	query += ` ORDER BY type, name`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := []core.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (r *SQLiteRepository) UpdateCategory(ctx context.Context, c *core.Category) error {
	ts := now()
	res, err := r.db.ExecContext(ctx,
		`UPDATE categories SET name = ?, color = ?, icon = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		c.Name, c.Color, c.Icon, formatTime(ts), c.ID, c.UserID)
	if err != nil {
		if IsUniqueViolation(err) {
			return errDuplicateCategory
		}
		return fmt.Errorf("update category: %w", err)
	}
	if err := rowsAffected(res, "category"); err != nil {
		return err
	}
	c.UpdatedAt = ts
	return nil
}

func (r *SQLiteRepository) DeleteCategory(ctx context.Context, userID, id int64) error {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var inUse int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM transactions WHERE category_id = ? AND user_id = ?`, id, userID).Scan(&inUse)
		if err != nil {
			return fmt.Errorf("count category transactions: %w", err)
		}
		if inUse > 0 {
			return core.NewDomainError(core.ErrCategoryInUse,
				fmt.Sprintf("category is used by %d transaction(s)", inUse))
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM categories WHERE id = ? AND user_id = ?`, id, userID)
		if err != nil {
			if IsForeignKeyViolation(err) {
				return core.ErrCategoryInUse
			}
			return fmt.Errorf("delete category: %w", err)
		}
		return rowsAffected(res, "category")
	})
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Category deleted", "user_id", userID, "category_id", id)
	return nil
}
