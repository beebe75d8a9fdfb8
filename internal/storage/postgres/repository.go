// Package postgres is the gorm-backed Postgres implementation of
// storage.Store, selected with DATA_BACKEND=postgres.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/storage"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type Repository struct {
	db *gorm.DB
}

var _ storage.Store = (*Repository)(nil)

// Open connects to dsn and, when autoMigrate is set, creates or updates the
// schema. Sessions run in UTC so calendar dates are never shifted.
func Open(dsn string, autoMigrate bool) (*Repository, error) {
	if !strings.Contains(strings.ToLower(dsn), "timezone") {
		if strings.Contains(dsn, "://") {
			sep := "?"
			if strings.Contains(dsn, "?") {
				sep = "&"
			}
			dsn += sep + "timezone=UTC"
		} else {
			dsn += " TimeZone=UTC"
		}
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	r := &Repository{db: db}
	if autoMigrate {
		if err := r.Migrate(); err != nil {
			r.Close()
			return nil, err
		}
	}
	return r, nil
}

// Migrate creates tables in dependency order.
func (r *Repository) Migrate() error {
	for _, m := range []any{&User{}, &Category{}, &Transaction{}, &Budget{}, &RecurringTransaction{}} {
		if err := r.db.AutoMigrate(m); err != nil {
			return fmt.Errorf("auto migrate %T: %w", m, err)
		}
	}
	slog.Info("Postgres schema migrated")
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// owned scopes a query to one user's rows.
func (r *Repository) owned(ctx context.Context, userID int64) *gorm.DB {
	return r.db.WithContext(ctx).Where("user_id = ?", userID)
}

func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || storage.IsUniqueViolation(err)
}

func isForeignKey(err error) bool {
	return errors.Is(err, gorm.ErrForeignKeyViolated) || storage.IsForeignKeyViolation(err)
}

func notFound(err error, resource string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return storage.NotFound(resource)
	}
	return err
}

func affected(res *gorm.DB, resource string) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return storage.NotFound(resource)
	}
	return nil
}

// Users

func (r *Repository) CreateUser(ctx context.Context, u *core.User) error {
	m := User{
		Email:        core.NormalizeEmail(u.Email),
		PasswordHash: u.PasswordHash,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Currency:     u.Currency,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		if isDuplicate(err) {
			return core.NewDomainError(core.ErrDuplicate, "email already registered")
		}
		return fmt.Errorf("insert user: %w", err)
	}
	*u = m.toCore()
	return nil
}

func (r *Repository) GetUserByID(ctx context.Context, id int64) (core.User, error) {
	var m User
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return core.User{}, notFound(err, "user")
	}
	return m.toCore(), nil
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	var m User
	if err := r.db.WithContext(ctx).Where("email = ?", core.NormalizeEmail(email)).First(&m).Error; err != nil {
		return core.User{}, notFound(err, "user")
	}
	return m.toCore(), nil
}

func (r *Repository) UpdateUser(ctx context.Context, u *core.User) error {
	res := r.db.WithContext(ctx).Model(&User{}).Where("id = ?", u.ID).Updates(map[string]any{
		"email":      core.NormalizeEmail(u.Email),
		"first_name": u.FirstName,
		"last_name":  u.LastName,
		"currency":   u.Currency,
	})
	if res.Error != nil && isDuplicate(res.Error) {
		return core.NewDomainError(core.ErrDuplicate, "email already registered")
	}
	if err := affected(res, "user"); err != nil {
		return err
	}
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *Repository) UpdatePassword(ctx context.Context, id int64, hash string) error {
	return affected(r.db.WithContext(ctx).Model(&User{}).Where("id = ?", id).Update("password_hash", hash), "user")
}

func (r *Repository) DeleteUser(ctx context.Context, id int64) error {
	return affected(r.db.WithContext(ctx).Delete(&User{}, id), "user")
}

// Categories

var errDuplicateCategory = core.NewDomainError(core.ErrDuplicate, "a category with this name and type already exists")

func (r *Repository) CreateCategory(ctx context.Context, c *core.Category) error {
	m := Category{UserID: c.UserID, Name: c.Name, Type: string(c.Type), Color: c.Color, Icon: c.Icon, IsDefault: c.IsDefault}
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(&m).Error; err != nil {
		if isDuplicate(err) {
			return errDuplicateCategory
		}
		return fmt.Errorf("insert category: %w", err)
	}
	*c = m.toCore()
	return nil
}

func (r *Repository) GetCategory(ctx context.Context, userID, id int64) (core.Category, error) {
	var m Category
	if err := r.owned(ctx, userID).First(&m, id).Error; err != nil {
		return core.Category{}, notFound(err, "category")
	}
	return m.toCore(), nil
}

func (r *Repository) ListCategories(ctx context.Context, userID int64, typ core.TransactionType) ([]core.Category, error) {
	q := r.owned(ctx, userID)
	if typ != "" {
		q = q.Where("type = ?", typ)
	}
	var rows []Category
	if err := q.Order("type, name").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	out := make([]core.Category, 0, len(rows))
	for _, m := range rows {
		out = append(out, m.toCore())
	}
	return out, nil
}

func (r *Repository) UpdateCategory(ctx context.Context, c *core.Category) error {
	res := r.owned(ctx, c.UserID).Model(&Category{}).Where("id = ?", c.ID).
		Updates(map[string]any{"name": c.Name, "color": c.Color, "icon": c.Icon})
	if res.Error != nil && isDuplicate(res.Error) {
		return errDuplicateCategory
	}
	return affected(res, "category")
}

func (r *Repository) DeleteCategory(ctx context.Context, userID, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var inUse int64
		if err := tx.Model(&Transaction{}).Where("category_id = ? AND user_id = ?", id, userID).Count(&inUse).Error; err != nil {
			return fmt.Errorf("count category transactions: %w", err)
		}
		if inUse > 0 {
			return core.NewDomainError(core.ErrCategoryInUse,
				fmt.Sprintf("category is used by %d transaction(s)", inUse))
		}
		res := tx.Where("id = ? AND user_id = ?", id, userID).Delete(&Category{})
		if res.Error != nil && isForeignKey(res.Error) {
			return core.ErrCategoryInUse
		}
		return affected(res, "category")
	})
}

// Transactions

func (r *Repository) CreateTransaction(ctx context.Context, t *core.Transaction) error {
	return createTransaction(r.db.WithContext(ctx), t)
}

func createTransaction(db *gorm.DB, t *core.Transaction) error {
	m := transactionModel(*t)
	if err := db.Omit(clause.Associations).Create(&m).Error; err != nil {
		if isForeignKey(err) {
			return storage.NotFound("category")
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	t.ID = m.ID
	t.CreatedAt, t.UpdatedAt = m.CreatedAt, m.UpdatedAt
	return nil
}

func (r *Repository) GetTransaction(ctx context.Context, userID, id int64) (core.Transaction, error) {
	var m Transaction
	if err := r.owned(ctx, userID).Preload("Category").First(&m, id).Error; err != nil {
		return core.Transaction{}, notFound(err, "transaction")
	}
	return m.toCore(), nil
}

// applyFilter mirrors the SQLite filter clause for the transactions table.
func applyFilter(q *gorm.DB, f storage.TransactionFilter) *gorm.DB {
	if f.Type != "" {
		q = q.Where("transactions.type = ?", f.Type)
	}
	if f.CategoryID > 0 {
		q = q.Where("transactions.category_id = ?", f.CategoryID)
	}
	if f.StartDate != nil {
		q = q.Where("transactions.date >= ?", f.StartDate.Time)
	}
	if f.EndDate != nil {
		q = q.Where("transactions.date <= ?", f.EndDate.Time)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		q = q.Where("transactions.description ILIKE ?", "%"+s+"%")
	}
	if f.MinAmount != nil {
		q = q.Where("transactions.amount_cents >= ?", f.MinAmount.Cents)
	}
	if f.MaxAmount != nil {
		q = q.Where("transactions.amount_cents <= ?", f.MaxAmount.Cents)
	}
	if tag := strings.TrimSpace(f.Tag); tag != "" {
		b, _ := json.Marshal([]string{tag})
		q = q.Where("transactions.tags @> ?::jsonb", string(b))
	}
	return q
}

var sortColumns = map[string]string{
	storage.SortByDate:      "transactions.date",
	storage.SortByAmount:    "transactions.amount_cents",
	storage.SortByCreatedAt: "transactions.created_at",
}

func (r *Repository) ListTransactions(ctx context.Context, userID int64, f storage.TransactionFilter) ([]core.Transaction, int, error) {
	q := applyFilter(r.db.WithContext(ctx).Model(&Transaction{}).Where("transactions.user_id = ?", userID), f)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	col, ok := sortColumns[f.SortBy]
	if !ok {
		col = sortColumns[storage.SortByDate]
	}
	desc := f.Desc
	q = q.Preload("Category").
		Order(clause.OrderByColumn{Column: clause.Column{Name: col, Raw: true}, Desc: desc}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "transactions.id", Raw: true}, Desc: desc})
	if f.Limit > 0 {
		q = q.Limit(f.Limit).Offset(f.Offset)
	}

	var rows []Transaction
	if err := q.Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	out := make([]core.Transaction, 0, len(rows))
	for _, m := range rows {
		out = append(out, m.toCore())
	}
	return out, int(total), nil
}

func (r *Repository) UpdateTransaction(ctx context.Context, t *core.Transaction) error {
	m := transactionModel(*t)
	res := r.owned(ctx, t.UserID).Model(&Transaction{}).Where("id = ?", t.ID).Updates(map[string]any{
		"category_id":  m.CategoryID,
		"amount_cents": m.AmountCents,
		"type":         m.Type,
		"description":  m.Description,
		"date":         m.Date,
		"tags":         gorm.Expr("?::jsonb", mustJSON(m.Tags)),
	})
	if res.Error != nil && isForeignKey(res.Error) {
		return storage.NotFound("category")
	}
	return affected(res, "transaction")
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func (r *Repository) DeleteTransaction(ctx context.Context, userID, id int64) error {
	return affected(r.owned(ctx, userID).Delete(&Transaction{}, id), "transaction")
}

// Budgets

var errDuplicateBudget = core.NewDomainError(core.ErrDuplicate, "a budget for this category and period already exists")

func (r *Repository) CreateBudget(ctx context.Context, b *core.Budget) error {
	m := Budget{UserID: b.UserID, CategoryID: b.CategoryID, AmountCents: b.Amount.Cents, Period: string(b.Period), StartDate: b.StartDate.Time}
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(&m).Error; err != nil {
		switch {
		case isDuplicate(err):
			return errDuplicateBudget
		case isForeignKey(err):
			return storage.NotFound("category")
		}
		return fmt.Errorf("insert budget: %w", err)
	}
	b.ID = m.ID
	b.CreatedAt, b.UpdatedAt = m.CreatedAt, m.UpdatedAt
	return nil
}

func (r *Repository) GetBudget(ctx context.Context, userID, id int64) (core.Budget, error) {
	var m Budget
	if err := r.owned(ctx, userID).Preload("Category").First(&m, id).Error; err != nil {
		return core.Budget{}, notFound(err, "budget")
	}
	return m.toCore(), nil
}

func (r *Repository) ListBudgets(ctx context.Context, userID int64) ([]core.Budget, error) {
	var rows []Budget
	if err := r.owned(ctx, userID).Preload("Category").Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	out := make([]core.Budget, 0, len(rows))
	for _, m := range rows {
		out = append(out, m.toCore())
	}
	return out, nil
}

func (r *Repository) UpdateBudget(ctx context.Context, b *core.Budget) error {
	res := r.owned(ctx, b.UserID).Model(&Budget{}).Where("id = ?", b.ID).Updates(map[string]any{
		"amount_cents": b.Amount.Cents,
		"period":       string(b.Period),
		"start_date":   b.StartDate.Time,
	})
	if res.Error != nil && isDuplicate(res.Error) {
		return errDuplicateBudget
	}
	return affected(res, "budget")
}

func (r *Repository) DeleteBudget(ctx context.Context, userID, id int64) error {
	return affected(r.owned(ctx, userID).Delete(&Budget{}, id), "budget")
}

func (r *Repository) SumExpenses(ctx context.Context, userID, categoryID int64, from, to core.Date) (core.Money, error) {
	var cents int64
	err := r.owned(ctx, userID).Model(&Transaction{}).
		Select("COALESCE(SUM(amount_cents), 0)").
		Where("category_id = ? AND type = ? AND date >= ? AND date <= ?", categoryID, core.Expense, from.Time, to.Time).
		Scan(&cents).Error
	if err != nil {
		return core.Money{}, fmt.Errorf("sum expenses: %w", err)
	}
	return core.Money{Cents: cents}, nil
}

// Recurring

func (r *Repository) CreateRecurring(ctx context.Context, rt *core.RecurringTransaction) error {
	m := recurringModel(*rt)
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(&m).Error; err != nil {
		if isForeignKey(err) {
			return storage.NotFound("category")
		}
		return fmt.Errorf("insert recurring transaction: %w", err)
	}
	rt.ID = m.ID
	rt.CreatedAt, rt.UpdatedAt = m.CreatedAt, m.UpdatedAt
	return nil
}

func (r *Repository) GetRecurring(ctx context.Context, userID, id int64) (core.RecurringTransaction, error) {
	var m RecurringTransaction
	if err := r.owned(ctx, userID).Preload("Category").First(&m, id).Error; err != nil {
		return core.RecurringTransaction{}, notFound(err, "recurring transaction")
	}
	return m.toCore(), nil
}

func (r *Repository) ListRecurring(ctx context.Context, userID int64, active *bool) ([]core.RecurringTransaction, error) {
	q := r.owned(ctx, userID)
	if active != nil {
		q = q.Where("is_active = ?", *active)
	}
	return findRecurring(q.Order("next_date, id"))
}

func findRecurring(q *gorm.DB) ([]core.RecurringTransaction, error) {
	var rows []RecurringTransaction
	if err := q.Preload("Category").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list recurring transactions: %w", err)
	}
	out := make([]core.RecurringTransaction, 0, len(rows))
	for _, m := range rows {
		out = append(out, m.toCore())
	}
	return out, nil
}

func (r *Repository) UpdateRecurring(ctx context.Context, rt *core.RecurringTransaction) error {
	m := recurringModel(*rt)
	res := r.owned(ctx, rt.UserID).Model(&RecurringTransaction{}).Where("id = ?", rt.ID).Updates(map[string]any{
		"category_id":  m.CategoryID,
		"type":         m.Type,
		"amount_cents": m.AmountCents,
		"description":  m.Description,
		"frequency":    m.Frequency,
		"start_date":   m.StartDate,
		"end_date":     m.EndDate,
		"next_date":    m.NextDate,
		"is_active":    m.IsActive,
	})
	if res.Error != nil && isForeignKey(res.Error) {
		return storage.NotFound("category")
	}
	return affected(res, "recurring transaction")
}

func (r *Repository) DeleteRecurring(ctx context.Context, userID, id int64) error {
	return affected(r.owned(ctx, userID).Delete(&RecurringTransaction{}, id), "recurring transaction")
}

func (r *Repository) ListDueRecurring(ctx context.Context, asOf core.Date, userID int64) ([]core.RecurringTransaction, error) {
	q := r.db.WithContext(ctx).
		Where("is_active AND next_date <= ? AND (end_date IS NULL OR end_date >= ?)", asOf.Time, asOf.Time)
	if userID > 0 {
		q = q.Where("user_id = ?", userID)
	}
	return findRecurring(q.Order("user_id, next_date, id"))
}

func (r *Repository) ApplyGeneration(ctx context.Context, g *storage.Generation) error {
	rt := g.Recurring
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cat Category
		if err := tx.Select("type").Where("id = ? AND user_id = ?", rt.CategoryID, rt.UserID).First(&cat).Error; err != nil {
			return notFound(err, "category")
		}
		if core.TransactionType(cat.Type) != g.Transaction.Type {
			return core.ErrCategoryTypeMismatch
		}

		res := tx.Model(&RecurringTransaction{}).
			Where("id = ? AND user_id = ? AND next_date = ? AND is_active", rt.ID, rt.UserID, g.ExpectedNextDate.Time).
			Updates(map[string]any{
				"next_date":      rt.NextDate.Time,
				"last_generated": dateTime(rt.LastGenerated),
				"is_active":      rt.IsActive,
			})
		if res.Error != nil {
			return fmt.Errorf("advance recurring transaction: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return core.ErrConcurrentGeneration
		}
		return createTransaction(tx, &g.Transaction)
	})
}

// Analytics

func (r *Repository) TotalsByType(ctx context.Context, userID int64, f storage.TransactionFilter) ([]core.TypeTotal, error) {
	var rows []struct {
		Type  string
		Total int64
		Count int
	}
	q := applyFilter(r.db.WithContext(ctx).Model(&Transaction{}).Where("transactions.user_id = ?", userID), f)
	if err := q.Select("transactions.type AS type, COALESCE(SUM(transactions.amount_cents), 0) AS total, COUNT(*) AS count").
		Group("transactions.type").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("totals by type: %w", err)
	}
	out := make([]core.TypeTotal, 0, len(rows))
	for _, row := range rows {
		out = append(out, core.TypeTotal{Type: core.TransactionType(row.Type), Total: core.Money{Cents: row.Total}, Count: row.Count})
	}
	return out, nil
}

func (r *Repository) TotalsByCategory(ctx context.Context, userID int64, typ core.TransactionType, from, to *core.Date) ([]core.CategoryTotal, error) {
	var rows []struct {
		CategoryID int64
		Name       string
		Color      string
		Icon       string
		Type       string
		Total      int64
		Count      int
	}
	q := applyFilter(r.db.WithContext(ctx).Model(&Transaction{}).Where("transactions.user_id = ?", userID),
		storage.TransactionFilter{Type: typ, StartDate: from, EndDate: to})
	err := q.Select(`categories.id AS category_id, categories.name AS name, categories.color AS color,
			categories.icon AS icon, transactions.type AS type,
			SUM(transactions.amount_cents) AS total, COUNT(*) AS count`).
		Joins("JOIN categories ON categories.id = transactions.category_id").
		Group("categories.id, categories.name, categories.color, categories.icon, transactions.type").
		Order("total DESC, categories.name").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("totals by category: %w", err)
	}
	out := make([]core.CategoryTotal, 0, len(rows))
	for _, row := range rows {
		out = append(out, core.CategoryTotal{
			CategoryID: row.CategoryID,
			Name:       row.Name,
			Color:      row.Color,
			Icon:       row.Icon,
			Type:       core.TransactionType(row.Type),
			Total:      core.Money{Cents: row.Total},
			Count:      row.Count,
		})
	}
	return out, nil
}

var bucketFormat = map[storage.Bucket]string{
	storage.BucketMonth: "YYYY-MM",
	storage.BucketDay:   "YYYY-MM-DD",
}

func (r *Repository) TotalsByPeriod(ctx context.Context, userID int64, bucket storage.Bucket, from, to core.Date) ([]core.PeriodTotal, error) {
	format, ok := bucketFormat[bucket]
	if !ok {
		return nil, fmt.Errorf("unknown bucket %q", bucket)
	}
	var rows []struct {
		Period string
		Type   string
		Total  int64
	}
	err := r.owned(ctx, userID).Model(&Transaction{}).
		Select("to_char(date, ?) AS period, type, SUM(amount_cents) AS total", format).
		Where("date >= ? AND date <= ?", from.Time, to.Time).
		Group("period, type").
		Order("period, type").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("totals by period: %w", err)
	}
	out := make([]core.PeriodTotal, 0, len(rows))
	for _, row := range rows {
		out = append(out, core.PeriodTotal{Period: row.Period, Type: core.TransactionType(row.Type), Total: core.Money{Cents: row.Total}})
	}
	return out, nil
}
