package storage

import (
	"context"
	"errors"
	"strings"

	"fintrack/internal/core"
)

// UserStore persists accounts. Emails are stored normalized.
type UserStore interface {
	CreateUser(ctx context.Context, u *core.User) error
	GetUserByID(ctx context.Context, id int64) (core.User, error)
	GetUserByEmail(ctx context.Context, email string) (core.User, error)
	UpdateUser(ctx context.Context, u *core.User) error
	UpdatePassword(ctx context.Context, id int64, hash string) error
	DeleteUser(ctx context.Context, id int64) error
}

// CategoryStore persists categories. Every read and mutation is scoped to
// the owning user; foreign rows are reported as core.ErrNotFound.
type CategoryStore interface {
	CreateCategory(ctx context.Context, c *core.Category) error
	GetCategory(ctx context.Context, userID, id int64) (core.Category, error)
	// ListCategories returns every category of the user, or only those of
	// typ when it is non-empty.
	ListCategories(ctx context.Context, userID int64, typ core.TransactionType) ([]core.Category, error)
	UpdateCategory(ctx context.Context, c *core.Category) error
	// DeleteCategory fails with core.ErrCategoryInUse while transactions
	// reference the category. Budgets and recurring rows cascade.
	DeleteCategory(ctx context.Context, userID, id int64) error
}

type TransactionStore interface {
	CreateTransaction(ctx context.Context, t *core.Transaction) error
	GetTransaction(ctx context.Context, userID, id int64) (core.Transaction, error)
	// ListTransactions returns one page of matches and the total number of
	// matches ignoring Limit and Offset.
	ListTransactions(ctx context.Context, userID int64, f TransactionFilter) ([]core.Transaction, int, error)
	UpdateTransaction(ctx context.Context, t *core.Transaction) error
	DeleteTransaction(ctx context.Context, userID, id int64) error
}

type BudgetStore interface {
	CreateBudget(ctx context.Context, b *core.Budget) error
	GetBudget(ctx context.Context, userID, id int64) (core.Budget, error)
	ListBudgets(ctx context.Context, userID int64) ([]core.Budget, error)
	UpdateBudget(ctx context.Context, b *core.Budget) error
	DeleteBudget(ctx context.Context, userID, id int64) error
	// SumExpenses totals expense transactions of one category within
	// [from, to].
	SumExpenses(ctx context.Context, userID, categoryID int64, from, to core.Date) (core.Money, error)
}

type RecurringStore interface {
	CreateRecurring(ctx context.Context, r *core.RecurringTransaction) error
	GetRecurring(ctx context.Context, userID, id int64) (core.RecurringTransaction, error)
	// ListRecurring filters on is_active when active is non-nil.
	ListRecurring(ctx context.Context, userID int64, active *bool) ([]core.RecurringTransaction, error)
	UpdateRecurring(ctx context.Context, r *core.RecurringTransaction) error
	DeleteRecurring(ctx context.Context, userID, id int64) error
	// ListDueRecurring selects active records with next_date <= asOf whose
	// end date has not passed. userID 0 selects every user.
	ListDueRecurring(ctx context.Context, asOf core.Date, userID int64) ([]core.RecurringTransaction, error)
	// ApplyGeneration stores one generated occurrence atomically.
	ApplyGeneration(ctx context.Context, g *Generation) error
}

type AnalyticsStore interface {
	TotalsByType(ctx context.Context, userID int64, f TransactionFilter) ([]core.TypeTotal, error)
	// TotalsByCategory returns per-category totals of typ ordered by total
	// descending. Percentages are left to the caller.
	TotalsByCategory(ctx context.Context, userID int64, typ core.TransactionType, from, to *core.Date) ([]core.CategoryTotal, error)
	// TotalsByPeriod returns sparse per-bucket, per-type sums in [from, to].
	TotalsByPeriod(ctx context.Context, userID int64, bucket Bucket, from, to core.Date) ([]core.PeriodTotal, error)
}

// Store is the full persistence surface implemented by each backend.
type Store interface {
	UserStore
	CategoryStore
	TransactionStore
	BudgetStore
	RecurringStore
	AnalyticsStore
	Ping(ctx context.Context) error
	Close() error
}

// Bucket is the granularity of TotalsByPeriod.
type Bucket string

const (
	BucketMonth Bucket = "month" // "2006-01"
	BucketDay   Bucket = "day"   // "2006-01-02"
)

// Sort columns accepted by TransactionFilter.SortBy.
const (
	SortByDate      = "date"
	SortByAmount    = "amount"
	SortByCreatedAt = "createdAt"
)

// TransactionFilter narrows transaction listings and totals. Zero values
// mean "no constraint".
type TransactionFilter struct {
	Type       core.TransactionType
	CategoryID int64
	StartDate  *core.Date
	EndDate    *core.Date
	Search     string
	MinAmount  *core.Money
	MaxAmount  *core.Money
	Tag        string

	SortBy string
	Desc   bool
	Limit  int
	Offset int
}

// Generation is one materialized occurrence of a recurring transaction.
// Recurring holds the already advanced schedule; ExpectedNextDate is the
// next date it was read with. On success Transaction.ID is set.
type Generation struct {
	Recurring        core.RecurringTransaction
	ExpectedNextDate core.Date
	Transaction      core.Transaction
}

// IsUniqueViolation reports whether err is a unique constraint failure from
// SQLite or Postgres.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}

// IsForeignKeyViolation reports whether err is a foreign key failure.
func IsForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "foreign key constraint")
}

// NotFound wraps core.ErrNotFound with the resource name.
func NotFound(resource string) error {
	return core.NewDomainError(core.ErrNotFound, resource+" not found")
}

// IsNotFound is a shorthand for errors.Is(err, core.ErrNotFound).
func IsNotFound(err error) bool {
	return errors.Is(err, core.ErrNotFound)
}
