// Package services holds the use cases of the tracker. Handlers, the
// scheduler and the admin CLI call into it; it talks to storage through the
// storage interfaces and announces transaction changes on the optional
// event publisher.
package services

import (
	"context"
	"log/slog"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/auth"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/storage"
)

// Clock returns the current time. Tests pin it.
type Clock func() time.Time

// Options configures New.
type Options struct {
	Tokens    *auth.TokenManager
	Hasher    *auth.PasswordHasher
	Publisher amqp.Publisher
	// Location is the timezone "today" is computed in.
	Location *time.Location
	Clock    Clock
	// Logger receives transaction change records and publish failures.
	// Defaults to slog's default handler.
	Logger *applog.Logger
}

// Services bundles every use case over one store.
type Services struct {
	Auth         *AuthService
	Users        *UserService
	Categories   *CategoryService
	Transactions *TransactionService
	Budgets      *BudgetService
	Recurring    *RecurringService
	Analytics    *AnalyticsService
	Reports      *ReportService
}

// New wires the services together.
func New(store storage.Store, opts Options) *Services {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Hasher == nil {
		opts.Hasher = auth.NewPasswordHasher(0)
	}
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.Config{Handler: slog.Default().Handler(), Component: applog.ComponentTransactions})
	}
	cal := calendar{loc: opts.Location, now: opts.Clock}
	events := eventPublisher{pub: opts.Publisher, log: applog.NewStructuredLogger(opts.Logger)}

	categories := NewCategoryService(store)
	recurring := NewRecurringService(store, events, cal)
	analytics := NewAnalyticsService(store, cal)
	reports := NewReportService(store, analytics)
	reports.now = opts.Clock
	return &Services{
		Auth:         NewAuthService(store, categories, recurring, opts.Hasher, opts.Tokens, cal),
		Users:        NewUserService(store, opts.Hasher),
		Categories:   categories,
		Transactions: NewTransactionService(store, events, opts.Logger),
		Budgets:      NewBudgetService(store, cal),
		Recurring:    recurring,
		Analytics:    analytics,
		Reports:      reports,
	}
}

// calendar answers "what day is it" in the configured timezone.
type calendar struct {
	loc *time.Location
	now Clock
}

func (c calendar) today() core.Date {
	now, loc := c.now, c.loc
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}
	return core.DateOf(now().In(loc))
}

// eventPublisher makes publishing best-effort: a missing publisher or a
// failed publish never fails the caller.
type eventPublisher struct {
	pub amqp.Publisher
	log *applog.StructuredLogger
}

func (e eventPublisher) publish(ctx context.Context, typ amqp.EventType, tx core.Transaction) {
	if e.pub == nil {
		return
	}
	if err := e.pub.PublishTransactionEvent(ctx, typ, tx); err != nil {
		fields := applog.NewFields().
			WithUser(tx.UserID).
			WithTransaction(tx.ID, tx.CategoryID, string(tx.Type), tx.Amount.Cents)
		fields["event_type"] = string(typ)
		e.log.LogError(ctx, "Failed to publish transaction event", err, applog.ComponentAMQP, applog.OpPublish, fields)
	}
}
