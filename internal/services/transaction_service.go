package services

import (
	"context"
	"fmt"
	"strings"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/storage"
)

// Paging defaults and limits of transaction listings.
const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

type transactionStore interface {
	storage.CategoryStore
	storage.TransactionStore
	storage.AnalyticsStore
}

// Pagination describes one page of a listing.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// TransactionPage is one page of transactions.
type TransactionPage struct {
	Items      []core.Transaction `json:"items"`
	Pagination Pagination         `json:"pagination"`
}

type TransactionService struct {
	store  transactionStore
	events eventPublisher
	audit  *applog.StructuredLogger
}

func NewTransactionService(store transactionStore, events eventPublisher, logger *applog.Logger) *TransactionService {
	return &TransactionService{store: store, events: events, audit: applog.NewStructuredLogger(logger)}
}

// List returns one page of the filtered transactions. page is 1-based;
// Limit and Offset of the filter are overwritten.
func (s *TransactionService) List(ctx context.Context, userID int64, f storage.TransactionFilter, page, limit int) (TransactionPage, error) {
	if err := validateFilter(f); err != nil {
		return TransactionPage{}, err
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	f.Limit = limit
	f.Offset = (page - 1) * limit

	items, total, err := s.store.ListTransactions(ctx, userID, f)
	if err != nil {
		return TransactionPage{}, err
	}
	return TransactionPage{
		Items: items,
		Pagination: Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: (total + limit - 1) / limit,
		},
	}, nil
}

func (s *TransactionService) Get(ctx context.Context, userID, id int64) (core.Transaction, error) {
	return s.store.GetTransaction(ctx, userID, id)
}

// Create stores a transaction against an owned category of the same type.
func (s *TransactionService) Create(ctx context.Context, userID int64, in core.Transaction) (core.Transaction, error) {
	t := core.Transaction{
		UserID:      userID,
		CategoryID:  in.CategoryID,
		Amount:      in.Amount,
		Type:        in.Type,
		Description: strings.TrimSpace(in.Description),
		Date:        in.Date,
		Tags:        core.NormalizeTags(in.Tags),
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	cat, err := requireCategory(ctx, s.store, userID, t.CategoryID, t.Type)
	if err != nil {
		return core.Transaction{}, err
	}
	if err := s.store.CreateTransaction(ctx, &t); err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	t.Category = cat.Ref()

	s.logChange(ctx, applog.OpCreate, t)
	s.events.publish(ctx, amqp.TransactionCreated, t)
	return t, nil
}

// Update applies a partial change. When the type or the category changes
// the pair is checked again.
func (s *TransactionService) Update(ctx context.Context, userID, id int64, patch core.TransactionPatch) (core.Transaction, error) {
	t, err := s.store.GetTransaction(ctx, userID, id)
	if err != nil {
		return core.Transaction{}, err
	}
	if err := patch.Apply(&t); err != nil {
		return core.Transaction{}, err
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if patch.TouchesCategory() {
		cat, err := requireCategory(ctx, s.store, userID, t.CategoryID, t.Type)
		if err != nil {
			return core.Transaction{}, err
		}
		t.Category = cat.Ref()
	}
	if err := s.store.UpdateTransaction(ctx, &t); err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}

	s.logChange(ctx, applog.OpUpdate, t)
	s.events.publish(ctx, amqp.TransactionUpdated, t)
	return t, nil
}

func (s *TransactionService) Delete(ctx context.Context, userID, id int64) error {
	t, err := s.store.GetTransaction(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteTransaction(ctx, userID, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}

	s.logChange(ctx, applog.OpDelete, t)
	s.events.publish(ctx, amqp.TransactionDeleted, t)
	return nil
}

// Summary rolls up every transaction matching f.
func (s *TransactionService) Summary(ctx context.Context, userID int64, f storage.TransactionFilter) (core.Summary, error) {
	if err := validateFilter(f); err != nil {
		return core.Summary{}, err
	}
	f.Limit, f.Offset = 0, 0
	totals, err := s.store.TotalsByType(ctx, userID, f)
	if err != nil {
		return core.Summary{}, err
	}
	return core.NewSummary(totals), nil
}

func (s *TransactionService) logChange(ctx context.Context, op string, t core.Transaction) {
	s.audit.LogTransactionChange(ctx, op, t.UserID, t.ID, t.CategoryID, string(t.Type), t.Amount.Cents)
}

func validateFilter(f storage.TransactionFilter) error {
	var errs core.ValidationErrors
	if f.Type != "" && !f.Type.Valid() {
		errs.Add("type", "must be one of expense, income")
	}
	if f.StartDate != nil && f.EndDate != nil && f.EndDate.Before(*f.StartDate) {
		errs.Add("endDate", core.ErrInvalidDateRange.Error())
	}
	if f.MinAmount != nil && f.MaxAmount != nil && f.MaxAmount.Cents < f.MinAmount.Cents {
		errs.Add("maxAmount", "must not be below minAmount")
	}
	return errs.Err()
}
