package services

import (
	"context"
	"fmt"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

type budgetStore interface {
	storage.CategoryStore
	storage.BudgetStore
}

type BudgetService struct {
	store budgetStore
	cal   calendar
}

func NewBudgetService(store budgetStore, cal calendar) *BudgetService {
	return &BudgetService{store: store, cal: cal}
}

func (s *BudgetService) List(ctx context.Context, userID int64) ([]core.Budget, error) {
	return s.store.ListBudgets(ctx, userID)
}

func (s *BudgetService) Get(ctx context.Context, userID, id int64) (core.Budget, error) {
	return s.store.GetBudget(ctx, userID, id)
}

// Create sets a budget on an owned expense category. There is at most one
// budget per category and period.
func (s *BudgetService) Create(ctx context.Context, userID int64, in core.Budget) (core.Budget, error) {
	b := core.Budget{
		UserID:     userID,
		CategoryID: in.CategoryID,
		Amount:     in.Amount,
		Period:     in.Period,
		StartDate:  in.StartDate,
	}
	if b.StartDate.IsZero() {
		b.StartDate = s.cal.today().StartOfMonth()
	}
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	cat, err := s.store.GetCategory(ctx, userID, b.CategoryID)
	if err != nil {
		return core.Budget{}, err
	}
	if cat.Type != core.Expense {
		return core.Budget{}, core.ErrBudgetCategoryType
	}
	if err := s.store.CreateBudget(ctx, &b); err != nil {
		return core.Budget{}, fmt.Errorf("create budget: %w", err)
	}
	b.Category = cat.Ref()
	return b, nil
}

func (s *BudgetService) Update(ctx context.Context, userID, id int64, patch core.BudgetPatch) (core.Budget, error) {
	b, err := s.store.GetBudget(ctx, userID, id)
	if err != nil {
		return core.Budget{}, err
	}
	if err := patch.Apply(&b); err != nil {
		return core.Budget{}, err
	}
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	if err := s.store.UpdateBudget(ctx, &b); err != nil {
		return core.Budget{}, fmt.Errorf("update budget: %w", err)
	}
	return b, nil
}

func (s *BudgetService) Delete(ctx context.Context, userID, id int64) error {
	return s.store.DeleteBudget(ctx, userID, id)
}

// Status reports spending against every budget for the window containing
// today: the calendar month or the calendar year.
func (s *BudgetService) Status(ctx context.Context, userID int64) ([]core.BudgetStatus, error) {
	budgets, err := s.store.ListBudgets(ctx, userID)
	if err != nil {
		return nil, err
	}
	today := s.cal.today()

	out := make([]core.BudgetStatus, 0, len(budgets))
	for _, b := range budgets {
		from, to := b.Period.Window(today)
		spent, err := s.store.SumExpenses(ctx, userID, b.CategoryID, from, to)
		if err != nil {
			return nil, fmt.Errorf("budget %d spending: %w", b.ID, err)
		}
		pct, display, state := core.ClassifyBudget(spent, b.Amount)
		out = append(out, core.BudgetStatus{
			Budget:            b,
			WindowStart:       from,
			WindowEnd:         to,
			Spent:             spent,
			Remaining:         b.Amount.Sub(spent),
			Percentage:        pct,
			DisplayPercentage: display,
			Status:            state,
		})
	}
	return out, nil
}
