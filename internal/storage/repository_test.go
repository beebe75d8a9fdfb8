package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"fintrack/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// RepositoryTestSuite runs every test against a fresh database file.
type RepositoryTestSuite struct {
	suite.Suite
	repo *SQLiteRepository
	ctx  context.Context
	user core.User
}

func (s *RepositoryTestSuite) SetupTest() {
	repo, err := NewSQLiteRepository(filepath.Join(s.T().TempDir(), "fintrack.db"))
	require.NoError(s.T(), err, "failed to create test database")
	s.repo = repo
	s.ctx = context.Background()
	s.user = s.createUser("owner@example.com")
}

func (s *RepositoryTestSuite) TearDownTest() {
	if s.repo != nil {
		s.repo.Close()
	}
}

func (s *RepositoryTestSuite) createUser(email string) core.User {
	u := core.User{Email: email, PasswordHash: "hash", FirstName: "Test", LastName: "User", Currency: "USD"}
	require.NoError(s.T(), s.repo.CreateUser(s.ctx, &u))
	return u
}

func (s *RepositoryTestSuite) createCategory(userID int64, name string, typ core.TransactionType) core.Category {
	c := core.Category{UserID: userID, Name: name, Type: typ, Color: "#112233", Icon: "tag"}
	require.NoError(s.T(), s.repo.CreateCategory(s.ctx, &c))
	return c
}

func (s *RepositoryTestSuite) createTransaction(cat core.Category, cents int64, date string, tags ...string) core.Transaction {
	d, err := core.ParseDate(date)
	require.NoError(s.T(), err)
	t := core.Transaction{
		UserID:      cat.UserID,
		CategoryID:  cat.ID,
		Amount:      core.Money{Cents: cents},
		Type:        cat.Type,
		Description: "item " + date,
		Date:        d,
		Tags:        tags,
	}
	require.NoError(s.T(), s.repo.CreateTransaction(s.ctx, &t))
	return t
}

func (s *RepositoryTestSuite) createRecurring(cat core.Category, start core.Date, end *core.Date) core.RecurringTransaction {
	rt := core.RecurringTransaction{
		UserID:      cat.UserID,
		CategoryID:  cat.ID,
		Type:        cat.Type,
		Amount:      core.Money{Cents: 1000},
		Description: "Gym",
		Frequency:   core.Monthly,
		StartDate:   start,
		EndDate:     end,
		NextDate:    start,
		IsActive:    true,
	}
	require.NoError(s.T(), s.repo.CreateRecurring(s.ctx, &rt))
	return rt
}

func (s *RepositoryTestSuite) TestUserEmailIsUniqueIgnoringCase() {
	dup := core.User{Email: "OWNER@example.com", PasswordHash: "x", FirstName: "A", LastName: "B", Currency: "USD"}
	err := s.repo.CreateUser(s.ctx, &dup)
	assert.ErrorIs(s.T(), err, core.ErrDuplicate)

	got, err := s.repo.GetUserByEmail(s.ctx, " Owner@Example.com ")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), s.user.ID, got.ID)
	assert.Equal(s.T(), "hash", got.PasswordHash)
}

func (s *RepositoryTestSuite) TestCategoryUniquePerUserNameAndType() {
	s.createCategory(s.user.ID, "Gifts", core.Expense)

	dup := core.Category{UserID: s.user.ID, Name: "Gifts", Type: core.Expense, Color: "#000000"}
	assert.ErrorIs(s.T(), s.repo.CreateCategory(s.ctx, &dup), core.ErrDuplicate)

	// Same name with the other type, or for another user, is fine.
	s.createCategory(s.user.ID, "Gifts", core.Income)
	other := s.createUser("other@example.com")
	s.createCategory(other.ID, "Gifts", core.Expense)
}

func (s *RepositoryTestSuite) TestOwnershipHidesForeignRows() {
	other := s.createUser("other@example.com")
	cat := s.createCategory(other.ID, "Travel", core.Expense)

	_, err := s.repo.GetCategory(s.ctx, s.user.ID, cat.ID)
	assert.ErrorIs(s.T(), err, core.ErrNotFound)
	assert.ErrorIs(s.T(), s.repo.DeleteCategory(s.ctx, s.user.ID, cat.ID), core.ErrNotFound)
}

func (s *RepositoryTestSuite) TestDeleteCategoryInUse() {
	cat := s.createCategory(s.user.ID, "Groceries", core.Expense)
	s.createTransaction(cat, 5000, "2024-03-01")

	err := s.repo.DeleteCategory(s.ctx, s.user.ID, cat.ID)
	assert.ErrorIs(s.T(), err, core.ErrCategoryInUse)

	_, err = s.repo.GetCategory(s.ctx, s.user.ID, cat.ID)
	assert.NoError(s.T(), err, "category must survive a rejected delete")
}

func (s *RepositoryTestSuite) TestDeleteCategoryCascadesBudgetsAndRecurring() {
	cat := s.createCategory(s.user.ID, "Gym", core.Expense)
	b := core.Budget{UserID: s.user.ID, CategoryID: cat.ID, Amount: core.Money{Cents: 10000}, Period: core.PeriodMonthly, StartDate: core.NewDate(2024, 1, 1)}
	require.NoError(s.T(), s.repo.CreateBudget(s.ctx, &b))
	rt := s.createRecurring(cat, core.NewDate(2024, 1, 1), nil)

	require.NoError(s.T(), s.repo.DeleteCategory(s.ctx, s.user.ID, cat.ID))

	_, err := s.repo.GetBudget(s.ctx, s.user.ID, b.ID)
	assert.ErrorIs(s.T(), err, core.ErrNotFound)
	_, err = s.repo.GetRecurring(s.ctx, s.user.ID, rt.ID)
	assert.ErrorIs(s.T(), err, core.ErrNotFound)
}

func (s *RepositoryTestSuite) TestDeleteUserCascades() {
	cat := s.createCategory(s.user.ID, "Groceries", core.Expense)
	tx := s.createTransaction(cat, 5000, "2024-03-01")

	require.NoError(s.T(), s.repo.DeleteUser(s.ctx, s.user.ID))

	_, err := s.repo.GetTransaction(s.ctx, s.user.ID, tx.ID)
	assert.ErrorIs(s.T(), err, core.ErrNotFound)
	cats, err := s.repo.ListCategories(s.ctx, s.user.ID, "")
	require.NoError(s.T(), err)
	assert.Empty(s.T(), cats)
}

func (s *RepositoryTestSuite) TestBudgetUniquePerCategoryAndPeriod() {
	cat := s.createCategory(s.user.ID, "Dining", core.Expense)
	b := core.Budget{UserID: s.user.ID, CategoryID: cat.ID, Amount: core.Money{Cents: 100}, Period: core.PeriodMonthly, StartDate: core.NewDate(2024, 1, 1)}
	require.NoError(s.T(), s.repo.CreateBudget(s.ctx, &b))

	dup := b
	dup.ID = 0
	assert.ErrorIs(s.T(), s.repo.CreateBudget(s.ctx, &dup), core.ErrDuplicate)

	yearly := b
	yearly.ID = 0
	yearly.Period = core.PeriodYearly
	require.NoError(s.T(), s.repo.CreateBudget(s.ctx, &yearly))

	yearly.Period = core.PeriodMonthly
	assert.ErrorIs(s.T(), s.repo.UpdateBudget(s.ctx, &yearly), core.ErrDuplicate)
}

func (s *RepositoryTestSuite) TestListTransactionsFiltersAndPaging() {
	food := s.createCategory(s.user.ID, "Food", core.Expense)
	salary := s.createCategory(s.user.ID, "Salary", core.Income)
	s.createTransaction(food, 1200, "2024-03-01", "weekly")
	s.createTransaction(food, 800, "2024-03-05")
	s.createTransaction(food, 4500, "2024-04-02", "weekly", "party")
	s.createTransaction(salary, 300000, "2024-03-31")

	items, total, err := s.repo.ListTransactions(s.ctx, s.user.ID, TransactionFilter{Type: core.Expense, SortBy: SortByDate, Desc: true})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 3, total)
	require.Len(s.T(), items, 3)
	assert.Equal(s.T(), "2024-04-02", items[0].Date.String())
	assert.Equal(s.T(), "Food", items[0].Category.Name)
	assert.Equal(s.T(), []string{"weekly", "party"}, items[0].Tags)

	_, total, err = s.repo.ListTransactions(s.ctx, s.user.ID, TransactionFilter{Tag: "weekly"})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 2, total)

	minAmount := core.Money{Cents: 1000}
	end := core.NewDate(2024, 3, 31)
	_, total, err = s.repo.ListTransactions(s.ctx, s.user.ID, TransactionFilter{MinAmount: &minAmount, EndDate: &end})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 2, total)

	_, total, err = s.repo.ListTransactions(s.ctx, s.user.ID, TransactionFilter{Search: "03-0"})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 2, total)

	page, total, err := s.repo.ListTransactions(s.ctx, s.user.ID, TransactionFilter{SortBy: SortByAmount, Limit: 2, Offset: 2})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 4, total)
	require.Len(s.T(), page, 2)
	assert.Equal(s.T(), int64(4500), page[0].Amount.Cents)
	assert.Equal(s.T(), int64(300000), page[1].Amount.Cents)
}

func (s *RepositoryTestSuite) TestListDueRecurringPredicate() {
	cat := s.createCategory(s.user.ID, "Rent", core.Expense)
	past := core.NewDate(2024, 1, 10)
	due := s.createRecurring(cat, core.NewDate(2024, 1, 1), nil)
	s.createRecurring(cat, core.NewDate(2024, 1, 1), &past) // ended before asOf
	s.createRecurring(cat, core.NewDate(2024, 6, 1), nil)   // not yet due

	other := s.createUser("other@example.com")
	otherCat := s.createCategory(other.ID, "Rent", core.Expense)
	s.createRecurring(otherCat, core.NewDate(2024, 1, 1), nil)

	asOf := core.NewDate(2024, 2, 1)
	mine, err := s.repo.ListDueRecurring(s.ctx, asOf, s.user.ID)
	require.NoError(s.T(), err)
	require.Len(s.T(), mine, 1)
	assert.Equal(s.T(), due.ID, mine[0].ID)

	all, err := s.repo.ListDueRecurring(s.ctx, asOf, 0)
	require.NoError(s.T(), err)
	assert.Len(s.T(), all, 2)
}

func (s *RepositoryTestSuite) TestApplyGenerationIsOptimistic() {
	cat := s.createCategory(s.user.ID, "Gym", core.Expense)
	rt := s.createRecurring(cat, core.NewDate(2024, 1, 1), nil)

	gen := func() *Generation {
		advanced := rt
		last := rt.NextDate
		advanced.LastGenerated = &last
		advanced.NextDate = core.NewDate(2024, 2, 1)
		return &Generation{
			Recurring:        advanced,
			ExpectedNextDate: rt.NextDate,
			Transaction: core.Transaction{
				UserID: rt.UserID, CategoryID: rt.CategoryID, Type: rt.Type,
				Amount: rt.Amount, Description: "Gym (auto-generated)", Date: rt.NextDate,
				Tags: []string{"recurring"},
			},
		}
	}

	first := gen()
	require.NoError(s.T(), s.repo.ApplyGeneration(s.ctx, first))
	assert.NotZero(s.T(), first.Transaction.ID)

	second := gen()
	err := s.repo.ApplyGeneration(s.ctx, second)
	assert.True(s.T(), errors.Is(err, core.ErrConcurrentGeneration), "got %v", err)

	_, total, err := s.repo.ListTransactions(s.ctx, s.user.ID, TransactionFilter{})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 1, total, "stale generation must not insert")

	stored, err := s.repo.GetRecurring(s.ctx, s.user.ID, rt.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "2024-02-01", stored.NextDate.String())
	require.NotNil(s.T(), stored.LastGenerated)
	assert.Equal(s.T(), "2024-01-01", stored.LastGenerated.String())
}

func (s *RepositoryTestSuite) TestApplyGenerationRejectsTypeMismatch() {
	cat := s.createCategory(s.user.ID, "Gym", core.Expense)
	rt := s.createRecurring(cat, core.NewDate(2024, 1, 1), nil)

	g := &Generation{
		Recurring:        rt,
		ExpectedNextDate: rt.NextDate,
		Transaction: core.Transaction{
			UserID: rt.UserID, CategoryID: rt.CategoryID, Type: core.Income,
			Amount: rt.Amount, Date: rt.NextDate,
		},
	}
	assert.ErrorIs(s.T(), s.repo.ApplyGeneration(s.ctx, g), core.ErrCategoryTypeMismatch)
}

func (s *RepositoryTestSuite) TestTotals() {
	food := s.createCategory(s.user.ID, "Food", core.Expense)
	fun := s.createCategory(s.user.ID, "Fun", core.Expense)
	salary := s.createCategory(s.user.ID, "Salary", core.Income)
	s.createTransaction(food, 1000, "2024-03-01")
	s.createTransaction(food, 2000, "2024-03-15")
	s.createTransaction(fun, 500, "2024-04-01")
	s.createTransaction(salary, 10000, "2024-03-31")

	byType, err := s.repo.TotalsByType(s.ctx, s.user.ID, TransactionFilter{})
	require.NoError(s.T(), err)
	summary := core.NewSummary(byType)
	assert.Equal(s.T(), int64(3500), summary.TotalExpense.Cents)
	assert.Equal(s.T(), int64(6500), summary.Balance.Cents)

	byCat, err := s.repo.TotalsByCategory(s.ctx, s.user.ID, core.Expense, nil, nil)
	require.NoError(s.T(), err)
	require.Len(s.T(), byCat, 2)
	assert.Equal(s.T(), "Food", byCat[0].Name)
	assert.Equal(s.T(), 2, byCat[0].Count)

	spent, err := s.repo.SumExpenses(s.ctx, s.user.ID, food.ID, core.NewDate(2024, 3, 1), core.NewDate(2024, 3, 31))
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(3000), spent.Cents)

	months, err := s.repo.TotalsByPeriod(s.ctx, s.user.ID, BucketMonth, core.NewDate(2024, 1, 1), core.NewDate(2024, 12, 31))
	require.NoError(s.T(), err)
	assert.Equal(s.T(), []core.PeriodTotal{
		{Period: "2024-03", Type: core.Expense, Total: core.Money{Cents: 3000}},
		{Period: "2024-03", Type: core.Income, Total: core.Money{Cents: 10000}},
		{Period: "2024-04", Type: core.Expense, Total: core.Money{Cents: 500}},
	}, months)
}

func TestRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(RepositoryTestSuite))
}
