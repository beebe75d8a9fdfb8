package services

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/storage"
)

func TestCategoryService_Rules(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "a@example.com")

	defaults, err := f.svc.Categories.List(f.ctx, u.ID, core.Expense)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	def := defaults[0]
	if _, err := f.svc.Categories.Update(f.ctx, u.ID, def.ID, core.CategoryPatch{Name: core.Some("Renamed")}); !errors.Is(err, core.ErrDefaultCategory) {
		t.Errorf("update default error = %v", err)
	}
	if err := f.svc.Categories.Delete(f.ctx, u.ID, def.ID); !errors.Is(err, core.ErrDefaultCategory) {
		t.Errorf("delete default error = %v", err)
	}

	used := f.category(t, u.ID, "Groceries", core.Expense)
	f.record(t, used, 5000, date("2024-03-01"))
	if err := f.svc.Categories.Delete(f.ctx, u.ID, used.ID); !errors.Is(err, core.ErrCategoryInUse) {
		t.Errorf("delete in-use error = %v", err)
	}

	if _, err := f.svc.Categories.Create(f.ctx, u.ID, core.Category{Name: "Groceries", Type: core.Expense, Color: "#000000"}); !errors.Is(err, core.ErrDuplicate) {
		t.Errorf("duplicate name error = %v", err)
	}

	spare := f.category(t, u.ID, "Hobbies", core.Expense)
	if _, err := f.svc.Budgets.Create(f.ctx, u.ID, core.Budget{CategoryID: spare.ID, Amount: core.Money{Cents: 10000}, Period: core.PeriodMonthly}); err != nil {
		t.Fatalf("create budget: %v", err)
	}
	f.recurring(t, spare, "Club", core.Monthly, "2024-05-01", nil)
	if err := f.svc.Categories.Delete(f.ctx, u.ID, spare.ID); err != nil {
		t.Fatalf("delete unused category: %v", err)
	}
	budgets, _ := f.svc.Budgets.List(f.ctx, u.ID)
	recurring, _ := f.svc.Recurring.List(f.ctx, u.ID, nil)
	if len(budgets) != 0 || len(recurring) != 0 {
		t.Errorf("budgets=%d recurring=%d after delete, want cascade", len(budgets), len(recurring))
	}

	before, _ := f.svc.Categories.List(f.ctx, u.ID, "")
	again, err := f.svc.Categories.InitializeDefaults(f.ctx, u.ID)
	if err != nil {
		t.Fatalf("InitializeDefaults: %v", err)
	}
	if len(again) != len(before) {
		t.Errorf("InitializeDefaults not idempotent: %d -> %d", len(before), len(again))
	}
}

func TestTransactionService_CategoryChecks(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "a@example.com")
	other := f.user(t, "b@example.com")
	expense := f.category(t, u.ID, "Groceries", core.Expense)
	income := f.category(t, u.ID, "Bonus", core.Income)
	foreign := f.category(t, other.ID, "Theirs", core.Expense)

	tests := []struct {
		name    string
		in      core.Transaction
		wantErr error
	}{
		{"type mismatch", core.Transaction{CategoryID: income.ID, Type: core.Expense, Amount: core.Money{Cents: 100}, Date: date("2024-03-01")}, core.ErrCategoryTypeMismatch},
		{"foreign category", core.Transaction{CategoryID: foreign.ID, Type: core.Expense, Amount: core.Money{Cents: 100}, Date: date("2024-03-01")}, core.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.Transactions.Create(f.ctx, u.ID, tt.in); !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	_, err := f.svc.Transactions.Create(f.ctx, u.ID, core.Transaction{CategoryID: expense.ID, Type: core.Expense, Date: date("2024-03-01")})
	var verrs core.ValidationErrors
	if !errors.As(err, &verrs) {
		t.Errorf("zero amount error = %v, want validation errors", err)
	}

	tx := f.record(t, expense, 2500, date("2024-03-02"))
	if tx.Category == nil || tx.Category.Name != "Groceries" {
		t.Errorf("created category ref = %+v", tx.Category)
	}
	if _, err := f.svc.Transactions.Update(f.ctx, u.ID, tx.ID, core.TransactionPatch{Type: core.Some(core.Income)}); !errors.Is(err, core.ErrCategoryTypeMismatch) {
		t.Errorf("update to mismatched type error = %v", err)
	}
	updated, err := f.svc.Transactions.Update(f.ctx, u.ID, tx.ID, core.TransactionPatch{
		Type:       core.Some(core.Income),
		CategoryID: core.Some(income.ID),
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Type != core.Income || updated.Category.Name != "Bonus" {
		t.Errorf("updated = %+v", updated)
	}

	if _, err := f.svc.Transactions.Get(f.ctx, other.ID, tx.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("foreign Get error = %v", err)
	}
	if err := f.svc.Transactions.Delete(f.ctx, u.ID, tx.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	for typ, want := range map[amqp.EventType]int{amqp.TransactionCreated: 1, amqp.TransactionUpdated: 1, amqp.TransactionDeleted: 1} {
		if got := f.pub.count(typ); got != want {
			t.Errorf("%s events = %d, want %d", typ, got, want)
		}
	}
}

func TestTransactionService_ListAndSummary(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "a@example.com")
	groceries := f.category(t, u.ID, "Groceries", core.Expense)
	pay := f.category(t, u.ID, "Pay", core.Income)
	f.record(t, groceries, 5000, date("2024-03-01"))
	f.record(t, groceries, 3000, date("2024-03-05"))
	f.record(t, pay, 100000, date("2024-03-10"))

	page, err := f.svc.Transactions.List(f.ctx, u.ID, storage.TransactionFilter{}, 1, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page.Items) != 2 || page.Pagination.Total != 3 || page.Pagination.TotalPages != 2 {
		t.Errorf("page = %+v", page.Pagination)
	}

	sum, err := f.svc.Transactions.Summary(f.ctx, u.ID, storage.TransactionFilter{})
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.TotalExpense.Cents != 8000 || sum.TotalIncome.Cents != 100000 || sum.Balance.Cents != 92000 {
		t.Errorf("summary = %+v", sum)
	}
	if sum.AverageExpense.Cents != 4000 || sum.TransactionCount != 3 {
		t.Errorf("averages = %+v", sum)
	}

	bad := storage.TransactionFilter{StartDate: datePtr("2024-03-10"), EndDate: datePtr("2024-03-01")}
	var verrs core.ValidationErrors
	if _, err := f.svc.Transactions.List(f.ctx, u.ID, bad, 1, 20); !errors.As(err, &verrs) {
		t.Errorf("inverted range error = %v", err)
	}
}

func TestBudgetService_Status(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "a@example.com")

	tests := []struct {
		name        string
		spent       int64
		wantPct     float64
		wantDisplay float64
		wantState   core.BudgetState
	}{
		{"just under warning", 6999, 69.99, 69.99, core.BudgetSafe},
		{"at warning", 7000, 70, 70, core.BudgetWarning},
		{"at limit", 10000, 100, 100, core.BudgetExceeded},
		{"over limit", 15000, 150, 100, core.BudgetExceeded},
	}
	byCategory := map[int64]int{}
	for i, tt := range tests {
		cat := f.category(t, u.ID, tt.name, core.Expense)
		if _, err := f.svc.Budgets.Create(f.ctx, u.ID, core.Budget{CategoryID: cat.ID, Amount: core.Money{Cents: 10000}, Period: core.PeriodMonthly}); err != nil {
			t.Fatalf("create budget: %v", err)
		}
		f.record(t, cat, tt.spent, date("2024-03-10"))
		// outside the monthly window
		f.record(t, cat, 99999, date("2024-02-28"))
		byCategory[cat.ID] = i
	}

	statuses, err := f.svc.Budgets.Status(f.ctx, u.ID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(statuses) != len(tests) {
		t.Fatalf("statuses = %d, want %d", len(statuses), len(tests))
	}
	for _, st := range statuses {
		tt := tests[byCategory[st.Budget.CategoryID]]
		if st.Spent.Cents != tt.spent {
			t.Errorf("%s: spent = %d, want %d", tt.name, st.Spent.Cents, tt.spent)
		}
		if st.Percentage != tt.wantPct || st.DisplayPercentage != tt.wantDisplay || st.Status != tt.wantState {
			t.Errorf("%s: got %.2f/%.2f %s, want %.2f/%.2f %s", tt.name,
				st.Percentage, st.DisplayPercentage, st.Status, tt.wantPct, tt.wantDisplay, tt.wantState)
		}
		if st.WindowStart.String() != "2024-03-01" || st.WindowEnd.String() != "2024-03-31" {
			t.Errorf("%s: window %s..%s", tt.name, st.WindowStart, st.WindowEnd)
		}
		if st.Remaining.Cents != 10000-tt.spent {
			t.Errorf("%s: remaining = %d", tt.name, st.Remaining.Cents)
		}
	}
}

func TestBudgetService_CreateRejects(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "a@example.com")
	food := f.category(t, u.ID, "Groceries", core.Expense)
	salary := f.category(t, u.ID, "Pay", core.Income)

	b, err := f.svc.Budgets.Create(f.ctx, u.ID, core.Budget{CategoryID: food.ID, Amount: core.Money{Cents: 40000}, Period: core.PeriodMonthly})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if b.StartDate.String() != "2024-03-01" {
		t.Errorf("default start date = %s, want 2024-03-01", b.StartDate)
	}

	tests := []struct {
		name    string
		in      core.Budget
		wantErr error
	}{
		{"income category", core.Budget{CategoryID: salary.ID, Amount: core.Money{Cents: 100}, Period: core.PeriodMonthly}, core.ErrBudgetCategoryType},
		{"duplicate period", core.Budget{CategoryID: food.ID, Amount: core.Money{Cents: 100}, Period: core.PeriodMonthly}, core.ErrDuplicate},
		{"unknown category", core.Budget{CategoryID: 9999, Amount: core.Money{Cents: 100}, Period: core.PeriodMonthly}, core.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.Budgets.Create(f.ctx, u.ID, tt.in); !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if _, err := f.svc.Budgets.Create(f.ctx, u.ID, core.Budget{CategoryID: food.ID, Amount: core.Money{Cents: 400000}, Period: core.PeriodYearly}); err != nil {
		t.Errorf("yearly budget beside monthly: %v", err)
	}
}

func TestTransactionService_LogsChanges(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "log@example.com")
	cat := f.category(t, u.ID, "Groceries", core.Expense)
	tx := f.record(t, cat, 5000, date("2024-03-01"))

	if _, err := f.svc.Transactions.Update(f.ctx, u.ID, tx.ID, core.TransactionPatch{Amount: core.Some(core.Money{Cents: 6000})}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := f.svc.Transactions.Delete(f.ctx, u.ID, tx.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	var ops []string
	var lastAmount any
	sc := bufio.NewScanner(f.logs)
	for sc.Scan() {
		var entry map[string]any
		if err := json.Unmarshal(sc.Bytes(), &entry); err != nil {
			t.Fatalf("log line %q: %v", sc.Text(), err)
		}
		if entry["msg"] != "Transaction changed" {
			continue
		}
		if entry["component"] != "transactions" || entry["transaction_id"] != float64(tx.ID) || entry["user_id"] != float64(u.ID) {
			t.Errorf("unexpected change record: %v", entry)
		}
		ops = append(ops, entry["operation"].(string))
		lastAmount = entry["amount_cents"]
	}
	want := []string{"create", "update", "delete"}
	if len(ops) != len(want) {
		t.Fatalf("logged operations = %v, want %v", ops, want)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Errorf("operation %d = %q, want %q", i, ops[i], want[i])
		}
	}
	if lastAmount != float64(6000) {
		t.Errorf("amount_cents of delete record = %v, want 6000", lastAmount)
	}
}

type brokenPublisher struct{}

func (brokenPublisher) PublishTransactionEvent(context.Context, amqp.EventType, core.Transaction) error {
	return errors.New("broker down")
}

func TestTransactionService_PublishFailureIsLogged(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "broker@example.com")
	cat := f.category(t, u.ID, "Groceries", core.Expense)

	f.svc.Transactions.events.pub = brokenPublisher{}
	tx := f.record(t, cat, 2500, date("2024-03-02"))

	found := false
	sc := bufio.NewScanner(f.logs)
	for sc.Scan() {
		var entry map[string]any
		if err := json.Unmarshal(sc.Bytes(), &entry); err != nil {
			t.Fatalf("log line %q: %v", sc.Text(), err)
		}
		if entry["msg"] != "Failed to publish transaction event" {
			continue
		}
		found = true
		if entry["error"] != "broker down" || entry["component"] != "amqp" || entry["operation"] != "publish" {
			t.Errorf("unexpected failure record: %v", entry)
		}
		if entry["event_type"] != string(amqp.TransactionCreated) || entry["transaction_id"] != float64(tx.ID) {
			t.Errorf("failure record does not identify the event: %v", entry)
		}
	}
	if !found {
		t.Fatal("publish failure was not logged")
	}
}
