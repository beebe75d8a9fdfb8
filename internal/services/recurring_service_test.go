package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/storage"
)

func (f *fixture) recurring(t *testing.T, cat core.Category, desc string, freq core.Frequency, start string, end *core.Date) core.RecurringTransaction {
	t.Helper()
	r, err := f.svc.Recurring.Create(f.ctx, cat.UserID, core.RecurringTransaction{
		CategoryID:  cat.ID,
		Type:        cat.Type,
		Amount:      core.Money{Cents: 120000},
		Description: desc,
		Frequency:   freq,
		StartDate:   date(start),
		EndDate:     end,
	})
	if err != nil {
		t.Fatalf("create recurring: %v", err)
	}
	return r
}

func TestRecurringService_GenerateDueIsIdempotent(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "a@example.com")
	cat := f.category(t, u.ID, "Streaming", core.Expense)
	f.recurring(t, cat, "Daily coffee", core.Daily, "2024-03-13", nil)

	asOf := date("2024-03-15")
	first, err := f.svc.Recurring.GenerateDue(f.ctx, asOf, AllUsers)
	if err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	if first.Generated != 3 {
		t.Fatalf("first sweep generated %d, want 3 (13th, 14th, 15th)", first.Generated)
	}

	second, err := f.svc.Recurring.GenerateDue(f.ctx, asOf, AllUsers)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if second.Generated != 0 || len(second.Errors) != 0 {
		t.Fatalf("second sweep = %+v, want nothing generated", second)
	}
	if got := f.pub.count(amqp.TransactionCreated); got != 3 {
		t.Errorf("created events = %d, want 3", got)
	}
}

func TestRecurringService_EndDateDeactivates(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "a@example.com")
	cat := f.category(t, u.ID, "Rent", core.Expense)
	r := f.recurring(t, cat, "Rent", core.Monthly, "2024-01-01", datePtr("2024-02-15"))

	res, err := f.svc.Recurring.GenerateDue(f.ctx, date("2024-02-15"), ForUser(u.ID))
	if err != nil {
		t.Fatalf("GenerateDue: %v", err)
	}
	if res.Generated != 2 {
		t.Fatalf("generated %d, want 2", res.Generated)
	}

	got, err := f.svc.Recurring.Get(f.ctx, u.ID, r.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.IsActive {
		t.Error("schedule should be inactive after its end date")
	}
	if got.NextDate.String() != "2024-03-01" {
		t.Errorf("NextDate = %s, want 2024-03-01", got.NextDate)
	}
	if got.LastGenerated == nil || got.LastGenerated.String() != "2024-02-01" {
		t.Errorf("LastGenerated = %v, want 2024-02-01", got.LastGenerated)
	}

	page, err := f.svc.Transactions.List(f.ctx, u.ID, storage.TransactionFilter{SortBy: storage.SortByDate}, 1, 20)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page.Items) != 2 {
		t.Fatalf("transactions = %d, want 2", len(page.Items))
	}
	wantDates := []string{"2024-01-01", "2024-02-01"}
	for i, tx := range page.Items {
		if tx.Date.String() != wantDates[i] {
			t.Errorf("transaction %d date = %s, want %s", i, tx.Date, wantDates[i])
		}
		if tx.Description != "Rent (auto-generated)" {
			t.Errorf("description = %q", tx.Description)
		}
		if len(tx.Tags) != 1 || tx.Tags[0] != "recurring" {
			t.Errorf("tags = %v, want [recurring]", tx.Tags)
		}
	}
}

func TestRecurringService_MonthEndAnchor(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "a@example.com")
	cat := f.category(t, u.ID, "Card", core.Expense)
	r := f.recurring(t, cat, "Card", core.Monthly, "2024-01-31", nil)

	if _, err := f.svc.Recurring.GenerateDue(f.ctx, date("2024-03-31"), AllUsers); err != nil {
		t.Fatalf("GenerateDue: %v", err)
	}
	page, err := f.svc.Transactions.List(f.ctx, u.ID, storage.TransactionFilter{SortBy: storage.SortByDate}, 1, 20)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var got []string
	for _, tx := range page.Items {
		got = append(got, tx.Date.String())
	}
	want := "2024-01-31,2024-02-29,2024-03-31"
	if strings.Join(got, ",") != want {
		t.Errorf("dates = %v, want %s", got, want)
	}
	after, _ := f.svc.Recurring.Get(f.ctx, u.ID, r.ID)
	if after.NextDate.String() != "2024-04-30" {
		t.Errorf("NextDate = %s, want 2024-04-30", after.NextDate)
	}
}

// failingStore breaks generation of a single schedule.
type failingStore struct {
	*storage.SQLiteRepository
	failID int64
}

func (s failingStore) ApplyGeneration(ctx context.Context, g *storage.Generation) error {
	if g.Recurring.ID == s.failID {
		return errors.New("disk on fire")
	}
	return s.SQLiteRepository.ApplyGeneration(ctx, g)
}

func TestRecurringService_FailureIsolation(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "a@example.com")
	cat := f.category(t, u.ID, "Bills", core.Expense)
	broken := f.recurring(t, cat, "Broken", core.Monthly, "2024-03-01", nil)
	f.recurring(t, cat, "Healthy", core.Monthly, "2024-03-01", nil)

	svc := NewRecurringService(failingStore{SQLiteRepository: f.store, failID: broken.ID}, eventPublisher{}, calendar{})
	res, err := svc.GenerateDue(f.ctx, date("2024-03-15"), AllUsers)
	if err != nil {
		t.Fatalf("GenerateDue: %v", err)
	}
	if res.Generated != 1 {
		t.Errorf("generated %d, want 1", res.Generated)
	}
	if len(res.Errors) != 1 {
		t.Fatalf("errors = %+v, want one", res.Errors)
	}
	if res.Errors[0].RecurringID != broken.ID || res.Errors[0].Description != "Broken" {
		t.Errorf("error entry = %+v", res.Errors[0])
	}
}

func TestRecurringService_GenerateOne(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "a@example.com")
	other := f.user(t, "b@example.com")
	cat := f.category(t, u.ID, "Gym", core.Expense)
	r := f.recurring(t, cat, "Gym", core.Weekly, "2024-04-01", nil)

	tx, err := f.svc.Recurring.GenerateOne(f.ctx, u.ID, r.ID, date("2024-03-15"))
	if err != nil {
		t.Fatalf("GenerateOne: %v", err)
	}
	if tx.Date.String() != "2024-04-01" || tx.Category == nil || tx.Category.Name != "Gym" {
		t.Errorf("generated = %+v", tx)
	}
	after, _ := f.svc.Recurring.Get(f.ctx, u.ID, r.ID)
	if after.NextDate.String() != "2024-04-08" {
		t.Errorf("NextDate = %s, want 2024-04-08", after.NextDate)
	}

	if _, err := f.svc.Recurring.GenerateOne(f.ctx, other.ID, r.ID, date("2024-03-15")); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("foreign GenerateOne error = %v, want ErrNotFound", err)
	}

	inactive := false
	if _, err := f.svc.Recurring.Update(f.ctx, u.ID, r.ID, core.RecurringPatch{IsActive: core.Some(inactive)}); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := f.svc.Recurring.GenerateOne(f.ctx, u.ID, r.ID, date("2024-03-15")); !errors.Is(err, core.ErrRecurringInactive) {
		t.Errorf("inactive GenerateOne error = %v, want ErrRecurringInactive", err)
	}
}

func TestRecurringService_Update(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "a@example.com")
	cat := f.category(t, u.ID, "Rent", core.Expense)
	income := f.category(t, u.ID, "Salary 2", core.Income)
	r := f.recurring(t, cat, "Rent", core.Monthly, "2024-01-01", datePtr("2024-02-15"))
	if _, err := f.svc.Recurring.GenerateDue(f.ctx, date("2024-02-15"), AllUsers); err != nil {
		t.Fatalf("GenerateDue: %v", err)
	}

	tests := []struct {
		name    string
		patch   core.RecurringPatch
		wantErr error
	}{
		{
			name:    "reactivate past end date",
			patch:   core.RecurringPatch{IsActive: core.Some(true)},
			wantErr: core.ErrInvalidDateRange,
		},
		{
			name:    "category of another type",
			patch:   core.RecurringPatch{CategoryID: core.Some(income.ID)},
			wantErr: core.ErrCategoryTypeMismatch,
		},
		{
			name:  "clear end date and reactivate",
			patch: core.RecurringPatch{EndDate: core.Optional[core.Date]{Set: true, Null: true}, IsActive: core.Some(true)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.svc.Recurring.Update(f.ctx, u.ID, r.ID, tt.patch)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Update: %v", err)
			}
			if !got.IsActive || got.EndDate != nil {
				t.Errorf("updated = %+v", got)
			}
		})
	}

	moved, err := f.svc.Recurring.Update(f.ctx, u.ID, r.ID, core.RecurringPatch{StartDate: core.Some(date("2024-06-10"))})
	if err != nil {
		t.Fatalf("move start: %v", err)
	}
	if moved.NextDate.String() != "2024-06-10" {
		t.Errorf("NextDate = %s, want reset to new start date", moved.NextDate)
	}
}

func TestRecurringService_Upcoming(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "a@example.com")
	cat := f.category(t, u.ID, "Rent", core.Expense)
	f.recurring(t, cat, "Rent", core.Monthly, "2024-01-20", datePtr("2024-05-01"))
	f.recurring(t, cat, "Gym", core.Weekly, "2024-03-18", nil)

	got, err := f.svc.Recurring.Upcoming(f.ctx, u.ID, 30)
	if err != nil {
		t.Fatalf("Upcoming: %v", err)
	}
	// window 2024-03-15..04-14: rent once, gym four times
	var dates []string
	for _, o := range got {
		dates = append(dates, o.Date.String())
	}
	want := "2024-03-18,2024-03-20,2024-03-25,2024-04-01,2024-04-08"
	if strings.Join(dates, ",") != want {
		t.Errorf("dates = %v, want %s", dates, want)
	}
}

func TestGeneratedDescription(t *testing.T) {
	if got := generatedDescription("Rent"); got != "Rent (auto-generated)" {
		t.Errorf("short = %q", got)
	}
	long := generatedDescription(strings.Repeat("é", 300))
	if n := utf8.RuneCountInString(long); n != core.MaxDescriptionLength {
		t.Errorf("long description has %d runes, want %d", n, core.MaxDescriptionLength)
	}
	if !strings.HasSuffix(long, generatedSuffix) {
		t.Errorf("suffix missing: %q", long[len(long)-20:])
	}
}
