package core

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
		{NewDate(1800, 1, 1), false},
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestDateJSON(t *testing.T) {
	var d Date
	if err := json.Unmarshal([]byte(`"2024-03-01"`), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !d.Equal(NewDate(2024, 3, 1)) {
		t.Fatalf("got %s", d)
	}
	if err := json.Unmarshal([]byte(`"2024-03-01T23:30:00Z"`), &d); err != nil || d.String() != "2024-03-01" {
		t.Fatalf("timestamp unmarshal = %s, %v", d, err)
	}
	if err := json.Unmarshal([]byte(`"03/01/2024"`), &d); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
	b, _ := json.Marshal(NewDate(2024, 12, 5))
	if string(b) != `"2024-12-05"` {
		t.Fatalf("marshal = %s", b)
	}
}

func TestDateWindows(t *testing.T) {
	d := NewDate(2024, 2, 14) // Wednesday
	if got := d.StartOfWeek(); got.String() != "2024-02-12" {
		t.Errorf("StartOfWeek = %s", got)
	}
	if got := NewDate(2024, 2, 18).StartOfWeek(); got.String() != "2024-02-12" {
		t.Errorf("StartOfWeek(sunday) = %s", got)
	}
	if got := d.EndOfMonth(); got.String() != "2024-02-29" {
		t.Errorf("EndOfMonth = %s", got)
	}
	from, to := PeriodYearly.Window(d)
	if from.String() != "2024-01-01" || to.String() != "2024-12-31" {
		t.Errorf("yearly window = %s..%s", from, to)
	}
	from, to = PeriodMonthly.Window(d)
	if from.String() != "2024-02-01" || to.String() != "2024-02-29" {
		t.Errorf("monthly window = %s..%s", from, to)
	}
}

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err == nil {
		t.Fatalf("expected error for zero")
	}
	if err := (Money{Cents: MaxAmountCents + 1}).Validate(); !errors.Is(err, ErrAmountTooLarge) {
		t.Fatalf("expected ErrAmountTooLarge, got %v", err)
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		CategoryID:  1,
		Amount:      Money{Cents: 5000},
		Type:        Expense,
		Description: "weekly shop",
		Date:        NewDate(2024, 3, 1),
		Tags:        []string{"food"},
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := map[string]func(*Transaction){
		"missing category": func(t *Transaction) { t.CategoryID = 0 },
		"zero amount":      func(t *Transaction) { t.Amount = Money{} },
		"bad type":         func(t *Transaction) { t.Type = "transfer" },
		"zero date":        func(t *Transaction) { t.Date = Date{} },
		"too many tags": func(t *Transaction) {
			t.Tags = make([]string, MaxTags+1)
		},
	}
	for name, mutate := range bads {
		tx := good
		mutate(&tx)
		err := tx.Validate()
		var verrs ValidationErrors
		if !errors.As(err, &verrs) {
			t.Fatalf("%s: expected ValidationErrors, got %v", name, err)
		}
	}
}

func TestCategoryValidate(t *testing.T) {
	c := Category{Name: "Groceries", Type: Expense, Color: "#22AA33"}
	if err := c.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	c.Color = "green"
	c.Type = "other"
	err := c.Validate()
	var verrs ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) != 2 {
		t.Fatalf("expected two field errors, got %v", err)
	}
}

func TestRecurringValidate(t *testing.T) {
	end := NewDate(2024, 1, 1)
	r := RecurringTransaction{
		CategoryID:  1,
		Type:        Expense,
		Amount:      Money{Cents: 1000},
		Description: "Rent",
		Frequency:   Monthly,
		StartDate:   NewDate(2024, 2, 1),
		EndDate:     &end,
	}
	if err := r.Validate(); err == nil {
		t.Fatal("expected error for end date before start date")
	}
	r.EndDate = nil
	r.Frequency = "hourly"
	if err := r.Validate(); err == nil {
		t.Fatal("expected error for unknown frequency")
	}
	r.Frequency = Weekly
	if err := r.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
}

func TestUserValidate(t *testing.T) {
	u := User{Email: "ada@example.com", FirstName: "Ada", LastName: "Lovelace", Currency: "EUR"}
	if err := u.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	u.Email = "not-an-email"
	u.Currency = "XXX"
	var verrs ValidationErrors
	if err := u.Validate(); !errors.As(err, &verrs) || len(verrs) != 2 {
		t.Fatalf("expected two field errors, got %v", err)
	}
}

func TestNormalizeTags(t *testing.T) {
	got := NormalizeTags([]string{" food ", "", "food", "weekly"})
	if len(got) != 2 || got[0] != "food" || got[1] != "weekly" {
		t.Fatalf("NormalizeTags() = %v", got)
	}
}

func TestDefaultCategoriesAreValid(t *testing.T) {
	seen := map[string]bool{}
	for _, c := range DefaultCategories() {
		if err := c.Validate(); err != nil {
			t.Errorf("default %q invalid: %v", c.Name, err)
		}
		key := c.Name + "/" + string(c.Type)
		if seen[key] {
			t.Errorf("duplicate default %s", key)
		}
		seen[key] = true
		if !c.IsDefault {
			t.Errorf("default %q not flagged", c.Name)
		}
	}
}
