package core

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestOptionalDistinguishesAbsentAndNull(t *testing.T) {
	var p RecurringPatch
	if err := json.Unmarshal([]byte(`{"endDate": null, "amount": "12.50"}`), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !p.EndDate.Set || !p.EndDate.Null {
		t.Errorf("endDate should be set to null: %+v", p.EndDate)
	}
	if !p.Amount.Present() || p.Amount.Value.Cents != 1250 {
		t.Errorf("amount = %+v", p.Amount)
	}
	if p.Description.Set {
		t.Errorf("description should be absent")
	}
}

func TestRecurringPatchApply(t *testing.T) {
	end := NewDate(2024, 12, 31)
	r := RecurringTransaction{
		Description: "Gym",
		StartDate:   NewDate(2024, 1, 1),
		NextDate:    NewDate(2024, 5, 1),
		EndDate:     &end,
		IsActive:    true,
	}

	var clear RecurringPatch
	if err := json.Unmarshal([]byte(`{"endDate": null}`), &clear); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := clear.Apply(&r); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if r.EndDate != nil {
		t.Errorf("endDate not cleared")
	}
	if r.Description != "Gym" {
		t.Errorf("absent description changed to %q", r.Description)
	}

	restart := RecurringPatch{StartDate: Some(NewDate(2024, 6, 15))}
	if err := restart.Apply(&r); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !r.NextDate.Equal(NewDate(2024, 6, 15)) {
		t.Errorf("nextDate = %s, want restart at new start date", r.NextDate)
	}

	var nullAmount RecurringPatch
	_ = json.Unmarshal([]byte(`{"amount": null}`), &nullAmount)
	var verrs ValidationErrors
	if err := nullAmount.Apply(&r); !errors.As(err, &verrs) {
		t.Errorf("expected validation error for null amount, got %v", err)
	}
}

func TestTransactionPatchApply(t *testing.T) {
	tx := Transaction{CategoryID: 1, Type: Expense, Description: "lunch", Tags: []string{"food"}}
	var p TransactionPatch
	if err := json.Unmarshal([]byte(`{"description": null, "tags": ["a", " a ", "b"]}`), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.TouchesCategory() {
		t.Errorf("patch without category/type should not touch category")
	}
	if err := p.Apply(&tx); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if tx.Description != "" || len(tx.Tags) != 2 {
		t.Errorf("unexpected result %+v", tx)
	}
	if !(TransactionPatch{Type: Some(Income)}).TouchesCategory() {
		t.Errorf("type change must re-check category")
	}
}
