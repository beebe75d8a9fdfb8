package core

import (
	"encoding/json"
	"strings"
)

// Optional is a field of a partial update. Set is false when the field was
// absent from the request; Null is true when it was sent as JSON null.
type Optional[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// Some returns a present, non-null Optional.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: v}
}

// Present reports whether the field carries a value.
func (o Optional[T]) Present() bool { return o.Set && !o.Null }

func (o *Optional[T]) UnmarshalJSON(b []byte) error {
	o.Set = true
	if string(b) == "null" {
		o.Null = true
		var zero T
		o.Value = zero
		return nil
	}
	o.Null = false
	return json.Unmarshal(b, &o.Value)
}

type CategoryPatch struct {
	Name  Optional[string] `json:"name"`
	Color Optional[string] `json:"color"`
	Icon  Optional[string] `json:"icon"`
}

// Apply copies present fields onto c.
func (p CategoryPatch) Apply(c *Category) error {
	var errs ValidationErrors
	notNull(&errs, "name", p.Name.Null)
	notNull(&errs, "color", p.Color.Null)
	if err := errs.Err(); err != nil {
		return err
	}
	if p.Name.Present() {
		c.Name = strings.TrimSpace(p.Name.Value)
	}
	if p.Color.Present() {
		c.Color = p.Color.Value
	}
	if p.Icon.Set {
		c.Icon = p.Icon.Value
	}
	return nil
}

type TransactionPatch struct {
	CategoryID  Optional[int64]           `json:"categoryId"`
	Amount      Optional[Money]           `json:"amount"`
	Type        Optional[TransactionType] `json:"type"`
	Description Optional[string]          `json:"description"`
	Date        Optional[Date]            `json:"date"`
	Tags        Optional[[]string]        `json:"tags"`
}

// TouchesCategory reports whether the patch can break the category/type
// invariant and therefore needs the category re-checked.
func (p TransactionPatch) TouchesCategory() bool {
	return p.CategoryID.Set || p.Type.Set
}

// Apply copies present fields onto t. Description and tags may be cleared
// with null; the other fields may not.
func (p TransactionPatch) Apply(t *Transaction) error {
	var errs ValidationErrors
	notNull(&errs, "categoryId", p.CategoryID.Null)
	notNull(&errs, "amount", p.Amount.Null)
	notNull(&errs, "type", p.Type.Null)
	notNull(&errs, "date", p.Date.Null)
	if err := errs.Err(); err != nil {
		return err
	}
	if p.CategoryID.Present() {
		t.CategoryID = p.CategoryID.Value
	}
	if p.Amount.Present() {
		t.Amount = p.Amount.Value
	}
	if p.Type.Present() {
		t.Type = p.Type.Value
	}
	if p.Description.Set {
		t.Description = strings.TrimSpace(p.Description.Value)
	}
	if p.Date.Present() {
		t.Date = p.Date.Value
	}
	if p.Tags.Set {
		t.Tags = NormalizeTags(p.Tags.Value)
	}
	return nil
}

type BudgetPatch struct {
	Amount    Optional[Money]        `json:"amount"`
	Period    Optional[BudgetPeriod] `json:"period"`
	StartDate Optional[Date]         `json:"startDate"`
}

func (p BudgetPatch) Apply(b *Budget) error {
	var errs ValidationErrors
	notNull(&errs, "amount", p.Amount.Null)
	notNull(&errs, "period", p.Period.Null)
	notNull(&errs, "startDate", p.StartDate.Null)
	if err := errs.Err(); err != nil {
		return err
	}
	if p.Amount.Present() {
		b.Amount = p.Amount.Value
	}
	if p.Period.Present() {
		b.Period = p.Period.Value
	}
	if p.StartDate.Present() {
		b.StartDate = p.StartDate.Value
	}
	return nil
}

type RecurringPatch struct {
	CategoryID  Optional[int64]           `json:"categoryId"`
	Type        Optional[TransactionType] `json:"type"`
	Amount      Optional[Money]           `json:"amount"`
	Description Optional[string]          `json:"description"`
	Frequency   Optional[Frequency]       `json:"frequency"`
	StartDate   Optional[Date]            `json:"startDate"`
	EndDate     Optional[Date]            `json:"endDate"`
	IsActive    Optional[bool]            `json:"isActive"`
}

func (p RecurringPatch) TouchesCategory() bool {
	return p.CategoryID.Set || p.Type.Set
}

// Apply copies present fields onto r. A new start date restarts the
// schedule from it; endDate null removes the end of the schedule.
func (p RecurringPatch) Apply(r *RecurringTransaction) error {
	var errs ValidationErrors
	notNull(&errs, "categoryId", p.CategoryID.Null)
	notNull(&errs, "type", p.Type.Null)
	notNull(&errs, "amount", p.Amount.Null)
	notNull(&errs, "description", p.Description.Null)
	notNull(&errs, "frequency", p.Frequency.Null)
	notNull(&errs, "startDate", p.StartDate.Null)
	notNull(&errs, "isActive", p.IsActive.Null)
	if err := errs.Err(); err != nil {
		return err
	}
	if p.CategoryID.Present() {
		r.CategoryID = p.CategoryID.Value
	}
	if p.Type.Present() {
		r.Type = p.Type.Value
	}
	if p.Amount.Present() {
		r.Amount = p.Amount.Value
	}
	if p.Description.Present() {
		r.Description = strings.TrimSpace(p.Description.Value)
	}
	if p.Frequency.Present() {
		r.Frequency = p.Frequency.Value
	}
	if p.StartDate.Present() {
		r.StartDate = p.StartDate.Value
		r.NextDate = p.StartDate.Value
	}
	if p.EndDate.Null {
		r.EndDate = nil
	} else if p.EndDate.Present() {
		end := p.EndDate.Value
		r.EndDate = &end
	}
	if p.IsActive.Present() {
		r.IsActive = p.IsActive.Value
	}
	return nil
}

type ProfilePatch struct {
	Email     Optional[string] `json:"email"`
	FirstName Optional[string] `json:"firstName"`
	LastName  Optional[string] `json:"lastName"`
	Currency  Optional[string] `json:"currency"`
}

func (p ProfilePatch) Apply(u *User) error {
	var errs ValidationErrors
	notNull(&errs, "email", p.Email.Null)
	notNull(&errs, "firstName", p.FirstName.Null)
	notNull(&errs, "lastName", p.LastName.Null)
	notNull(&errs, "currency", p.Currency.Null)
	if err := errs.Err(); err != nil {
		return err
	}
	if p.Email.Present() {
		u.Email = NormalizeEmail(p.Email.Value)
	}
	if p.FirstName.Present() {
		u.FirstName = strings.TrimSpace(p.FirstName.Value)
	}
	if p.LastName.Present() {
		u.LastName = strings.TrimSpace(p.LastName.Value)
	}
	if p.Currency.Present() {
		u.Currency = strings.ToUpper(strings.TrimSpace(p.Currency.Value))
	}
	return nil
}

func notNull(errs *ValidationErrors, field string, isNull bool) {
	if isNull {
		errs.Add(field, "cannot be null")
	}
}
