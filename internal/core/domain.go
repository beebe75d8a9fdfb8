package core

import (
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	Expense TransactionType = "expense"
	Income  TransactionType = "income"
)

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

const (
	PeriodMonthly BudgetPeriod = "monthly"
	PeriodYearly  BudgetPeriod = "yearly"
)

// Field limits shared by validation and the SQL schema.
const (
	MaxNameLength        = 50
	MaxDescriptionLength = 255
	MaxIconLength        = 50
	MaxTags              = 20
	MaxTagLength         = 30
	MinPasswordLength    = 8
)

type (
	TransactionType string
	Frequency       string
	BudgetPeriod    string

	User struct {
		ID           int64     `json:"id"`
		Email        string    `json:"email"`
		PasswordHash string    `json:"-"`
		FirstName    string    `json:"firstName"`
		LastName     string    `json:"lastName"`
		Currency     string    `json:"currency"`
		CreatedAt    time.Time `json:"createdAt"`
		UpdatedAt    time.Time `json:"updatedAt"`
	}

	Category struct {
		ID        int64           `json:"id"`
		UserID    int64           `json:"userId"`
		Name      string          `json:"name"`
		Type      TransactionType `json:"type"`
		Color     string          `json:"color"`
		Icon      string          `json:"icon"`
		IsDefault bool            `json:"isDefault"`
		CreatedAt time.Time       `json:"createdAt"`
		UpdatedAt time.Time       `json:"updatedAt"`
	}

	// CategoryRef is the category summary embedded in other resources.
	CategoryRef struct {
		ID    int64  `json:"id"`
		Name  string `json:"name"`
		Color string `json:"color"`
		Icon  string `json:"icon"`
	}

	Transaction struct {
		ID          int64           `json:"id"`
		UserID      int64           `json:"userId"`
		CategoryID  int64           `json:"categoryId"`
		Amount      Money           `json:"amount"`
		Type        TransactionType `json:"type"`
		Description string          `json:"description"`
		Date        Date            `json:"date"`
		Tags        []string        `json:"tags"`
		Category    *CategoryRef    `json:"category,omitempty"`
		CreatedAt   time.Time       `json:"createdAt"`
		UpdatedAt   time.Time       `json:"updatedAt"`
	}

	Budget struct {
		ID         int64        `json:"id"`
		UserID     int64        `json:"userId"`
		CategoryID int64        `json:"categoryId"`
		Amount     Money        `json:"amount"`
		Period     BudgetPeriod `json:"period"`
		StartDate  Date         `json:"startDate"`
		Category   *CategoryRef `json:"category,omitempty"`
		CreatedAt  time.Time    `json:"createdAt"`
		UpdatedAt  time.Time    `json:"updatedAt"`
	}

	RecurringTransaction struct {
		ID            int64           `json:"id"`
		UserID        int64           `json:"userId"`
		CategoryID    int64           `json:"categoryId"`
		Type          TransactionType `json:"type"`
		Amount        Money           `json:"amount"`
		Description   string          `json:"description"`
		Frequency     Frequency       `json:"frequency"`
		StartDate     Date            `json:"startDate"`
		EndDate       *Date           `json:"endDate"`
		NextDate      Date            `json:"nextDate"`
		IsActive      bool            `json:"isActive"`
		LastGenerated *Date           `json:"lastGenerated"`
		Category      *CategoryRef    `json:"category,omitempty"`
		CreatedAt     time.Time       `json:"createdAt"`
		UpdatedAt     time.Time       `json:"updatedAt"`
	}
)

var hexColor = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

func (t TransactionType) Valid() bool { return t == Expense || t == Income }

func (f Frequency) Valid() bool {
	switch f {
	case Daily, Weekly, Monthly, Yearly:
		return true
	default:
		return false
	}
}

func (p BudgetPeriod) Valid() bool { return p == PeriodMonthly || p == PeriodYearly }

// Window returns the calendar period containing d.
func (p BudgetPeriod) Window(d Date) (Date, Date) {
	if p == PeriodYearly {
		return d.StartOfYear(), d.EndOfYear()
	}
	return d.StartOfMonth(), d.EndOfMonth()
}

// FullName joins first and last name.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func (u User) Validate() error {
	var errs ValidationErrors
	if _, err := mail.ParseAddress(u.Email); err != nil || !strings.Contains(u.Email, "@") {
		errs.Add("email", "must be a valid email address")
	}
	checkName(&errs, "firstName", u.FirstName, true)
	checkName(&errs, "lastName", u.LastName, true)
	if _, ok := LookupCurrency(u.Currency); !ok {
		errs.Add("currency", ErrUnsupportedCurrency.Error())
	}
	return errs.Err()
}

func (c Category) Validate() error {
	var errs ValidationErrors
	checkName(&errs, "name", c.Name, true)
	if !c.Type.Valid() {
		errs.Add("type", "must be one of expense, income")
	}
	if !hexColor.MatchString(c.Color) {
		errs.Add("color", "must be a hex color like #1A2B3C")
	}
	if utf8.RuneCountInString(c.Icon) > MaxIconLength {
		errs.Add("icon", "too long")
	}
	return errs.Err()
}

// Ref returns the embedded summary of c.
func (c Category) Ref() *CategoryRef {
	return &CategoryRef{ID: c.ID, Name: c.Name, Color: c.Color, Icon: c.Icon}
}

func (t Transaction) Validate() error {
	var errs ValidationErrors
	if t.CategoryID <= 0 {
		errs.Add("categoryId", "is required")
	}
	checkAmount(&errs, t.Amount)
	if !t.Type.Valid() {
		errs.Add("type", "must be one of expense, income")
	}
	if err := t.Date.Validate(); err != nil {
		errs.Add("date", err.Error())
	}
	if utf8.RuneCountInString(t.Description) > MaxDescriptionLength {
		errs.Add("description", "too long (max 255 characters)")
	}
	if len(t.Tags) > MaxTags {
		errs.Add("tags", "too many tags (max 20)")
	}
	for _, tag := range t.Tags {
		if utf8.RuneCountInString(tag) > MaxTagLength {
			errs.Add("tags", "tag too long (max 30 characters)")
			break
		}
	}
	return errs.Err()
}

func (b Budget) Validate() error {
	var errs ValidationErrors
	if b.CategoryID <= 0 {
		errs.Add("categoryId", "is required")
	}
	checkAmount(&errs, b.Amount)
	if !b.Period.Valid() {
		errs.Add("period", "must be one of monthly, yearly")
	}
	if err := b.StartDate.Validate(); err != nil {
		errs.Add("startDate", err.Error())
	}
	return errs.Err()
}

func (r RecurringTransaction) Validate() error {
	var errs ValidationErrors
	if r.CategoryID <= 0 {
		errs.Add("categoryId", "is required")
	}
	checkAmount(&errs, r.Amount)
	if !r.Type.Valid() {
		errs.Add("type", "must be one of expense, income")
	}
	if !r.Frequency.Valid() {
		errs.Add("frequency", "must be one of daily, weekly, monthly, yearly")
	}
	if strings.TrimSpace(r.Description) == "" {
		errs.Add("description", "is required")
	} else if utf8.RuneCountInString(r.Description) > MaxDescriptionLength {
		errs.Add("description", "too long (max 255 characters)")
	}
	if err := r.StartDate.Validate(); err != nil {
		errs.Add("startDate", err.Error())
	}
	if r.EndDate != nil {
		if err := r.EndDate.Validate(); err != nil {
			errs.Add("endDate", err.Error())
		} else if r.EndDate.Before(r.StartDate) {
			errs.Add("endDate", ErrInvalidDateRange.Error())
		}
	}
	return errs.Err()
}

// NormalizeTags trims, drops empty entries and de-duplicates while
// preserving order.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func checkName(errs *ValidationErrors, field, value string, required bool) {
	value = strings.TrimSpace(value)
	switch {
	case required && value == "":
		errs.Add(field, "is required")
	case utf8.RuneCountInString(value) > MaxNameLength:
		errs.Add(field, "too long (max 50 characters)")
	}
}

func checkAmount(errs *ValidationErrors, m Money) {
	if err := m.Validate(); err != nil {
		if err == ErrAmountTooLarge {
			errs.Add("amount", "must be at most 999999999.99")
			return
		}
		errs.Add("amount", "must be greater than 0")
	}
}
