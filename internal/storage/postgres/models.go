package postgres

import (
	"time"

	"fintrack/internal/core"
)

// User model
type User struct {
	ID           int64  `gorm:"primaryKey"`
	Email        string `gorm:"size:255;not null;uniqueIndex"`
	PasswordHash string `gorm:"size:255;not null"`
	FirstName    string `gorm:"size:50;not null"`
	LastName     string `gorm:"size:50;not null"`
	Currency     string `gorm:"size:3;not null;default:USD"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Category struct {
	ID        int64  `gorm:"primaryKey"`
	UserID    int64  `gorm:"not null;uniqueIndex:idx_categories_user_name_type"`
	User      User   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE;"`
	Name      string `gorm:"size:50;not null;uniqueIndex:idx_categories_user_name_type"`
	Type      string `gorm:"size:10;not null;uniqueIndex:idx_categories_user_name_type;check:chk_categories_type,type IN ('expense','income')"`
	Color     string `gorm:"size:7;not null"`
	Icon      string `gorm:"size:50;not null;default:''"`
	IsDefault bool   `gorm:"not null;default:false"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Transaction references its category without an ON DELETE action, so a
// category delete fails while transactions still point at it.
type Transaction struct {
	ID          int64     `gorm:"primaryKey"`
	UserID      int64     `gorm:"not null;index:idx_transactions_user_date"`
	User        User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE;"`
	CategoryID  int64     `gorm:"not null;index"`
	Category    Category  `gorm:"foreignKey:CategoryID"`
	AmountCents int64     `gorm:"not null;check:chk_transactions_amount,amount_cents > 0"`
	Type        string    `gorm:"size:10;not null;check:chk_transactions_type,type IN ('expense','income')"`
	Description string    `gorm:"size:255;not null;default:''"`
	Date        time.Time `gorm:"type:date;not null;index:idx_transactions_user_date"`
	Tags        []string  `gorm:"type:jsonb;serializer:json;not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Budget struct {
	ID          int64     `gorm:"primaryKey"`
	UserID      int64     `gorm:"not null;uniqueIndex:idx_budgets_user_category_period"`
	User        User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE;"`
	CategoryID  int64     `gorm:"not null;uniqueIndex:idx_budgets_user_category_period"`
	Category    Category  `gorm:"foreignKey:CategoryID;constraint:OnDelete:CASCADE;"`
	AmountCents int64     `gorm:"not null;check:chk_budgets_amount,amount_cents > 0"`
	Period      string    `gorm:"size:10;not null;uniqueIndex:idx_budgets_user_category_period;check:chk_budgets_period,period IN ('monthly','yearly')"`
	StartDate   time.Time `gorm:"type:date;not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type RecurringTransaction struct {
	ID            int64      `gorm:"primaryKey"`
	UserID        int64      `gorm:"not null;index"`
	User          User       `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE;"`
	CategoryID    int64      `gorm:"not null"`
	Category      Category   `gorm:"foreignKey:CategoryID;constraint:OnDelete:CASCADE;"`
	Type          string     `gorm:"size:10;not null;check:chk_recurring_type,type IN ('expense','income')"`
	AmountCents   int64      `gorm:"not null;check:chk_recurring_amount,amount_cents > 0"`
	Description   string     `gorm:"size:255;not null"`
	Frequency     string     `gorm:"size:10;not null;check:chk_recurring_frequency,frequency IN ('daily','weekly','monthly','yearly')"`
	StartDate     time.Time  `gorm:"type:date;not null"`
	EndDate       *time.Time `gorm:"type:date"`
	NextDate      time.Time  `gorm:"type:date;not null;index:idx_recurring_due"`
	IsActive      bool       `gorm:"not null;default:true;index:idx_recurring_due"`
	LastGenerated *time.Time `gorm:"type:date"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func dateTime(d *core.Date) *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time
	return &t
}

func coreDate(t *time.Time) *core.Date {
	if t == nil {
		return nil
	}
	d := core.DateOf(*t)
	return &d
}

func (m User) toCore() core.User {
	return core.User{
		ID:           m.ID,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		FirstName:    m.FirstName,
		LastName:     m.LastName,
		Currency:     m.Currency,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func (m Category) toCore() core.Category {
	return core.Category{
		ID:        m.ID,
		UserID:    m.UserID,
		Name:      m.Name,
		Type:      core.TransactionType(m.Type),
		Color:     m.Color,
		Icon:      m.Icon,
		IsDefault: m.IsDefault,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func transactionModel(t core.Transaction) Transaction {
	tags := t.Tags
	if tags == nil {
		tags = []string{}
	}
	return Transaction{
		ID:          t.ID,
		UserID:      t.UserID,
		CategoryID:  t.CategoryID,
		AmountCents: t.Amount.Cents,
		Type:        string(t.Type),
		Description: t.Description,
		Date:        t.Date.Time,
		Tags:        tags,
	}
}

func (m Transaction) toCore() core.Transaction {
	t := core.Transaction{
		ID:          m.ID,
		UserID:      m.UserID,
		CategoryID:  m.CategoryID,
		Amount:      core.Money{Cents: m.AmountCents},
		Type:        core.TransactionType(m.Type),
		Description: m.Description,
		Date:        core.DateOf(m.Date),
		Tags:        m.Tags,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}
	if m.Category.ID != 0 {
		t.Category = m.Category.toCore().Ref()
	}
	return t
}

func (m Budget) toCore() core.Budget {
	b := core.Budget{
		ID:         m.ID,
		UserID:     m.UserID,
		CategoryID: m.CategoryID,
		Amount:     core.Money{Cents: m.AmountCents},
		Period:     core.BudgetPeriod(m.Period),
		StartDate:  core.DateOf(m.StartDate),
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
	if m.Category.ID != 0 {
		b.Category = m.Category.toCore().Ref()
	}
	return b
}

func recurringModel(r core.RecurringTransaction) RecurringTransaction {
	return RecurringTransaction{
		ID:            r.ID,
		UserID:        r.UserID,
		CategoryID:    r.CategoryID,
		Type:          string(r.Type),
		AmountCents:   r.Amount.Cents,
		Description:   r.Description,
		Frequency:     string(r.Frequency),
		StartDate:     r.StartDate.Time,
		EndDate:       dateTime(r.EndDate),
		NextDate:      r.NextDate.Time,
		IsActive:      r.IsActive,
		LastGenerated: dateTime(r.LastGenerated),
	}
}

func (m RecurringTransaction) toCore() core.RecurringTransaction {
	r := core.RecurringTransaction{
		ID:            m.ID,
		UserID:        m.UserID,
		CategoryID:    m.CategoryID,
		Type:          core.TransactionType(m.Type),
		Amount:        core.Money{Cents: m.AmountCents},
		Description:   m.Description,
		Frequency:     core.Frequency(m.Frequency),
		StartDate:     core.DateOf(m.StartDate),
		EndDate:       coreDate(m.EndDate),
		NextDate:      core.DateOf(m.NextDate),
		IsActive:      m.IsActive,
		LastGenerated: coreDate(m.LastGenerated),
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
	if m.Category.ID != 0 {
		r.Category = m.Category.toCore().Ref()
	}
	return r
}
