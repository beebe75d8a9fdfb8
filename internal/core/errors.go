package core

import (
	"errors"
	"strings"
)

// Sentinel errors. Their text is safe to show to API clients.
var (
	ErrNotFound             = errors.New("resource not found")
	ErrDuplicate            = errors.New("resource already exists")
	ErrCategoryTypeMismatch = errors.New("category type does not match transaction type")
	ErrCategoryInUse        = errors.New("category is used by existing transactions")
	ErrDefaultCategory      = errors.New("default categories cannot be modified or deleted")
	ErrBudgetCategoryType   = errors.New("budgets can only be set on expense categories")
	ErrRecurringInactive    = errors.New("recurring transaction is inactive")
	ErrConcurrentGeneration = errors.New("recurring transaction was advanced concurrently")
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrInvalidToken         = errors.New("invalid or expired token")
	ErrInvalidFrequency     = errors.New("invalid frequency")
	ErrInvalidType          = errors.New("invalid transaction type")
	ErrInvalidPeriod        = errors.New("invalid budget period")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrAmountTooLarge       = errors.New("amount too large")
	ErrInvalidDate          = errors.New("invalid date")
	ErrInvalidDateRange     = errors.New("end date must not be before start date")
	ErrUnsupportedCurrency  = errors.New("unsupported currency")
)

// DomainError attaches a specific client-facing message to a sentinel kind,
// so callers can still match with errors.Is.
type DomainError struct {
	Kind    error
	Message string
}

func (e *DomainError) Error() string { return e.Message }

func (e *DomainError) Unwrap() error { return e.Kind }

// NewDomainError returns an error matching kind whose text is msg.
func NewDomainError(kind error, msg string) error {
	return &DomainError{Kind: kind, Message: msg}
}

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors collects every invalid field of a request.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, fe := range v {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records a problem with field.
func (v *ValidationErrors) Add(field, message string) {
	*v = append(*v, FieldError{Field: field, Message: message})
}

// Err returns nil when nothing was recorded.
func (v ValidationErrors) Err() error {
	if len(v) == 0 {
		return nil
	}
	return v
}
