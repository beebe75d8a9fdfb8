package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/storage"
)

const (
	// maxCatchUp bounds the occurrences generated for one record in one sweep.
	maxCatchUp = 1000

	generatedSuffix = " (auto-generated)"
	generatedTag    = "recurring"

	DefaultUpcomingDays = 30
	MaxUpcomingDays     = 365
	maxUpcoming         = 100
)

type recurringStore interface {
	storage.CategoryStore
	storage.RecurringStore
}

// Scope selects whose schedules a sweep covers.
type Scope struct {
	UserID int64
}

// AllUsers is the scope of the scheduled sweep.
var AllUsers = Scope{}

// ForUser limits a sweep to one user.
func ForUser(userID int64) Scope { return Scope{UserID: userID} }

// GenerationError is one record that could not be generated.
type GenerationError struct {
	RecurringID int64  `json:"recurringId"`
	Description string `json:"description"`
	Message     string `json:"message"`
}

// GenerationResult summarizes a sweep.
type GenerationResult struct {
	AsOf      core.Date         `json:"asOf"`
	Generated int               `json:"generated"`
	Errors    []GenerationError `json:"errors"`
}

type RecurringService struct {
	store  recurringStore
	events eventPublisher
	cal    calendar
}

func NewRecurringService(store recurringStore, events eventPublisher, cal calendar) *RecurringService {
	return &RecurringService{store: store, events: events, cal: cal}
}

func (s *RecurringService) List(ctx context.Context, userID int64, active *bool) ([]core.RecurringTransaction, error) {
	return s.store.ListRecurring(ctx, userID, active)
}

func (s *RecurringService) Get(ctx context.Context, userID, id int64) (core.RecurringTransaction, error) {
	return s.store.GetRecurring(ctx, userID, id)
}

// Create starts a schedule whose first occurrence is its start date.
func (s *RecurringService) Create(ctx context.Context, userID int64, in core.RecurringTransaction) (core.RecurringTransaction, error) {
	r := core.RecurringTransaction{
		UserID:      userID,
		CategoryID:  in.CategoryID,
		Type:        in.Type,
		Amount:      in.Amount,
		Description: strings.TrimSpace(in.Description),
		Frequency:   in.Frequency,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		NextDate:    in.StartDate,
		IsActive:    true,
	}
	if err := r.Validate(); err != nil {
		return core.RecurringTransaction{}, err
	}
	cat, err := requireCategory(ctx, s.store, userID, r.CategoryID, r.Type)
	if err != nil {
		return core.RecurringTransaction{}, err
	}
	if err := s.store.CreateRecurring(ctx, &r); err != nil {
		return core.RecurringTransaction{}, fmt.Errorf("create recurring transaction: %w", err)
	}
	r.Category = cat.Ref()
	return r, nil
}

// Update applies a partial change. A schedule whose next date is already
// past a (new) end date stops; explicitly reactivating one is refused.
func (s *RecurringService) Update(ctx context.Context, userID, id int64, patch core.RecurringPatch) (core.RecurringTransaction, error) {
	r, err := s.store.GetRecurring(ctx, userID, id)
	if err != nil {
		return core.RecurringTransaction{}, err
	}
	if err := patch.Apply(&r); err != nil {
		return core.RecurringTransaction{}, err
	}
	if err := r.Validate(); err != nil {
		return core.RecurringTransaction{}, err
	}
	if r.IsActive && r.EndDate != nil && r.NextDate.After(*r.EndDate) {
		if patch.IsActive.Present() && patch.IsActive.Value {
			return core.RecurringTransaction{}, core.NewDomainError(core.ErrInvalidDateRange,
				"cannot activate: next occurrence is after the end date")
		}
		r.IsActive = false
	}
	if patch.TouchesCategory() {
		cat, err := requireCategory(ctx, s.store, userID, r.CategoryID, r.Type)
		if err != nil {
			return core.RecurringTransaction{}, err
		}
		r.Category = cat.Ref()
	}
	if err := s.store.UpdateRecurring(ctx, &r); err != nil {
		return core.RecurringTransaction{}, fmt.Errorf("update recurring transaction: %w", err)
	}
	return r, nil
}

func (s *RecurringService) Delete(ctx context.Context, userID, id int64) error {
	return s.store.DeleteRecurring(ctx, userID, id)
}

// GenerateDue materializes every occurrence due on or before asOf. Each
// record is caught up independently; its failure is reported in the
// result and does not stop the others. Only a failing selection query
// fails the sweep.
func (s *RecurringService) GenerateDue(ctx context.Context, asOf core.Date, scope Scope) (GenerationResult, error) {
	result := GenerationResult{AsOf: asOf, Errors: []GenerationError{}}

	due, err := s.store.ListDueRecurring(ctx, asOf, scope.UserID)
	if err != nil {
		return result, fmt.Errorf("select due recurring transactions: %w", err)
	}

	for i := range due {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		rt := due[i]
		n, err := s.catchUp(ctx, &rt, asOf)
		result.Generated += n
		switch {
		case err == nil:
		case errors.Is(err, core.ErrConcurrentGeneration):
			slog.WarnContext(ctx, "Recurring transaction advanced by another sweep",
				"recurring_id", rt.ID)
		default:
			slog.ErrorContext(ctx, "Failed to generate recurring transaction",
				"recurring_id", rt.ID,
				"user_id", rt.UserID,
				"error", err)
			result.Errors = append(result.Errors, GenerationError{
				RecurringID: rt.ID,
				Description: rt.Description,
				Message:     err.Error(),
			})
		}
	}

	slog.InfoContext(ctx, "Recurring sweep complete",
		"as_of", asOf.String(),
		"user_id", scope.UserID,
		"due", len(due),
		"generated", result.Generated,
		"errors", len(result.Errors))
	return result, nil
}

// GenerateOne materializes the next occurrence now, whether or not it is
// due as of asOf.
func (s *RecurringService) GenerateOne(ctx context.Context, userID, id int64, asOf core.Date) (core.Transaction, error) {
	rt, err := s.store.GetRecurring(ctx, userID, id)
	if err != nil {
		return core.Transaction{}, err
	}
	if !rt.IsActive {
		return core.Transaction{}, core.ErrRecurringInactive
	}
	if rt.NextDate.After(asOf) {
		slog.InfoContext(ctx, "Generating recurring transaction ahead of schedule",
			"recurring_id", rt.ID,
			"next_date", rt.NextDate.String(),
			"as_of", asOf.String())
	}
	return s.generate(ctx, &rt)
}

// Upcoming projects the occurrences of active schedules between today and
// today+days, soonest first.
func (s *RecurringService) Upcoming(ctx context.Context, userID int64, days int) ([]core.UpcomingOccurrence, error) {
	if days <= 0 {
		days = DefaultUpcomingDays
	}
	if days > MaxUpcomingDays {
		days = MaxUpcomingDays
	}
	active := true
	schedules, err := s.store.ListRecurring(ctx, userID, &active)
	if err != nil {
		return nil, err
	}
	today := s.cal.today()
	until := today.AddDays(days)

	out := []core.UpcomingOccurrence{}
	for _, rt := range schedules {
		anchor := rt.StartDate.Day()
		next := rt.NextDate
		for i := 0; next.Before(today) && i < maxCatchUp; i++ {
			if next, err = core.AdvanceAnchored(next, rt.Frequency, anchor); err != nil {
				return nil, fmt.Errorf("recurring %d: %w", rt.ID, err)
			}
		}
		dates, err := core.Occurrences(next, rt.Frequency, anchor, until, rt.EndDate, maxUpcoming)
		if err != nil {
			return nil, fmt.Errorf("recurring %d: %w", rt.ID, err)
		}
		for _, d := range dates {
			out = append(out, core.UpcomingOccurrence{
				RecurringID: rt.ID,
				Date:        d,
				Description: rt.Description,
				Amount:      rt.Amount,
				Type:        rt.Type,
				Category:    rt.Category,
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].RecurringID < out[j].RecurringID
	})
	if len(out) > maxUpcoming {
		out = out[:maxUpcoming]
	}
	return out, nil
}

// catchUp generates occurrences of rt until its next date passes asOf or
// the schedule ends.
func (s *RecurringService) catchUp(ctx context.Context, rt *core.RecurringTransaction, asOf core.Date) (int, error) {
	n := 0
	for n < maxCatchUp {
		if _, err := s.generate(ctx, rt); err != nil {
			return n, err
		}
		n++
		if !rt.IsActive || rt.NextDate.After(asOf) {
			break
		}
	}
	return n, nil
}

// generate stores the occurrence at rt.NextDate and advances rt in place.
func (s *RecurringService) generate(ctx context.Context, rt *core.RecurringTransaction) (core.Transaction, error) {
	next, err := core.AdvanceAnchored(rt.NextDate, rt.Frequency, rt.StartDate.Day())
	if err != nil {
		return core.Transaction{}, err
	}

	advanced := *rt
	generatedOn := rt.NextDate
	advanced.LastGenerated = &generatedOn
	advanced.NextDate = next
	if advanced.EndDate != nil && next.After(*advanced.EndDate) {
		advanced.IsActive = false
	}

	g := &storage.Generation{
		Recurring:        advanced,
		ExpectedNextDate: rt.NextDate,
		Transaction: core.Transaction{
			UserID:      rt.UserID,
			CategoryID:  rt.CategoryID,
			Amount:      rt.Amount,
			Type:        rt.Type,
			Description: generatedDescription(rt.Description),
			Date:        rt.NextDate,
			Tags:        []string{generatedTag},
		},
	}
	if err := s.store.ApplyGeneration(ctx, g); err != nil {
		return core.Transaction{}, err
	}
	*rt = advanced

	tx := g.Transaction
	tx.Category = rt.Category
	slog.InfoContext(ctx, "Created transaction from recurring schedule",
		"recurring_id", rt.ID,
		"transaction_id", tx.ID,
		"date", tx.Date.String(),
		"amount_cents", tx.Amount.Cents,
		"frequency", rt.Frequency,
		"next_date", rt.NextDate.String(),
		"active", rt.IsActive)
	s.events.publish(ctx, amqp.TransactionCreated, tx)
	return tx, nil
}

// generatedDescription appends the marker suffix, shortening the original
// so the result still fits the description limit.
func generatedDescription(desc string) string {
	max := core.MaxDescriptionLength - utf8.RuneCountInString(generatedSuffix)
	if utf8.RuneCountInString(desc) > max {
		desc = string([]rune(desc)[:max])
	}
	return desc + generatedSuffix
}

// Today is the sweep date for request-triggered generation.
func (s *RecurringService) Today() core.Date {
	return s.cal.today()
}
