// This file implements the Strategy Pattern for advancing recurring
// transactions. Each frequency has its own Advancer that computes the next
// occurrence of a schedule.

package core

import (
	"fmt"
	"time"
)

// Advancer computes the occurrence that follows d. anchorDay is the
// day-of-month the schedule was started on; monthly and yearly schedules aim
// for it and clamp to the month's last day when it does not exist.
type Advancer interface {
	Advance(d Date, anchorDay int) Date
}

// DailyAdvancer moves one day forward.
type DailyAdvancer struct{}

func (DailyAdvancer) Advance(d Date, _ int) Date { return d.AddDays(1) }

// WeeklyAdvancer moves seven days forward.
type WeeklyAdvancer struct{}

func (WeeklyAdvancer) Advance(d Date, _ int) Date { return d.AddDays(7) }

// MonthlyAdvancer moves to the anchor day of the following month.
type MonthlyAdvancer struct{}

func (MonthlyAdvancer) Advance(d Date, anchorDay int) Date { return addMonthsClamped(d, 1, anchorDay) }

// YearlyAdvancer moves to the anchor day of the same month next year.
type YearlyAdvancer struct{}

func (YearlyAdvancer) Advance(d Date, anchorDay int) Date { return addMonthsClamped(d, 12, anchorDay) }

var advancers = map[Frequency]Advancer{
	Daily:   DailyAdvancer{},
	Weekly:  WeeklyAdvancer{},
	Monthly: MonthlyAdvancer{},
	Yearly:  YearlyAdvancer{},
}

// AdvancerFor returns the strategy for f.
func AdvancerFor(f Frequency) (Advancer, error) {
	a, ok := advancers[f]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFrequency, f)
	}
	return a, nil
}

// NextOccurrence advances d by one unit of f. Month overflow clamps to the
// last day of the target month, so 2024-01-31 monthly is 2024-02-29.
func NextOccurrence(d Date, f Frequency) (Date, error) {
	return AdvanceAnchored(d, f, d.Day())
}

// AdvanceAnchored is NextOccurrence for a schedule anchored on anchorDay.
// The result is always strictly after d.
func AdvanceAnchored(d Date, f Frequency, anchorDay int) (Date, error) {
	a, err := AdvancerFor(f)
	if err != nil {
		return Date{}, err
	}
	return a.Advance(d, anchorDay), nil
}

// Occurrences lists up to limit occurrences of a schedule starting at next,
// stopping after until or after end when end is set.
func Occurrences(next Date, f Frequency, anchorDay int, until Date, end *Date, limit int) ([]Date, error) {
	var out []Date
	for d := next; !d.After(until) && len(out) < limit; {
		if end != nil && d.After(*end) {
			break
		}
		out = append(out, d)
		advanced, err := AdvanceAnchored(d, f, anchorDay)
		if err != nil {
			return nil, err
		}
		d = advanced
	}
	return out, nil
}

func addMonthsClamped(d Date, months, anchorDay int) Date {
	first := time.Date(d.Year(), d.Time.Month()+time.Month(months), 1, 0, 0, 0, 0, time.UTC)
	day := anchorDay
	if day < 1 {
		day = d.Day()
	}
	if last := DaysIn(first.Year(), first.Month()); day > last {
		day = last
	}
	return Date{Time: time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)}
}
