// Package recurrence implements the scheduling logic for recurring
// payments: next-occurrence date calculation, due-payment selection, and
// batch execution with an append-only audit record.
//
// Next-occurrence calculation follows the Strategy pattern: each interval
// type has its own Advancer encapsulating the date arithmetic for that
// frequency.
package recurrence

import (
	"fmt"
	"time"

	"ricorrenze/internal/core"
)

// Anchor optionally pins an occurrence to a day of the month (monthly
// intervals) or a day of the week (weekly intervals). Use NoAnchor,
// MonthDay or WeekDay to construct one; the zero value is not meaningful.
type Anchor struct {
	dayOfMonth int
	dayOfWeek  int
}

// NoAnchor is an anchor with neither day pinned.
var NoAnchor = Anchor{dayOfMonth: core.NoDayOfMonth, dayOfWeek: core.NoDayOfWeek}

// MonthDay returns an anchor pinned to a day of the month (1-31).
func MonthDay(day int) Anchor {
	return Anchor{dayOfMonth: day, dayOfWeek: core.NoDayOfWeek}
}

// WeekDay returns an anchor pinned to a weekday (0=Sunday..6=Saturday).
func WeekDay(day int) Anchor {
	return Anchor{dayOfMonth: core.NoDayOfMonth, dayOfWeek: day}
}

// AnchorOf extracts the anchor carried by a payment definition.
func AnchorOf(p core.RecurringPayment) Anchor {
	return Anchor{dayOfMonth: p.DayOfMonth, dayOfWeek: p.DayOfWeek}
}

// HasMonthDay reports whether a day of the month is pinned.
func (a Anchor) HasMonthDay() bool { return a.dayOfMonth != core.NoDayOfMonth }

// HasWeekDay reports whether a weekday is pinned.
func (a Anchor) HasWeekDay() bool { return a.dayOfWeek != core.NoDayOfWeek }

// Advancer is the strategy interface for computing the next occurrence of
// a recurring payment. Next must return a date strictly after from.
type Advancer interface {
	Next(from time.Time, anchor Anchor) time.Time
}

// DailyAdvancer advances by exactly one day.
type DailyAdvancer struct{}

func (DailyAdvancer) Next(from time.Time, _ Anchor) time.Time {
	return from.AddDate(0, 0, 1)
}

// WeeklyAdvancer advances to the next occurrence of the anchored weekday,
// or by exactly seven days when no weekday is pinned. When from already
// falls on the anchored weekday it advances a full week, never zero days.
type WeeklyAdvancer struct{}

func (WeeklyAdvancer) Next(from time.Time, anchor Anchor) time.Time {
	if !anchor.HasWeekDay() {
		return from.AddDate(0, 0, 7)
	}
	delta := (anchor.dayOfWeek - int(from.Weekday()) + 7) % 7
	if delta == 0 {
		delta = 7
	}
	return from.AddDate(0, 0, delta)
}

// MonthlyAdvancer advances to the anchored day in the next calendar month,
// or to the same day one month later when no day is pinned. Days past the
// end of the target month clamp to its last day (Jan 31 -> Feb 28/29);
// the year rolls over at December.
type MonthlyAdvancer struct{}

func (MonthlyAdvancer) Next(from time.Time, anchor Anchor) time.Time {
	day := from.Day()
	if anchor.HasMonthDay() {
		day = anchor.dayOfMonth
	}
	year, month := from.Year(), int(from.Month())+1
	if month > 12 {
		month = 1
		year++
	}
	return clampedDate(year, month, day, from)
}

// YearlyAdvancer advances to the same month and day one year later.
// Feb 29 clamps to Feb 28 in non-leap years.
type YearlyAdvancer struct{}

func (YearlyAdvancer) Next(from time.Time, _ Anchor) time.Time {
	return clampedDate(from.Year()+1, int(from.Month()), from.Day(), from)
}

// clampedDate builds a date in the given month, clamping the day to the
// month's last valid day instead of overflowing into the next month.
// Time-of-day and location are taken from ref.
func clampedDate(year, month, day int, ref time.Time) time.Time {
	lastDay := time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, ref.Location()).Day()
	if day > lastDay {
		day = lastDay
	}
	h, m, s := ref.Clock()
	return time.Date(year, time.Month(month), day, h, m, s, ref.Nanosecond(), ref.Location())
}

// advancers maps interval types to their strategies.
var advancers = map[core.Interval]Advancer{
	core.Daily:   DailyAdvancer{},
	core.Weekly:  WeeklyAdvancer{},
	core.Monthly: MonthlyAdvancer{},
	core.Yearly:  YearlyAdvancer{},
}

// AdvancerFor returns the strategy for an interval type, or an error when
// the interval is not recognized.
func AdvancerFor(every core.Interval) (Advancer, error) {
	adv, ok := advancers[every]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidInterval, every)
	}
	return adv, nil
}

// NextOccurrence computes the next occurrence strictly after from for the
// given interval and anchor. It is pure and touches no persisted state.
//
// An unrecognized interval returns from unchanged together with a non-nil
// error: callers that ignore the error get the defensive no-advance
// fallback, while the batch runner records it as a per-payment failure so
// a data-entry bug cannot silently stall a series.
func NextOccurrence(from time.Time, every core.Interval, anchor Anchor) (time.Time, error) {
	adv, err := AdvancerFor(every)
	if err != nil {
		return from, err
	}
	return adv.Next(from, anchor), nil
}
