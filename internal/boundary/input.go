// Package boundary validates raw recurring-payment input and converts it
// into a typed core.RecurringPayment. Nothing past this package ever sees
// an unvalidated definition.
package boundary

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"ricorrenze/internal/core"
	"ricorrenze/internal/recurrence"
)

// DefinitionInput is the raw shape accepted from callers (CLI flags, API
// payloads). Amounts and dates arrive as strings so they can be validated
// and parsed in one place.
type DefinitionInput struct {
	OwnerID    int64  `validate:"required,gt=0"`
	Name       string `validate:"required,max=200"`
	Amount     string `validate:"required"`
	Category   string `validate:"required"`
	Every      string `validate:"required,oneof=daily weekly monthly yearly"`
	DayOfMonth int    `validate:"omitempty,min=1,max=31"`
	DayOfWeek  *int   `validate:"omitempty,min=0,max=6"`
	StartDate  string `validate:"required,datetime=2006-01-02"`
	EndDate    string `validate:"omitempty,datetime=2006-01-02"`
}

var (
	ErrAnchorMismatch = errors.New("day anchor does not match repetition interval")

	validate = validator.New()
)

// Payment validates the input and returns the typed payment definition
// with its first occurrence seeded on or after the start date.
func (in DefinitionInput) Payment() (core.RecurringPayment, error) {
	if err := validate.Struct(in); err != nil {
		return core.RecurringPayment{}, fmt.Errorf("validate definition: %w", err)
	}

	every := core.Interval(in.Every)
	if in.DayOfMonth != 0 && every != core.Monthly {
		return core.RecurringPayment{}, fmt.Errorf("%w: day of month requires a monthly interval", ErrAnchorMismatch)
	}
	if in.DayOfWeek != nil && every != core.Weekly {
		return core.RecurringPayment{}, fmt.Errorf("%w: day of week requires a weekly interval", ErrAnchorMismatch)
	}

	cents, err := core.ParseDecimalToCents(in.Amount)
	if err != nil {
		return core.RecurringPayment{}, fmt.Errorf("parse amount %q: %w", in.Amount, err)
	}

	start, err := time.Parse("2006-01-02", in.StartDate)
	if err != nil {
		return core.RecurringPayment{}, fmt.Errorf("parse start date: %w", err)
	}

	var end core.Date
	if in.EndDate != "" {
		t, err := time.Parse("2006-01-02", in.EndDate)
		if err != nil {
			return core.RecurringPayment{}, fmt.Errorf("parse end date: %w", err)
		}
		end = core.Date{Time: t}
	}

	p := core.RecurringPayment{
		OwnerID:    in.OwnerID,
		Name:       in.Name,
		Amount:     core.Money{Cents: cents},
		Category:   in.Category,
		Every:      every,
		DayOfMonth: core.NoDayOfMonth,
		DayOfWeek:  core.NoDayOfWeek,
		StartDate:  core.Date{Time: start},
		EndDate:    end,
		Active:     true,
	}
	if in.DayOfMonth != 0 {
		p.DayOfMonth = in.DayOfMonth
	}
	if in.DayOfWeek != nil {
		p.DayOfWeek = *in.DayOfWeek
	}
	p.NextOccurrence = core.DateOf(seedFirstOccurrence(start, p))

	if err := p.Validate(); err != nil {
		return core.RecurringPayment{}, err
	}
	return p, nil
}

// seedFirstOccurrence finds the first date on or after start that matches
// the payment's anchor. Unanchored series simply begin on the start date.
func seedFirstOccurrence(start time.Time, p core.RecurringPayment) time.Time {
	anchor := recurrence.AnchorOf(p)
	switch {
	case p.Every == core.Weekly && anchor.HasWeekDay():
		if int(start.Weekday()) == p.DayOfWeek {
			return start
		}
	case p.Every == core.Monthly && anchor.HasMonthDay():
		lastDay := time.Date(start.Year(), start.Month()+1, 0, 0, 0, 0, 0, start.Location()).Day()
		day := p.DayOfMonth
		if day > lastDay {
			day = lastDay
		}
		candidate := time.Date(start.Year(), start.Month(), day, 0, 0, 0, 0, start.Location())
		if !candidate.Before(start) {
			return candidate
		}
	default:
		return start
	}
	next, err := recurrence.NextOccurrence(start, p.Every, anchor)
	if err != nil {
		return start
	}
	return next
}
