package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Daily   Interval = "daily"
	Weekly  Interval = "weekly"
	Monthly Interval = "monthly"
	Yearly  Interval = "yearly"
)

// Anchor sentinels for payments without an explicit day anchor.
const (
	NoDayOfMonth = 0
	NoDayOfWeek  = -1
)

type (
	Interval string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// RecurringPayment is a validated recurring payment definition.
	// NextOccurrence is the only field mutated after creation; it is
	// advanced each time the payment is materialized and never moves
	// backwards or before StartDate.
	RecurringPayment struct {
		ID             int64
		OwnerID        int64
		Name           string
		Amount         Money
		Category       string
		Every          Interval
		DayOfMonth     int // 1-31 when Every is Monthly, NoDayOfMonth otherwise
		DayOfWeek      int // 0=Sunday..6=Saturday when Every is Weekly, NoDayOfWeek otherwise
		StartDate      Date
		EndDate        Date // zero means open-ended
		NextOccurrence Date
		Active         bool
	}

	// Transaction is the concrete record produced when a due payment
	// is materialized.
	Transaction struct {
		ID                 int64
		OwnerID            int64
		Name               string
		Amount             Money
		Category           string
		Date               Date
		RecurringPaymentID int64
	}
)

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrEmptyName         = errors.New("empty payment name")
	ErrEmptyCategory     = errors.New("empty category")
	ErrInvalidInterval   = errors.New("invalid repetition interval")
	ErrInvalidDayOfMonth = errors.New("day of month must be between 1 and 31")
	ErrInvalidDayOfWeek  = errors.New("day of week must be between 0 and 6")
	ErrInvalidStartDate  = errors.New("invalid start date")
	ErrEndBeforeStart    = errors.New("end date must not precede start date")
)

// NewDate creates a Date at UTC midnight.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates a timestamp to its UTC calendar date.
func DateOf(t time.Time) Date {
	u := t.UTC()
	return NewDate(u.Year(), int(u.Month()), u.Day())
}

func (d Date) Day() int   { return d.Time.Day() }
func (d Date) Month() int { return int(d.Time.Month()) }
func (d Date) Year() int  { return d.Time.Year() }

// IsEmpty reports whether the date is unset (used for optional dates).
func (d Date) IsEmpty() bool { return d.IsZero() }

// String formats the date as ISO 8601 (yyyy-mm-dd).
func (d Date) String() string {
	return d.Format("2006-01-02")
}

// MarshalJSON encodes the date as "yyyy-mm-dd".
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte(`""`), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON decodes a "yyyy-mm-dd" date; an empty string yields the
// zero date.
func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return err
	}
	*d = Date{Time: t}
	return nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (i Interval) Valid() bool {
	switch i {
	case Daily, Weekly, Monthly, Yearly:
		return true
	}
	return false
}

func (p RecurringPayment) Validate() error {
	if len(strings.TrimSpace(p.Name)) == 0 {
		return ErrEmptyName
	}
	if len(p.Name) > 200 {
		return errors.New("payment name too long (max 200 characters)")
	}
	if err := p.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(p.Category) == "" {
		return ErrEmptyCategory
	}
	if !p.Every.Valid() {
		return ErrInvalidInterval
	}
	if p.DayOfMonth != NoDayOfMonth && (p.DayOfMonth < 1 || p.DayOfMonth > 31) {
		return ErrInvalidDayOfMonth
	}
	if p.DayOfWeek != NoDayOfWeek && (p.DayOfWeek < 0 || p.DayOfWeek > 6) {
		return ErrInvalidDayOfWeek
	}
	if p.StartDate.IsZero() {
		return ErrInvalidStartDate
	}
	if !p.EndDate.IsZero() && p.EndDate.Before(p.StartDate.Time) {
		return ErrEndBeforeStart
	}
	return nil
}
