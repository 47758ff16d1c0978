package core

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func validPayment() RecurringPayment {
	return RecurringPayment{
		OwnerID:        10,
		Name:           "Affitto",
		Amount:         Money{Cents: 80000},
		Category:       "Casa",
		Every:          Monthly,
		DayOfMonth:     15,
		DayOfWeek:      NoDayOfWeek,
		StartDate:      NewDate(2024, 1, 1),
		NextOccurrence: NewDate(2024, 1, 15),
		Active:         true,
	}
}

func TestRecurringPayment_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*RecurringPayment)
		wantErr error
	}{
		{"valid", func(*RecurringPayment) {}, nil},
		{"empty name", func(p *RecurringPayment) { p.Name = "  " }, ErrEmptyName},
		{"zero amount", func(p *RecurringPayment) { p.Amount.Cents = 0 }, ErrInvalidAmount},
		{"negative amount", func(p *RecurringPayment) { p.Amount.Cents = -100 }, ErrInvalidAmount},
		{"empty category", func(p *RecurringPayment) { p.Category = "" }, ErrEmptyCategory},
		{"bad interval", func(p *RecurringPayment) { p.Every = "fortnightly" }, ErrInvalidInterval},
		{"day of month too large", func(p *RecurringPayment) { p.DayOfMonth = 32 }, ErrInvalidDayOfMonth},
		{"day of week too large", func(p *RecurringPayment) { p.DayOfWeek = 7 }, ErrInvalidDayOfWeek},
		{"zero start date", func(p *RecurringPayment) { p.StartDate = Date{} }, ErrInvalidStartDate},
		{"end before start", func(p *RecurringPayment) { p.EndDate = NewDate(2023, 12, 1) }, ErrEndBeforeStart},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPayment()
			tt.mutate(&p)
			err := p.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestInterval_Valid(t *testing.T) {
	for _, i := range []Interval{Daily, Weekly, Monthly, Yearly} {
		if !i.Valid() {
			t.Errorf("Interval(%s).Valid() = false, want true", i)
		}
	}
	if Interval("hourly").Valid() {
		t.Error("Interval(hourly).Valid() = true, want false")
	}
}

func TestDate_JSONRoundTrip(t *testing.T) {
	d := NewDate(2024, 3, 15)

	b, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(b) != `"2024-03-15"` {
		t.Errorf("Marshal() = %s, want %q", b, `"2024-03-15"`)
	}

	var got Date
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !got.Equal(d.Time) {
		t.Errorf("round trip = %v, want %v", got, d)
	}

	var empty Date
	if err := json.Unmarshal([]byte(`""`), &empty); err != nil {
		t.Fatalf("Unmarshal empty error = %v", err)
	}
	if !empty.IsZero() {
		t.Error("empty string should decode to zero date")
	}
}

func TestDateOf_TruncatesToUTCDate(t *testing.T) {
	d := DateOf(time.Date(2024, 3, 15, 13, 30, 0, 0, time.UTC))
	if !d.Equal(NewDate(2024, 3, 15).Time) {
		t.Errorf("DateOf() = %v, want 2024-03-15", d)
	}
}
