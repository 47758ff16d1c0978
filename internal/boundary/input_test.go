package boundary

import (
	"errors"
	"testing"

	"ricorrenze/internal/core"
)

func intPtr(n int) *int { return &n }

func validInput() DefinitionInput {
	return DefinitionInput{
		OwnerID:   10,
		Name:      "Affitto",
		Amount:    "800.00",
		Category:  "Casa",
		Every:     "monthly",
		StartDate: "2024-01-15",
	}
}

func TestDefinitionInput_Payment(t *testing.T) {
	in := validInput()
	in.DayOfMonth = 15

	p, err := in.Payment()
	if err != nil {
		t.Fatalf("Payment() error = %v", err)
	}
	if p.Amount.Cents != 80000 {
		t.Errorf("Amount = %d cents, want 80000", p.Amount.Cents)
	}
	if p.Every != core.Monthly {
		t.Errorf("Every = %s, want monthly", p.Every)
	}
	if !p.Active {
		t.Error("new payment should be active")
	}
	if want := core.NewDate(2024, 1, 15); !p.NextOccurrence.Equal(want.Time) {
		t.Errorf("NextOccurrence = %v, want %v", p.NextOccurrence, want)
	}
}

func TestDefinitionInput_Payment_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*DefinitionInput)
	}{
		{"missing owner", func(in *DefinitionInput) { in.OwnerID = 0 }},
		{"empty name", func(in *DefinitionInput) { in.Name = "" }},
		{"zero amount", func(in *DefinitionInput) { in.Amount = "0" }},
		{"negative amount", func(in *DefinitionInput) { in.Amount = "-5" }},
		{"empty category", func(in *DefinitionInput) { in.Category = "" }},
		{"unknown interval", func(in *DefinitionInput) { in.Every = "fortnightly" }},
		{"day of month out of range", func(in *DefinitionInput) { in.DayOfMonth = 32 }},
		{"day of week out of range", func(in *DefinitionInput) {
			in.Every = "weekly"
			in.DayOfWeek = intPtr(7)
		}},
		{"malformed start date", func(in *DefinitionInput) { in.StartDate = "15/01/2024" }},
		{"malformed end date", func(in *DefinitionInput) { in.EndDate = "soon" }},
		{"end before start", func(in *DefinitionInput) { in.EndDate = "2023-12-01" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)
			if _, err := in.Payment(); err == nil {
				t.Error("Payment() expected error, got nil")
			}
		})
	}
}

func TestDefinitionInput_AnchorMismatch(t *testing.T) {
	in := validInput()
	in.Every = "daily"
	in.DayOfMonth = 15
	if _, err := in.Payment(); !errors.Is(err, ErrAnchorMismatch) {
		t.Errorf("Payment() error = %v, want ErrAnchorMismatch", err)
	}

	in = validInput()
	in.DayOfWeek = intPtr(1) // monthly interval
	if _, err := in.Payment(); !errors.Is(err, ErrAnchorMismatch) {
		t.Errorf("Payment() error = %v, want ErrAnchorMismatch", err)
	}
}

func TestSeedFirstOccurrence(t *testing.T) {
	tests := []struct {
		name string
		in   DefinitionInput
		want core.Date
	}{
		{
			name: "unanchored starts on start date",
			in: func() DefinitionInput {
				in := validInput()
				return in
			}(),
			want: core.NewDate(2024, 1, 15),
		},
		{
			name: "monthly anchor later in start month",
			in: func() DefinitionInput {
				in := validInput()
				in.StartDate = "2024-01-10"
				in.DayOfMonth = 20
				return in
			}(),
			want: core.NewDate(2024, 1, 20),
		},
		{
			name: "monthly anchor already passed rolls to next month",
			in: func() DefinitionInput {
				in := validInput()
				in.StartDate = "2024-01-25"
				in.DayOfMonth = 20
				return in
			}(),
			want: core.NewDate(2024, 2, 20),
		},
		{
			name: "weekly anchor on matching weekday keeps start",
			in: func() DefinitionInput {
				in := validInput()
				in.Every = "weekly"
				in.StartDate = "2024-01-15" // Monday
				in.DayOfWeek = intPtr(1)
				return in
			}(),
			want: core.NewDate(2024, 1, 15),
		},
		{
			name: "weekly anchor on other weekday advances",
			in: func() DefinitionInput {
				in := validInput()
				in.Every = "weekly"
				in.StartDate = "2024-01-15" // Monday
				in.DayOfWeek = intPtr(5)    // Friday
				return in
			}(),
			want: core.NewDate(2024, 1, 19),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := tt.in.Payment()
			if err != nil {
				t.Fatalf("Payment() error = %v", err)
			}
			if !p.NextOccurrence.Equal(tt.want.Time) {
				t.Errorf("NextOccurrence = %v, want %v", p.NextOccurrence, tt.want)
			}
			if p.NextOccurrence.Before(p.StartDate.Time) {
				t.Error("NextOccurrence precedes StartDate")
			}
		})
	}
}
