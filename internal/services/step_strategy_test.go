package services

import (
	"testing"
	"time"

	"ledger/internal/core"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 9, 30, 0, 0, time.UTC)
}

func TestSteppers(t *testing.T) {
	tests := []struct {
		name   string
		freq   core.Frequency
		cursor time.Time
		anchor time.Time
		want   time.Time
	}{
		{"daily", core.Daily, day(2025, 2, 28), day(2025, 1, 1), day(2025, 3, 1)},
		{"weekly across month", core.Weekly, day(2025, 1, 29), day(2025, 1, 1), day(2025, 2, 5)},
		{"monthly plain", core.Monthly, day(2025, 1, 1), day(2025, 1, 1), day(2025, 2, 1)},
		{"monthly clamps to february", core.Monthly, day(2025, 1, 31), day(2025, 1, 31), day(2025, 2, 28)},
		{"monthly returns to anchor day", core.Monthly, day(2025, 2, 28), day(2025, 1, 31), day(2025, 3, 31)},
		{"monthly leap february", core.Monthly, day(2024, 1, 30), day(2024, 1, 30), day(2024, 2, 29)},
		{"monthly december rolls year", core.Monthly, day(2025, 12, 15), day(2025, 1, 15), day(2026, 1, 15)},
		{"yearly", core.Yearly, day(2025, 6, 1), day(2025, 6, 1), day(2026, 6, 1)},
		{"yearly leap day clamps", core.Yearly, day(2024, 2, 29), day(2024, 2, 29), day(2025, 2, 28)},
		{"yearly leap day restores", core.Yearly, day(2027, 2, 28), day(2024, 2, 29), day(2028, 2, 29)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := GetStepper(tt.freq)
			if err != nil {
				t.Fatalf("GetStepper: %v", err)
			}
			if got := s.Next(tt.cursor, tt.anchor); !got.Equal(tt.want) {
				t.Errorf("Next(%v) = %v, want %v", tt.cursor, got, tt.want)
			}
		})
	}
}

func TestGetStepperUnknown(t *testing.T) {
	if _, err := GetStepper("hourly"); err == nil {
		t.Fatal("expected error for unknown frequency")
	}
}
