// Package services holds the ledger's derived computations: recurring
// materialization, budget status and threshold alerts.
//
// This file implements the Strategy Pattern for advancing a recurring
// definition's cursor. Each frequency has its own step.
package services

import (
	"fmt"
	"time"

	"ledger/internal/core"
)

// Stepper advances a recurrence cursor by one period. anchor is the
// definition's start date, whose day of month (and month, for yearly
// steps) each occurrence keeps where the calendar allows.
type Stepper interface {
	Next(cursor, anchor time.Time) time.Time
}

// DailyStepper moves one calendar day.
type DailyStepper struct{}

func (DailyStepper) Next(cursor, _ time.Time) time.Time {
	return cursor.AddDate(0, 0, 1)
}

// WeeklyStepper moves seven calendar days.
type WeeklyStepper struct{}

func (WeeklyStepper) Next(cursor, _ time.Time) time.Time {
	return cursor.AddDate(0, 0, 7)
}

// MonthlyStepper moves to the anchor's day in the following month,
// clamped to that month's length (Jan 31, Feb 28, Mar 31).
type MonthlyStepper struct{}

func (MonthlyStepper) Next(cursor, anchor time.Time) time.Time {
	year, month := cursor.Year(), cursor.Month()+1
	if month > time.December {
		year, month = year+1, time.January
	}
	return atDay(cursor, year, month, anchor.Day())
}

// YearlyStepper moves to the anchor's month and day in the following
// year, clamping Feb 29 to Feb 28.
type YearlyStepper struct{}

func (YearlyStepper) Next(cursor, anchor time.Time) time.Time {
	return atDay(cursor, cursor.Year()+1, anchor.Month(), anchor.Day())
}

// atDay keeps cursor's clock and location.
func atDay(cursor time.Time, year int, month time.Month, day int) time.Time {
	if last := daysIn(year, month); day > last {
		day = last
	}
	h, m, s := cursor.Clock()
	return time.Date(year, month, day, h, m, s, cursor.Nanosecond(), cursor.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// stepStrategies maps frequencies to their steppers.
var stepStrategies = map[core.Frequency]Stepper{
	core.Daily:   DailyStepper{},
	core.Weekly:  WeeklyStepper{},
	core.Monthly: MonthlyStepper{},
	core.Yearly:  YearlyStepper{},
}

// GetStepper returns the stepper for a frequency.
func GetStepper(f core.Frequency) (Stepper, error) {
	s, ok := stepStrategies[f]
	if !ok {
		return nil, fmt.Errorf("unknown frequency: %s", f)
	}
	return s, nil
}
