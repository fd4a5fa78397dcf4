package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ledger/internal/core"
	"ledger/internal/log"
)

// dedupWindow is how close an existing tagged transaction must be to an
// occurrence for the occurrence to count as already materialized.
const dedupWindow = 24 * time.Hour

// RecurringLedger is the part of the ledger store the materializer uses.
// Transactions are created through the store's normal add path.
type RecurringLedger interface {
	Transactions() []core.Transaction
	RecurringTransactions() []core.RecurringTransaction
	AddTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
	UpdateRecurring(ctx context.Context, id string, patch core.RecurringPatch) (core.RecurringTransaction, error)
}

// MaterializeReport summarizes one run.
type MaterializeReport struct {
	Definitions int
	Created     []core.Transaction
	Skipped     int
}

type RecurringMaterializer struct {
	ledger RecurringLedger
	loc    *time.Location
	logger *log.Logger
}

// NewRecurringMaterializer creates a materializer. Calendar steps are taken
// in loc (time.Local when nil).
func NewRecurringMaterializer(ledger RecurringLedger, loc *time.Location, logger *log.Logger) *RecurringMaterializer {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &RecurringMaterializer{ledger: ledger, loc: loc, logger: logger.WithComponent(log.ComponentMaterialize)}
}

// Materialize creates the occurrences of every active definition that fall
// after its cursor (lastMaterializedAt, or startDate) and on or before now.
// The cursor is advanced before each check, so the start date itself is
// never an occurrence. An occurrence is skipped when a transaction carrying
// the definition's auto tag lies within 24 hours of it. Afterwards each
// definition's cursor moves to its last occurrence.
func (m *RecurringMaterializer) Materialize(ctx context.Context, now time.Time) (MaterializeReport, error) {
	var (
		report MaterializeReport
		errs   []error
	)
	existing := m.ledger.Transactions()

	for _, def := range m.ledger.RecurringTransactions() {
		if !def.IsActive || !def.StartDate.IsSet() {
			continue
		}
		if def.EndDate.IsSet() && now.After(def.EndDate.Time) {
			continue
		}
		step, err := GetStepper(def.Frequency)
		if err != nil {
			errs = append(errs, fmt.Errorf("definition %s: %w", def.ID, err))
			continue
		}
		report.Definitions++

		anchor := def.StartDate.Time.In(m.loc)
		cursor := anchor
		if def.LastMaterializedAt.IsSet() {
			cursor = def.LastMaterializedAt.Time.In(m.loc)
		}
		tag := core.AutoTag(def.Description)

		var last time.Time
		for {
			cursor = step.Next(cursor, anchor)
			if cursor.After(now) {
				break
			}
			if alreadyMaterialized(existing, tag, cursor) {
				report.Skipped++
				last = cursor
				continue
			}
			tx, err := m.ledger.AddTransaction(ctx, core.Transaction{
				Amount:      def.Amount,
				Type:        def.Type,
				CategoryID:  def.CategoryID,
				Description: tag,
				Date:        core.NewInstant(cursor),
			})
			if err != nil {
				errs = append(errs, fmt.Errorf("definition %s at %s: %w", def.ID, cursor.Format(time.DateOnly), err))
				break
			}
			existing = append(existing, tx)
			report.Created = append(report.Created, tx)
			last = cursor
		}

		if !last.IsZero() {
			at := core.NewInstant(last)
			if _, err := m.ledger.UpdateRecurring(ctx, def.ID, core.RecurringPatch{LastMaterializedAt: &at}); err != nil {
				errs = append(errs, fmt.Errorf("advance definition %s: %w", def.ID, err))
			}
		}
	}

	m.logger.InfoContext(ctx, "Materialized recurring transactions",
		log.FieldOperation, log.OpMaterialize,
		"definitions", report.Definitions,
		"created", len(report.Created),
		"skipped", report.Skipped)
	return report, errors.Join(errs...)
}

func alreadyMaterialized(txs []core.Transaction, tag string, at time.Time) bool {
	for _, tx := range txs {
		if !strings.Contains(tx.Description, tag) {
			continue
		}
		d := tx.Date.Time.Sub(at)
		if d < 0 {
			d = -d
		}
		if d < dedupWindow {
			return true
		}
	}
	return false
}
