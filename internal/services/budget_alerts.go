package services

import (
	"context"
	"fmt"
	"time"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/notify"
)

// LedgerView is the state an alert evaluation reads.
type LedgerView struct {
	Transactions []core.Transaction
	Categories   []core.Category
}

// BudgetAlerts decides whether an expense pushes its category's
// month-to-date spend over a threshold, and notifies when it does. Every
// evaluation stands alone: a tier already reported is reported again.
type BudgetAlerts struct {
	notifier notify.Notifier
	loc      *time.Location
	now      func() time.Time
	logger   *log.Logger
}

type AlertOption func(*BudgetAlerts)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) AlertOption {
	return func(b *BudgetAlerts) { b.now = now }
}

// WithLocation sets the location month boundaries are computed in.
func WithLocation(loc *time.Location) AlertOption {
	return func(b *BudgetAlerts) {
		if loc != nil {
			b.loc = loc
		}
	}
}

func NewBudgetAlerts(notifier notify.Notifier, logger *log.Logger, opts ...AlertOption) *BudgetAlerts {
	if logger == nil {
		logger = log.Discard()
	}
	b := &BudgetAlerts{
		notifier: notifier,
		loc:      time.Local,
		now:      time.Now,
		logger:   logger.WithComponent(log.ComponentAlerts),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Evaluate checks tx against its category's budget limit. It returns the
// alert raised, if any. Income, categories without a positive limit and
// spend below 75% raise nothing.
func (b *BudgetAlerts) Evaluate(ctx context.Context, tx core.Transaction, view LedgerView) (*core.BudgetAlert, error) {
	if tx.Type != core.Expense {
		return nil, nil
	}
	cat, ok := findCategory(view.Categories, tx.CategoryID)
	if !ok || cat.BudgetLimit == nil || cat.BudgetLimit.Cents <= 0 {
		return nil, nil
	}

	now := b.now().In(b.loc)
	start := core.MonthStart(now)
	spent := SpentInWindow(view.Transactions, tx.CategoryID, start, now)
	limit := *cat.BudgetLimit

	tier := core.CrossedTier(spent, limit)
	if tier == core.TierNone {
		return nil, nil
	}

	alert := &core.BudgetAlert{
		CategoryID:   cat.ID,
		CategoryName: cat.Name,
		Tier:         tier,
		Spent:        spent,
		Limit:        limit,
		Percent:      core.Percent(spent, limit),
		WindowStart:  start,
		WindowEnd:    now,
	}

	if b.notifier == nil {
		return alert, nil
	}
	h, err := b.notifier.Schedule(ctx, notify.Notification{
		Title: alert.Title(),
		Body:  alert.Body(),
		Payload: map[string]any{
			"type":       "budget_alert",
			"categoryId": cat.ID,
			"tier":       int(tier),
			"spent":      spent.String(),
			"limit":      limit.String(),
			"month":      core.MonthKey(now),
		},
	})
	if err != nil {
		return alert, fmt.Errorf("schedule budget alert: %w", err)
	}

	b.logger.InfoContext(ctx, "Budget alert raised",
		log.FieldOperation, log.OpAlert,
		log.FieldCategory, cat.ID,
		log.FieldAmount, spent.Cents,
		"tier", int(tier),
		"handle", h)
	return alert, nil
}

// SpentInWindow sums the expenses of categoryID dated in [start, end].
func SpentInWindow(txs []core.Transaction, categoryID string, start, end time.Time) core.Money {
	var total core.Money
	for _, tx := range txs {
		if tx.Type != core.Expense || tx.CategoryID != categoryID {
			continue
		}
		at := tx.Date.Time
		if at.Before(start) || at.After(end) {
			continue
		}
		total.Cents += tx.Amount.Cents
	}
	return total
}

func findCategory(cats []core.Category, id string) (core.Category, bool) {
	for _, c := range cats {
		if c.ID == id {
			return c, true
		}
	}
	return core.Category{}, false
}
