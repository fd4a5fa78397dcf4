package services

import (
	"time"

	"ledger/internal/core"
)

// BudgetStatus recomputes each category line's spent amount from txs for
// the budget's month in loc.
func BudgetStatus(b core.Budget, txs []core.Transaction, loc *time.Location) (core.BudgetStatus, error) {
	start, err := core.ParseMonthKey(b.Month, loc)
	if err != nil {
		return core.BudgetStatus{}, err
	}
	// Inclusive end: the last instant before the next month starts.
	end := start.AddDate(0, 1, 0).Add(-time.Nanosecond)

	status := core.BudgetStatus{
		Budget:        b,
		Lines:         make([]core.CategoryStatus, 0, len(b.CategoryBudgets)),
		OverAllocated: b.OverAllocated(),
	}
	status.Budget.CategoryBudgets = make([]core.CategoryBudget, 0, len(b.CategoryBudgets))

	for _, cb := range b.CategoryBudgets {
		cb.Spent = SpentInWindow(txs, cb.CategoryID, start, end)
		status.Budget.CategoryBudgets = append(status.Budget.CategoryBudgets, cb)
		status.TotalSpent.Cents += cb.Spent.Cents

		line := core.CategoryStatus{CategoryBudget: cb, Health: core.BudgetHealth(cb.Spent, cb.Limit)}
		if cb.Limit.Cents > 0 {
			line.Percent = core.Percent(cb.Spent, cb.Limit)
		}
		status.Lines = append(status.Lines, line)
	}
	return status, nil
}

// SpendingByCategory totals expenses per category in [start, end], in
// first-seen order.
func SpendingByCategory(txs []core.Transaction, start, end time.Time) []core.CategoryAmount {
	index := map[string]int{}
	var out []core.CategoryAmount
	for _, tx := range txs {
		if tx.Type != core.Expense {
			continue
		}
		at := tx.Date.Time
		if at.Before(start) || at.After(end) {
			continue
		}
		i, ok := index[tx.CategoryID]
		if !ok {
			i = len(out)
			index[tx.CategoryID] = i
			out = append(out, core.CategoryAmount{CategoryID: tx.CategoryID})
		}
		out[i].Amount.Cents += tx.Amount.Cents
	}
	return out
}
