package ledger

import (
	"strings"
	"time"

	"ledger/internal/core"
	"ledger/internal/services"
)

// Snapshot returns a copy of the whole state.
func (s *Store) Snapshot() core.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// UserID returns the attached identity, empty when offline.
func (s *Store) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

func (s *Store) Transactions() []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Transaction(nil), s.state.Transactions...)
}

func (s *Store) Transaction(id string) (core.Transaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := indexOf(s.state.Transactions, func(t core.Transaction) bool { return t.ID == id }); i >= 0 {
		return s.state.Transactions[i], true
	}
	return core.Transaction{}, false
}

// TransactionsInMonth returns the transactions dated in month ("2006-01"),
// read in the store's location.
func (s *Store) TransactionsInMonth(month string) ([]core.Transaction, error) {
	start, err := core.ParseMonthKey(month, s.loc)
	if err != nil {
		return nil, err
	}
	end := start.AddDate(0, 1, 0)
	var out []core.Transaction
	for _, tx := range s.Transactions() {
		d := tx.Date.Time
		if !d.Before(start) && d.Before(end) {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (s *Store) Categories() []core.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Category(nil), s.state.Categories...)
}

func (s *Store) Category(id string) (core.Category, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := indexOf(s.state.Categories, func(c core.Category) bool { return c.ID == id }); i >= 0 {
		return s.state.Categories[i], true
	}
	return core.Category{}, false
}

func (s *Store) Budgets() []core.Budget {
	return s.Snapshot().Budgets
}

func (s *Store) BudgetForMonth(month string) (core.Budget, bool) {
	month = strings.TrimSpace(month)
	for _, b := range s.Budgets() {
		if b.Month == month {
			return b, true
		}
	}
	return core.Budget{}, false
}

func (s *Store) Settings() core.UserSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Settings
}

func (s *Store) SavingsGoals() []core.SavingsGoal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.SavingsGoal(nil), s.state.SavingsGoals...)
}

func (s *Store) RecurringTransactions() []core.RecurringTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.RecurringTransaction(nil), s.state.Recurring...)
}

// BudgetStatus recomputes the month's budget against its transactions.
func (s *Store) BudgetStatus(month string) (core.BudgetStatus, error) {
	b, ok := s.BudgetForMonth(month)
	if !ok {
		return core.BudgetStatus{}, core.ErrNotFound
	}
	return services.BudgetStatus(b, s.Transactions(), s.loc)
}

// MonthSpending is the month-to-date expense total of a category, the same
// window the alert engine uses.
func (s *Store) MonthSpending(categoryID string, now time.Time) core.Money {
	now = now.In(s.loc)
	return services.SpentInWindow(s.Transactions(), categoryID, core.MonthStart(now), now)
}

// SpendingByCategory groups the month's expenses by category.
func (s *Store) SpendingByCategory(month string) ([]core.CategoryAmount, error) {
	start, err := core.ParseMonthKey(month, s.loc)
	if err != nil {
		return nil, err
	}
	return services.SpendingByCategory(s.Transactions(), start, start.AddDate(0, 1, 0).Add(-time.Nanosecond)), nil
}
