package ledger

import (
	"context"
	"fmt"

	"ledger/internal/core"
)

// AddCategory keeps a caller-supplied id when it is unused and assigns one
// otherwise.
func (s *Store) AddCategory(ctx context.Context, cat core.Category) (core.Category, error) {
	if err := cat.Validate(); err != nil {
		return core.Category{}, err
	}
	snap, user, err := s.commit(func(st *core.Snapshot) error {
		taken := func(id string) bool {
			return indexOf(st.Categories, func(c core.Category) bool { return c.ID == id }) >= 0
		}
		if cat.ID != "" && taken(cat.ID) {
			return fmt.Errorf("category %s: %w", cat.ID, core.ErrValidation)
		}
		if cat.ID == "" {
			cat.ID = s.uniqueID(taken)
		}
		st.Categories = appendCopy(st.Categories, cat)
		return nil
	})
	if err != nil {
		return core.Category{}, err
	}
	s.schedulePersist(ctx, snap)
	s.schedulePush(ctx, user, core.KindCategories, cat.ID, func(ctx context.Context) error {
		return s.remote.PushCategory(ctx, user, cat)
	})
	return cat, nil
}

func (s *Store) UpdateCategory(ctx context.Context, id string, patch core.CategoryPatch) (core.Category, error) {
	var updated core.Category
	snap, user, err := s.commit(func(st *core.Snapshot) error {
		i := indexOf(st.Categories, func(c core.Category) bool { return c.ID == id })
		if i < 0 {
			return core.ErrNotFound
		}
		updated = patch.Apply(st.Categories[i])
		if err := updated.Validate(); err != nil {
			return err
		}
		st.Categories = replaceAt(st.Categories, i, updated)
		return nil
	})
	if err != nil {
		return core.Category{}, err
	}
	s.schedulePersist(ctx, snap)
	s.schedulePush(ctx, user, core.KindCategories, id, func(ctx context.Context) error {
		return s.remote.PushCategory(ctx, user, updated)
	})
	return updated, nil
}

// DeleteCategory removes the category only. Transactions keep their
// categoryId and render as uncategorized.
func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	snap, user, err := s.commit(func(st *core.Snapshot) error {
		i := indexOf(st.Categories, func(c core.Category) bool { return c.ID == id })
		if i < 0 {
			return core.ErrNotFound
		}
		st.Categories = removeAt(st.Categories, i)
		return nil
	})
	if err != nil {
		return err
	}
	s.schedulePersist(ctx, snap)
	s.scheduleDelete(ctx, user, core.KindCategories, id)
	return nil
}

// SetBudget upserts the budget of b.Month. An existing budget for the
// month keeps its id.
func (s *Store) SetBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	month, err := core.ParseMonthKey(b.Month, s.loc)
	if err != nil {
		return core.Budget{}, err
	}
	b.Month = core.MonthKey(month)
	b.CategoryBudgets = append([]core.CategoryBudget{}, b.CategoryBudgets...)
	snap, user, err := s.commit(func(st *core.Snapshot) error {
		if i := indexOf(st.Budgets, func(x core.Budget) bool { return x.Month == b.Month }); i >= 0 {
			b.ID = st.Budgets[i].ID
			st.Budgets = replaceAt(st.Budgets, i, b)
			return nil
		}
		b.ID = s.uniqueID(func(id string) bool {
			return indexOf(st.Budgets, func(x core.Budget) bool { return x.ID == id }) >= 0
		})
		st.Budgets = appendCopy(st.Budgets, b)
		return nil
	})
	if err != nil {
		return core.Budget{}, err
	}
	if b.OverAllocated() {
		s.logger.WarnContext(ctx, "Budget categories exceed total", "month", b.Month,
			"allocated_cents", b.AllocatedTotal().Cents, "total_cents", b.TotalBudget.Cents)
	}
	s.schedulePersist(ctx, snap)
	s.schedulePush(ctx, user, core.KindBudgets, b.ID, func(ctx context.Context) error {
		return s.remote.PushBudget(ctx, user, b)
	})
	return b, nil
}

func (s *Store) UpdateBudget(ctx context.Context, id string, patch core.BudgetPatch) (core.Budget, error) {
	var updated core.Budget
	snap, user, err := s.commit(func(st *core.Snapshot) error {
		i := indexOf(st.Budgets, func(b core.Budget) bool { return b.ID == id })
		if i < 0 {
			return core.ErrNotFound
		}
		updated = patch.Apply(st.Budgets[i])
		if err := updated.Validate(); err != nil {
			return err
		}
		st.Budgets = replaceAt(st.Budgets, i, updated)
		return nil
	})
	if err != nil {
		return core.Budget{}, err
	}
	s.schedulePersist(ctx, snap)
	s.schedulePush(ctx, user, core.KindBudgets, id, func(ctx context.Context) error {
		return s.remote.PushBudget(ctx, user, updated)
	})
	return updated, nil
}

func (s *Store) DeleteBudget(ctx context.Context, id string) error {
	snap, user, err := s.commit(func(st *core.Snapshot) error {
		i := indexOf(st.Budgets, func(b core.Budget) bool { return b.ID == id })
		if i < 0 {
			return core.ErrNotFound
		}
		st.Budgets = removeAt(st.Budgets, i)
		return nil
	})
	if err != nil {
		return err
	}
	s.schedulePersist(ctx, snap)
	s.scheduleDelete(ctx, user, core.KindBudgets, id)
	return nil
}

func (s *Store) UpdateSettings(ctx context.Context, patch core.SettingsPatch) (core.UserSettings, error) {
	var updated core.UserSettings
	snap, user, err := s.commit(func(st *core.Snapshot) error {
		updated = patch.Apply(st.Settings)
		st.Settings = updated
		return nil
	})
	if err != nil {
		return core.UserSettings{}, err
	}
	s.schedulePersist(ctx, snap)
	s.schedulePush(ctx, user, core.KindSettings, core.SettingsDocumentID, func(ctx context.Context) error {
		return s.remote.PushSettings(ctx, user, updated)
	})
	return updated, nil
}

// Savings goals and recurring definitions stay on the device.

func (s *Store) AddSavingsGoal(ctx context.Context, g core.SavingsGoal) (core.SavingsGoal, error) {
	g.CreatedAt = s.stamp()
	if err := g.Validate(); err != nil {
		return core.SavingsGoal{}, err
	}
	snap, _, err := s.commit(func(st *core.Snapshot) error {
		g.ID = s.uniqueID(func(id string) bool {
			return indexOf(st.SavingsGoals, func(x core.SavingsGoal) bool { return x.ID == id }) >= 0
		})
		st.SavingsGoals = appendCopy(st.SavingsGoals, g)
		return nil
	})
	if err != nil {
		return core.SavingsGoal{}, err
	}
	s.schedulePersist(ctx, snap)
	return g, nil
}

func (s *Store) UpdateSavingsGoal(ctx context.Context, id string, patch core.SavingsGoalPatch) (core.SavingsGoal, error) {
	var updated core.SavingsGoal
	snap, _, err := s.commit(func(st *core.Snapshot) error {
		i := indexOf(st.SavingsGoals, func(g core.SavingsGoal) bool { return g.ID == id })
		if i < 0 {
			return core.ErrNotFound
		}
		updated = patch.Apply(st.SavingsGoals[i])
		if err := updated.Validate(); err != nil {
			return err
		}
		st.SavingsGoals = replaceAt(st.SavingsGoals, i, updated)
		return nil
	})
	if err != nil {
		return core.SavingsGoal{}, err
	}
	s.schedulePersist(ctx, snap)
	return updated, nil
}

func (s *Store) DeleteSavingsGoal(ctx context.Context, id string) error {
	snap, _, err := s.commit(func(st *core.Snapshot) error {
		i := indexOf(st.SavingsGoals, func(g core.SavingsGoal) bool { return g.ID == id })
		if i < 0 {
			return core.ErrNotFound
		}
		st.SavingsGoals = removeAt(st.SavingsGoals, i)
		return nil
	})
	if err != nil {
		return err
	}
	s.schedulePersist(ctx, snap)
	return nil
}

func (s *Store) AddRecurring(ctx context.Context, r core.RecurringTransaction) (core.RecurringTransaction, error) {
	if err := r.Validate(); err != nil {
		return core.RecurringTransaction{}, err
	}
	snap, _, err := s.commit(func(st *core.Snapshot) error {
		r.ID = s.uniqueID(func(id string) bool {
			return indexOf(st.Recurring, func(x core.RecurringTransaction) bool { return x.ID == id }) >= 0
		})
		st.Recurring = appendCopy(st.Recurring, r)
		return nil
	})
	if err != nil {
		return core.RecurringTransaction{}, err
	}
	s.schedulePersist(ctx, snap)
	return r, nil
}

func (s *Store) UpdateRecurring(ctx context.Context, id string, patch core.RecurringPatch) (core.RecurringTransaction, error) {
	var updated core.RecurringTransaction
	snap, _, err := s.commit(func(st *core.Snapshot) error {
		i := indexOf(st.Recurring, func(r core.RecurringTransaction) bool { return r.ID == id })
		if i < 0 {
			return core.ErrNotFound
		}
		updated = patch.Apply(st.Recurring[i])
		if err := updated.Validate(); err != nil {
			return err
		}
		st.Recurring = replaceAt(st.Recurring, i, updated)
		return nil
	})
	if err != nil {
		return core.RecurringTransaction{}, err
	}
	s.schedulePersist(ctx, snap)
	return updated, nil
}

func (s *Store) DeleteRecurring(ctx context.Context, id string) error {
	snap, _, err := s.commit(func(st *core.Snapshot) error {
		i := indexOf(st.Recurring, func(r core.RecurringTransaction) bool { return r.ID == id })
		if i < 0 {
			return core.ErrNotFound
		}
		st.Recurring = removeAt(st.Recurring, i)
		return nil
	})
	if err != nil {
		return err
	}
	s.schedulePersist(ctx, snap)
	return nil
}
