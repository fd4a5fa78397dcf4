package core

// Partial updates. A nil field leaves the current value untouched.
type (
	TransactionPatch struct {
		Amount      *Money
		Type        *TransactionType
		CategoryID  *string
		Description *string
		Date        *Instant
	}

	CategoryPatch struct {
		Name  *string
		Icon  *string
		Color *string
		Type  *TransactionType
		// BudgetLimit set to a zero Money clears the limit.
		BudgetLimit *Money
	}

	BudgetPatch struct {
		TotalBudget     *Money
		CategoryBudgets *[]CategoryBudget
	}

	SettingsPatch struct {
		Currency         *string
		DarkMode         *bool
		BiometricEnabled *bool
		Notifications    *bool
		Language         *string
	}

	SavingsGoalPatch struct {
		Name          *string
		TargetAmount  *Money
		CurrentAmount *Money
		Deadline      *Instant
		Icon          *string
		Color         *string
	}

	RecurringPatch struct {
		Amount             *Money
		Type               *TransactionType
		CategoryID         *string
		Description        *string
		Frequency          *Frequency
		StartDate          *Instant
		EndDate            *Instant
		LastMaterializedAt *Instant
		IsActive           *bool
	}
)

func (p TransactionPatch) Apply(t Transaction) Transaction {
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Type != nil {
		t.Type = *p.Type
	}
	if p.CategoryID != nil {
		t.CategoryID = *p.CategoryID
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Date != nil {
		t.Date = *p.Date
	}
	return t
}

func (p CategoryPatch) Apply(c Category) Category {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Icon != nil {
		c.Icon = *p.Icon
	}
	if p.Color != nil {
		c.Color = *p.Color
	}
	if p.Type != nil {
		c.Type = *p.Type
	}
	if p.BudgetLimit != nil {
		if p.BudgetLimit.Cents == 0 {
			c.BudgetLimit = nil
		} else {
			limit := *p.BudgetLimit
			c.BudgetLimit = &limit
		}
	}
	return c
}

func (p BudgetPatch) Apply(b Budget) Budget {
	if p.TotalBudget != nil {
		b.TotalBudget = *p.TotalBudget
	}
	if p.CategoryBudgets != nil {
		b.CategoryBudgets = append([]CategoryBudget(nil), (*p.CategoryBudgets)...)
	}
	return b
}

func (p SettingsPatch) Apply(s UserSettings) UserSettings {
	if p.Currency != nil {
		s.Currency = *p.Currency
	}
	if p.DarkMode != nil {
		s.DarkMode = *p.DarkMode
	}
	if p.BiometricEnabled != nil {
		s.BiometricEnabled = *p.BiometricEnabled
	}
	if p.Notifications != nil {
		s.Notifications = *p.Notifications
	}
	if p.Language != nil {
		s.Language = *p.Language
	}
	return s
}

func (p SavingsGoalPatch) Apply(g SavingsGoal) SavingsGoal {
	if p.Name != nil {
		g.Name = *p.Name
	}
	if p.TargetAmount != nil {
		g.TargetAmount = *p.TargetAmount
	}
	if p.CurrentAmount != nil {
		g.CurrentAmount = *p.CurrentAmount
	}
	if p.Deadline != nil {
		g.Deadline = *p.Deadline
	}
	if p.Icon != nil {
		g.Icon = *p.Icon
	}
	if p.Color != nil {
		g.Color = *p.Color
	}
	return g
}

func (p RecurringPatch) Apply(r RecurringTransaction) RecurringTransaction {
	if p.Amount != nil {
		r.Amount = *p.Amount
	}
	if p.Type != nil {
		r.Type = *p.Type
	}
	if p.CategoryID != nil {
		r.CategoryID = *p.CategoryID
	}
	if p.Description != nil {
		r.Description = *p.Description
	}
	if p.Frequency != nil {
		r.Frequency = *p.Frequency
	}
	if p.StartDate != nil {
		r.StartDate = *p.StartDate
	}
	if p.EndDate != nil {
		r.EndDate = *p.EndDate
	}
	if p.LastMaterializedAt != nil {
		r.LastMaterializedAt = *p.LastMaterializedAt
	}
	if p.IsActive != nil {
		r.IsActive = *p.IsActive
	}
	return r
}
