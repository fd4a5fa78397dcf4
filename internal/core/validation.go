package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation       = errors.New("validation failed")
	ErrNotFound         = errors.New("not found")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyCategory    = errors.New("empty category")
)

// MaxDescriptionLen bounds a transaction description. Recurring descriptions
// leave room for the AutoTag wrapper.
const (
	MaxDescriptionLen          = 200
	MaxRecurringDescriptionLen = MaxDescriptionLen - len("[Auto: ]")
)

// ValidationError is returned for input rejected before any mutation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

func (t TransactionType) Validate() error {
	switch t {
	case Income, Expense:
		return nil
	}
	return invalid("type", fmt.Sprintf("must be %q or %q, got %q", Income, Expense, t))
}

func (f Frequency) Validate() error {
	switch f {
	case Daily, Weekly, Monthly, Yearly:
		return nil
	}
	return invalid("frequency", fmt.Sprintf("unknown repetition type %q", f))
}

func (t Transaction) Validate() error {
	if err := t.Amount.Validate(); err != nil {
		return invalid("amount", "must be greater than zero")
	}
	if err := t.Type.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(t.CategoryID) == "" {
		return invalid("categoryId", ErrEmptyCategory.Error())
	}
	if len(t.Description) > MaxDescriptionLen {
		return invalid("description", fmt.Sprintf("too long (max %d characters)", MaxDescriptionLen))
	}
	if !t.Date.IsSet() {
		return invalid("date", "must be set")
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return invalid("name", "must not be empty")
	}
	if err := c.Type.Validate(); err != nil {
		return err
	}
	if c.BudgetLimit != nil && c.BudgetLimit.Cents <= 0 {
		return invalid("budgetLimit", "must be greater than zero when set")
	}
	return nil
}

func (b Budget) Validate() error {
	if _, err := ParseMonthKey(b.Month, nil); err != nil {
		return err
	}
	if b.TotalBudget.Cents < 0 {
		return invalid("totalBudget", "must not be negative")
	}
	seen := make(map[string]struct{}, len(b.CategoryBudgets))
	for _, cb := range b.CategoryBudgets {
		if strings.TrimSpace(cb.CategoryID) == "" {
			return invalid("categoryBudgets", ErrEmptyCategory.Error())
		}
		if cb.Limit.Cents < 0 {
			return invalid("categoryBudgets", "limit must not be negative")
		}
		if _, dup := seen[cb.CategoryID]; dup {
			return invalid("categoryBudgets", "duplicate category "+cb.CategoryID)
		}
		seen[cb.CategoryID] = struct{}{}
	}
	return nil
}

func (g SavingsGoal) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return invalid("name", "must not be empty")
	}
	if err := g.TargetAmount.Validate(); err != nil {
		return invalid("targetAmount", "must be greater than zero")
	}
	if g.CurrentAmount.Cents < 0 {
		return invalid("currentAmount", "must not be negative")
	}
	if g.CurrentAmount.Cents > g.TargetAmount.Cents {
		return invalid("currentAmount", "must not exceed targetAmount")
	}
	return nil
}

func (r RecurringTransaction) Validate() error {
	if err := r.Amount.Validate(); err != nil {
		return invalid("amount", "must be greater than zero")
	}
	if err := r.Type.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(r.CategoryID) == "" {
		return invalid("categoryId", ErrEmptyCategory.Error())
	}
	if strings.TrimSpace(r.Description) == "" {
		return invalid("description", ErrEmptyDescription.Error())
	}
	if len(r.Description) > MaxRecurringDescriptionLen {
		return invalid("description", fmt.Sprintf("too long (max %d characters)", MaxRecurringDescriptionLen))
	}
	if err := r.Frequency.Validate(); err != nil {
		return err
	}
	if !r.StartDate.IsSet() {
		return invalid("startDate", "must be set")
	}
	if r.EndDate.IsSet() && r.EndDate.Before(r.StartDate.Time) {
		return invalid("endDate", "must not be before startDate")
	}
	return nil
}
