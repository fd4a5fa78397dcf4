package core

import (
	"strings"
	"time"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

// Kind names a synchronized entity collection. The value doubles as the
// remote collection name and the local blob key suffix.
type Kind string

const (
	KindTransactions Kind = "transactions"
	KindCategories   Kind = "categories"
	KindBudgets      Kind = "budgets"
	KindSettings     Kind = "settings"
	KindSavingsGoals Kind = "savingsGoals"
	KindRecurring    Kind = "recurringTransactions"
)

// SyncedKinds are the collections mirrored to the remote store.
var SyncedKinds = []Kind{KindTransactions, KindCategories, KindBudgets, KindSettings}

// SettingsDocumentID is the id of the single remote settings document.
const SettingsDocumentID = "preferences"

type (
	TransactionType string

	Frequency string

	Transaction struct {
		ID          string          `json:"id"`
		Amount      Money           `json:"amount"`
		Type        TransactionType `json:"type"`
		CategoryID  string          `json:"categoryId"`
		Description string          `json:"description"`
		Date        Instant         `json:"date"`
		CreatedAt   Instant         `json:"createdAt"`
		UpdatedAt   Instant         `json:"updatedAt"`
	}

	Category struct {
		ID          string          `json:"id"`
		Name        string          `json:"name"`
		Icon        string          `json:"icon"`
		Color       string          `json:"color"`
		Type        TransactionType `json:"type"`
		BudgetLimit *Money          `json:"budgetLimit,omitempty"`
	}

	CategoryBudget struct {
		CategoryID string `json:"categoryId"`
		Limit      Money  `json:"limit"`
		Spent      Money  `json:"spent"`
	}

	Budget struct {
		ID              string           `json:"id"`
		Month           string           `json:"month"` // "2006-01"
		TotalBudget     Money            `json:"totalBudget"`
		CategoryBudgets []CategoryBudget `json:"categoryBudgets"`
	}

	UserSettings struct {
		Currency         string `json:"currency"`
		DarkMode         bool   `json:"darkMode"`
		BiometricEnabled bool   `json:"biometricEnabled"`
		Notifications    bool   `json:"notifications"`
		Language         string `json:"language"`
	}

	SavingsGoal struct {
		ID            string  `json:"id"`
		Name          string  `json:"name"`
		TargetAmount  Money   `json:"targetAmount"`
		CurrentAmount Money   `json:"currentAmount"`
		Deadline      Instant `json:"deadline"`
		Icon          string  `json:"icon"`
		Color         string  `json:"color"`
		CreatedAt     Instant `json:"createdAt"`
	}

	RecurringTransaction struct {
		ID                 string          `json:"id"`
		Amount             Money           `json:"amount"`
		Type               TransactionType `json:"type"`
		CategoryID         string          `json:"categoryId"`
		Description        string          `json:"description"`
		Frequency          Frequency       `json:"frequency"`
		StartDate          Instant         `json:"startDate"`
		EndDate            Instant         `json:"endDate"`
		LastMaterializedAt Instant         `json:"lastMaterializedAt"`
		IsActive           bool            `json:"isActive"`
	}

	// Snapshot is the full ledger state as persisted between sessions.
	Snapshot struct {
		Transactions []Transaction
		Categories   []Category
		Budgets      []Budget
		Settings     UserSettings
		SavingsGoals []SavingsGoal
		Recurring    []RecurringTransaction
	}
)

// DefaultSettings returns the settings used on first run.
func DefaultSettings() UserSettings {
	return UserSettings{
		Currency:      "USD",
		Notifications: true,
		Language:      "en",
	}
}

// DefaultCategories returns the category set seeded on first run.
func DefaultCategories() []Category {
	return []Category{
		{ID: "food", Name: "Food & Dining", Icon: "restaurant", Color: "#FF6B6B", Type: Expense},
		{ID: "transport", Name: "Transportation", Icon: "car", Color: "#4ECDC4", Type: Expense},
		{ID: "shopping", Name: "Shopping", Icon: "bag", Color: "#45B7D1", Type: Expense},
		{ID: "entertainment", Name: "Entertainment", Icon: "film", Color: "#96CEB4", Type: Expense},
		{ID: "bills", Name: "Bills & Utilities", Icon: "receipt", Color: "#FFEAA7", Type: Expense},
		{ID: "health", Name: "Healthcare", Icon: "medkit", Color: "#DDA0DD", Type: Expense},
		{ID: "education", Name: "Education", Icon: "school", Color: "#98D8C8", Type: Expense},
		{ID: "other-expense", Name: "Other", Icon: "ellipsis", Color: "#B0B0B0", Type: Expense},
		{ID: "salary", Name: "Salary", Icon: "cash", Color: "#2ECC71", Type: Income},
		{ID: "freelance", Name: "Freelance", Icon: "laptop", Color: "#27AE60", Type: Income},
		{ID: "investments", Name: "Investments", Icon: "trending-up", Color: "#16A085", Type: Income},
		{ID: "other-income", Name: "Other Income", Icon: "add-circle", Color: "#1ABC9C", Type: Income},
	}
}

// EmptySnapshot is the state of a device that has never saved anything.
func EmptySnapshot() Snapshot {
	return Snapshot{
		Transactions: []Transaction{},
		Categories:   DefaultCategories(),
		Budgets:      []Budget{},
		Settings:     DefaultSettings(),
		SavingsGoals: []SavingsGoal{},
		Recurring:    []RecurringTransaction{},
	}
}

// Clone returns a snapshot whose slices do not alias s.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Transactions = append([]Transaction(nil), s.Transactions...)
	out.Categories = append([]Category(nil), s.Categories...)
	out.Budgets = make([]Budget, len(s.Budgets))
	for i, b := range s.Budgets {
		out.Budgets[i] = b.clone()
	}
	out.SavingsGoals = append([]SavingsGoal(nil), s.SavingsGoals...)
	out.Recurring = append([]RecurringTransaction(nil), s.Recurring...)
	return out
}

func (b Budget) clone() Budget {
	b.CategoryBudgets = append([]CategoryBudget(nil), b.CategoryBudgets...)
	return b
}

// AllocatedTotal sums the category limits of a budget.
func (b Budget) AllocatedTotal() Money {
	var total Money
	for _, cb := range b.CategoryBudgets {
		total.Cents += cb.Limit.Cents
	}
	return total
}

// OverAllocated reports whether category limits exceed the total budget.
// This is a warning for the caller only; budgets are never rejected for it.
func (b Budget) OverAllocated() bool {
	return b.AllocatedTotal().Cents > b.TotalBudget.Cents
}

// MonthKey formats the calendar month containing t, e.g. "2025-01".
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}

// ParseMonthKey parses a "2006-01" key in the given location.
func ParseMonthKey(key string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation("2006-01", strings.TrimSpace(key), loc)
	if err != nil {
		return time.Time{}, invalid("month", "must be formatted as YYYY-MM")
	}
	return t, nil
}

// MonthStart returns the first instant of t's calendar month in t's location.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// AutoTag is the marker carried in the description of materialized transactions.
func AutoTag(description string) string {
	return "[Auto: " + description + "]"
}
