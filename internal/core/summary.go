package core

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Health is the spend-vs-limit state of a budget line.
type Health string

const (
	HealthGood    Health = "good"
	HealthWarning Health = "warning"
	HealthDanger  Health = "danger"
)

// AlertTier is a threshold crossing, in percent of the limit.
type AlertTier int

const (
	TierNone     AlertTier = 0
	TierWarning  AlertTier = 75
	TierDanger   AlertTier = 90
	TierExceeded AlertTier = 100
)

// BudgetHealth classifies spent against limit on half-open intervals:
// [0,75) good, [75,90) warning, [90,∞) danger. A non-positive limit is good.
func BudgetHealth(spent, limit Money) Health {
	switch {
	case limit.Cents <= 0:
		return HealthGood
	case reached(spent, limit, TierDanger):
		return HealthDanger
	case reached(spent, limit, TierWarning):
		return HealthWarning
	default:
		return HealthGood
	}
}

// CrossedTier returns the highest tier reached by spent against limit.
func CrossedTier(spent, limit Money) AlertTier {
	if limit.Cents <= 0 {
		return TierNone
	}
	for _, tier := range []AlertTier{TierExceeded, TierDanger, TierWarning} {
		if reached(spent, limit, tier) {
			return tier
		}
	}
	return TierNone
}

// reached compares spent/limit >= tier% in integer arithmetic.
func reached(spent, limit Money, tier AlertTier) bool {
	return spent.Cents*100 >= int64(tier)*limit.Cents
}

// CategoryAmount represents an amount aggregated by category.
type CategoryAmount struct {
	CategoryID string
	Amount     Money
}

// CategoryStatus is one line of a month's budget status.
type CategoryStatus struct {
	CategoryBudget
	Percent decimal.Decimal
	Health  Health
}

// BudgetStatus is a budget with spent recomputed from the ledger.
type BudgetStatus struct {
	Budget        Budget
	Lines         []CategoryStatus
	TotalSpent    Money
	OverAllocated bool
}

// BudgetAlert describes one threshold crossing decided by the alert engine.
type BudgetAlert struct {
	CategoryID   string
	CategoryName string
	Tier         AlertTier
	Spent        Money
	Limit        Money
	Percent      decimal.Decimal
	WindowStart  time.Time
	WindowEnd    time.Time
}

// Title is the notification headline for the alert.
func (a BudgetAlert) Title() string {
	switch a.Tier {
	case TierExceeded:
		return "Budget exceeded"
	case TierDanger:
		return "Budget almost reached"
	default:
		return "Budget warning"
	}
}

// Body is the notification text for the alert.
func (a BudgetAlert) Body() string {
	if a.Tier == TierExceeded {
		return fmt.Sprintf("You have spent %s of your %s budget for %s this month (%s%%).",
			a.Spent, a.Limit, a.CategoryName, wholePercent(a.Percent))
	}
	return fmt.Sprintf("You have used %s%% of your %s budget for %s this month.",
		wholePercent(a.Percent), a.Limit, a.CategoryName)
}

// wholePercent truncates so the text never reads above the tier crossed.
func wholePercent(p decimal.Decimal) string {
	return p.Truncate(0).String()
}
