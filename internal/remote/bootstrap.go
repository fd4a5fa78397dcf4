package remote

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"ledger/internal/core"
	"ledger/internal/log"
)

// seedConcurrency bounds the individual pushes issued while seeding.
const seedConcurrency = 4

// MergeResult holds the collections that replace local state. A nil field
// means the local collection stays as it is.
type MergeResult struct {
	Transactions []core.Transaction
	Categories   []core.Category
	Budgets      []core.Budget
	Settings     *core.UserSettings

	// Seeded counts the local items pushed per kind because remote was empty.
	Seeded map[core.Kind]int
}

// Apply returns snap with the replaced collections swapped in.
func (m MergeResult) Apply(snap core.Snapshot) core.Snapshot {
	out := snap.Clone()
	if m.Transactions != nil {
		out.Transactions = m.Transactions
	}
	if m.Categories != nil {
		out.Categories = m.Categories
	}
	if m.Budgets != nil {
		out.Budgets = m.Budgets
	}
	if m.Settings != nil {
		out.Settings = *m.Settings
	}
	return out
}

// Replaced reports whether any local collection is superseded.
func (m MergeResult) Replaced() bool {
	return m.Transactions != nil || m.Categories != nil || m.Budgets != nil || m.Settings != nil
}

// Bootstrap reconciles local with the user's remote collections, one
// collection at a time: a non-empty remote collection replaces the local
// one, an empty one is seeded with every local item. Each collection is
// best-effort; failures are joined into the returned error and never
// retried.
func (c *Client) Bootstrap(ctx context.Context, userID string, local core.Snapshot) (MergeResult, error) {
	if _, err := scope(userID, core.KindTransactions); err != nil {
		return MergeResult{}, err
	}

	var (
		txs                           []core.Transaction
		cats                          []core.Category
		budgets                       []core.Budget
		settings                      core.UserSettings
		hasSettings                   bool
		txErr, catErr, budErr, setErr error
	)

	// Pull errors are kept per collection so one failure does not cancel
	// the other pulls.
	var g errgroup.Group
	g.Go(func() error { txs, txErr = c.PullTransactions(ctx, userID); return nil })
	g.Go(func() error { cats, catErr = c.PullCategories(ctx, userID); return nil })
	g.Go(func() error { budgets, budErr = c.PullBudgets(ctx, userID); return nil })
	g.Go(func() error { settings, hasSettings, setErr = c.PullSettings(ctx, userID); return nil })
	g.Wait()

	res := MergeResult{Seeded: make(map[core.Kind]int)}
	var errs []error

	switch {
	case txErr != nil:
		errs = append(errs, txErr)
	case len(txs) > 0:
		res.Transactions = txs
	default:
		n, err := seed(ctx, local.Transactions, func(ctx context.Context, tx core.Transaction) error {
			return c.PushTransaction(ctx, userID, tx)
		})
		res.Seeded[core.KindTransactions] = n
		errs = append(errs, err)
	}

	switch {
	case catErr != nil:
		errs = append(errs, catErr)
	case len(cats) > 0:
		res.Categories = cats
	default:
		n, err := seed(ctx, local.Categories, func(ctx context.Context, cat core.Category) error {
			return c.PushCategory(ctx, userID, cat)
		})
		res.Seeded[core.KindCategories] = n
		errs = append(errs, err)
	}

	switch {
	case budErr != nil:
		errs = append(errs, budErr)
	case len(budgets) > 0:
		res.Budgets = budgets
	default:
		n, err := seed(ctx, local.Budgets, func(ctx context.Context, b core.Budget) error {
			return c.PushBudget(ctx, userID, b)
		})
		res.Seeded[core.KindBudgets] = n
		errs = append(errs, err)
	}

	switch {
	case setErr != nil:
		errs = append(errs, setErr)
	case hasSettings:
		res.Settings = &settings
	default:
		if err := c.PushSettings(ctx, userID, local.Settings); err != nil {
			errs = append(errs, err)
		} else {
			res.Seeded[core.KindSettings] = 1
		}
	}

	err := errors.Join(errs...)
	fields := log.NewFields().WithUser(userID).WithOperation(log.OpBootstrap)
	if err != nil {
		c.logger.Failure(ctx, "Bootstrap merge incomplete", log.OpBootstrap, err, fields)
	} else {
		c.logger.InfoContext(ctx, "Bootstrap merge complete",
			append(fields.ToSlice(), "replaced", res.Replaced(), "seeded", res.Seeded)...)
	}
	return res, err
}

// seed pushes every item individually and returns how many succeeded.
func seed[T any](ctx context.Context, items []T, push func(context.Context, T) error) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(seedConcurrency)

	ok := make([]bool, len(items))
	errs := make([]error, len(items))
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			if err := push(gctx, item); err != nil {
				errs[i] = err
				return nil
			}
			ok[i] = true
			return nil
		})
	}
	g.Wait()

	n := 0
	for _, v := range ok {
		if v {
			n++
		}
	}
	if err := errors.Join(errs...); err != nil {
		return n, fmt.Errorf("seed %d of %d failed: %w", len(items)-n, len(items), err)
	}
	return n, nil
}
