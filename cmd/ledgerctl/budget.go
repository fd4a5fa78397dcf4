package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"ledger/internal/core"
)

func budgetCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Set monthly budgets and show their status",
	}
	cmd.AddCommand(budgetSetCmd(a))
	cmd.AddCommand(budgetStatusCmd(a))
	return cmd
}

func budgetSetCmd(a *app) *cobra.Command {
	var (
		total string
		lines []string
	)
	cmd := &cobra.Command{
		Use:     "set <month>",
		Short:   "Create or replace the budget of a month",
		Example: `  ledgerctl budget set 2025-03 --total 1500 --line food=400 --line transport=120`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			totalBudget, err := core.ParseMoney(total)
			if err != nil {
				return fmt.Errorf("--total: %w", err)
			}
			b := core.Budget{Month: args[0], TotalBudget: totalBudget}
			for _, line := range lines {
				cb, err := parseBudgetLine(line)
				if err != nil {
					return err
				}
				b.CategoryBudgets = append(b.CategoryBudgets, cb)
			}
			saved, err := a.store.SetBudget(cmd.Context(), b)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Budget %s for %s: %s\n", saved.ID, saved.Month, saved.TotalBudget)
			if saved.OverAllocated() {
				fmt.Fprintf(out, "Warning: category limits (%s) exceed the total\n", saved.AllocatedTotal())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&total, "total", "", "total budget for the month")
	cmd.Flags().StringArrayVar(&lines, "line", nil, "category limit as <categoryId>=<amount>, repeatable")
	_ = cmd.MarkFlagRequired("total")
	return cmd
}

func parseBudgetLine(s string) (core.CategoryBudget, error) {
	id, amount, ok := strings.Cut(s, "=")
	if !ok || strings.TrimSpace(id) == "" {
		return core.CategoryBudget{}, fmt.Errorf("--line %q: want <categoryId>=<amount>", s)
	}
	limit, err := core.ParseMoney(amount)
	if err != nil {
		return core.CategoryBudget{}, fmt.Errorf("--line %q: %w", s, err)
	}
	return core.CategoryBudget{CategoryID: strings.TrimSpace(id), Limit: limit}, nil
}

func budgetStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status <month>",
		Short: "Show spent against limit per category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := a.store.BudgetStatus(args[0])
			if err != nil {
				return fmt.Errorf("budget %s: %w", args[0], err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Budget %s: spent %s of %s\n", status.Budget.Month, status.TotalSpent, status.Budget.TotalBudget)
			if status.OverAllocated {
				fmt.Fprintln(out, "Warning: category limits exceed the total")
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CATEGORY\tSPENT\tLIMIT\tPERCENT\tHEALTH")
			for _, line := range status.Lines {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s%%\t%s\n",
					line.CategoryID, line.Spent, line.Limit, line.Percent.StringFixed(1), line.Health)
			}
			return w.Flush()
		},
	}
}
