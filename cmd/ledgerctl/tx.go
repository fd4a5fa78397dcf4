package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"ledger/internal/core"
)

func txCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tx",
		Short: "Add, list and delete transactions",
	}
	cmd.AddCommand(txAddCmd(a))
	cmd.AddCommand(txListCmd(a))
	cmd.AddCommand(txDeleteCmd(a))
	return cmd
}

func txAddCmd(a *app) *cobra.Command {
	var (
		amount      string
		txType      string
		category    string
		description string
		date        string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a transaction",
		Example: `  ledgerctl tx add --amount 12.50 --category food --description "Lunch"
  ledgerctl tx add --amount 2500 --type income --category salary --date 2025-03-01`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			money, err := core.ParseMoney(amount)
			if err != nil {
				return fmt.Errorf("--amount: %w", err)
			}
			at := core.NewInstant(time.Now())
			if date != "" {
				if at, err = core.ParseInstant(date); err != nil {
					return fmt.Errorf("--date: %w", err)
				}
			}
			tx, err := a.store.AddTransaction(cmd.Context(), core.Transaction{
				Amount:      money,
				Type:        core.TransactionType(txType),
				CategoryID:  category,
				Description: description,
				Date:        at,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s %s %s (%s)\n", tx.ID, tx.Type, tx.Amount, tx.CategoryID)
			return nil
		},
	}
	cmd.Flags().StringVar(&amount, "amount", "", "positive amount, e.g. 12.50")
	cmd.Flags().StringVar(&txType, "type", string(core.Expense), "income or expense")
	cmd.Flags().StringVar(&category, "category", "", "category id")
	cmd.Flags().StringVar(&description, "description", "", "free text")
	cmd.Flags().StringVar(&date, "date", "", "ISO-8601 date or instant (default: now)")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}

func txListCmd(a *app) *cobra.Command {
	var month string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions, optionally for one month",
		RunE: func(cmd *cobra.Command, _ []string) error {
			txs := a.store.Transactions()
			if month != "" {
				var err error
				if txs, err = a.store.TransactionsInMonth(month); err != nil {
					return err
				}
			}
			out := cmd.OutOrStdout()
			if len(txs) == 0 {
				fmt.Fprintln(out, "No transactions found.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tDATE\tTYPE\tAMOUNT\tCATEGORY\tDESCRIPTION")
			for _, tx := range txs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					tx.ID, tx.Date.Time.In(a.cfg.Location()).Format("2006-01-02"), tx.Type, tx.Amount, tx.CategoryID, tx.Description)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&month, "month", "", "month key, e.g. 2025-03")
	return cmd
}

func txDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.store.DeleteTransaction(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("delete %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}
