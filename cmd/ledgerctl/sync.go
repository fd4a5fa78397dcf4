package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"ledger/internal/core"
)

func materializeCmd(a *app) *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "materialize",
		Short: "Create the due occurrences of recurring transactions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			now := time.Now()
			if at != "" {
				inst, err := core.ParseInstant(at)
				if err != nil {
					return fmt.Errorf("--now: %w", err)
				}
				now = inst.Time
			}
			report, err := a.store.Materialize(cmd.Context(), now)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Checked %d definitions, created %d, skipped %d\n",
				report.Definitions, len(report.Created), report.Skipped)
			for _, tx := range report.Created {
				fmt.Fprintf(out, "  %s %s %s\n", tx.Date.Time.Format("2006-01-02"), tx.Amount, tx.Description)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&at, "now", "", "evaluate as of this instant (default: now)")
	return cmd
}

func syncCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Bootstrap the ledger against the remote store",
		Long: `sync attaches the configured user, merges each synced collection with the
remote one (remote wins when it has data, local seeds it otherwise) and saves
the result.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfg.UserID == "" {
				return errors.New("sync needs a user id: pass --user or set LEDGER_USER_ID")
			}
			// The root pre-run already attached and waited for the bootstrap.
			snap := a.store.Snapshot()
			fmt.Fprintf(cmd.OutOrStdout(), "Synced %s: %d transactions, %d categories, %d budgets\n",
				a.cfg.UserID, len(snap.Transactions), len(snap.Categories), len(snap.Budgets))
			return nil
		},
	}
}
