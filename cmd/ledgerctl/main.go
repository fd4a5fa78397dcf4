package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ledger/internal/backend"
	"ledger/internal/cli"
	"ledger/internal/config"
	"ledger/internal/ledger"
	"ledger/internal/log"
)

// app holds what every subcommand needs once the root pre-run has opened it.
type app struct {
	user     string
	dbPath   string
	logLevel string

	cfg     *config.Config
	logger  *log.Logger
	backend *backend.BackendResult
	store   *ledger.Store
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Operate on the local ledger and its remote mirror",
		Long: `ledgerctl reads and changes the on-device ledger snapshot.

With a user id (--user or LEDGER_USER_ID) the ledger is bootstrapped against
the remote store first and every change is pushed; without one it works
offline.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.open,
	}

	root.PersistentFlags().StringVar(&a.user, "user", "", "user id to attach (default: LEDGER_USER_ID)")
	root.PersistentFlags().StringVar(&a.dbPath, "db", "", "snapshot database path (default: LEDGER_DB_PATH)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(txCmd(a))
	root.AddCommand(budgetCmd(a))
	root.AddCommand(materializeCmd(a))
	root.AddCommand(syncCmd(a))
	return root
}

func (a *app) open(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg := config.Load()
	if a.dbPath != "" {
		cfg.DBPath = a.dbPath
	}
	if a.user != "" {
		cfg.UserID = a.user
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = cli.SetupLogger(cfg.LogLevel)

	res, err := cli.OpenBackend(ctx, a.logger, cfg)
	if err != nil {
		return err
	}
	a.backend = res
	a.store = res.NewLedger(cfg.Location(), a.logger)
	if err := a.store.Load(ctx); err != nil {
		a.logger.Warn("Snapshot partially loaded", log.FieldError, err)
	}
	if cfg.UserID != "" {
		a.store.AttachIdentity(ctx, cfg.UserID)
		a.store.Wait()
	}
	return nil
}

// close drains background pushes, saves and releases the backend.
func (a *app) close(ctx context.Context) error {
	if a.store == nil {
		return nil
	}
	a.store.Close()
	err := a.store.Save(ctx)
	if cerr := a.backend.Cleanup(); err == nil {
		err = cerr
	}
	return err
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	a := &app{}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if cerr := a.close(context.WithoutCancel(ctx)); err == nil {
		err = cerr
	}
	return err
}

func main() {
	cli.LoadEnvFile()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
