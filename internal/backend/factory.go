package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ledger/internal/amqp"
	"ledger/internal/ledger"
	"ledger/internal/log"
	"ledger/internal/notify"
	"ledger/internal/realtime"
	"ledger/internal/remote"
	"ledger/internal/services"
	gsheet "ledger/internal/sheets/google"
	"ledger/internal/sheets/memory"
	"ledger/internal/storage"
	"ledger/internal/worker"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	blobs, err := storage.OpenSQLite(config.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open local snapshot store: %w", err)
	}
	res := &BackendResult{Blobs: blobs, Notifier: notify.NewLogNotifier(f.logger)}
	closers := []func() error{blobs.Close}

	switch config.Type {
	case SheetsBackend:
		cli, err := gsheet.New(ctx, gsheet.Options{
			SpreadsheetID:   config.GoogleSpreadsheetID,
			CredentialsJSON: config.GoogleServiceAccountJSON,
			CredentialsFile: config.GoogleServiceAccountFile,
		}, f.logger)
		if err != nil {
			blobs.Close()
			return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
		}
		res.Docs = cli
		f.logger.Info("Initialized Google Sheets backend", "spreadsheet_id", config.GoogleSpreadsheetID)
	case MemoryBackend:
		store := memory.New()
		res.Docs = store
		res.Feed = store
		f.logger.Info("Initialized memory backend")
	default:
		blobs.Close()
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}

	// AMQP is optional: without it the ledger still syncs, other devices
	// just see changes on their next bootstrap.
	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPAlertQueue, f.logger)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without change feed", "error", err)
		} else {
			res.AMQP = client
			res.Changes = client
			res.Feed = client
			res.Notifier = client
			closers = append(closers, client.Close)
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"alert_queue", config.AMQPAlertQueue)
		}
	}

	res.Cleanup = func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}
	return res, nil
}

// NewLedger wires a ledger store from the backend's adapters.
func (r *BackendResult) NewLedger(loc *time.Location, logger *log.Logger, opts ...worker.Option) *ledger.Store {
	client := remote.New(r.Docs, r.Changes, logger)
	store := ledger.Options{
		Persist:    storage.NewSnapshots(r.Blobs, logger),
		Remote:     client,
		Alerts:     services.NewBudgetAlerts(r.Notifier, logger, services.WithLocation(loc)),
		Dispatcher: worker.New(logger, opts...),
		Logger:     logger,
		Location:   loc,
	}
	if r.Feed != nil {
		store.Realtime = realtime.New(r.Feed, client, logger)
	}
	return ledger.New(store)
}
