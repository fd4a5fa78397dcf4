package backend

import (
	"context"

	"ledger/internal/amqp"
	"ledger/internal/notify"
	"ledger/internal/realtime"
	"ledger/internal/sheets"
	"ledger/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult holds the adapters a ledger store is wired from.
type BackendResult struct {
	Blobs    storage.BlobStore
	Docs     sheets.DocumentStore
	Changes  sheets.ChangePublisher // nil without AMQP
	Feed     realtime.Feed          // nil when the remote store cannot be watched
	Notifier notify.Notifier
	AMQP     *amqp.Client // nil without AMQP
	Cleanup  CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Remote document store
	Type BackendType

	// Local snapshot
	DBPath string

	// Google Sheets specific
	GoogleSpreadsheetID      string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// AMQP is optional for both backends
	AMQPURL        string
	AMQPExchange   string
	AMQPAlertQueue string
}

// BackendType represents the type of remote document store
type BackendType string

const (
	SheetsBackend BackendType = "sheets"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SheetsBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
