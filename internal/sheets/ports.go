// Package sheets defines the ports of the remote document store: per-user
// collections of JSON documents keyed by their own id.
package sheets

import (
	"context"
	"errors"
	"strings"

	"ledger/internal/core"
)

var ErrInvalidScope = errors.New("sheets: scope requires a user id and a collection")

// Scope addresses one user's collection.
type Scope struct {
	UserID     string
	Collection core.Kind
}

func (s Scope) Validate() error {
	if strings.TrimSpace(s.UserID) == "" || s.Collection == "" {
		return ErrInvalidScope
	}
	return nil
}

func (s Scope) String() string {
	return s.UserID + "/" + string(s.Collection)
}

// Document is one record of a collection. Data holds the record as JSON.
type Document struct {
	ID   string
	Data []byte
}

// Ports for outbound adapters.
type (
	DocumentWriter interface {
		// Upsert inserts doc or replaces the document with the same id.
		Upsert(ctx context.Context, scope Scope, doc Document) error
	}

	DocumentReader interface {
		// List returns every document of the collection. A collection that
		// was never written is empty, not an error.
		List(ctx context.Context, scope Scope) ([]Document, error)
	}

	DocumentDeleter interface {
		// Delete removes the document with id. Deleting a missing id is a no-op.
		Delete(ctx context.Context, scope Scope, id string) error
	}

	DocumentStore interface {
		DocumentWriter
		DocumentReader
		DocumentDeleter
	}
)

// ChangeOp is the kind of write a Change reports.
type ChangeOp string

const (
	OpUpsert ChangeOp = "upsert"
	OpDelete ChangeOp = "delete"
)

// Change announces that a document of a collection was written.
type Change struct {
	Scope      Scope
	DocumentID string
	Op         ChangeOp
}

// ChangePublisher fans changes out to other devices of the same user.
type ChangePublisher interface {
	PublishChange(ctx context.Context, change Change) error
}
