// Package remote maps ledger entities to the user-scoped remote collections.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/sheets"
)

var ErrNoUser = errors.New("remote: user id is required")

// Client pushes, pulls and deletes entities in the remote document store.
type Client struct {
	docs    sheets.DocumentStore
	changes sheets.ChangePublisher
	logger  *log.Logger
}

// New returns a client over docs. changes may be nil, in which case
// transaction writes are not announced to other devices.
func New(docs sheets.DocumentStore, changes sheets.ChangePublisher, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Discard()
	}
	return &Client{docs: docs, changes: changes, logger: logger.WithComponent(log.ComponentRemote)}
}

func scope(userID string, kind core.Kind) (sheets.Scope, error) {
	if strings.TrimSpace(userID) == "" {
		return sheets.Scope{}, ErrNoUser
	}
	return sheets.Scope{UserID: userID, Collection: kind}, nil
}

// Push upserts v as the document id of the user's kind collection.
func (c *Client) Push(ctx context.Context, userID string, kind core.Kind, id string, v any) error {
	sc, err := scope(userID, kind)
	if err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", kind, id, err)
	}
	if err := c.docs.Upsert(ctx, sc, sheets.Document{ID: id, Data: data}); err != nil {
		return fmt.Errorf("push %s/%s: %w", kind, id, err)
	}
	c.announce(ctx, sheets.Change{Scope: sc, DocumentID: id, Op: sheets.OpUpsert})
	return nil
}

func (c *Client) PushTransaction(ctx context.Context, userID string, tx core.Transaction) error {
	return c.Push(ctx, userID, core.KindTransactions, tx.ID, tx)
}

func (c *Client) PushCategory(ctx context.Context, userID string, cat core.Category) error {
	return c.Push(ctx, userID, core.KindCategories, cat.ID, cat)
}

func (c *Client) PushBudget(ctx context.Context, userID string, b core.Budget) error {
	return c.Push(ctx, userID, core.KindBudgets, b.ID, b)
}

func (c *Client) PushSettings(ctx context.Context, userID string, s core.UserSettings) error {
	return c.Push(ctx, userID, core.KindSettings, core.SettingsDocumentID, s)
}

// Delete removes the document id from the user's kind collection.
func (c *Client) Delete(ctx context.Context, userID string, kind core.Kind, id string) error {
	sc, err := scope(userID, kind)
	if err != nil {
		return err
	}
	if err := c.docs.Delete(ctx, sc, id); err != nil {
		return fmt.Errorf("delete %s/%s: %w", kind, id, err)
	}
	c.announce(ctx, sheets.Change{Scope: sc, DocumentID: id, Op: sheets.OpDelete})
	return nil
}

func (c *Client) PullTransactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	return pull[core.Transaction](ctx, c, userID, core.KindTransactions)
}

func (c *Client) PullCategories(ctx context.Context, userID string) ([]core.Category, error) {
	return pull[core.Category](ctx, c, userID, core.KindCategories)
}

func (c *Client) PullBudgets(ctx context.Context, userID string) ([]core.Budget, error) {
	return pull[core.Budget](ctx, c, userID, core.KindBudgets)
}

// PullSettings returns the settings document, reporting false when the
// user has none yet. Other documents in the collection are ignored.
func (c *Client) PullSettings(ctx context.Context, userID string) (core.UserSettings, bool, error) {
	sc, err := scope(userID, core.KindSettings)
	if err != nil {
		return core.UserSettings{}, false, err
	}
	docs, err := c.docs.List(ctx, sc)
	if err != nil {
		return core.UserSettings{}, false, fmt.Errorf("pull %s: %w", core.KindSettings, err)
	}
	for _, d := range docs {
		if d.ID != core.SettingsDocumentID {
			continue
		}
		var s core.UserSettings
		if err := json.Unmarshal(d.Data, &s); err != nil {
			c.logger.WarnContext(ctx, "Skipping undecodable remote document",
				log.NewFields().WithUser(userID).WithEntity(string(core.KindSettings), d.ID).WithError(err).ToSlice()...)
			return core.UserSettings{}, false, nil
		}
		return s, true, nil
	}
	return core.UserSettings{}, false, nil
}

// pull fetches and decodes every document of a collection. Instants are
// decoded by core.Instant, which accepts both string and server timestamp
// shapes. Undecodable documents are logged and skipped.
func pull[T any](ctx context.Context, c *Client, userID string, kind core.Kind) ([]T, error) {
	sc, err := scope(userID, kind)
	if err != nil {
		return nil, err
	}
	docs, err := c.docs.List(ctx, sc)
	if err != nil {
		return nil, fmt.Errorf("pull %s: %w", kind, err)
	}
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		var v T
		if err := json.Unmarshal(d.Data, &v); err != nil {
			c.logger.WarnContext(ctx, "Skipping undecodable remote document",
				log.NewFields().WithUser(userID).WithEntity(string(kind), d.ID).WithError(err).ToSlice()...)
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// announce publishes transaction changes. Other collections are not
// watched by listeners.
func (c *Client) announce(ctx context.Context, change sheets.Change) {
	if c.changes == nil || change.Scope.Collection != core.KindTransactions {
		return
	}
	if err := c.changes.PublishChange(ctx, change); err != nil {
		c.logger.Failure(ctx, "Failed to publish change", log.OpPush, err,
			log.NewFields().WithUser(change.Scope.UserID).WithEntity(string(change.Scope.Collection), change.DocumentID))
	}
}
