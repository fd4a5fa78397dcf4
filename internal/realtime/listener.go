// Package realtime keeps a device's transaction list in step with the
// remote collection while an identity is attached.
package realtime

import (
	"context"
	"sync"
	"sync/atomic"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/sheets"
)

// Feed signals whenever the watched collection changes remotely.
type Feed interface {
	Watch(ctx context.Context, scope sheets.Scope) (<-chan struct{}, func(), error)
}

// Puller fetches the full remote transaction collection.
type Puller interface {
	PullTransactions(ctx context.Context, userID string) ([]core.Transaction, error)
}

type Listener struct {
	feed   Feed
	pull   Puller
	logger *log.Logger
}

func New(feed Feed, pull Puller, logger *log.Logger) *Listener {
	if logger == nil {
		logger = log.Discard()
	}
	return &Listener{feed: feed, pull: pull, logger: logger.WithComponent(log.ComponentRealtime)}
}

// Listen delivers the user's complete transaction collection once on
// subscribe and again after every remote change. Deliveries run on one
// goroutine, never concurrently, and changes that arrive during a pull
// collapse into a single follow-up pull. A failed pull is logged and
// skipped.
//
// The returned function unsubscribes; no delivery starts after it returns.
func (l *Listener) Listen(ctx context.Context, userID string, deliver func([]core.Transaction)) (func(), error) {
	scope := sheets.Scope{UserID: userID, Collection: core.KindTransactions}
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	signals, stopFeed, err := l.feed.Watch(ctx, scope)
	if err != nil {
		cancel()
		return nil, err
	}

	var stopped atomic.Bool
	snapshot := func() {
		txs, err := l.pull.PullTransactions(ctx, userID)
		if err != nil {
			if ctx.Err() == nil {
				l.logger.Failure(ctx, "Realtime pull failed", log.OpSnapshot, err,
					log.NewFields().WithUser(userID).WithEntity(string(core.KindTransactions), ""))
			}
			return
		}
		if stopped.Load() {
			return
		}
		l.logger.DebugContext(ctx, "Delivering remote snapshot", log.FieldUserID, userID, log.FieldCount, len(txs))
		deliver(txs)
	}

	go func() {
		snapshot()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-signals:
				if !ok {
					return
				}
				snapshot()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			stopped.Store(true)
			cancel()
			stopFeed()
			l.logger.DebugContext(context.Background(), "Realtime listener stopped", log.FieldUserID, userID)
		})
	}, nil
}
