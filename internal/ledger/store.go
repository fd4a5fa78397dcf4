// Package ledger is the session's single in-memory source of truth. Every
// mutation applies synchronously and then schedules its I/O: a full
// snapshot persist, and a remote push or delete when an identity is
// attached.
package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/remote"
	"ledger/internal/services"
	"ledger/internal/worker"
)

// Persister reads and writes the on-device snapshot.
type Persister interface {
	Save(ctx context.Context, snap core.Snapshot) error
	Load(ctx context.Context) (core.Snapshot, error)
}

// RemoteSync mirrors the synced collections to the remote store.
type RemoteSync interface {
	PushTransaction(ctx context.Context, userID string, tx core.Transaction) error
	PushCategory(ctx context.Context, userID string, cat core.Category) error
	PushBudget(ctx context.Context, userID string, b core.Budget) error
	PushSettings(ctx context.Context, userID string, s core.UserSettings) error
	Delete(ctx context.Context, userID string, kind core.Kind, id string) error
	Bootstrap(ctx context.Context, userID string, local core.Snapshot) (remote.MergeResult, error)
}

// Subscriber delivers remote transaction snapshots.
type Subscriber interface {
	Listen(ctx context.Context, userID string, deliver func([]core.Transaction)) (func(), error)
}

// AlertEvaluator decides on budget alerts after expense commits.
type AlertEvaluator interface {
	Evaluate(ctx context.Context, tx core.Transaction, view services.LedgerView) (*core.BudgetAlert, error)
}

// Options wires a Store. Persist is required; everything else is optional.
type Options struct {
	Persist    Persister
	Remote     RemoteSync
	Realtime   Subscriber
	Alerts     AlertEvaluator
	Dispatcher *worker.Dispatcher
	Logger     *log.Logger
	Location   *time.Location
	Now        func() time.Time
	NewID      func() string
}

type Store struct {
	mu         sync.Mutex
	state      core.Snapshot
	userID     string
	generation uint64
	unsubs     []func()

	persist      Persister
	remote       RemoteSync
	realtime     Subscriber
	alerts       AlertEvaluator
	dispatcher   *worker.Dispatcher
	materializer *services.RecurringMaterializer
	logger       *log.Logger
	loc          *time.Location
	now          func() time.Time
	newID        func() string
}

// New constructs a Store holding the first-run state. Call Load to read
// the persisted snapshot.
func New(opts Options) *Store {
	s := &Store{
		state:      core.EmptySnapshot(),
		persist:    opts.Persist,
		remote:     opts.Remote,
		realtime:   opts.Realtime,
		alerts:     opts.Alerts,
		dispatcher: opts.Dispatcher,
		logger:     opts.Logger,
		loc:        opts.Location,
		now:        opts.Now,
		newID:      opts.NewID,
	}
	if s.logger == nil {
		s.logger = log.Discard()
	}
	s.logger = s.logger.WithComponent(log.ComponentLedger)
	if s.dispatcher == nil {
		s.dispatcher = worker.New(s.logger)
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	s.materializer = services.NewRecurringMaterializer(s, s.loc, s.logger)
	return s
}

// Load replaces the in-memory state with the persisted snapshot. Missing
// or unreadable collections come back as their defaults; the error reports
// the unreadable ones.
func (s *Store) Load(ctx context.Context) error {
	snap, err := s.persist.Load(ctx)
	s.mu.Lock()
	s.state = snap
	s.mu.Unlock()
	if err != nil {
		s.logger.Failure(ctx, "Snapshot partially loaded", log.OpLoad, err, nil)
	}
	return err
}

// Save persists the current state and waits for the write.
func (s *Store) Save(ctx context.Context) error {
	return s.persist.Save(ctx, s.Snapshot())
}

// Wait blocks until every scheduled background task has finished.
func (s *Store) Wait() {
	s.dispatcher.Wait()
}

// Close unsubscribes every listener and drains background tasks.
func (s *Store) Close() {
	s.mu.Lock()
	unsubs := s.unsubs
	s.unsubs = nil
	s.generation++
	s.mu.Unlock()
	for _, u := range unsubs {
		u()
	}
	s.Wait()
}

// Materialize creates the due occurrences of every recurring definition.
func (s *Store) Materialize(ctx context.Context, now time.Time) (services.MaterializeReport, error) {
	return s.materializer.Materialize(ctx, now)
}

// commit applies mutate to a shallow copy of the state and installs it.
// mutate must replace any slice it changes rather than write into it, so
// snapshots handed to background tasks never change underneath them.
func (s *Store) commit(mutate func(st *core.Snapshot) error) (core.Snapshot, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.state
	if err := mutate(&next); err != nil {
		return core.Snapshot{}, "", err
	}
	s.state = next
	return next, s.userID, nil
}

func (s *Store) schedulePersist(ctx context.Context, snap core.Snapshot) {
	s.dispatcher.Go(ctx, worker.Task{Op: log.OpPersist}, func(ctx context.Context) error {
		return s.persist.Save(ctx, snap)
	})
}

// schedulePush runs push only when an identity is attached.
func (s *Store) schedulePush(ctx context.Context, userID string, kind core.Kind, id string, push func(ctx context.Context) error) {
	if userID == "" || s.remote == nil {
		s.logger.DebugContext(ctx, "No identity, skipping push", log.FieldKind, string(kind), log.FieldEntityID, id)
		return
	}
	s.dispatcher.Go(ctx, worker.Task{Op: log.OpPush, Kind: string(kind), ID: id, UserID: userID}, push)
}

func (s *Store) scheduleDelete(ctx context.Context, userID string, kind core.Kind, id string) {
	if userID == "" || s.remote == nil {
		return
	}
	s.dispatcher.Go(ctx, worker.Task{Op: log.OpDelete, Kind: string(kind), ID: id, UserID: userID}, func(ctx context.Context) error {
		return s.remote.Delete(ctx, userID, kind, id)
	})
}

// evaluateAlerts runs the alert engine for expense commits. Its failures
// are logged; the mutation has already succeeded.
func (s *Store) evaluateAlerts(ctx context.Context, tx core.Transaction, snap core.Snapshot) {
	if s.alerts == nil || tx.Type != core.Expense {
		return
	}
	_, err := s.alerts.Evaluate(ctx, tx, services.LedgerView{Transactions: snap.Transactions, Categories: snap.Categories})
	if err != nil {
		s.logger.Failure(ctx, "Budget alert failed", log.OpAlert, err,
			log.NewFields().WithEntity(string(core.KindTransactions), tx.ID))
	}
}

// uniqueID draws ids until one is unused according to taken.
func (s *Store) uniqueID(taken func(string) bool) string {
	for {
		if id := s.newID(); id != "" && !taken(id) {
			return id
		}
	}
}

func (s *Store) stamp() core.Instant {
	return core.NewInstant(s.now())
}

func indexOf[T any](items []T, match func(T) bool) int {
	for i, v := range items {
		if match(v) {
			return i
		}
	}
	return -1
}

func appendCopy[T any](items []T, v T) []T {
	out := make([]T, 0, len(items)+1)
	out = append(out, items...)
	return append(out, v)
}

func replaceAt[T any](items []T, i int, v T) []T {
	out := append([]T(nil), items...)
	out[i] = v
	return out
}

func removeAt[T any](items []T, i int) []T {
	out := make([]T, 0, len(items)-1)
	out = append(out, items[:i]...)
	return append(out, items[i+1:]...)
}
