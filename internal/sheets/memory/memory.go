// Package memory is an in-process remote document store. It also acts as a
// change feed so listeners can be exercised without a broker.
package memory

import (
	"context"
	"sync"

	"ledger/internal/sheets"
)

type collection struct {
	order []string
	docs  map[string][]byte
}

type watcher struct {
	scope sheets.Scope
	ch    chan struct{}
}

type Store struct {
	mu          sync.Mutex
	collections map[sheets.Scope]*collection
	upserts     map[sheets.Scope]int
	deletes     map[sheets.Scope]int
	watchers    map[int]watcher
	nextWatcher int

	failErr        error
	failCollection string
}

var _ sheets.DocumentStore = (*Store)(nil)

func New() *Store {
	return &Store{
		collections: make(map[sheets.Scope]*collection),
		upserts:     make(map[sheets.Scope]int),
		deletes:     make(map[sheets.Scope]int),
		watchers:    make(map[int]watcher),
	}
}

// FailWith makes operations on collection (or on every collection when
// collection is empty) return err. A nil err clears the failure.
func (s *Store) FailWith(collection string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
	s.failCollection = collection
}

// Seed stores docs without counting them as upserts or notifying watchers.
func (s *Store) Seed(scope sheets.Scope, docs ...sheets.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range docs {
		s.put(scope, d)
	}
}

func (s *Store) Upsert(_ context.Context, scope sheets.Scope, doc sheets.Document) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure(scope); err != nil {
		return err
	}
	s.put(scope, doc)
	s.upserts[scope]++
	s.notify(scope)
	return nil
}

func (s *Store) List(_ context.Context, scope sheets.Scope) ([]sheets.Document, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure(scope); err != nil {
		return nil, err
	}
	c := s.collections[scope]
	if c == nil {
		return []sheets.Document{}, nil
	}
	out := make([]sheets.Document, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, sheets.Document{ID: id, Data: append([]byte(nil), c.docs[id]...)})
	}
	return out, nil
}

func (s *Store) Delete(_ context.Context, scope sheets.Scope, id string) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure(scope); err != nil {
		return err
	}
	s.deletes[scope]++
	c := s.collections[scope]
	if c == nil {
		return nil
	}
	if _, ok := c.docs[id]; !ok {
		return nil
	}
	delete(c.docs, id)
	for i, v := range c.order {
		if v == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	s.notify(scope)
	return nil
}

// Touch notifies watchers of scope as if a remote writer had changed it.
func (s *Store) Touch(scope sheets.Scope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notify(scope)
}

// Watch signals on the returned channel after every change to scope.
// Signals coalesce: a slow reader sees one pending signal, not a backlog.
func (s *Store) Watch(ctx context.Context, scope sheets.Scope) (<-chan struct{}, func(), error) {
	if err := scope.Validate(); err != nil {
		return nil, nil, err
	}
	s.mu.Lock()
	id := s.nextWatcher
	s.nextWatcher++
	ch := make(chan struct{}, 1)
	s.watchers[id] = watcher{scope: scope, ch: ch}
	s.mu.Unlock()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.watchers, id)
			s.mu.Unlock()
			close(ch)
		})
	}
	go func() {
		<-ctx.Done()
		stop()
	}()
	return ch, stop, nil
}

// Upserts reports how many upserts reached scope.
func (s *Store) Upserts(scope sheets.Scope) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upserts[scope]
}

// Deletes reports how many delete calls reached scope.
func (s *Store) Deletes(scope sheets.Scope) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deletes[scope]
}

// Watchers reports the number of open watches.
func (s *Store) Watchers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watchers)
}

func (s *Store) put(scope sheets.Scope, d sheets.Document) {
	c := s.collections[scope]
	if c == nil {
		c = &collection{docs: make(map[string][]byte)}
		s.collections[scope] = c
	}
	if _, ok := c.docs[d.ID]; !ok {
		c.order = append(c.order, d.ID)
	}
	c.docs[d.ID] = append([]byte(nil), d.Data...)
}

func (s *Store) failure(scope sheets.Scope) error {
	if s.failErr == nil {
		return nil
	}
	if s.failCollection == "" || s.failCollection == string(scope.Collection) {
		return s.failErr
	}
	return nil
}

// notify must be called with s.mu held.
func (s *Store) notify(scope sheets.Scope) {
	for _, w := range s.watchers {
		if w.scope != scope {
			continue
		}
		select {
		case w.ch <- struct{}{}:
		default:
		}
	}
}
