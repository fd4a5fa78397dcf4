package ledger

import (
	"context"
	"strings"
	"sync"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/remote"
	"ledger/internal/worker"
)

// AttachIdentity switches the store to userID. An empty id logs out: every
// listener is unsubscribed and later mutations stay local. A new identity
// starts a background bootstrap; when it completes the merge is applied,
// persisted, and the transaction listener is opened. Results from an
// identity that has since been replaced are dropped.
func (s *Store) AttachIdentity(ctx context.Context, userID string) {
	userID = strings.TrimSpace(userID)

	s.mu.Lock()
	if userID == s.userID {
		s.mu.Unlock()
		return
	}
	s.generation++
	gen := s.generation
	unsubs := s.unsubs
	s.unsubs = nil
	s.userID = userID
	s.mu.Unlock()

	for _, u := range unsubs {
		u()
	}
	if userID == "" {
		s.logger.InfoContext(ctx, "Identity detached")
		return
	}
	s.logger.InfoContext(ctx, "Identity attached", log.FieldUserID, userID)
	if s.remote == nil {
		return
	}

	s.dispatcher.Go(ctx, worker.Task{Op: log.OpBootstrap, UserID: userID}, func(ctx context.Context) error {
		res, err := s.remote.Bootstrap(ctx, userID, s.Snapshot())
		if !s.applyMerge(ctx, gen, res) {
			return err
		}
		if _, subErr := s.subscribe(ctx, gen, userID); subErr != nil {
			s.logger.Failure(ctx, "Realtime subscription failed", log.OpSnapshot, subErr,
				log.NewFields().WithUser(userID))
		}
		return err
	})
}

// applyMerge installs a bootstrap result if gen is still current.
func (s *Store) applyMerge(ctx context.Context, gen uint64, res remote.MergeResult) bool {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		s.logger.DebugContext(ctx, "Discarding stale bootstrap")
		return false
	}
	replaced := res.Replaced()
	if replaced {
		s.state = res.Apply(s.state)
	}
	snap := s.state
	s.mu.Unlock()

	if replaced {
		s.schedulePersist(ctx, snap)
	}
	return true
}

// SubscribeRealtime opens the transaction listener for the attached
// identity. Every delivery replaces the local transactions wholesale and
// is persisted. Without an identity it does nothing.
func (s *Store) SubscribeRealtime(ctx context.Context) (func(), error) {
	s.mu.Lock()
	user, gen := s.userID, s.generation
	s.mu.Unlock()
	return s.subscribe(ctx, gen, user)
}

func (s *Store) subscribe(ctx context.Context, gen uint64, userID string) (func(), error) {
	if userID == "" || s.realtime == nil {
		return func() {}, nil
	}
	stop, err := s.realtime.Listen(ctx, userID, func(txs []core.Transaction) {
		s.replaceTransactions(ctx, gen, txs)
	})
	if err != nil {
		return nil, err
	}
	var once sync.Once
	unsub := func() { once.Do(stop) }

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		unsub()
		return func() {}, nil
	}
	s.unsubs = append(s.unsubs, unsub)
	s.mu.Unlock()
	return unsub, nil
}

func (s *Store) replaceTransactions(ctx context.Context, gen uint64, txs []core.Transaction) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}
	next := s.state
	next.Transactions = append([]core.Transaction{}, txs...)
	s.state = next
	s.mu.Unlock()

	s.logger.DebugContext(ctx, "Transactions replaced from remote", log.FieldCount, len(txs))
	s.schedulePersist(ctx, next)
}
