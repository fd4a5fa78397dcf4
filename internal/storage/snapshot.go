package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ledger/internal/core"
	"ledger/internal/log"
)

const keyPrefix = "@ledger/"

// Key returns the blob key a collection is stored under.
func Key(kind core.Kind) string {
	return keyPrefix + string(kind)
}

// Snapshots reads and writes the ledger snapshot as one blob per collection.
type Snapshots struct {
	blobs  BlobStore
	logger *log.Logger
}

func NewSnapshots(blobs BlobStore, logger *log.Logger) *Snapshots {
	if logger == nil {
		logger = log.Discard()
	}
	return &Snapshots{blobs: blobs, logger: logger.WithComponent(log.ComponentStorage)}
}

// Save overwrites every collection blob with the contents of snap.
func (s *Snapshots) Save(ctx context.Context, snap core.Snapshot) error {
	start := time.Now()
	parts := []struct {
		kind core.Kind
		v    any
	}{
		{core.KindTransactions, nonNil(snap.Transactions)},
		{core.KindCategories, nonNil(snap.Categories)},
		{core.KindBudgets, nonNil(snap.Budgets)},
		{core.KindSettings, snap.Settings},
		{core.KindSavingsGoals, nonNil(snap.SavingsGoals)},
		{core.KindRecurring, nonNil(snap.Recurring)},
	}

	blobs := make([]Blob, 0, len(parts))
	for _, p := range parts {
		data, err := json.Marshal(p.v)
		if err != nil {
			return fmt.Errorf("encode %s: %w", p.kind, err)
		}
		blobs = append(blobs, Blob{Key: Key(p.kind), Value: data})
	}

	if err := s.blobs.SetMany(ctx, blobs); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	s.logger.DebugContext(ctx, "Snapshot saved",
		log.FieldOperation, log.OpPersist,
		log.FieldCount, len(snap.Transactions),
		log.FieldDuration, time.Since(start).Milliseconds())
	return nil
}

// Load reads every collection blob. An absent key yields that collection's
// default. An unreadable or corrupt blob also yields the default; the
// problems are joined into the returned error alongside a usable snapshot.
func (s *Snapshots) Load(ctx context.Context) (core.Snapshot, error) {
	snap := core.EmptySnapshot()
	err := errors.Join(
		read(ctx, s.blobs, core.KindTransactions, &snap.Transactions),
		read(ctx, s.blobs, core.KindCategories, &snap.Categories),
		read(ctx, s.blobs, core.KindBudgets, &snap.Budgets),
		read(ctx, s.blobs, core.KindSettings, &snap.Settings),
		read(ctx, s.blobs, core.KindSavingsGoals, &snap.SavingsGoals),
		read(ctx, s.blobs, core.KindRecurring, &snap.Recurring),
	)

	s.logger.DebugContext(ctx, "Snapshot loaded",
		log.FieldOperation, log.OpLoad,
		log.FieldCount, len(snap.Transactions))
	return snap, err
}

// read decodes the blob for kind into dst, leaving dst untouched when the
// key is absent or the blob cannot be decoded. Instants are revived by
// core.Instant's decoder on every record.
func read[T any](ctx context.Context, blobs BlobStore, kind core.Kind, dst *T) error {
	data, ok, err := blobs.Get(ctx, Key(kind))
	if err != nil {
		return fmt.Errorf("read %s: %w", kind, err)
	}
	if !ok || len(data) == 0 || string(data) == "null" {
		return nil
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("decode %s: %w", kind, err)
	}
	*dst = v
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
