package storage

import (
	"context"
	"errors"
	"sync"
)

var errInterrupted = errors.New("storage: batch interrupted")

// Blob is one keyed value of the on-device store.
type Blob struct {
	Key   string
	Value []byte
}

// BlobStore is the on-device key-value store the snapshot is written to.
//
// SetMany writes every blob in one call but makes no atomicity promise
// across them: a failure part way leaves earlier keys written.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	SetMany(ctx context.Context, blobs []Blob) error
}

// MemoryBlobs is an in-process BlobStore.
type MemoryBlobs struct {
	mu     sync.Mutex
	data   map[string][]byte
	writes int

	// FailAfter, when positive, makes SetMany fail once that many blobs
	// have been written in total. Used to simulate a crash mid-batch.
	FailAfter int
	// Err is returned by every call when set.
	Err error
}

func NewMemoryBlobs() *MemoryBlobs {
	return &MemoryBlobs{data: make(map[string][]byte)}
}

func (m *MemoryBlobs) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, false, m.Err
	}
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *MemoryBlobs) SetMany(_ context.Context, blobs []Blob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	for _, b := range blobs {
		if m.FailAfter > 0 && m.writes >= m.FailAfter {
			return errInterrupted
		}
		m.data[b.Key] = append([]byte(nil), b.Value...)
		m.writes++
	}
	return nil
}

// Writes reports how many individual blobs have been written.
func (m *MemoryBlobs) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}
