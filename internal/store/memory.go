package store

import (
	"context"
	"sync"

	"opsreg/internal/ops"
)

type partitionKey struct {
	owner string
	tag   string
}

// MemoryStore is a map-backed PartitionStore. It copies record lists on
// the way in and out so callers never alias stored state. Used by tests
// and by dry-run scans that should not touch the real database.
type MemoryStore struct {
	mu         sync.RWMutex
	partitions map[partitionKey][]ops.Record
}

// NewMemoryStore creates an empty in-memory partition store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		partitions: make(map[partitionKey][]ops.Record),
	}
}

// GetPartition returns a copy of the record list stored under (owner, tag).
func (s *MemoryStore) GetPartition(ctx context.Context, owner, tag string) ([]ops.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records, ok := s.partitions[partitionKey{owner, tag}]
	if !ok {
		return nil, ErrPartitionNotFound
	}
	out := make([]ops.Record, len(records))
	copy(out, records)
	return out, nil
}

// PutPartition stores a copy of the record list under (owner, tag).
func (s *MemoryStore) PutPartition(ctx context.Context, owner, tag string, records []ops.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]ops.Record, len(records))
	copy(stored, records)
	s.partitions[partitionKey{owner, tag}] = stored
	return nil
}

// DeletePartition removes the (owner, tag) key entirely.
func (s *MemoryStore) DeletePartition(ctx context.Context, owner, tag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.partitions, partitionKey{owner, tag})
	return nil
}

// Len returns the number of stored partitions.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.partitions)
}

// Has reports whether a partition exists for (owner, tag).
func (s *MemoryStore) Has(owner, tag string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.partitions[partitionKey{owner, tag}]
	return ok
}
