// Package registry implements the operation registry synchronizer:
// upsert-with-fanout, delete-with-fanout and fallback read aggregation
// over a partition store.
package registry

import (
	"context"
	"errors"
	"fmt"

	"opsreg/internal/logging"
	"opsreg/internal/ops"
	"opsreg/internal/store"
)

// Synchronizer fans records out across their tag partitions and merges
// owner and system partitions at read time.
//
// The per-partition read-modify-write is not atomic: concurrent calls
// racing on the same (owner, tag) key are last-writer-wins, and a
// failure partway through a fanout leaves earlier tag partitions updated
// and later ones not. Both Upsert and Delete are idempotent per tag, so
// callers recover from partial fanout by re-running the same call.
type Synchronizer struct {
	store store.PartitionStore
}

// New creates a Synchronizer over the given partition store.
func New(st store.PartitionStore) *Synchronizer {
	return &Synchronizer{store: st}
}

// Upsert writes the record into every partition of its effective tag set
// (declared tags plus "all", deduplicated) for the given owner. Within a
// partition a record with a matching id is replaced in place, preserving
// list position; otherwise the record is appended. Re-registering an
// unchanged record is a pure overwrite, not an error.
func (s *Synchronizer) Upsert(ctx context.Context, owner string, rec ops.Record) error {
	if owner == "" {
		return ErrOwnerEmpty
	}
	if len(rec.Tags) == 0 {
		return fmt.Errorf("%w: %s", ErrNoTags, rec.ID)
	}

	for _, tag := range ops.EffectiveTags(rec.Tags) {
		existing, err := s.store.GetPartition(ctx, owner, tag)
		if errors.Is(err, store.ErrPartitionNotFound) {
			if err := s.store.PutPartition(ctx, owner, tag, []ops.Record{rec}); err != nil {
				return fmt.Errorf("upsert %s under (%s, %s): %w", rec.ID, owner, tag, err)
			}
			logging.RegistryDebug("Created partition (%s, %s) with op %s", owner, tag, rec.ID)
			continue
		}
		if err != nil {
			return fmt.Errorf("upsert %s under (%s, %s): %w", rec.ID, owner, tag, err)
		}

		// Copy-then-replace: the fetched list is treated as immutable.
		next := make([]ops.Record, len(existing))
		copy(next, existing)

		replaced := false
		for i := range next {
			if next[i].ID == rec.ID {
				next[i] = rec
				replaced = true
				break
			}
		}
		if !replaced {
			next = append(next, rec)
		}

		if err := s.store.PutPartition(ctx, owner, tag, next); err != nil {
			return fmt.Errorf("upsert %s under (%s, %s): %w", rec.ID, owner, tag, err)
		}
		if replaced {
			logging.RegistryDebug("Updated op %s in partition (%s, %s)", rec.ID, owner, tag)
		} else {
			logging.RegistryDebug("Appended op %s to partition (%s, %s)", rec.ID, owner, tag)
		}
	}

	logging.Registry("Upserted op %s for owner %s across tags %v", rec.ID, owner, ops.EffectiveTags(rec.Tags))
	return nil
}

// Delete removes the referenced record from every partition of the
// reference's effective tag set. A record is removed only when its
// (id, name, url) triple matches the reference exactly on all three
// fields. A partition emptied by the removal is deleted entirely.
// A reference matching nothing anywhere is a success no-op.
func (s *Synchronizer) Delete(ctx context.Context, owner string, ref ops.Reference) error {
	if owner == "" {
		return ErrOwnerEmpty
	}

	deletedAny := false
	for _, tag := range ops.EffectiveTags(ref.Tags) {
		existing, err := s.store.GetPartition(ctx, owner, tag)
		if errors.Is(err, store.ErrPartitionNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("delete %s under (%s, %s): %w", ref.ID, owner, tag, err)
		}

		filtered := make([]ops.Record, 0, len(existing))
		for _, rec := range existing {
			if ref.Matches(rec) {
				deletedAny = true
				continue
			}
			filtered = append(filtered, rec)
		}
		if len(filtered) == len(existing) {
			continue // nothing removed in this partition
		}

		if len(filtered) == 0 {
			if err := s.store.DeletePartition(ctx, owner, tag); err != nil {
				return fmt.Errorf("delete %s under (%s, %s): %w", ref.ID, owner, tag, err)
			}
			logging.RegistryDebug("Removed empty partition (%s, %s)", owner, tag)
			continue
		}

		if err := s.store.PutPartition(ctx, owner, tag, filtered); err != nil {
			return fmt.Errorf("delete %s under (%s, %s): %w", ref.ID, owner, tag, err)
		}
		logging.RegistryDebug("Removed op %s from partition (%s, %s), %d remain", ref.ID, owner, tag, len(filtered))
	}

	if !deletedAny {
		logging.Registry("No matching operation found for delete of %s (owner %s)", ref.ID, owner)
	}
	return nil
}

// Fetch returns the records stored under (owner, tag), tag defaulting to
// "default". For non-system owners the shared system partition for the
// same tag is appended after the owner's own records; a failure reading
// the system partition is swallowed so the owner still gets their own
// results. No id-collision resolution is performed across the two lists,
// so the same id may appear twice.
func (s *Synchronizer) Fetch(ctx context.Context, owner, tag string) ([]ops.Record, error) {
	if owner == "" {
		return nil, ErrOwnerEmpty
	}
	if tag == "" {
		tag = ops.TagDefault
	}

	records, err := s.store.GetPartition(ctx, owner, tag)
	if errors.Is(err, store.ErrPartitionNotFound) {
		records = []ops.Record{}
	} else if err != nil {
		return nil, fmt.Errorf("fetch (%s, %s): %w", owner, tag, err)
	}

	if owner != ops.OwnerSystem {
		systemRecords, err := s.Fetch(ctx, ops.OwnerSystem, tag)
		if err != nil {
			// Degrade gracefully: an unreachable fallback never fails the read.
			logging.Get(logging.CategoryRegistry).Warn("Failed to retrieve system operations for tag %s: %v", tag, err)
		} else {
			records = append(records, systemRecords...)
		}
	}

	logging.RegistryDebug("Fetched %d ops for (%s, %s)", len(records), owner, tag)
	return records, nil
}
