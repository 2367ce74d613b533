// Package store provides the partition store consumed by the registry
// synchronizer: a keyed table mapping (owner, tag) to an ordered list of
// operation records.
//
// The store is always injected into its consumers, never reached through
// ambient state, so tests can substitute the in-memory backend.
package store

import (
	"context"
	"errors"

	"opsreg/internal/ops"
)

// Store errors.
var (
	// ErrPartitionNotFound is returned by GetPartition when no partition
	// exists for the (owner, tag) key. Callers treat this as empty, not
	// as a failure.
	ErrPartitionNotFound = errors.New("partition not found")
)

// PartitionStore is the contract the synchronizer consumes.
//
// Implementations must return the stored records by value: the
// synchronizer treats fetched lists as immutable inputs and writes back
// fresh lists, so aliasing between reads and writes would hide the
// non-atomic read-modify-write window instead of keeping it explicit.
type PartitionStore interface {
	// GetPartition returns the record list stored under (owner, tag),
	// or ErrPartitionNotFound when the partition does not exist.
	GetPartition(ctx context.Context, owner, tag string) ([]ops.Record, error)

	// PutPartition replaces the record list stored under (owner, tag),
	// creating the partition when absent.
	PutPartition(ctx context.Context, owner, tag string, records []ops.Record) error

	// DeletePartition removes the (owner, tag) key entirely. Deleting
	// an absent partition is not an error.
	DeletePartition(ctx context.Context, owner, tag string) error
}
