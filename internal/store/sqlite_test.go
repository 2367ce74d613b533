package store

import (
	"context"
	"path/filepath"
	"testing"

	"opsreg/internal/ops"

	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "partitions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	records := []ops.Record{
		{
			ID: "op1", Name: "Echo", Description: "echoes input",
			Method: "POST", URL: "/echo", Tags: []string{"default", "all"},
			Params:             []ops.Param{{Name: "msg", Description: "the message"}},
			IncludeAccessToken: true, Type: ops.TypeCustom,
			Parameters: map[string]any{"type": "object"},
		},
	}
	require.NoError(t, s.PutPartition(ctx, "alice", "default", records))

	got, err := s.GetPartition(ctx, "alice", "default")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "op1", got[0].ID)
	require.Equal(t, []string{"default", "all"}, got[0].Tags)
	require.Equal(t, []ops.Param{{Name: "msg", Description: "the message"}}, got[0].Params)
	require.True(t, got[0].IncludeAccessToken)
}

func TestSQLiteStoreNotFound(t *testing.T) {
	s := newTestSQLiteStore(t)

	_, err := s.GetPartition(context.Background(), "alice", "missing")
	require.ErrorIs(t, err, ErrPartitionNotFound)
}

func TestSQLiteStoreOverwrite(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutPartition(ctx, "alice", "default", []ops.Record{{ID: "op1", Name: "v1"}}))
	require.NoError(t, s.PutPartition(ctx, "alice", "default", []ops.Record{{ID: "op1", Name: "v2"}, {ID: "op2"}}))

	got, err := s.GetPartition(ctx, "alice", "default")
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "v2", got[0].Name)
}

func TestSQLiteStoreDeletePartition(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutPartition(ctx, "alice", "default", []ops.Record{{ID: "op1"}}))
	require.NoError(t, s.DeletePartition(ctx, "alice", "default"))

	_, err := s.GetPartition(ctx, "alice", "default")
	require.ErrorIs(t, err, ErrPartitionNotFound)

	// Idempotent: deleting again is fine
	require.NoError(t, s.DeletePartition(ctx, "alice", "default"))
}

func TestSQLiteStorePartitionsAreIndependent(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutPartition(ctx, "alice", "x", []ops.Record{{ID: "op1"}}))
	require.NoError(t, s.PutPartition(ctx, "alice", "y", []ops.Record{{ID: "op2"}}))
	require.NoError(t, s.PutPartition(ctx, "bob", "x", []ops.Record{{ID: "op3"}}))

	got, err := s.GetPartition(ctx, "alice", "x")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "op1", got[0].ID)

	require.NoError(t, s.DeletePartition(ctx, "alice", "x"))

	got, err = s.GetPartition(ctx, "bob", "x")
	require.NoError(t, err)
	require.Equal(t, "op3", got[0].ID)
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "partitions.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.PutPartition(ctx, "system", "all", []ops.Record{{ID: "op1", Name: "Echo"}}))
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetPartition(ctx, "system", "all")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "Echo", got[0].Name)
}
