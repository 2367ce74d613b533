package store

import (
	"context"
	"errors"
	"testing"

	"opsreg/internal/ops"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	records := []ops.Record{{ID: "op1", Name: "Echo", URL: "/echo"}}
	if err := s.PutPartition(ctx, "alice", "default", records); err != nil {
		t.Fatalf("PutPartition failed: %v", err)
	}

	got, err := s.GetPartition(ctx, "alice", "default")
	if err != nil {
		t.Fatalf("GetPartition failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != "op1" {
		t.Errorf("got %v, want one record op1", got)
	}
}

func TestMemoryStoreNotFound(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.GetPartition(context.Background(), "alice", "missing")
	if !errors.Is(err, ErrPartitionNotFound) {
		t.Errorf("err = %v, want ErrPartitionNotFound", err)
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.PutPartition(ctx, "alice", "default", []ops.Record{{ID: "op1"}}); err != nil {
		t.Fatalf("PutPartition failed: %v", err)
	}
	if err := s.DeletePartition(ctx, "alice", "default"); err != nil {
		t.Fatalf("DeletePartition failed: %v", err)
	}
	if _, err := s.GetPartition(ctx, "alice", "default"); !errors.Is(err, ErrPartitionNotFound) {
		t.Errorf("err = %v, want ErrPartitionNotFound after delete", err)
	}

	// Deleting an absent partition is not an error
	if err := s.DeletePartition(ctx, "alice", "default"); err != nil {
		t.Errorf("deleting absent partition: %v", err)
	}
}

func TestMemoryStoreCopiesOnReadAndWrite(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	in := []ops.Record{{ID: "op1", Name: "Echo"}}
	if err := s.PutPartition(ctx, "alice", "default", in); err != nil {
		t.Fatalf("PutPartition failed: %v", err)
	}

	// Mutating the caller's slice must not affect stored state.
	in[0].Name = "Mutated"

	got, err := s.GetPartition(ctx, "alice", "default")
	if err != nil {
		t.Fatalf("GetPartition failed: %v", err)
	}
	if got[0].Name != "Echo" {
		t.Errorf("stored record mutated through caller slice: %q", got[0].Name)
	}

	// Mutating a fetched slice must not affect stored state either.
	got[0].Name = "AlsoMutated"
	again, err := s.GetPartition(ctx, "alice", "default")
	if err != nil {
		t.Fatalf("GetPartition failed: %v", err)
	}
	if again[0].Name != "Echo" {
		t.Errorf("stored record mutated through fetched slice: %q", again[0].Name)
	}
}
