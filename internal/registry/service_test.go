package registry

import (
	"context"
	"strings"
	"testing"

	"opsreg/internal/ops"
	"opsreg/internal/store"
)

func TestRegisterOperationsValidatesFirst(t *testing.T) {
	st := store.NewMemoryStore()
	sync := New(st)

	bad := ops.Record{
		Name: "Broken", Description: "d", URL: "/broken",
		Method: "FETCH", Tags: []string{"default"},
	}
	res := sync.RegisterOperations(context.Background(), "alice", []ops.Record{bad})
	if res.Success {
		t.Fatal("expected validation failure")
	}
	if !strings.Contains(res.Message, "method") {
		t.Errorf("message should name the offending field, got %q", res.Message)
	}
	if st.Len() != 0 {
		t.Error("nothing should be written when validation fails")
	}
}

func TestRegisterOperationsNormalizes(t *testing.T) {
	st := store.NewMemoryStore()
	sync := New(st)
	ctx := context.Background()

	// Minimal declaration: defaults fill in method, tags, id, type.
	rec := ops.Record{Name: "Echo", Description: "d", URL: "/echo"}
	res := sync.RegisterOperations(ctx, "alice", []ops.Record{rec})
	if !res.Success {
		t.Fatalf("register failed: %s", res.Message)
	}

	got, err := sync.Fetch(ctx, "alice", "default")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d records, want 1", len(got))
	}
	if got[0].ID != "Echo" || got[0].Method != "POST" || got[0].Type != ops.TypeCustom {
		t.Errorf("record not normalized: %+v", got[0])
	}
}

func TestRegisterOperationsEmptyInput(t *testing.T) {
	sync := New(store.NewMemoryStore())

	res := sync.RegisterOperations(context.Background(), "alice", nil)
	if res.Success {
		t.Error("registering no operations should fail")
	}
}

func TestListOperationsWrapsFetch(t *testing.T) {
	st := store.NewMemoryStore()
	sync := New(st)
	ctx := context.Background()

	res := sync.RegisterOperations(ctx, ops.OwnerSystem, []ops.Record{
		{Name: "A", Description: "d", URL: "/a", Tags: []string{"x"}},
		{Name: "B", Description: "d", URL: "/b", Tags: []string{"y"}},
	})
	if !res.Success {
		t.Fatalf("register failed: %s", res.Message)
	}

	// The admin full-list read: system + "all" is the global catalogue.
	list := sync.ListOperations(ctx, ops.OwnerSystem, "all")
	if !list.Success {
		t.Fatalf("list failed: %s", list.Message)
	}
	if len(list.Data) != 2 {
		t.Errorf("global catalogue has %d records, want 2", len(list.Data))
	}
}

func TestDeleteOperationReportsSuccessOnNoMatch(t *testing.T) {
	sync := New(store.NewMemoryStore())

	res := sync.DeleteOperation(context.Background(), "alice",
		ops.Reference{ID: "ghost", Name: "ghost", URL: "/ghost"})
	if !res.Success {
		t.Errorf("no-match delete should report success, got %q", res.Message)
	}
}
