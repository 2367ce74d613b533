package registry

import (
	"context"
	"fmt"

	"opsreg/internal/ops"
)

// Result is the structured outcome of a driver-facing write operation.
// User-visible failures are carried as values, not raised faults.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ListResult wraps a fetch with a success flag and message.
type ListResult struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Data    []ops.Record `json:"data"`
}

// RegisterOperations validates, normalizes and upserts each record for
// the owner. The first schema violation or store failure stops the run
// and is reported in the result; records registered before the failure
// stay registered (fanout is not transactional).
func (s *Synchronizer) RegisterOperations(ctx context.Context, owner string, records []ops.Record) Result {
	if len(records) == 0 {
		return Result{Success: false, Message: "Operations must be provided"}
	}

	for _, rec := range records {
		rec = ops.Normalize(rec)
		if errs := ops.Validate(rec); len(errs) > 0 {
			return Result{
				Success: false,
				Message: fmt.Sprintf("Operation validation failed for %q: %s", rec.ID, errs[0]),
			}
		}
		if err := s.Upsert(ctx, owner, rec); err != nil {
			return Result{
				Success: false,
				Message: fmt.Sprintf("Failed to register operation %q: %v", rec.ID, err),
			}
		}
	}

	return Result{
		Success: true,
		Message: "Successfully associated operations with provided tags and user",
	}
}

// ListOperations returns the fetch result for (owner, tag) wrapped with
// a success flag and message. Fetching "all" for the system owner yields
// the global catalogue of every system operation.
func (s *Synchronizer) ListOperations(ctx context.Context, owner, tag string) ListResult {
	records, err := s.Fetch(ctx, owner, tag)
	if err != nil {
		return ListResult{
			Success: false,
			Message: fmt.Sprintf("Failed to retrieve operations: %v", err),
		}
	}
	return ListResult{
		Success: true,
		Message: "Successfully retrieved available operations for user",
		Data:    records,
	}
}

// DeleteOperation applies Delete for the reference and reports the
// outcome. Deleting a reference that matches nothing is still a success.
func (s *Synchronizer) DeleteOperation(ctx context.Context, owner string, ref ops.Reference) Result {
	if err := s.Delete(ctx, owner, ref); err != nil {
		return Result{
			Success: false,
			Message: fmt.Sprintf("Failed to delete operation %q: %v", ref.ID, err),
		}
	}
	return Result{
		Success: true,
		Message: "Successfully deleted the specified operation(s)",
	}
}
