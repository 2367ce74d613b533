package registry

import "errors"

// Registry errors.
var (
	// ErrOwnerEmpty is returned when an operation is attempted without an owner.
	ErrOwnerEmpty = errors.New("owner cannot be empty")

	// ErrNoTags is returned when upserting a record that declares no tags.
	ErrNoTags = errors.New("record declares no tags")

	// ErrInvalidRecord is returned when a record fails schema validation.
	ErrInvalidRecord = errors.New("invalid operation record")
)
