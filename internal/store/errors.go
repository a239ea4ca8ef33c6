package store

import "errors"

// Sentinel errors returned by store implementations. Callers use errors.Is
// to map them onto API responses.
var (
	// ErrNotFound is returned when a record doesn't exist.
	ErrNotFound = errors.New("store: not found")

	// ErrResolved is returned when a mutation would move a record out of
	// the resolved state.
	ErrResolved = errors.New("store: record already resolved")

	// ErrInvalidTransition is returned for unknown or disallowed statuses.
	ErrInvalidTransition = errors.New("store: invalid status transition")

	// ErrDuplicateID is returned when creating a record whose id is taken.
	ErrDuplicateID = errors.New("store: duplicate id")
)
