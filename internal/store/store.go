// Package store holds the emergency record registry. The reference system
// kept records in globally-reachable maps; here the collection lives behind
// a service interface with internal synchronization and lifecycle hooks.
package store

import (
	"context"

	"github.com/MetaSonic001/kumbh-watch-sub000/internal/model"
)

// EventKind classifies a record lifecycle change delivered to hooks.
type EventKind string

const (
	EventCreated           EventKind = "created"
	EventStatusUpdated     EventKind = "status_updated"
	EventResolved          EventKind = "resolved"
	EventVolunteerAssigned EventKind = "volunteer_assigned"
)

// Event describes one committed mutation. Record is a copy; hooks may not
// mutate store state through it.
type Event struct {
	Kind   EventKind
	Record model.EmergencyRecord
}

// Hook receives record lifecycle events after the mutation has committed.
// Hooks are called synchronously outside the store lock; implementations
// must not block indefinitely and must not call back into the store's
// mutating operations.
type Hook func(ctx context.Context, ev Event)

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Status   model.Status
	Type     model.EmergencyType
	Priority model.Priority
}

// Store is the emergency record registry contract.
type Store interface {
	// Create inserts a record, assigning Status active (or error when the
	// record carries it) and returning the stored copy.
	Create(ctx context.Context, rec model.EmergencyRecord) (model.EmergencyRecord, error)

	// Get returns the record with the given id or ErrNotFound.
	Get(ctx context.Context, id string) (model.EmergencyRecord, error)

	// List returns all records matching the filter, newest first.
	List(ctx context.Context, f Filter) ([]model.EmergencyRecord, error)

	// UpdateStatus transitions a record's lifecycle status. Transitions out
	// of resolved return ErrResolved; unknown statuses return
	// ErrInvalidTransition.
	UpdateStatus(ctx context.Context, id string, status model.Status, volunteerID, notes string) (model.EmergencyRecord, error)

	// AssignVolunteer attaches a volunteer and moves the record to
	// volunteer_assigned.
	AssignVolunteer(ctx context.Context, id, volunteerID string) (model.EmergencyRecord, error)

	// Resolve moves a record to resolved. Resolving an already-resolved
	// record is a no-op returning the record unchanged.
	Resolve(ctx context.Context, id, resolvedBy string) (model.EmergencyRecord, error)

	// ActiveCount returns the number of records not yet resolved.
	ActiveCount(ctx context.Context) int

	// Summary aggregates record counts by status, type, and priority.
	Summary(ctx context.Context) model.DashboardSummary
}
