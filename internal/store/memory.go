package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MetaSonic001/kumbh-watch-sub000/internal/model"
)

// Memory implements Store with a mutex-guarded map. Records survive only
// for the process lifetime; callers needing durability sit behind the
// Store interface and can swap the implementation.
type Memory struct {
	mu      sync.RWMutex
	records map[string]model.EmergencyRecord

	hookMu sync.RWMutex
	hooks  []Hook
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]model.EmergencyRecord)}
}

// OnChange registers a hook invoked after every committed mutation.
// Registration is expected at wiring time, before traffic.
func (m *Memory) OnChange(h Hook) {
	m.hookMu.Lock()
	defer m.hookMu.Unlock()
	m.hooks = append(m.hooks, h)
}

func (m *Memory) fire(ctx context.Context, ev Event) {
	m.hookMu.RLock()
	hooks := make([]Hook, len(m.hooks))
	copy(hooks, m.hooks)
	m.hookMu.RUnlock()

	for _, h := range hooks {
		h(ctx, ev)
	}
}

// Create inserts a record. A missing id gets a generated one; a missing
// timestamp gets the current time; a missing status defaults to active.
func (m *Memory) Create(ctx context.Context, rec model.EmergencyRecord) (model.EmergencyRecord, error) {
	if rec.ID == "" {
		rec.ID = fmt.Sprintf("emg_%s", uuid.NewString())
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	if rec.Status == "" {
		rec.Status = model.StatusActive
	}
	if !model.ValidStatus(rec.Status) {
		return model.EmergencyRecord{}, fmt.Errorf("store: create %s: %w", rec.ID, ErrInvalidTransition)
	}

	m.mu.Lock()
	if _, exists := m.records[rec.ID]; exists {
		m.mu.Unlock()
		return model.EmergencyRecord{}, fmt.Errorf("store: create %s: %w", rec.ID, ErrDuplicateID)
	}
	m.records[rec.ID] = rec
	m.mu.Unlock()

	m.fire(ctx, Event{Kind: EventCreated, Record: rec})
	return rec, nil
}

// Get returns the record with the given id.
func (m *Memory) Get(_ context.Context, id string) (model.EmergencyRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[id]
	if !ok {
		return model.EmergencyRecord{}, fmt.Errorf("store: get %s: %w", id, ErrNotFound)
	}
	return rec, nil
}

// List returns matching records, newest first.
func (m *Memory) List(_ context.Context, f Filter) ([]model.EmergencyRecord, error) {
	m.mu.RLock()
	out := make([]model.EmergencyRecord, 0, len(m.records))
	for _, rec := range m.records {
		if f.Status != "" && rec.Status != f.Status {
			continue
		}
		if f.Type != "" && rec.Analysis.EmergencyType != f.Type {
			continue
		}
		if f.Priority != "" && rec.Analysis.Priority != f.Priority {
			continue
		}
		out = append(out, rec)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

// UpdateStatus transitions a record's status. Any live state may jump
// straight to resolved, but nothing leaves resolved.
func (m *Memory) UpdateStatus(ctx context.Context, id string, status model.Status, volunteerID, notes string) (model.EmergencyRecord, error) {
	if !model.ValidStatus(status) {
		return model.EmergencyRecord{}, fmt.Errorf("store: update %s to %q: %w", id, status, ErrInvalidTransition)
	}

	m.mu.Lock()
	rec, ok := m.records[id]
	if !ok {
		m.mu.Unlock()
		return model.EmergencyRecord{}, fmt.Errorf("store: update %s: %w", id, ErrNotFound)
	}
	if rec.Status == model.StatusResolved {
		m.mu.Unlock()
		return model.EmergencyRecord{}, fmt.Errorf("store: update %s: %w", id, ErrResolved)
	}

	now := time.Now().UTC()
	rec.Status = status
	rec.UpdatedAt = &now
	if volunteerID != "" {
		rec.AssignedVolunteer = volunteerID
	}
	if notes != "" {
		rec.Notes = notes
	}
	if status == model.StatusResolved {
		rec.ResolvedAt = &now
	}
	m.records[id] = rec
	m.mu.Unlock()

	kind := EventStatusUpdated
	if status == model.StatusResolved {
		kind = EventResolved
	}
	m.fire(ctx, Event{Kind: kind, Record: rec})
	return rec, nil
}

// AssignVolunteer attaches a volunteer and marks the record
// volunteer_assigned.
func (m *Memory) AssignVolunteer(ctx context.Context, id, volunteerID string) (model.EmergencyRecord, error) {
	m.mu.Lock()
	rec, ok := m.records[id]
	if !ok {
		m.mu.Unlock()
		return model.EmergencyRecord{}, fmt.Errorf("store: assign %s: %w", id, ErrNotFound)
	}
	if rec.Status == model.StatusResolved {
		m.mu.Unlock()
		return model.EmergencyRecord{}, fmt.Errorf("store: assign %s: %w", id, ErrResolved)
	}

	now := time.Now().UTC()
	rec.AssignedVolunteer = volunteerID
	rec.Status = model.StatusVolunteerAssigned
	rec.UpdatedAt = &now
	m.records[id] = rec
	m.mu.Unlock()

	m.fire(ctx, Event{Kind: EventVolunteerAssigned, Record: rec})
	return rec, nil
}

// Resolve marks a record resolved. Idempotent: resolving a resolved record
// returns it unchanged without firing hooks.
func (m *Memory) Resolve(ctx context.Context, id, resolvedBy string) (model.EmergencyRecord, error) {
	m.mu.Lock()
	rec, ok := m.records[id]
	if !ok {
		m.mu.Unlock()
		return model.EmergencyRecord{}, fmt.Errorf("store: resolve %s: %w", id, ErrNotFound)
	}
	if rec.Status == model.StatusResolved {
		m.mu.Unlock()
		return rec, nil
	}

	now := time.Now().UTC()
	rec.Status = model.StatusResolved
	rec.ResolvedAt = &now
	rec.UpdatedAt = &now
	if resolvedBy != "" {
		rec.ResolvedBy = resolvedBy
	}
	m.records[id] = rec
	m.mu.Unlock()

	m.fire(ctx, Event{Kind: EventResolved, Record: rec})
	return rec, nil
}

// ActiveCount returns the number of records not yet resolved.
func (m *Memory) ActiveCount(_ context.Context) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, rec := range m.records {
		if rec.Status != model.StatusResolved {
			n++
		}
	}
	return n
}

// Summary aggregates record counts. ConnectedClients is left for the
// caller to fill in; the store knows nothing about the hub.
func (m *Memory) Summary(_ context.Context) model.DashboardSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := model.DashboardSummary{
		ByStatus:   make(map[model.Status]int),
		ByType:     make(map[model.EmergencyType]int),
		ByPriority: make(map[model.Priority]int),
	}
	for _, rec := range m.records {
		s.Total++
		s.ByStatus[rec.Status]++
		s.ByType[rec.Analysis.EmergencyType]++
		s.ByPriority[rec.Analysis.Priority]++
	}
	return s
}
