package store

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MetaSonic001/kumbh-watch-sub000/internal/model"
)

func newRecord(id string) model.EmergencyRecord {
	rec := model.EmergencyRecord{
		ID:     id,
		Source: model.SourceTest,
		Analysis: model.EmergencyAnalysis{
			Location:      "Sector 7",
			EmergencyType: model.TypeMedical,
			Priority:      model.PriorityCritical,
			Summary:       "collapsed pilgrim near water point",
		},
	}
	return rec
}

func TestCreateThenGet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	created, err := m.Create(ctx, newRecord("e1"))
	require.NoError(t, err)
	assert.Equal(t, "e1", created.ID)
	assert.Equal(t, model.StatusActive, created.Status)
	assert.False(t, created.Timestamp.IsZero())

	got, err := m.Get(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, created, got)
}

func TestCreateGeneratesUniqueIDs(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	a, err := m.Create(ctx, newRecord(""))
	require.NoError(t, err)
	b, err := m.Create(ctx, newRecord(""))
	require.NoError(t, err)

	assert.NotEmpty(t, a.ID)
	assert.NotEmpty(t, b.ID)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestCreateDuplicateID(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.Create(ctx, newRecord("e1"))
	require.NoError(t, err)
	_, err = m.Create(ctx, newRecord("e1"))
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestGetUnknownID(t *testing.T) {
	m := NewMemory()
	_, err := m.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateStatusFlow(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_, err := m.Create(ctx, newRecord("e1"))
	require.NoError(t, err)

	rec, err := m.UpdateStatus(ctx, "e1", model.StatusDispatching, "", "units en route")
	require.NoError(t, err)
	assert.Equal(t, model.StatusDispatching, rec.Status)
	assert.Equal(t, "units en route", rec.Notes)
	require.NotNil(t, rec.UpdatedAt)
	assert.Nil(t, rec.ResolvedAt)
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_, err := m.Create(ctx, newRecord("e1"))
	require.NoError(t, err)

	_, err = m.UpdateStatus(ctx, "e1", "vanished", "", "")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestResolveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_, err := m.Create(ctx, newRecord("e1"))
	require.NoError(t, err)

	first, err := m.Resolve(ctx, "e1", "operator-7")
	require.NoError(t, err)
	assert.Equal(t, model.StatusResolved, first.Status)
	require.NotNil(t, first.ResolvedAt)
	assert.Equal(t, "operator-7", first.ResolvedBy)

	second, err := m.Resolve(ctx, "e1", "someone-else")
	require.NoError(t, err)
	assert.Equal(t, model.StatusResolved, second.Status)
	assert.Equal(t, "operator-7", second.ResolvedBy, "second resolve must not overwrite")
	assert.Equal(t, first.ResolvedAt, second.ResolvedAt)
}

func TestNothingLeavesResolved(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_, err := m.Create(ctx, newRecord("e1"))
	require.NoError(t, err)
	_, err = m.Resolve(ctx, "e1", "")
	require.NoError(t, err)

	_, err = m.UpdateStatus(ctx, "e1", model.StatusActive, "", "")
	assert.ErrorIs(t, err, ErrResolved)

	_, err = m.AssignVolunteer(ctx, "e1", "v1")
	assert.ErrorIs(t, err, ErrResolved)

	got, err := m.Get(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusResolved, got.Status)
}

func TestAssignVolunteer(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_, err := m.Create(ctx, newRecord("e1"))
	require.NoError(t, err)

	rec, err := m.AssignVolunteer(ctx, "e1", "vol-42")
	require.NoError(t, err)
	assert.Equal(t, model.StatusVolunteerAssigned, rec.Status)
	assert.Equal(t, "vol-42", rec.AssignedVolunteer)
}

func TestHooksObserveMutations(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	var mu sync.Mutex
	var kinds []EventKind
	m.OnChange(func(_ context.Context, ev Event) {
		mu.Lock()
		kinds = append(kinds, ev.Kind)
		mu.Unlock()
	})

	_, err := m.Create(ctx, newRecord("e1"))
	require.NoError(t, err)
	_, err = m.UpdateStatus(ctx, "e1", model.StatusDispatching, "", "")
	require.NoError(t, err)
	_, err = m.AssignVolunteer(ctx, "e1", "v1")
	require.NoError(t, err)
	_, err = m.Resolve(ctx, "e1", "")
	require.NoError(t, err)
	// Idempotent resolve fires nothing.
	_, err = m.Resolve(ctx, "e1", "")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []EventKind{EventCreated, EventStatusUpdated, EventVolunteerAssigned, EventResolved}, kinds)
}

func TestConcurrentStatusUpdates(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_, err := m.Create(ctx, newRecord("e1"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.UpdateStatus(ctx, "e1", model.StatusDispatching, "", "")
			_, _ = m.Get(ctx, "e1")
		}()
	}
	wg.Wait()

	got, err := m.Get(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusDispatching, got.Status)
}

func TestActiveCountAndSummary(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.Create(ctx, newRecord("e1"))
	require.NoError(t, err)
	fire := newRecord("e2")
	fire.Analysis.EmergencyType = model.TypeFire
	_, err = m.Create(ctx, fire)
	require.NoError(t, err)
	_, err = m.Resolve(ctx, "e2", "")
	require.NoError(t, err)

	assert.Equal(t, 1, m.ActiveCount(ctx))

	s := m.Summary(ctx)
	assert.Equal(t, 2, s.Total)
	assert.Equal(t, 1, s.ByStatus[model.StatusActive])
	assert.Equal(t, 1, s.ByStatus[model.StatusResolved])
	assert.Equal(t, 1, s.ByType[model.TypeMedical])
	assert.Equal(t, 1, s.ByType[model.TypeFire])
	assert.Equal(t, 2, s.ByPriority[model.PriorityCritical])
}

func TestListFilterAndOrder(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.Create(ctx, newRecord("e1"))
	require.NoError(t, err)
	crowd := newRecord("e2")
	crowd.Analysis.EmergencyType = model.TypeCrowd
	_, err = m.Create(ctx, crowd)
	require.NoError(t, err)

	all, err := m.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	onlyCrowd, err := m.List(ctx, Filter{Type: model.TypeCrowd})
	require.NoError(t, err)
	require.Len(t, onlyCrowd, 1)
	assert.Equal(t, "e2", onlyCrowd[0].ID)
}
