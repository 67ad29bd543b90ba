package storage

import (
	"context"
	"testing"

	"github.com/gambhirsharma/unleash/internal/segment"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_CRUD(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	actor := segment.Actor{Username: "dev"}

	created, err := store.Create(ctx, segment.Input{
		Name: "eu-users",
		Constraints: []segment.Constraint{
			{ContextName: "country", Operator: "IN", Values: []string{"de"}},
		},
	}, actor)
	require.NoError(t, err)
	require.Equal(t, 1, created.ID)
	require.Equal(t, "dev", created.CreatedBy)

	// Mutating the returned copy must not leak into stored state.
	created.Constraints[0].Values[0] = "mutated"
	got, err := store.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "de", got.Constraints[0].Values[0])

	_, err = store.Get(ctx, 99)
	require.ErrorIs(t, err, segment.ErrNotFound)

	updated, err := store.Update(ctx, created.ID, segment.Input{Name: "renamed"})
	require.NoError(t, err)
	require.Equal(t, "renamed", updated.Name)
	require.Equal(t, created.ID, updated.ID)

	_, err = store.Update(ctx, 99, segment.Input{Name: "x"})
	require.ErrorIs(t, err, segment.ErrNotFound)

	exists, err := store.ExistsByName(ctx, "renamed")
	require.NoError(t, err)
	require.True(t, exists)
	exists, err = store.ExistsByName(ctx, "eu-users")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestMemoryStore_Links(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	s1, err := store.Create(ctx, segment.Input{Name: "one"}, segment.Actor{})
	require.NoError(t, err)
	s2, err := store.Create(ctx, segment.Input{Name: "two"}, segment.Actor{})
	require.NoError(t, err)

	require.NoError(t, store.AddToStrategy(ctx, s1.ID, "strat-1"))
	require.NoError(t, store.AddToStrategy(ctx, s1.ID, "strat-1")) // idempotent
	require.NoError(t, store.AddToStrategy(ctx, s2.ID, "strat-1"))

	require.ErrorIs(t, store.AddToStrategy(ctx, 99, "strat-1"), segment.ErrNotFound)

	linked, err := store.GetByStrategy(ctx, "strat-1")
	require.NoError(t, err)
	require.Len(t, linked, 2)
	require.Equal(t, s1.ID, linked[0].ID) // store order

	store.SetStrategyProject("strat-1", "proj-a")
	strategies, err := store.GetStrategiesBySegment(ctx, s1.ID)
	require.NoError(t, err)
	require.Equal(t, []segment.Strategy{{ID: "strat-1", ProjectID: "proj-a"}}, strategies)

	// Deleting a segment cascades link removal.
	require.NoError(t, store.Delete(ctx, s1.ID))
	linked, err = store.GetByStrategy(ctx, "strat-1")
	require.NoError(t, err)
	require.Len(t, linked, 1)
	require.Equal(t, s2.ID, linked[0].ID)

	require.NoError(t, store.RemoveFromStrategy(ctx, s2.ID, "strat-1"))
	require.NoError(t, store.RemoveFromStrategy(ctx, s2.ID, "strat-1")) // idempotent

	active, err := store.GetActive(ctx)
	require.NoError(t, err)
	require.Empty(t, active)
}

func TestMemoryStore_EventsAreAppendOnlyCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	event := segment.NewEvent(segment.EventSegmentCreated, "dev", &segment.Segment{ID: 1, Name: "x"}, nil)
	require.NoError(t, store.Store(ctx, event))

	events := store.Events()
	require.Len(t, events, 1)
	require.Equal(t, segment.EventSegmentCreated, events[0].Type)

	events[0].Type = "tampered"
	require.Equal(t, segment.EventSegmentCreated, store.Events()[0].Type)
}
