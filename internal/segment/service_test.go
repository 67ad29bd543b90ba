package segment_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/gambhirsharma/unleash/internal/segment"
	"github.com/gambhirsharma/unleash/internal/segment/storage"
	"github.com/stretchr/testify/require"
)

var testActor = segment.Actor{Username: "admin", Email: "admin@example.com"}

func newTestService(t *testing.T, limits segment.Limits) (*segment.Service, *storage.MemoryStore) {
	t.Helper()

	store := storage.NewMemoryStore()
	svc := segment.NewService(store, store, store, nil, segment.StaticLimits(limits))
	return svc, store
}

func segmentInput(t *testing.T, in segment.Input) []byte {
	t.Helper()

	raw, err := json.Marshal(in)
	require.NoError(t, err)
	return raw
}

func defaultLimits() segment.Limits {
	return segment.Limits{SegmentValuesLimit: 100, StrategySegmentsLimit: 5}
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		limits  segment.Limits
		input   segment.Input
		wantErr func(t *testing.T, err error)
	}{
		{
			name:   "valid segment",
			limits: defaultLimits(),
			input: segment.Input{
				Name: "eu-users",
				Constraints: []segment.Constraint{
					{ContextName: "country", Operator: "IN", Values: []string{"de", "fr"}},
				},
			},
		},
		{
			name:   "empty name",
			limits: defaultLimits(),
			input:  segment.Input{Name: ""},
			wantErr: func(t *testing.T, err error) {
				require.ErrorIs(t, err, segment.ErrNameEmpty)
			},
		},
		{
			name:   "values limit exceeded",
			limits: segment.Limits{SegmentValuesLimit: 2, StrategySegmentsLimit: 5},
			input: segment.Input{
				Name: "too-many-values",
				Constraints: []segment.Constraint{
					{ContextName: "country", Operator: "IN", Values: []string{"de", "fr", "it"}},
				},
			},
			wantErr: func(t *testing.T, err error) {
				var limitErr *segment.LimitExceededError
				require.ErrorAs(t, err, &limitErr)
				require.Equal(t, segment.ResourceSegmentValues, limitErr.Resource)
				require.Equal(t, 2, limitErr.Limit)
				require.Equal(t, 3, limitErr.Actual)
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, store := newTestService(t, tc.limits)

			created, err := svc.Create(ctx, segmentInput(t, tc.input), testActor)
			if tc.wantErr != nil {
				tc.wantErr(t, err)
				// No partial write and no audit event on rejection.
				all, listErr := store.GetAll(ctx)
				require.NoError(t, listErr)
				require.Empty(t, all)
				require.Empty(t, store.Events())
				return
			}

			require.NoError(t, err)
			require.NotZero(t, created.ID)
			require.Equal(t, tc.input.Name, created.Name)
			require.Equal(t, "admin@example.com", created.CreatedBy)
			require.False(t, created.CreatedAt.IsZero())

			events := store.Events()
			require.Len(t, events, 1)
			require.Equal(t, segment.EventSegmentCreated, events[0].Type)
			require.Equal(t, "admin@example.com", events[0].CreatedBy)
			require.NotNil(t, events[0].Data)
			require.Equal(t, created.ID, events[0].Data.ID)
			require.Nil(t, events[0].PreData)
		})
	}
}

func TestService_Create_RejectsMalformedInput(t *testing.T) {
	svc, _ := newTestService(t, defaultLimits())

	_, err := svc.Create(context.Background(), []byte(`{"name": "x", "bogus": 1}`), testActor)

	var validationErr *segment.ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestService_Create_DuplicateName(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, defaultLimits())

	_, err := svc.Create(ctx, segmentInput(t, segment.Input{Name: "mobile-users"}), testActor)
	require.NoError(t, err)

	_, err = svc.Create(ctx, segmentInput(t, segment.Input{Name: "mobile-users"}), testActor)
	var dupErr *segment.DuplicateNameError
	require.ErrorAs(t, err, &dupErr)
	require.Equal(t, "mobile-users", dupErr.Name)
}

func TestService_Update(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, defaultLimits())

	created, err := svc.Create(ctx, segmentInput(t, segment.Input{
		Name:        "beta-testers",
		Description: "original",
	}), testActor)
	require.NoError(t, err)

	updated, err := svc.Update(ctx, created.ID, segmentInput(t, segment.Input{
		Name:        "beta-testers",
		Description: "changed",
	}), testActor)
	require.NoError(t, err)
	require.Equal(t, "changed", updated.Description)

	events := store.Events()
	require.Len(t, events, 2)
	require.Equal(t, segment.EventSegmentUpdated, events[1].Type)
	require.Equal(t, "original", events[1].PreData.Description)
	require.Equal(t, "changed", events[1].Data.Description)
}

func TestService_Update_NotFound(t *testing.T) {
	svc, _ := newTestService(t, defaultLimits())

	_, err := svc.Update(context.Background(), 404, segmentInput(t, segment.Input{Name: "x"}), testActor)
	require.ErrorIs(t, err, segment.ErrNotFound)
}

func TestService_Update_NameUniqueness(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, defaultLimits())

	first, err := svc.Create(ctx, segmentInput(t, segment.Input{Name: "first"}), testActor)
	require.NoError(t, err)
	_, err = svc.Create(ctx, segmentInput(t, segment.Input{Name: "second"}), testActor)
	require.NoError(t, err)

	// Keeping its own name never trips the uniqueness check.
	_, err = svc.Update(ctx, first.ID, segmentInput(t, segment.Input{Name: "first", Description: "new"}), testActor)
	require.NoError(t, err)

	// Taking another segment's name is rejected.
	_, err = svc.Update(ctx, first.ID, segmentInput(t, segment.Input{Name: "second"}), testActor)
	var dupErr *segment.DuplicateNameError
	require.ErrorAs(t, err, &dupErr)
}

func TestService_Update_ProjectScoping(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T, projects map[string]string) (*segment.Service, *storage.MemoryStore, int) {
		svc, store := newTestService(t, defaultLimits())
		created, err := svc.Create(ctx, segmentInput(t, segment.Input{Name: "scoped"}), testActor)
		require.NoError(t, err)
		for strategyID, projectID := range projects {
			store.SetStrategyProject(strategyID, projectID)
			require.NoError(t, svc.AddToStrategy(ctx, created.ID, strategyID))
		}
		return svc, store, created.ID
	}

	t.Run("noop rescope to the only consuming project succeeds", func(t *testing.T) {
		svc, _, id := setup(t, map[string]string{"strat-1": "P"})
		_, err := svc.Update(ctx, id, segmentInput(t, segment.Input{Name: "scoped", Project: "P"}), testActor)
		require.NoError(t, err)
	})

	t.Run("rescope to a different project fails", func(t *testing.T) {
		svc, _, id := setup(t, map[string]string{"strat-1": "P"})
		_, err := svc.Update(ctx, id, segmentInput(t, segment.Input{Name: "scoped", Project: "Q"}), testActor)
		var projErr *segment.InvalidProjectError
		require.ErrorAs(t, err, &projErr)
		require.Equal(t, "Q", projErr.Project)
		require.Equal(t, []string{"P"}, projErr.UsedByProjects)
	})

	t.Run("segment spanning two projects can never be scoped", func(t *testing.T) {
		svc, _, id := setup(t, map[string]string{"strat-1": "P", "strat-2": "Q"})
		_, err := svc.Update(ctx, id, segmentInput(t, segment.Input{Name: "scoped", Project: "P"}), testActor)
		var projErr *segment.InvalidProjectError
		require.ErrorAs(t, err, &projErr)
		require.Len(t, projErr.UsedByProjects, 2)
	})

	t.Run("unscoped update always succeeds", func(t *testing.T) {
		svc, _, id := setup(t, map[string]string{"strat-1": "P", "strat-2": "Q"})
		_, err := svc.Update(ctx, id, segmentInput(t, segment.Input{Name: "scoped"}), testActor)
		require.NoError(t, err)
	})
}

func TestService_Delete(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, defaultLimits())

	created, err := svc.Create(ctx, segmentInput(t, segment.Input{Name: "doomed"}), testActor)
	require.NoError(t, err)
	require.NoError(t, svc.AddToStrategy(ctx, created.ID, "strat-1"))

	require.NoError(t, svc.Delete(ctx, created.ID, testActor))

	_, err = svc.Get(ctx, created.ID)
	require.ErrorIs(t, err, segment.ErrNotFound)

	// Link removal cascades with the segment.
	linked, err := svc.GetByStrategy(ctx, "strat-1")
	require.NoError(t, err)
	require.Empty(t, linked)

	events := store.Events()
	require.Len(t, events, 2)
	require.Equal(t, segment.EventSegmentDeleted, events[1].Type)
	require.Nil(t, events[1].Data)
	require.Equal(t, "doomed", events[1].PreData.Name)

	require.ErrorIs(t, svc.Delete(ctx, created.ID, testActor), segment.ErrNotFound)
}

func TestService_AddToStrategy_Limit(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, segment.Limits{SegmentValuesLimit: 10, StrategySegmentsLimit: 1})

	first, err := svc.Create(ctx, segmentInput(t, segment.Input{Name: "first"}), testActor)
	require.NoError(t, err)
	second, err := svc.Create(ctx, segmentInput(t, segment.Input{Name: "second"}), testActor)
	require.NoError(t, err)

	require.NoError(t, svc.AddToStrategy(ctx, first.ID, "strat-1"))

	err = svc.AddToStrategy(ctx, second.ID, "strat-1")
	var limitErr *segment.LimitExceededError
	require.ErrorAs(t, err, &limitErr)
	require.Equal(t, segment.ResourceStrategySegments, limitErr.Resource)

	// The failed add left the pre-call links intact.
	linked, err := svc.GetByStrategy(ctx, "strat-1")
	require.NoError(t, err)
	require.Len(t, linked, 1)
	require.Equal(t, first.ID, linked[0].ID)

	// Re-adding an existing pair is not an error and never double-counts.
	require.NoError(t, svc.AddToStrategy(ctx, first.ID, "strat-1"))
	linked, err = svc.GetByStrategy(ctx, "strat-1")
	require.NoError(t, err)
	require.Len(t, linked, 1)
}

func TestService_RemoveFromStrategy_Idempotent(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, defaultLimits())

	created, err := svc.Create(ctx, segmentInput(t, segment.Input{Name: "linked"}), testActor)
	require.NoError(t, err)
	require.NoError(t, svc.AddToStrategy(ctx, created.ID, "strat-1"))

	require.NoError(t, svc.RemoveFromStrategy(ctx, created.ID, "strat-1"))
	require.NoError(t, svc.RemoveFromStrategy(ctx, created.ID, "strat-1"))

	linked, err := svc.GetByStrategy(ctx, "strat-1")
	require.NoError(t, err)
	require.Empty(t, linked)
}

func TestService_UpdateStrategySegments(t *testing.T) {
	ctx := context.Background()

	t.Run("reconciles to the desired set", func(t *testing.T) {
		svc, _ := newTestService(t, defaultLimits())
		ids := createSegments(t, ctx, svc, 4)

		require.NoError(t, svc.UpdateStrategySegments(ctx, "strat-1", ids[:3]))

		require.NoError(t, svc.UpdateStrategySegments(ctx, "strat-1", []int{ids[1], ids[3]}))

		linked, err := svc.GetByStrategy(ctx, "strat-1")
		require.NoError(t, err)
		require.ElementsMatch(t, []int{ids[1], ids[3]}, segmentIDs(linked))
	})

	t.Run("swap at exactly the limit succeeds", func(t *testing.T) {
		svc, _ := newTestService(t, segment.Limits{SegmentValuesLimit: 10, StrategySegmentsLimit: 2})
		ids := createSegments(t, ctx, svc, 3)

		require.NoError(t, svc.UpdateStrategySegments(ctx, "strat-1", ids[:2]))

		// Removals run before additions, so a 1-for-1 swap at the limit is
		// evaluated against the shrunk set and must not be rejected.
		require.NoError(t, svc.UpdateStrategySegments(ctx, "strat-1", []int{ids[0], ids[2]}))

		linked, err := svc.GetByStrategy(ctx, "strat-1")
		require.NoError(t, err)
		require.ElementsMatch(t, []int{ids[0], ids[2]}, segmentIDs(linked))
	})

	t.Run("rejects oversized desired set upfront", func(t *testing.T) {
		svc, _ := newTestService(t, segment.Limits{SegmentValuesLimit: 10, StrategySegmentsLimit: 2})
		ids := createSegments(t, ctx, svc, 3)

		err := svc.UpdateStrategySegments(ctx, "strat-1", ids)
		var limitErr *segment.LimitExceededError
		require.ErrorAs(t, err, &limitErr)

		linked, err := svc.GetByStrategy(ctx, "strat-1")
		require.NoError(t, err)
		require.Empty(t, linked)
	})

	t.Run("empty desired set unlinks everything", func(t *testing.T) {
		svc, _ := newTestService(t, defaultLimits())
		ids := createSegments(t, ctx, svc, 2)

		require.NoError(t, svc.UpdateStrategySegments(ctx, "strat-1", ids))
		require.NoError(t, svc.UpdateStrategySegments(ctx, "strat-1", nil))

		linked, err := svc.GetByStrategy(ctx, "strat-1")
		require.NoError(t, err)
		require.Empty(t, linked)
	})
}

func TestService_UpdateStrategySegments_PartialFailureIsNotRolledBack(t *testing.T) {
	ctx := context.Background()

	store := storage.NewMemoryStore()
	failing := &failingStore{MemoryStore: store, failAddTo: map[int]error{}}
	svc := segment.NewService(failing, store, store, nil, segment.StaticLimits(defaultLimits()))

	ids := createSegments(t, ctx, svc, 3)
	failing.failAddTo[ids[2]] = errors.New("link write failed")

	err := svc.UpdateStrategySegments(ctx, "strat-1", ids)
	require.ErrorContains(t, err, "link write failed")

	// Additions that succeeded stay committed; the batch is best-effort.
	linked, lerr := svc.GetByStrategy(ctx, "strat-1")
	require.NoError(t, lerr)
	require.ElementsMatch(t, ids[:2], segmentIDs(linked))
}

func TestService_CloneStrategySegments(t *testing.T) {
	ctx := context.Background()

	t.Run("copies every source link", func(t *testing.T) {
		svc, _ := newTestService(t, defaultLimits())
		ids := createSegments(t, ctx, svc, 3)
		require.NoError(t, svc.UpdateStrategySegments(ctx, "source", ids))

		require.NoError(t, svc.CloneStrategySegments(ctx, "source", "target"))

		linked, err := svc.GetByStrategy(ctx, "target")
		require.NoError(t, err)
		require.ElementsMatch(t, ids, segmentIDs(linked))
	})

	t.Run("surfaces the limit error when the target is full", func(t *testing.T) {
		svc, _ := newTestService(t, segment.Limits{SegmentValuesLimit: 10, StrategySegmentsLimit: 1})
		ids := createSegments(t, ctx, svc, 2)
		require.NoError(t, svc.AddToStrategy(ctx, ids[0], "source"))
		require.NoError(t, svc.AddToStrategy(ctx, ids[1], "target"))

		err := svc.CloneStrategySegments(ctx, "source", "target")
		var limitErr *segment.LimitExceededError
		require.ErrorAs(t, err, &limitErr)
	})
}

func TestService_GetActive(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, defaultLimits())

	linked, err := svc.Create(ctx, segmentInput(t, segment.Input{
		Name: "in-use",
		Constraints: []segment.Constraint{
			{ContextName: "country", Operator: "IN", Values: []string{"de"}},
		},
	}), testActor)
	require.NoError(t, err)
	_, err = svc.Create(ctx, segmentInput(t, segment.Input{Name: "idle"}), testActor)
	require.NoError(t, err)
	require.NoError(t, svc.AddToStrategy(ctx, linked.ID, "strat-1"))

	active, err := svc.GetActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, "in-use", active[0].Name)

	client, err := svc.GetActiveForClient(ctx)
	require.NoError(t, err)
	require.Len(t, client, 1)
	require.Equal(t, linked.ID, client[0].ID)
	require.Equal(t, "in-use", client[0].Name)
	require.Len(t, client[0].Constraints, 1)
}

func TestService_ValidateName(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, defaultLimits())

	_, err := svc.Create(ctx, segmentInput(t, segment.Input{Name: "taken"}), testActor)
	require.NoError(t, err)

	require.NoError(t, svc.ValidateName(ctx, "available"))
	require.ErrorIs(t, svc.ValidateName(ctx, ""), segment.ErrNameEmpty)

	var dupErr *segment.DuplicateNameError
	require.ErrorAs(t, svc.ValidateName(ctx, "taken"), &dupErr)
}

// End-to-end scenario: create, link at the limit, reject the second link,
// delete with implicit unlink.
func TestService_Lifecycle(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, segment.Limits{SegmentValuesLimit: 10, StrategySegmentsLimit: 1})

	created, err := svc.Create(ctx, segmentInput(t, segment.Input{
		Name: "eu-users",
		Constraints: []segment.Constraint{
			{ContextName: "country", Operator: "IN", Values: []string{"de", "fr"}},
		},
	}), testActor)
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	other, err := svc.Create(ctx, segmentInput(t, segment.Input{Name: "us-users"}), testActor)
	require.NoError(t, err)

	require.NoError(t, svc.AddToStrategy(ctx, created.ID, "strat-1"))

	var limitErr *segment.LimitExceededError
	require.ErrorAs(t, svc.AddToStrategy(ctx, other.ID, "strat-1"), &limitErr)

	require.NoError(t, svc.Delete(ctx, created.ID, testActor))

	linked, err := svc.GetByStrategy(ctx, "strat-1")
	require.NoError(t, err)
	require.Empty(t, linked)

	// Exactly one audit event per mutation: two creates and one delete.
	require.Len(t, store.Events(), 3)
}

// failingStore wraps the memory store to fail AddToStrategy for chosen
// segment ids, exercising partial-failure semantics.
type failingStore struct {
	*storage.MemoryStore
	failAddTo map[int]error
}

func (f *failingStore) AddToStrategy(ctx context.Context, id int, strategyID string) error {
	if err, ok := f.failAddTo[id]; ok {
		return err
	}
	return f.MemoryStore.AddToStrategy(ctx, id, strategyID)
}

func createSegments(t *testing.T, ctx context.Context, svc *segment.Service, n int) []int {
	t.Helper()

	ids := make([]int, n)
	for i := range ids {
		created, err := svc.Create(ctx, segmentInput(t, segment.Input{
			Name: "segment-" + string(rune('a'+i)),
		}), testActor)
		require.NoError(t, err)
		ids[i] = created.ID
	}
	return ids
}

func segmentIDs(segments []segment.Segment) []int {
	ids := make([]int, len(segments))
	for i, s := range segments {
		ids[i] = s.ID
	}
	return ids
}
