package segment

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Service orchestrates segment administration: validation, persistence, audit
// emission, and reconciliation of strategy associations.
//
// The store is treated as a shared external resource with no client-side
// synchronization. Ordering guarantees come from causal sequencing inside a
// single call (remove-before-add in reconciliation, load-before-delete for
// audit capture), not from any lock. Two racing calls can both observe a
// pre-race state; atomicity, where required, belongs to the store.
type Service struct {
	store      Store
	strategies StrategyLookup
	events     EventSink
	validator  InputValidator
	limits     LimitsProvider
}

// NewService creates a segment service. The validator defaults to
// JSONValidator when nil.
func NewService(store Store, strategies StrategyLookup, events EventSink, validator InputValidator, limits LimitsProvider) *Service {
	if store == nil {
		panic("segment: store must not be nil")
	}
	if strategies == nil {
		panic("segment: strategy lookup must not be nil")
	}
	if events == nil {
		panic("segment: event sink must not be nil")
	}
	if limits == nil {
		panic("segment: limits provider must not be nil")
	}
	if validator == nil {
		validator = JSONValidator{}
	}
	return &Service{
		store:      store,
		strategies: strategies,
		events:     events,
		validator:  validator,
		limits:     limits,
	}
}

// Get retrieves a segment by id.
func (s *Service) Get(ctx context.Context, id int) (*Segment, error) {
	return s.store.Get(ctx, id)
}

// GetAll returns all segments.
func (s *Service) GetAll(ctx context.Context) ([]Segment, error) {
	return s.store.GetAll(ctx)
}

// GetActive returns segments currently linked to at least one strategy.
func (s *Service) GetActive(ctx context.Context) ([]Segment, error) {
	return s.store.GetActive(ctx)
}

// GetActiveForClient returns the reduced projection of active segments for
// runtime evaluation consumers.
func (s *Service) GetActiveForClient(ctx context.Context) ([]ClientSegment, error) {
	return s.store.GetActiveForClient(ctx)
}

// GetByStrategy returns the segments linked to a strategy.
func (s *Service) GetByStrategy(ctx context.Context, strategyID string) ([]Segment, error) {
	return s.store.GetByStrategy(ctx, strategyID)
}

// GetStrategies returns the strategies referencing a segment.
func (s *Service) GetStrategies(ctx context.Context, segmentID int) ([]Strategy, error) {
	return s.strategies.GetStrategiesBySegment(ctx, segmentID)
}

// Create validates raw input and persists a new segment, emitting a
// segment-created audit event attributed to the actor.
//
// Cheap, pure checks (values limit, empty name) run before any store
// round-trip; name uniqueness is the only check that reads the store.
func (s *Service) Create(ctx context.Context, raw []byte, actor Actor) (*Segment, error) {
	in, err := s.validator.Validate(raw)
	if err != nil {
		return nil, err
	}
	if err := ValidateValuesLimit(in, s.limits().SegmentValuesLimit); err != nil {
		return nil, err
	}
	if err := s.ValidateName(ctx, in.Name); err != nil {
		return nil, err
	}

	created, err := s.store.Create(ctx, *in, actor)
	if err != nil {
		return nil, fmt.Errorf("create segment: %w", err)
	}

	if err := s.events.Store(ctx, NewEvent(EventSegmentCreated, actor.Identity(), created, nil)); err != nil {
		return nil, fmt.Errorf("record segment-created event: %w", err)
	}

	slog.Info("Segment created", "id", created.ID, "name", created.Name, "by", actor.Identity())
	return created, nil
}

// Update validates raw input and replaces the segment's caller-settable
// fields, emitting a segment-updated event carrying both the previous and
// the new state.
//
// Name uniqueness is only re-checked when the name actually changed, so a
// segment never collides with itself. Project scoping is re-derived from the
// strategies currently linked rather than from any cached state.
func (s *Service) Update(ctx context.Context, id int, raw []byte, actor Actor) (*Segment, error) {
	in, err := s.validator.Validate(raw)
	if err != nil {
		return nil, err
	}
	if err := ValidateValuesLimit(in, s.limits().SegmentValuesLimit); err != nil {
		return nil, err
	}

	pre, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != pre.Name {
		if err := s.ValidateName(ctx, in.Name); err != nil {
			return nil, err
		}
	}

	if err := s.validateProjectScope(ctx, id, in.Project); err != nil {
		return nil, err
	}

	updated, err := s.store.Update(ctx, id, *in)
	if err != nil {
		return nil, fmt.Errorf("update segment %d: %w", id, err)
	}

	if err := s.events.Store(ctx, NewEvent(EventSegmentUpdated, actor.Identity(), updated, pre)); err != nil {
		return nil, fmt.Errorf("record segment-updated event: %w", err)
	}

	return updated, nil
}

// Delete removes a segment. The store cascades removal of its strategy
// links. A segment-deleted event carrying the deleted state is emitted.
func (s *Service) Delete(ctx context.Context, id int, actor Actor) error {
	pre, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete segment %d: %w", id, err)
	}

	if err := s.events.Store(ctx, NewEvent(EventSegmentDeleted, actor.Identity(), nil, pre)); err != nil {
		return fmt.Errorf("record segment-deleted event: %w", err)
	}

	slog.Info("Segment deleted", "id", id, "name", pre.Name, "by", actor.Identity())
	return nil
}

// ValidateName checks that a segment name is non-empty and not already
// taken. Exposed on its own so callers can offer early feedback, e.g. from
// interactive form checks, without performing a mutation.
func (s *Service) ValidateName(ctx context.Context, name string) error {
	if name == "" {
		return ErrNameEmpty
	}
	exists, err := s.store.ExistsByName(ctx, name)
	if err != nil {
		return fmt.Errorf("check segment name %q: %w", name, err)
	}
	if exists {
		return &DuplicateNameError{Name: name}
	}
	return nil
}

// validateProjectScope enforces that a project-scoped segment is only
// referenced by strategies in that project. Narrowing an unscoped segment to
// a project is allowed only while every current consumer already belongs to
// it; a segment spanning two or more projects can never be rescoped.
func (s *Service) validateProjectScope(ctx context.Context, id int, project string) error {
	if project == "" {
		return nil
	}

	strategies, err := s.strategies.GetStrategiesBySegment(ctx, id)
	if err != nil {
		return fmt.Errorf("lookup strategies for segment %d: %w", id, err)
	}

	seen := make(map[string]struct{}, len(strategies))
	var distinct []string
	for _, strat := range strategies {
		if _, ok := seen[strat.ProjectID]; ok {
			continue
		}
		seen[strat.ProjectID] = struct{}{}
		distinct = append(distinct, strat.ProjectID)
	}

	if len(distinct) > 1 || (len(distinct) == 1 && distinct[0] != project) {
		return &InvalidProjectError{Project: project, UsedByProjects: distinct}
	}
	return nil
}

// AddToStrategy links a segment to a strategy, enforcing the per-strategy
// segment limit. An already-present link is left as is and never counts
// against the limit twice. Project scoping is not re-checked here; Update
// re-derives it from current links when it matters.
func (s *Service) AddToStrategy(ctx context.Context, id int, strategyID string) error {
	current, err := s.store.GetByStrategy(ctx, strategyID)
	if err != nil {
		return fmt.Errorf("count segments for strategy %q: %w", strategyID, err)
	}
	for _, seg := range current {
		if seg.ID == id {
			return nil
		}
	}
	if limit := s.limits().StrategySegmentsLimit; len(current) >= limit {
		return &LimitExceededError{Resource: ResourceStrategySegments, Limit: limit, Actual: len(current) + 1}
	}
	return s.store.AddToStrategy(ctx, id, strategyID)
}

// RemoveFromStrategy unlinks a segment from a strategy. Removing an absent
// link is not an error.
func (s *Service) RemoveFromStrategy(ctx context.Context, id int, strategyID string) error {
	return s.store.RemoveFromStrategy(ctx, id, strategyID)
}

// UpdateStrategySegments reconciles the segments linked to a strategy toward
// the desired set. Removals complete before any addition begins, so each
// addition's limit check runs against the already-shrunk set and a 1-for-1
// swap at exactly the limit is not spuriously rejected.
//
// Batch members run concurrently and every member runs to completion;
// nothing is rolled back on failure. The first error is surfaced after the
// batch finishes, which can leave the links partially reconciled. Callers
// needing atomicity must re-read the current links and retry; each add and
// remove is idempotent at the link level, which bounds the damage.
func (s *Service) UpdateStrategySegments(ctx context.Context, strategyID string, desired []int) error {
	if limit := s.limits().StrategySegmentsLimit; len(desired) > limit {
		return &LimitExceededError{Resource: ResourceStrategySegments, Limit: limit, Actual: len(desired)}
	}

	current, err := s.store.GetByStrategy(ctx, strategyID)
	if err != nil {
		return fmt.Errorf("load segments for strategy %q: %w", strategyID, err)
	}

	currentIDs := make(map[int]struct{}, len(current))
	for _, seg := range current {
		currentIDs[seg.ID] = struct{}{}
	}
	desiredIDs := make(map[int]struct{}, len(desired))
	for _, id := range desired {
		desiredIDs[id] = struct{}{}
	}

	var removals errgroup.Group
	for id := range currentIDs {
		if _, keep := desiredIDs[id]; keep {
			continue
		}
		removals.Go(func() error {
			return s.RemoveFromStrategy(ctx, id, strategyID)
		})
	}
	if err := removals.Wait(); err != nil {
		return err
	}

	var additions errgroup.Group
	for _, id := range desired {
		if _, present := currentIDs[id]; present {
			continue
		}
		additions.Go(func() error {
			return s.AddToStrategy(ctx, id, strategyID)
		})
	}
	return additions.Wait()
}

// CloneStrategySegments copies every segment linked to the source strategy
// onto the target. Each addition independently enforces the target's limit;
// a clone that would exceed it partially succeeds and returns the first
// error from the batch.
func (s *Service) CloneStrategySegments(ctx context.Context, sourceStrategyID, targetStrategyID string) error {
	source, err := s.store.GetByStrategy(ctx, sourceStrategyID)
	if err != nil {
		return fmt.Errorf("load segments for strategy %q: %w", sourceStrategyID, err)
	}

	var g errgroup.Group
	for _, seg := range source {
		g.Go(func() error {
			return s.AddToStrategy(ctx, seg.ID, targetStrategyID)
		})
	}
	return g.Wait()
}
