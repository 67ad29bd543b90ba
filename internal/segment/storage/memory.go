package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gambhirsharma/unleash/internal/segment"
)

// MemoryStore is an in-memory implementation of segment.Store,
// segment.StrategyLookup, and segment.EventSink. Useful for testing and
// development.
type MemoryStore struct {
	mu       sync.RWMutex
	nextID   int
	segments map[int]*segment.Segment
	links    map[string]map[int]struct{} // strategy id -> linked segment ids
	projects map[string]string           // strategy id -> project id
	events   []*segment.Event
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		segments: make(map[int]*segment.Segment),
		links:    make(map[string]map[int]struct{}),
		projects: make(map[string]string),
	}
}

// SetStrategyProject records a strategy's project assignment. Strategies are
// owned by the wider system; tests and development wiring register them here.
func (m *MemoryStore) SetStrategyProject(strategyID, projectID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[strategyID] = projectID
}

func (m *MemoryStore) Get(ctx context.Context, id int) (*segment.Segment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, exists := m.segments[id]
	if !exists {
		return nil, segment.ErrNotFound
	}
	copy := cloneSegment(s)
	return &copy, nil
}

func (m *MemoryStore) GetAll(ctx context.Context) ([]segment.Segment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]segment.Segment, 0, len(m.segments))
	for _, s := range m.segments {
		result = append(result, cloneSegment(s))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *MemoryStore) GetActive(ctx context.Context) ([]segment.Segment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []segment.Segment
	for id, s := range m.segments {
		if m.linkCount(id) > 0 {
			result = append(result, cloneSegment(s))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *MemoryStore) GetActiveForClient(ctx context.Context) ([]segment.ClientSegment, error) {
	active, err := m.GetActive(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]segment.ClientSegment, len(active))
	for i, s := range active {
		result[i] = segment.ClientSegment{
			ID:          s.ID,
			Name:        s.Name,
			Constraints: s.Constraints,
		}
	}
	return result, nil
}

func (m *MemoryStore) GetByStrategy(ctx context.Context, strategyID string) ([]segment.Segment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []segment.Segment
	for id := range m.links[strategyID] {
		if s, exists := m.segments[id]; exists {
			result = append(result, cloneSegment(s))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *MemoryStore) ExistsByName(ctx context.Context, name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, s := range m.segments {
		if s.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) Create(ctx context.Context, in segment.Input, actor segment.Actor) (*segment.Segment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	s := &segment.Segment{
		ID:          m.nextID,
		Name:        in.Name,
		Description: in.Description,
		Example:     in.Example,
		Project:     in.Project,
		Constraints: in.Constraints,
		CreatedAt:   time.Now().UTC(),
		CreatedBy:   actor.Identity(),
	}
	m.segments[s.ID] = s

	copy := cloneSegment(s)
	return &copy, nil
}

func (m *MemoryStore) Update(ctx context.Context, id int, in segment.Input) (*segment.Segment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, exists := m.segments[id]
	if !exists {
		return nil, segment.ErrNotFound
	}

	s.Name = in.Name
	s.Description = in.Description
	s.Example = in.Example
	s.Project = in.Project
	s.Constraints = in.Constraints

	copy := cloneSegment(s)
	return &copy, nil
}

func (m *MemoryStore) Delete(ctx context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.segments[id]; !exists {
		return segment.ErrNotFound
	}
	delete(m.segments, id)

	// Cascade link removal.
	for strategyID, ids := range m.links {
		delete(ids, id)
		if len(ids) == 0 {
			delete(m.links, strategyID)
		}
	}
	return nil
}

func (m *MemoryStore) AddToStrategy(ctx context.Context, id int, strategyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.segments[id]; !exists {
		return segment.ErrNotFound
	}
	ids, exists := m.links[strategyID]
	if !exists {
		ids = make(map[int]struct{})
		m.links[strategyID] = ids
	}
	ids[id] = struct{}{}
	return nil
}

func (m *MemoryStore) RemoveFromStrategy(ctx context.Context, id int, strategyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ids, exists := m.links[strategyID]; exists {
		delete(ids, id)
		if len(ids) == 0 {
			delete(m.links, strategyID)
		}
	}
	return nil
}

func (m *MemoryStore) GetStrategiesBySegment(ctx context.Context, segmentID int) ([]segment.Strategy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []segment.Strategy
	for strategyID, ids := range m.links {
		if _, linked := ids[segmentID]; linked {
			result = append(result, segment.Strategy{
				ID:        strategyID,
				ProjectID: m.projects[strategyID],
			})
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *MemoryStore) Store(ctx context.Context, event *segment.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copy := *event
	m.events = append(m.events, &copy)
	return nil
}

// Events returns a snapshot of the audit trail in append order.
func (m *MemoryStore) Events() []*segment.Event {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*segment.Event, len(m.events))
	for i, e := range m.events {
		copy := *e
		result[i] = &copy
	}
	return result
}

// linkCount counts the strategies a segment is linked to.
// Callers must hold at least a read lock.
func (m *MemoryStore) linkCount(segmentID int) int {
	n := 0
	for _, ids := range m.links {
		if _, linked := ids[segmentID]; linked {
			n++
		}
	}
	return n
}

// cloneSegment copies a segment, including its constraint slice, to prevent
// external modification of stored state.
func cloneSegment(s *segment.Segment) segment.Segment {
	copy := *s
	if s.Constraints != nil {
		copy.Constraints = make([]segment.Constraint, len(s.Constraints))
		for i, c := range s.Constraints {
			copy.Constraints[i] = c
			if c.Values != nil {
				copy.Constraints[i].Values = append([]string(nil), c.Values...)
			}
		}
	}
	return copy
}
