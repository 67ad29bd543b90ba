package segment

import (
	"context"
)

// Store defines the persistence boundary for segments and for the
// many-to-many link between segments and strategies.
type Store interface {
	// Get retrieves a segment by id. Returns ErrNotFound if absent.
	Get(ctx context.Context, id int) (*Segment, error)

	// GetAll returns all segments in store order.
	GetAll(ctx context.Context) ([]Segment, error)

	// GetActive returns segments currently linked to at least one strategy.
	GetActive(ctx context.Context) ([]Segment, error)

	// GetActiveForClient returns the reduced projection of active segments
	// for runtime evaluation consumers.
	GetActiveForClient(ctx context.Context) ([]ClientSegment, error)

	// GetByStrategy returns the segments linked to a strategy, in store order.
	GetByStrategy(ctx context.Context, strategyID string) ([]Segment, error)

	// ExistsByName reports whether any segment has exactly this name.
	ExistsByName(ctx context.Context, name string) (bool, error)

	// Create persists a new segment, assigning its id and timestamps.
	Create(ctx context.Context, in Input, actor Actor) (*Segment, error)

	// Update replaces a segment's caller-settable fields.
	// Returns ErrNotFound if absent.
	Update(ctx context.Context, id int, in Input) (*Segment, error)

	// Delete removes a segment and cascades removal of its strategy links.
	// Returns ErrNotFound if absent.
	Delete(ctx context.Context, id int) error

	// AddToStrategy links a segment to a strategy. Adding an existing link
	// is a no-op; no duplicate pairs are created.
	AddToStrategy(ctx context.Context, id int, strategyID string) error

	// RemoveFromStrategy unlinks a segment from a strategy. Removing an
	// absent link is a no-op.
	RemoveFromStrategy(ctx context.Context, id int, strategyID string) error
}

// StrategyLookup resolves the strategies currently referencing a segment,
// with their project assignment. Strategies are owned by the wider system;
// this core only reads them.
type StrategyLookup interface {
	GetStrategiesBySegment(ctx context.Context, segmentID int) ([]Strategy, error)
}
