package segment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Audit event types. Every successful create/update/delete emits exactly one
// event, after the mutation is durably applied.
const (
	EventSegmentCreated = "segment-created"
	EventSegmentUpdated = "segment-updated"
	EventSegmentDeleted = "segment-deleted"
)

// Event is a single entry in the append-only audit trail. Data carries the
// state after the mutation (creates and updates), PreData the state before it
// (updates and deletes).
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	CreatedBy string    `json:"createdBy"`
	Data      *Segment  `json:"data,omitempty"`
	PreData   *Segment  `json:"preData,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewEvent builds an audit event with a fresh id and timestamp.
func NewEvent(eventType, createdBy string, data, preData *Segment) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		CreatedBy: createdBy,
		Data:      data,
		PreData:   preData,
		CreatedAt: time.Now().UTC(),
	}
}

// EventSink is the append-only audit trail this core writes to.
type EventSink interface {
	Store(ctx context.Context, event *Event) error
}
