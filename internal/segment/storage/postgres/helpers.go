package postgres

import (
	"encoding/json"
	"fmt"

	"github.com/gambhirsharma/unleash/internal/segment"
)

// marshalConstraints marshals a segment's constraints to JSON for the jsonb
// column. Nil constraints produce an empty JSON array rather than SQL NULL so
// reads never have to special-case missing values.
func marshalConstraints(constraints []segment.Constraint) ([]byte, error) {
	if constraints == nil {
		constraints = []segment.Constraint{}
	}
	out, err := json.Marshal(constraints)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal constraints: %w", err)
	}
	return out, nil
}

// unmarshalConstraints decodes a jsonb constraints column.
func unmarshalConstraints(raw []byte, dest *[]segment.Constraint) error {
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("failed to unmarshal constraints: %w", err)
	}
	return nil
}

// marshalEventPayloads marshals an event's data and pre-data segments for
// their jsonb columns. A nil segment produces nil (SQL NULL) rather than the
// JSON "null" string.
func marshalEventPayloads(event *segment.Event) (dataJSON, preDataJSON []byte, err error) {
	if event.Data != nil {
		dataJSON, err = json.Marshal(event.Data)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal event data: %w", err)
		}
	}
	if event.PreData != nil {
		preDataJSON, err = json.Marshal(event.PreData)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal event pre-data: %w", err)
		}
	}
	return dataJSON, preDataJSON, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

// scanSegmentRow scans a database row into a Segment.
// Compatible with both sql.Row (single) and sql.Rows (multiple).
func scanSegmentRow(row scanner) (*segment.Segment, error) {
	var s segment.Segment
	var constraintsJSON []byte

	err := row.Scan(
		&s.ID,
		&s.Name,
		&s.Description,
		&s.Example,
		&s.Project,
		&constraintsJSON,
		&s.CreatedBy,
		&s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(constraintsJSON, &s.Constraints); err != nil {
		return nil, fmt.Errorf("failed to unmarshal constraints: %w", err)
	}
	return &s, nil
}
