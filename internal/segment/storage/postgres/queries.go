package postgres

// SQL queries for segment, link, and audit event storage.

const (
	segmentColumns = `
		id, name, description, example, project, constraints, created_by, created_at`

	querySelectSegment = `
		SELECT` + segmentColumns + `
		FROM segments
		WHERE id = $1
	`

	querySelectAllSegments = `
		SELECT` + segmentColumns + `
		FROM segments
		ORDER BY id ASC
	`

	// querySelectActiveSegments returns segments referenced by at least one
	// strategy. "Active" is a store-level notion: a segment with no links is
	// administratively present but not in use.
	querySelectActiveSegments = `
		SELECT` + segmentColumns + `
		FROM segments s
		WHERE EXISTS (
			SELECT 1 FROM segment_strategies ss WHERE ss.segment_id = s.id
		)
		ORDER BY id ASC
	`

	querySelectActiveClientSegments = `
		SELECT id, name, constraints
		FROM segments s
		WHERE EXISTS (
			SELECT 1 FROM segment_strategies ss WHERE ss.segment_id = s.id
		)
		ORDER BY id ASC
	`

	querySelectSegmentsByStrategy = `
		SELECT` + segmentColumns + `
		FROM segments
		WHERE id IN (
			SELECT segment_id FROM segment_strategies WHERE strategy_id = $1
		)
		ORDER BY id ASC
	`

	queryExistsByName = `
		SELECT EXISTS (SELECT 1 FROM segments WHERE name = $1)
	`

	queryInsertSegment = `
		INSERT INTO segments (name, description, example, project, constraints, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	queryUpdateSegment = `
		UPDATE segments
		SET name = $2, description = $3, example = $4, project = $5, constraints = $6
		WHERE id = $1
		RETURNING` + segmentColumns + `
	`

	queryDeleteSegment = `
		DELETE FROM segments WHERE id = $1
	`

	// queryInsertLink is idempotent: re-adding an existing pair is a no-op,
	// so no duplicate links can ever be created.
	queryInsertLink = `
		INSERT INTO segment_strategies (segment_id, strategy_id)
		VALUES ($1, $2)
		ON CONFLICT (segment_id, strategy_id) DO NOTHING
	`

	queryDeleteLink = `
		DELETE FROM segment_strategies
		WHERE segment_id = $1 AND strategy_id = $2
	`

	// querySelectStrategiesBySegment resolves each linked strategy's project
	// assignment from the strategies table owned by the wider system.
	querySelectStrategiesBySegment = `
		SELECT st.id, st.project_id
		FROM strategies st
		JOIN segment_strategies ss ON ss.strategy_id = st.id
		WHERE ss.segment_id = $1
		ORDER BY st.id ASC
	`

	queryInsertEvent = `
		INSERT INTO events (id, type, created_by, data, pre_data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
)
