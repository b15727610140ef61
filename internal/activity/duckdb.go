package activity

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DuckDBSource reads and writes the activity_events table.
type DuckDBSource struct {
	db *sql.DB
}

func NewDuckDBSource(db *sql.DB) *DuckDBSource {
	return &DuckDBSource{db: db}
}

func (s *DuckDBSource) Query(ctx context.Context, userID string, types []EventType, since time.Time) ([]Event, error) {
	query := `
		SELECT
			id,
			user_id,
			type,
			COALESCE(entity_id, '') AS entity_id,
			COALESCE(session_id, '') AS session_id,
			COALESCE(duration_seconds, 0) AS duration_seconds,
			occurred_at
		FROM activity_events
		WHERE user_id = ?
		  AND occurred_at >= ?`
	args := []any{userID, since.UTC()}

	if len(types) > 0 {
		placeholders := make([]string, len(types))
		for i, t := range types {
			placeholders[i] = "?"
			args = append(args, string(t))
		}
		query += fmt.Sprintf("\n\t\t  AND type IN (%s)", strings.Join(placeholders, ", "))
	}
	query += "\n\t\tORDER BY occurred_at ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			ev       Event
			evType   string
			duration int64
		)
		if err := rows.Scan(&ev.ID, &ev.UserID, &evType, &ev.EntityID, &ev.SessionID, &duration, &ev.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity row: %w", err)
		}
		ev.Type = EventType(evType)
		ev.OccurredAt = ev.OccurredAt.UTC()
		ev.Duration = time.Duration(duration) * time.Second
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return events, nil
}

func (s *DuckDBSource) LastActivity(ctx context.Context, userID string) (time.Time, bool, error) {
	var last sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(occurred_at) FROM activity_events WHERE user_id = ?`, userID,
	).Scan(&last)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to get last activity: %w", err)
	}
	if !last.Valid {
		return time.Time{}, false, nil
	}
	return last.Time.UTC(), true, nil
}

func (s *DuckDBSource) Record(ctx context.Context, ev Event) error {
	if !ev.Type.IsValid() {
		return fmt.Errorf("unknown event type: %s", ev.Type)
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activity_events (id, user_id, type, entity_id, session_id, duration_seconds, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.UserID, string(ev.Type), ev.EntityID, ev.SessionID,
		int64(ev.Duration/time.Second), ev.OccurredAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record activity: %w", err)
	}
	return nil
}

// ImportJSONL loads newline-delimited JSON events from path using DuckDB's
// read_json. Rows with an unknown type are skipped. The json extension must be
// loaded on the connection.
func (s *DuckDBSource) ImportJSONL(ctx context.Context, path string) (int64, error) {
	valid := make([]string, 0, len(ValidEventTypes))
	for t := range ValidEventTypes {
		valid = append(valid, "'"+string(t)+"'")
	}

	query := fmt.Sprintf(`
		INSERT INTO activity_events (id, user_id, type, entity_id, session_id, duration_seconds, occurred_at)
		SELECT
			COALESCE(id, CAST(gen_random_uuid() AS VARCHAR)),
			user_id,
			type,
			COALESCE(entity_id, ''),
			COALESCE(session_id, ''),
			COALESCE(duration_seconds, 0),
			occurred_at
		FROM read_json('%s',
			format = 'newline_delimited',
			columns = {
				id: 'VARCHAR',
				user_id: 'VARCHAR',
				type: 'VARCHAR',
				entity_id: 'VARCHAR',
				session_id: 'VARCHAR',
				duration_seconds: 'BIGINT',
				occurred_at: 'TIMESTAMP'
			},
			ignore_errors = true
		)
		WHERE user_id IS NOT NULL
		  AND occurred_at IS NOT NULL
		  AND type IN (%s)
	`, strings.ReplaceAll(path, "'", "''"), strings.Join(valid, ", "))

	res, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to import activity from %s: %w", path, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count imported rows: %w", err)
	}
	return n, nil
}
