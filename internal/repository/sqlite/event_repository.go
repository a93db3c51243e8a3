package sqlite

import (
	"fmt"

	"facemonitor/internal/model"
)

// EventRepository implements repository.EventRepository for SQLite.
type EventRepository struct {
	db *DB
}

// NewEventRepository creates a new SQLite recognition event repository.
func NewEventRepository(db *DB) *EventRepository {
	return &EventRepository{db: db}
}

// Insert adds a new recognition event to the database.
func (r *EventRepository) Insert(event *model.RecognitionEvent) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		INSERT INTO recognition_events (camera, image, subject, similarity, snapshot_path, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`, event.Camera, event.Image, event.Subject, event.Similarity, event.SnapshotPath, event.Timestamp)
	if err != nil {
		return 0, fmt.Errorf("failed to insert recognition event: %w", err)
	}

	return result.LastInsertId()
}

// GetRecent retrieves recognition events based on filter criteria,
// newest first.
func (r *EventRepository) GetRecent(filter *model.EventFilter) ([]model.RecognitionEvent, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query := `
		SELECT id, camera, image, subject, similarity, snapshot_path, timestamp
		FROM recognition_events
		WHERE 1=1
	`
	args := []interface{}{}

	if filter.Camera != "" {
		query += " AND camera = ?"
		args = append(args, filter.Camera)
	}

	if filter.Subject != "" {
		query += " AND subject = ?"
		args = append(args, filter.Subject)
	}

	if !filter.After.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, filter.After)
	}

	query += " ORDER BY timestamp DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query recognition events: %w", err)
	}
	defer rows.Close()

	var events []model.RecognitionEvent
	for rows.Next() {
		var e model.RecognitionEvent
		if err := rows.Scan(&e.ID, &e.Camera, &e.Image, &e.Subject, &e.Similarity, &e.SnapshotPath, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan recognition event: %w", err)
		}
		events = append(events, e)
	}

	return events, rows.Err()
}

// CountBySubject returns how many times each subject has been recognized.
func (r *EventRepository) CountBySubject() (map[string]int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT subject, COUNT(*) FROM recognition_events GROUP BY subject
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count recognition events: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var subject string
		var count int
		if err := rows.Scan(&subject, &count); err != nil {
			return nil, fmt.Errorf("failed to scan event count: %w", err)
		}
		counts[subject] = count
	}

	return counts, rows.Err()
}

// DeleteOlderThan removes events older than the given number of days and
// returns how many were deleted.
func (r *EventRepository) DeleteOlderThan(days int) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		DELETE FROM recognition_events
		WHERE timestamp < DATETIME('now', ?)
	`, fmt.Sprintf("-%d days", days))
	if err != nil {
		return 0, fmt.Errorf("failed to delete old recognition events: %w", err)
	}

	return result.RowsAffected()
}
