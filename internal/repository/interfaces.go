package repository

import "facemonitor/internal/model"

// EventRepository defines the interface for recognition event storage.
type EventRepository interface {
	// Create operations
	Insert(event *model.RecognitionEvent) (int64, error)

	// Read operations
	GetRecent(filter *model.EventFilter) ([]model.RecognitionEvent, error)
	CountBySubject() (map[string]int, error)

	// Delete operations
	DeleteOlderThan(days int) (int64, error)
}
