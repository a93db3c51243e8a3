package model

import "time"

// RecognitionEvent is one recognized subject persisted to the event store.
type RecognitionEvent struct {
	ID           int64     `json:"id"`
	Camera       string    `json:"camera"`
	Image        string    `json:"image"`
	Subject      string    `json:"subject"`
	Similarity   float64   `json:"similarity"`
	SnapshotPath string    `json:"snapshot_path"`
	Timestamp    time.Time `json:"timestamp"`
}

// EventFilter contains filtering options for querying recognition events.
type EventFilter struct {
	Camera  string
	Subject string
	After   time.Time
	Limit   int
}
