package model

import "time"

// Status colors understood by the dashboard front end.
const (
	StatusGreen      = "green"
	StatusRed        = "red"
	StatusGray       = "gray"
	StatusProcessing = "processing"
)

// LiveStatus is the single shared status record overwritten on every
// state transition. The dashboard re-reads the whole record, so writers
// must always produce a complete snapshot.
type LiveStatus struct {
	Timestamp  time.Time `json:"timestamp"`
	CameraID   string    `json:"camera_id"`
	Status     string    `json:"status"` // green, red, gray, processing
	Message    string    `json:"message"`
	Recognized []string  `json:"recognized"`
	ImageFile  *string   `json:"image_file"`
	LastCheck  string    `json:"last_check"` // HH:MM:SS
}

// HistoryEntry is one successful recognition in the bounded history log.
type HistoryEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	Camera     string    `json:"camera"`
	Image      string    `json:"image"`
	Recognized []string  `json:"recognized"`
}
