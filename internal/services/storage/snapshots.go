package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// SnapshotStore saves annotated event snapshots for the dashboard gallery.
type SnapshotStore struct {
	dir string
}

func NewSnapshotStore(dir string) *SnapshotStore {
	return &SnapshotStore{dir: dir}
}

// Save writes an annotated frame and returns its path. Filenames carry the
// timestamp, camera and subject so the gallery can filter without a lookup.
func (s *SnapshotStore) Save(imageData []byte, camera, subject string) (string, error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	filename := fmt.Sprintf("%s_%s_%s.jpg", timestamp, camera, subject)
	fullpath := filepath.Join(s.dir, filename)

	if err := os.WriteFile(fullpath, imageData, 0644); err != nil {
		return "", fmt.Errorf("failed to save snapshot %s: %w", filename, err)
	}

	return fullpath, nil
}

// Dir returns the snapshot directory.
func (s *SnapshotStore) Dir() string {
	return s.dir
}
