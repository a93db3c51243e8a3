package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

const (
	// MinAge guards against picking up a file the downloader is still writing.
	MinAge = 500 * time.Millisecond
	// MinSize guards against truncated or corrupt captures.
	MinSize = 3000
)

// Candidate is one new, stable image file ready for classification.
type Candidate struct {
	Path    string
	ModTime time.Time
	Size    int64
}

// Scanner finds unprocessed images in a camera folder. Filenames embed a
// zero-padded timestamp, so lexicographic order equals chronological order.
type Scanner struct {
	Folder  string
	Pattern string
	MinAge  time.Duration
	MinSize int64
}

// NewScanner creates a Scanner with the default age and size guards.
func NewScanner(folder, pattern string) *Scanner {
	return &Scanner{
		Folder:  folder,
		Pattern: pattern,
		MinAge:  MinAge,
		MinSize: MinSize,
	}
}

// Scan returns up to maxCount candidates whose path sorts strictly after
// cursor, earliest first. An empty cursor selects from the beginning.
// Scan is a pure query; the caller advances the cursor after submission.
func (s *Scanner) Scan(cursor string, maxCount int) ([]Candidate, error) {
	paths, err := filepath.Glob(filepath.Join(s.Folder, s.Pattern))
	if err != nil {
		return nil, fmt.Errorf("invalid file pattern %s: %w", s.Pattern, err)
	}
	if len(paths) == 0 {
		return nil, nil
	}

	sort.Strings(paths)

	now := time.Now()
	var candidates []Candidate

	for _, path := range paths {
		if cursor != "" && path <= cursor {
			continue
		}

		info, err := os.Stat(path)
		if err != nil {
			// Raced with the producer's retention cleanup; skip.
			continue
		}
		if now.Sub(info.ModTime()) < s.MinAge {
			continue
		}
		if info.Size() < s.MinSize {
			continue
		}

		candidates = append(candidates, Candidate{
			Path:    path,
			ModTime: info.ModTime(),
			Size:    info.Size(),
		})
		if len(candidates) >= maxCount {
			break
		}
	}

	return candidates, nil
}
