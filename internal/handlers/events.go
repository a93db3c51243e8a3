package handlers

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"strconv"

	"facemonitor/internal/logger"
	"facemonitor/internal/model"
	"facemonitor/internal/repository"
	"facemonitor/internal/services/storage"
)

// EventsHandler lists persisted recognition events, newest first.
// Supports camera, subject and limit query parameters.
func EventsHandler(repo repository.EventRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		filter := &model.EventFilter{
			Camera:  q.Get("camera"),
			Subject: q.Get("subject"),
			Limit:   atoiDefault(q.Get("limit"), 100),
		}

		events, err := repo.GetRecent(filter)
		if err != nil {
			logger.Error("Error querying recognition events: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if events == nil {
			w.Write([]byte("[]"))
			return
		}
		if err := json.NewEncoder(w).Encode(events); err != nil {
			logger.Error("Error encoding events response: %v", err)
		}
	}
}

// SubjectStatsHandler returns recognition counts per subject.
func SubjectStatsHandler(repo repository.EventRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		counts, err := repo.CountBySubject()
		if err != nil {
			logger.Error("Error counting recognition events: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(counts); err != nil {
			logger.Error("Error encoding stats response: %v", err)
		}
	}
}

// EventImageHandler serves an annotated snapshot from the events directory.
func EventImageHandler(snapshots *storage.SnapshotStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		image := r.URL.Query().Get("image")
		if image == "" {
			http.Error(w, "Missing image parameter", http.StatusBadRequest)
			return
		}

		// Strip any path components so requests cannot escape the directory.
		http.ServeFile(w, r, filepath.Join(snapshots.Dir(), filepath.Base(image)))
	}
}

// atoiDefault parses a positive integer, falling back to def.
func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
