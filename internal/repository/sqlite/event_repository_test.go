package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"facemonitor/internal/model"
)

func newTestRepo(t *testing.T) *EventRepository {
	t.Helper()

	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return NewEventRepository(db)
}

func insertEvent(t *testing.T, repo *EventRepository, camera, subject string, ts time.Time) int64 {
	t.Helper()

	id, err := repo.Insert(&model.RecognitionEvent{
		Camera:     camera,
		Image:      "img.jpg",
		Subject:    subject,
		Similarity: 0.85,
		Timestamp:  ts,
	})
	if err != nil {
		t.Fatalf("failed to insert event: %v", err)
	}
	return id
}

func TestInsertAndGetRecent(t *testing.T) {
	repo := newTestRepo(t)
	now := time.Now().UTC()

	insertEvent(t, repo, "cam1", "alice", now.Add(-2*time.Hour))
	insertEvent(t, repo, "cam1", "bob", now.Add(-time.Hour))
	insertEvent(t, repo, "cam2", "alice", now)

	events, err := repo.GetRecent(&model.EventFilter{})
	if err != nil {
		t.Fatalf("GetRecent failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[0].Camera != "cam2" {
		t.Errorf("expected newest first, got %s", events[0].Camera)
	}
}

func TestGetRecentFilters(t *testing.T) {
	repo := newTestRepo(t)
	now := time.Now().UTC()

	insertEvent(t, repo, "cam1", "alice", now.Add(-2*time.Hour))
	insertEvent(t, repo, "cam1", "bob", now.Add(-time.Hour))
	insertEvent(t, repo, "cam2", "alice", now)

	byCamera, err := repo.GetRecent(&model.EventFilter{Camera: "cam1"})
	if err != nil {
		t.Fatalf("GetRecent failed: %v", err)
	}
	if len(byCamera) != 2 {
		t.Errorf("expected 2 cam1 events, got %d", len(byCamera))
	}

	bySubject, err := repo.GetRecent(&model.EventFilter{Subject: "alice"})
	if err != nil {
		t.Fatalf("GetRecent failed: %v", err)
	}
	if len(bySubject) != 2 {
		t.Errorf("expected 2 alice events, got %d", len(bySubject))
	}

	recent, err := repo.GetRecent(&model.EventFilter{After: now.Add(-90 * time.Minute)})
	if err != nil {
		t.Fatalf("GetRecent failed: %v", err)
	}
	if len(recent) != 2 {
		t.Errorf("expected 2 recent events, got %d", len(recent))
	}

	limited, err := repo.GetRecent(&model.EventFilter{Limit: 1})
	if err != nil {
		t.Fatalf("GetRecent failed: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("expected 1 event with limit, got %d", len(limited))
	}
}

func TestCountBySubject(t *testing.T) {
	repo := newTestRepo(t)
	now := time.Now().UTC()

	insertEvent(t, repo, "cam1", "alice", now)
	insertEvent(t, repo, "cam2", "alice", now)
	insertEvent(t, repo, "cam1", "bob", now)

	counts, err := repo.CountBySubject()
	if err != nil {
		t.Fatalf("CountBySubject failed: %v", err)
	}
	if counts["alice"] != 2 || counts["bob"] != 1 {
		t.Errorf("unexpected counts: %v", counts)
	}
}

func TestDeleteOlderThan(t *testing.T) {
	repo := newTestRepo(t)
	now := time.Now().UTC()

	insertEvent(t, repo, "cam1", "alice", now.AddDate(0, 0, -10))
	insertEvent(t, repo, "cam1", "bob", now)

	deleted, err := repo.DeleteOlderThan(7)
	if err != nil {
		t.Fatalf("DeleteOlderThan failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 deleted event, got %d", deleted)
	}

	remaining, err := repo.GetRecent(&model.EventFilter{})
	if err != nil {
		t.Fatalf("GetRecent failed: %v", err)
	}
	if len(remaining) != 1 || remaining[0].Subject != "bob" {
		t.Errorf("unexpected remaining events: %+v", remaining)
	}
}
