package services

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"facemonitor/internal/config"
	"facemonitor/internal/logger"
	"facemonitor/internal/metrics"
	"facemonitor/internal/model"
	"facemonitor/internal/services/recognition"
	"facemonitor/internal/services/status"
)

func newTestMonitor(t *testing.T, serviceURL string) (*Monitor, *status.Publisher, string) {
	t.Helper()

	dir := t.TempDir()
	folder := filepath.Join(dir, "images")
	if err := os.MkdirAll(folder, 0755); err != nil {
		t.Fatalf("failed to create image folder: %v", err)
	}

	log, err := logger.New(filepath.Join(dir, "logs"))
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	publisher := status.NewPublisher(dir, log)
	client := recognition.NewClient(serviceURL, "test-key", time.Second)

	camera := config.CameraConfig{
		ID:            "cam1",
		FolderPath:    folder,
		FilePattern:   "cam1_*.jpg",
		Enabled:       true,
		CheckInterval: 2.0,
	}

	m := NewMonitor(camera, client, publisher, nil, nil, metrics.New(), log, 3)
	return m, publisher, folder
}

func writeCandidate(t *testing.T, folder, name string) string {
	t.Helper()

	path := filepath.Join(folder, name)
	if err := os.WriteFile(path, make([]byte, 5000), 0644); err != nil {
		t.Fatalf("failed to write candidate: %v", err)
	}
	old := time.Now().Add(-2 * time.Second)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatalf("failed to backdate candidate: %v", err)
	}
	return path
}

func TestNextDelayStaircase(t *testing.T) {
	m := &Monitor{baseInterval: 2 * time.Second}

	tests := []struct {
		empty int
		want  time.Duration
	}{
		{0, 200 * time.Millisecond},
		{1, 600 * time.Millisecond},
		{2, 600 * time.Millisecond},
		{3, 2 * time.Second},
		{9, 2 * time.Second},
		{10, 2400 * time.Millisecond},
		{100, 2400 * time.Millisecond},
	}

	for _, tt := range tests {
		m.consecutiveEmpty = tt.empty
		if got := m.nextDelay(); got != tt.want {
			t.Errorf("consecutiveEmpty=%d: expected %v, got %v", tt.empty, tt.want, got)
		}
	}
}

func TestStatusForResult(t *testing.T) {
	tests := []struct {
		name        string
		result      recognition.Result
		wantStatus  string
		wantMessage string
	}{
		{
			name: "recognized",
			result: recognition.Result{
				Kind:    recognition.KindRecognized,
				Matches: []recognition.Match{{Subject: "alice"}, {Subject: "bob"}},
			},
			wantStatus:  model.StatusGreen,
			wantMessage: "recognized: alice, bob",
		},
		{
			name:        "unknown faces",
			result:      recognition.Result{Kind: recognition.KindUnknownFace, Unknown: 2},
			wantStatus:  model.StatusRed,
			wantMessage: "2 unknown person(s)",
		},
		{
			name:        "no face",
			result:      recognition.Result{Kind: recognition.KindNoFace},
			wantStatus:  model.StatusGray,
			wantMessage: "no face detected",
		},
		{
			name:        "timeout",
			result:      recognition.Result{Kind: recognition.KindTimeout, Elapsed: 10 * time.Second},
			wantStatus:  model.StatusGray,
			wantMessage: "recognition service slow (10.0s)",
		},
		{
			name:        "service error",
			result:      recognition.Result{Kind: recognition.KindServiceError, Err: "HTTP 500"},
			wantStatus:  model.StatusRed,
			wantMessage: "recognition error: HTTP 500",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := statusForResult(tt.result, "img.jpg")
			if st.Status != tt.wantStatus {
				t.Errorf("expected status %s, got %s", tt.wantStatus, st.Status)
			}
			if st.Message != tt.wantMessage {
				t.Errorf("expected message %q, got %q", tt.wantMessage, st.Message)
			}
			if st.ImageFile == nil || *st.ImageFile != "img.jpg" {
				t.Errorf("expected image file img.jpg, got %v", st.ImageFile)
			}
		})
	}

	recognizedOnly := statusForResult(recognition.Result{
		Kind:    recognition.KindRecognized,
		Matches: []recognition.Match{{Subject: "alice"}},
	}, "img.jpg")
	if len(recognizedOnly.Recognized) != 1 || recognizedOnly.Recognized[0] != "alice" {
		t.Errorf("expected recognized names, got %v", recognizedOnly.Recognized)
	}
}

func TestTickProcessesBatchAndAdvancesCursor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result":[{"box":{"x_min":1,"y_min":1,"x_max":2,"y_max":2},"subjects":[{"subject":"alice","similarity":0.9}]}]}`)
	}))
	defer srv.Close()

	m, publisher, folder := newTestMonitor(t, srv.URL)
	writeCandidate(t, folder, "cam1_0001.jpg")
	last := writeCandidate(t, folder, "cam1_0002.jpg")

	m.tick(context.Background())

	if m.cursor != last {
		t.Errorf("expected cursor at %s, got %s", last, m.cursor)
	}
	if m.consecutiveEmpty != 0 {
		t.Errorf("expected empty counter reset, got %d", m.consecutiveEmpty)
	}
	if got := m.metrics.ImagesProcessed.Load(); got != 2 {
		t.Errorf("expected 2 images processed, got %d", got)
	}
	if got := m.metrics.Recognized.Load(); got != 2 {
		t.Errorf("expected 2 recognitions, got %d", got)
	}

	st, err := publisher.ReadStatus()
	if err != nil || st == nil {
		t.Fatalf("expected a status record, err=%v", err)
	}
	if st.Status != model.StatusGreen {
		t.Errorf("expected green status, got %s", st.Status)
	}

	entries, err := publisher.ReadHistory()
	if err != nil {
		t.Fatalf("ReadHistory failed: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 history entries, got %d", len(entries))
	}
}

func TestCursorAdvancesOnServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	m, publisher, folder := newTestMonitor(t, srv.URL)
	path := writeCandidate(t, folder, "cam1_0001.jpg")

	m.tick(context.Background())

	if m.cursor != path {
		t.Errorf("expected cursor advanced past failed image, got %q", m.cursor)
	}
	if got := m.metrics.ServiceErrors.Load(); got != 1 {
		t.Errorf("expected 1 service error, got %d", got)
	}

	st, err := publisher.ReadStatus()
	if err != nil || st == nil {
		t.Fatalf("expected a status record, err=%v", err)
	}
	if st.Status != model.StatusRed {
		t.Errorf("expected red status, got %s", st.Status)
	}

	entries, err := publisher.ReadHistory()
	if err != nil {
		t.Fatalf("ReadHistory failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("failed classification must not reach history, got %d entries", len(entries))
	}
}

func TestTickSkipsWhenBusy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("busy tick must not reach the service")
	}))
	defer srv.Close()

	m, _, folder := newTestMonitor(t, srv.URL)
	writeCandidate(t, folder, "cam1_0001.jpg")

	m.busy.Store(true)
	m.tick(context.Background())

	if m.cursor != "" {
		t.Errorf("skipped tick must not move the cursor, got %q", m.cursor)
	}
	if !m.busy.Load() {
		t.Error("skipped tick must not release the slot it never acquired")
	}
}

func TestIdleHeartbeat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	m, publisher, _ := newTestMonitor(t, srv.URL)
	m.lastHeartbeat = time.Now().Add(-time.Minute)

	m.tick(context.Background())

	if got := m.metrics.Heartbeats.Load(); got != 1 {
		t.Fatalf("expected 1 heartbeat, got %d", got)
	}

	st, err := publisher.ReadStatus()
	if err != nil || st == nil {
		t.Fatalf("expected a heartbeat status record, err=%v", err)
	}
	if st.Status != model.StatusGray {
		t.Errorf("expected gray heartbeat, got %s", st.Status)
	}

	// A second idle tick right after must stay quiet.
	m.tick(context.Background())
	if got := m.metrics.Heartbeats.Load(); got != 1 {
		t.Errorf("expected no second heartbeat, got %d", got)
	}
	if m.consecutiveEmpty != 2 {
		t.Errorf("expected 2 empty ticks counted, got %d", m.consecutiveEmpty)
	}
}

func TestTickRecoversFromPanic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	m, publisher, _ := newTestMonitor(t, srv.URL)
	m.scanner = nil // force a panic inside the iteration

	delay := m.tick(context.Background())

	if got := m.metrics.LoopRecoveries.Load(); got != 1 {
		t.Errorf("expected 1 recovery, got %d", got)
	}
	if delay != m.baseInterval {
		t.Errorf("expected baseline fallback delay, got %v", delay)
	}

	st, err := publisher.ReadStatus()
	if err != nil || st == nil {
		t.Fatalf("expected a status record, err=%v", err)
	}
	if st.Status != model.StatusRed {
		t.Errorf("expected red status after panic, got %s", st.Status)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	m, _, _ := newTestMonitor(t, srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("monitor did not stop after cancel")
	}
}
