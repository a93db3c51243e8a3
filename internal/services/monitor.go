package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"facemonitor/internal/config"
	"facemonitor/internal/logger"
	"facemonitor/internal/metrics"
	"facemonitor/internal/model"
	"facemonitor/internal/repository"
	"facemonitor/internal/services/annotate"
	"facemonitor/internal/services/recognition"
	"facemonitor/internal/services/status"
	"facemonitor/internal/services/storage"
)

const (
	// heartbeatInterval is how often an idle monitor re-publishes its status
	// so the dashboard can tell idle from dead.
	heartbeatInterval = 30 * time.Second

	// fastRecheckDelay is the poll delay right after a batch was processed.
	fastRecheckDelay = 200 * time.Millisecond
)

// Monitor owns one camera's polling loop: it pulls new images from the
// camera folder, classifies them, and publishes status and history.
// Monitors share nothing with each other; each owns its cursor, execution
// slot and empty-tick counter.
type Monitor struct {
	camera    config.CameraConfig
	scanner   *storage.Scanner
	client    *recognition.Client
	publisher *status.Publisher
	events    repository.EventRepository
	snapshots *storage.SnapshotStore
	metrics   *metrics.Metrics
	logger    *logger.Logger

	baseInterval time.Duration
	batchSize    int

	// busy is the per-camera execution slot. Acquisition is non-blocking;
	// a failed acquire skips the tick instead of queuing.
	busy atomic.Bool

	// cursor is the path of the last submitted image, the exclusive lower
	// bound for the next scan. Never rewound while the monitor runs.
	cursor string

	consecutiveEmpty int
	lastHeartbeat    time.Time
}

// NewMonitor creates a monitor for one enabled camera.
func NewMonitor(
	camera config.CameraConfig,
	client *recognition.Client,
	publisher *status.Publisher,
	events repository.EventRepository,
	snapshots *storage.SnapshotStore,
	m *metrics.Metrics,
	log *logger.Logger,
	batchSize int,
) *Monitor {
	if batchSize <= 0 {
		batchSize = 3
	}
	return &Monitor{
		camera:       camera,
		scanner:      storage.NewScanner(camera.FolderPath, camera.FilePattern),
		client:       client,
		publisher:    publisher,
		events:       events,
		snapshots:    snapshots,
		metrics:      m,
		logger:       log,
		baseInterval: time.Duration(camera.CheckInterval * float64(time.Second)),
		batchSize:    batchSize,
	}
}

// Run executes the polling loop until the context is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	m.logger.Info("[%s] monitor started: %s (interval %.1fs)",
		m.camera.ID, m.camera.FolderPath, m.baseInterval.Seconds())

	m.publish(model.LiveStatus{Status: model.StatusGray, Message: "system started, scanning"})
	m.lastHeartbeat = time.Now()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("[%s] monitor stopped", m.camera.ID)
			return
		default:
		}

		delay := m.tick(ctx)

		select {
		case <-ctx.Done():
			m.logger.Info("[%s] monitor stopped", m.camera.ID)
			return
		case <-time.After(delay):
		}
	}
}

// tick runs one scan-and-batch cycle and returns the next poll delay.
// A panic inside an iteration is contained here; the loop continues after
// a fallback sleep of one baseline interval.
func (m *Monitor) tick(ctx context.Context) (delay time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			m.metrics.LoopRecoveries.Add(1)
			m.logger.Error("[%s] monitor iteration panicked: %v", m.camera.ID, r)
			m.publish(model.LiveStatus{
				Status:  model.StatusRed,
				Message: fmt.Sprintf("system error: %v", r),
			})
			delay = m.baseInterval
		}
	}()

	if !m.busy.CompareAndSwap(false, true) {
		// A previous iteration is still running; skip this tick entirely.
		return m.nextDelay()
	}
	defer m.busy.Store(false)

	candidates, err := m.scanner.Scan(m.cursor, m.batchSize)
	if err != nil {
		m.logger.Error("[%s] scan failed: %v", m.camera.ID, err)
	}

	if len(candidates) == 0 {
		m.consecutiveEmpty++
		if time.Since(m.lastHeartbeat) > heartbeatInterval {
			m.publish(model.LiveStatus{
				Status:  model.StatusGray,
				Message: fmt.Sprintf("monitoring, no new images for %d checks", m.consecutiveEmpty),
			})
			m.lastHeartbeat = time.Now()
			m.metrics.Heartbeats.Add(1)
		}
		return m.nextDelay()
	}

	m.logger.Info("[%s] %d new image(s) found", m.camera.ID, len(candidates))
	for _, cand := range candidates {
		if ctx.Err() != nil {
			break
		}
		m.processImage(ctx, cand)
	}
	m.consecutiveEmpty = 0

	return m.nextDelay()
}

// nextDelay computes the adaptive poll delay from the empty-tick counter:
// a short burst of fast polling right after activity, relaxing toward a
// slightly stretched baseline during long idle periods.
func (m *Monitor) nextDelay() time.Duration {
	switch {
	case m.consecutiveEmpty == 0:
		return fastRecheckDelay
	case m.consecutiveEmpty < 3:
		return time.Duration(float64(m.baseInterval) * 0.3)
	case m.consecutiveEmpty < 10:
		return m.baseInterval
	default:
		return time.Duration(float64(m.baseInterval) * 1.2)
	}
}

// processImage classifies one candidate and publishes the outcome. The
// cursor advances on every outcome, including failures: an unclassifiable
// file must not starve the images behind it.
func (m *Monitor) processImage(ctx context.Context, cand storage.Candidate) {
	filename := filepath.Base(cand.Path)

	m.publish(model.LiveStatus{
		Status:    model.StatusProcessing,
		Message:   fmt.Sprintf("processing %s", filename),
		ImageFile: &filename,
	})
	m.logger.Info("[%s] processing: %s", m.camera.ID, filename)

	result := m.client.Classify(ctx, cand.Path)

	m.metrics.ImagesProcessed.Add(1)
	m.metrics.UpdateClassifyLatency(result.Elapsed)
	m.countResult(result)

	m.publish(statusForResult(result, filename))
	m.logResult(result, filename)

	if result.Kind == recognition.KindRecognized {
		m.recordRecognition(cand, filename, result)
	}

	m.cursor = cand.Path
}

// statusForResult maps a classification outcome onto the live status
// record. The switch is exhaustive over the result kinds.
func statusForResult(result recognition.Result, filename string) model.LiveStatus {
	st := model.LiveStatus{ImageFile: &filename}

	switch result.Kind {
	case recognition.KindRecognized:
		st.Status = model.StatusGreen
		st.Message = "recognized: " + strings.Join(result.Names(), ", ")
		st.Recognized = result.Names()
	case recognition.KindUnknownFace:
		st.Status = model.StatusRed
		st.Message = fmt.Sprintf("%d unknown person(s)", result.Unknown)
	case recognition.KindNoFace:
		st.Status = model.StatusGray
		st.Message = "no face detected"
	case recognition.KindTimeout:
		st.Status = model.StatusGray
		st.Message = fmt.Sprintf("recognition service slow (%.1fs)", result.Elapsed.Seconds())
	case recognition.KindServiceError:
		st.Status = model.StatusRed
		st.Message = "recognition error: " + result.Err
	}

	return st
}

func (m *Monitor) countResult(result recognition.Result) {
	switch result.Kind {
	case recognition.KindRecognized:
		m.metrics.Recognized.Add(1)
	case recognition.KindUnknownFace:
		m.metrics.UnknownFaces.Add(1)
	case recognition.KindNoFace:
		m.metrics.NoFace.Add(1)
	case recognition.KindTimeout:
		m.metrics.Timeouts.Add(1)
	case recognition.KindServiceError:
		m.metrics.ServiceErrors.Add(1)
	}
}

func (m *Monitor) logResult(result recognition.Result, filename string) {
	switch result.Kind {
	case recognition.KindRecognized:
		m.logger.Info("[%s] recognized: %s (%.1fs)",
			m.camera.ID, strings.Join(result.Names(), ", "), result.Elapsed.Seconds())
		if result.Unknown > 0 {
			m.logger.Info("[%s] plus %d unknown face(s)", m.camera.ID, result.Unknown)
		}
	case recognition.KindUnknownFace:
		m.logger.Info("[%s] %d unknown face(s) in %s", m.camera.ID, result.Unknown, filename)
	case recognition.KindNoFace:
		m.logger.Info("[%s] no face in %s", m.camera.ID, filename)
	case recognition.KindTimeout:
		m.logger.Warning("[%s] recognition slow for %s (%.1fs)",
			m.camera.ID, filename, result.Elapsed.Seconds())
	case recognition.KindServiceError:
		m.logger.Error("[%s] recognition failed for %s: %s", m.camera.ID, filename, result.Err)
	}
}

// recordRecognition appends the history entry, stores per-subject events
// and saves an annotated snapshot. All failures are logged and swallowed.
func (m *Monitor) recordRecognition(cand storage.Candidate, filename string, result recognition.Result) {
	entry := model.HistoryEntry{
		Timestamp:  time.Now(),
		Camera:     m.camera.ID,
		Image:      filename,
		Recognized: result.Names(),
	}
	if err := m.publisher.AppendHistory(entry); err != nil {
		m.metrics.PublishErrors.Add(1)
		m.logger.Error("[%s] failed to append history: %v", m.camera.ID, err)
	}

	snapshotPath := m.saveSnapshot(cand.Path, result.Matches)

	if m.events == nil {
		return
	}
	for _, match := range result.Matches {
		event := &model.RecognitionEvent{
			Camera:       m.camera.ID,
			Image:        filename,
			Subject:      match.Subject,
			Similarity:   match.Similarity,
			SnapshotPath: snapshotPath,
			Timestamp:    entry.Timestamp,
		}
		if _, err := m.events.Insert(event); err != nil {
			m.logger.Error("[%s] failed to store recognition event: %v", m.camera.ID, err)
		}
	}
}

// saveSnapshot annotates the recognized frame and saves it for the
// gallery. Falls back to the raw frame when annotation fails.
func (m *Monitor) saveSnapshot(path string, matches []recognition.Match) string {
	if m.snapshots == nil || len(matches) == 0 {
		return ""
	}

	data, err := os.ReadFile(path)
	if err != nil {
		m.logger.Warning("[%s] failed to read frame for snapshot: %v", m.camera.ID, err)
		return ""
	}

	annotated, err := annotate.Faces(data, matches)
	if err != nil {
		m.logger.Warning("[%s] failed to annotate frame: %v", m.camera.ID, err)
		annotated = data
	}

	saved, err := m.snapshots.Save(annotated, m.camera.ID, matches[0].Subject)
	if err != nil {
		m.logger.Error("[%s] failed to save snapshot: %v", m.camera.ID, err)
		return ""
	}
	return saved
}

// publish stamps and writes a complete status record. Publish failures do
// not stop the monitor; the next tick overwrites the record anyway.
func (m *Monitor) publish(st model.LiveStatus) {
	st.Timestamp = time.Now()
	st.CameraID = m.camera.ID
	st.LastCheck = st.Timestamp.Format("15:04:05")

	if err := m.publisher.PublishStatus(st); err != nil {
		m.metrics.PublishErrors.Add(1)
		m.logger.Error("[%s] failed to publish status: %v", m.camera.ID, err)
	}
}
