package services

import (
	"context"
	"sync"
	"time"

	"facemonitor/internal/config"
	"facemonitor/internal/logger"
	"facemonitor/internal/metrics"
	"facemonitor/internal/repository"
	"facemonitor/internal/services/recognition"
	"facemonitor/internal/services/status"
	"facemonitor/internal/services/storage"
)

// Manager owns the set of camera monitors: one per enabled camera, all
// sharing a single recognition client, and supervises their lifetime.
type Manager struct {
	monitors []*Monitor
	logger   *logger.Logger
	wg       sync.WaitGroup
}

// NewManager builds a monitor for every enabled camera.
func NewManager(
	cfg *config.Config,
	client *recognition.Client,
	publisher *status.Publisher,
	events repository.EventRepository,
	snapshots *storage.SnapshotStore,
	m *metrics.Metrics,
	log *logger.Logger,
) *Manager {
	manager := &Manager{logger: log}

	for _, cam := range cfg.EnabledCameras() {
		monitor := NewMonitor(cam, client, publisher, events, snapshots, m, log, cfg.BatchSize)
		manager.monitors = append(manager.monitors, monitor)
		log.Info("Monitor configured for camera %s: %s", cam.ID, cam.FolderPath)
	}

	return manager
}

// Start launches every monitor on its own goroutine. Monitors run until
// the context is cancelled.
func (mg *Manager) Start(ctx context.Context) {
	for _, monitor := range mg.monitors {
		mg.wg.Add(1)
		go func(mon *Monitor) {
			defer mg.wg.Done()
			mon.Run(ctx)
		}(monitor)
	}
	mg.logger.Info("All %d monitor(s) started", len(mg.monitors))
}

// Stop waits for the monitors to finish, bounded by timeout. An in-flight
// recognition request can hold a monitor up to its request timeout.
func (mg *Manager) Stop(timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		mg.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		mg.logger.Info("All monitors stopped")
	case <-time.After(timeout):
		mg.logger.Warning("Timed out waiting for monitors to stop")
	}
}

// MonitorCount returns how many cameras are being monitored.
func (mg *Manager) MonitorCount() int {
	return len(mg.monitors)
}
