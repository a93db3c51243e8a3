package status

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"facemonitor/internal/logger"
	"facemonitor/internal/model"
	"facemonitor/internal/services/mqtt"
	"facemonitor/internal/services/websocket"
)

const (
	statusFile  = "live_status.json"
	historyFile = "recognition_results.json"

	// HistoryLimit bounds the history log; oldest entries are evicted first.
	HistoryLimit = 50
)

// Publisher writes the live status record and the bounded history log that
// the display front end reads. Optionally mirrors every status record to
// the dashboard websocket hub and an MQTT broker.
type Publisher struct {
	statusPath  string
	historyPath string
	logger      *logger.Logger

	Hub  *websocket.HubService
	MQTT *mqtt.Publisher

	mu sync.Mutex
}

func NewPublisher(dataDir string, log *logger.Logger) *Publisher {
	return &Publisher{
		statusPath:  filepath.Join(dataDir, statusFile),
		historyPath: filepath.Join(dataDir, historyFile),
		logger:      log,
	}
}

// PublishStatus overwrites the shared status record. Last write wins;
// the record is written whole via a temp file and rename so readers never
// observe a torn write.
func (p *Publisher) PublishStatus(st model.LiveStatus) error {
	if st.Recognized == nil {
		st.Recognized = []string{}
	}

	payload, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal live status: %w", err)
	}

	p.mu.Lock()
	err = writeAtomic(p.statusPath, payload)
	p.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to write live status: %w", err)
	}

	if p.Hub != nil {
		p.Hub.Broadcast(payload)
	}
	if p.MQTT != nil {
		p.MQTT.PublishStatus(st.CameraID, payload)
	}

	return nil
}

// AppendHistory appends one entry to the history log and truncates it to
// the newest HistoryLimit entries, oldest first.
func (p *Publisher) AppendHistory(entry model.HistoryEntry) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	entries, err := p.readHistory()
	if err != nil {
		// A corrupt log is abandoned rather than blocking new entries.
		p.logger.Warning("Resetting unreadable history log: %v", err)
		entries = nil
	}

	entries = append(entries, entry)
	if len(entries) > HistoryLimit {
		entries = entries[len(entries)-HistoryLimit:]
	}

	payload, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}
	if err := writeAtomic(p.historyPath, payload); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}

	return nil
}

// ReadStatus returns the current live status record, or nil when none has
// been written yet.
func (p *Publisher) ReadStatus() (*model.LiveStatus, error) {
	data, err := os.ReadFile(p.statusPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read live status: %w", err)
	}

	var st model.LiveStatus
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to parse live status: %w", err)
	}
	return &st, nil
}

// ReadHistory returns the history log, oldest first.
func (p *Publisher) ReadHistory() ([]model.HistoryEntry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.readHistory()
}

func (p *Publisher) readHistory() ([]model.HistoryEntry, error) {
	data, err := os.ReadFile(p.historyPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var entries []model.HistoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// writeAtomic writes data to a temp file in the target directory and
// renames it into place.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	return os.Rename(tmp.Name(), path)
}
