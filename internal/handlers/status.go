package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"facemonitor/internal/logger"
	"facemonitor/internal/services/status"
)

// staleAfter is how old a live status record may be before the dashboard
// reports the system as inactive.
const staleAfter = 5 * time.Minute

// StatusResponse is the dashboard view of the live status record.
type StatusResponse struct {
	Status     string   `json:"status"`
	Message    string   `json:"message"`
	Time       string   `json:"time"`
	Camera     string   `json:"camera"`
	Image      string   `json:"image"`
	AgeMinutes int      `json:"age_minutes"`
	Recognized []string `json:"recognized"`
}

// StatusHandler serves the current live status. A missing or stale record
// degrades to a gray "not active" response instead of an error.
func StatusHandler(publisher *status.Publisher, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := StatusResponse{
			Status:     "gray",
			Message:    "system not active",
			Time:       "N/A",
			Camera:     "N/A",
			AgeMinutes: 999,
			Recognized: []string{},
		}

		st, err := publisher.ReadStatus()
		if err != nil {
			logger.Error("Error reading live status: %v", err)
		}
		if st != nil {
			age := time.Since(st.Timestamp)
			if age < staleAfter {
				resp.Status = st.Status
				resp.Message = st.Message
				resp.Time = st.Timestamp.Format("15:04:05")
				resp.Camera = st.CameraID
				resp.AgeMinutes = int(age.Minutes())
				if st.ImageFile != nil {
					resp.Image = *st.ImageFile
				}
				if st.Recognized != nil {
					resp.Recognized = st.Recognized
				}
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			logger.Error("Error encoding status response: %v", err)
		}
	}
}

// HistoryHandler serves the bounded recognition history log, oldest first.
func HistoryHandler(publisher *status.Publisher, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := publisher.ReadHistory()
		if err != nil {
			logger.Error("Error reading history: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")
		if entries == nil {
			w.Write([]byte("[]"))
			return
		}
		if err := json.NewEncoder(w).Encode(entries); err != nil {
			logger.Error("Error encoding history response: %v", err)
		}
	}
}
