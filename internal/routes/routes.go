package routes

import (
	"net/http"
	"os"
	"path/filepath"

	"facemonitor/internal/config"
	"facemonitor/internal/handlers"
	"facemonitor/internal/logger"
	"facemonitor/internal/metrics"
	"facemonitor/internal/middleware"
	"facemonitor/internal/repository"
	"facemonitor/internal/services/status"
	"facemonitor/internal/services/storage"
	ws "facemonitor/internal/services/websocket"
)

// dynamicHTMLHandler serves /path as /static/path.html if the file exists; otherwise 404.
func dynamicHTMLHandler(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	if path == "/" {
		path = "/index"
	}

	filePath := filepath.Join("static", path+".html")

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		http.NotFound(w, r)
		return
	}

	http.ServeFile(w, r, filePath)
}

// SetupRoutes registers HTTP routes, static file serving, API endpoints,
// and wraps the mux with the authentication middleware.
func SetupRoutes(
	cfg *config.Config,
	publisher *status.Publisher,
	events repository.EventRepository,
	snapshots *storage.SnapshotStore,
	hub *ws.HubService,
	m *metrics.Metrics,
	logger *logger.Logger,
) http.Handler {
	mux := http.NewServeMux()

	// Static files
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir("static"))))

	// API endpoints
	mux.HandleFunc("/api/status", handlers.StatusHandler(publisher, logger))
	mux.HandleFunc("/api/history", handlers.HistoryHandler(publisher, logger))
	mux.HandleFunc("/api/events", handlers.EventsHandler(events, logger))
	mux.HandleFunc("/api/events/stats", handlers.SubjectStatsHandler(events, logger))
	mux.HandleFunc("/api/events/image", handlers.EventImageHandler(snapshots))
	mux.HandleFunc("/api/view", handlers.ViewWebsocketHandler(hub, logger))

	// Metrics endpoint
	mux.Handle("/metrics", m.Handler())

	// Log endpoints
	mux.HandleFunc("/logs/info", handlers.ShowInfoLogsHandler(cfg.LogDirectory))
	mux.HandleFunc("/logs/warning", handlers.ShowWarningLogsHandler(cfg.LogDirectory))
	mux.HandleFunc("/logs/error", handlers.ShowErrorLogsHandler(cfg.LogDirectory))

	mux.HandleFunc("/logs/info/clear", handlers.ClearInfoLogsHandler(logger))
	mux.HandleFunc("/logs/warning/clear", handlers.ClearWarningLogsHandler(logger))
	mux.HandleFunc("/logs/error/clear", handlers.ClearErrorLogsHandler(logger))

	// Auth endpoints
	mux.HandleFunc("/auth/login", handlers.LoginHandler(cfg, logger))
	mux.HandleFunc("/auth/logout", handlers.LogoutHandler)

	// Automatic HTML handler mapping for example: /settings -> /static/settings.html
	mux.HandleFunc("/", dynamicHTMLHandler)

	// Apply middleware
	return middleware.AuthMiddleware(mux)
}
