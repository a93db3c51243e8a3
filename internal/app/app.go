package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"facemonitor/internal/config"
	"facemonitor/internal/logger"
	"facemonitor/internal/metrics"
	"facemonitor/internal/repository/sqlite"
	"facemonitor/internal/routes"
	"facemonitor/internal/services"
	mqttpub "facemonitor/internal/services/mqtt"
	"facemonitor/internal/services/recognition"
	"facemonitor/internal/services/status"
	"facemonitor/internal/services/storage"
	ws "facemonitor/internal/services/websocket"
)

type App struct {
	config    *config.Config
	logger    *logger.Logger
	db        *sqlite.DB
	hub       *ws.HubService
	mqtt      *mqttpub.Publisher
	publisher *status.Publisher
	snapshots *storage.SnapshotStore
	metrics   *metrics.Metrics
	manager   *services.Manager
	router    http.Handler
}

// New wires the whole system together. Configuration failures are fatal;
// an unreachable MQTT broker only disables the side-channel.
func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.New(cfg.LogDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDirectory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open event store: %w", err)
	}
	eventRepo := sqlite.NewEventRepository(db)

	hub := ws.NewHubService(log)

	var mqttPublisher *mqttpub.Publisher
	if cfg.MQTTBroker != "" {
		mqttPublisher, err = mqttpub.NewPublisher(mqttpub.Config{
			Broker:   cfg.MQTTBroker,
			ClientID: cfg.MQTTClientID,
			Username: cfg.MQTTUsername,
			Password: cfg.MQTTPassword,
		}, log)
		if err != nil {
			log.Warning("MQTT disabled: %v", err)
			mqttPublisher = nil
		}
	}

	publisher := status.NewPublisher(cfg.DataDirectory, log)
	publisher.Hub = hub
	publisher.MQTT = mqttPublisher

	snapshots := storage.NewSnapshotStore(cfg.EventsDirectory)
	m := metrics.New()

	client := recognition.NewClient(cfg.ServiceBaseURL, cfg.APIKey,
		time.Duration(cfg.RequestTimeout)*time.Second)

	manager := services.NewManager(cfg, client, publisher, eventRepo, snapshots, m, log)

	router := routes.SetupRoutes(cfg, publisher, eventRepo, snapshots, hub, m, log)

	return &App{
		config:    cfg,
		logger:    log,
		db:        db,
		hub:       hub,
		mqtt:      mqttPublisher,
		publisher: publisher,
		snapshots: snapshots,
		metrics:   m,
		manager:   manager,
		router:    router,
	}, nil
}

// Run starts the monitors and the HTTP server and blocks until an
// interrupt arrives, then shuts everything down in order.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go a.hub.Run(ctx)
	a.manager.Start(ctx)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.config.Port),
		Handler: a.router,
	}

	serverErr := make(chan error, 1)
	go func() {
		a.logger.Info("Dashboard listening on http://localhost:%d", a.config.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	a.logger.Info("Monitoring %d camera(s), recognition service: %s",
		a.manager.MonitorCount(), a.config.ServiceBaseURL)

	select {
	case err := <-serverErr:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down...")

	// A monitor can be blocked on an in-flight recognition request for up
	// to the request timeout; wait that long plus a little slack.
	a.manager.Stop(time.Duration(a.config.RequestTimeout)*time.Second + 2*time.Second)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("HTTP server shutdown: %v", err)
	}

	if a.mqtt != nil {
		a.mqtt.Close()
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("Event store close: %v", err)
	}

	a.logger.Info("Shutdown complete")
	return nil
}
