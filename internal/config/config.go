package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port     int
	Password string

	// Recognition service
	ServiceBaseURL string
	APIKey         string
	RequestTimeout int // seconds

	// Per-poll batch cap
	BatchSize int

	// Data locations
	DataDirectory   string // live status + history log
	EventsDirectory string // annotated event snapshots
	DatabasePath    string
	LogDirectory    string

	// Optional MQTT side-channel (disabled when broker is empty)
	MQTTBroker   string
	MQTTClientID string
	MQTTUsername string
	MQTTPassword string

	CamerasFile string
	Cameras     []CameraConfig
}

// CameraConfig describes one monitored camera folder. Immutable after load.
type CameraConfig struct {
	ID            string  `yaml:"id"`
	FolderPath    string  `yaml:"folder_path"`
	FilePattern   string  `yaml:"file_pattern"`
	Enabled       bool    `yaml:"enabled"`
	CheckInterval float64 `yaml:"check_interval"` // baseline poll interval in seconds
}

type camerasFile struct {
	Cameras []CameraConfig `yaml:"cameras"`
}

const DefaultCheckInterval = 1.5

func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnvAsInt("PORT", 8080),
		Password:        getEnv("PASSWORD", "changeme"),
		ServiceBaseURL:  getEnv("SERVICE_BASE_URL", "http://localhost:8000"),
		APIKey:          getEnv("API_KEY", ""),
		RequestTimeout:  getEnvAsInt("REQUEST_TIMEOUT", 10),
		BatchSize:       getEnvAsInt("BATCH_SIZE", 3),
		DataDirectory:   getEnv("DATA_DIR", "."),
		EventsDirectory: getEnv("EVENTS_DIR", filepath.Join(".", "events")),
		DatabasePath:    getEnv("DATABASE_PATH", filepath.Join(".", "facemonitor.db")),
		LogDirectory:    getEnv("LOG_DIR", filepath.Join(".", "logs")),
		MQTTBroker:      getEnv("MQTT_BROKER", ""),
		MQTTClientID:    getEnv("MQTT_CLIENT_ID", "facemonitor"),
		MQTTUsername:    getEnv("MQTT_USERNAME", ""),
		MQTTPassword:    getEnv("MQTT_PASSWORD", ""),
		CamerasFile:     getEnv("CAMERAS_FILE", "cameras.yaml"),
	}

	cameras, err := loadCameras(cfg.CamerasFile)
	if err != nil {
		return nil, err
	}
	cfg.Cameras = cameras

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadCameras reads the per-camera definitions from the YAML file.
func loadCameras(path string) ([]CameraConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cameras file %s: %w", path, err)
	}

	var parsed camerasFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse cameras file %s: %w", path, err)
	}

	for i := range parsed.Cameras {
		if parsed.Cameras[i].CheckInterval <= 0 {
			parsed.Cameras[i].CheckInterval = DefaultCheckInterval
		}
	}

	return parsed.Cameras, nil
}

func (c *Config) validate() error {
	if c.ServiceBaseURL == "" {
		return fmt.Errorf("SERVICE_BASE_URL must not be empty")
	}
	if c.APIKey == "" {
		return fmt.Errorf("API_KEY must not be empty")
	}
	if len(c.Cameras) == 0 {
		return fmt.Errorf("at least one camera must be configured")
	}

	seen := make(map[string]bool)
	for i, cam := range c.Cameras {
		if cam.ID == "" {
			return fmt.Errorf("camera %d: id must not be empty", i+1)
		}
		if seen[cam.ID] {
			return fmt.Errorf("camera %s: duplicate id", cam.ID)
		}
		seen[cam.ID] = true

		if cam.FolderPath == "" {
			return fmt.Errorf("camera %s: folder_path must not be empty", cam.ID)
		}
		if cam.FilePattern == "" {
			return fmt.Errorf("camera %s: file_pattern must not be empty", cam.ID)
		}
	}

	return nil
}

// EnabledCameras returns only the cameras that should be monitored.
func (c *Config) EnabledCameras() []CameraConfig {
	enabled := make([]CameraConfig, 0, len(c.Cameras))
	for _, cam := range c.Cameras {
		if cam.Enabled {
			enabled = append(enabled, cam)
		}
	}
	return enabled
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
