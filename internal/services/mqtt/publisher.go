package mqtt

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"facemonitor/internal/logger"
)

const statusTopicPrefix = "facemonitor/status/"

// Publisher mirrors live status records to an MQTT broker so smart-home
// consumers can react without polling the status file.
type Publisher struct {
	client mqtt.Client
	logger *logger.Logger
}

// Config holds MQTT connection settings.
type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string
}

// NewPublisher connects to the broker. Auto-reconnect is left to the paho
// client; publishes while disconnected are dropped.
func NewPublisher(cfg Config, log *logger.Logger) (*Publisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Warning("MQTT connection lost: %v", err)
	})
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		log.Info("MQTT connected to %s", cfg.Broker)
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return &Publisher{client: client, logger: log}, nil
}

// PublishStatus sends the serialized status record to the per-camera topic.
// Best effort: failures are logged, never propagated.
func (p *Publisher) PublishStatus(cameraID string, payload []byte) {
	if !p.client.IsConnected() {
		return
	}
	token := p.client.Publish(statusTopicPrefix+cameraID, 0, true, payload)
	go func() {
		if token.Wait() && token.Error() != nil {
			p.logger.Error("MQTT publish failed for %s: %v", cameraID, token.Error())
		}
	}()
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	p.client.Disconnect(250)
}
