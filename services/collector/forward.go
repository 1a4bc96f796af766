package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Publisher receives every accepted sample.
type Publisher interface {
	Publish(s Sample) error
}

// ForwarderConfig selects the broker. An empty Broker disables forwarding.
type ForwarderConfig struct {
	Broker   string
	Port     int
	ClientID string
}

// Forwarder republishes accepted samples to MQTT under
// telenode/<remote>/telemetry.
type Forwarder struct {
	client    mqtt.Client
	cfg       ForwarderConfig
	logger    *slog.Logger
	mu        sync.RWMutex
	connected bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

type telemetryMessage struct {
	Remote      string    `json:"remote"`
	Timestamp   time.Time `json:"timestamp"`
	Temperature *float64  `json:"temperature_c,omitempty"`
	Humidity    *float64  `json:"humidity_pct,omitempty"`
}

func NewForwarder(cfg ForwarderConfig, logger *slog.Logger) *Forwarder {
	f := &Forwarder{
		cfg:    cfg,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Broker, cfg.Port))
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		f.setConnected(true)
		logger.Info("mqtt connected", "broker", cfg.Broker, "port", cfg.Port)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		f.setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
	})

	f.client = mqtt.NewClient(opts)
	return f
}

// Connect waits for the initial connection, respecting ctx and Disconnect.
func (f *Forwarder) Connect(ctx context.Context) error {
	select {
	case <-f.stopCh:
		return fmt.Errorf("forwarder stopped")
	default:
	}
	if f.IsConnected() {
		return nil
	}

	token := f.client.Connect()
	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.stopCh:
			return fmt.Errorf("forwarder stopped")
		default:
		}
	}
}

// Topic returns the MQTT topic for samples from remote.
func Topic(remote string) string {
	if remote == "" {
		remote = "unknown"
	}
	// Topic levels must not contain separators or wildcards.
	remote = strings.NewReplacer("/", "_", "+", "_", "#", "_").Replace(remote)
	return "telenode/" + remote + "/telemetry"
}

func (f *Forwarder) Publish(s Sample) error {
	if !f.IsConnected() {
		return fmt.Errorf("mqtt client not connected")
	}
	topic := Topic(s.Remote)
	data, err := json.Marshal(telemetryMessage{
		Remote:      s.Remote,
		Timestamp:   s.At,
		Temperature: s.Temp,
		Humidity:    s.Hum,
	})
	if err != nil {
		return fmt.Errorf("marshal telemetry: %w", err)
	}

	token := f.client.Publish(topic, 1, false, data)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	if token.Error() != nil {
		return fmt.Errorf("publish telemetry: %w", token.Error())
	}
	f.logger.Debug("forwarded telemetry", "topic", topic)
	return nil
}

func (f *Forwarder) IsConnected() bool {
	f.mu.RLock()
	connected := f.connected
	f.mu.RUnlock()
	return connected && f.client.IsConnected()
}

// Disconnect is idempotent.
func (f *Forwarder) Disconnect() {
	f.stopOnce.Do(func() { close(f.stopCh) })
	if f.client != nil {
		f.client.Disconnect(250)
	}
	f.setConnected(false)
	f.logger.Info("mqtt disconnected")
}

func (f *Forwarder) setConnected(v bool) {
	f.mu.Lock()
	f.connected = v
	f.mu.Unlock()
}
