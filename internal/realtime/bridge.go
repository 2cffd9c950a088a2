// Package realtime bridges the MQTT push channel into the feed layer.
// Field gateways publish a small event whenever a new reading lands in the
// store; the bridge maps those events onto the owning feed's incremental
// fetch, which is far cheaper than waiting for the next full poll.
package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// FeedSignaler is the coalescing refresh hook exposed by feed.Feed.
type FeedSignaler interface {
	SignalNewData()
}

// MultiSignaler fans one push event out to several feeds following the same
// device, e.g. the dashboard and detail feeds.
type MultiSignaler []FeedSignaler

// SignalNewData implements FeedSignaler.
func (ms MultiSignaler) SignalNewData() {
	for _, s := range ms {
		s.SignalNewData()
	}
}

// BridgeConfig holds the configuration for creating a Bridge.
type BridgeConfig struct {
	BrokerURL string
	Username  string
	Password  string
	ClientID  string
	Topic     string // subscription filter, e.g. farm/+/sensor/+/reading

	ConnectTimeout time.Duration
	Logger         *slog.Logger
}

// Bridge subscribes to the new-reading topic and signals the feed registered
// for each device. Unknown devices are ignored; a burst of publishes for one
// device collapses into a single incremental fetch because the feed's signal
// channel coalesces.
type Bridge struct {
	cfg    BridgeConfig
	logger *slog.Logger

	client mqtt.Client
	feeds  map[string]FeedSignaler
}

// NewBridge creates a Bridge that routes push events to the given feeds,
// keyed by device ID. Connect establishes the broker session.
func NewBridge(cfg BridgeConfig, feeds map[string]FeedSignaler) *Bridge {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 30 * time.Second
	}
	return &Bridge{
		cfg:    cfg,
		logger: logger,
		feeds:  feeds,
	}
}

// Connect dials the broker with exponential backoff and subscribes to the
// configured topic. The paho client keeps the session alive and resubscribes
// after reconnects on its own.
func (b *Bridge) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(b.cfg.BrokerURL)
	opts.SetUsername(b.cfg.Username)
	opts.SetPassword(b.cfg.Password)
	opts.SetClientID(b.cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		if token := c.Subscribe(b.cfg.Topic, 0, b.handleMessage); token.Wait() && token.Error() != nil {
			b.logger.ErrorContext(ctx, "mqtt subscribe failed",
				"topic", b.cfg.Topic,
				"error", token.Error(),
			)
			return
		}
		b.logger.InfoContext(ctx, "mqtt subscribed",
			"topic", b.cfg.Topic,
		)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		b.logger.WarnContext(ctx, "mqtt connection lost",
			"error", err,
		)
	})

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = b.cfg.ConnectTimeout

	var client mqtt.Client
	err := backoff.Retry(func() error {
		client = mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			b.logger.WarnContext(ctx, "mqtt connect attempt failed",
				"broker", b.cfg.BrokerURL,
				"error", token.Error(),
			)
			return token.Error()
		}
		return nil
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		return fmt.Errorf("connecting to mqtt broker %s: %w", b.cfg.BrokerURL, err)
	}

	b.client = client
	b.logger.InfoContext(ctx, "mqtt connected",
		"broker", b.cfg.BrokerURL,
	)
	return nil
}

// Run blocks until ctx is cancelled, then unsubscribes and disconnects
// cleanly. Fits an errgroup alongside the feeds.
func (b *Bridge) Run(ctx context.Context) error {
	<-ctx.Done()
	b.Close()
	return nil
}

// Close unsubscribes and drops the broker session.
func (b *Bridge) Close() {
	if b.client == nil || !b.client.IsConnected() {
		return
	}
	if token := b.client.Unsubscribe(b.cfg.Topic); token.Wait() && token.Error() != nil {
		b.logger.Warn("mqtt unsubscribe failed",
			"topic", b.cfg.Topic,
			"error", token.Error(),
		)
	}
	b.client.Disconnect(250)
	b.logger.Info("mqtt disconnected")
}

// handleMessage signals the feed owning the device named in the topic.
// The payload is irrelevant: the event only means "new rows exist", and the
// feed re-reads the store for the actual data.
func (b *Bridge) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	deviceID, ok := DeviceFromTopic(msg.Topic())
	if !ok {
		b.logger.Debug("ignoring message on unexpected topic",
			"topic", msg.Topic(),
		)
		return
	}

	feed, ok := b.feeds[deviceID]
	if !ok {
		b.logger.Debug("no feed registered for device",
			"device_id", deviceID,
		)
		return
	}

	feed.SignalNewData()
}

// DeviceFromTopic extracts the device segment from a new-reading topic of
// the form farm/<farmID>/sensor/<deviceID>/reading.
func DeviceFromTopic(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 5 || parts[0] != "farm" || parts[2] != "sensor" || parts[4] != "reading" {
		return "", false
	}
	if parts[3] == "" {
		return "", false
	}
	return parts[3], true
}
