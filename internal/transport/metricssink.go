package transport

import (
	"context"
	"fmt"
	"time"

	mqttlib "github.com/eclipse/paho.mqtt.golang"

	"github.com/ibs-source/spout-executor/golang/internal/domain"
	"github.com/ibs-source/spout-executor/golang/internal/ports"
	"github.com/ibs-source/spout-executor/golang/pkg/jsonx"
)

// MetricsSinkConfig carries the Paho client tuning knobs, shaped after the
// teacher's MQTTConfig (TLS/topic-prefix support omitted: the metrics sink
// is a fire-and-forget publisher with no subscriptions to re-establish).
type MetricsSinkConfig struct {
	Brokers      []string
	ClientID     string
	QoS          byte
	Topic        string
	CleanSession bool

	ConnectTimeout    time.Duration
	WriteTimeout      time.Duration
	MaxReconnectDelay time.Duration
}

// MetricsSink is a ports.MetricsPublisher backed by MQTT, grounded on the
// teacher's internal/mqtt client: a single Paho client, auto-reconnect, and
// a bounded wait-for-token helper instead of Paho's unbounded blocking calls.
type MetricsSink struct {
	client mqttlib.Client
	cfg    MetricsSinkConfig
	logger ports.Logger
}

// NewMetricsSink builds and connects a MetricsSink.
func NewMetricsSink(ctx context.Context, cfg MetricsSinkConfig, logger ports.Logger) (*MetricsSink, error) {
	opts := mqttlib.NewClientOptions()
	for _, broker := range cfg.Brokers {
		opts.AddBroker(broker)
	}
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(cfg.CleanSession)
	opts.SetConnectTimeout(cfg.ConnectTimeout)
	opts.SetMaxReconnectInterval(cfg.MaxReconnectDelay)
	opts.SetAutoReconnect(true)
	opts.SetProtocolVersion(4)

	s := &MetricsSink{
		cfg:    cfg,
		logger: logger.WithFields(ports.Field{Key: "component", Value: "metrics-sink"}),
	}
	opts.SetOnConnectHandler(func(mqttlib.Client) {
		s.logger.Info("metrics sink connected")
	})
	opts.SetConnectionLostHandler(func(_ mqttlib.Client, err error) {
		s.logger.Warn("metrics sink connection lost", ports.Field{Key: "error", Value: err})
	})

	s.client = mqttlib.NewClient(opts)

	token := s.client.Connect()
	if err := waitForToken(ctx, token, cfg.ConnectTimeout, "connect"); err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	return s, nil
}

// PublishMetrics JSON-encodes snapshot and publishes it on the configured
// topic at the configured QoS.
func (s *MetricsSink) PublishMetrics(ctx context.Context, snapshot domain.ExecutorMetricsSnapshot) error {
	payload, err := jsonx.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("metrics sink: encode snapshot: %w", err)
	}
	token := s.client.Publish(s.cfg.Topic, s.cfg.QoS, false, payload)
	return waitForToken(ctx, token, s.cfg.WriteTimeout, "publish")
}

// Close disconnects the MQTT client, waiting up to WriteTimeout.
func (s *MetricsSink) Close() error {
	if s.client == nil {
		return nil
	}
	ms := uint(s.cfg.WriteTimeout.Milliseconds())
	s.client.Disconnect(ms)
	return nil
}

// waitForToken polls a Paho token to completion, honoring both ctx and a max
// wait duration, mirroring the teacher's bounded-poll pattern rather than
// Paho's unbounded Wait().
func waitForToken(ctx context.Context, token mqttlib.Token, wait time.Duration, op string) error {
	deadline := time.Now().Add(wait)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}

	tick := wait / 20
	if tick <= 0 {
		tick = 50 * time.Millisecond
	}
	if tick > 500*time.Millisecond {
		tick = 500 * time.Millisecond
	}

	for {
		if token.WaitTimeout(tick) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("%s failed: %w", op, err)
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%s timeout after %s", op, wait)
		}
	}
}
