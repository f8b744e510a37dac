package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/danmuck/stridelink/internal/event"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"
)

type MQTTConfig struct {
	Broker      string `toml:"broker" yaml:"broker"`
	ClientID    string `toml:"client_id" yaml:"client_id"`
	TopicPrefix string `toml:"topic_prefix" yaml:"topic_prefix"`
	QoS         byte   `toml:"qos" yaml:"qos"`
	Retained    bool   `toml:"retained" yaml:"retained"`
}

// MQTT publishes every event to <prefix>/<device>/<type>.
type MQTT struct {
	cfg    MQTTConfig
	client mqtt.Client
}

func NewMQTT(cfg MQTTConfig) (*MQTT, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(5 * time.Second)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Msgf("relay.MQTT connection lost broker=%s", cfg.Broker)
	})
	client := mqtt.NewClient(opts)
	tok := client.Connect()
	if !tok.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt connect %s: timeout", cfg.Broker)
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, err)
	}
	log.Info().Msgf("relay.NewMQTT broker=%s prefix=%s", cfg.Broker, cfg.TopicPrefix)
	return &MQTT{cfg: cfg, client: client}, nil
}

func (m *MQTT) Name() string { return "mqtt" }

func (m *MQTT) Write(ctx context.Context, e event.Event) error {
	_, payload, err := encode(e)
	if err != nil {
		return err
	}
	tok := m.client.Publish(topic(m.cfg.TopicPrefix, "/", e), m.cfg.QoS, m.cfg.Retained, payload)
	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *MQTT) Close() error {
	m.client.Disconnect(250)
	return nil
}
