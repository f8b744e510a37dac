package relay

import (
	"context"
	"time"

	"github.com/danmuck/stridelink/internal/event"
	"github.com/segmentio/kafka-go"
)

// KafkaConfig names the brokers and topic. Acks is 1 (leader) when unset and
// -1 for all replicas.
type KafkaConfig struct {
	Brokers      []string      `toml:"brokers" yaml:"brokers"`
	Topic        string        `toml:"topic" yaml:"topic"`
	Acks         int           `toml:"acks" yaml:"acks"`
	BatchTimeout time.Duration `toml:"batch_timeout" yaml:"batch_timeout"`
}

type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka writes every event keyed by device name so one device stays on one
// partition.
type Kafka struct {
	w kafkaWriter
}

func NewKafka(cfg KafkaConfig) *Kafka {
	batch := cfg.BatchTimeout
	if batch <= 0 {
		batch = 10 * time.Millisecond
	}
	acks := kafka.RequireOne
	if cfg.Acks < 0 {
		acks = kafka.RequireAll
	}
	return &Kafka{w: &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           acks,
		BatchTimeout:           batch,
		AllowAutoTopicCreation: true,
	}}
}

func (k *Kafka) Name() string { return "kafka" }

func (k *Kafka) Write(ctx context.Context, e event.Event) error {
	id, payload, err := encode(e)
	if err != nil {
		return err
	}
	return k.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.Device),
		Value: payload,
		Time:  e.At,
		Headers: []kafka.Header{
			{Key: "id", Value: []byte(id)},
			{Key: "type", Value: []byte(e.Type)},
		},
	})
}

func (k *Kafka) Close() error {
	return k.w.Close()
}
