// Package kafka publishes engine events to Kafka.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	"github.com/varunvs7692/chaos-negotiator/pkg/config"
	"github.com/varunvs7692/chaos-negotiator/pkg/resilience"
)

// Event types emitted by the engine.
const (
	EventDeploymentAssessed = "deployment.assessed"
	EventOutcomeRecorded    = "deployment.outcome.recorded"
)

// Producer is a Kafka message producer.
type Producer struct {
	producer sarama.SyncProducer
	brokers  []string
	breaker  *resilience.Breaker
	logger   *slog.Logger
}

// Event is the base structure for all events.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// NewProducer creates a new Kafka producer.
func NewProducer(cfg config.KafkaConfig) (*Producer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Retry.Max = 5
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Compression = sarama.CompressionSnappy

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	return &Producer{
		producer: producer,
		brokers:  cfg.Brokers,
		breaker:  resilience.New(resilience.DefaultConfig("kafka-producer")),
		logger:   slog.Default().With("component", "kafka-producer"),
	}, nil
}

// Publish publishes a message to the given topic.
func (p *Producer) Publish(ctx context.Context, topic string, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(data),
	}

	// The breaker keeps a dead broker from stalling every request.
	return p.breaker.Do(func() error {
		partition, offset, err := p.producer.SendMessage(msg)
		if err != nil {
			return fmt.Errorf("failed to send message: %w", err)
		}

		p.logger.Debug("message published",
			"topic", topic,
			"key", key,
			"partition", partition,
			"offset", offset,
		)
		return nil
	})
}

// PublishEvent publishes an event to the given topic.
func (p *Producer) PublishEvent(ctx context.Context, topic string, event Event) error {
	return p.Publish(ctx, topic, event.ID, event)
}

// Close closes the producer.
func (p *Producer) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// Health checks the Kafka connection health.
func (p *Producer) Health(ctx context.Context) error {
	config := sarama.NewConfig()
	config.Net.DialTimeout = 5 * time.Second

	client, err := sarama.NewClient(p.brokers, config)
	if err != nil {
		return fmt.Errorf("failed to connect to Kafka: %w", err)
	}
	defer client.Close()

	return nil
}
