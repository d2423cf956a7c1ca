package bus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/AlfRonDon/neurareport/internal/logging"
)

var kafkaLog = logging.Global().With("component", "bus.kafka")

// KafkaBus implements Bus over Kafka topics. Each instance consumes with its
// own consumer group derived from the instance id, so a published event
// reaches every instance (broadcast) instead of one group member (queue).
// Readers start at the last offset: replaying stale change events to a
// freshly started instance would only churn reloads of state it already has.
type KafkaBus struct {
	brokers       []string
	groupID       string
	writers       map[string]*kafka.Writer
	subscriptions map[string]context.CancelFunc
	mu            sync.RWMutex
}

// NewKafkaBus creates a Kafka-backed bus for the given instance
func NewKafkaBus(brokers []string, instanceID string) (*KafkaBus, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers not configured")
	}
	if instanceID == "" {
		return nil, fmt.Errorf("instance id is required for the kafka bus")
	}

	return &KafkaBus{
		brokers:       brokers,
		groupID:       "neurareport-" + instanceID,
		writers:       make(map[string]*kafka.Writer),
		subscriptions: make(map[string]context.CancelFunc),
	}, nil
}

// getOrCreateWriter returns the writer for a topic, creating it on first use
func (b *KafkaBus) getOrCreateWriter(topic string) *kafka.Writer {
	b.mu.Lock()
	defer b.mu.Unlock()

	if writer, exists := b.writers[topic]; exists {
		return writer
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(b.brokers...),
		Topic:        topicName(topic),
		Balancer:     &kafka.LeastBytes{},
		BatchSize:    1,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}

	b.writers[topic] = writer
	return writer
}

// Publish broadcasts a message on a topic
func (b *KafkaBus) Publish(ctx context.Context, subject string, data []byte) error {
	writer := b.getOrCreateWriter(subject)

	err := writer.WriteMessages(ctx, kafka.Message{
		Value: data,
		Time:  time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to publish to kafka topic %s: %w", subject, err)
	}
	return nil
}

// Subscribe registers a handler for a topic
func (b *KafkaBus) Subscribe(ctx context.Context, subject string, handler Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscriptions[subject]; exists {
		return fmt.Errorf("already subscribed to topic: %s", subject)
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     b.brokers,
		Topic:       topicName(subject),
		GroupID:     b.groupID,
		StartOffset: kafka.LastOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
	})

	subCtx, cancel := context.WithCancel(ctx)
	b.subscriptions[subject] = cancel

	go b.consume(subCtx, reader, subject, handler)

	kafkaLog.Info("Subscribed to Kafka topic", "topic", topicName(subject), "group", b.groupID)
	return nil
}

// consume reads messages until cancelled
func (b *KafkaBus) consume(ctx context.Context, reader *kafka.Reader, subject string, handler Handler) {
	defer func() { _ = reader.Close() }()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return
			}
			kafkaLog.Error("Failed to read from topic", "topic", reader.Config().Topic, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		if err := handler(ctx, subject, msg.Value); err != nil {
			kafkaLog.Error("Failed to handle message", "topic", reader.Config().Topic, "error", err)
		}
	}
}

// Unsubscribe removes the subscription for a topic
func (b *KafkaBus) Unsubscribe(subject string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	cancel, exists := b.subscriptions[subject]
	if !exists {
		return fmt.Errorf("not subscribed to topic: %s", subject)
	}

	cancel()
	delete(b.subscriptions, subject)
	return nil
}

// Close stops all subscriptions and writers
func (b *KafkaBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for subject, cancel := range b.subscriptions {
		cancel()
		delete(b.subscriptions, subject)
	}

	var lastErr error
	for topic, writer := range b.writers {
		if err := writer.Close(); err != nil {
			lastErr = err
		}
		delete(b.writers, topic)
	}

	return lastErr
}

// topicName maps a dotted subject to a Kafka-safe topic name
func topicName(subject string) string {
	return strings.ReplaceAll(subject, ".", "-")
}
