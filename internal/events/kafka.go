package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkaGo "github.com/segmentio/kafka-go"
)

// KafkaPublisher writes JSON events with a single long-lived writer.
type KafkaPublisher struct {
	writer *kafkaGo.Writer
}

// NewKafkaPublisher returns a publisher for brokers. The topic is chosen per message.
func NewKafkaPublisher(brokers []string) *KafkaPublisher {
	return &KafkaPublisher{writer: &kafkaGo.Writer{
		Addr:                   kafkaGo.TCP(brokers...),
		Balancer:               &kafkaGo.LeastBytes{},
		RequiredAcks:           kafkaGo.RequireOne,
		WriteTimeout:           5 * time.Second,
		AllowAutoTopicCreation: true,
	}}
}

// New picks the Kafka publisher when brokers are configured and a NoopPublisher otherwise.
func New(brokers []string) Publisher {
	if len(brokers) == 0 {
		return NoopPublisher{}
	}
	return NewKafkaPublisher(brokers)
}

func (k *KafkaPublisher) Publish(ctx context.Context, topic, key string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := k.writer.WriteMessages(ctx, kafkaGo.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: payload,
	}); err != nil {
		return fmt.Errorf("write to %s: %w", topic, err)
	}
	return nil
}

func (k *KafkaPublisher) Close() error {
	return k.writer.Close()
}
