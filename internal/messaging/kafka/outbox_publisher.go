package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

var errPublisherNotInitialized = errors.New("kafka outbox publisher is not initialized")

// OutboxTopicPublisher публикует outbox-сообщения в заданный Kafka topic.
type OutboxTopicPublisher struct {
	producer *Producer
	topic    string
}

// NewOutboxPublisher создаёт Kafka-паблишер для outbox. Пустой topic означает топик уведомлений.
func NewOutboxPublisher(producer *Producer, topic string) *OutboxTopicPublisher {
	if topic == "" {
		topic = TopicNotifications
	}
	return &OutboxTopicPublisher{
		producer: producer,
		topic:    topic,
	}
}

// outboxEnvelope — формат сообщения в топике.
type outboxEnvelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}

// Publish отправляет сообщение с ключом по номеру заказа, чтобы события одного заказа шли в одну партицию.
func (p *OutboxTopicPublisher) Publish(ctx context.Context, msg domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return errPublisherNotInitialized
	}

	key := msg.AggregateID
	if key == "" {
		key = msg.ID
	}

	return p.producer.Publish(ctx, Message{
		Topic: p.topic,
		Key:   key,
		Value: outboxEnvelope{
			ID:            msg.ID,
			AggregateType: msg.AggregateType,
			AggregateID:   msg.AggregateID,
			EventType:     msg.EventType,
			Payload:       json.RawMessage(msg.Payload),
			PublishedAt:   time.Now().UTC(),
		},
		Headers: map[string]string{
			HeaderEventType: msg.EventType,
			HeaderOutboxID:  msg.ID,
		},
	})
}

var _ domain.OutboxPublisher = (*OutboxTopicPublisher)(nil)
