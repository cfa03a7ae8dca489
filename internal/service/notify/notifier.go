// Package notify превращает запросы на уведомления в сообщения outbox.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/messaging/kafka"
)

const aggregateOrder = "order"

// OutboxNotifier складывает запросы в outbox; публикацией занимается outbox.Worker.
type OutboxNotifier struct {
	outbox domain.OutboxRepository
	logger *log.Entry
}

// NewOutboxNotifier создаёт notifier поверх outbox.
func NewOutboxNotifier(outbox domain.OutboxRepository, logger *log.Entry) *OutboxNotifier {
	if logger == nil {
		logger = log.WithField("component", "notifier")
	}
	return &OutboxNotifier{outbox: outbox, logger: logger}
}

// Notify сохраняет запрос. Запрос без email отклоняется.
func (n *OutboxNotifier) Notify(ctx context.Context, req domain.NotificationRequest) error {
	if req.Email == "" {
		return fmt.Errorf("%w: notification email is required", domain.ErrInvalidInput)
	}

	event := kafka.NewNotificationEvent(req)
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	msg, err := n.outbox.Enqueue(ctx, domain.OutboxMessage{
		ID:            uuid.NewString(),
		AggregateType: aggregateOrder,
		AggregateID:   strconv.FormatInt(req.OrderID, 10),
		EventType:     string(event.EventType),
		Payload:       payload,
	})
	if err != nil {
		return fmt.Errorf("enqueue notification: %w", domain.StorageFailure(err))
	}

	n.logger.WithFields(log.Fields{
		"order_id":  req.OrderID,
		"kind":      req.Kind,
		"outbox_id": msg.ID,
	}).Info("notification requested")
	return nil
}

// LogNotifier только пишет запрос в лог. Используется, когда брокер не настроен.
type LogNotifier struct {
	logger *log.Entry
}

// NewLogNotifier создаёт notifier без внешней доставки.
func NewLogNotifier(logger *log.Entry) *LogNotifier {
	if logger == nil {
		logger = log.WithField("component", "notifier")
	}
	return &LogNotifier{logger: logger}
}

// Notify пишет запрос в лог.
func (n *LogNotifier) Notify(_ context.Context, req domain.NotificationRequest) error {
	n.logger.WithFields(log.Fields{
		"order_id": req.OrderID,
		"kind":     req.Kind,
		"email":    req.Email,
	}).Info("notification requested, no broker configured")
	return nil
}

var (
	_ domain.Notifier = (*OutboxNotifier)(nil)
	_ domain.Notifier = (*LogNotifier)(nil)
)
