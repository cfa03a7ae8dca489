package kafka

import (
	"time"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

// EventType определяет тип события
type EventType string

const (
	EventTypeSendTracking    EventType = "order.notification.send-tracking"
	EventTypeGenerateInvoice EventType = "order.notification.generate-invoice"
	EventTypeSubscribe       EventType = "order.notification.subscribe"
)

// Topics для Kafka
const (
	TopicNotifications   = "orderdesk.notifications"
	TopicDeadLetterQueue = "orderdesk.notifications.dlq"
)

// Kafka headers
const (
	HeaderEventType = "x-event-type"
	HeaderOutboxID  = "x-outbox-id"
)

// NotificationEventType возвращает тип события для запроса на уведомление.
func NotificationEventType(kind domain.NotificationKind) EventType {
	return EventType("order.notification." + string(kind))
}

// NotificationEvent — полезная нагрузка запроса на уведомление клиента.
// Доставку письма выполняет внешний потребитель топика.
type NotificationEvent struct {
	EventType      EventType `json:"event_type"`
	OrderID        int64     `json:"order_id"`
	Email          string    `json:"email"`
	TrackingNumber string    `json:"tracking_number,omitempty"`
	RequestedBy    string    `json:"requested_by,omitempty"`
	RequestedAt    time.Time `json:"requested_at"`
}

// NewNotificationEvent собирает событие из запроса.
func NewNotificationEvent(req domain.NotificationRequest) NotificationEvent {
	requestedAt := req.RequestedAt
	if requestedAt.IsZero() {
		requestedAt = time.Now().UTC()
	}
	return NotificationEvent{
		EventType:      NotificationEventType(req.Kind),
		OrderID:        req.OrderID,
		Email:          req.Email,
		TrackingNumber: req.TrackingNumber,
		RequestedBy:    req.RequestedBy,
		RequestedAt:    requestedAt.UTC(),
	}
}
