package domain

import (
	"context"
	"time"
)

// Clock отдаёт текущее время; подменяется в тестах.
type Clock interface {
	Now() time.Time
}

// SystemClock — часы на основе time.Now.
type SystemClock struct{}

// Now возвращает текущее время.
func (SystemClock) Now() time.Time { return time.Now() }

// ClockFunc адаптирует функцию к Clock.
type ClockFunc func() time.Time

// Now вызывает f.
func (f ClockFunc) Now() time.Time { return f() }

// RandomSource отдаёт случайное число в [0, n). *math/rand.Rand удовлетворяет интерфейсу.
type RandomSource interface {
	Intn(n int) int
}

// Actor — пользователь, от имени которого выполняется операция.
type Actor struct {
	Name    string
	IsAdmin bool
}

// NotificationKind — тип запроса на уведомление клиента.
type NotificationKind string

const (
	NotificationSendTracking    NotificationKind = "send-tracking"
	NotificationGenerateInvoice NotificationKind = "generate-invoice"
	// NotificationSubscribe — клиент подписался на обновления со страницы отслеживания.
	NotificationSubscribe NotificationKind = "subscribe"
)

// NotificationRequest — запрос во внешний канал уведомлений. Доставка здесь не выполняется.
type NotificationRequest struct {
	Kind           NotificationKind
	OrderID        int64
	Email          string
	TrackingNumber string
	RequestedBy    string
	RequestedAt    time.Time
}

// Notifier принимает запросы на уведомления.
type Notifier interface {
	Notify(ctx context.Context, req NotificationRequest) error
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(ctx context.Context, event OutboxMessage) error
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
