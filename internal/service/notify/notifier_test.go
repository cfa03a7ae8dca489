package notify_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/notify"
	"github.com/vladislavdragonenkov/orderdesk/internal/storage/memory"
)

func TestOutboxNotifier_EnqueuesEvent(t *testing.T) {
	repo := memory.NewOutboxRepository()
	notifier := notify.NewOutboxNotifier(repo, nil)
	at := time.Date(2024, time.May, 2, 8, 0, 0, 0, time.UTC)

	err := notifier.Notify(context.Background(), domain.NotificationRequest{
		Kind:           domain.NotificationSendTracking,
		OrderID:        1001,
		Email:          "buyer@example.com",
		TrackingNumber: "TRK202405020800001234",
		RequestedBy:    "alice",
		RequestedAt:    at,
	})
	require.NoError(t, err)

	pending := repo.AllPending()
	require.Len(t, pending, 1)
	msg := pending[0]
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, "order", msg.AggregateType)
	assert.Equal(t, "1001", msg.AggregateID)
	assert.Equal(t, "order.notification.send-tracking", msg.EventType)

	var event kafka.NotificationEvent
	require.NoError(t, json.Unmarshal(msg.Payload, &event))
	assert.Equal(t, "TRK202405020800001234", event.TrackingNumber)
	assert.Equal(t, "buyer@example.com", event.Email)
	assert.True(t, event.RequestedAt.Equal(at))
}

func TestOutboxNotifier_RequiresEmail(t *testing.T) {
	repo := memory.NewOutboxRepository()

	err := notify.NewOutboxNotifier(repo, nil).Notify(context.Background(), domain.NotificationRequest{
		Kind:    domain.NotificationGenerateInvoice,
		OrderID: 1,
	})
	require.True(t, domain.IsInvalidInput(err))
	assert.Empty(t, repo.AllPending())
}

func TestLogNotifier(t *testing.T) {
	err := notify.NewLogNotifier(nil).Notify(context.Background(), domain.NotificationRequest{Kind: domain.NotificationSubscribe})
	require.NoError(t, err)
}
