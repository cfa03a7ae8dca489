package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/notify"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/orders"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/outbox"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/reporting"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/tracking"
	"github.com/vladislavdragonenkov/orderdesk/internal/storage/memory"
)

var (
	admin = domain.Actor{Name: "alice", IsAdmin: true}
	staff = domain.Actor{Name: "bob"}
)

// OrderLifecycleTestSuite проверяет путь заказа от оформления до удаления
// вместе с доставкой уведомлений через outbox в Kafka.
type OrderLifecycleTestSuite struct {
	suite.Suite

	now       time.Time
	repo      domain.OrderRepository
	history   domain.HistoryRepository
	outbox    *memory.OutboxRepository
	producer  *mocks.SyncProducer
	worker    *outbox.Worker
	orders    *orders.Service
	reporting *reporting.Service
	tracking  *tracking.Service
}

func (s *OrderLifecycleTestSuite) SetupTest() {
	baseLogger := log.New()
	baseLogger.SetLevel(log.WarnLevel)
	logger := baseLogger.WithField("component", "integration-test")

	s.now = time.Date(2024, time.March, 15, 10, 30, 0, 0, time.UTC)
	clock := domain.ClockFunc(func() time.Time { return s.now })

	s.repo = memory.NewOrderRepository()
	s.history = memory.NewHistoryRepository()
	s.outbox = memory.NewOutboxRepository()
	notifier := notify.NewOutboxNotifier(s.outbox, logger)

	s.orders = orders.NewService(s.repo,
		orders.WithLogger(logger),
		orders.WithClock(clock),
		orders.WithHistory(s.history),
		orders.WithNotifier(notifier),
	)
	s.reporting = reporting.NewService(s.repo,
		reporting.WithLogger(logger),
		reporting.WithClock(clock),
		reporting.WithLocation(time.UTC),
	)
	s.tracking = tracking.NewService(s.repo,
		tracking.WithLogger(logger),
		tracking.WithClock(clock),
		tracking.WithNotifier(notifier),
	)

	s.producer = mocks.NewSyncProducer(s.T(), nil)
	producer := kafka.NewProducerFromSync(s.producer)
	s.worker = outbox.NewWorker(s.outbox, kafka.NewOutboxPublisher(producer, kafka.TopicNotifications),
		outbox.WithLogger(logger),
		outbox.WithDLQPublisher(kafka.NewOutboxPublisher(producer, kafka.TopicDeadLetterQueue)),
		outbox.WithClock(clock),
		outbox.WithRetryBaseDelay(0),
		outbox.WithMaxAttempts(2),
	)
}

func (s *OrderLifecycleTestSuite) TearDownTest() {
	s.Require().NoError(s.producer.Close())
}

func (s *OrderLifecycleTestSuite) place(email string) domain.Order {
	order, err := s.orders.PlaceOrder(context.Background(), orders.PlaceOrderRequest{
		Customer: domain.Customer{FirstName: "Thandi", LastName: "Nkosi", Email: email, Phone: "0821112233"},
		Items: []orders.PlaceOrderItem{
			{ProductID: 7, ProductName: "Kettle", UnitPrice: decimal.RequireFromString("199.99"), Quantity: 2},
		},
	})
	s.Require().NoError(err)
	return order
}

func (s *OrderLifecycleTestSuite) transition(order domain.Order, action orders.Action) orders.TransitionResult {
	result, err := s.orders.ApplyTransition(context.Background(), order.ID, orders.EditFromOrder(order), action, staff)
	s.Require().NoError(err)
	return result
}

func expectEvent(eventType kafka.EventType, orderID int64) mocks.ValueChecker {
	return func(val []byte) error {
		var envelope struct {
			AggregateID string          `json:"aggregate_id"`
			EventType   string          `json:"event_type"`
			Payload     json.RawMessage `json:"payload"`
		}
		if err := json.Unmarshal(val, &envelope); err != nil {
			return err
		}
		if envelope.EventType != string(eventType) || envelope.AggregateID != strconv.FormatInt(orderID, 10) {
			return fmt.Errorf("unexpected envelope: %s", val)
		}
		return nil
	}
}

func (s *OrderLifecycleTestSuite) TestFulfillmentWithTrackingNotification() {
	ctx := context.Background()
	order := s.place("thandi@example.com")
	s.Equal(domain.OrderStatusPending, order.Status)
	s.True(order.Total.IsPositive())

	paid := s.transition(order, orders.ActionMarkPaid).Order
	processing := s.transition(paid, orders.ActionMarkProcessing).Order
	shipped := s.transition(processing, orders.ActionMarkShipped)
	s.Equal(domain.OrderStatusShipped, shipped.Order.Status)
	s.True(strings.HasPrefix(shipped.Order.TrackingNumber, "TRK20240315103000"))
	s.Nil(shipped.Notification)

	sent := s.transition(shipped.Order, orders.ActionSendTracking)
	s.Require().NotNil(sent.Notification)
	s.Len(s.outbox.AllPending(), 1)

	s.producer.ExpectSendMessageWithCheckerFunctionAndSucceed(expectEvent(kafka.EventTypeSendTracking, order.ID))
	res := s.worker.ProcessOnce(ctx)
	s.Equal(outbox.BatchResult{Sent: 1}, res)
	s.Empty(s.outbox.AllPending())

	delivered := s.transition(sent.Order, orders.ActionMarkDelivered).Order
	s.Equal(domain.OrderStatusDelivered, delivered.Status)
	s.Require().NotNil(delivered.ActualDelivery)

	details, err := s.orders.Get(ctx, order.ID, false)
	s.Require().NoError(err)
	s.NotEmpty(details.History)

	found, err := s.tracking.Lookup(ctx, tracking.Query{Email: "THANDI@example.com"})
	s.Require().NoError(err)
	s.Require().Len(found, 1)
	s.Equal(shipped.Order.TrackingNumber, found[0].TrackingNumber)

	stats, err := s.reporting.PeriodStatistics(ctx, reporting.PeriodToday)
	s.Require().NoError(err)
	s.Equal(1, stats.TotalOrders)
}

func (s *OrderLifecycleTestSuite) TestTrashLifecycle() {
	ctx := context.Background()
	first := s.place("one@example.com")
	second := s.place("two@example.com")

	deleted, err := s.orders.SoftDelete(ctx, first.ID, admin)
	s.Require().NoError(err)
	s.True(deleted.Changed)
	s.Equal(fmt.Sprintf("Order #%d moved to trash", first.ID), deleted.Message)

	_, err = s.orders.ApplyTransition(ctx, first.ID, orders.EditFromOrder(first), orders.ActionMarkPaid, staff)
	s.ErrorIs(err, domain.ErrOrderNotFound, "trashed orders are not editable")

	found, err := s.tracking.Lookup(ctx, tracking.Query{OrderID: strconv.FormatInt(first.ID, 10)})
	s.ErrorIs(err, domain.ErrOrderNotFound, "trashed orders are hidden from customers")
	s.Empty(found)

	restored, err := s.orders.Restore(ctx, first.ID, admin)
	s.Require().NoError(err)
	s.True(restored.Changed)

	_, err = s.orders.BulkDelete(ctx, []int64{first.ID, second.ID}, admin)
	s.Require().NoError(err)

	emptied, err := s.orders.EmptyTrash(ctx, admin)
	s.Require().NoError(err)
	s.Equal(orders.EmptyTrashResult{Purged: 2}, emptied)

	_, err = s.orders.Get(ctx, first.ID, true)
	s.ErrorIs(err, domain.ErrOrderNotFound)
}

func (s *OrderLifecycleTestSuite) TestSubscriptionDeadLettersWhenBrokerIsDown() {
	ctx := context.Background()
	order := s.place("dlq@example.com")

	_, err := s.tracking.Subscribe(ctx, order.ID, "watcher@example.com")
	s.Require().NoError(err)

	s.producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	s.producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	s.producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var envelope struct {
			Payload struct {
				AggregateID  string `json:"aggregate_id"`
				EventType    string `json:"event_type"`
				PublishError string `json:"publish_error"`
			} `json:"payload"`
		}
		if err := json.Unmarshal(val, &envelope); err != nil {
			return err
		}
		if envelope.Payload.EventType != string(kafka.EventTypeSubscribe) || envelope.Payload.PublishError == "" {
			return fmt.Errorf("unexpected dead letter: %s", val)
		}
		return nil
	})

	res := s.worker.ProcessOnce(ctx)
	s.Equal(outbox.BatchResult{Failed: 1}, res)
	s.Empty(s.outbox.AllPending())
}

func (s *OrderLifecycleTestSuite) TestBulkActionsAndExport() {
	ctx := context.Background()
	ids := make([]int64, 0, 3)
	for i := 0; i < 3; i++ {
		ids = append(ids, s.place(fmt.Sprintf("bulk-%d@example.com", i)).ID)
	}

	result, err := s.orders.BulkAction(ctx, append(ids, 9999), orders.ActionMarkProcessing, staff)
	s.Require().NoError(err)
	s.Equal(3, result.Affected)
	s.Equal(1, result.Skipped)

	file, err := s.reporting.Export(ctx, reporting.ExportFilter{IDs: ids})
	s.Require().NoError(err)
	s.Equal(3, file.Rows)
	s.Equal(4, strings.Count(strings.TrimSpace(string(file.Data)), "\n")+1, "header plus three rows")
	s.Contains(string(file.Data), "Processing")
}

func TestOrderLifecycleSuite(t *testing.T) {
	suite.Run(t, new(OrderLifecycleTestSuite))
}
