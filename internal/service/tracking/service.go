// Package tracking отвечает на запросы покупателей о состоянии заказа.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

// ErrLookupQueryEmpty — не задан ни номер заказа, ни email.
var ErrLookupQueryEmpty = fmt.Errorf("%w: order id or email is required", domain.ErrInvalidInput)

// Options задаёт зависимости сервиса.
type Options struct {
	Logger   *log.Entry
	Clock    domain.Clock
	Notifier domain.Notifier
}

// Option настраивает Service.
type Option func(*Options)

// WithLogger задаёт logger сервиса.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithClock задаёт источник времени.
func WithClock(clock domain.Clock) Option {
	return func(opts *Options) {
		opts.Clock = clock
	}
}

// WithNotifier задаёт канал для подписок на обновления.
func WithNotifier(notifier domain.Notifier) Option {
	return func(opts *Options) {
		opts.Notifier = notifier
	}
}

// Service обслуживает страницу отслеживания заказа.
type Service struct {
	repo     domain.OrderRepository
	notifier domain.Notifier
	clock    domain.Clock
	logger   *log.Entry
}

// NewService создаёт сервис отслеживания.
func NewService(repo domain.OrderRepository, options ...Option) *Service {
	opts := Options{}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "tracking")
	}
	clock := opts.Clock
	if clock == nil {
		clock = domain.SystemClock{}
	}

	return &Service{
		repo:     repo,
		notifier: opts.Notifier,
		clock:    clock,
		logger:   logger,
	}
}

// Query — параметры поиска заказа покупателем.
type Query struct {
	OrderID string
	Email   string
}

// Lookup ищет неудалённые заказы по номеру и/или email.
// Номер, который не разбирается как число, игнорируется. Email сравнивается без учёта регистра.
// Результат без повторов: сначала заказ по номеру, затем заказы по email от новых к старым.
func (s *Service) Lookup(ctx context.Context, q Query) ([]domain.Order, error) {
	orderID := strings.TrimSpace(q.OrderID)
	email := strings.TrimSpace(q.Email)
	if orderID == "" && email == "" {
		return nil, ErrLookupQueryEmpty
	}

	var found []domain.Order
	if id, err := strconv.ParseInt(orderID, 10, 64); err == nil {
		order, err := s.liveOrder(ctx, id)
		switch {
		case err == nil:
			found = append(found, order)
		case !errors.Is(err, domain.ErrOrderNotFound):
			return nil, err
		}
	}

	if email != "" {
		candidates, err := s.repo.List(ctx, domain.OrderFilter{
			Scope:  domain.ScopeLive,
			Search: email,
			Sort:   domain.SortNewest,
		})
		if err != nil {
			return nil, fmt.Errorf("lookup by email: %w", domain.StorageFailure(err))
		}
		found = append(found, lo.Filter(candidates, func(o domain.Order, _ int) bool {
			return strings.EqualFold(strings.TrimSpace(o.Customer.Email), email)
		})...)
	}

	found = lo.UniqBy(found, func(o domain.Order) int64 { return o.ID })
	if len(found) == 0 {
		return nil, domain.ErrOrderNotFound
	}
	return found, nil
}

// Details возвращает неудалённый заказ вместе с шагами доставки.
func (s *Service) Details(ctx context.Context, id int64) (domain.Order, []Step, error) {
	order, err := s.liveOrder(ctx, id)
	if err != nil {
		return domain.Order{}, nil, err
	}
	return order, Timeline(order, s.clock.Now()), nil
}

// Subscribe передаёт в канал уведомлений подписку покупателя на обновления заказа
// и возвращает сообщение для показа.
func (s *Service) Subscribe(ctx context.Context, id int64, email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", domain.ErrCustomerEmailRequired
	}
	order, err := s.liveOrder(ctx, id)
	if err != nil {
		return "", err
	}

	if s.notifier != nil {
		err := s.notifier.Notify(ctx, domain.NotificationRequest{
			Kind:           domain.NotificationSubscribe,
			OrderID:        order.ID,
			Email:          email,
			TrackingNumber: order.TrackingNumber,
			RequestedBy:    email,
			RequestedAt:    s.clock.Now(),
		})
		if err != nil {
			return "", fmt.Errorf("subscribe: %w", err)
		}
	}

	s.logger.WithField("order_id", order.ID).Info("tracking subscription requested")
	return fmt.Sprintf("You will receive email updates for order #%d to %s", order.ID, email), nil
}

func (s *Service) liveOrder(ctx context.Context, id int64) (domain.Order, error) {
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Order{}, domain.StorageFailure(err)
	}
	if order.IsDeleted {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return order, nil
}
