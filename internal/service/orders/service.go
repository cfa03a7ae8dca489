// Package orders реализует операции над заказами: смену статусов, корзину и массовые действия.
package orders

import (
	"context"
	"math/rand"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/metrics"
)

// Options задаёт зависимости сервиса.
type Options struct {
	Logger   *log.Entry
	Clock    domain.Clock
	Random   domain.RandomSource
	History  domain.HistoryRepository
	Notifier domain.Notifier
	Metrics  *metrics.OrderMetrics
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

// WithRandom задаёт источник случайных чисел для трек-номеров.
func WithRandom(rnd domain.RandomSource) Option {
	return func(opts *Options) {
		opts.Random = rnd
	}
}

// WithHistory включает журнал изменений.
func WithHistory(history domain.HistoryRepository) Option {
	return func(opts *Options) {
		opts.History = history
	}
}

// WithNotifier задаёт канал для запросов на уведомления.
func WithNotifier(notifier domain.Notifier) Option {
	return func(opts *Options) {
		opts.Notifier = notifier
	}
}

// WithMetrics задаёт метрики.
func WithMetrics(m *metrics.OrderMetrics) Option {
	return func(opts *Options) {
		opts.Metrics = m
	}
}

// Service — точка входа для операций над заказами. Все обращения к данным идут через OrderRepository.
type Service struct {
	repo     domain.OrderRepository
	history  domain.HistoryRepository
	notifier domain.Notifier
	clock    domain.Clock
	rnd      domain.RandomSource
	logger   *log.Entry
	metrics  *metrics.OrderMetrics
}

// NewService создаёт сервис заказов.
func NewService(repo domain.OrderRepository, options ...Option) *Service {
	opts := Options{}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "orders")
	}
	clock := opts.Clock
	if clock == nil {
		clock = domain.SystemClock{}
	}
	rnd := opts.Random
	if rnd == nil {
		rnd = &lockedRand{r: rand.New(rand.NewSource(time.Now().UnixNano()))}
	}

	return &Service{
		repo:     repo,
		history:  opts.History,
		notifier: opts.Notifier,
		clock:    clock,
		rnd:      rnd,
		logger:   logger,
		metrics:  opts.Metrics,
	}
}

// OrderDetails — заказ вместе с журналом изменений.
type OrderDetails struct {
	Order   domain.Order
	History []domain.HistoryEntry
}

// Get возвращает неудалённый заказ с позициями.
// Удалённый заказ доступен только при includeDeleted.
func (s *Service) Get(ctx context.Context, id int64, includeDeleted bool) (OrderDetails, error) {
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return OrderDetails{}, domain.StorageFailure(err)
	}
	if order.IsDeleted && !includeDeleted {
		return OrderDetails{}, domain.ErrOrderNotFound
	}

	details := OrderDetails{Order: order}
	if s.history != nil {
		entries, err := s.history.List(ctx, id)
		if err != nil {
			s.logger.WithError(err).WithField("order_id", id).Warn("failed to load order history")
		} else {
			details.History = entries
		}
	}
	return details, nil
}

// List возвращает заказы по фильтру. По умолчанию корзина исключена.
func (s *Service) List(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveOperation("list", time.Since(start)) }()

	orders, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, domain.StorageFailure(err)
	}
	return orders, nil
}

// loadLive загружает заказ и требует, чтобы он не лежал в корзине.
func (s *Service) loadLive(ctx context.Context, id int64) (domain.Order, error) {
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Order{}, domain.StorageFailure(err)
	}
	if order.IsDeleted {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return order, nil
}

func (s *Service) recordHistory(ctx context.Context, before, after domain.Order, actor domain.Actor) {
	if s.history == nil {
		return
	}
	entries := domain.DiffHistory(before, after, actor.Name, s.clock.Now())
	if len(entries) == 0 {
		return
	}
	if err := s.history.Append(ctx, entries...); err != nil {
		s.logger.WithError(err).WithField("order_id", after.ID).Warn("failed to append order history")
	}
}

func (s *Service) classifyWrite(err error) error {
	if domain.IsVersionConflict(err) {
		s.metrics.RecordConflict()
	}
	return domain.StorageFailure(err)
}
