// Package reporting строит read-only агрегаты по заказам: дашборд, статистику за период и CSV-выгрузку.
package reporting

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/metrics"
)

// Options задаёт зависимости сервиса отчётов.
type Options struct {
	Logger   *log.Entry
	Clock    domain.Clock
	Location *time.Location
	Metrics  *metrics.OrderMetrics
}

// Option настраивает Service.
type Option func(*Options)

func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) { opts.Logger = logger }
}

func WithClock(clock domain.Clock) Option {
	return func(opts *Options) { opts.Clock = clock }
}

// WithLocation задаёт часовой пояс, в котором считаются границы суток, недель и месяцев.
func WithLocation(loc *time.Location) Option {
	return func(opts *Options) { opts.Location = loc }
}

func WithMetrics(m *metrics.OrderMetrics) Option {
	return func(opts *Options) { opts.Metrics = m }
}

// Service строит отчёты поверх OrderRepository.
type Service struct {
	repo    domain.OrderRepository
	clock   domain.Clock
	loc     *time.Location
	logger  *log.Entry
	metrics *metrics.OrderMetrics
}

// NewService создаёт сервис отчётов.
func NewService(repo domain.OrderRepository, options ...Option) *Service {
	opts := Options{}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "reporting")
	}
	clock := opts.Clock
	if clock == nil {
		clock = domain.SystemClock{}
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}

	return &Service{
		repo:    repo,
		clock:   clock,
		loc:     loc,
		logger:  logger,
		metrics: opts.Metrics,
	}
}

func (s *Service) now() time.Time {
	return s.clock.Now().In(s.loc)
}

func (s *Service) list(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	orders, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, domain.StorageFailure(err)
	}
	return orders, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
