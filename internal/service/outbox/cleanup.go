package outbox

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/metrics"
)

const (
	defaultCleanupInterval  = 10 * time.Minute
	defaultCleanupBatchSize = 500
	defaultRetention        = 72 * time.Hour
)

// CleanupOptions задаёт параметры очистки обработанных сообщений.
type CleanupOptions struct {
	Logger    *log.Entry
	Metrics   *metrics.OutboxMetrics
	Clock     domain.Clock
	Interval  time.Duration
	BatchSize int
	Retention time.Duration
}

// CleanupOption настраивает CleanupWorker.
type CleanupOption func(*CleanupOptions)

// WithCleanupLogger задаёт logger.
func WithCleanupLogger(logger *log.Entry) CleanupOption {
	return func(opts *CleanupOptions) { opts.Logger = logger }
}

func WithCleanupMetrics(m *metrics.OutboxMetrics) CleanupOption {
	return func(opts *CleanupOptions) { opts.Metrics = m }
}

func WithCleanupClock(clock domain.Clock) CleanupOption {
	return func(opts *CleanupOptions) { opts.Clock = clock }
}

// WithCleanupInterval задаёт интервал между прогонами.
func WithCleanupInterval(interval time.Duration) CleanupOption {
	return func(opts *CleanupOptions) { opts.Interval = interval }
}

// WithCleanupBatchSize задаёт размер одной порции удаления.
func WithCleanupBatchSize(batchSize int) CleanupOption {
	return func(opts *CleanupOptions) { opts.BatchSize = batchSize }
}

// WithRetention задаёт, сколько хранить отправленные и упавшие сообщения.
func WithRetention(retention time.Duration) CleanupOption {
	return func(opts *CleanupOptions) { opts.Retention = retention }
}

// CleanupWorker периодически удаляет обработанные outbox-сообщения старше retention.
// Pending-сообщения не трогает.
type CleanupWorker struct {
	repo domain.OutboxRepository
	opts CleanupOptions
}

// NewCleanupWorker создаёт воркер очистки.
func NewCleanupWorker(repo domain.OutboxRepository, options ...CleanupOption) *CleanupWorker {
	opts := CleanupOptions{
		Interval:  defaultCleanupInterval,
		BatchSize: defaultCleanupBatchSize,
		Retention: defaultRetention,
	}
	for _, option := range options {
		option(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = log.WithField("component", "outbox-cleanup")
	}
	if opts.Clock == nil {
		opts.Clock = domain.SystemClock{}
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultCleanupInterval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultCleanupBatchSize
	}
	if opts.Retention <= 0 {
		opts.Retention = defaultRetention
	}

	return &CleanupWorker{repo: repo, opts: opts}
}

// Run чистит outbox сразу и затем раз в интервал до отмены ctx.
func (w *CleanupWorker) Run(ctx context.Context) {
	if w.repo == nil {
		w.opts.Logger.Warn("outbox cleanup is disabled: repo is nil")
		return
	}

	w.cleanup(ctx)

	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.cleanup(ctx)
		}
	}
}

func (w *CleanupWorker) cleanup(ctx context.Context) {
	before := w.opts.Clock.Now().UTC().Add(-w.opts.Retention)
	deleted, err := w.DeleteProcessed(ctx, before)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		w.opts.Metrics.RecordCleanup("error", deleted)
		w.opts.Logger.WithError(err).Warn("outbox cleanup run failed")
		return
	}

	w.opts.Metrics.RecordCleanup("ok", deleted)
	if deleted > 0 {
		w.opts.Logger.WithField("deleted", deleted).Info("outbox cleanup completed")
	}
}

// DeleteProcessed удаляет все обработанные сообщения старше before порциями BatchSize.
func (w *CleanupWorker) DeleteProcessed(ctx context.Context, before time.Time) (int, error) {
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		deleted, err := w.repo.DeleteProcessedBefore(ctx, before, w.opts.BatchSize)
		if err != nil {
			return total, err
		}
		total += deleted

		if deleted < w.opts.BatchSize {
			return total, nil
		}
	}
}
