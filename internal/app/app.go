// Package app собирает сервис заказов: хранилище, уведомления, HTTP API и метрики.
package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/orderdesk/internal/health"
	"github.com/vladislavdragonenkov/orderdesk/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/orderdesk/internal/metrics"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/notify"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/orders"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/outbox"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/reporting"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/tracking"
	"github.com/vladislavdragonenkov/orderdesk/internal/transport/httpapi"
	"github.com/vladislavdragonenkov/orderdesk/internal/version"
)

const readHeaderTimeout = 10 * time.Second

// Run запускает сервис и блокируется до отмены ctx или падения HTTP-сервера.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.close(logger)

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	if deps.storageChecker != nil {
		healthHandler.RegisterChecker("storage", deps.storageChecker)
	}

	var notifier domain.Notifier = notify.NewLogNotifier(logger.WithField("layer", "notify"))
	producer, _ := initKafkaProducer(cfg.Brokers(), cfg.KafkaClientID, logger)
	if producer != nil {
		defer closeKafkaProducer(producer, logger)

		worker := newOutboxWorker(cfg, deps.outboxRepo, producer, logger)
		workerCtx, cancelWorker := context.WithCancel(ctx)
		workerDone := make(chan struct{})
		go func() {
			defer close(workerDone)
			worker.Run(workerCtx)
		}()
		defer shutdownOutboxWorker(cancelWorker, workerDone, logger)

		cleanup := newOutboxCleanupWorker(cfg, deps.outboxRepo, logger)
		cleanupCtx, cancelCleanup := context.WithCancel(ctx)
		cleanupDone := make(chan struct{})
		go func() {
			defer close(cleanupDone)
			cleanup.Run(cleanupCtx)
		}()
		defer shutdownOutboxWorker(cancelCleanup, cleanupDone, logger)

		notifier = notify.NewOutboxNotifier(deps.outboxRepo, logger.WithField("layer", "notify"))
		healthHandler.RegisterChecker("outbox", healthcheck.NewOutboxChecker("outbox", deps.outboxRepo, cfg.OutboxMaxPending, cfg.OutboxMaxAge))
	}

	orderMetrics := metrics.NewOrderMetrics()
	orderSvc := orders.NewService(deps.repo,
		orders.WithLogger(logger.WithField("layer", "orders")),
		orders.WithHistory(deps.historyRepo),
		orders.WithNotifier(notifier),
		orders.WithMetrics(orderMetrics),
	)
	reportingSvc := reporting.NewService(deps.repo,
		reporting.WithLogger(logger.WithField("layer", "reporting")),
		reporting.WithLocation(loc),
		reporting.WithMetrics(orderMetrics),
	)
	trackingSvc := tracking.NewService(deps.repo,
		tracking.WithLogger(logger.WithField("layer", "tracking")),
		tracking.WithNotifier(notifier),
	)

	handler := httpapi.NewHandler(orderSvc, reportingSvc, trackingSvc,
		httpapi.WithLogger(logger.WithField("layer", "http")),
		httpapi.WithLocation(loc),
	)
	apiSrv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.NewRouter(handler, httpapi.RouterConfig{
			Metrics: metrics.NewHTTPMetrics(prometheus.DefaultRegisterer),
			Logger:  logger.WithField("layer", "http"),
		}),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)
	defer shutdownHTTP(metricsSrv, cfg.shutdownTimeout(), logger)

	lis, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP API слушает %s", lis.Addr())
		errCh <- apiSrv.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем HTTP API")
		shutdownHTTP(apiSrv, cfg.shutdownTimeout(), logger)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func newOutboxWorker(cfg Config, repo domain.OutboxRepository, producer *kafka.Producer, logger *log.Entry) *outbox.Worker {
	return outbox.NewWorker(repo, kafka.NewOutboxPublisher(producer, cfg.NotifyTopic),
		outbox.WithLogger(logger.WithField("layer", "outbox")),
		outbox.WithMetrics(metrics.NewOutboxMetrics(prometheus.DefaultRegisterer)),
		outbox.WithDLQPublisher(kafka.NewOutboxPublisher(producer, cfg.DLQTopic)),
		outbox.WithPollInterval(cfg.OutboxPollInterval),
		outbox.WithBatchSize(cfg.OutboxBatchSize),
		outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
		outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
	)
}

func newOutboxCleanupWorker(cfg Config, repo domain.OutboxRepository, logger *log.Entry) *outbox.CleanupWorker {
	return outbox.NewCleanupWorker(repo,
		outbox.WithCleanupLogger(logger.WithField("layer", "outbox-cleanup")),
		outbox.WithCleanupMetrics(metrics.NewOutboxMetrics(prometheus.DefaultRegisterer)),
		outbox.WithRetention(cfg.OutboxRetention),
	)
}

// newMetricsMux собирает служебные маршруты: метрики и health probes.
func newMetricsMux(healthHandler *healthcheck.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	return mux
}

// startMetricsServer запускает служебный HTTP-сервер.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           newMetricsMux(healthHandler),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/readyz, %s/livez", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, 5*time.Second, logger)
	}()

	return srv
}

// shutdownHTTP останавливает сервер, дожидаясь активных запросов не дольше timeout.
func shutdownHTTP(srv *http.Server, timeout time.Duration, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}

// shutdownOutboxWorker отменяет воркер и ждёт завершения текущего цикла.
func shutdownOutboxWorker(cancel context.CancelFunc, done <-chan struct{}, logger *log.Entry) {
	if cancel != nil {
		cancel()
	}
	if done == nil {
		return
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		logger.Warn("outbox worker did not stop in time")
	}
}
