package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OutboxMetrics описывает доставку запросов на уведомления через outbox.
type OutboxMetrics struct {
	publishAttempts *prometheus.CounterVec
	pending         prometheus.Gauge
	oldestAge       prometheus.Gauge
	cleanupRuns     *prometheus.CounterVec
	cleanupDeleted  prometheus.Counter
	lastDeleted     prometheus.Gauge
}

// NewOutboxMetrics регистрирует метрики outbox в переданном registerer.
func NewOutboxMetrics(registerer prometheus.Registerer) *OutboxMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OutboxMetrics{
		publishAttempts: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orderdesk_outbox_publish_attempts_total",
			Help: "Total number of outbox publish attempts grouped by result.",
		}, []string{"result"}),
		pending: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "orderdesk_outbox_pending_records",
			Help: "Current number of pending records in the notification outbox.",
		}),
		oldestAge: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "orderdesk_outbox_oldest_pending_age_seconds",
			Help: "Age in seconds of the oldest pending outbox record.",
		}),
		cleanupRuns: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orderdesk_outbox_cleanup_runs_total",
			Help: "Total number of outbox cleanup runs grouped by result.",
		}, []string{"result"}),
		cleanupDeleted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orderdesk_outbox_cleanup_deleted_total",
			Help: "Total number of processed outbox records removed by cleanup.",
		}),
		lastDeleted: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "orderdesk_outbox_cleanup_last_deleted",
			Help: "Number of records removed during the last cleanup run.",
		}),
	}
}

// RecordAttempt учитывает попытку публикации: sent, retry_error, failed, dlq_failed.
func (m *OutboxMetrics) RecordAttempt(result string) {
	if m == nil {
		return
	}
	m.publishAttempts.WithLabelValues(result).Inc()
}

// SetBacklog выставляет размер и возраст очереди.
func (m *OutboxMetrics) SetBacklog(pending int, oldestAge time.Duration) {
	if m == nil {
		return
	}
	if oldestAge < 0 {
		oldestAge = 0
	}
	m.pending.Set(float64(pending))
	m.oldestAge.Set(oldestAge.Seconds())
}

// RecordCleanup учитывает прогон очистки: ok или error.
func (m *OutboxMetrics) RecordCleanup(result string, deleted int) {
	if m == nil {
		return
	}
	m.cleanupRuns.WithLabelValues(result).Inc()
	if result == "ok" {
		m.lastDeleted.Set(float64(deleted))
	}
	if deleted > 0 {
		m.cleanupDeleted.Add(float64(deleted))
	}
}

// CleanupRunsCounter возвращает счётчик прогонов очистки для результата.
func (m *OutboxMetrics) CleanupRunsCounter(result string) prometheus.Counter {
	return m.cleanupRuns.WithLabelValues(result)
}

// AttemptsCounter возвращает счётчик попыток для результата.
func (m *OutboxMetrics) AttemptsCounter(result string) prometheus.Counter {
	return m.publishAttempts.WithLabelValues(result)
}
