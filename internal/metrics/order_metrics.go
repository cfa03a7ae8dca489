package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics содержит метрики операций над заказами.
// Все методы безопасны для nil-получателя: сервисы могут работать без метрик.
type OrderMetrics struct {
	// Счётчики операций
	transitions    *prometheus.CounterVec
	trashOps       *prometheus.CounterVec
	bulkOps        *prometheus.CounterVec
	bulkAffected   prometheus.Counter
	purgeFailures  prometheus.Counter
	conflicts      prometheus.Counter
	notifications  *prometheus.CounterVec
	ordersPlaced   prometheus.Counter
	exportedRows   prometheus.Counter
	trashSize      prometheus.Gauge
	operationTimer *prometheus.HistogramVec
}

// NewOrderMetrics регистрирует метрики в prometheus.DefaultRegisterer.
func NewOrderMetrics() *OrderMetrics {
	return NewOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewOrderMetricsWithRegisterer регистрирует метрики в переданном registerer.
// Повторная регистрация возвращает уже существующие коллекторы.
func NewOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OrderMetrics{
		transitions: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orderdesk_transitions_total",
			Help: "Total number of single-order transitions grouped by action.",
		}, []string{"action"}),
		trashOps: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orderdesk_trash_operations_total",
			Help: "Total number of trash operations grouped by operation.",
		}, []string{"operation"}),
		bulkOps: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orderdesk_bulk_operations_total",
			Help: "Total number of bulk operations grouped by action and result.",
		}, []string{"action", "result"}),
		bulkAffected: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orderdesk_bulk_orders_affected_total",
			Help: "Total number of orders changed by bulk operations.",
		}),
		purgeFailures: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orderdesk_purge_failures_total",
			Help: "Total number of orders that failed to purge while emptying trash.",
		}),
		conflicts: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orderdesk_version_conflicts_total",
			Help: "Total number of writes rejected by optimistic locking.",
		}),
		notifications: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orderdesk_notifications_requested_total",
			Help: "Total number of customer notification requests grouped by kind.",
		}, []string{"kind"}),
		ordersPlaced: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orderdesk_orders_placed_total",
			Help: "Total number of orders placed at checkout.",
		}),
		exportedRows: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orderdesk_export_rows_total",
			Help: "Total number of order rows written to CSV exports.",
		}),
		trashSize: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "orderdesk_trash_orders",
			Help: "Number of orders currently in trash, as of the last listing.",
		}),
		operationTimer: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "orderdesk_operation_duration_seconds",
			Help:    "Duration of order operations in seconds.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"operation"}),
	}
}

// RecordTransition увеличивает счётчик переходов по действию.
func (m *OrderMetrics) RecordTransition(action string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(action).Inc()
}

// RecordTrashOperation увеличивает счётчик операций с корзиной.
func (m *OrderMetrics) RecordTrashOperation(operation string) {
	if m == nil {
		return
	}
	m.trashOps.WithLabelValues(operation).Inc()
}

// RecordBulk фиксирует результат массовой операции.
func (m *OrderMetrics) RecordBulk(action string, affected int, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.bulkOps.WithLabelValues(action, result).Inc()
	if affected > 0 {
		m.bulkAffected.Add(float64(affected))
	}
}

// RecordPurgeFailure увеличивает счётчик неудачных удалений из корзины.
func (m *OrderMetrics) RecordPurgeFailure() {
	if m == nil {
		return
	}
	m.purgeFailures.Inc()
}

// RecordConflict увеличивает счётчик конфликтов версий.
func (m *OrderMetrics) RecordConflict() {
	if m == nil {
		return
	}
	m.conflicts.Inc()
}

// RecordNotification увеличивает счётчик запросов на уведомление.
func (m *OrderMetrics) RecordNotification(kind string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(kind).Inc()
}

// RecordOrderPlaced увеличивает счётчик оформленных заказов.
func (m *OrderMetrics) RecordOrderPlaced() {
	if m == nil {
		return
	}
	m.ordersPlaced.Inc()
}

// RecordExport добавляет число выгруженных строк.
func (m *OrderMetrics) RecordExport(rows int) {
	if m == nil {
		return
	}
	m.exportedRows.Add(float64(rows))
}

// SetTrashSize обновляет размер корзины.
func (m *OrderMetrics) SetTrashSize(n int) {
	if m == nil {
		return
	}
	m.trashSize.Set(float64(n))
}

// ObserveOperation записывает длительность операции.
func (m *OrderMetrics) ObserveOperation(operation string, duration time.Duration) {
	if m == nil {
		return
	}
	m.operationTimer.WithLabelValues(operation).Observe(duration.Seconds())
}
