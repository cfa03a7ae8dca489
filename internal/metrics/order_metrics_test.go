package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestNewOrderMetricsWithRegisterer(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOrderMetricsWithRegisterer(reg)

	if m == nil {
		t.Fatal("NewOrderMetricsWithRegisterer should not return nil")
	}
	if m.transitions == nil || m.trashOps == nil || m.bulkOps == nil {
		t.Fatal("counter vectors should be initialized")
	}
	if m.operationTimer == nil {
		t.Fatal("operation histogram should be initialized")
	}
}

func TestNewOrderMetricsReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := NewOrderMetricsWithRegisterer(reg)
	second := NewOrderMetricsWithRegisterer(reg)

	first.RecordConflict()
	second.RecordConflict()

	if got := testutil.ToFloat64(first.conflicts); got != 2 {
		t.Fatalf("expected shared counter value 2, got %v", got)
	}
}

func TestRecordBulk(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOrderMetricsWithRegisterer(reg)

	m.RecordBulk("mark-paid", 3, nil)
	m.RecordBulk("mark-paid", 0, errors.New("boom"))

	if got := testutil.ToFloat64(m.bulkOps.WithLabelValues("mark-paid", "ok")); got != 1 {
		t.Errorf("expected 1 ok bulk op, got %v", got)
	}
	if got := testutil.ToFloat64(m.bulkOps.WithLabelValues("mark-paid", "error")); got != 1 {
		t.Errorf("expected 1 failed bulk op, got %v", got)
	}
	if got := testutil.ToFloat64(m.bulkAffected); got != 3 {
		t.Errorf("expected 3 affected orders, got %v", got)
	}
}

func TestObserveOperation(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOrderMetricsWithRegisterer(reg)

	m.ObserveOperation("apply_transition", 15*time.Millisecond)
	m.ObserveOperation("apply_transition", 30*time.Millisecond)

	observer, err := m.operationTimer.GetMetricWithLabelValues("apply_transition")
	if err != nil {
		t.Fatalf("get histogram: %v", err)
	}

	metric := &dto.Metric{}
	if err := observer.(prometheus.Metric).Write(metric); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	if got := metric.GetHistogram().GetSampleCount(); got != 2 {
		t.Fatalf("expected 2 samples, got %d", got)
	}
}

func TestGaugesAndCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOrderMetricsWithRegisterer(reg)

	m.SetTrashSize(4)
	m.RecordExport(12)
	m.RecordOrderPlaced()
	m.RecordNotification("send-tracking")
	m.RecordTransition("mark-shipped")
	m.RecordTrashOperation("soft_delete")
	m.RecordPurgeFailure()

	if got := testutil.ToFloat64(m.trashSize); got != 4 {
		t.Errorf("expected trash size 4, got %v", got)
	}
	if got := testutil.ToFloat64(m.exportedRows); got != 12 {
		t.Errorf("expected 12 exported rows, got %v", got)
	}
	if got := testutil.ToFloat64(m.notifications.WithLabelValues("send-tracking")); got != 1 {
		t.Errorf("expected 1 notification, got %v", got)
	}
	if got := testutil.ToFloat64(m.transitions.WithLabelValues("mark-shipped")); got != 1 {
		t.Errorf("expected 1 transition, got %v", got)
	}
	if got := testutil.ToFloat64(m.purgeFailures); got != 1 {
		t.Errorf("expected 1 purge failure, got %v", got)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *OrderMetrics

	m.RecordTransition("save")
	m.RecordTrashOperation("restore")
	m.RecordBulk("mark-paid", 1, nil)
	m.RecordPurgeFailure()
	m.RecordConflict()
	m.RecordNotification("generate-invoice")
	m.RecordOrderPlaced()
	m.RecordExport(1)
	m.SetTrashSize(1)
	m.ObserveOperation("list", time.Millisecond)
}
