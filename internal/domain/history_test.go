package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

func TestDiffHistory(t *testing.T) {
	before := makeOrder()
	after := before.Clone()
	after.Status = domain.OrderStatusShipped
	after.TrackingNumber = "TRK1"
	at := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

	entries := domain.DiffHistory(before, after, "admin@shop", at)
	require.Len(t, entries, 2)

	assert.Equal(t, domain.HistoryEntry{
		OrderID: 1001, Field: domain.HistoryStatus, From: "Pending", To: "Shipped", Actor: "admin@shop", Occurred: at,
	}, entries[0])
	assert.Equal(t, domain.HistoryTrackingNumber, entries[1].Field)
	assert.Equal(t, "", entries[1].From)
	assert.Equal(t, "TRK1", entries[1].To)
}

func TestDiffHistoryLifecycle(t *testing.T) {
	before := makeOrder()
	after := before.Clone()
	after.MarkDeleted(time.Now())

	entries := domain.DiffHistory(before, after, "", time.Now())
	require.Len(t, entries, 1)
	assert.Equal(t, domain.HistoryLifecycle, entries[0].Field)
	assert.Equal(t, "active", entries[0].From)
	assert.Equal(t, "deleted", entries[0].To)

	assert.Empty(t, domain.DiffHistory(before, before, "", time.Now()))
}
