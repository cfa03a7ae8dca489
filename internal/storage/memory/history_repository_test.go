package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/storage/memory"
)

func TestHistoryRepository_AppendKeepsChronology(t *testing.T) {
	repo := memory.NewHistoryRepository()
	ctx := context.Background()
	at := time.Date(2025, 2, 2, 10, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Append(ctx,
		domain.HistoryEntry{OrderID: 1, Field: domain.HistoryStatus, To: "Shipped", Occurred: at.Add(time.Hour)},
		domain.HistoryEntry{OrderID: 2, Field: domain.HistoryPriority, To: "High", Occurred: at},
	))
	require.NoError(t, repo.Append(ctx,
		domain.HistoryEntry{OrderID: 1, Field: domain.HistoryStatus, To: "Processing", Occurred: at},
	))

	entries, err := repo.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Processing", entries[0].To)
	assert.Equal(t, "Shipped", entries[1].To)

	entries[0].To = "mutated"
	again, err := repo.List(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Processing", again[0].To)

	empty, err := repo.List(ctx, 99)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
