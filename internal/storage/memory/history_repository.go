package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

// historyRepositoryInMemory хранит журнал изменений в памяти (для разработки/тестов).
type historyRepositoryInMemory struct {
	mu      sync.RWMutex
	entries map[int64][]domain.HistoryEntry
}

// NewHistoryRepository создаёт in-memory реализацию HistoryRepository.
func NewHistoryRepository() domain.HistoryRepository {
	return &historyRepositoryInMemory{entries: make(map[int64][]domain.HistoryEntry)}
}

// Append добавляет записи в журнал. Журнал переживает удаление заказа.
func (r *historyRepositoryInMemory) Append(_ context.Context, entries ...domain.HistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	touched := make(map[int64]struct{}, len(entries))
	for _, entry := range entries {
		r.entries[entry.OrderID] = append(r.entries[entry.OrderID], entry)
		touched[entry.OrderID] = struct{}{}
	}
	for orderID := range touched {
		list := r.entries[orderID]
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].Occurred.Before(list[j].Occurred)
		})
	}

	return nil
}

// List возвращает записи заказа в хронологическом порядке.
func (r *historyRepositoryInMemory) List(_ context.Context, orderID int64) ([]domain.HistoryEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := r.entries[orderID]
	result := make([]domain.HistoryEntry, len(entries))
	copy(result, entries)
	return result, nil
}

var _ domain.HistoryRepository = (*historyRepositoryInMemory)(nil)
