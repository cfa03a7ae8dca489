package memory

import (
	"context"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

// orderRepositoryInMemory — простая in-memory реализация OrderRepository.
type orderRepositoryInMemory struct {
	mu         sync.RWMutex
	items      map[int64]domain.Order
	nextID     int64
	nextItemID int64
}

// NewOrderRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewOrderRepository() domain.OrderRepository {
	return NewOrderRepositoryStartingAt(1)
}

// NewOrderRepositoryStartingAt позволяет задать первый выдаваемый номер заказа.
func NewOrderRepositoryStartingAt(firstID int64) domain.OrderRepository {
	if firstID <= 0 {
		firstID = 1
	}
	return &orderRepositoryInMemory{
		items:      make(map[int64]domain.Order),
		nextID:     firstID,
		nextItemID: 1,
	}
}

// Create сохраняет новый заказ и присваивает номера заказу и позициям.
// Номера выдаются монотонно и не переиспользуются даже после удаления.
func (r *orderRepositoryInMemory) Create(_ context.Context, order domain.Order) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order = order.Clone()
	order.ID = r.nextID
	r.nextID++
	for i := range order.Items {
		order.Items[i].ID = r.nextItemID
		order.Items[i].OrderID = order.ID
		r.nextItemID++
	}
	order.Version = 0
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = time.Now().UTC()
	}

	r.items[order.ID] = order
	return order.Clone(), nil
}

// Get возвращает заказ или ErrOrderNotFound, если его нет.
func (r *orderRepositoryInMemory) Get(_ context.Context, id int64) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.items[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return order.Clone(), nil
}

// List возвращает копии заказов, подходящих под фильтр.
func (r *orderRepositoryInMemory) List(_ context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Order, 0, len(r.items))
	for _, order := range r.items {
		if !filter.Match(order) {
			continue
		}
		result = append(result, order.Clone())
	}

	domain.SortOrders(result, filter.Sort)

	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}

	return result, nil
}

// Save перезаписывает заказ, проверяя версию (optimistic locking). Позиции не меняются.
func (r *orderRepositoryInMemory) Save(_ context.Context, order domain.Order) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkVersion(order); err != nil {
		return domain.Order{}, err
	}
	saved := r.store(order)
	return saved.Clone(), nil
}

// SaveBatch проверяет версии всех заказов до записи, поэтому набор сохраняется целиком или никак.
func (r *orderRepositoryInMemory) SaveBatch(_ context.Context, orders []domain.Order) ([]domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[int64]struct{}, len(orders))
	for _, order := range orders {
		if _, dup := seen[order.ID]; dup {
			return nil, domain.ErrOrderVersionConflict
		}
		seen[order.ID] = struct{}{}
		if err := r.checkVersion(order); err != nil {
			return nil, err
		}
	}

	result := make([]domain.Order, 0, len(orders))
	for _, order := range orders {
		saved := r.store(order)
		result = append(result, saved.Clone())
	}
	return result, nil
}

// Purge удаляет заказ из корзины вместе с позициями.
func (r *orderRepositoryInMemory) Purge(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.items[id]
	if !ok || !order.IsDeleted {
		return domain.ErrOrderNotFound
	}
	delete(r.items, id)
	return nil
}

// PurgeBatch удаляет из корзины все перечисленные заказы под одной блокировкой.
func (r *orderRepositoryInMemory) PurgeBatch(_ context.Context, ids []int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	purged := 0
	for _, id := range ids {
		order, ok := r.items[id]
		if !ok || !order.IsDeleted {
			continue
		}
		delete(r.items, id)
		purged++
	}
	return purged, nil
}

func (r *orderRepositoryInMemory) checkVersion(order domain.Order) error {
	current, ok := r.items[order.ID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if current.Version != order.Version {
		return domain.ErrOrderVersionConflict
	}
	return nil
}

func (r *orderRepositoryInMemory) store(order domain.Order) domain.Order {
	current := r.items[order.ID]
	order = order.Clone()
	// Позиции принадлежат заказу и через Save не редактируются.
	order.Items = current.Items
	order.Version++
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = time.Now().UTC()
	}
	r.items[order.ID] = order
	return order
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
