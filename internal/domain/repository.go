package domain

import (
	"context"
	"time"
)

// OrderRepository описывает требования к хранилищу заказов.
// Хранилище отвечает за целостность связи заказ — позиции.
type OrderRepository interface {
	// Create сохраняет новый заказ с позициями и присваивает ему идентификатор.
	Create(ctx context.Context, order Order) (Order, error)
	// Get возвращает заказ (в том числе удалённый) или ErrOrderNotFound.
	Get(ctx context.Context, id int64) (Order, error)
	// List возвращает заказы по фильтру.
	List(ctx context.Context, filter OrderFilter) ([]Order, error)
	// Save применяет обновления к заказу с учётом optimistic locking и возвращает новую версию.
	// Позиции заказа не меняются.
	Save(ctx context.Context, order Order) (Order, error)
	// SaveBatch сохраняет набор заказов атомарно: при любой ошибке не меняется ни один.
	SaveBatch(ctx context.Context, orders []Order) ([]Order, error)
	// Purge безвозвратно удаляет заказ из корзины вместе с позициями.
	// Для отсутствующего или неудалённого заказа возвращает ErrOrderNotFound.
	Purge(ctx context.Context, id int64) error
	// PurgeBatch атомарно удаляет те из ids, что лежат в корзине, и возвращает их число.
	PurgeBatch(ctx context.Context, ids []int64) (int, error)
}

// HistoryRepository хранит журнал изменений заказа.
type HistoryRepository interface {
	Append(ctx context.Context, entries ...HistoryEntry) error
	List(ctx context.Context, orderID int64) ([]HistoryEntry, error)
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(ctx context.Context, msg OutboxMessage) (OutboxMessage, error)
	PullPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	Stats(ctx context.Context) (OutboxStats, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
	// DeleteProcessedBefore удаляет до limit обработанных (sent/failed) сообщений, изменённых раньше before.
	DeleteProcessedBefore(ctx context.Context, before time.Time, limit int) (int, error)
}
