package orders

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

// TrashResult — итог операции с корзиной над одним заказом.
type TrashResult struct {
	Order domain.Order
	// Changed равен false, если заказ уже был в нужном состоянии.
	Changed bool
	Message string
}

// EmptyTrashResult — итог очистки корзины.
type EmptyTrashResult struct {
	Purged int
	Failed int
}

// SoftDelete перемещает заказ в корзину. Повторное удаление не считается ошибкой,
// но возвращает Changed=false.
func (s *Service) SoftDelete(ctx context.Context, id int64, actor domain.Actor) (TrashResult, error) {
	before, err := s.repo.Get(ctx, id)
	if err != nil {
		return TrashResult{}, domain.StorageFailure(err)
	}
	if before.IsDeleted {
		return TrashResult{
			Order:   before,
			Message: fmt.Sprintf("Order #%d is already in trash", id),
		}, nil
	}

	now := s.clock.Now()
	order := before.Clone()
	order.MarkDeleted(now)
	order.UpdatedAt = now

	saved, err := s.repo.Save(ctx, order)
	if err != nil {
		return TrashResult{}, s.classifyWrite(err)
	}

	s.recordHistory(ctx, before, saved, actor)
	s.metrics.RecordTrashOperation("soft_delete")
	s.logger.WithFields(log.Fields{"order_id": id, "actor": actor.Name}).Info("order moved to trash")

	return TrashResult{
		Order:   saved,
		Changed: true,
		Message: fmt.Sprintf("Order #%d moved to trash", id),
	}, nil
}

// Restore возвращает заказ из корзины. Для неудалённого заказа возвращает ErrOrderNotFound.
func (s *Service) Restore(ctx context.Context, id int64, actor domain.Actor) (TrashResult, error) {
	before, err := s.repo.Get(ctx, id)
	if err != nil {
		return TrashResult{}, domain.StorageFailure(err)
	}
	if !before.IsDeleted {
		return TrashResult{}, domain.ErrOrderNotFound
	}

	order := before.Clone()
	order.MarkRestored()
	order.UpdatedAt = s.clock.Now()

	saved, err := s.repo.Save(ctx, order)
	if err != nil {
		return TrashResult{}, s.classifyWrite(err)
	}

	s.recordHistory(ctx, before, saved, actor)
	s.metrics.RecordTrashOperation("restore")
	s.logger.WithFields(log.Fields{"order_id": id, "actor": actor.Name}).Info("order restored from trash")

	return TrashResult{
		Order:   saved,
		Changed: true,
		Message: fmt.Sprintf("Order #%d restored", id),
	}, nil
}

// PermanentlyDelete безвозвратно удаляет заказ из корзины вместе с позициями.
// Живой заказ удалить нельзя: возвращается ErrOrderNotFound.
func (s *Service) PermanentlyDelete(ctx context.Context, id int64, actor domain.Actor) (TrashResult, error) {
	if err := s.repo.Purge(ctx, id); err != nil {
		return TrashResult{}, domain.StorageFailure(err)
	}

	s.metrics.RecordTrashOperation("purge")
	s.logger.WithFields(log.Fields{"order_id": id, "actor": actor.Name}).Warn("order permanently deleted")

	return TrashResult{
		Order:   domain.Order{ID: id},
		Changed: true,
		Message: fmt.Sprintf("Order #%d permanently deleted", id),
	}, nil
}

// EmptyTrash удаляет все заказы из корзины по одному. Каждое удаление атомарно;
// ошибка на одном заказе логируется и не останавливает остальные.
func (s *Service) EmptyTrash(ctx context.Context, actor domain.Actor) (EmptyTrashResult, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveOperation("empty_trash", time.Since(start)) }()

	trash, err := s.repo.List(ctx, domain.OrderFilter{Scope: domain.ScopeTrash, Sort: domain.SortOldest})
	if err != nil {
		return EmptyTrashResult{}, domain.StorageFailure(err)
	}

	var result EmptyTrashResult
	for _, order := range trash {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if err := s.repo.Purge(ctx, order.ID); err != nil {
			if domain.IsNotFound(err) {
				// Заказ уже удалён или восстановлен параллельным запросом.
				continue
			}
			result.Failed++
			s.metrics.RecordPurgeFailure()
			s.logger.WithError(err).WithField("order_id", order.ID).Error("failed to purge order from trash")
			continue
		}
		result.Purged++
	}

	s.metrics.RecordTrashOperation("empty_trash")
	s.logger.WithFields(log.Fields{
		"purged": result.Purged,
		"failed": result.Failed,
		"actor":  actor.Name,
	}).Info("trash emptied")

	return result, nil
}
