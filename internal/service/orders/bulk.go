package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

// BulkResult — итог массовой операции.
type BulkResult struct {
	Action Action
	// Requested — число уникальных идентификаторов в запросе.
	Requested int
	// Affected — число заказов, попавших в атомарную запись.
	Affected int
	// Skipped — отсутствующие заказы и заказы в неподходящем состоянии.
	Skipped int
	// ExportIDs заполняется для export-selected.
	ExportIDs []int64
	Message   string
}

const (
	actionRestore Action = "restore"
	actionPurge   Action = "purge"
)

var bulkUpdateActions = map[Action]struct{}{
	ActionMarkProcessing: {},
	ActionMarkShipped:    {},
	ActionMarkDelivered:  {},
	ActionMarkPaid:       {},
	ActionAssignMe:       {},
	ActionSoftDelete:     {},
}

// BulkAction применяет действие к набору заказов одной атомарной записью.
// Отсутствующие и удалённые заказы пропускаются молча, неизвестное действие ничего не меняет.
// Пустой список отклоняется до обращения к хранилищу.
func (s *Service) BulkAction(ctx context.Context, ids []int64, action Action, actor domain.Actor) (BulkResult, error) {
	if len(ids) == 0 {
		return BulkResult{}, domain.ErrEmptySelection
	}
	ids = lo.Uniq(ids)

	if action == ActionExportSelected {
		return BulkResult{
			Action:    action,
			Requested: len(ids),
			ExportIDs: ids,
			Message:   fmt.Sprintf("%d orders selected for export", len(ids)),
		}, nil
	}

	if _, ok := bulkUpdateActions[action]; !ok {
		s.logger.WithField("action", action).Warn("unknown bulk action ignored")
		s.metrics.RecordBulk(metricAction(action), 0, nil)
		return BulkResult{
			Action:    action,
			Requested: len(ids),
			Skipped:   len(ids),
			Message:   "0 orders updated successfully",
		}, nil
	}

	now := s.clock.Now()
	return s.commitBatch(ctx, ids, action, actor, domain.ScopeLive, func(o *domain.Order) {
		s.applyAction(o, action, actor, now)
		o.UpdatedAt = now
	})
}

// BulkDelete перемещает набор заказов в корзину.
func (s *Service) BulkDelete(ctx context.Context, ids []int64, actor domain.Actor) (BulkResult, error) {
	return s.BulkAction(ctx, ids, ActionSoftDelete, actor)
}

// BulkRestore возвращает набор заказов из корзины одной атомарной записью.
func (s *Service) BulkRestore(ctx context.Context, ids []int64, actor domain.Actor) (BulkResult, error) {
	if len(ids) == 0 {
		return BulkResult{}, domain.ErrEmptySelection
	}
	ids = lo.Uniq(ids)

	now := s.clock.Now()
	return s.commitBatch(ctx, ids, actionRestore, actor, domain.ScopeTrash, func(o *domain.Order) {
		o.MarkRestored()
		o.UpdatedAt = now
	})
}

// BulkPermanentDelete безвозвратно удаляет заказы из корзины одной транзакцией.
// Живые и отсутствующие заказы пропускаются.
func (s *Service) BulkPermanentDelete(ctx context.Context, ids []int64, actor domain.Actor) (BulkResult, error) {
	if len(ids) == 0 {
		return BulkResult{}, domain.ErrEmptySelection
	}
	ids = lo.Uniq(ids)

	purged, err := s.repo.PurgeBatch(ctx, ids)
	s.metrics.RecordBulk(string(actionPurge), purged, err)
	if err != nil {
		s.logger.WithError(err).WithField("requested", len(ids)).Error("bulk purge failed")
		return BulkResult{}, fmt.Errorf("bulk purge: %w", domain.StorageFailure(err))
	}

	s.logger.WithFields(log.Fields{
		"requested": len(ids),
		"purged":    purged,
		"actor":     actor.Name,
	}).Warn("orders permanently deleted")

	return BulkResult{
		Action:    actionPurge,
		Requested: len(ids),
		Affected:  purged,
		Skipped:   len(ids) - purged,
		Message:   fmt.Sprintf("%d orders permanently deleted", purged),
	}, nil
}

// commitBatch загружает снимок подходящих заказов, меняет их в памяти и сохраняет одной записью.
func (s *Service) commitBatch(
	ctx context.Context,
	ids []int64,
	action Action,
	actor domain.Actor,
	scope domain.Scope,
	mutate func(*domain.Order),
) (BulkResult, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveOperation("bulk", time.Since(start)) }()

	snapshot, err := s.repo.List(ctx, domain.OrderFilter{IDs: ids, Scope: scope, Sort: domain.SortOldest})
	if err != nil {
		s.metrics.RecordBulk(metricAction(action), 0, err)
		return BulkResult{}, fmt.Errorf("bulk %s: %w", action, domain.StorageFailure(err))
	}

	changed := lo.Map(snapshot, func(o domain.Order, _ int) domain.Order {
		clone := o.Clone()
		mutate(&clone)
		return clone
	})

	var saved []domain.Order
	if len(changed) > 0 {
		saved, err = s.repo.SaveBatch(ctx, changed)
		if err != nil {
			s.metrics.RecordBulk(metricAction(action), 0, err)
			s.logger.WithError(err).WithFields(log.Fields{
				"action":    action,
				"requested": len(ids),
				"matched":   len(changed),
			}).Error("bulk operation failed, batch abandoned")
			return BulkResult{}, fmt.Errorf("bulk %s: %w", action, s.classifyWrite(err))
		}
	}

	for i := range saved {
		s.recordHistory(ctx, snapshot[i], saved[i], actor)
	}
	s.metrics.RecordBulk(metricAction(action), len(saved), nil)
	s.logger.WithFields(log.Fields{
		"action":    action,
		"requested": len(ids),
		"affected":  len(saved),
		"actor":     actor.Name,
	}).Info("bulk operation applied")

	return BulkResult{
		Action:    action,
		Requested: len(ids),
		Affected:  len(saved),
		Skipped:   len(ids) - len(saved),
		Message:   bulkMessage(action, len(saved)),
	}, nil
}

func bulkMessage(action Action, n int) string {
	switch action {
	case ActionSoftDelete:
		return fmt.Sprintf("%d orders moved to trash", n)
	case actionRestore:
		return fmt.Sprintf("%d orders restored", n)
	default:
		return fmt.Sprintf("%d orders updated successfully", n)
	}
}
