package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

// Action — именованное действие над заказом.
type Action string

const (
	ActionSave            Action = "save"
	ActionMarkProcessing  Action = "mark-processing"
	ActionMarkPaid        Action = "mark-paid"
	ActionMarkShipped     Action = "mark-shipped"
	ActionMarkDelivered   Action = "mark-delivered"
	ActionSetHighPriority Action = "set-high-priority"
	ActionPutOnHold       Action = "put-on-hold"
	ActionSendTracking    Action = "send-tracking"
	ActionGenerateInvoice Action = "generate-invoice"

	// Действия, доступные только в массовых операциях.
	ActionAssignMe       Action = "assign-me"
	ActionSoftDelete     Action = "soft-delete"
	ActionExportSelected Action = "export-selected"
)

// ParseAction нормализует имя действия. Неизвестные имена сохраняются как есть и
// обрабатываются как простое сохранение.
func ParseAction(raw string) Action {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return ActionSave
	}
	return Action(raw)
}

// OrderEdit — полный набор редактируемых полей. Применяется безусловной перезаписью.
type OrderEdit struct {
	// ExpectedVersion, если задан, отклоняет правку устаревшей формы.
	ExpectedVersion *int64

	Status            domain.OrderStatus
	PaymentStatus     domain.PaymentStatus
	Priority          domain.Priority
	AssignedTo        string
	AdminNotes        string
	TrackingNumber    string
	ShippingCarrier   string
	ShippingService   string
	ShippingCost      decimal.Decimal
	Discount          decimal.Decimal
	EstimatedDelivery *time.Time
	ActualDelivery    *time.Time
	InternalReference string
}

// EditFromOrder заполняет форму текущими значениями заказа.
func EditFromOrder(o domain.Order) OrderEdit {
	version := o.Version
	return OrderEdit{
		ExpectedVersion:   &version,
		Status:            o.Status,
		PaymentStatus:     o.PaymentStatus,
		Priority:          o.Priority,
		AssignedTo:        o.AssignedTo,
		AdminNotes:        o.AdminNotes,
		TrackingNumber:    o.TrackingNumber,
		ShippingCarrier:   o.ShippingCarrier,
		ShippingService:   o.ShippingService,
		ShippingCost:      o.ShippingCost,
		Discount:          o.Discount,
		EstimatedDelivery: o.EstimatedDelivery,
		ActualDelivery:    o.ActualDelivery,
		InternalReference: o.InternalReference,
	}
}

func (e OrderEdit) applyTo(o *domain.Order) {
	o.Status = e.Status
	o.PaymentStatus = e.PaymentStatus
	o.Priority = e.Priority
	o.AssignedTo = strings.TrimSpace(e.AssignedTo)
	o.AdminNotes = e.AdminNotes
	o.TrackingNumber = strings.TrimSpace(e.TrackingNumber)
	o.ShippingCarrier = e.ShippingCarrier
	o.ShippingService = e.ShippingService
	o.ShippingCost = domain.RoundMoney(e.ShippingCost)
	o.Discount = domain.RoundMoney(e.Discount)
	o.EstimatedDelivery = cloneTime(e.EstimatedDelivery)
	o.ActualDelivery = cloneTime(e.ActualDelivery)
	o.InternalReference = e.InternalReference
}

// TransitionResult — итог применения правки.
type TransitionResult struct {
	Order   domain.Order
	Message string
	// Notification заполнен, если действие запросило уведомление клиента.
	Notification *domain.NotificationRequest
}

// ApplyTransition применяет правку и действие к неудалённому заказу.
// Сначала перезаписываются поля формы, затем действие принудительно выставляет свои поля.
// Параллельная запись того же заказа возвращает ErrOrderVersionConflict.
func (s *Service) ApplyTransition(ctx context.Context, id int64, edit OrderEdit, action Action, actor domain.Actor) (TransitionResult, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveOperation("apply_transition", time.Since(start)) }()

	before, err := s.loadLive(ctx, id)
	if err != nil {
		return TransitionResult{}, err
	}
	if edit.ExpectedVersion != nil && *edit.ExpectedVersion != before.Version {
		s.metrics.RecordConflict()
		return TransitionResult{}, domain.ErrOrderVersionConflict
	}

	if bulkOnly(action) {
		action = ActionSave
	}

	now := s.clock.Now()
	order := before.Clone()
	edit.applyTo(&order)
	kind := s.applyAction(&order, action, actor, now)

	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return TransitionResult{}, errs[0]
	}

	order.UpdatedAt = now
	saved, err := s.repo.Save(ctx, order)
	if err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id": id,
			"action":   action,
		}).Warn("failed to save order transition")
		return TransitionResult{}, s.classifyWrite(err)
	}

	s.recordHistory(ctx, before, saved, actor)
	s.metrics.RecordTransition(metricAction(action))

	result := TransitionResult{
		Order:   saved,
		Message: transitionMessage(saved, action),
	}
	if kind != "" {
		req := domain.NotificationRequest{
			Kind:           kind,
			OrderID:        saved.ID,
			Email:          saved.Customer.Email,
			TrackingNumber: saved.TrackingNumber,
			RequestedBy:    actor.Name,
			RequestedAt:    now,
		}
		s.requestNotification(ctx, req)
		result.Notification = &req
	}

	s.logger.WithFields(log.Fields{
		"order_id": saved.ID,
		"action":   action,
		"status":   saved.Status,
		"version":  saved.Version,
	}).Info("order updated")

	return result, nil
}

// applyAction принудительно выставляет поля действия и возвращает тип запрошенного уведомления.
// Неизвестное действие ничего не меняет.
func (s *Service) applyAction(o *domain.Order, action Action, actor domain.Actor, now time.Time) domain.NotificationKind {
	switch action {
	case ActionMarkProcessing:
		o.Status = domain.OrderStatusProcessing
	case ActionMarkPaid:
		o.PaymentStatus = domain.PaymentStatusPaid
	case ActionMarkShipped:
		o.Status = domain.OrderStatusShipped
		o.AssignTrackingNumber(s.newTrackingNumber)
	case ActionMarkDelivered:
		o.Status = domain.OrderStatusDelivered
		at := now
		o.ActualDelivery = &at
	case ActionSetHighPriority:
		o.Priority = domain.PriorityHigh
	case ActionPutOnHold:
		o.Status = domain.OrderStatusOnHold
	case ActionAssignMe:
		o.AssignedTo = actor.Name
	case ActionSoftDelete:
		o.MarkDeleted(now)
	case ActionSendTracking:
		return domain.NotificationSendTracking
	case ActionGenerateInvoice:
		return domain.NotificationGenerateInvoice
	}
	return ""
}

func bulkOnly(action Action) bool {
	return action == ActionAssignMe || action == ActionSoftDelete || action == ActionExportSelected
}

func (s *Service) requestNotification(ctx context.Context, req domain.NotificationRequest) {
	s.metrics.RecordNotification(string(req.Kind))
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, req); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id": req.OrderID,
			"kind":     req.Kind,
		}).Warn("failed to request customer notification")
	}
}

func transitionMessage(o domain.Order, action Action) string {
	switch action {
	case ActionMarkProcessing:
		return fmt.Sprintf("Order #%d marked as Processing", o.ID)
	case ActionMarkPaid:
		return fmt.Sprintf("Order #%d marked as Paid", o.ID)
	case ActionMarkShipped:
		return fmt.Sprintf("Order #%d marked as Shipped with tracking: %s", o.ID, o.TrackingNumber)
	case ActionMarkDelivered:
		return fmt.Sprintf("Order #%d marked as Delivered", o.ID)
	case ActionSendTracking:
		return fmt.Sprintf("Tracking email sent for order #%d", o.ID)
	case ActionGenerateInvoice:
		return fmt.Sprintf("Invoice generated for order #%d", o.ID)
	case ActionSetHighPriority:
		return fmt.Sprintf("Order #%d set to High Priority", o.ID)
	case ActionPutOnHold:
		return fmt.Sprintf("Order #%d put on Hold", o.ID)
	default:
		return fmt.Sprintf("Order #%d updated successfully", o.ID)
	}
}

// metricAction сворачивает неизвестные действия в метку "other".
func metricAction(action Action) string {
	switch action {
	case ActionSave, ActionMarkProcessing, ActionMarkPaid, ActionMarkShipped, ActionMarkDelivered,
		ActionSetHighPriority, ActionPutOnHold, ActionSendTracking, ActionGenerateInvoice,
		ActionAssignMe, ActionSoftDelete, ActionExportSelected, actionRestore, actionPurge:
		return string(action)
	default:
		return "other"
	}
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
