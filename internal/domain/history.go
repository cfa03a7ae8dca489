package domain

import "time"

// HistoryField — изменённый атрибут заказа.
type HistoryField string

const (
	HistoryStatus         HistoryField = "status"
	HistoryPaymentStatus  HistoryField = "payment_status"
	HistoryPriority       HistoryField = "priority"
	HistoryTrackingNumber HistoryField = "tracking_number"
	HistoryAssignee       HistoryField = "assigned_to"
	HistoryLifecycle      HistoryField = "lifecycle"
)

// HistoryEntry описывает одно изменение в жизненном цикле заказа.
type HistoryEntry struct {
	OrderID  int64
	Field    HistoryField
	From     string
	To       string
	Actor    string
	Occurred time.Time
}

// DiffHistory сравнивает два состояния заказа и возвращает записи для журнала.
func DiffHistory(before, after Order, actor string, at time.Time) []HistoryEntry {
	var entries []HistoryEntry
	add := func(field HistoryField, from, to string) {
		if from == to {
			return
		}
		entries = append(entries, HistoryEntry{
			OrderID:  after.ID,
			Field:    field,
			From:     from,
			To:       to,
			Actor:    actor,
			Occurred: at,
		})
	}

	add(HistoryStatus, string(before.Status), string(after.Status))
	add(HistoryPaymentStatus, string(before.PaymentStatus), string(after.PaymentStatus))
	add(HistoryPriority, string(before.Priority), string(after.Priority))
	add(HistoryTrackingNumber, before.TrackingNumber, after.TrackingNumber)
	add(HistoryAssignee, before.AssignedTo, after.AssignedTo)
	add(HistoryLifecycle, lifecycleLabel(before), lifecycleLabel(after))

	return entries
}

func lifecycleLabel(o Order) string {
	if o.IsDeleted {
		return "deleted"
	}
	return "active"
}
