package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/orders"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/reporting"
)

const queryDateLayout = "2006-01-02"

// ListOrders — GET /api/admin/orders. Неизвестный статус означает все статусы.
// showDeleted добавляет к списку заказы из корзины, trash показывает только корзину.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	actor, _ := ActorFromContext(r.Context())

	showDeleted := parseBool(q.Get("showDeleted"))
	trashOnly := parseBool(q.Get("trash"))
	if (showDeleted || trashOnly) && !actor.IsAdmin {
		writeError(w, http.StatusForbidden, "forbidden", "admin role is required to view trash")
		return
	}

	status, err := domain.ParseOrderStatus(q.Get("status"))
	if err != nil {
		status = ""
	}
	filter := domain.OrderFilter{
		Status: status,
		Search: strings.TrimSpace(q.Get("search")),
		Sort:   domain.ParseSortOrder(q.Get("sort")),
	}
	switch {
	case trashOnly:
		filter.Scope = domain.ScopeTrash
	case showDeleted:
		filter.Scope = domain.ScopeAll
	}

	list, err := h.orders.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, h.requestLogger(r), err)
		return
	}
	counts, err := h.reporting.ListCounts(r.Context())
	if err != nil {
		writeServiceError(w, h.requestLogger(r), err)
		return
	}

	writeJSON(w, http.StatusOK, ListResponse{
		Orders:      mapOrders(list),
		Counts:      mapCounts(counts),
		Status:      string(filter.Status),
		Sort:        string(filter.Sort),
		Search:      filter.Search,
		ShowDeleted: showDeleted,
		TrashOnly:   trashOnly,
	})
}

// GetOrder — GET /api/admin/orders/{id}. Администратор видит и заказы из корзины.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	actor, _ := ActorFromContext(r.Context())

	details, err := h.orders.Get(r.Context(), id, actor.IsAdmin)
	if err != nil {
		writeServiceError(w, h.requestLogger(r), err)
		return
	}
	writeJSON(w, http.StatusOK, mapDetails(details))
}

// UpdateOrder — PUT /api/admin/orders/{id}: правка формы и необязательное действие.
func (h *Handler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	var req UpdateOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	edit, err := req.toEdit()
	if err != nil {
		writeServiceError(w, h.requestLogger(r), err)
		return
	}
	actor, _ := ActorFromContext(r.Context())

	result, err := h.orders.ApplyTransition(r.Context(), id, edit, orders.ParseAction(req.Action), actor)
	if err != nil {
		writeServiceError(w, h.requestLogger(r), err)
		return
	}
	writeJSON(w, http.StatusOK, TransitionResponse{
		Order:                 mapOrder(result.Order),
		Message:               result.Message,
		NotificationRequested: result.Notification != nil,
	})
}

// DeleteOrder — DELETE /api/admin/orders/{id}: перемещение в корзину.
func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	h.trashOperation(w, r, h.orders.SoftDelete)
}

// RestoreOrder — POST /api/admin/orders/{id}/restore.
func (h *Handler) RestoreOrder(w http.ResponseWriter, r *http.Request) {
	h.trashOperation(w, r, h.orders.Restore)
}

// PurgeOrder — DELETE /api/admin/orders/{id}/permanent.
func (h *Handler) PurgeOrder(w http.ResponseWriter, r *http.Request) {
	h.trashOperation(w, r, h.orders.PermanentlyDelete)
}

type trashFunc func(ctx context.Context, id int64, actor domain.Actor) (orders.TrashResult, error)

func (h *Handler) trashOperation(w http.ResponseWriter, r *http.Request, op trashFunc) {
	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	actor, _ := ActorFromContext(r.Context())

	result, err := op(r.Context(), id, actor)
	if err != nil {
		writeServiceError(w, h.requestLogger(r), err)
		return
	}
	writeJSON(w, http.StatusOK, TrashResponse{OrderID: id, Changed: result.Changed, Message: result.Message})
}

// EmptyTrash — POST /api/admin/trash/empty.
func (h *Handler) EmptyTrash(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())

	result, err := h.orders.EmptyTrash(r.Context(), actor)
	if err != nil {
		writeServiceError(w, h.requestLogger(r), err)
		return
	}

	message := fmt.Sprintf("%d orders permanently deleted", result.Purged)
	if result.Failed > 0 {
		message = fmt.Sprintf("%s, %d could not be deleted", message, result.Failed)
	}
	writeJSON(w, http.StatusOK, EmptyTrashResponse{Purged: result.Purged, Failed: result.Failed, Message: message})
}

// BulkAction — POST /api/admin/orders/bulk. Массовое удаление доступно только администратору.
func (h *Handler) BulkAction(w http.ResponseWriter, r *http.Request) {
	var req BulkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	action := orders.ParseAction(req.Action)
	actor, _ := ActorFromContext(r.Context())
	if action == orders.ActionSoftDelete && !actor.IsAdmin {
		writeError(w, http.StatusForbidden, "forbidden", "admin role is required to delete orders")
		return
	}

	result, err := h.orders.BulkAction(r.Context(), req.IDs, action, actor)
	h.writeBulk(w, r, result, err)
}

// BulkDelete — POST /api/admin/orders/bulk/delete.
func (h *Handler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	h.bulkLifecycle(w, r, h.orders.BulkDelete)
}

// BulkRestore — POST /api/admin/orders/bulk/restore.
func (h *Handler) BulkRestore(w http.ResponseWriter, r *http.Request) {
	h.bulkLifecycle(w, r, h.orders.BulkRestore)
}

// BulkPurge — POST /api/admin/orders/bulk/purge.
func (h *Handler) BulkPurge(w http.ResponseWriter, r *http.Request) {
	h.bulkLifecycle(w, r, h.orders.BulkPermanentDelete)
}

type bulkFunc func(ctx context.Context, ids []int64, actor domain.Actor) (orders.BulkResult, error)

func (h *Handler) bulkLifecycle(w http.ResponseWriter, r *http.Request, op bulkFunc) {
	var req BulkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	actor, _ := ActorFromContext(r.Context())

	result, err := op(r.Context(), req.IDs, actor)
	h.writeBulk(w, r, result, err)
}

func (h *Handler) writeBulk(w http.ResponseWriter, r *http.Request, result orders.BulkResult, err error) {
	if err != nil {
		writeServiceError(w, h.requestLogger(r), err)
		return
	}
	writeJSON(w, http.StatusOK, mapBulk(result))
}

// ExportOrders — GET /api/admin/orders/export. Отдаёт CSV как вложение.
// start и end задаются датами YYYY-MM-DD, end включает весь день.
func (h *Handler) ExportOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	actor, _ := ActorFromContext(r.Context())

	filter := reporting.ExportFilter{IncludeDeleted: parseBool(q.Get("includeDeleted"))}
	if filter.IncludeDeleted && !actor.IsAdmin {
		writeError(w, http.StatusForbidden, "forbidden", "admin role is required to export deleted orders")
		return
	}

	var err error
	if filter.IDs, err = parseIDList(q.Get("ids")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_ids", "ids must be a comma-separated list of order ids")
		return
	}
	if raw := strings.TrimSpace(q.Get("start")); raw != "" {
		start, err := time.ParseInLocation(queryDateLayout, raw, h.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start", "start must be a date in YYYY-MM-DD format")
			return
		}
		filter.From = &start
	}
	if raw := strings.TrimSpace(q.Get("end")); raw != "" {
		day, err := time.ParseInLocation(queryDateLayout, raw, h.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_end", "end must be a date in YYYY-MM-DD format")
			return
		}
		end := day.AddDate(0, 0, 1).Add(-time.Nanosecond)
		filter.To = &end
	}

	file, err := h.reporting.Export(r.Context(), filter)
	if err != nil {
		writeServiceError(w, h.requestLogger(r), err)
		return
	}

	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(file.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(file.Data)
}

// Dashboard — GET /api/admin/dashboard.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := h.reporting.Dashboard(r.Context())
	if err != nil {
		writeServiceError(w, h.requestLogger(r), err)
		return
	}
	writeJSON(w, http.StatusOK, mapDashboard(dashboard))
}

// Statistics — GET /api/admin/statistics?period=. Неизвестный период означает последние 7 дней.
func (h *Handler) Statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.reporting.PeriodStatistics(r.Context(), reporting.ParsePeriod(r.URL.Query().Get("period")))
	if err != nil {
		writeServiceError(w, h.requestLogger(r), err)
		return
	}
	writeJSON(w, http.StatusOK, mapStatistics(stats))
}
