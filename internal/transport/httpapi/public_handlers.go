package httpapi

import (
	"net/http"

	"github.com/samber/lo"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/tracking"
)

// PlaceOrder — POST /api/orders: оформление заказа из корзины.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	order, err := h.orders.PlaceOrder(r.Context(), req.toService())
	if err != nil {
		writeServiceError(w, h.requestLogger(r), err)
		return
	}
	writeJSON(w, http.StatusCreated, mapOrder(order))
}

// TrackOrders — GET /api/track?orderId=&email=.
func (h *Handler) TrackOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	found, err := h.tracking.Lookup(r.Context(), tracking.Query{OrderID: q.Get("orderId"), Email: q.Get("email")})
	if err != nil {
		writeServiceError(w, h.requestLogger(r), err)
		return
	}
	writeJSON(w, http.StatusOK, lo.Map(found, func(o domain.Order, _ int) TrackedOrderDTO { return mapTracked(o) }))
}

// OrderTimeline — GET /api/track/{id}/timeline.
func (h *Handler) OrderTimeline(w http.ResponseWriter, r *http.Request) {
	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	order, steps, err := h.tracking.Details(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.requestLogger(r), err)
		return
	}
	writeJSON(w, http.StatusOK, mapTimeline(order, steps))
}

// Subscribe — POST /api/track/{id}/subscribe.
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	var req SubscribeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	message, err := h.tracking.Subscribe(r.Context(), id, req.Email)
	if err != nil {
		writeServiceError(w, h.requestLogger(r), err)
		return
	}
	writeJSON(w, http.StatusAccepted, MessageResponse{Message: message})
}
