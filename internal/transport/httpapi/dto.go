package httpapi

import (
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/orders"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/reporting"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/tracking"
)

const displayDateLayout = "02 Jan 2006"

// CustomerDTO — снимок покупателя.
type CustomerDTO struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Address    string `json:"address,omitempty"`
	City       string `json:"city,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

// LineItemDTO — позиция заказа.
type LineItemDTO struct {
	ID          int64  `json:"id"`
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	UnitPrice   string `json:"unit_price"`
	Quantity    int    `json:"quantity"`
	LineTotal   string `json:"line_total"`
}

// OrderResponse — заказ в ответах API. Деньги передаются строками с двумя знаками.
type OrderResponse struct {
	ID                int64         `json:"id"`
	Customer          CustomerDTO   `json:"customer"`
	Subtotal          string        `json:"subtotal"`
	Tax               string        `json:"tax"`
	ShippingCost      string        `json:"shipping_cost"`
	Discount          string        `json:"discount"`
	Total             string        `json:"total"`
	OrderDate         time.Time     `json:"order_date"`
	Status            string        `json:"status"`
	PaymentStatus     string        `json:"payment_status"`
	Priority          string        `json:"priority"`
	TrackingNumber    string        `json:"tracking_number,omitempty"`
	ShippingCarrier   string        `json:"shipping_carrier,omitempty"`
	ShippingService   string        `json:"shipping_service,omitempty"`
	EstimatedDelivery *time.Time    `json:"estimated_delivery,omitempty"`
	ActualDelivery    *time.Time    `json:"actual_delivery,omitempty"`
	AssignedTo        string        `json:"assigned_to,omitempty"`
	AdminNotes        string        `json:"admin_notes,omitempty"`
	InternalReference string        `json:"internal_reference,omitempty"`
	CustomerNotes     string        `json:"customer_notes,omitempty"`
	IsDeleted         bool          `json:"is_deleted"`
	DeletedAt         *time.Time    `json:"deleted_at,omitempty"`
	Items             []LineItemDTO `json:"items"`
	Version           int64         `json:"version"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func mapOrder(o domain.Order) OrderResponse {
	c := o.Customer
	return OrderResponse{
		ID: o.ID,
		Customer: CustomerDTO{
			FirstName:  c.FirstName,
			LastName:   c.LastName,
			Email:      c.Email,
			Phone:      c.Phone,
			Address:    c.Address,
			City:       c.City,
			PostalCode: c.PostalCode,
			Country:    c.Country,
		},
		Subtotal:          money(o.Subtotal),
		Tax:               money(o.Tax),
		ShippingCost:      money(o.ShippingCost),
		Discount:          money(o.Discount),
		Total:             money(o.Total),
		OrderDate:         o.OrderDate,
		Status:            string(o.Status),
		PaymentStatus:     string(o.PaymentStatus),
		Priority:          string(o.Priority),
		TrackingNumber:    o.TrackingNumber,
		ShippingCarrier:   o.ShippingCarrier,
		ShippingService:   o.ShippingService,
		EstimatedDelivery: o.EstimatedDelivery,
		ActualDelivery:    o.ActualDelivery,
		AssignedTo:        o.AssignedTo,
		AdminNotes:        o.AdminNotes,
		InternalReference: o.InternalReference,
		CustomerNotes:     o.CustomerNotes,
		IsDeleted:         o.IsDeleted,
		DeletedAt:         o.DeletedAt,
		Items: lo.Map(o.Items, func(item domain.LineItem, _ int) LineItemDTO {
			return LineItemDTO{
				ID:          item.ID,
				ProductID:   item.ProductID,
				ProductName: item.ProductName,
				UnitPrice:   money(item.UnitPrice),
				Quantity:    item.Quantity,
				LineTotal:   money(item.LineTotal()),
			}
		}),
		Version:   o.Version,
		UpdatedAt: o.UpdatedAt,
	}
}

func mapOrders(list []domain.Order) []OrderResponse {
	return lo.Map(list, func(o domain.Order, _ int) OrderResponse { return mapOrder(o) })
}

// HistoryEntryDTO — запись журнала изменений.
type HistoryEntryDTO struct {
	Field    string    `json:"field"`
	From     string    `json:"from"`
	To       string    `json:"to"`
	Actor    string    `json:"actor"`
	Occurred time.Time `json:"occurred"`
}

// OrderDetailsResponse — заказ с журналом.
type OrderDetailsResponse struct {
	Order   OrderResponse     `json:"order"`
	History []HistoryEntryDTO `json:"history"`
}

func mapDetails(d orders.OrderDetails) OrderDetailsResponse {
	return OrderDetailsResponse{
		Order: mapOrder(d.Order),
		History: lo.Map(d.History, func(e domain.HistoryEntry, _ int) HistoryEntryDTO {
			return HistoryEntryDTO{Field: string(e.Field), From: e.From, To: e.To, Actor: e.Actor, Occurred: e.Occurred}
		}),
	}
}

// CountsDTO — агрегаты страницы списка.
type CountsDTO struct {
	Total      int    `json:"total"`
	Pending    int    `json:"pending"`
	Processing int    `json:"processing"`
	Shipped    int    `json:"shipped"`
	Delivered  int    `json:"delivered"`
	Today      int    `json:"today"`
	Revenue    string `json:"revenue"`
	Trash      int    `json:"trash"`
}

// ListResponse — ответ на запрос списка заказов.
type ListResponse struct {
	Orders      []OrderResponse `json:"orders"`
	Counts      CountsDTO       `json:"counts"`
	Status      string          `json:"status,omitempty"`
	Sort        string          `json:"sort"`
	Search      string          `json:"search,omitempty"`
	ShowDeleted bool            `json:"show_deleted"`
	TrashOnly   bool            `json:"trash_only"`
}

func mapCounts(c reporting.ListCounts) CountsDTO {
	return CountsDTO{
		Total:      c.Total,
		Pending:    c.Pending,
		Processing: c.Processing,
		Shipped:    c.Shipped,
		Delivered:  c.Delivered,
		Today:      c.Today,
		Revenue:    money(c.Revenue),
		Trash:      c.Trash,
	}
}

// UpdateOrderRequest — форма редактирования заказа. Все поля перезаписываются.
type UpdateOrderRequest struct {
	Version           *int64          `json:"version"`
	Action            string          `json:"action"`
	Status            string          `json:"status"`
	PaymentStatus     string          `json:"payment_status"`
	Priority          string          `json:"priority"`
	AssignedTo        string          `json:"assigned_to"`
	AdminNotes        string          `json:"admin_notes"`
	TrackingNumber    string          `json:"tracking_number"`
	ShippingCarrier   string          `json:"shipping_carrier"`
	ShippingService   string          `json:"shipping_service"`
	ShippingCost      decimal.Decimal `json:"shipping_cost"`
	Discount          decimal.Decimal `json:"discount"`
	EstimatedDelivery *time.Time      `json:"estimated_delivery"`
	ActualDelivery    *time.Time      `json:"actual_delivery"`
	InternalReference string          `json:"internal_reference"`
}

// UpdateFormFromOrder собирает полную форму правки из ответа API.
// PUT перезаписывает все редактируемые поля заказа.
func UpdateFormFromOrder(o OrderResponse, action string) (UpdateOrderRequest, error) {
	shipping, err := decimal.NewFromString(o.ShippingCost)
	if err != nil {
		return UpdateOrderRequest{}, fmt.Errorf("shipping_cost %q: %w", o.ShippingCost, err)
	}
	discount, err := decimal.NewFromString(o.Discount)
	if err != nil {
		return UpdateOrderRequest{}, fmt.Errorf("discount %q: %w", o.Discount, err)
	}

	version := o.Version
	return UpdateOrderRequest{
		Version:           &version,
		Action:            action,
		Status:            o.Status,
		PaymentStatus:     o.PaymentStatus,
		Priority:          o.Priority,
		AssignedTo:        o.AssignedTo,
		AdminNotes:        o.AdminNotes,
		TrackingNumber:    o.TrackingNumber,
		ShippingCarrier:   o.ShippingCarrier,
		ShippingService:   o.ShippingService,
		ShippingCost:      shipping,
		Discount:          discount,
		EstimatedDelivery: o.EstimatedDelivery,
		ActualDelivery:    o.ActualDelivery,
		InternalReference: o.InternalReference,
	}, nil
}

func (req UpdateOrderRequest) toEdit() (orders.OrderEdit, error) {
	status, err := domain.ParseOrderStatus(req.Status)
	if err != nil {
		return orders.OrderEdit{}, err
	}
	payment, err := domain.ParsePaymentStatus(req.PaymentStatus)
	if err != nil {
		return orders.OrderEdit{}, err
	}
	priority, err := domain.ParsePriority(req.Priority)
	if err != nil {
		return orders.OrderEdit{}, err
	}

	return orders.OrderEdit{
		ExpectedVersion:   req.Version,
		Status:            status,
		PaymentStatus:     payment,
		Priority:          priority,
		AssignedTo:        req.AssignedTo,
		AdminNotes:        req.AdminNotes,
		TrackingNumber:    req.TrackingNumber,
		ShippingCarrier:   req.ShippingCarrier,
		ShippingService:   req.ShippingService,
		ShippingCost:      req.ShippingCost,
		Discount:          req.Discount,
		EstimatedDelivery: req.EstimatedDelivery,
		ActualDelivery:    req.ActualDelivery,
		InternalReference: req.InternalReference,
	}, nil
}

// TransitionResponse — итог правки заказа.
type TransitionResponse struct {
	Order                 OrderResponse `json:"order"`
	Message               string        `json:"message"`
	NotificationRequested bool          `json:"notification_requested"`
}

// TrashResponse — итог операции с корзиной.
type TrashResponse struct {
	OrderID int64  `json:"order_id"`
	Changed bool   `json:"changed"`
	Message string `json:"message"`
}

// EmptyTrashResponse — итог очистки корзины.
type EmptyTrashResponse struct {
	Purged  int    `json:"purged"`
	Failed  int    `json:"failed"`
	Message string `json:"message"`
}

// BulkRequest — выбранные заказы и действие.
type BulkRequest struct {
	IDs    []int64 `json:"ids"`
	Action string  `json:"action,omitempty"`
}

// BulkResponse — итог массовой операции.
type BulkResponse struct {
	Action    string  `json:"action"`
	Requested int     `json:"requested"`
	Affected  int     `json:"affected"`
	Skipped   int     `json:"skipped"`
	ExportIDs []int64 `json:"export_ids,omitempty"`
	Message   string  `json:"message"`
}

func mapBulk(r orders.BulkResult) BulkResponse {
	return BulkResponse{
		Action:    string(r.Action),
		Requested: r.Requested,
		Affected:  r.Affected,
		Skipped:   r.Skipped,
		ExportIDs: r.ExportIDs,
		Message:   r.Message,
	}
}

// StatusCountDTO — число заказов в статусе.
type StatusCountDTO struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// ProductSalesDTO — продажи товара.
type ProductSalesDTO struct {
	ProductName  string `json:"product_name"`
	QuantitySold int    `json:"quantity_sold"`
	Revenue      string `json:"revenue"`
}

// DashboardResponse — сводка для главной страницы.
type DashboardResponse struct {
	MonthlyOrders      int               `json:"monthly_orders"`
	MonthlyRevenue     string            `json:"monthly_revenue"`
	MonthlyAverage     string            `json:"monthly_average"`
	YearlyOrders       int               `json:"yearly_orders"`
	YearlyRevenue      string            `json:"yearly_revenue"`
	StatusDistribution []StatusCountDTO  `json:"status_distribution"`
	TopProducts        []ProductSalesDTO `json:"top_products"`
	RecentOrders       []OrderResponse   `json:"recent_orders"`
}

func mapStatusCounts(counts []reporting.StatusCount) []StatusCountDTO {
	return lo.Map(counts, func(c reporting.StatusCount, _ int) StatusCountDTO {
		return StatusCountDTO{Status: c.Status, Count: c.Count}
	})
}

func mapDashboard(d reporting.Dashboard) DashboardResponse {
	return DashboardResponse{
		MonthlyOrders:      d.MonthlyOrders,
		MonthlyRevenue:     money(d.MonthlyRevenue),
		MonthlyAverage:     money(d.MonthlyAverage),
		YearlyOrders:       d.YearlyOrders,
		YearlyRevenue:      money(d.YearlyRevenue),
		StatusDistribution: mapStatusCounts(d.StatusDistribution),
		TopProducts: lo.Map(d.TopProducts, func(p reporting.ProductSales, _ int) ProductSalesDTO {
			return ProductSalesDTO{ProductName: p.ProductName, QuantitySold: p.QuantitySold, Revenue: money(p.Revenue)}
		}),
		RecentOrders: mapOrders(d.RecentOrders),
	}
}

// StatisticsResponse — статистика за окно.
type StatisticsResponse struct {
	Period            string           `json:"period"`
	From              time.Time        `json:"from"`
	To                time.Time        `json:"to"`
	TotalOrders       int              `json:"total_orders"`
	TotalRevenue      string           `json:"total_revenue"`
	PendingOrders     int              `json:"pending_orders"`
	ProcessingOrders  int              `json:"processing_orders"`
	ShippedOrders     int              `json:"shipped_orders"`
	DeliveredOrders   int              `json:"delivered_orders"`
	ByStatus          []StatusCountDTO `json:"by_status"`
	AverageOrderValue string           `json:"average_order_value"`
}

func mapStatistics(s reporting.PeriodStats) StatisticsResponse {
	return StatisticsResponse{
		Period:            string(s.Period),
		From:              s.From,
		To:                s.To,
		TotalOrders:       s.TotalOrders,
		TotalRevenue:      money(s.TotalRevenue),
		PendingOrders:     s.PendingOrders,
		ProcessingOrders:  s.ProcessingOrders,
		ShippedOrders:     s.ShippedOrders,
		DeliveredOrders:   s.DeliveredOrders,
		ByStatus:          mapStatusCounts(s.ByStatus),
		AverageOrderValue: money(s.AverageOrderValue),
	}
}

// PlaceOrderItemDTO — позиция корзины при оформлении.
type PlaceOrderItemDTO struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
}

// PlaceOrderRequest — тело запроса оформления заказа.
type PlaceOrderRequest struct {
	Customer      CustomerDTO         `json:"customer"`
	Items         []PlaceOrderItemDTO `json:"items"`
	Discount      decimal.Decimal     `json:"discount"`
	CustomerNotes string              `json:"customer_notes"`
}

func (req PlaceOrderRequest) toService() orders.PlaceOrderRequest {
	c := req.Customer
	return orders.PlaceOrderRequest{
		Customer: domain.Customer{
			FirstName:  c.FirstName,
			LastName:   c.LastName,
			Email:      c.Email,
			Phone:      c.Phone,
			Address:    c.Address,
			City:       c.City,
			PostalCode: c.PostalCode,
			Country:    c.Country,
		},
		Items: lo.Map(req.Items, func(item PlaceOrderItemDTO, _ int) orders.PlaceOrderItem {
			return orders.PlaceOrderItem{
				ProductID:   item.ProductID,
				ProductName: item.ProductName,
				UnitPrice:   item.UnitPrice,
				Quantity:    item.Quantity,
			}
		}),
		Discount:      req.Discount,
		CustomerNotes: req.CustomerNotes,
	}
}

// TrackedOrderDTO — заказ на странице отслеживания, без внутренних полей.
type TrackedOrderDTO struct {
	ID                int64      `json:"id"`
	OrderDate         time.Time  `json:"order_date"`
	Status            string     `json:"status"`
	Total             string     `json:"total"`
	TrackingNumber    string     `json:"tracking_number,omitempty"`
	ShippingCarrier   string     `json:"shipping_carrier,omitempty"`
	EstimatedDelivery *time.Time `json:"estimated_delivery,omitempty"`
	ItemCount         int        `json:"item_count"`
}

func mapTracked(o domain.Order) TrackedOrderDTO {
	return TrackedOrderDTO{
		ID:                o.ID,
		OrderDate:         o.OrderDate,
		Status:            string(o.Status),
		Total:             money(o.Total),
		TrackingNumber:    o.TrackingNumber,
		ShippingCarrier:   o.ShippingCarrier,
		EstimatedDelivery: o.EstimatedDelivery,
		ItemCount:         lo.SumBy(o.Items, func(item domain.LineItem) int { return item.Quantity }),
	}
}

// TimelineStepDTO — шаг доставки.
type TimelineStepDTO struct {
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Date           time.Time `json:"date"`
	Status         string    `json:"status"`
	TrackingNumber string    `json:"tracking_number,omitempty"`
}

// TimelineResponse — шкала доставки заказа.
type TimelineResponse struct {
	Success           bool              `json:"success"`
	Timeline          []TimelineStepDTO `json:"timeline"`
	TrackingNumber    string            `json:"tracking_number,omitempty"`
	ShippingCarrier   string            `json:"shipping_carrier,omitempty"`
	EstimatedDelivery string            `json:"estimated_delivery,omitempty"`
}

func mapTimeline(o domain.Order, steps []tracking.Step) TimelineResponse {
	resp := TimelineResponse{
		Success:         true,
		TrackingNumber:  o.TrackingNumber,
		ShippingCarrier: o.ShippingCarrier,
		Timeline: lo.Map(steps, func(s tracking.Step, _ int) TimelineStepDTO {
			return TimelineStepDTO{
				Title:          s.Title,
				Description:    s.Description,
				Date:           s.Date,
				Status:         string(s.State),
				TrackingNumber: s.TrackingNumber,
			}
		}),
	}
	if o.EstimatedDelivery != nil {
		resp.EstimatedDelivery = o.EstimatedDelivery.Format(displayDateLayout)
	}
	return resp
}

// SubscribeRequest — подписка на обновления заказа.
type SubscribeRequest struct {
	Email string `json:"email"`
}

// MessageResponse — ответ с сообщением для пользователя.
type MessageResponse struct {
	Message string `json:"message"`
}
