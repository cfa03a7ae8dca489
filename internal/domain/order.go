package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus описывает стадию исполнения заказа.
type OrderStatus string

const (
	// OrderStatusPending — заказ оформлен, обработка не начиналась.
	OrderStatusPending OrderStatus = "Pending"
	// OrderStatusProcessing — заказ собирается.
	OrderStatusProcessing OrderStatus = "Processing"
	// OrderStatusShipped — заказ передан перевозчику.
	OrderStatusShipped OrderStatus = "Shipped"
	// OrderStatusDelivered — заказ вручён клиенту.
	OrderStatusDelivered OrderStatus = "Delivered"
	// OrderStatusCancelled — заказ отменён.
	OrderStatusCancelled OrderStatus = "Cancelled"
	// OrderStatusRefunded — средства по заказу возвращены.
	OrderStatusRefunded OrderStatus = "Refunded"
	// OrderStatusOnHold — обработка приостановлена менеджером.
	OrderStatusOnHold OrderStatus = "On Hold"
)

// OrderStatuses перечисляет статусы в порядке отображения.
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
	OrderStatusRefunded,
	OrderStatusOnHold,
}

// PaymentStatus описывает состояние оплаты. Значение выставляется внешним процессом.
type PaymentStatus string

const (
	PaymentStatusPending           PaymentStatus = "Pending"
	PaymentStatusPaid              PaymentStatus = "Paid"
	PaymentStatusFailed            PaymentStatus = "Failed"
	PaymentStatusRefunded          PaymentStatus = "Refunded"
	PaymentStatusPartiallyRefunded PaymentStatus = "Partially Refunded"
)

// PaymentStatuses перечисляет допустимые статусы оплаты.
var PaymentStatuses = []PaymentStatus{
	PaymentStatusPending,
	PaymentStatusPaid,
	PaymentStatusFailed,
	PaymentStatusRefunded,
	PaymentStatusPartiallyRefunded,
}

// Priority задаёт срочность обработки заказа.
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityNormal Priority = "Normal"
	PriorityHigh   Priority = "High"
	PriorityUrgent Priority = "Urgent"
)

// Priorities перечисляет допустимые приоритеты.
var Priorities = []Priority{PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent}

// ParseOrderStatus разбирает статус без учёта регистра; "on-hold" и "on_hold" тоже принимаются.
// Пустая строка означает "не задан".
func ParseOrderStatus(raw string) (OrderStatus, error) {
	return parseLabel(raw, OrderStatuses, ErrInvalidOrderStatus)
}

// ParsePaymentStatus разбирает статус оплаты.
func ParsePaymentStatus(raw string) (PaymentStatus, error) {
	return parseLabel(raw, PaymentStatuses, ErrInvalidPaymentStatus)
}

// ParsePriority разбирает приоритет.
func ParsePriority(raw string) (Priority, error) {
	return parseLabel(raw, Priorities, ErrInvalidPriority)
}

func parseLabel[T ~string](raw string, known []T, invalid error) (T, error) {
	normalized := normalizeLabel(raw)
	if normalized == "" {
		return "", nil
	}
	for _, candidate := range known {
		if normalizeLabel(string(candidate)) == normalized {
			return candidate, nil
		}
	}
	return "", invalid
}

func normalizeLabel(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	return strings.NewReplacer("-", " ", "_", " ").Replace(raw)
}

// Customer — снимок данных покупателя на момент оформления.
// С учётной записью не связан: заказ остаётся читаемым после её изменения или удаления.
type Customer struct {
	FirstName  string
	LastName   string
	Email      string
	Phone      string
	Address    string
	City       string
	PostalCode string
	Country    string
}

// FullName склеивает имя и фамилию.
func (c Customer) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// LineItem — позиция заказа со снимком названия и цены товара.
type LineItem struct {
	ID          int64
	OrderID     int64
	ProductID   int64
	ProductName string
	UnitPrice   decimal.Decimal
	Quantity    int
}

// LineTotal возвращает стоимость позиции; отдельно не хранится.
func (i LineItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order агрегирует клиентские, финансовые и складские данные заказа.
type Order struct {
	ID       int64
	Customer Customer

	Subtotal     decimal.Decimal
	Tax          decimal.Decimal
	ShippingCost decimal.Decimal
	Discount     decimal.Decimal
	Total        decimal.Decimal

	OrderDate     time.Time
	Status        OrderStatus
	PaymentStatus PaymentStatus
	Priority      Priority

	TrackingNumber    string
	ShippingCarrier   string
	ShippingService   string
	EstimatedDelivery *time.Time
	ActualDelivery    *time.Time
	AssignedTo        string
	AdminNotes        string
	InternalReference string
	CustomerNotes     string

	// IsDeleted и DeletedAt меняются только через MarkDeleted/MarkRestored.
	IsDeleted bool
	DeletedAt *time.Time

	Items     []LineItem
	Version   int64
	UpdatedAt time.Time
}

// MarkDeleted переводит заказ в корзину. Возвращает false, если он уже там.
func (o *Order) MarkDeleted(now time.Time) bool {
	if o.IsDeleted {
		return false
	}
	at := now
	o.IsDeleted = true
	o.DeletedAt = &at
	return true
}

// MarkRestored возвращает заказ из корзины. Возвращает false, если заказ не удалён.
func (o *Order) MarkRestored() bool {
	if !o.IsDeleted {
		return false
	}
	o.IsDeleted = false
	o.DeletedAt = nil
	return true
}

// AssignTrackingNumber выставляет трек-номер только если он ещё пуст.
func (o *Order) AssignTrackingNumber(generate func() string) bool {
	if strings.TrimSpace(o.TrackingNumber) != "" {
		return false
	}
	o.TrackingNumber = generate()
	return true
}

// ItemsSubtotal суммирует стоимость позиций.
func (o *Order) ItemsSubtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, item := range o.Items {
		sum = sum.Add(item.LineTotal())
	}
	return sum
}

// IsRevenue сообщает, учитывается ли заказ в выручке.
func (o *Order) IsRevenue() bool {
	return !o.IsDeleted && o.PaymentStatus == PaymentStatusPaid
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.IsDeleted != (o.DeletedAt != nil) {
		errs = append(errs, ErrLifecycleInconsistent)
	}
	for _, item := range o.Items {
		if item.Quantity <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.UnitPrice.IsNegative() {
			errs = append(errs, ErrItemPriceInvalid)
		}
	}
	for _, amount := range []decimal.Decimal{o.Subtotal, o.Tax, o.ShippingCost, o.Discount} {
		if amount.IsNegative() {
			errs = append(errs, ErrAmountNegative)
			break
		}
	}

	return errs
}

// Clone возвращает глубокую копию: позиции и указатели на время не разделяются.
func (o Order) Clone() Order {
	clone := o
	if o.Items != nil {
		clone.Items = make([]LineItem, len(o.Items))
		copy(clone.Items, o.Items)
	}
	clone.EstimatedDelivery = cloneTime(o.EstimatedDelivery)
	clone.ActualDelivery = cloneTime(o.ActualDelivery)
	clone.DeletedAt = cloneTime(o.DeletedAt)
	return clone
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// RoundMoney приводит сумму к двум знакам после запятой.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
