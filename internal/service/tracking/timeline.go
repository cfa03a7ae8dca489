package tracking

import (
	"strings"
	"time"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

// StepState — состояние шага доставки.
type StepState string

const (
	StepCompleted StepState = "completed"
	StepPending   StepState = "pending"
)

const deliveredDateLayout = "02 Jan 2006"

// Step — шаг на шкале доставки.
type Step struct {
	Title          string
	Description    string
	Date           time.Time
	State          StepState
	TrackingNumber string
}

// Timeline строит расчётную шкалу доставки от даты заказа.
// Шаг завершён, если его дата не позже now; доставка завершена только при заданной фактической дате.
func Timeline(order domain.Order, now time.Time) []Step {
	placed := order.OrderDate
	shipped := placed.AddDate(0, 0, 2)
	outForDelivery := placed.AddDate(0, 0, 3)
	if order.EstimatedDelivery != nil {
		outForDelivery = *order.EstimatedDelivery
	}

	hasTracking := strings.TrimSpace(order.TrackingNumber) != ""
	shippedDescription := "Your order has been shipped"
	if hasTracking {
		shippedDescription = "Shipped via " + order.ShippingCarrier
	}

	delivered := Step{
		Title:       "Delivered",
		Description: "Expected delivery",
		Date:        outForDelivery,
		State:       StepPending,
	}
	if order.ActualDelivery != nil {
		delivered.Description = "Delivered on " + order.ActualDelivery.Format(deliveredDateLayout)
		delivered.Date = *order.ActualDelivery
		delivered.State = StepCompleted
	}

	return []Step{
		{Title: "Order Placed", Description: "Your order has been received", Date: placed, State: StepCompleted},
		{Title: "Order Confirmed", Description: "Your order has been confirmed", Date: placed.Add(time.Hour), State: stateAt(placed.Add(time.Hour), now)},
		{Title: "Processing", Description: "Your order is being prepared", Date: placed.AddDate(0, 0, 1), State: stateAt(placed.AddDate(0, 0, 1), now)},
		{Title: "Shipped", Description: shippedDescription, Date: shipped, State: stateAt(shipped, now), TrackingNumber: order.TrackingNumber},
		{Title: "Out for Delivery", Description: "Your order is out for delivery", Date: outForDelivery, State: stateAt(outForDelivery, now)},
		delivered,
	}
}

func stateAt(at, now time.Time) StepState {
	if at.After(now) {
		return StepPending
	}
	return StepCompleted
}
