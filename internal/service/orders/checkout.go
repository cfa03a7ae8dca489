package orders

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

const defaultCountry = "South Africa"

var (
	taxRate               = decimal.RequireFromString("0.15")
	freeShippingThreshold = decimal.NewFromInt(500)
	flatShippingCost      = decimal.NewFromInt(50)
)

// PlaceOrderItem — позиция корзины при оформлении.
type PlaceOrderItem struct {
	ProductID   int64
	ProductName string
	UnitPrice   decimal.Decimal
	Quantity    int
}

// PlaceOrderRequest — данные оформления заказа.
type PlaceOrderRequest struct {
	Customer      domain.Customer
	Items         []PlaceOrderItem
	Discount      decimal.Decimal
	CustomerNotes string
}

// Totals — расчёт сумм заказа.
type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Shipping decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

// CalculateTotals считает суммы: НДС 15%, доставка бесплатна при подытоге больше 500, иначе 50.
func CalculateTotals(items []PlaceOrderItem, discount decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	shipping := flatShippingCost
	if subtotal.GreaterThan(freeShippingThreshold) {
		shipping = decimal.Zero
	}
	tax := subtotal.Mul(taxRate)

	t := Totals{
		Subtotal: domain.RoundMoney(subtotal),
		Tax:      domain.RoundMoney(tax),
		Shipping: shipping,
		Discount: domain.RoundMoney(discount),
	}
	t.Total = t.Subtotal.Add(t.Tax).Add(t.Shipping).Sub(t.Discount)
	return t
}

// PlaceOrder оформляет новый заказ со статусами Pending и приоритетом Normal.
// Суммы считаются один раз и дальше хранятся как есть.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (domain.Order, error) {
	if err := validatePlaceOrder(req); err != nil {
		return domain.Order{}, err
	}

	customer := req.Customer
	customer.Email = strings.TrimSpace(customer.Email)
	if strings.TrimSpace(customer.Country) == "" {
		customer.Country = defaultCountry
	}

	totals := CalculateTotals(req.Items, req.Discount)
	now := s.clock.Now()

	order := domain.Order{
		Customer:      customer,
		Subtotal:      totals.Subtotal,
		Tax:           totals.Tax,
		ShippingCost:  totals.Shipping,
		Discount:      totals.Discount,
		Total:         totals.Total,
		OrderDate:     now,
		Status:        domain.OrderStatusPending,
		PaymentStatus: domain.PaymentStatusPending,
		Priority:      domain.PriorityNormal,
		CustomerNotes: req.CustomerNotes,
		UpdatedAt:     now,
	}
	for _, item := range req.Items {
		order.Items = append(order.Items, domain.LineItem{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			UnitPrice:   domain.RoundMoney(item.UnitPrice),
			Quantity:    item.Quantity,
		})
	}

	created, err := s.repo.Create(ctx, order)
	if err != nil {
		s.logger.WithError(err).Error("failed to place order")
		return domain.Order{}, fmt.Errorf("place order: %w", domain.StorageFailure(err))
	}

	s.metrics.RecordOrderPlaced()
	s.logger.WithFields(log.Fields{
		"order_id": created.ID,
		"items":    len(created.Items),
		"total":    created.Total.StringFixed(2),
	}).Info("order placed")

	return created, nil
}

func validatePlaceOrder(req PlaceOrderRequest) error {
	if len(req.Items) == 0 {
		return domain.ErrItemsRequired
	}
	if strings.TrimSpace(req.Customer.Email) == "" {
		return domain.ErrCustomerEmailRequired
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return domain.ErrItemQtyInvalid
		}
		if item.UnitPrice.IsNegative() {
			return domain.ErrItemPriceInvalid
		}
	}
	if req.Discount.IsNegative() {
		return domain.ErrAmountNegative
	}
	return nil
}
