package reporting

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

const (
	dashboardTopProducts  = 10
	dashboardRecentOrders = 10
	unknownStatus         = "Unknown"
)

// Period — именованное окно статистики.
type Period string

const (
	PeriodToday     Period = "today"
	PeriodYesterday Period = "yesterday"
	PeriodThisWeek  Period = "this-week"
	PeriodThisMonth Period = "this-month"
	PeriodThisYear  Period = "this-year"
	// PeriodLast7Days — окно по умолчанию для неизвестных названий.
	PeriodLast7Days Period = "last-7-days"
)

// ParsePeriod возвращает окно по названию; неизвестное название означает последние 7 дней.
func ParsePeriod(raw string) Period {
	switch p := Period(strings.ToLower(strings.TrimSpace(raw))); p {
	case PeriodToday, PeriodYesterday, PeriodThisWeek, PeriodThisMonth, PeriodThisYear:
		return p
	default:
		return PeriodLast7Days
	}
}

// Window возвращает включительные границы окна относительно now.
// Неделя начинается в воскресенье. Вчерашнее окно включает полночь сегодняшнего дня.
func Window(period Period, now time.Time) (from, to time.Time) {
	today := startOfDay(now)
	to = now

	switch period {
	case PeriodToday:
		from = today
	case PeriodYesterday:
		from = today.AddDate(0, 0, -1)
		to = today
	case PeriodThisWeek:
		from = today.AddDate(0, 0, -int(today.Weekday()))
	case PeriodThisMonth:
		from = time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
	case PeriodThisYear:
		from = time.Date(today.Year(), time.January, 1, 0, 0, 0, 0, today.Location())
	default:
		from = today.AddDate(0, 0, -7)
	}
	return from, to
}

// StatusCount — число заказов в статусе.
type StatusCount struct {
	Status string
	Count  int
}

// ProductSales — продажи товара по позициям заказов.
type ProductSales struct {
	ProductName  string
	QuantitySold int
	Revenue      decimal.Decimal
}

// Dashboard — сводка для главной страницы админки.
type Dashboard struct {
	MonthlyOrders      int
	MonthlyRevenue     decimal.Decimal
	MonthlyAverage     decimal.Decimal
	YearlyOrders       int
	YearlyRevenue      decimal.Decimal
	StatusDistribution []StatusCount
	TopProducts        []ProductSales
	RecentOrders       []domain.Order
}

// PeriodStats — статистика за окно.
type PeriodStats struct {
	Period            Period
	From              time.Time
	To                time.Time
	TotalOrders       int
	TotalRevenue      decimal.Decimal
	PendingOrders     int
	ProcessingOrders  int
	ShippedOrders     int
	DeliveredOrders   int
	ByStatus          []StatusCount
	AverageOrderValue decimal.Decimal
}

// ListCounts — агрегаты для списка заказов.
type ListCounts struct {
	Total      int
	Pending    int
	Processing int
	Shipped    int
	Delivered  int
	Today      int
	Revenue    decimal.Decimal
	Trash      int
}

// Dashboard считает сводку по неудалённым заказам.
func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveOperation("dashboard", time.Since(start)) }()

	now := s.now()
	monthFrom, _ := Window(PeriodThisMonth, now)
	yearFrom, _ := Window(PeriodThisYear, now)

	live, err := s.list(ctx, domain.OrderFilter{Scope: domain.ScopeLive, Sort: domain.SortNewest})
	if err != nil {
		return Dashboard{}, err
	}

	monthly := lo.Filter(live, func(o domain.Order, _ int) bool { return !o.OrderDate.Before(monthFrom) })
	yearly := lo.Filter(live, func(o domain.Order, _ int) bool { return !o.OrderDate.Before(yearFrom) })

	recent := live
	if len(recent) > dashboardRecentOrders {
		recent = recent[:dashboardRecentOrders]
	}

	return Dashboard{
		MonthlyOrders:      len(monthly),
		MonthlyRevenue:     revenue(monthly),
		MonthlyAverage:     averageTotal(monthly),
		YearlyOrders:       len(yearly),
		YearlyRevenue:      revenue(yearly),
		StatusDistribution: statusDistribution(live),
		TopProducts:        topProducts(live, dashboardTopProducts),
		RecentOrders:       recent,
	}, nil
}

// PeriodStatistics считает статистику по неудалённым заказам, попавшим в окно.
func (s *Service) PeriodStatistics(ctx context.Context, period Period) (PeriodStats, error) {
	from, to := Window(period, s.now())

	orders, err := s.list(ctx, domain.OrderFilter{Scope: domain.ScopeLive, From: &from, To: &to})
	if err != nil {
		return PeriodStats{}, err
	}

	countStatus := func(status domain.OrderStatus) int {
		return lo.CountBy(orders, func(o domain.Order) bool { return o.Status == status })
	}

	return PeriodStats{
		Period:            period,
		From:              from,
		To:                to,
		TotalOrders:       len(orders),
		TotalRevenue:      revenue(orders),
		PendingOrders:     countStatus(domain.OrderStatusPending),
		ProcessingOrders:  countStatus(domain.OrderStatusProcessing),
		ShippedOrders:     countStatus(domain.OrderStatusShipped),
		DeliveredOrders:   countStatus(domain.OrderStatusDelivered),
		ByStatus:          statusDistribution(orders),
		AverageOrderValue: averageTotal(orders),
	}, nil
}

// ListCounts считает агрегаты для страницы списка. Размер корзины также выставляется в метрику.
func (s *Service) ListCounts(ctx context.Context) (ListCounts, error) {
	all, err := s.list(ctx, domain.OrderFilter{Scope: domain.ScopeAll})
	if err != nil {
		return ListCounts{}, err
	}

	today := startOfDay(s.now())
	var counts ListCounts
	live := make([]domain.Order, 0, len(all))
	for _, o := range all {
		if o.IsDeleted {
			counts.Trash++
			continue
		}
		live = append(live, o)
		counts.Total++
		switch o.Status {
		case domain.OrderStatusPending:
			counts.Pending++
		case domain.OrderStatusProcessing:
			counts.Processing++
		case domain.OrderStatusShipped:
			counts.Shipped++
		case domain.OrderStatusDelivered:
			counts.Delivered++
		}
		if !o.OrderDate.In(s.loc).Before(today) {
			counts.Today++
		}
	}
	counts.Revenue = revenue(live)

	s.metrics.SetTrashSize(counts.Trash)
	return counts, nil
}

// revenue суммирует оплаченные неудалённые заказы. Пустой статус оплаты не считается оплатой.
func revenue(orders []domain.Order) decimal.Decimal {
	sum := decimal.Zero
	for i := range orders {
		if orders[i].IsRevenue() {
			sum = sum.Add(orders[i].Total)
		}
	}
	return sum
}

func averageTotal(orders []domain.Order) decimal.Decimal {
	if len(orders) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, o := range orders {
		sum = sum.Add(o.Total)
	}
	return domain.RoundMoney(sum.Div(decimal.NewFromInt(int64(len(orders)))))
}

// statusDistribution группирует заказы по статусу в порядке отображения; пустой статус идёт как Unknown.
func statusDistribution(orders []domain.Order) []StatusCount {
	counts := lo.CountValuesBy(orders, func(o domain.Order) string {
		if o.Status == "" {
			return unknownStatus
		}
		return string(o.Status)
	})

	result := make([]StatusCount, 0, len(counts))
	for _, status := range domain.OrderStatuses {
		if n, ok := counts[string(status)]; ok {
			result = append(result, StatusCount{Status: string(status), Count: n})
			delete(counts, string(status))
		}
	}
	rest := lo.Keys(counts)
	sort.Strings(rest)
	for _, status := range rest {
		result = append(result, StatusCount{Status: status, Count: counts[status]})
	}
	return result
}

// topProducts группирует позиции по названию товара и сортирует по количеству.
func topProducts(orders []domain.Order, limit int) []ProductSales {
	byName := make(map[string]*ProductSales)
	for _, o := range orders {
		for _, item := range o.Items {
			entry, ok := byName[item.ProductName]
			if !ok {
				entry = &ProductSales{ProductName: item.ProductName, Revenue: decimal.Zero}
				byName[item.ProductName] = entry
			}
			entry.QuantitySold += item.Quantity
			entry.Revenue = entry.Revenue.Add(item.LineTotal())
		}
	}

	result := make([]ProductSales, 0, len(byName))
	for _, entry := range byName {
		result = append(result, *entry)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].QuantitySold != result[j].QuantitySold {
			return result[i].QuantitySold > result[j].QuantitySold
		}
		return result[i].ProductName < result[j].ProductName
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result
}
