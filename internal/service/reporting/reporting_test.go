package reporting_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/metrics"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/reporting"
	"github.com/vladislavdragonenkov/orderdesk/internal/storage/memory"
)

// Пятница.
var fixedNow = time.Date(2024, time.March, 15, 10, 30, 0, 0, time.UTC)

type seedOrder struct {
	date    time.Time
	status  domain.OrderStatus
	payment domain.PaymentStatus
	total   int64
	product string
	price   int64
	qty     int
	deleted bool
}

func at(month time.Month, day, hour int) time.Time {
	return time.Date(2024, month, day, hour, 0, 0, 0, time.UTC)
}

func seed(t *testing.T, repo domain.OrderRepository, orders ...seedOrder) []domain.Order {
	t.Helper()
	ctx := context.Background()

	created := make([]domain.Order, 0, len(orders))
	for _, s := range orders {
		o, err := repo.Create(ctx, domain.Order{
			Customer:      domain.Customer{FirstName: "Lerato", LastName: "Dlamini", Email: "lerato@example.com", Phone: "0825550000"},
			Total:         decimal.NewFromInt(s.total),
			Subtotal:      decimal.NewFromInt(s.total),
			OrderDate:     s.date,
			Status:        s.status,
			PaymentStatus: s.payment,
			Priority:      domain.PriorityNormal,
			Items: []domain.LineItem{
				{ProductName: s.product, UnitPrice: decimal.NewFromInt(s.price), Quantity: s.qty},
			},
		})
		require.NoError(t, err)
		if s.deleted {
			o.MarkDeleted(fixedNow)
			o, err = repo.Save(ctx, o)
			require.NoError(t, err)
		}
		created = append(created, o)
	}
	return created
}

func newService(repo domain.OrderRepository, m *metrics.OrderMetrics) *reporting.Service {
	return reporting.NewService(repo,
		reporting.WithClock(domain.ClockFunc(func() time.Time { return fixedNow })),
		reporting.WithLocation(time.UTC),
		reporting.WithMetrics(m),
	)
}

func seedFixture(t *testing.T) (domain.OrderRepository, []domain.Order) {
	t.Helper()
	repo := memory.NewOrderRepository()
	orders := seed(t, repo,
		seedOrder{date: at(time.March, 15, 9), status: domain.OrderStatusShipped, payment: domain.PaymentStatusPaid, total: 100, product: "Widget", price: 20, qty: 3},
		seedOrder{date: at(time.March, 14, 12), status: domain.OrderStatusPending, payment: domain.PaymentStatusPending, total: 50, product: "Gadget", price: 50, qty: 1},
		seedOrder{date: at(time.March, 1, 8), status: domain.OrderStatusDelivered, payment: domain.PaymentStatusPaid, total: 200, product: "Widget", price: 100, qty: 2},
		seedOrder{date: at(time.January, 20, 8), status: domain.OrderStatusProcessing, payment: domain.PaymentStatusPaid, total: 300, product: "Gizmo", price: 30, qty: 10, deleted: true},
		seedOrder{date: time.Date(2023, time.December, 31, 18, 0, 0, 0, time.UTC), status: domain.OrderStatusDelivered, payment: domain.PaymentStatusPaid, total: 400, product: "Gadget", price: 400, qty: 1},
		seedOrder{date: at(time.March, 15, 8), total: 70, product: "Trinket", price: 70, qty: 1},
	)
	return repo, orders
}

func TestWindow(t *testing.T) {
	tests := []struct {
		period   reporting.Period
		wantFrom time.Time
		wantTo   time.Time
	}{
		{reporting.PeriodToday, at(time.March, 15, 0), fixedNow},
		{reporting.PeriodYesterday, at(time.March, 14, 0), at(time.March, 15, 0)},
		{reporting.PeriodThisWeek, at(time.March, 10, 0), fixedNow},
		{reporting.PeriodThisMonth, at(time.March, 1, 0), fixedNow},
		{reporting.PeriodThisYear, at(time.January, 1, 0), fixedNow},
		{reporting.PeriodLast7Days, at(time.March, 8, 0), fixedNow},
	}

	for _, tt := range tests {
		t.Run(string(tt.period), func(t *testing.T) {
			from, to := reporting.Window(tt.period, fixedNow)
			assert.True(t, tt.wantFrom.Equal(from), "from = %s", from)
			assert.True(t, tt.wantTo.Equal(to), "to = %s", to)
		})
	}
}

func TestWindow_WeekStartsOnSunday(t *testing.T) {
	sunday := time.Date(2024, time.March, 17, 15, 0, 0, 0, time.UTC)
	from, _ := reporting.Window(reporting.PeriodThisWeek, sunday)
	assert.True(t, from.Equal(time.Date(2024, time.March, 17, 0, 0, 0, 0, time.UTC)))
}

func TestPeriodStatistics_YesterdayBoundaries(t *testing.T) {
	repo := memory.NewOrderRepository()
	seed(t, repo,
		seedOrder{date: at(time.March, 14, 0), status: domain.OrderStatusPending, payment: domain.PaymentStatusPending, total: 10, product: "A", price: 10, qty: 1},
		seedOrder{date: at(time.March, 15, 0), status: domain.OrderStatusPending, payment: domain.PaymentStatusPending, total: 20, product: "B", price: 20, qty: 1},
		seedOrder{date: at(time.March, 15, 0).Add(time.Second), status: domain.OrderStatusPending, payment: domain.PaymentStatusPending, total: 30, product: "C", price: 30, qty: 1},
		seedOrder{date: at(time.March, 14, 0).Add(-time.Second), status: domain.OrderStatusPending, payment: domain.PaymentStatusPending, total: 40, product: "D", price: 40, qty: 1},
	)
	svc := newService(repo, nil)

	stats, err := svc.PeriodStatistics(context.Background(), reporting.PeriodYesterday)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalOrders, "both midnights belong to yesterday")
	assert.Equal(t, 2, stats.PendingOrders)
}

func TestParsePeriod(t *testing.T) {
	assert.Equal(t, reporting.PeriodThisWeek, reporting.ParsePeriod(" This-Week "))
	assert.Equal(t, reporting.PeriodLast7Days, reporting.ParsePeriod("fortnight"))
	assert.Equal(t, reporting.PeriodLast7Days, reporting.ParsePeriod(""))
}

func TestDashboard(t *testing.T) {
	repo, orders := seedFixture(t)
	svc := newService(repo, nil)

	d, err := svc.Dashboard(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, d.MonthlyOrders)
	assert.Equal(t, "300.00", d.MonthlyRevenue.StringFixed(2))
	assert.Equal(t, "105.00", d.MonthlyAverage.StringFixed(2))
	assert.Equal(t, 4, d.YearlyOrders)
	assert.Equal(t, "300.00", d.YearlyRevenue.StringFixed(2))

	assert.Equal(t, []reporting.StatusCount{
		{Status: "Pending", Count: 1},
		{Status: "Shipped", Count: 1},
		{Status: "Delivered", Count: 2},
		{Status: "Unknown", Count: 1},
	}, d.StatusDistribution)

	require.Len(t, d.TopProducts, 3)
	assert.Equal(t, "Widget", d.TopProducts[0].ProductName)
	assert.Equal(t, 5, d.TopProducts[0].QuantitySold)
	assert.Equal(t, "260.00", d.TopProducts[0].Revenue.StringFixed(2))
	assert.Equal(t, "Gadget", d.TopProducts[1].ProductName)
	assert.Equal(t, 2, d.TopProducts[1].QuantitySold)
	assert.Equal(t, "Trinket", d.TopProducts[2].ProductName)

	recentIDs := make([]int64, 0, len(d.RecentOrders))
	for _, o := range d.RecentOrders {
		recentIDs = append(recentIDs, o.ID)
	}
	assert.Equal(t, []int64{orders[0].ID, orders[5].ID, orders[1].ID, orders[2].ID, orders[4].ID}, recentIDs)
}

func TestPeriodStatistics(t *testing.T) {
	repo, _ := seedFixture(t)
	svc := newService(repo, nil)

	tests := []struct {
		period    reporting.Period
		total     int
		revenue   string
		pending   int
		average   string
		delivered int
	}{
		{reporting.PeriodToday, 2, "100.00", 0, "85.00", 0},
		{reporting.PeriodYesterday, 1, "0.00", 1, "50.00", 0},
		{reporting.PeriodThisWeek, 3, "100.00", 1, "73.33", 0},
		{reporting.PeriodThisMonth, 4, "300.00", 1, "105.00", 1},
		{reporting.PeriodThisYear, 4, "300.00", 1, "105.00", 1},
		{reporting.PeriodLast7Days, 3, "100.00", 1, "73.33", 0},
	}

	for _, tt := range tests {
		t.Run(string(tt.period), func(t *testing.T) {
			stats, err := svc.PeriodStatistics(context.Background(), tt.period)
			require.NoError(t, err)
			assert.Equal(t, tt.total, stats.TotalOrders)
			assert.Equal(t, tt.revenue, stats.TotalRevenue.StringFixed(2))
			assert.Equal(t, tt.pending, stats.PendingOrders)
			assert.Equal(t, tt.delivered, stats.DeliveredOrders)
			assert.Equal(t, tt.average, stats.AverageOrderValue.StringFixed(2))
		})
	}
}

func TestPeriodStatistics_Empty(t *testing.T) {
	svc := newService(memory.NewOrderRepository(), nil)

	stats, err := svc.PeriodStatistics(context.Background(), reporting.PeriodToday)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalOrders)
	assert.True(t, stats.AverageOrderValue.IsZero())
	assert.Empty(t, stats.ByStatus)
}

func TestListCounts(t *testing.T) {
	repo, _ := seedFixture(t)
	registry := prometheus.NewRegistry()
	svc := newService(repo, metrics.NewOrderMetricsWithRegisterer(registry))

	counts, err := svc.ListCounts(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, counts.Total)
	assert.Equal(t, 1, counts.Pending)
	assert.Equal(t, 0, counts.Processing)
	assert.Equal(t, 1, counts.Shipped)
	assert.Equal(t, 2, counts.Delivered)
	assert.Equal(t, 2, counts.Today)
	assert.Equal(t, "700.00", counts.Revenue.StringFixed(2))
	assert.Equal(t, 1, counts.Trash)

	families, err := registry.Gather()
	require.NoError(t, err)
	var trashGauge float64
	for _, family := range families {
		if family.GetName() == "orderdesk_trash_orders" {
			trashGauge = family.GetMetric()[0].GetGauge().GetValue()
		}
	}
	assert.Equal(t, 1.0, trashGauge)
}

func TestRevenueNeverCountsDeletedOrUnpaid(t *testing.T) {
	repo := memory.NewOrderRepository()
	seed(t, repo,
		seedOrder{date: at(time.March, 15, 1), status: domain.OrderStatusDelivered, payment: domain.PaymentStatusPaid, total: 10, product: "A", price: 10, qty: 1},
		seedOrder{date: at(time.March, 15, 2), status: domain.OrderStatusDelivered, payment: domain.PaymentStatusPaid, total: 1000, product: "B", price: 1000, qty: 1, deleted: true},
		seedOrder{date: at(time.March, 15, 3), status: domain.OrderStatusDelivered, payment: domain.PaymentStatusRefunded, total: 500, product: "C", price: 500, qty: 1},
		seedOrder{date: at(time.March, 15, 4), status: domain.OrderStatusDelivered, total: 700, product: "D", price: 700, qty: 1},
	)
	svc := newService(repo, nil)
	ctx := context.Background()

	d, err := svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, "10.00", d.MonthlyRevenue.StringFixed(2))
	assert.Equal(t, "10.00", d.YearlyRevenue.StringFixed(2))

	for _, period := range []reporting.Period{reporting.PeriodToday, reporting.PeriodThisWeek, reporting.PeriodLast7Days} {
		stats, err := svc.PeriodStatistics(ctx, period)
		require.NoError(t, err)
		assert.Equal(t, "10.00", stats.TotalRevenue.StringFixed(2), period)
	}

	counts, err := svc.ListCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, "10.00", counts.Revenue.StringFixed(2))
}
