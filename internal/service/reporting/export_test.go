package reporting_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/reporting"
	"github.com/vladislavdragonenkov/orderdesk/internal/storage/memory"
)

const exportHeader = "OrderID,OrderDate,Customer,Email,Phone,Total,Status,PaymentStatus,TrackingNumber,ShippingCarrier"

func exportOrders() []domain.Order {
	return []domain.Order{
		{
			ID:              1001,
			Customer:        domain.Customer{FirstName: "Sipho", LastName: "Mokoena", Email: "sipho@example.com", Phone: "0831234567"},
			Total:           decimal.RequireFromString("1499.5"),
			OrderDate:       time.Date(2024, time.March, 14, 9, 5, 59, 0, time.UTC),
			Status:          domain.OrderStatusShipped,
			PaymentStatus:   domain.PaymentStatusPaid,
			TrackingNumber:  "TRK202403141000001234",
			ShippingCarrier: "The Courier Guy",
		},
		{
			ID:            1002,
			Customer:      domain.Customer{FirstName: "Anna", LastName: "van der Merwe", Email: "anna@example.com", Phone: "0720000000"},
			Total:         decimal.NewFromInt(80),
			OrderDate:     time.Date(2024, time.March, 15, 17, 45, 0, 0, time.UTC),
			Status:        domain.OrderStatusPending,
			PaymentStatus: domain.PaymentStatusPending,
		},
	}
}

func TestEncodeCSV(t *testing.T) {
	got := string(reporting.EncodeCSV(exportOrders(), false, nil))

	want := exportHeader + "\n" +
		`"1001","2024-03-14 09:05","Sipho Mokoena","sipho@example.com","0831234567","1499.50","Shipped","Paid","TRK202403141000001234","The Courier Guy"` + "\n" +
		`"1002","2024-03-15 17:45","Anna van der Merwe","anna@example.com","0720000000","80.00","Pending","Pending","",""`
	assert.Equal(t, want, got)
}

func TestEncodeCSV_StateColumnAndLocation(t *testing.T) {
	orders := exportOrders()
	orders[1].MarkDeleted(time.Now())
	sast := time.FixedZone("SAST", 2*60*60)

	lines := strings.Split(string(reporting.EncodeCSV(orders, true, sast)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, exportHeader+",State", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], `"1001","2024-03-14 11:05",`))
	assert.True(t, strings.HasSuffix(lines[1], `,"Active"`))
	assert.True(t, strings.HasSuffix(lines[2], `,"Deleted"`))
}

func TestEncodeCSV_EmbeddedQuotesAreNotEscaped(t *testing.T) {
	orders := exportOrders()[:1]
	orders[0].ShippingCarrier = `Fast "Express"`

	lines := strings.Split(string(reporting.EncodeCSV(orders, false, nil)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasSuffix(lines[1], `,"Fast "Express""`))
}

func TestEncodeCSV_HeaderOnly(t *testing.T) {
	assert.Equal(t, exportHeader, string(reporting.EncodeCSV(nil, false, nil)))
}

func TestExport_FiltersAndNaming(t *testing.T) {
	repo := memory.NewOrderRepository()
	seeded := seed(t, repo,
		seedOrder{date: at(time.March, 10, 9), status: domain.OrderStatusShipped, payment: domain.PaymentStatusPaid, total: 100, product: "A", price: 100, qty: 1},
		seedOrder{date: at(time.March, 12, 9), status: domain.OrderStatusPending, payment: domain.PaymentStatusPending, total: 50, product: "B", price: 50, qty: 1},
		seedOrder{date: at(time.March, 13, 9), status: domain.OrderStatusPending, payment: domain.PaymentStatusPending, total: 60, product: "C", price: 60, qty: 1, deleted: true},
		seedOrder{date: at(time.February, 1, 9), status: domain.OrderStatusDelivered, payment: domain.PaymentStatusPaid, total: 70, product: "D", price: 70, qty: 1},
	)
	svc := newService(repo, nil)
	ctx := context.Background()

	from := at(time.March, 1, 0)
	to := fixedNow
	file, err := svc.Export(ctx, reporting.ExportFilter{From: &from, To: &to})
	require.NoError(t, err)

	assert.Equal(t, "orders_export_20240315_103000.csv", file.Filename)
	assert.Equal(t, "text/csv", file.ContentType)
	assert.Equal(t, 2, file.Rows)
	lines := strings.Split(string(file.Data), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, exportHeader, lines[0])
	assert.True(t, strings.HasPrefix(lines[1], `"1","2024-03-10 09:00"`))
	assert.True(t, strings.HasPrefix(lines[2], `"2","2024-03-12 09:00"`))

	withTrash, err := svc.Export(ctx, reporting.ExportFilter{From: &from, To: &to, IncludeDeleted: true})
	require.NoError(t, err)
	assert.Equal(t, 3, withTrash.Rows)
	assert.Contains(t, string(withTrash.Data), `"Deleted"`)

	selected, err := svc.Export(ctx, reporting.ExportFilter{IDs: []int64{seeded[3].ID, seeded[2].ID}})
	require.NoError(t, err)
	assert.Equal(t, 1, selected.Rows)
	assert.Contains(t, string(selected.Data), `"4","2024-02-01 09:00"`)

	picked, err := svc.Export(ctx, reporting.ExportFilter{IDs: []int64{seeded[3].ID, seeded[0].ID, seeded[1].ID, seeded[3].ID}})
	require.NoError(t, err)
	require.Equal(t, 3, picked.Rows)
	rows := strings.Split(string(picked.Data), "\n")
	require.Len(t, rows, 4)
	assert.True(t, strings.HasPrefix(rows[1], `"4",`), rows[1])
	assert.True(t, strings.HasPrefix(rows[2], `"1",`), rows[2])
	assert.True(t, strings.HasPrefix(rows[3], `"2",`), rows[3])
}
