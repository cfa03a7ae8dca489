// Package httpapi — JSON API админки заказов и страницы отслеживания.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/orders"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/reporting"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/tracking"
)

const maxBodyBytes = 1 << 20

// OrderService — операции над заказами, нужные API.
type OrderService interface {
	Get(ctx context.Context, id int64, includeDeleted bool) (orders.OrderDetails, error)
	List(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error)
	ApplyTransition(ctx context.Context, id int64, edit orders.OrderEdit, action orders.Action, actor domain.Actor) (orders.TransitionResult, error)
	SoftDelete(ctx context.Context, id int64, actor domain.Actor) (orders.TrashResult, error)
	Restore(ctx context.Context, id int64, actor domain.Actor) (orders.TrashResult, error)
	PermanentlyDelete(ctx context.Context, id int64, actor domain.Actor) (orders.TrashResult, error)
	EmptyTrash(ctx context.Context, actor domain.Actor) (orders.EmptyTrashResult, error)
	BulkAction(ctx context.Context, ids []int64, action orders.Action, actor domain.Actor) (orders.BulkResult, error)
	BulkDelete(ctx context.Context, ids []int64, actor domain.Actor) (orders.BulkResult, error)
	BulkRestore(ctx context.Context, ids []int64, actor domain.Actor) (orders.BulkResult, error)
	BulkPermanentDelete(ctx context.Context, ids []int64, actor domain.Actor) (orders.BulkResult, error)
	PlaceOrder(ctx context.Context, req orders.PlaceOrderRequest) (domain.Order, error)
}

// ReportingService — отчёты и выгрузка.
type ReportingService interface {
	Dashboard(ctx context.Context) (reporting.Dashboard, error)
	PeriodStatistics(ctx context.Context, period reporting.Period) (reporting.PeriodStats, error)
	ListCounts(ctx context.Context) (reporting.ListCounts, error)
	Export(ctx context.Context, filter reporting.ExportFilter) (reporting.ExportFile, error)
}

// TrackingService — страница отслеживания для покупателей.
type TrackingService interface {
	Lookup(ctx context.Context, q tracking.Query) ([]domain.Order, error)
	Details(ctx context.Context, id int64) (domain.Order, []tracking.Step, error)
	Subscribe(ctx context.Context, id int64, email string) (string, error)
}

// Options задаёт необязательные параметры Handler.
type Options struct {
	Logger   *log.Entry
	Location *time.Location
}

// Option настраивает Handler.
type Option func(*Options)

// WithLogger задаёт logger обработчика.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithLocation задаёт часовой пояс для дат в параметрах запроса.
func WithLocation(loc *time.Location) Option {
	return func(opts *Options) {
		opts.Location = loc
	}
}

// Handler обслуживает HTTP-запросы и делегирует работу сервисам.
type Handler struct {
	orders    OrderService
	reporting ReportingService
	tracking  TrackingService
	logger    *log.Entry
	loc       *time.Location
}

// NewHandler создаёт обработчик.
func NewHandler(orderSvc OrderService, reportingSvc ReportingService, trackingSvc TrackingService, options ...Option) *Handler {
	opts := Options{}
	for _, option := range options {
		option(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = log.WithField("component", "httpapi")
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}

	return &Handler{
		orders:    orderSvc,
		reporting: reportingSvc,
		tracking:  trackingSvc,
		logger:    opts.Logger,
		loc:       opts.Location,
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return false
	}
	return true
}

func orderIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_order_id", "order id must be a positive integer")
		return 0, false
	}
	return id, true
}

// parseIDList разбирает "1,2, 3". Пустые элементы пропускаются.
func parseIDList(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseBool(raw string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(raw))
	return err == nil && b
}

func (h *Handler) requestLogger(r *http.Request) *log.Entry {
	entry := h.logger.WithField("path", r.URL.Path)
	if actor, ok := ActorFromContext(r.Context()); ok {
		entry = entry.WithField("actor", actor.Name)
	}
	return entry
}
