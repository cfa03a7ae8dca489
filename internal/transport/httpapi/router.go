package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderdesk/internal/metrics"
)

// RouterConfig — зависимости маршрутизатора.
type RouterConfig struct {
	Identity IdentityProvider
	Metrics  *metrics.HTTPMetrics
	Logger   *log.Entry
}

// NewRouter собирает маршруты API. /api/admin требует пользователя, операции с корзиной — роль администратора.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	if cfg.Identity == nil {
		cfg.Identity = HeaderIdentity{}
	}
	if cfg.Logger == nil {
		cfg.Logger = h.logger
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogging(cfg.Logger, cfg.Metrics))
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/orders", h.PlaceOrder)
		r.Get("/track", h.TrackOrders)
		r.Get("/track/{id}/timeline", h.OrderTimeline)
		r.Post("/track/{id}/subscribe", h.Subscribe)

		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireIdentity(cfg.Identity))

			r.Get("/dashboard", h.Dashboard)
			r.Get("/statistics", h.Statistics)

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", h.ListOrders)
				r.Get("/export", h.ExportOrders)
				r.Post("/bulk", h.BulkAction)

				r.Group(func(r chi.Router) {
					r.Use(RequireAdmin)
					r.Post("/bulk/delete", h.BulkDelete)
					r.Post("/bulk/restore", h.BulkRestore)
					r.Post("/bulk/purge", h.BulkPurge)
				})

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", h.GetOrder)
					r.Put("/", h.UpdateOrder)

					r.Group(func(r chi.Router) {
						r.Use(RequireAdmin)
						r.Delete("/", h.DeleteOrder)
						r.Post("/restore", h.RestoreOrder)
						r.Delete("/permanent", h.PurgeOrder)
					})
				})
			})

			r.With(RequireAdmin).Post("/trash/empty", h.EmptyTrash)
		})
	})

	return r
}

// requestLogging пишет строку лога на запрос и учитывает его в метриках по шаблону маршрута.
func requestLogging(logger *log.Entry, m *metrics.HTTPMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			elapsed := time.Since(start)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := ""
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				route = rctx.RoutePattern()
			}
			m.ObserveRequest(route, r.Method, status, elapsed)

			entry := logger.WithFields(log.Fields{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      status,
				"duration_ms": elapsed.Milliseconds(),
				"request_id":  middleware.GetReqID(r.Context()),
			})
			if status >= http.StatusInternalServerError {
				entry.Warn("http request failed")
				return
			}
			entry.Debug("http request")
		})
	}
}
