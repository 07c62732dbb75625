package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/service/address"
	"github.com/vladislavdragonenkov/marketplace/internal/service/cart"
	"github.com/vladislavdragonenkov/marketplace/internal/service/catalog"
	"github.com/vladislavdragonenkov/marketplace/internal/service/donation"
	"github.com/vladislavdragonenkov/marketplace/internal/service/notification"
	"github.com/vladislavdragonenkov/marketplace/internal/service/order"
	"github.com/vladislavdragonenkov/marketplace/internal/service/tracking"
)

const (
	requestTimeout = 10 * time.Second
	maxListLimit   = 200
)

// Services: сервисы ядра, которые публикует HTTP API.
type Services struct {
	Orders        *order.Manager
	Tracking      *tracking.Coordinator
	Catalog       *catalog.Service
	Cart          *cart.Service
	Donations     *donation.Service
	Addresses     *address.Book
	Notifications *notification.Service
}

// Handler: HTTP-адаптер над сервисами ядра.
type Handler struct {
	svc    Services
	logger *log.Entry
}

// NewHandler собирает chi-роутер с префиксом /api/v1.
func NewHandler(svc Services, logger *log.Entry) http.Handler {
	if logger == nil {
		logger = log.WithField("component", "httpapi")
	}
	h := &Handler{svc: svc, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Use(withActor)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/products/{productID}", h.getProduct)
		r.Post("/products/{productID}/views", h.recordView)

		r.Group(func(r chi.Router) {
			r.Use(requireActor)

			r.Post("/products", h.createProduct)
			r.Post("/products/{productID}/restock", h.restockProduct)

			r.Get("/cart", h.listCart)
			r.Post("/cart/items", h.addCartItem)
			r.Delete("/cart", h.clearCart)

			r.Get("/addresses", h.listAddresses)
			r.Post("/addresses", h.addAddress)

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", h.createOrder)
				r.Get("/", h.listOrders)
				r.Get("/{orderID}", h.getOrder)
				r.Post("/{orderID}/status", h.updateOrderStatus)
				r.Post("/{orderID}/cancel", h.cancelOrder)
				r.Post("/{orderID}/confirm-payment", h.confirmPayment)
				r.Get("/{orderID}/history", h.orderHistory)
				r.Get("/{orderID}/tracking", h.orderTracking)
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", h.listNotifications)
				r.Get("/unread-count", h.unreadCount)
				r.Post("/read-all", h.markAllRead)
				r.Post("/{notificationID}/read", h.markRead)
			})

			r.Get("/donations", h.listDonations)
			r.Post("/donations", h.requestDonation)
		})
	})

	return r
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.logger.WithFields(log.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start).String(),
			"request_id": middleware.GetReqID(r.Context()),
		}).Debug("http request")
	})
}

// queryLimit читает ?limit=; 0 означает лимит сервиса по умолчанию.
func queryLimit(r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, false
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return limit, true
}
