package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
	"github.com/vladislavdragonenkov/marketplace/internal/service/order"
)

type createOrderItem struct {
	ProductID string           `json:"product_id"`
	Quantity  int              `json:"quantity"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
}

type createOrderRequest struct {
	AddressID     string            `json:"address_id"`
	PaymentMethod string            `json:"payment_method,omitempty"`
	Items         []createOrderItem `json:"items"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r.Context())

	var req createOrderRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		badRequest(w, r, "invalid request body")
		return
	}

	items := make([]order.ItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, order.ItemInput{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	created, err := h.svc.Orders.CreateOrder(r.Context(), actor, order.CreateOrderRequest{
		AddressID:     req.AddressID,
		PaymentMethod: req.PaymentMethod,
		Items:         items,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, toOrderResponse(created))
}

// listOrders: ?scope=seller отдаёт заказы с позициями продавца, иначе заказы покупателя.
func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r.Context())
	limit, ok := queryLimit(r)
	if !ok {
		badRequest(w, r, "limit must be a non-negative integer")
		return
	}

	var (
		orders []domain.Order
		err    error
	)
	if r.URL.Query().Get("scope") == "seller" {
		orders, err = h.svc.Orders.ListForSeller(r.Context(), actor, limit)
	} else {
		orders, err = h.svc.Orders.ListForBuyer(r.Context(), actor, limit)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, toOrderResponses(orders))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r.Context())
	o, err := h.svc.Orders.Get(r.Context(), actor, chi.URLParam(r, "orderID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, toOrderResponse(o))
}

func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r.Context())

	var req updateStatusRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		badRequest(w, r, "invalid request body")
		return
	}

	o, err := h.svc.Orders.UpdateStatus(r.Context(), actor, chi.URLParam(r, "orderID"), domain.OrderStatus(req.Status))
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, toOrderResponse(o))
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r.Context())

	var req cancelRequest
	if r.ContentLength != 0 {
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			badRequest(w, r, "invalid request body")
			return
		}
	}

	o, err := h.svc.Orders.Cancel(r.Context(), actor, chi.URLParam(r, "orderID"), req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, toOrderResponse(o))
}

func (h *Handler) confirmPayment(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r.Context())
	o, err := h.svc.Orders.ConfirmPayment(r.Context(), actor, chi.URLParam(r, "orderID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, toOrderResponse(o))
}

func (h *Handler) orderHistory(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r.Context())
	events, err := h.svc.Orders.History(r.Context(), actor, chi.URLParam(r, "orderID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, toHistoryResponse(events))
}

// orderTracking доступен тем же, кто видит заказ.
func (h *Handler) orderTracking(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r.Context())
	orderID := chi.URLParam(r, "orderID")
	if _, err := h.svc.Orders.Get(r.Context(), actor, orderID); err != nil {
		writeError(w, r, err)
		return
	}
	t, err := h.svc.Tracking.Get(r.Context(), orderID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, toTrackingResponse(t))
}
