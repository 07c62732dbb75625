package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
	"github.com/vladislavdragonenkov/marketplace/internal/service/address"
	"github.com/vladislavdragonenkov/marketplace/internal/service/cart"
	"github.com/vladislavdragonenkov/marketplace/internal/service/catalog"
	"github.com/vladislavdragonenkov/marketplace/internal/service/donation"
	"github.com/vladislavdragonenkov/marketplace/internal/service/inventory"
	"github.com/vladislavdragonenkov/marketplace/internal/service/notification"
	"github.com/vladislavdragonenkov/marketplace/internal/service/order"
	"github.com/vladislavdragonenkov/marketplace/internal/service/tracking"
	"github.com/vladislavdragonenkov/marketplace/internal/storage/memory"
)

var (
	buyer     = domain.Actor{UserID: "buyer-1", Role: domain.RoleBuyer}
	seller    = domain.Actor{UserID: "seller-1", Role: domain.RoleSeller}
	admin     = domain.Actor{UserID: "admin-1", Role: domain.RoleAdmin}
	logistics = domain.Actor{UserID: "courier-1", Role: domain.RoleLogistics}
)

type apiClient struct {
	t       *testing.T
	handler http.Handler
}

func newAPI(t *testing.T) *apiClient {
	t.Helper()

	products := memory.NewProductRepository()
	addresses := memory.NewAddressRepository()
	carts := memory.NewCartRepository()
	ledger := inventory.NewLedger(products, nil, nil)
	notifier := notification.NewService(memory.NewNotificationRepository())
	coordinator := tracking.NewCoordinator(memory.NewTrackingRepository(), addresses, nil, nil)
	cartSvc := cart.NewService(carts, products, notifier, nil)

	manager := order.NewManager(order.Dependencies{
		Orders:    memory.NewOrderRepository(),
		Products:  products,
		Addresses: addresses,
		Ledger:    ledger,
		Tracking:  coordinator,
		Notifier:  notifier,
		Cart:      cartSvc,
		Timeline:  memory.NewTimelineRepository(),
		Outbox:    memory.NewOutboxRepository(),
	}, order.Config{})

	return &apiClient{t: t, handler: NewHandler(Services{
		Orders:        manager,
		Tracking:      coordinator,
		Catalog:       catalog.NewService(products, ledger, notifier, nil),
		Cart:          cartSvc,
		Donations:     donation.NewService(memory.NewDonationRepository(), products, ledger, notifier, nil),
		Addresses:     address.NewBook(addresses),
		Notifications: notifier,
	}, nil)}
}

// do выполняет запрос от имени actor (nil: анонимно) и декодирует ответ в out.
func (c *apiClient) do(actor *domain.Actor, method, path string, body any, out any) int {
	c.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if actor != nil {
		req.Header.Set(HeaderUserID, actor.UserID)
		req.Header.Set(HeaderUserRole, string(actor.Role))
	}
	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)

	if out != nil && rec.Body.Len() > 0 {
		require.NoError(c.t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec.Code
}

func (c *apiClient) addAddress(actor domain.Actor) addressResponse {
	c.t.Helper()
	var a addressResponse
	code := c.do(&actor, http.MethodPost, "/api/v1/addresses", addressRequest{
		Name: "Main", Line1: "1 Market St", City: "Kazan", Country: "RU",
	}, &a)
	require.Equal(c.t, http.StatusCreated, code)
	return a
}

func (c *apiClient) listProduct(qty int) productResponse {
	c.t.Helper()
	var p productResponse
	code := c.do(&seller, http.MethodPost, "/api/v1/products", map[string]any{
		"name": "Honey", "price": "12.50", "category": "food", "quantity": qty,
	}, &p)
	require.Equal(c.t, http.StatusCreated, code)
	return p
}

func (c *apiClient) placeOrder(productID, addressID string, qty int) orderResponse {
	c.t.Helper()
	var o orderResponse
	code := c.do(&buyer, http.MethodPost, "/api/v1/orders/", createOrderRequest{
		AddressID: addressID,
		Items:     []createOrderItem{{ProductID: productID, Quantity: qty}},
	}, &o)
	require.Equal(c.t, http.StatusCreated, code)
	return o
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	api := newAPI(t)
	api.addAddress(seller)
	buyerAddr := api.addAddress(buyer)
	require.True(t, buyerAddr.IsDefault)

	product := api.listProduct(5)
	require.True(t, product.InStock)

	o := api.placeOrder(product.ID, buyerAddr.ID, 3)
	require.Equal(t, string(domain.OrderStatusPending), o.Status)
	require.Equal(t, "37.5", o.Total.String())

	var stock productResponse
	require.Equal(t, http.StatusOK, api.do(nil, http.MethodGet, "/api/v1/products/"+product.ID, nil, &stock))
	require.Equal(t, 2, stock.AvailableQuantity)

	var unread unreadCountResponse
	require.Equal(t, http.StatusOK, api.do(&seller, http.MethodGet, "/api/v1/notifications/unread-count", nil, &unread))
	require.Equal(t, 1, unread.Unread)

	require.Equal(t, http.StatusOK, api.do(&admin, http.MethodPost, "/api/v1/orders/"+o.ID+"/confirm-payment", nil, &o))
	require.Equal(t, string(domain.OrderStatusProcessing), o.Status)
	require.Equal(t, string(domain.PaymentStatusPaid), o.PaymentStatus)

	require.Equal(t, http.StatusOK, api.do(&seller, http.MethodPost, "/api/v1/orders/"+o.ID+"/status",
		updateStatusRequest{Status: string(domain.OrderStatusReadyForPickup)}, &o))

	var track trackingResponse
	require.Equal(t, http.StatusOK, api.do(&buyer, http.MethodGet, "/api/v1/orders/"+o.ID+"/tracking", nil, &track))
	require.Equal(t, string(domain.TrackingWaitingPickup), track.Status)
	require.Equal(t, "1 Market St", track.EndLocation.Line1)

	require.Equal(t, http.StatusOK, api.do(&seller, http.MethodPost, "/api/v1/orders/"+o.ID+"/status",
		updateStatusRequest{Status: string(domain.OrderStatusDispatched)}, &o))
	require.Equal(t, http.StatusOK, api.do(&logistics, http.MethodPost, "/api/v1/orders/"+o.ID+"/status",
		updateStatusRequest{Status: string(domain.OrderStatusDelivered)}, &o))
	require.Equal(t, string(domain.OrderStatusDelivered), o.Status)

	var history []historyEntryResponse
	require.Equal(t, http.StatusOK, api.do(&buyer, http.MethodGet, "/api/v1/orders/"+o.ID+"/history", nil, &history))
	require.NotEmpty(t, history)
	require.Equal(t, domain.TimelineOrderCreated, history[0].Type)

	var e errorResponse
	require.Equal(t, http.StatusConflict, api.do(&buyer, http.MethodPost, "/api/v1/orders/"+o.ID+"/cancel",
		cancelRequest{Reason: "too late"}, &e))
	require.Equal(t, string(domain.KindInvalidTransition), e.Error)
}

func TestErrorKindsMapToStatusCodes(t *testing.T) {
	api := newAPI(t)
	buyerAddr := api.addAddress(buyer)
	product := api.listProduct(5)
	o := api.placeOrder(product.ID, buyerAddr.ID, 1)

	var e errorResponse

	// без идентичности
	require.Equal(t, http.StatusForbidden, api.do(nil, http.MethodGet, "/api/v1/orders/"+o.ID, nil, &e))
	require.Equal(t, string(domain.KindUnauthorized), e.Error)

	stranger := domain.Actor{UserID: "buyer-2", Role: domain.RoleBuyer}
	require.Equal(t, http.StatusForbidden, api.do(&stranger, http.MethodGet, "/api/v1/orders/"+o.ID, nil, &e))

	require.Equal(t, http.StatusNotFound, api.do(&buyer, http.MethodGet, "/api/v1/orders/missing", nil, &e))
	require.Equal(t, string(domain.KindNotFound), e.Error)

	require.Equal(t, http.StatusBadRequest, api.do(&buyer, http.MethodPost, "/api/v1/orders/", createOrderRequest{
		AddressID: buyerAddr.ID,
	}, &e))
	require.Equal(t, "your cart is empty", e.Message)

	require.Equal(t, http.StatusConflict, api.do(&seller, http.MethodPost, "/api/v1/orders/"+o.ID+"/status",
		updateStatusRequest{Status: string(domain.OrderStatusDispatched)}, &e))

	// у продавца нет адреса
	require.Equal(t, http.StatusOK, api.do(&admin, http.MethodPost, "/api/v1/orders/"+o.ID+"/confirm-payment", nil, nil))
	require.Equal(t, http.StatusUnprocessableEntity, api.do(&seller, http.MethodPost, "/api/v1/orders/"+o.ID+"/status",
		updateStatusRequest{Status: string(domain.OrderStatusReadyForPickup)}, &e))
	require.Equal(t, string(domain.KindNoAddress), e.Error)

	require.Equal(t, http.StatusBadRequest, api.do(&buyer, http.MethodGet, "/api/v1/orders/?limit=abc", nil, &e))
}

func TestCancelPendingOrderOverHTTP(t *testing.T) {
	api := newAPI(t)
	buyerAddr := api.addAddress(buyer)
	product := api.listProduct(5)
	o := api.placeOrder(product.ID, buyerAddr.ID, 2)

	require.Equal(t, http.StatusOK, api.do(&buyer, http.MethodPost, "/api/v1/orders/"+o.ID+"/cancel", nil, &o))
	require.Equal(t, string(domain.OrderStatusCancelled), o.Status)

	var list []orderResponse
	require.Equal(t, http.StatusOK, api.do(&seller, http.MethodGet, "/api/v1/orders/?scope=seller", nil, &list))
	require.Len(t, list, 1)
	require.Equal(t, o.ID, list[0].ID)
}

func TestCartViewsAndNotificationsOverHTTP(t *testing.T) {
	api := newAPI(t)
	product := api.listProduct(5)

	require.Equal(t, http.StatusNoContent, api.do(nil, http.MethodPost, "/api/v1/products/"+product.ID+"/views", nil, nil))
	require.Equal(t, http.StatusNoContent, api.do(&seller, http.MethodPost, "/api/v1/products/"+product.ID+"/views", nil, nil))

	var item cartItemResponse
	require.Equal(t, http.StatusCreated, api.do(&buyer, http.MethodPost, "/api/v1/cart/items",
		quantityRequest{ProductID: product.ID, Quantity: 2}, &item))
	require.Equal(t, 2, item.Quantity)

	var items []cartItemResponse
	require.Equal(t, http.StatusOK, api.do(&buyer, http.MethodGet, "/api/v1/cart", nil, &items))
	require.Len(t, items, 1)

	var list []notificationResponse
	require.Equal(t, http.StatusOK, api.do(&seller, http.MethodGet, "/api/v1/notifications/", nil, &list))
	require.Len(t, list, 2, "anonymous view and cart add; self-view is skipped")

	require.Equal(t, http.StatusNoContent, api.do(&seller, http.MethodPost, "/api/v1/notifications/"+list[0].ID+"/read", nil, nil))
	var e errorResponse
	require.Equal(t, http.StatusNotFound, api.do(&buyer, http.MethodPost, "/api/v1/notifications/"+list[1].ID+"/read", nil, &e))

	var marked markAllReadResponse
	require.Equal(t, http.StatusOK, api.do(&seller, http.MethodPost, "/api/v1/notifications/read-all", nil, &marked))
	require.Equal(t, 1, marked.Updated)

	require.Equal(t, http.StatusNoContent, api.do(&buyer, http.MethodDelete, "/api/v1/cart", nil, nil))
	require.Equal(t, http.StatusOK, api.do(&buyer, http.MethodGet, "/api/v1/cart", nil, &items))
	require.Empty(t, items)
}

func TestRestockAndDonationOverHTTP(t *testing.T) {
	api := newAPI(t)
	product := api.listProduct(1)

	var p productResponse
	var e errorResponse
	require.Equal(t, http.StatusForbidden, api.do(&buyer, http.MethodPost, "/api/v1/products/"+product.ID+"/restock",
		quantityRequest{Quantity: 4}, &e))
	require.Equal(t, http.StatusOK, api.do(&seller, http.MethodPost, "/api/v1/products/"+product.ID+"/restock",
		quantityRequest{Quantity: 4}, &p))
	require.Equal(t, 5, p.AvailableQuantity)

	charity := domain.Actor{UserID: "charity-1", Role: domain.RoleBuyer}
	var d donationResponse
	require.Equal(t, http.StatusCreated, api.do(&charity, http.MethodPost, "/api/v1/donations",
		donationRequest{ProductID: product.ID, Quantity: 2, Note: "food bank"}, &d))
	require.Equal(t, seller.UserID, d.SellerID)

	var list []donationResponse
	require.Equal(t, http.StatusOK, api.do(&seller, http.MethodGet, "/api/v1/donations", nil, &list))
	require.Len(t, list, 1)

	require.Equal(t, http.StatusBadRequest, api.do(&charity, http.MethodPost, "/api/v1/donations",
		donationRequest{ProductID: product.ID, Quantity: 100}, &e))
}

func TestStatusForCoversEveryKind(t *testing.T) {
	cases := map[domain.ErrorKind]int{
		domain.KindValidation:        http.StatusBadRequest,
		domain.KindUnauthorized:      http.StatusForbidden,
		domain.KindNotFound:          http.StatusNotFound,
		domain.KindInvalidTransition: http.StatusConflict,
		domain.KindNoAddress:         http.StatusUnprocessableEntity,
		domain.KindDependency:        http.StatusServiceUnavailable,
		domain.KindUnknown:           http.StatusInternalServerError,
	}
	for kind, want := range cases {
		require.Equal(t, want, statusFor(kind), "kind %q", kind)
	}
}
