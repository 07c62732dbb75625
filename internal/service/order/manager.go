package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
	"github.com/vladislavdragonenkov/marketplace/internal/metrics"
)

// Config задаёт поведение менеджера в спорных местах.
type Config struct {
	// RestoreStockOnCancel возвращает списанные единицы на склад при отмене.
	RestoreStockOnCancel bool
	// RepriceFromCatalog берёт цену из каталога вместо цены, присланной клиентом.
	RepriceFromCatalog bool
}

// Dependencies: зависимости менеджера заказов. Timeline, Outbox, Cart и Metrics необязательны.
type Dependencies struct {
	Orders    domain.OrderRepository
	Products  domain.ProductRepository
	Addresses domain.AddressRepository
	Ledger    domain.Ledger
	Tracking  domain.TrackingCoordinator
	Notifier  domain.Notifier
	Cart      domain.CartClearer
	Timeline  domain.TimelineRepository
	Outbox    domain.OutboxRepository
	Metrics   *metrics.MarketMetrics
	Logger    *log.Entry
}

// ItemInput описывает позицию из корзины покупателя. При UnitPrice == nil цена берётся из каталога.
type ItemInput struct {
	ProductID string
	Quantity  int
	UnitPrice *decimal.Decimal
}

// CreateOrderRequest: запрос на оформление заказа.
type CreateOrderRequest struct {
	AddressID     string
	PaymentMethod string
	Items         []ItemInput
}

// Manager владеет машиной состояний заказа и координирует побочные эффекты переходов.
type Manager struct {
	orders    domain.OrderRepository
	products  domain.ProductRepository
	addresses domain.AddressRepository
	ledger    domain.Ledger
	tracking  domain.TrackingCoordinator
	notifier  domain.Notifier
	cart      domain.CartClearer
	timeline  domain.TimelineRepository
	outbox    domain.OutboxRepository
	metrics   *metrics.MarketMetrics
	logger    *log.Entry
	cfg       Config
	now       func() time.Time
}

// NewManager создаёт менеджер заказов.
func NewManager(deps Dependencies, cfg Config) *Manager {
	logger := deps.Logger
	if logger == nil {
		logger = log.WithField("component", "order-manager")
	}
	return &Manager{
		orders:    deps.Orders,
		products:  deps.Products,
		addresses: deps.Addresses,
		ledger:    deps.Ledger,
		tracking:  deps.Tracking,
		notifier:  deps.Notifier,
		cart:      deps.Cart,
		timeline:  deps.Timeline,
		outbox:    deps.Outbox,
		metrics:   deps.Metrics,
		logger:    logger,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateOrder оформляет заказ покупателя. После записи заказа побочные эффекты выполняются
// по порядку: уведомления продавцам, списание остатков, очистка корзины. Их сбои не
// отменяют заказ: они логируются, а несписанный остаток фиксируется событием в outbox.
// Возвращает заказ без позиций.
func (m *Manager) CreateOrder(ctx context.Context, actor domain.Actor, req CreateOrderRequest) (order domain.Order, err error) {
	start := time.Now()
	defer func() { m.metrics.RecordOperation("create_order", err, time.Since(start)) }()

	if err := actor.Validate(); err != nil {
		return domain.Order{}, err
	}
	if actor.Role != domain.RoleBuyer {
		return domain.Order{}, fmt.Errorf("%w: only buyers can place orders", domain.ErrUnauthorized)
	}
	if len(req.Items) == 0 {
		return domain.Order{}, domain.ErrItemsRequired
	}
	if req.AddressID == "" {
		return domain.Order{}, domain.ErrAddressRequired
	}

	if err := m.checkAddressOwner(ctx, actor.UserID, req.AddressID); err != nil {
		return domain.Order{}, err
	}

	order, err = m.buildOrder(ctx, actor.UserID, req)
	if err != nil {
		return domain.Order{}, err
	}

	if err := m.orders.Create(ctx, order); err != nil {
		m.logger.WithError(err).WithField("buyer_id", actor.UserID).Error("failed to persist order")
		return domain.Order{}, domain.Dependency("orders.create", err)
	}

	entry := m.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"buyer_id": order.BuyerID,
	})
	entry.WithField("total", order.Total.StringFixed(2)).Info("order created")
	m.metrics.RecordOrderCreated()

	for _, item := range order.Items {
		m.notifier.Notify(ctx, domain.Notice{
			RecipientID: item.SellerID,
			Type:        domain.NotificationPurchase,
			ProductID:   item.ProductID,
			FromUserID:  order.BuyerID,
			Details:     domain.NoticeDetails{ProductName: item.ProductName, Quantity: item.Quantity},
		})
	}

	for _, item := range order.Items {
		if _, decErr := m.ledger.Decrement(ctx, item.ProductID, item.Quantity); decErr != nil {
			entry.WithError(decErr).WithFields(log.Fields{
				"product_id": item.ProductID,
				"quantity":   item.Quantity,
			}).Error("inventory decrement failed after order was stored")
			m.emitDecrementFailure(ctx, order, item, decErr)
		}
	}

	if m.cart != nil {
		if cartErr := m.cart.ClearCart(ctx, order.BuyerID); cartErr != nil {
			entry.WithError(cartErr).Warn("failed to clear cart after checkout")
		}
	}

	m.emitEvent(ctx, &order, domain.EventOrderCreated, domain.TimelineOrderCreated, actor.UserID, map[string]any{
		"buyer_id":   order.BuyerID,
		"total":      order.Total.StringFixed(2),
		"items":      len(order.Items),
		"sellers":    order.SellerIDs(),
		"created_at": order.CreatedAt.Format(time.RFC3339Nano),
		"ts":         order.CreatedAt.Format(time.RFC3339Nano),
	})

	order.Items = nil
	return order, nil
}

func (m *Manager) checkAddressOwner(ctx context.Context, buyerID, addressID string) error {
	address, err := m.addresses.Get(ctx, addressID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("%w: address %s", domain.ErrAddressNotOwned, addressID)
		}
		return domain.Dependency("addresses.get", err)
	}
	if address.UserID != buyerID {
		return fmt.Errorf("%w: address %s", domain.ErrAddressNotOwned, addressID)
	}
	return nil
}

// buildOrder проверяет позиции, снимает цену, название и продавца товара.
func (m *Manager) buildOrder(ctx context.Context, buyerID string, req CreateOrderRequest) (domain.Order, error) {
	now := m.now()
	orderID := uuid.NewString()

	requested := make(map[string]int, len(req.Items))
	items := make([]domain.OrderItem, 0, len(req.Items))
	for _, in := range req.Items {
		if in.ProductID == "" {
			return domain.Order{}, domain.ErrProductRequired
		}
		if in.Quantity <= 0 {
			return domain.Order{}, fmt.Errorf("%w: product %s", domain.ErrItemQtyInvalid, in.ProductID)
		}

		product, err := m.products.Get(ctx, in.ProductID)
		if err != nil {
			return domain.Order{}, domain.Dependency("products.get", err)
		}

		price := product.Price
		if in.UnitPrice != nil && !m.cfg.RepriceFromCatalog {
			price = *in.UnitPrice
		}
		if !domain.ValidPrice(price) {
			return domain.Order{}, fmt.Errorf("%w: product %s price %s", domain.ErrItemPriceInvalid, in.ProductID, price)
		}

		requested[in.ProductID] += in.Quantity
		items = append(items, domain.OrderItem{
			ID:          uuid.NewString(),
			OrderID:     orderID,
			ProductID:   product.ID,
			Quantity:    in.Quantity,
			UnitPrice:   price,
			ProductName: product.Name,
			SellerID:    product.SellerID,
			CreatedAt:   now,
		})
	}

	// Проверка остатка не атомарна со списанием: это сверка на момент оформления.
	for productID, qty := range requested {
		ok, err := m.ledger.CheckAvailability(ctx, productID, qty)
		if err != nil {
			return domain.Order{}, err
		}
		if !ok {
			return domain.Order{}, fmt.Errorf("%w: product %s", domain.ErrInsufficientStock, productID)
		}
	}

	paymentMethod := req.PaymentMethod
	if paymentMethod == "" {
		paymentMethod = domain.DefaultPaymentMethod
	}

	order := domain.Order{
		ID:            orderID,
		BuyerID:       buyerID,
		AddressID:     req.AddressID,
		Status:        domain.OrderStatusPending,
		Total:         domain.SumItems(items),
		PaymentMethod: paymentMethod,
		PaymentStatus: domain.PaymentStatusPending,
		Items:         items,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return domain.Order{}, errors.Join(errs...)
	}
	return order, nil
}
