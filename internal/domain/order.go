package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus описывает жизненный цикл заказа маркетплейса.
type OrderStatus string

const (
	// OrderStatusPending: заказ оформлен покупателем, оплата ещё не подтверждена.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusProcessing: оплата подтверждена внешним шагом, продавец собирает заказ.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusReadyForPickup: продавец подготовил заказ к передаче логистике.
	OrderStatusReadyForPickup OrderStatus = "ready_for_pickup"
	// OrderStatusDispatched: заказ передан в доставку.
	OrderStatusDispatched OrderStatus = "dispatched"
	// OrderStatusDelivered: заказ доставлен покупателю. Терминальный статус.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled: заказ отменён. Терминальный статус.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// orderTransitions задаёт допустимые переходы из статуса в статусы.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:        {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing:     {OrderStatusReadyForPickup, OrderStatusCancelled},
	OrderStatusReadyForPickup: {OrderStatusDispatched},
	OrderStatusDispatched:     {OrderStatusDelivered},
}

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusReadyForPickup,
		OrderStatusDispatched, OrderStatusDelivered, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal сообщает, что из статуса нет переходов.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// CanTransitionTo проверяет переход по таблице orderTransitions.
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	for _, next := range orderTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// Cancellable: отмена разрешена только из pending и processing.
func (s OrderStatus) Cancellable() bool {
	return s.CanTransitionTo(OrderStatusCancelled)
}

// IsFulfillment сообщает, что переход в статус инициирует продавец.
func (s OrderStatus) IsFulfillment() bool {
	return s == OrderStatusReadyForPickup || s == OrderStatusDispatched
}

// OrderItem представляет одну позицию заказа. Цена и название: снимки на момент оформления.
type OrderItem struct {
	ID        string
	OrderID   string
	ProductID string
	Quantity  int
	// UnitPrice: цена за единицу на момент заказа, дальше не пересчитывается.
	UnitPrice   decimal.Decimal
	ProductName string
	// SellerID денормализован при создании заказа и служит единственным
	// источником принадлежности позиции продавцу.
	SellerID  string
	CreatedAt time.Time
}

// LineTotal возвращает unitPrice × quantity.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order агрегирует состояние заказа и его позиции.
type Order struct {
	ID            string
	BuyerID       string
	AddressID     string
	Status        OrderStatus
	Total         decimal.Decimal
	PaymentMethod string
	PaymentStatus PaymentStatus
	Items         []OrderItem
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// MoneyScale: суммы хранятся с двумя знаками после запятой, NUMERIC(12,2) в PostgreSQL.
const MoneyScale = 2

// ValidPrice: цена неотрицательна и не теряет точности при хранении.
func ValidPrice(p decimal.Decimal) bool {
	return !p.IsNegative() && p.Equal(p.Round(MoneyScale))
}

// SumItems считает Σ(unitPrice × quantity) по позициям.
func SumItems(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error
	if o.BuyerID == "" {
		errs = append(errs, ErrBuyerRequired)
	}
	if o.AddressID == "" {
		errs = append(errs, ErrAddressRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	if !o.Status.Valid() {
		errs = append(errs, ErrStatusUnknown)
	}
	for _, item := range o.Items {
		if item.ProductID == "" {
			errs = append(errs, ErrProductRequired)
		}
		if item.Quantity <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if !ValidPrice(item.UnitPrice) {
			errs = append(errs, ErrItemPriceInvalid)
		}
	}
	// Итог фиксируется при создании и равен сумме позиций.
	if !o.Total.Equal(SumItems(o.Items)) {
		errs = append(errs, ErrAmountMismatch)
	}
	return errs
}

// OwnedBySeller сообщает, принадлежит ли продавцу хотя бы одна позиция заказа.
func (o *Order) OwnedBySeller(sellerID string) bool {
	if sellerID == "" {
		return false
	}
	for _, item := range o.Items {
		if item.SellerID == sellerID {
			return true
		}
	}
	return false
}

// SellerIDs возвращает продавцов заказа в порядке появления позиций, без повторов.
func (o *Order) SellerIDs() []string {
	seen := make(map[string]struct{}, len(o.Items))
	result := make([]string, 0, len(o.Items))
	for _, item := range o.Items {
		if _, ok := seen[item.SellerID]; ok {
			continue
		}
		seen[item.SellerID] = struct{}{}
		result = append(result, item.SellerID)
	}
	return result
}
