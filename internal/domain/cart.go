package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartItem: позиция корзины покупателя.
type CartItem struct {
	BuyerID   string
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
	AddedAt   time.Time
}
