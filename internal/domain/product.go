package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product: единица товара продавца, доступная для продажи или пожертвования.
type Product struct {
	ID       string
	SellerID string
	Name     string
	Price    decimal.Decimal
	Category string
	// AvailableQuantity никогда не бывает отрицательным.
	AvailableQuantity int
	// InStock всегда равен AvailableQuantity > 0.
	InStock    bool
	Perishable bool
	ExpiryDate *time.Time
	Priority   string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// SetQuantity записывает остаток с полом в ноль и пересчитывает InStock.
func (p *Product) SetQuantity(qty int) {
	if qty < 0 {
		qty = 0
	}
	p.AvailableQuantity = qty
	p.InStock = qty > 0
}

// FloorDecrement возвращает max(0, current-amount).
func FloorDecrement(current, amount int) int {
	next := current - amount
	if next < 0 {
		return 0
	}
	return next
}
