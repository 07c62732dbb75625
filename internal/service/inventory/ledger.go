package inventory

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
	"github.com/vladislavdragonenkov/marketplace/internal/metrics"
)

// Ledger: складской учёт остатков товаров.
type Ledger struct {
	products domain.ProductRepository
	logger   *log.Entry
	metrics  *metrics.MarketMetrics
}

// NewLedger создаёт Ledger поверх хранилища товаров. metrics может быть nil.
func NewLedger(products domain.ProductRepository, m *metrics.MarketMetrics, logger *log.Entry) *Ledger {
	if logger == nil {
		logger = log.WithField("component", "inventory-ledger")
	}
	return &Ledger{products: products, logger: logger, metrics: m}
}

// Decrement списывает amount единиц. Остаток не уходит ниже нуля: превышение не отклоняется,
// а поглощается полом. Хранилище выполняет списание одной атомарной операцией.
func (l *Ledger) Decrement(ctx context.Context, productID string, amount int) (product domain.Product, err error) {
	start := time.Now()
	defer func() { l.metrics.RecordOperation("inventory_decrement", err, time.Since(start)) }()

	if productID == "" {
		return domain.Product{}, domain.ErrProductRequired
	}
	if amount <= 0 {
		return domain.Product{}, domain.ErrItemQtyInvalid
	}

	product, err = l.products.DecrementFloor(ctx, productID, amount)
	if err != nil {
		l.metrics.RecordInventoryDecrement("failed")
		return domain.Product{}, domain.Dependency("inventory.decrement", err)
	}

	if product.AvailableQuantity == 0 {
		l.metrics.RecordInventoryDecrement("depleted")
		l.logger.WithFields(log.Fields{
			"product_id": productID,
			"amount":     amount,
		}).Info("product is out of stock after decrement")
	} else {
		l.metrics.RecordInventoryDecrement("ok")
	}
	return product, nil
}

// CheckAvailability сообщает, хватает ли остатка. Результат не резервирует товар.
func (l *Ledger) CheckAvailability(ctx context.Context, productID string, amount int) (bool, error) {
	if productID == "" {
		return false, domain.ErrProductRequired
	}
	product, err := l.products.Get(ctx, productID)
	if err != nil {
		return false, domain.Dependency("inventory.check", err)
	}
	return product.AvailableQuantity >= amount, nil
}

// Restock возвращает amount единиц на склад.
func (l *Ledger) Restock(ctx context.Context, productID string, amount int) (domain.Product, error) {
	if productID == "" {
		return domain.Product{}, domain.ErrProductRequired
	}
	if amount <= 0 {
		return domain.Product{}, domain.ErrItemQtyInvalid
	}
	product, err := l.products.Increment(ctx, productID, amount)
	if err != nil {
		return domain.Product{}, domain.Dependency("inventory.restock", err)
	}
	l.logger.WithFields(log.Fields{
		"product_id": productID,
		"amount":     amount,
		"available":  product.AvailableQuantity,
	}).Debug("product restocked")
	return product, nil
}

var _ domain.Ledger = (*Ledger)(nil)
