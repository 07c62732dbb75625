package memory

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

// cartRepositoryInMemory хранит корзины; повторное добавление товара увеличивает количество.
type cartRepositoryInMemory struct {
	mu    sync.RWMutex
	carts map[string][]domain.CartItem
}

// NewCartRepository создаёт in-memory реализацию CartRepository.
func NewCartRepository() domain.CartRepository {
	return &cartRepositoryInMemory{carts: make(map[string][]domain.CartItem)}
}

func (r *cartRepositoryInMemory) Add(_ context.Context, item domain.CartItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	items := r.carts[item.BuyerID]
	for i := range items {
		if items[i].ProductID == item.ProductID {
			items[i].Quantity += item.Quantity
			items[i].UnitPrice = item.UnitPrice
			return nil
		}
	}
	r.carts[item.BuyerID] = append(items, item)
	return nil
}

func (r *cartRepositoryInMemory) List(_ context.Context, buyerID string) ([]domain.CartItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := r.carts[buyerID]
	result := make([]domain.CartItem, len(items))
	copy(result, items)
	return result, nil
}

func (r *cartRepositoryInMemory) Clear(_ context.Context, buyerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.carts, buyerID)
	return nil
}

var _ domain.CartRepository = (*cartRepositoryInMemory)(nil)
