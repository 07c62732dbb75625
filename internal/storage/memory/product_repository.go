package memory

import (
	"context"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

// productRepositoryInMemory хранит товары; изменения остатка выполняются под одной блокировкой.
type productRepositoryInMemory struct {
	mu    sync.Mutex
	items map[string]domain.Product
}

// NewProductRepository создаёт in-memory реализацию ProductRepository.
func NewProductRepository() domain.ProductRepository {
	return &productRepositoryInMemory{items: make(map[string]domain.Product)}
}

func (r *productRepositoryInMemory) Create(_ context.Context, product domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	product.SetQuantity(product.AvailableQuantity)
	r.items[product.ID] = product
	return nil
}

func (r *productRepositoryInMemory) Get(_ context.Context, id string) (domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.items[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return product, nil
}

// DecrementFloor уменьшает остаток, не опуская его ниже нуля.
func (r *productRepositoryInMemory) DecrementFloor(_ context.Context, id string, amount int) (domain.Product, error) {
	return r.mutate(id, func(p *domain.Product) {
		p.SetQuantity(domain.FloorDecrement(p.AvailableQuantity, amount))
	})
}

// Increment возвращает единицы на склад.
func (r *productRepositoryInMemory) Increment(_ context.Context, id string, amount int) (domain.Product, error) {
	return r.mutate(id, func(p *domain.Product) {
		p.SetQuantity(p.AvailableQuantity + amount)
	})
}

func (r *productRepositoryInMemory) mutate(id string, fn func(p *domain.Product)) (domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.items[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	fn(&product)
	product.UpdatedAt = time.Now().UTC()
	r.items[id] = product
	return product, nil
}

var _ domain.ProductRepository = (*productRepositoryInMemory)(nil)
