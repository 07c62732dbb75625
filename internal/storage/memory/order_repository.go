package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

type orderRepositoryInMemory struct {
	mu     sync.RWMutex
	orders map[string]domain.Order
}

// NewOrderRepository хранит заказы в памяти процесса. Наружу отдаются только копии.
func NewOrderRepository() domain.OrderRepository {
	return &orderRepositoryInMemory{orders: make(map[string]domain.Order)}
}

// Create: повторный ID трактуется как конфликт версии, как уникальный ключ в PostgreSQL.
func (r *orderRepositoryInMemory) Create(_ context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.orders[order.ID]; taken {
		return domain.ErrOrderVersionConflict
	}
	r.orders[order.ID] = cloneOrder(order)
	return nil
}

func (r *orderRepositoryInMemory) Get(_ context.Context, id string) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if order, ok := r.orders[id]; ok {
		return cloneOrder(order), nil
	}
	return domain.Order{}, domain.ErrOrderNotFound
}

func (r *orderRepositoryInMemory) ListByBuyer(_ context.Context, buyerID string, limit int) ([]domain.Order, error) {
	return r.newestFirst(limit, func(o domain.Order) bool { return o.BuyerID == buyerID }), nil
}

func (r *orderRepositoryInMemory) ListBySeller(_ context.Context, sellerID string, limit int) ([]domain.Order, error) {
	return r.newestFirst(limit, func(o domain.Order) bool { return o.OwnedBySeller(sellerID) }), nil
}

// newestFirst сортирует по created_at, затем по id, оба по убыванию.
func (r *orderRepositoryInMemory) newestFirst(limit int, keep func(domain.Order) bool) []domain.Order {
	r.mu.RLock()
	matched := make([]domain.Order, 0)
	for _, order := range r.orders {
		if keep(order) {
			matched = append(matched, cloneOrder(order))
		}
	}
	r.mu.RUnlock()

	slices.SortFunc(matched, func(a, b domain.Order) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	if limit > 0 {
		matched = matched[:min(limit, len(matched))]
	}
	return matched
}

// Save применяет только статус, оплату и время изменения при совпадении версии.
func (r *orderRepositoryInMemory) Save(_ context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.orders[order.ID]
	switch {
	case !ok:
		return domain.ErrOrderNotFound
	case stored.Version != order.Version:
		return domain.ErrOrderVersionConflict
	}

	stored.Status = order.Status
	stored.PaymentStatus = order.PaymentStatus
	stored.UpdatedAt = order.UpdatedAt
	stored.Version++
	r.orders[order.ID] = stored
	return nil
}

func cloneOrder(order domain.Order) domain.Order {
	order.Items = slices.Clone(order.Items)
	return order
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
