package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

type addressRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Address
}

// NewAddressRepository создаёт in-memory реализацию AddressRepository.
func NewAddressRepository() domain.AddressRepository {
	return &addressRepositoryInMemory{items: make(map[string]domain.Address)}
}

func (r *addressRepositoryInMemory) Create(_ context.Context, address domain.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items[address.ID] = address
	return nil
}

func (r *addressRepositoryInMemory) Get(_ context.Context, id string) (domain.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	address, ok := r.items[id]
	if !ok {
		return domain.Address{}, domain.ErrAddressNotFound
	}
	return address, nil
}

// ListByUser возвращает адреса пользователя в порядке создания.
func (r *addressRepositoryInMemory) ListByUser(_ context.Context, userID string) ([]domain.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Address, 0)
	for _, address := range r.items {
		if address.UserID == userID {
			result = append(result, address)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

var _ domain.AddressRepository = (*addressRepositoryInMemory)(nil)
