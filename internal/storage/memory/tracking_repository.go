package memory

import (
	"context"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

// trackingRepositoryInMemory держит не более одной записи на заказ (ключ: orderID).
type trackingRepositoryInMemory struct {
	mu      sync.RWMutex
	byOrder map[string]domain.LogisticsTracking
}

// NewTrackingRepository создаёт in-memory реализацию TrackingRepository.
func NewTrackingRepository() domain.TrackingRepository {
	return &trackingRepositoryInMemory{byOrder: make(map[string]domain.LogisticsTracking)}
}

func (r *trackingRepositoryInMemory) Create(_ context.Context, tracking domain.LogisticsTracking) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byOrder[tracking.OrderID]; exists {
		return domain.ErrTrackingExists
	}
	r.byOrder[tracking.OrderID] = tracking
	return nil
}

func (r *trackingRepositoryInMemory) GetByOrder(_ context.Context, orderID string) (domain.LogisticsTracking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tracking, ok := r.byOrder[orderID]
	if !ok {
		return domain.LogisticsTracking{}, domain.ErrTrackingNotFound
	}
	return tracking, nil
}

func (r *trackingRepositoryInMemory) UpdateStatus(_ context.Context, orderID string, status domain.TrackingStatus, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tracking, ok := r.byOrder[orderID]
	if !ok {
		return domain.ErrTrackingNotFound
	}
	tracking.Status = status
	tracking.UpdatedAt = at
	r.byOrder[orderID] = tracking
	return nil
}

func (r *trackingRepositoryInMemory) DeleteByOrder(_ context.Context, orderID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byOrder[orderID]; !ok {
		return false, nil
	}
	delete(r.byOrder, orderID)
	return true, nil
}

var _ domain.TrackingRepository = (*trackingRepositoryInMemory)(nil)
