package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

type donationRepositoryInMemory struct {
	mu    sync.RWMutex
	items []domain.DonationRequest
}

// NewDonationRepository создаёт in-memory реализацию DonationRepository.
func NewDonationRepository() domain.DonationRepository {
	return &donationRepositoryInMemory{}
}

func (r *donationRepositoryInMemory) Create(_ context.Context, req domain.DonationRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items = append(r.items, req)
	return nil
}

func (r *donationRepositoryInMemory) ListByRequester(_ context.Context, requesterID string) ([]domain.DonationRequest, error) {
	return r.filter(func(d domain.DonationRequest) bool { return d.RequesterID == requesterID }), nil
}

func (r *donationRepositoryInMemory) ListBySeller(_ context.Context, sellerID string) ([]domain.DonationRequest, error) {
	return r.filter(func(d domain.DonationRequest) bool { return d.SellerID == sellerID }), nil
}

func (r *donationRepositoryInMemory) filter(match func(domain.DonationRequest) bool) []domain.DonationRequest {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.DonationRequest, 0)
	for _, d := range r.items {
		if match(d) {
			result = append(result, d)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

var _ domain.DonationRepository = (*donationRepositoryInMemory)(nil)
