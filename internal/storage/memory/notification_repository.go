package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

type notificationRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Notification
}

// NewNotificationRepository создаёт in-memory реализацию NotificationRepository.
func NewNotificationRepository() domain.NotificationRepository {
	return &notificationRepositoryInMemory{items: make(map[string]domain.Notification)}
}

func (r *notificationRepositoryInMemory) Insert(_ context.Context, n domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items[n.ID] = n
	return nil
}

// ListByRecipient возвращает уведомления пользователя, новые первыми.
func (r *notificationRepositoryInMemory) ListByRecipient(_ context.Context, userID string, limit int) ([]domain.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Notification, 0)
	for _, n := range r.items {
		if n.RecipientID == userID {
			result = append(result, n)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// MarkRead отмечает уведомление прочитанным. Чужие уведомления считаются несуществующими.
func (r *notificationRepositoryInMemory) MarkRead(_ context.Context, id, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.items[id]
	if !ok || n.RecipientID != userID {
		return domain.ErrNotificationNotFound
	}
	n.IsRead = true
	r.items[id] = n
	return nil
}

func (r *notificationRepositoryInMemory) MarkAllRead(_ context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	updated := 0
	for id, n := range r.items {
		if n.RecipientID != userID || n.IsRead {
			continue
		}
		n.IsRead = true
		r.items[id] = n
		updated++
	}
	return updated, nil
}

func (r *notificationRepositoryInMemory) CountUnread(_ context.Context, userID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, n := range r.items {
		if n.RecipientID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

var _ domain.NotificationRepository = (*notificationRepositoryInMemory)(nil)
