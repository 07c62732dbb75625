package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

type outboxState uint8

const (
	outboxPending outboxState = iota
	outboxSent
	outboxFailed
)

const defaultOutboxBatch = 100

type outboxEntry struct {
	msg   domain.OutboxMessage
	state outboxState
}

// OutboxRepository хранит outbox как журнал в порядке постановки.
type OutboxRepository struct {
	mu    sync.RWMutex
	log   []*outboxEntry
	index map[string]*outboxEntry
}

func NewOutboxRepository() *OutboxRepository {
	return &OutboxRepository{index: make(map[string]*outboxEntry)}
}

// Enqueue ставит сообщение в pending. Пустой payload сохраняется как {}.
func (r *OutboxRepository) Enqueue(_ context.Context, msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if len(msg.Payload) == 0 {
		msg.Payload = []byte("{}")
	}
	msg.Attempts = 0
	msg.CreatedAt = time.Now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()

	entry := &outboxEntry{msg: msg, state: outboxPending}
	r.log = append(r.log, entry)
	r.index[msg.ID] = entry
	return msg, nil
}

func (r *OutboxRepository) PullPending(_ context.Context, limit int) ([]domain.OutboxMessage, error) {
	if limit <= 0 {
		limit = defaultOutboxBatch
	}
	return r.collect(outboxPending, limit), nil
}

// Stats: журнал упорядочен, поэтому первое pending-сообщение самое старое.
func (r *OutboxRepository) Stats(_ context.Context) (domain.OutboxStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var stats domain.OutboxStats
	for _, e := range r.log {
		if e.state != outboxPending {
			continue
		}
		if stats.PendingCount == 0 {
			stats.OldestPendingAt = e.msg.CreatedAt
		}
		stats.PendingCount++
	}
	return stats, nil
}

func (r *OutboxRepository) MarkSent(_ context.Context, id string) error {
	return r.finish(id, outboxSent)
}

func (r *OutboxRepository) MarkFailed(_ context.Context, id string) error {
	return r.finish(id, outboxFailed)
}

func (r *OutboxRepository) finish(id string, state outboxState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.index[id]
	if !ok {
		return domain.ErrOutboxMessageMissing
	}
	entry.state = state
	entry.msg.Attempts++
	return nil
}

// AllPending отдаёт весь backlog; нужен тестам и проверкам после дренажа.
func (r *OutboxRepository) AllPending() []domain.OutboxMessage {
	return r.collect(outboxPending, 0)
}

func (r *OutboxRepository) AllFailed() []domain.OutboxMessage {
	return r.collect(outboxFailed, 0)
}

// collect копирует сообщения в состоянии state; limit <= 0 снимает ограничение.
func (r *OutboxRepository) collect(state outboxState, limit int) []domain.OutboxMessage {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.OutboxMessage, 0)
	for _, e := range r.log {
		if e.state != state {
			continue
		}
		result = append(result, e.msg)
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result
}

var _ domain.OutboxRepository = (*OutboxRepository)(nil)
