package order

import (
	"context"
	"encoding/json"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

func (m *Manager) emitStatusEvent(ctx context.Context, order *domain.Order, from domain.OrderStatus, actorID string) {
	payload := map[string]any{
		"from":       from,
		"status":     order.Status,
		"updated_at": order.UpdatedAt.Format(time.RFC3339Nano),
		"ts":         order.UpdatedAt.Format(time.RFC3339Nano),
	}
	m.emitEvent(ctx, order, domain.EventOrderStatusChanged, domain.TimelineStatusChanged, actorID, payload)
}

// emitEvent пишет событие в outbox и историю заказа. Оба шага best-effort.
func (m *Manager) emitEvent(ctx context.Context, order *domain.Order, eventType, timelineType, actorID string, payload map[string]any) {
	if payload == nil {
		payload = make(map[string]any)
	}
	payload["order_id"] = order.ID

	entry := m.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"event":    eventType,
	})

	if m.outbox != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			entry.WithError(err).Error("marshal event failed")
		} else {
			msg := domain.OutboxMessage{
				AggregateType: domain.AggregateOrder,
				AggregateID:   order.ID,
				EventType:     eventType,
				Payload:       data,
			}
			if _, err := m.outbox.Enqueue(ctx, msg); err != nil {
				entry.WithError(err).Error("enqueue event failed")
			} else {
				m.metrics.RecordOutboxEvent()
			}
		}
	}

	if m.timeline == nil {
		return
	}
	var reason string
	if r, ok := payload["reason"].(string); ok {
		reason = r
	}
	occurred := order.UpdatedAt
	if occurred.IsZero() {
		occurred = m.now()
	}
	event := domain.TimelineEvent{
		OrderID:  order.ID,
		Type:     timelineType,
		Reason:   reason,
		ActorID:  actorID,
		Occurred: occurred,
	}
	if err := m.timeline.Append(ctx, event); err != nil {
		entry.WithError(err).Warn("append timeline event failed")
		return
	}
	m.metrics.RecordTimelineEvent()
}

// emitDecrementFailure сохраняет запись для сверки остатка, который не удалось списать.
func (m *Manager) emitDecrementFailure(ctx context.Context, order domain.Order, item domain.OrderItem, cause error) {
	if m.outbox == nil {
		return
	}
	data, err := json.Marshal(map[string]any{
		"order_id":   order.ID,
		"item_id":    item.ID,
		"product_id": item.ProductID,
		"quantity":   item.Quantity,
		"error":      cause.Error(),
		"ts":         m.now().Format(time.RFC3339Nano),
	})
	if err != nil {
		m.logger.WithError(err).WithField("order_id", order.ID).Error("marshal decrement failure failed")
		return
	}
	msg := domain.OutboxMessage{
		AggregateType: domain.AggregateInventory,
		AggregateID:   item.ProductID,
		EventType:     domain.EventInventoryDecrementFailed,
		Payload:       data,
	}
	if _, err := m.outbox.Enqueue(ctx, msg); err != nil {
		m.logger.WithError(err).WithFields(log.Fields{
			"order_id":   order.ID,
			"product_id": item.ProductID,
		}).Error("enqueue decrement failure failed")
		return
	}
	m.metrics.RecordOutboxEvent()
}
