package domain

import "time"

// Агрегаты событий outbox.
const (
	AggregateOrder        = "order"
	AggregateNotification = "notification"
	AggregateInventory    = "inventory"
)

// Типы событий outbox.
const (
	EventOrderCreated             = "order.created"
	EventOrderStatusChanged       = "order.status_changed"
	EventOrderCanceled            = "order.canceled"
	EventNotificationCreated      = "notification.created"
	EventInventoryDecrementFailed = "inventory.decrement_failed"
)

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	Attempts      int
	CreatedAt     time.Time
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
