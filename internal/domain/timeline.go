package domain

import "time"

// Типы событий истории заказа.
const (
	TimelineOrderCreated     = "order_created"
	TimelineStatusChanged    = "status_changed"
	TimelineOrderCancelled   = "order_cancelled"
	TimelinePaymentConfirmed = "payment_confirmed"
)

// TimelineEvent описывает событие в жизненном цикле заказа.
type TimelineEvent struct {
	OrderID  string
	Type     string
	Reason   string
	ActorID  string
	Occurred time.Time
}
