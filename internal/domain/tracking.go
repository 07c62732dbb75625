package domain

import "time"

// TrackingStatus: статус отгрузки. Порядок значений задаёт направление движения.
type TrackingStatus string

const (
	TrackingWaitingPickup TrackingStatus = "waiting_pickup"
	TrackingInTransit     TrackingStatus = "in_transit"
	TrackingDelivered     TrackingStatus = "delivered"
)

var trackingRank = map[TrackingStatus]int{
	TrackingWaitingPickup: 1,
	TrackingInTransit:     2,
	TrackingDelivered:     3,
}

// Valid проверяет, что статус отгрузки известен.
func (s TrackingStatus) Valid() bool {
	_, ok := trackingRank[s]
	return ok
}

// IsForwardOf сообщает, что s строго дальше current по цепочке waiting_pickup → in_transit → delivered.
func (s TrackingStatus) IsForwardOf(current TrackingStatus) bool {
	return s.Valid() && trackingRank[s] > trackingRank[current]
}

// TrackingTargetFor возвращает статус отгрузки, соответствующий статусу заказа.
// Для статусов без отгрузки второй результат false.
func TrackingTargetFor(status OrderStatus) (TrackingStatus, bool) {
	switch status {
	case OrderStatusReadyForPickup:
		return TrackingWaitingPickup, true
	case OrderStatusDispatched:
		return TrackingInTransit, true
	case OrderStatusDelivered:
		return TrackingDelivered, true
	default:
		return "", false
	}
}

// LogisticsTracking: единственная запись отгрузки по заказу.
// StartLocation и EndLocation снимаются при создании и больше не меняются.
type LogisticsTracking struct {
	ID            string
	OrderID       string
	StartLocation Location
	EndLocation   Location
	Status        TrackingStatus
	CreatedBy     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
