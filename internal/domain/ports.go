package domain

import "context"

// Ledger: складской учёт, который вызывает менеджер заказов.
type Ledger interface {
	// Decrement списывает amount с полом в ноль.
	Decrement(ctx context.Context, productID string, amount int) (Product, error)
	// CheckAvailability сравнивает остаток с amount без изменения состояния.
	CheckAvailability(ctx context.Context, productID string, amount int) (bool, error)
	// Restock возвращает единицы на склад.
	Restock(ctx context.Context, productID string, amount int) (Product, error)
}

// Notifier отправляет уведомления. Ошибки записи не возвращаются вызывающему.
type Notifier interface {
	Notify(ctx context.Context, notice Notice)
}

// AdvanceRequest: запрос на создание или продвижение отгрузки заказа.
type AdvanceRequest struct {
	OrderID       string
	SellerAddress Address
	BuyerAddress  Address
	Target        TrackingStatus
	ActorID       string
}

// TrackingCoordinator управляет записью отслеживания заказа.
type TrackingCoordinator interface {
	ResolveSellerAddress(ctx context.Context, sellerID string) (Address, error)
	CreateOrAdvance(ctx context.Context, req AdvanceRequest) (LogisticsTracking, error)
	Get(ctx context.Context, orderID string) (LogisticsTracking, error)
	Remove(ctx context.Context, orderID string) (bool, error)
}

// CartClearer: внешний сервис корзины.
type CartClearer interface {
	ClearCart(ctx context.Context, buyerID string) error
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(ctx context.Context, msg OutboxMessage) (OutboxMessage, error)
	PullPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	Stats(ctx context.Context) (OutboxStats, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// TimelineRepository хранит события жизненного цикла заказа.
type TimelineRepository interface {
	Append(ctx context.Context, event TimelineEvent) error
	List(ctx context.Context, orderID string) ([]TimelineEvent, error)
}
