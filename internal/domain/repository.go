package domain

import (
	"context"
	"time"
)

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет заказ вместе с позициями одной операцией.
	Create(ctx context.Context, order Order) error
	// Get возвращает заказ с позициями или ErrOrderNotFound, если его нет.
	Get(ctx context.Context, id string) (Order, error)
	// ListByBuyer возвращает заказы покупателя, новые первыми. limit <= 0: без ограничения.
	ListByBuyer(ctx context.Context, buyerID string, limit int) ([]Order, error)
	// ListBySeller возвращает заказы, где продавцу принадлежит хотя бы одна позиция (по order_items.seller_id).
	ListBySeller(ctx context.Context, sellerID string, limit int) ([]Order, error)
	// Save применяет обновления статуса и оплаты с учётом optimistic locking.
	Save(ctx context.Context, order Order) error
}

// ProductRepository хранит товары и их остатки.
type ProductRepository interface {
	Create(ctx context.Context, product Product) error
	Get(ctx context.Context, id string) (Product, error)
	// DecrementFloor атомарно уменьшает остаток с полом в ноль и возвращает обновлённый товар.
	DecrementFloor(ctx context.Context, id string, amount int) (Product, error)
	// Increment атомарно увеличивает остаток.
	Increment(ctx context.Context, id string, amount int) (Product, error)
}

// AddressRepository хранит адреса пользователей.
type AddressRepository interface {
	Create(ctx context.Context, address Address) error
	Get(ctx context.Context, id string) (Address, error)
	ListByUser(ctx context.Context, userID string) ([]Address, error)
}

// TrackingRepository хранит записи отслеживания, не более одной на заказ.
type TrackingRepository interface {
	// Create возвращает ErrTrackingExists, если запись для заказа уже есть.
	Create(ctx context.Context, tracking LogisticsTracking) error
	GetByOrder(ctx context.Context, orderID string) (LogisticsTracking, error)
	// UpdateStatus меняет только статус, снимки адресов не трогает.
	UpdateStatus(ctx context.Context, orderID string, status TrackingStatus, at time.Time) error
	// DeleteByOrder удаляет запись заказа и сообщает, существовала ли она.
	DeleteByOrder(ctx context.Context, orderID string) (bool, error)
}

// NotificationRepository хранит уведомления пользователей.
type NotificationRepository interface {
	Insert(ctx context.Context, n Notification) error
	ListByRecipient(ctx context.Context, userID string, limit int) ([]Notification, error)
	// MarkRead отмечает только уведомление, принадлежащее userID.
	MarkRead(ctx context.Context, id, userID string) error
	MarkAllRead(ctx context.Context, userID string) (int, error)
	CountUnread(ctx context.Context, userID string) (int, error)
}

// CartRepository хранит корзины покупателей.
type CartRepository interface {
	Add(ctx context.Context, item CartItem) error
	List(ctx context.Context, buyerID string) ([]CartItem, error)
	Clear(ctx context.Context, buyerID string) error
}

// DonationRepository хранит заявки на пожертвования.
type DonationRepository interface {
	Create(ctx context.Context, req DonationRequest) error
	ListByRequester(ctx context.Context, requesterID string) ([]DonationRequest, error)
	ListBySeller(ctx context.Context, sellerID string) ([]DonationRequest, error)
}
