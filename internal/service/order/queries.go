package order

import (
	"context"
	"fmt"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

const defaultListLimit = 50

// Get возвращает заказ с позициями. Видят заказ покупатель, продавцы его позиций,
// логистика и админ.
func (m *Manager) Get(ctx context.Context, actor domain.Actor, orderID string) (domain.Order, error) {
	if err := actor.Validate(); err != nil {
		return domain.Order{}, err
	}
	order, err := m.load(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if !canView(actor, &order) {
		return domain.Order{}, fmt.Errorf("%w: order %s", domain.ErrUnauthorized, orderID)
	}
	return order, nil
}

// ListForBuyer возвращает заказы вызывающего покупателя, новые первыми.
func (m *Manager) ListForBuyer(ctx context.Context, actor domain.Actor, limit int) ([]domain.Order, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	orders, err := m.orders.ListByBuyer(ctx, actor.UserID, limit)
	if err != nil {
		return nil, domain.Dependency("orders.list_by_buyer", err)
	}
	return orders, nil
}

// ListForSeller возвращает заказы, где продавцу принадлежит хотя бы одна позиция.
// Принадлежность определяется только по seller_id позиции.
func (m *Manager) ListForSeller(ctx context.Context, actor domain.Actor, limit int) ([]domain.Order, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	if actor.Role != domain.RoleSeller && !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: seller role required", domain.ErrUnauthorized)
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	orders, err := m.orders.ListBySeller(ctx, actor.UserID, limit)
	if err != nil {
		return nil, domain.Dependency("orders.list_by_seller", err)
	}
	return orders, nil
}

// History возвращает историю заказа в хронологическом порядке.
func (m *Manager) History(ctx context.Context, actor domain.Actor, orderID string) ([]domain.TimelineEvent, error) {
	if _, err := m.Get(ctx, actor, orderID); err != nil {
		return nil, err
	}
	if m.timeline == nil {
		return []domain.TimelineEvent{}, nil
	}
	events, err := m.timeline.List(ctx, orderID)
	if err != nil {
		return nil, domain.Dependency("timeline.list", err)
	}
	return events, nil
}

func canView(actor domain.Actor, order *domain.Order) bool {
	switch {
	case actor.IsAdmin(), actor.Role == domain.RoleLogistics:
		return true
	case actor.UserID == order.BuyerID:
		return true
	default:
		return actor.Role == domain.RoleSeller && order.OwnedBySeller(actor.UserID)
	}
}
