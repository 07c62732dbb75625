package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

const (
	saveMaxRetries = 3
	saveBaseDelay  = 10 * time.Millisecond
)

// UpdateStatus переводит заказ в target. Для статусов отгрузки запись отслеживания
// создаётся или продвигается до сохранения статуса, поэтому повтор после сбоя
// сохранения доводит заказ до нужного состояния.
func (m *Manager) UpdateStatus(ctx context.Context, actor domain.Actor, orderID string, target domain.OrderStatus) (order domain.Order, err error) {
	switch target {
	case domain.OrderStatusCancelled:
		return m.Cancel(ctx, actor, orderID, "")
	case domain.OrderStatusProcessing:
		// processing без оплаты недостижим
		return m.ConfirmPayment(ctx, actor, orderID)
	}

	start := time.Now()
	defer func() { m.metrics.RecordOperation("update_status", err, time.Since(start)) }()

	if err := actor.Validate(); err != nil {
		return domain.Order{}, err
	}
	if !target.Valid() {
		return domain.Order{}, fmt.Errorf("%w: %q", domain.ErrStatusUnknown, target)
	}

	order, err = m.load(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if err := authorizeTransition(actor, &order, target); err != nil {
		return domain.Order{}, err
	}
	if err := checkTransition(&order, target); err != nil {
		return domain.Order{}, err
	}

	trackingTarget, shipping := domain.TrackingTargetFor(target)
	if shipping {
		if err := m.advanceTracking(ctx, actor, &order, trackingTarget); err != nil {
			return domain.Order{}, err
		}
	}

	from := order.Status
	err = m.persist(ctx, &order, func(o *domain.Order) error {
		if err := checkTransition(o, target); err != nil {
			return err
		}
		o.Status = target
		return nil
	})
	if err != nil {
		if shipping && errors.Is(err, domain.ErrInvalidTransition) {
			m.dropTrackingIfCancelled(ctx, order.ID)
		}
		return domain.Order{}, err
	}

	m.metrics.RecordTransition(string(from), string(target))
	m.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"from":     from,
		"to":       target,
		"actor_id": actor.UserID,
	}).Info("order status changed")
	m.emitStatusEvent(ctx, &order, from, actor.UserID)
	return order, nil
}

// ConfirmPayment фиксирует внешнее подтверждение оплаты: pending → processing, оплата paid.
func (m *Manager) ConfirmPayment(ctx context.Context, actor domain.Actor, orderID string) (order domain.Order, err error) {
	start := time.Now()
	defer func() { m.metrics.RecordOperation("confirm_payment", err, time.Since(start)) }()

	if err := actor.Validate(); err != nil {
		return domain.Order{}, err
	}
	if !actor.IsAdmin() {
		return domain.Order{}, fmt.Errorf("%w: payment confirmation requires admin", domain.ErrUnauthorized)
	}

	order, err = m.load(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if err := checkTransition(&order, domain.OrderStatusProcessing); err != nil {
		return domain.Order{}, err
	}

	from := order.Status
	err = m.persist(ctx, &order, func(o *domain.Order) error {
		if err := checkTransition(o, domain.OrderStatusProcessing); err != nil {
			return err
		}
		o.Status = domain.OrderStatusProcessing
		o.PaymentStatus = domain.PaymentStatusPaid
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	m.metrics.RecordTransition(string(from), string(order.Status))
	m.logger.WithField("order_id", order.ID).Info("payment confirmed")
	m.emitEvent(ctx, &order, domain.EventOrderStatusChanged, domain.TimelinePaymentConfirmed, actor.UserID, map[string]any{
		"from":           from,
		"status":         order.Status,
		"payment_status": order.PaymentStatus,
		"ts":             order.UpdatedAt.Format(time.RFC3339Nano),
	})
	return order, nil
}

// Cancel отменяет заказ из pending или processing. Удаление отгрузки, запись в историю
// и событие выполняются по принципу best-effort.
func (m *Manager) Cancel(ctx context.Context, actor domain.Actor, orderID, reason string) (order domain.Order, err error) {
	start := time.Now()
	defer func() { m.metrics.RecordOperation("cancel_order", err, time.Since(start)) }()

	if err := actor.Validate(); err != nil {
		return domain.Order{}, err
	}

	order, err = m.load(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if !canCancel(actor, &order) {
		return domain.Order{}, fmt.Errorf("%w: caller does not own order %s", domain.ErrUnauthorized, orderID)
	}
	if err := checkTransition(&order, domain.OrderStatusCancelled); err != nil {
		return domain.Order{}, err
	}

	from := order.Status
	err = m.persist(ctx, &order, func(o *domain.Order) error {
		if err := checkTransition(o, domain.OrderStatusCancelled); err != nil {
			return err
		}
		o.Status = domain.OrderStatusCancelled
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	entry := m.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"from":     from,
		"actor_id": actor.UserID,
	})
	entry.Info("order cancelled")
	m.metrics.RecordCancellation()
	m.metrics.RecordTransition(string(from), string(domain.OrderStatusCancelled))

	if _, rmErr := m.tracking.Remove(ctx, order.ID); rmErr != nil {
		entry.WithError(rmErr).Warn("failed to remove logistics tracking for cancelled order")
	}

	if m.cfg.RestoreStockOnCancel {
		for _, item := range order.Items {
			if _, rsErr := m.ledger.Restock(ctx, item.ProductID, item.Quantity); rsErr != nil {
				entry.WithError(rsErr).WithField("product_id", item.ProductID).Warn("failed to restore stock")
			}
		}
	}

	payload := map[string]any{
		"from":   from,
		"status": order.Status,
		"reason": reason,
		"ts":     order.UpdatedAt.Format(time.RFC3339Nano),
	}
	if reason == "" {
		delete(payload, "reason")
	}
	m.emitEvent(ctx, &order, domain.EventOrderCanceled, domain.TimelineOrderCancelled, actor.UserID, payload)
	return order, nil
}

// advanceTracking продвигает существующую отгрузку или создаёт новую.
// Адреса нужны только для создания: снимки делаются один раз, и ErrNoAddress
// возвращается до любых записей.
func (m *Manager) advanceTracking(ctx context.Context, actor domain.Actor, order *domain.Order, target domain.TrackingStatus) error {
	req := domain.AdvanceRequest{OrderID: order.ID, Target: target, ActorID: actor.UserID}

	_, err := m.tracking.Get(ctx, order.ID)
	switch {
	case err == nil:
		_, err = m.tracking.CreateOrAdvance(ctx, req)
		return err
	case !errors.Is(err, domain.ErrTrackingNotFound):
		return err
	}

	sellerID := actor.UserID
	if actor.Role != domain.RoleSeller {
		sellers := order.SellerIDs()
		if len(sellers) == 0 {
			return fmt.Errorf("%w: order %s has no seller", domain.ErrNoAddress, order.ID)
		}
		sellerID = sellers[0]
	}

	if req.SellerAddress, err = m.tracking.ResolveSellerAddress(ctx, sellerID); err != nil {
		return err
	}
	if req.BuyerAddress, err = m.addresses.Get(ctx, order.AddressID); err != nil {
		return domain.Dependency("addresses.get", err)
	}

	_, err = m.tracking.CreateOrAdvance(ctx, req)
	return err
}

// dropTrackingIfCancelled убирает отгрузку, созданную для заказа, который отменили
// между чтением и сохранением статуса.
func (m *Manager) dropTrackingIfCancelled(ctx context.Context, orderID string) {
	fresh, err := m.load(ctx, orderID)
	if err != nil || fresh.Status != domain.OrderStatusCancelled {
		return
	}
	if _, err := m.tracking.Remove(ctx, orderID); err != nil {
		m.logger.WithError(err).WithField("order_id", orderID).Warn("failed to remove tracking of cancelled order")
	}
}

// persist сохраняет изменения заказа. При конфликте версий заказ перечитывается,
// apply применяется заново к свежему состоянию.
func (m *Manager) persist(ctx context.Context, order *domain.Order, apply func(o *domain.Order) error) error {
	for attempt := 0; attempt < saveMaxRetries; attempt++ {
		candidate := *order
		if err := apply(&candidate); err != nil {
			return err
		}
		candidate.UpdatedAt = m.now()

		err := m.orders.Save(ctx, candidate)
		if err == nil {
			candidate.Version++
			*order = candidate
			return nil
		}

		if !domain.IsVersionConflict(err) {
			m.logger.WithError(err).WithFields(log.Fields{
				"order_id": order.ID,
				"attempt":  attempt + 1,
			}).Error("failed to persist order")
			return domain.Dependency("orders.save", err)
		}
		if attempt == saveMaxRetries-1 {
			break
		}

		m.logger.WithFields(log.Fields{
			"order_id": order.ID,
			"attempt":  attempt + 1,
			"version":  order.Version,
		}).Warn("version conflict detected, retrying")

		fresh, loadErr := m.load(ctx, order.ID)
		if loadErr != nil {
			return loadErr
		}
		*order = fresh

		delay := saveBaseDelay * time.Duration(1<<uint(attempt))
		select {
		case <-ctx.Done():
			return domain.Dependency("orders.save", ctx.Err())
		case <-time.After(delay):
		}
	}
	return domain.Dependency("orders.save", domain.ErrOrderVersionConflict)
}

func (m *Manager) load(ctx context.Context, orderID string) (domain.Order, error) {
	if orderID == "" {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	order, err := m.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, domain.Dependency("orders.get", err)
	}
	return order, nil
}

func checkTransition(order *domain.Order, target domain.OrderStatus) error {
	if order.Status.CanTransitionTo(target) {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, order.Status, target)
}

// authorizeTransition пускает продавца с позицией в заказе к сборке и отгрузке,
// логистику к доставке, админа ко всему.
func authorizeTransition(actor domain.Actor, order *domain.Order, target domain.OrderStatus) error {
	if actor.IsAdmin() {
		return nil
	}
	switch {
	case target.IsFulfillment():
		if actor.Role == domain.RoleSeller && order.OwnedBySeller(actor.UserID) {
			return nil
		}
	case target == domain.OrderStatusDelivered:
		if actor.Role == domain.RoleLogistics {
			return nil
		}
	}
	return fmt.Errorf("%w: %s cannot move order %s to %s", domain.ErrUnauthorized, actor.Role, order.ID, target)
}

// canCancel: покупатель-владелец, продавец с позицией в заказе или админ.
func canCancel(actor domain.Actor, order *domain.Order) bool {
	if actor.IsAdmin() {
		return true
	}
	if actor.UserID == order.BuyerID {
		return true
	}
	return actor.Role == domain.RoleSeller && order.OwnedBySeller(actor.UserID)
}
