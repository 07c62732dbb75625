package tracking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
	"github.com/vladislavdragonenkov/marketplace/internal/metrics"
)

// Coordinator ведёт единственную запись отслеживания на заказ.
type Coordinator struct {
	tracking  domain.TrackingRepository
	addresses domain.AddressRepository
	logger    *log.Entry
	metrics   *metrics.MarketMetrics
	now       func() time.Time
}

// NewCoordinator создаёт координатор отгрузок.
func NewCoordinator(
	tracking domain.TrackingRepository,
	addresses domain.AddressRepository,
	m *metrics.MarketMetrics,
	logger *log.Entry,
) *Coordinator {
	if logger == nil {
		logger = log.WithField("component", "tracking")
	}
	return &Coordinator{
		tracking:  tracking,
		addresses: addresses,
		logger:    logger,
		metrics:   m,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ResolveSellerAddress выбирает адрес продавца: сначала адрес по умолчанию, затем любой.
func (c *Coordinator) ResolveSellerAddress(ctx context.Context, sellerID string) (domain.Address, error) {
	addresses, err := c.addresses.ListByUser(ctx, sellerID)
	if err != nil {
		return domain.Address{}, domain.Dependency("addresses.list", err)
	}
	for _, address := range addresses {
		if address.IsDefault {
			return address, nil
		}
	}
	if len(addresses) > 0 {
		return addresses[0], nil
	}
	return domain.Address{}, fmt.Errorf("%w: seller %s", domain.ErrNoAddress, sellerID)
}

// CreateOrAdvance создаёт запись в waiting_pickup со снимками адресов либо продвигает
// существующую вперёд. Обратные и повторные переходы ничего не меняют.
func (c *Coordinator) CreateOrAdvance(ctx context.Context, req domain.AdvanceRequest) (domain.LogisticsTracking, error) {
	if req.OrderID == "" {
		return domain.LogisticsTracking{}, fmt.Errorf("%w: order_id is required", domain.ErrValidation)
	}
	if !req.Target.Valid() {
		return domain.LogisticsTracking{}, fmt.Errorf("%w: unknown tracking status %q", domain.ErrValidation, req.Target)
	}

	entry := c.logger.WithFields(log.Fields{
		"order_id": req.OrderID,
		"target":   req.Target,
	})

	created := false
	current, err := c.tracking.GetByOrder(ctx, req.OrderID)
	switch {
	case errors.Is(err, domain.ErrTrackingNotFound):
		current, created, err = c.create(ctx, req)
		if err != nil {
			return domain.LogisticsTracking{}, err
		}
		if created {
			entry.Info("logistics tracking created")
		}
	case err != nil:
		return domain.LogisticsTracking{}, domain.Dependency("tracking.get", err)
	}

	if !req.Target.IsForwardOf(current.Status) {
		if !created {
			c.metrics.RecordTrackingWrite("noop")
		}
		return current, nil
	}

	at := c.now()
	if err := c.tracking.UpdateStatus(ctx, req.OrderID, req.Target, at); err != nil {
		return domain.LogisticsTracking{}, domain.Dependency("tracking.update_status", err)
	}
	entry.WithField("from", current.Status).Info("logistics tracking advanced")
	c.metrics.RecordTrackingWrite("advanced")

	current.Status = req.Target
	current.UpdatedAt = at
	return current, nil
}

func (c *Coordinator) create(ctx context.Context, req domain.AdvanceRequest) (domain.LogisticsTracking, bool, error) {
	now := c.now()
	row := domain.LogisticsTracking{
		ID:            uuid.NewString(),
		OrderID:       req.OrderID,
		StartLocation: req.SellerAddress.Snapshot(),
		EndLocation:   req.BuyerAddress.Snapshot(),
		Status:        domain.TrackingWaitingPickup,
		CreatedBy:     req.ActorID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err := c.tracking.Create(ctx, row)
	if err == nil {
		c.metrics.RecordTrackingWrite("created")
		return row, true, nil
	}
	if !errors.Is(err, domain.ErrTrackingExists) {
		return domain.LogisticsTracking{}, false, domain.Dependency("tracking.create", err)
	}

	// Параллельный вызов успел создать запись: работаем с ней, снимки не перезаписываем.
	existing, getErr := c.tracking.GetByOrder(ctx, req.OrderID)
	if getErr != nil {
		return domain.LogisticsTracking{}, false, domain.Dependency("tracking.get", getErr)
	}
	return existing, false, nil
}

// Get возвращает запись отслеживания заказа.
func (c *Coordinator) Get(ctx context.Context, orderID string) (domain.LogisticsTracking, error) {
	row, err := c.tracking.GetByOrder(ctx, orderID)
	if err != nil {
		return domain.LogisticsTracking{}, domain.Dependency("tracking.get", err)
	}
	return row, nil
}

// Remove удаляет запись заказа, если она есть. Отсутствие записи не ошибка.
func (c *Coordinator) Remove(ctx context.Context, orderID string) (bool, error) {
	deleted, err := c.tracking.DeleteByOrder(ctx, orderID)
	if err != nil {
		return false, domain.Dependency("tracking.delete", err)
	}
	if deleted {
		c.metrics.RecordTrackingWrite("deleted")
		c.logger.WithField("order_id", orderID).Info("logistics tracking removed")
	}
	return deleted, nil
}

var _ domain.TrackingCoordinator = (*Coordinator)(nil)
