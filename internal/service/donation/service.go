package donation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

// DonationInput: заявка на безвозмездную передачу товара.
type DonationInput struct {
	ProductID string
	Quantity  int
	Note      string
}

// Service обрабатывает заявки на пожертвование товара.
type Service struct {
	requests domain.DonationRepository
	products domain.ProductRepository
	ledger   domain.Ledger
	notifier domain.Notifier
	logger   *log.Entry
	now      func() time.Time
}

// NewService создаёт сервис пожертвований.
func NewService(
	requests domain.DonationRepository,
	products domain.ProductRepository,
	ledger domain.Ledger,
	notifier domain.Notifier,
	logger *log.Entry,
) *Service {
	if logger == nil {
		logger = log.WithField("component", "donations")
	}
	return &Service{
		requests: requests,
		products: products,
		ledger:   ledger,
		notifier: notifier,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Request регистрирует заявку: списывает единицы товара и уведомляет продавца.
// Если заявку не удалось сохранить, списание возвращается на склад.
func (s *Service) Request(ctx context.Context, actor domain.Actor, in DonationInput) (domain.DonationRequest, error) {
	if err := actor.Validate(); err != nil {
		return domain.DonationRequest{}, err
	}

	now := s.now()
	req := domain.DonationRequest{
		ID:          uuid.NewString(),
		ProductID:   in.ProductID,
		RequesterID: actor.UserID,
		Quantity:    in.Quantity,
		Note:        in.Note,
		Status:      domain.DonationStatusRequested,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if errs := req.Validate(); len(errs) > 0 {
		return domain.DonationRequest{}, errors.Join(errs...)
	}

	product, err := s.products.Get(ctx, in.ProductID)
	if err != nil {
		return domain.DonationRequest{}, domain.Dependency("products.get", err)
	}
	if product.SellerID == actor.UserID {
		return domain.DonationRequest{}, fmt.Errorf("%w: seller cannot request own product", domain.ErrValidation)
	}
	if product.AvailableQuantity < in.Quantity {
		return domain.DonationRequest{}, fmt.Errorf("%w: product %s", domain.ErrInsufficientStock, product.ID)
	}
	req.SellerID = product.SellerID

	if _, err := s.ledger.Decrement(ctx, product.ID, in.Quantity); err != nil {
		return domain.DonationRequest{}, err
	}

	entry := s.logger.WithFields(log.Fields{
		"donation_id":  req.ID,
		"product_id":   req.ProductID,
		"requester_id": req.RequesterID,
	})
	if err := s.requests.Create(ctx, req); err != nil {
		if _, rsErr := s.ledger.Restock(ctx, product.ID, in.Quantity); rsErr != nil {
			entry.WithError(rsErr).Error("failed to return donated units to stock")
		}
		return domain.DonationRequest{}, domain.Dependency("donations.create", err)
	}
	entry.WithField("quantity", req.Quantity).Info("donation requested")

	s.notifier.Notify(ctx, domain.Notice{
		RecipientID: product.SellerID,
		Type:        domain.NotificationDonation,
		ProductID:   product.ID,
		FromUserID:  actor.UserID,
		Details:     domain.NoticeDetails{ProductName: product.Name, Quantity: in.Quantity},
	})
	return req, nil
}

// List возвращает продавцу заявки по его товарам, остальным созданные ими.
func (s *Service) List(ctx context.Context, actor domain.Actor) ([]domain.DonationRequest, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	var (
		result []domain.DonationRequest
		err    error
	)
	if actor.Role == domain.RoleSeller {
		result, err = s.requests.ListBySeller(ctx, actor.UserID)
	} else {
		result, err = s.requests.ListByRequester(ctx, actor.UserID)
	}
	if err != nil {
		return nil, domain.Dependency("donations.list", err)
	}
	return result, nil
}
