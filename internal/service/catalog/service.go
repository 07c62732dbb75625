package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

// ProductInput: карточка товара, которую заводит продавец.
type ProductInput struct {
	Name       string
	Price      decimal.Decimal
	Category   string
	Quantity   int
	Perishable bool
	ExpiryDate *time.Time
	Priority   string
}

// Service ведёт каталог товаров: заведение, просмотр и пополнение остатка.
type Service struct {
	products domain.ProductRepository
	ledger   domain.Ledger
	notifier domain.Notifier
	logger   *log.Entry
	now      func() time.Time
}

// NewService создаёт сервис каталога.
func NewService(products domain.ProductRepository, ledger domain.Ledger, notifier domain.Notifier, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.WithField("component", "catalog")
	}
	return &Service{
		products: products,
		ledger:   ledger,
		notifier: notifier,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateProduct заводит товар от имени продавца.
func (s *Service) CreateProduct(ctx context.Context, actor domain.Actor, in ProductInput) (domain.Product, error) {
	if err := actor.Validate(); err != nil {
		return domain.Product{}, err
	}
	if actor.Role != domain.RoleSeller {
		return domain.Product{}, fmt.Errorf("%w: only sellers can list products", domain.ErrUnauthorized)
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.Product{}, fmt.Errorf("%w: product name is required", domain.ErrValidation)
	}
	if !domain.ValidPrice(in.Price) {
		return domain.Product{}, domain.ErrItemPriceInvalid
	}
	if in.Quantity < 0 {
		return domain.Product{}, domain.ErrItemQtyInvalid
	}
	if in.Perishable && in.ExpiryDate == nil {
		return domain.Product{}, fmt.Errorf("%w: perishable product needs an expiry date", domain.ErrValidation)
	}

	now := s.now()
	product := domain.Product{
		ID:         uuid.NewString(),
		SellerID:   actor.UserID,
		Name:       name,
		Price:      in.Price,
		Category:   in.Category,
		Perishable: in.Perishable,
		ExpiryDate: in.ExpiryDate,
		Priority:   in.Priority,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	product.SetQuantity(in.Quantity)

	if err := s.products.Create(ctx, product); err != nil {
		return domain.Product{}, domain.Dependency("products.create", err)
	}
	s.logger.WithFields(log.Fields{
		"product_id": product.ID,
		"seller_id":  product.SellerID,
	}).Info("product listed")
	return product, nil
}

// Get возвращает товар. Каталог публичный.
func (s *Service) Get(ctx context.Context, productID string) (domain.Product, error) {
	if productID == "" {
		return domain.Product{}, domain.ErrProductRequired
	}
	product, err := s.products.Get(ctx, productID)
	if err != nil {
		return domain.Product{}, domain.Dependency("products.get", err)
	}
	return product, nil
}

// RecordView фиксирует просмотр товара и уведомляет продавца. viewerID может быть пустым
// для анонимного посетителя. Свои просмотры продавцу не приходят.
func (s *Service) RecordView(ctx context.Context, viewerID, productID string) error {
	product, err := s.Get(ctx, productID)
	if err != nil {
		return err
	}
	if viewerID == product.SellerID {
		return nil
	}
	s.notifier.Notify(ctx, domain.Notice{
		RecipientID: product.SellerID,
		Type:        domain.NotificationView,
		ProductID:   product.ID,
		FromUserID:  viewerID,
		Details:     domain.NoticeDetails{ProductName: product.Name},
	})
	return nil
}

// Restock пополняет остаток товара продавца.
func (s *Service) Restock(ctx context.Context, actor domain.Actor, productID string, amount int) (domain.Product, error) {
	if err := actor.Validate(); err != nil {
		return domain.Product{}, err
	}
	product, err := s.Get(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}
	if product.SellerID != actor.UserID && !actor.IsAdmin() {
		return domain.Product{}, fmt.Errorf("%w: product %s", domain.ErrUnauthorized, productID)
	}
	return s.ledger.Restock(ctx, productID, amount)
}
