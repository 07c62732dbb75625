package cart

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

// Service: корзина покупателя.
type Service struct {
	carts    domain.CartRepository
	products domain.ProductRepository
	notifier domain.Notifier
	logger   *log.Entry
	now      func() time.Time
}

// NewService создаёт сервис корзины.
func NewService(carts domain.CartRepository, products domain.ProductRepository, notifier domain.Notifier, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.WithField("component", "cart")
	}
	return &Service{
		carts:    carts,
		products: products,
		notifier: notifier,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// AddItem кладёт товар в корзину по текущей цене каталога и уведомляет продавца.
func (s *Service) AddItem(ctx context.Context, actor domain.Actor, productID string, qty int) (domain.CartItem, error) {
	if err := actor.Validate(); err != nil {
		return domain.CartItem{}, err
	}
	if actor.Role != domain.RoleBuyer {
		return domain.CartItem{}, fmt.Errorf("%w: only buyers have a cart", domain.ErrUnauthorized)
	}
	if productID == "" {
		return domain.CartItem{}, domain.ErrProductRequired
	}
	if qty <= 0 {
		return domain.CartItem{}, domain.ErrItemQtyInvalid
	}

	product, err := s.products.Get(ctx, productID)
	if err != nil {
		return domain.CartItem{}, domain.Dependency("products.get", err)
	}
	if !product.InStock {
		return domain.CartItem{}, fmt.Errorf("%w: product %s", domain.ErrInsufficientStock, productID)
	}

	item := domain.CartItem{
		BuyerID:   actor.UserID,
		ProductID: product.ID,
		Quantity:  qty,
		UnitPrice: product.Price,
		AddedAt:   s.now(),
	}
	if err := s.carts.Add(ctx, item); err != nil {
		return domain.CartItem{}, domain.Dependency("cart.add", err)
	}

	s.notifier.Notify(ctx, domain.Notice{
		RecipientID: product.SellerID,
		Type:        domain.NotificationCart,
		ProductID:   product.ID,
		FromUserID:  actor.UserID,
		Details:     domain.NoticeDetails{ProductName: product.Name, Quantity: qty},
	})
	return item, nil
}

// Items возвращает содержимое корзины покупателя.
func (s *Service) Items(ctx context.Context, actor domain.Actor) ([]domain.CartItem, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	items, err := s.carts.List(ctx, actor.UserID)
	if err != nil {
		return nil, domain.Dependency("cart.list", err)
	}
	return items, nil
}

// ClearCart очищает корзину после оформления заказа.
func (s *Service) ClearCart(ctx context.Context, buyerID string) error {
	if buyerID == "" {
		return domain.ErrBuyerRequired
	}
	if err := s.carts.Clear(ctx, buyerID); err != nil {
		return domain.Dependency("cart.clear", err)
	}
	s.logger.WithField("buyer_id", buyerID).Debug("cart cleared")
	return nil
}

var _ domain.CartClearer = (*Service)(nil)
