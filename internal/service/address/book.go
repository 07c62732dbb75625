package address

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

// AddressInput: новый адрес пользователя.
type AddressInput struct {
	Name       string
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
	IsDefault  bool
}

// Book: адресная книга пользователей. Первый адрес пользователя становится адресом по умолчанию.
type Book struct {
	addresses domain.AddressRepository
	now       func() time.Time
}

// NewBook создаёт адресную книгу.
func NewBook(addresses domain.AddressRepository) *Book {
	return &Book{
		addresses: addresses,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Add сохраняет адрес вызывающего пользователя.
func (b *Book) Add(ctx context.Context, actor domain.Actor, in AddressInput) (domain.Address, error) {
	if err := actor.Validate(); err != nil {
		return domain.Address{}, err
	}
	if strings.TrimSpace(in.Line1) == "" || strings.TrimSpace(in.City) == "" || strings.TrimSpace(in.Country) == "" {
		return domain.Address{}, fmt.Errorf("%w: line1, city and country are required", domain.ErrValidation)
	}

	existing, err := b.addresses.ListByUser(ctx, actor.UserID)
	if err != nil {
		return domain.Address{}, domain.Dependency("addresses.list", err)
	}

	address := domain.Address{
		ID:         uuid.NewString(),
		UserID:     actor.UserID,
		Name:       in.Name,
		Line1:      in.Line1,
		Line2:      in.Line2,
		City:       in.City,
		State:      in.State,
		PostalCode: in.PostalCode,
		Country:    in.Country,
		IsDefault:  in.IsDefault || len(existing) == 0,
		CreatedAt:  b.now(),
	}
	if err := b.addresses.Create(ctx, address); err != nil {
		return domain.Address{}, domain.Dependency("addresses.create", err)
	}
	return address, nil
}

// List возвращает адреса вызывающего пользователя в порядке добавления.
func (b *Book) List(ctx context.Context, actor domain.Actor) ([]domain.Address, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	addresses, err := b.addresses.ListByUser(ctx, actor.UserID)
	if err != nil {
		return nil, domain.Dependency("addresses.list", err)
	}
	return addresses, nil
}
