package httpapi

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

type orderItemResponse struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	SellerID    string          `json:"seller_id"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type orderResponse struct {
	ID            string              `json:"id"`
	BuyerID       string              `json:"buyer_id"`
	AddressID     string              `json:"address_id"`
	Status        string              `json:"status"`
	Total         decimal.Decimal     `json:"total"`
	PaymentMethod string              `json:"payment_method"`
	PaymentStatus string              `json:"payment_status"`
	Items         []orderItemResponse `json:"items"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

func toOrderResponse(o domain.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, orderItemResponse{
			ID:          item.ID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			SellerID:    item.SellerID,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}
	return orderResponse{
		ID:            o.ID,
		BuyerID:       o.BuyerID,
		AddressID:     o.AddressID,
		Status:        string(o.Status),
		Total:         o.Total,
		PaymentMethod: o.PaymentMethod,
		PaymentStatus: string(o.PaymentStatus),
		Items:         items,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}

func toOrderResponses(orders []domain.Order) []orderResponse {
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResponse(o))
	}
	return out
}

type historyEntryResponse struct {
	Type     string    `json:"type"`
	Reason   string    `json:"reason,omitempty"`
	ActorID  string    `json:"actor_id,omitempty"`
	Occurred time.Time `json:"occurred"`
}

func toHistoryResponse(events []domain.TimelineEvent) []historyEntryResponse {
	out := make([]historyEntryResponse, 0, len(events))
	for _, e := range events {
		out = append(out, historyEntryResponse{Type: e.Type, Reason: e.Reason, ActorID: e.ActorID, Occurred: e.Occurred})
	}
	return out
}

type trackingResponse struct {
	ID            string          `json:"id"`
	OrderID       string          `json:"order_id"`
	Status        string          `json:"status"`
	StartLocation domain.Location `json:"start_location"`
	EndLocation   domain.Location `json:"end_location"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func toTrackingResponse(t domain.LogisticsTracking) trackingResponse {
	return trackingResponse{
		ID:            t.ID,
		OrderID:       t.OrderID,
		Status:        string(t.Status),
		StartLocation: t.StartLocation,
		EndLocation:   t.EndLocation,
		UpdatedAt:     t.UpdatedAt,
	}
}

type productResponse struct {
	ID                string          `json:"id"`
	SellerID          string          `json:"seller_id"`
	Name              string          `json:"name"`
	Price             decimal.Decimal `json:"price"`
	Category          string          `json:"category,omitempty"`
	AvailableQuantity int             `json:"available_quantity"`
	InStock           bool            `json:"in_stock"`
	Perishable        bool            `json:"perishable"`
	ExpiryDate        *time.Time      `json:"expiry_date,omitempty"`
	Priority          string          `json:"priority,omitempty"`
}

func toProductResponse(p domain.Product) productResponse {
	return productResponse{
		ID:                p.ID,
		SellerID:          p.SellerID,
		Name:              p.Name,
		Price:             p.Price,
		Category:          p.Category,
		AvailableQuantity: p.AvailableQuantity,
		InStock:           p.InStock,
		Perishable:        p.Perishable,
		ExpiryDate:        p.ExpiryDate,
		Priority:          p.Priority,
	}
}

type cartItemResponse struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	AddedAt   time.Time       `json:"added_at"`
}

func toCartResponse(items []domain.CartItem) []cartItemResponse {
	out := make([]cartItemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, cartItemResponse{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			AddedAt:   item.AddedAt,
		})
	}
	return out
}

type addressResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country"`
	IsDefault  bool   `json:"is_default"`
}

func toAddressResponse(a domain.Address) addressResponse {
	return addressResponse{
		ID:         a.ID,
		Name:       a.Name,
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
		IsDefault:  a.IsDefault,
	}
}

type notificationResponse struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	ProductID  string    `json:"product_id,omitempty"`
	FromUserID string    `json:"from_user_id,omitempty"`
	Message    string    `json:"message"`
	IsRead     bool      `json:"is_read"`
	CreatedAt  time.Time `json:"created_at"`
}

func toNotificationResponses(list []domain.Notification) []notificationResponse {
	out := make([]notificationResponse, 0, len(list))
	for _, n := range list {
		out = append(out, notificationResponse{
			ID:         n.ID,
			Type:       string(n.Type),
			ProductID:  n.ProductID,
			FromUserID: n.FromUserID,
			Message:    n.Message,
			IsRead:     n.IsRead,
			CreatedAt:  n.CreatedAt,
		})
	}
	return out
}

type donationResponse struct {
	ID          string    `json:"id"`
	ProductID   string    `json:"product_id"`
	SellerID    string    `json:"seller_id"`
	RequesterID string    `json:"requester_id"`
	Quantity    int       `json:"quantity"`
	Note        string    `json:"note,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

func toDonationResponse(d domain.DonationRequest) donationResponse {
	return donationResponse{
		ID:          d.ID,
		ProductID:   d.ProductID,
		SellerID:    d.SellerID,
		RequesterID: d.RequesterID,
		Quantity:    d.Quantity,
		Note:        d.Note,
		Status:      string(d.Status),
		CreatedAt:   d.CreatedAt,
	}
}
