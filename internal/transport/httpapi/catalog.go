package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
	"github.com/vladislavdragonenkov/marketplace/internal/service/address"
	"github.com/vladislavdragonenkov/marketplace/internal/service/catalog"
)

type createProductRequest struct {
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	Category   string          `json:"category"`
	Quantity   int             `json:"quantity"`
	Perishable bool            `json:"perishable"`
	ExpiryDate *time.Time      `json:"expiry_date,omitempty"`
	Priority   string          `json:"priority,omitempty"`
}

type quantityRequest struct {
	ProductID string `json:"product_id,omitempty"`
	Quantity  int    `json:"quantity"`
}

type addressRequest struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	IsDefault  bool   `json:"is_default"`
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r.Context())

	var req createProductRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		badRequest(w, r, "invalid request body")
		return
	}

	p, err := h.svc.Catalog.CreateProduct(r.Context(), actor, catalog.ProductInput{
		Name:       req.Name,
		Price:      req.Price,
		Category:   req.Category,
		Quantity:   req.Quantity,
		Perishable: req.Perishable,
		ExpiryDate: req.ExpiryDate,
		Priority:   req.Priority,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, toProductResponse(p))
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Catalog.Get(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, toProductResponse(p))
}

// recordView принимает и анонимных посетителей.
func (h *Handler) recordView(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r.Context())
	if err := h.svc.Catalog.RecordView(r.Context(), actor.UserID, chi.URLParam(r, "productID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) restockProduct(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r.Context())

	var req quantityRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		badRequest(w, r, "invalid request body")
		return
	}

	p, err := h.svc.Catalog.Restock(r.Context(), actor, chi.URLParam(r, "productID"), req.Quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, toProductResponse(p))
}

func (h *Handler) listCart(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r.Context())
	items, err := h.svc.Cart.Items(r.Context(), actor)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, toCartResponse(items))
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r.Context())

	var req quantityRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		badRequest(w, r, "invalid request body")
		return
	}

	item, err := h.svc.Cart.AddItem(r.Context(), actor, req.ProductID, req.Quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, toCartResponse([]domain.CartItem{item})[0])
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r.Context())
	if err := h.svc.Cart.ClearCart(r.Context(), actor.UserID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listAddresses(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r.Context())
	list, err := h.svc.Addresses.List(r.Context(), actor)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]addressResponse, 0, len(list))
	for _, a := range list {
		out = append(out, toAddressResponse(a))
	}
	render.JSON(w, r, out)
}

func (h *Handler) addAddress(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r.Context())

	var req addressRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		badRequest(w, r, "invalid request body")
		return
	}

	a, err := h.svc.Addresses.Add(r.Context(), actor, address.AddressInput{
		Name:       req.Name,
		Line1:      req.Line1,
		Line2:      req.Line2,
		City:       req.City,
		State:      req.State,
		PostalCode: req.PostalCode,
		Country:    req.Country,
		IsDefault:  req.IsDefault,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, toAddressResponse(a))
}
