package httpapi

import (
	"net/http"

	"github.com/go-chi/render"

	"github.com/vladislavdragonenkov/marketplace/internal/service/donation"
)

type donationRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Note      string `json:"note"`
}

func (h *Handler) listDonations(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r.Context())
	list, err := h.svc.Donations.List(r.Context(), actor)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]donationResponse, 0, len(list))
	for _, d := range list {
		out = append(out, toDonationResponse(d))
	}
	render.JSON(w, r, out)
}

func (h *Handler) requestDonation(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r.Context())

	var req donationRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		badRequest(w, r, "invalid request body")
		return
	}

	d, err := h.svc.Donations.Request(r.Context(), actor, donation.DonationInput{
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		Note:      req.Note,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, toDonationResponse(d))
}
