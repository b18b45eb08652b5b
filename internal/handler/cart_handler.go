package handler

import (
	"encoding/json"
	"net/http"

	"storefront/internal/domain"
	"storefront/internal/response"
	"storefront/internal/service"
)

// CartHandler serves the authenticated subject's cart.
type CartHandler struct {
	store   *service.SessionStore
	pricing domain.PricingPolicy
}

func NewCartHandler(store *service.SessionStore, pricing domain.PricingPolicy) *CartHandler {
	return &CartHandler{
		store:   store,
		pricing: pricing,
	}
}

type cartWriteRequest struct {
	Items    json.RawMessage `json:"items"`
	Currency string          `json:"currency"`
}

func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	subjectID, err := subject(r)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	cart, err := h.store.GetCart(r.Context(), subjectID)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	h.write(w, cart)
}

// Replace overwrites the stored cart with the request body.
func (h *CartHandler) Replace(w http.ResponseWriter, r *http.Request) {
	subjectID, err := subject(r)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	var req cartWriteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.FromError(w, r, err)
		return
	}

	var items []domain.CartLine
	if len(req.Items) == 0 || req.Items[0] != '[' {
		response.FromError(w, r, domain.NewValidationError("Items must be an array"))
		return
	}
	if err := json.Unmarshal(req.Items, &items); err != nil {
		response.FromError(w, r, domain.NewValidationError("Invalid cart item"))
		return
	}

	stored, err := h.store.PutCart(r.Context(), subjectID, domain.Cart{Items: items, Currency: req.Currency})
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	h.write(w, stored, response.WithMessage("Cart updated"))
}

func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	subjectID, err := subject(r)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	if err := h.store.DeleteCart(r.Context(), subjectID); err != nil {
		response.FromError(w, r, err)
		return
	}
	h.write(w, domain.EmptyCart(), response.WithMessage("Cart cleared"))
}

func (h *CartHandler) write(w http.ResponseWriter, cart domain.Cart, opts ...response.Option) {
	totals := h.pricing.Totals(cart)
	opts = append(opts, response.WithItemCount(totals.ItemCount), response.WithTotals(totals))
	response.JSON(w, http.StatusOK, cart, opts...)
}
