package handler

import (
	"net/http"
	"strings"

	"storefront/internal/domain"
	"storefront/internal/response"
	"storefront/internal/service"
)

const msgAlreadyInWishlist = "Product already in wishlist"

// WishlistHandler serves the authenticated subject's wishlist.
type WishlistHandler struct {
	store *service.SessionStore
}

func NewWishlistHandler(store *service.SessionStore) *WishlistHandler {
	return &WishlistHandler{store: store}
}

// wishlistWriteRequest is either a full list under "items" or a single entry.
type wishlistWriteRequest struct {
	Items *[]domain.WishlistEntry `json:"items"`
	domain.WishlistEntry
}

type wishlistRemoveRequest struct {
	ProductID string `json:"productId"`
}

func (h *WishlistHandler) Get(w http.ResponseWriter, r *http.Request) {
	subjectID, err := subject(r)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	entries, err := h.store.GetWishlist(r.Context(), subjectID)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, entries, response.WithItemCount(len(entries)))
}

// Write replaces the wishlist when the body carries "items" and adds a
// single entry otherwise.
func (h *WishlistHandler) Write(w http.ResponseWriter, r *http.Request) {
	subjectID, err := subject(r)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	var req wishlistWriteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.FromError(w, r, err)
		return
	}

	if req.Items != nil {
		stored, err := h.store.ReplaceWishlist(r.Context(), subjectID, *req.Items)
		if err != nil {
			response.FromError(w, r, err)
			return
		}
		response.JSON(w, http.StatusOK, stored,
			response.WithItemCount(len(stored)),
			response.WithMessage("Wishlist updated"))
		return
	}

	if strings.TrimSpace(req.ProductID) == "" {
		response.FromError(w, r, domain.NewValidationError("Product ID is required"))
		return
	}

	added, err := h.store.AddEntry(r.Context(), subjectID, req.WishlistEntry)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	entries, err := h.store.GetWishlist(r.Context(), subjectID)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	if !added {
		response.Write(w, http.StatusOK, response.Envelope{
			Success: false,
			Data:    entries,
			Message: msgAlreadyInWishlist,
		})
		return
	}
	response.JSON(w, http.StatusOK, entries,
		response.WithItemCount(len(entries)),
		response.WithMessage("Added to wishlist"))
}

// Remove deletes one entry. Removing an absent product succeeds.
func (h *WishlistHandler) Remove(w http.ResponseWriter, r *http.Request) {
	subjectID, err := subject(r)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	var req wishlistRemoveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.FromError(w, r, err)
		return
	}
	if strings.TrimSpace(req.ProductID) == "" {
		response.FromError(w, r, domain.NewValidationError("Product ID is required"))
		return
	}

	removed, err := h.store.RemoveEntry(r.Context(), subjectID, req.ProductID)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	entries, err := h.store.GetWishlist(r.Context(), subjectID)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	msg := "Removed from wishlist"
	if !removed {
		msg = "Product not in wishlist"
	}
	response.JSON(w, http.StatusOK, entries,
		response.WithItemCount(len(entries)),
		response.WithMessage(msg))
}
