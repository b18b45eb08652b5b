// Package reconcile merges a guest's locally cached cart and wishlist into
// the account's server-side state once per guest to authenticated transition.
package reconcile

import (
	"time"

	"storefront/internal/domain"
)

// MergeCart unions server and local lines by productId.
//
// A product on both sides keeps the larger quantity, never the sum, so that
// merging the same pair again yields the same cart. The local unit price and
// display fields win when present. Lines only found locally get addedAt = now.
func MergeCart(server, local domain.Cart, now time.Time) domain.Cart {
	merged := server.Clone()
	if merged.Items == nil {
		merged.Items = []domain.CartLine{}
	}
	if merged.Currency == "" {
		merged.Currency = local.Currency
	}
	if merged.Currency == "" {
		merged.Currency = domain.DefaultCurrency
	}

	for _, l := range local.Items {
		if l.ProductID == "" {
			continue
		}

		at := merged.Find(l.ProductID)
		if at < 0 {
			l.AddedAt = now
			l.Recompute()
			merged.Items = append(merged.Items, l)
			continue
		}

		line := &merged.Items[at]
		line.Quantity = max(line.Quantity, l.Quantity)
		line.UnitPrice = l.UnitPrice
		if l.ProductName != "" {
			line.ProductName = l.ProductName
		}
		if l.ProductImage != "" {
			line.ProductImage = l.ProductImage
		}
		if l.InventoryCap > 0 {
			line.InventoryCap = l.InventoryCap
		}
		line.Recompute()
	}
	return merged
}

// MergeWishlist unions both wishlists by productId. Local entries are seen
// first, so their metadata wins on conflict.
func MergeWishlist(local, server []domain.WishlistEntry) []domain.WishlistEntry {
	all := make([]domain.WishlistEntry, 0, len(local)+len(server))
	all = append(all, local...)
	all = append(all, server...)
	return domain.DedupeWishlist(all)
}
