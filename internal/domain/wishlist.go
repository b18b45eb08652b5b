package domain

import (
	"context"
	"time"
)

// WishlistEntry is a saved product. There is no quantity.
type WishlistEntry struct {
	ProductID    string    `json:"productId"`
	ProductName  string    `json:"productName"`
	ProductImage string    `json:"productImage,omitempty"`
	Price        float64   `json:"price"`
	AddedAt      time.Time `json:"addedAt"`
}

// WishlistRepository stores one wishlist per subject.
type WishlistRepository interface {
	Get(ctx context.Context, subjectID string) ([]WishlistEntry, error)
	Replace(ctx context.Context, subjectID string, entries []WishlistEntry) error
	Add(ctx context.Context, subjectID string, entry WishlistEntry) (bool, error)
	Remove(ctx context.Context, subjectID, productID string) (bool, error)
}

// DedupeWishlist keeps the first entry seen for every productId and drops
// entries without one.
func DedupeWishlist(entries []WishlistEntry) []WishlistEntry {
	seen := make(map[string]struct{}, len(entries))
	out := make([]WishlistEntry, 0, len(entries))
	for _, e := range entries {
		if e.ProductID == "" {
			continue
		}
		if _, ok := seen[e.ProductID]; ok {
			continue
		}
		seen[e.ProductID] = struct{}{}
		out = append(out, e)
	}
	return out
}
