package memory

import (
	"context"
	"sync"

	"storefront/internal/domain"
)

// WishlistRepository implements domain.WishlistRepository.
type WishlistRepository struct {
	mu        sync.RWMutex
	wishlists map[string][]domain.WishlistEntry
}

func NewWishlistRepository() *WishlistRepository {
	return &WishlistRepository{wishlists: make(map[string][]domain.WishlistEntry)}
}

func (r *WishlistRepository) Get(_ context.Context, subjectID string) ([]domain.WishlistEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return cloneEntries(r.wishlists[subjectID]), nil
}

func (r *WishlistRepository) Replace(_ context.Context, subjectID string, entries []domain.WishlistEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.wishlists[subjectID] = cloneEntries(entries)
	return nil
}

func (r *WishlistRepository) Add(_ context.Context, subjectID string, entry domain.WishlistEntry) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.wishlists[subjectID] {
		if e.ProductID == entry.ProductID {
			return false, nil
		}
	}
	r.wishlists[subjectID] = append(r.wishlists[subjectID], entry)
	return true, nil
}

func (r *WishlistRepository) Remove(_ context.Context, subjectID, productID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := r.wishlists[subjectID]
	for i, e := range entries {
		if e.ProductID == productID {
			r.wishlists[subjectID] = append(entries[:i:i], entries[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func cloneEntries(entries []domain.WishlistEntry) []domain.WishlistEntry {
	out := make([]domain.WishlistEntry, len(entries))
	copy(out, entries)
	return out
}
