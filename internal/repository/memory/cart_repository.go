// Package memory provides mutex-guarded in-memory repositories. State is
// volatile and lives for the lifetime of the process.
package memory

import (
	"context"
	"sync"

	"storefront/internal/domain"
)

// CartRepository implements domain.CartRepository.
type CartRepository struct {
	mu    sync.RWMutex
	carts map[string]domain.Cart
}

func NewCartRepository() *CartRepository {
	return &CartRepository{carts: make(map[string]domain.Cart)}
}

func (r *CartRepository) Get(_ context.Context, subjectID string) (domain.Cart, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cart, ok := r.carts[subjectID]
	if !ok {
		return domain.EmptyCart(), nil
	}
	return cart.Clone(), nil
}

func (r *CartRepository) Put(_ context.Context, subjectID string, cart domain.Cart) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.carts[subjectID] = cart.Clone()
	return nil
}

func (r *CartRepository) Delete(_ context.Context, subjectID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.carts, subjectID)
	return nil
}
