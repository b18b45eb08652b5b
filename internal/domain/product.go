package domain

import (
	"context"
	"errors"
)

var (
	ErrProductNotFound    = errors.New("product not found")
	ErrCatalogUnavailable = errors.New("catalog unavailable")
)

// Product is the catalog's view of an item, trusted at the time it is read.
type Product struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Price          float64 `json:"price"`
	Image          string  `json:"image"`
	InventoryCount int     `json:"inventoryCount"`
}

// Catalog looks up products by ID.
type Catalog interface {
	Product(ctx context.Context, id string) (*Product, error)
}
