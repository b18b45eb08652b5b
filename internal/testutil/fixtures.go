package testutil

import (
	"fmt"
	"sync/atomic"
	"time"

	"storefront/internal/domain"
)

// Counter for generating unique IDs
var idCounter atomic.Int64

// nextID generates a unique ID for test fixtures
func nextID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, idCounter.Add(1))
}

// FixedTime is the instant fixtures and FixedClock default to
var FixedTime = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

// UserOptions allows customizing user fixture creation
type UserOptions struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	CreatedAt    time.Time
}

// NewTestUser creates a test user with sensible defaults
// Pass options to override specific fields
func NewTestUser(opts ...func(*UserOptions)) *domain.User {
	o := &UserOptions{
		ID:           nextID("user"),
		PasswordHash: "$2a$10$test.hash.for.testing.purposes.only", // bcrypt hash placeholder
	}
	o.Name = fmt.Sprintf("Shopper %d", idCounter.Load())

	for _, opt := range opts {
		opt(o)
	}

	if o.Email == "" {
		o.Email = fmt.Sprintf("shopper%d@example.com", idCounter.Load())
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = FixedTime
	}

	return &domain.User{
		ID:           o.ID,
		Email:        o.Email,
		Name:         o.Name,
		PasswordHash: o.PasswordHash,
		CreatedAt:    o.CreatedAt,
	}
}

// User option functions

// WithEmail sets the email
func WithEmail(email string) func(*UserOptions) {
	return func(o *UserOptions) {
		o.Email = email
	}
}

// WithPasswordHash sets the password hash
func WithPasswordHash(hash string) func(*UserOptions) {
	return func(o *UserOptions) {
		o.PasswordHash = hash
	}
}

// NewTestCartLine creates a normalized cart line
func NewTestCartLine(productID string, unitPrice float64, quantity int) domain.CartLine {
	line := domain.CartLine{
		ProductID:    productID,
		ProductName:  "Product " + productID,
		UnitPrice:    unitPrice,
		Quantity:     quantity,
		InventoryCap: domain.DefaultInventoryCap,
		AddedAt:      FixedTime,
	}
	line.Recompute()
	return line
}

// NewTestCart creates a cart in the default currency holding lines
func NewTestCart(lines ...domain.CartLine) domain.Cart {
	cart := domain.EmptyCart()
	cart.Items = append(cart.Items, lines...)
	return cart
}

// NewTestCartLines creates count lines with sequential product IDs
func NewTestCartLines(count int) []domain.CartLine {
	lines := make([]domain.CartLine, count)
	for i := range lines {
		lines[i] = NewTestCartLine(fmt.Sprintf("P%d", i+1), 10, 1)
	}
	return lines
}

// NewTestWishlistEntry creates a wishlist entry
func NewTestWishlistEntry(productID string) domain.WishlistEntry {
	return domain.WishlistEntry{
		ProductID:   productID,
		ProductName: "Product " + productID,
		Price:       99.95,
		AddedAt:     FixedTime,
	}
}

