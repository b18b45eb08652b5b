package domain

import (
	"context"
	"math"
	"time"
)

const (
	DefaultCurrency     = "ZAR"
	DefaultInventoryCap = 10
	MaxCartLines        = 100
	MaxWishlistEntries  = 100
)

// CartLine is a single product row in a cart.
// LineTotal always equals UnitPrice * Quantity once the line has been normalized.
type CartLine struct {
	ProductID    string    `json:"productId"`
	ProductName  string    `json:"productName"`
	ProductImage string    `json:"productImage,omitempty"`
	UnitPrice    float64   `json:"unitPrice"`
	Quantity     int       `json:"quantity"`
	InventoryCap int       `json:"inventoryCount"`
	LineTotal    float64   `json:"totalPrice"`
	AddedAt      time.Time `json:"addedAt"`
}

// Recompute sets LineTotal from UnitPrice and Quantity.
func (l *CartLine) Recompute() {
	l.LineTotal = RoundMoney(l.UnitPrice * float64(l.Quantity))
}

// Cart is the full cart state of one subject.
type Cart struct {
	Items    []CartLine `json:"items"`
	Currency string     `json:"currency"`
}

// EmptyCart returns a cart with no lines and the default currency.
func EmptyCart() Cart {
	return Cart{Items: []CartLine{}, Currency: DefaultCurrency}
}

func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Find returns the index of the line holding productID, or -1.
func (c Cart) Find(productID string) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy so callers can mutate lines freely.
func (c Cart) Clone() Cart {
	items := make([]CartLine, len(c.Items))
	copy(items, c.Items)
	return Cart{Items: items, Currency: c.Currency}
}

// PricingPolicy drives the derived totals of a cart.
type PricingPolicy struct {
	FreeShippingThreshold float64
	FlatShippingFee       float64
	TaxRate               float64
}

// DefaultPricing is the stock storefront policy.
func DefaultPricing() PricingPolicy {
	return PricingPolicy{
		FreeShippingThreshold: 500,
		FlatShippingFee:       89.50,
		TaxRate:               0.15,
	}
}

// Totals are derived from a cart and never stored.
type Totals struct {
	ItemCount  int     `json:"itemCount"`
	Subtotal   float64 `json:"subtotal"`
	Shipping   float64 `json:"shipping"`
	Tax        float64 `json:"tax"`
	GrandTotal float64 `json:"grandTotal"`
}

func (p PricingPolicy) Totals(c Cart) Totals {
	var t Totals
	for _, line := range c.Items {
		t.ItemCount += line.Quantity
		t.Subtotal += line.LineTotal
	}
	t.Subtotal = RoundMoney(t.Subtotal)

	if t.ItemCount > 0 && t.Subtotal < p.FreeShippingThreshold {
		t.Shipping = p.FlatShippingFee
	}
	t.Tax = RoundMoney(t.Subtotal * p.TaxRate)
	t.GrandTotal = RoundMoney(t.Subtotal + t.Shipping + t.Tax)
	return t
}

// RoundMoney rounds to two decimal places.
func RoundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}

// CartRepository stores one cart per subject.
type CartRepository interface {
	Get(ctx context.Context, subjectID string) (Cart, error)
	Put(ctx context.Context, subjectID string, cart Cart) error
	Delete(ctx context.Context, subjectID string) error
}
