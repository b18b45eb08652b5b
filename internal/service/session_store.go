package service

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"storefront/internal/domain"
	"storefront/internal/observability"
)

const (
	maxProductIDLen    = 100
	maxProductNameLen  = 200
	maxProductImageLen = 500
)

// SessionStore is the authoritative per-subject cart and wishlist store.
// Writes are validated all-or-nothing before they reach the repositories.
type SessionStore struct {
	carts     domain.CartRepository
	wishlists domain.WishlistRepository
	events    domain.EventPublisher
	clock     domain.Clock
}

// SessionStoreOption customizes a SessionStore.
type SessionStoreOption func(*SessionStore)

// WithEventPublisher publishes a store event after every successful write.
func WithEventPublisher(p domain.EventPublisher) SessionStoreOption {
	return func(s *SessionStore) {
		s.events = p
	}
}

// WithStoreClock replaces the clock used for addedAt defaults.
func WithStoreClock(c domain.Clock) SessionStoreOption {
	return func(s *SessionStore) {
		s.clock = c
	}
}

func NewSessionStore(carts domain.CartRepository, wishlists domain.WishlistRepository, opts ...SessionStoreOption) *SessionStore {
	s := &SessionStore{
		carts:     carts,
		wishlists: wishlists,
		clock:     domain.SystemClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SessionStore) GetCart(ctx context.Context, subjectID string) (domain.Cart, error) {
	cart, err := s.carts.Get(ctx, subjectID)
	if err != nil {
		return domain.Cart{}, err
	}
	if cart.Currency == "" {
		cart.Currency = domain.DefaultCurrency
	}
	if cart.Items == nil {
		cart.Items = []domain.CartLine{}
	}
	return cart, nil
}

// PutCart replaces the subject's cart and returns the stored value.
// A *domain.ValidationError leaves the previous cart untouched.
func (s *SessionStore) PutCart(ctx context.Context, subjectID string, cart domain.Cart) (domain.Cart, error) {
	clean, err := NormalizeCart(cart, s.clock.Now())
	if err != nil {
		return domain.Cart{}, err
	}

	if err := s.carts.Put(ctx, subjectID, clean); err != nil {
		observability.StoreWrites.WithLabelValues("cart", "put", "error").Inc()
		return domain.Cart{}, err
	}
	observability.StoreWrites.WithLabelValues("cart", "put", "ok").Inc()

	s.publish(ctx, domain.StoreEvent{Type: domain.EventCartUpdated, SubjectID: subjectID, ItemCount: len(clean.Items)})
	return clean, nil
}

func (s *SessionStore) DeleteCart(ctx context.Context, subjectID string) error {
	if err := s.carts.Delete(ctx, subjectID); err != nil {
		observability.StoreWrites.WithLabelValues("cart", "delete", "error").Inc()
		return err
	}
	observability.StoreWrites.WithLabelValues("cart", "delete", "ok").Inc()

	s.publish(ctx, domain.StoreEvent{Type: domain.EventCartCleared, SubjectID: subjectID})
	return nil
}

func (s *SessionStore) GetWishlist(ctx context.Context, subjectID string) ([]domain.WishlistEntry, error) {
	entries, err := s.wishlists.Get(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []domain.WishlistEntry{}
	}
	return entries, nil
}

// ReplaceWishlist overwrites the wishlist. Duplicates keep the first entry seen.
func (s *SessionStore) ReplaceWishlist(ctx context.Context, subjectID string, entries []domain.WishlistEntry) ([]domain.WishlistEntry, error) {
	clean, err := NormalizeWishlist(entries, s.clock.Now())
	if err != nil {
		return nil, err
	}

	if err := s.wishlists.Replace(ctx, subjectID, clean); err != nil {
		observability.StoreWrites.WithLabelValues("wishlist", "replace", "error").Inc()
		return nil, err
	}
	observability.StoreWrites.WithLabelValues("wishlist", "replace", "ok").Inc()

	s.publish(ctx, domain.StoreEvent{Type: domain.EventWishlistUpdated, SubjectID: subjectID, ItemCount: len(clean)})
	return clean, nil
}

// AddEntry adds one entry. It reports false without error when the product is already saved.
func (s *SessionStore) AddEntry(ctx context.Context, subjectID string, entry domain.WishlistEntry) (bool, error) {
	clean, err := normalizeEntry(entry, s.clock.Now())
	if err != nil {
		return false, err
	}

	added, err := s.wishlists.Add(ctx, subjectID, clean)
	if err != nil {
		observability.StoreWrites.WithLabelValues("wishlist", "add", "error").Inc()
		return false, err
	}
	if added {
		observability.StoreWrites.WithLabelValues("wishlist", "add", "ok").Inc()
		s.publish(ctx, domain.StoreEvent{Type: domain.EventWishlistAdded, SubjectID: subjectID, ProductID: clean.ProductID})
	}
	return added, nil
}

// RemoveEntry removes productID. It reports false without error when nothing was saved.
func (s *SessionStore) RemoveEntry(ctx context.Context, subjectID, productID string) (bool, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return false, domain.NewValidationError("Product ID is required")
	}

	removed, err := s.wishlists.Remove(ctx, subjectID, productID)
	if err != nil {
		observability.StoreWrites.WithLabelValues("wishlist", "remove", "error").Inc()
		return false, err
	}
	if removed {
		observability.StoreWrites.WithLabelValues("wishlist", "remove", "ok").Inc()
		s.publish(ctx, domain.StoreEvent{Type: domain.EventWishlistRemoved, SubjectID: subjectID, ProductID: productID})
	}
	return removed, nil
}

// publish never fails the write it follows.
func (s *SessionStore) publish(ctx context.Context, event domain.StoreEvent) {
	if s.events == nil {
		return
	}

	eventType := event.Type
	event.OccurredAt = s.clock.Now().UTC()
	if err := s.events.PublishStoreEvent(ctx, event); err != nil {
		observability.EventsPublished.WithLabelValues(eventType, "error").Inc()
		observability.FromContext(ctx).Warn("failed to publish store event",
			slog.String("type", eventType),
			slog.String("error", err.Error()),
		)
		return
	}
	observability.EventsPublished.WithLabelValues(eventType, "ok").Inc()
}

// NormalizeCart validates and sanitizes a full cart write.
// Lines are clamped so that 1 <= quantity <= inventoryCap and totals are recomputed.
// Repeated productIds collapse into the first line with the larger quantity.
func NormalizeCart(cart domain.Cart, now time.Time) (domain.Cart, error) {
	if len(cart.Items) > domain.MaxCartLines {
		return domain.Cart{}, domain.NewValidationError("Cart too large")
	}

	out := domain.Cart{
		Items:    make([]domain.CartLine, 0, len(cart.Items)),
		Currency: strings.ToUpper(strings.TrimSpace(cart.Currency)),
	}
	if out.Currency == "" {
		out.Currency = domain.DefaultCurrency
	}
	if !isCurrencyCode(out.Currency) {
		return domain.Cart{}, domain.NewValidationError("Currency must be a 3-letter code")
	}

	index := make(map[string]int, len(cart.Items))
	for i, line := range cart.Items {
		line.ProductID = truncate(strings.TrimSpace(line.ProductID), maxProductIDLen)
		if line.ProductID == "" {
			return domain.Cart{}, domain.NewValidationError("Item at index %d missing productId", i)
		}
		line = NormalizeLine(line, now)

		if at, ok := index[line.ProductID]; ok {
			existing := &out.Items[at]
			existing.Quantity = min(max(existing.Quantity, line.Quantity), existing.InventoryCap)
			existing.Recompute()
			continue
		}
		index[line.ProductID] = len(out.Items)
		out.Items = append(out.Items, line)
	}
	return out, nil
}

// NormalizeLine applies field limits and clamps to a single line that already has a productId.
func NormalizeLine(line domain.CartLine, now time.Time) domain.CartLine {
	line.ProductName = truncate(line.ProductName, maxProductNameLen)
	line.ProductImage = truncate(line.ProductImage, maxProductImageLen)
	line.UnitPrice = nonNegative(line.UnitPrice)

	switch {
	case line.InventoryCap == 0:
		line.InventoryCap = domain.DefaultInventoryCap
	case line.InventoryCap < 1:
		line.InventoryCap = 1
	}
	line.Quantity = min(max(line.Quantity, 1), line.InventoryCap)

	if line.AddedAt.IsZero() {
		line.AddedAt = now
	}
	line.Recompute()
	return line
}

// NormalizeWishlist validates a full wishlist write and removes duplicates.
func NormalizeWishlist(entries []domain.WishlistEntry, now time.Time) ([]domain.WishlistEntry, error) {
	if len(entries) > domain.MaxWishlistEntries {
		return nil, domain.NewValidationError("Wishlist too large")
	}

	clean := make([]domain.WishlistEntry, 0, len(entries))
	for i, e := range entries {
		if strings.TrimSpace(e.ProductID) == "" {
			return nil, domain.NewValidationError("Item at index %d missing productId", i)
		}
		entry, _ := normalizeEntry(e, now)
		clean = append(clean, entry)
	}
	return domain.DedupeWishlist(clean), nil
}

func normalizeEntry(e domain.WishlistEntry, now time.Time) (domain.WishlistEntry, error) {
	e.ProductID = truncate(strings.TrimSpace(e.ProductID), maxProductIDLen)
	if e.ProductID == "" {
		return domain.WishlistEntry{}, domain.NewValidationError("Product ID is required")
	}
	e.ProductName = truncate(e.ProductName, maxProductNameLen)
	e.ProductImage = truncate(e.ProductImage, maxProductImageLen)
	e.Price = nonNegative(e.Price)
	if e.AddedAt.IsZero() {
		e.AddedAt = now
	}
	return e, nil
}

// isCurrencyCode reports whether code has the ISO 4217 shape, e.g. ZAR.
func isCurrencyCode(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}

func nonNegative(v float64) float64 {
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
