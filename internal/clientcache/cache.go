// Package clientcache is the guest-side cache of cart and wishlist state.
// Reads never fail: unreadable or invalid records are dropped.
package clientcache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"storefront/internal/domain"
	"storefront/internal/observability"
)

// Namespaces used as backend keys.
const (
	NamespaceCart     = "cart"
	NamespaceWishlist = "wishlist"
	NamespaceToken    = "auth_token"
)

// DefaultDebounce is the delay before a batch of in-memory changes is written.
const DefaultDebounce = 300 * time.Millisecond

// StateSource exposes the in-memory state the debounced writer persists.
// ok is false for a collection that must not overwrite what is cached.
type StateSource interface {
	CartState() (cart domain.Cart, ok bool)
	WishlistState() (entries []domain.WishlistEntry, ok bool)
}

// Cache reads and writes guest state through a Backend.
type Cache struct {
	backend  Backend
	clock    domain.Clock
	debounce time.Duration

	mu      sync.Mutex
	source  StateSource
	timer   *time.Timer
	pending bool
}

type Option func(*Cache)

func WithDebounce(d time.Duration) Option {
	return func(c *Cache) {
		c.debounce = d
	}
}

func WithClock(clock domain.Clock) Option {
	return func(c *Cache) {
		c.clock = clock
	}
}

func New(backend Backend, opts ...Option) *Cache {
	c := &Cache{
		backend:  backend,
		clock:    domain.SystemClock{},
		debounce: DefaultDebounce,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type cartRecord struct {
	Items    []json.RawMessage `json:"items"`
	Currency string            `json:"currency"`
}

// LoadCart returns the cached cart. Lines that cannot be decoded or lack a
// productId are skipped, and missing optional fields get defaults.
func (c *Cache) LoadCart(ctx context.Context) domain.Cart {
	cart := domain.EmptyCart()

	raw, ok := c.read(ctx, NamespaceCart)
	if !ok {
		return cart
	}

	var rec cartRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		c.logDrop(ctx, NamespaceCart, "unparsable cart", err)
		return cart
	}
	if cur := strings.TrimSpace(rec.Currency); cur != "" {
		cart.Currency = cur
	}

	now := c.clock.Now()
	for i, item := range rec.Items {
		var line domain.CartLine
		if err := json.Unmarshal(item, &line); err != nil {
			c.logDrop(ctx, NamespaceCart, fmt.Sprintf("line %d unparsable", i), err)
			continue
		}
		line.ProductID = strings.TrimSpace(line.ProductID)
		if line.ProductID == "" || cart.Find(line.ProductID) >= 0 {
			continue
		}
		cart.Items = append(cart.Items, withLineDefaults(line, now))
	}
	return cart
}

// LoadWishlist returns the cached wishlist with the same tolerance as LoadCart.
func (c *Cache) LoadWishlist(ctx context.Context) []domain.WishlistEntry {
	entries := []domain.WishlistEntry{}

	raw, ok := c.read(ctx, NamespaceWishlist)
	if !ok {
		return entries
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		c.logDrop(ctx, NamespaceWishlist, "unparsable wishlist", err)
		return entries
	}

	now := c.clock.Now()
	for i, item := range items {
		var e domain.WishlistEntry
		if err := json.Unmarshal(item, &e); err != nil {
			c.logDrop(ctx, NamespaceWishlist, fmt.Sprintf("entry %d unparsable", i), err)
			continue
		}
		e.ProductID = strings.TrimSpace(e.ProductID)
		if e.ProductID == "" {
			continue
		}
		if e.Price < 0 {
			e.Price = 0
		}
		if e.AddedAt.IsZero() {
			e.AddedAt = now
		}
		entries = append(entries, e)
	}
	return domain.DedupeWishlist(entries)
}

func (c *Cache) SaveCart(ctx context.Context, cart domain.Cart) error {
	if cart.Items == nil {
		cart.Items = []domain.CartLine{}
	}
	return c.write(ctx, NamespaceCart, cart)
}

func (c *Cache) SaveWishlist(ctx context.Context, entries []domain.WishlistEntry) error {
	if entries == nil {
		entries = []domain.WishlistEntry{}
	}
	return c.write(ctx, NamespaceWishlist, entries)
}

func (c *Cache) ClearCart(ctx context.Context) error {
	return c.backend.Delete(ctx, NamespaceCart)
}

func (c *Cache) ClearWishlist(ctx context.Context) error {
	return c.backend.Delete(ctx, NamespaceWishlist)
}

// Clear removes both namespaces.
func (c *Cache) Clear(ctx context.Context) error {
	if err := c.ClearCart(ctx); err != nil {
		return err
	}
	return c.ClearWishlist(ctx)
}

// LoadToken returns the stored bearer token, or "" when there is none.
func (c *Cache) LoadToken(ctx context.Context) string {
	raw, ok := c.read(ctx, NamespaceToken)
	if !ok {
		return ""
	}
	return strings.TrimSpace(string(raw))
}

func (c *Cache) SaveToken(ctx context.Context, token string) error {
	if err := c.backend.Write(ctx, NamespaceToken, []byte(token)); err != nil {
		return fmt.Errorf("failed to save %s: %w", NamespaceToken, err)
	}
	return nil
}

func (c *Cache) ClearToken(ctx context.Context) error {
	return c.backend.Delete(ctx, NamespaceToken)
}

// Watch registers the in-memory state persisted by MarkDirty.
func (c *Cache) Watch(source StateSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.source = source
}

// MarkDirty schedules a write of the watched state. Calls that arrive within
// the debounce interval collapse into a single write.
func (c *Cache) MarkDirty() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.source == nil {
		return
	}
	c.pending = true
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.debounce, func() {
		_ = c.Flush(context.Background())
	})
}

// Flush writes the watched state now if a debounced write is pending.
func (c *Cache) Flush(ctx context.Context) error {
	c.mu.Lock()
	if !c.pending || c.source == nil {
		c.mu.Unlock()
		return nil
	}
	c.pending = false
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	source := c.source
	c.mu.Unlock()

	if cart, ok := source.CartState(); ok {
		if err := c.SaveCart(ctx, cart); err != nil {
			observability.FromContext(ctx).Warn("debounced cart save failed", slog.String("error", err.Error()))
			return err
		}
	}
	if entries, ok := source.WishlistState(); ok {
		if err := c.SaveWishlist(ctx, entries); err != nil {
			observability.FromContext(ctx).Warn("debounced wishlist save failed", slog.String("error", err.Error()))
			return err
		}
	}
	return nil
}

func (c *Cache) read(ctx context.Context, key string) ([]byte, bool) {
	raw, ok, err := c.backend.Read(ctx, key)
	if err != nil {
		c.logDrop(ctx, key, "backend read failed", err)
		return nil, false
	}
	return raw, ok && len(raw) > 0
}

func (c *Cache) write(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := c.backend.Write(ctx, key, raw); err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

func (c *Cache) logDrop(ctx context.Context, namespace, reason string, err error) {
	observability.FromContext(ctx).Debug("dropping cached record",
		slog.String("namespace", namespace),
		slog.String("reason", reason),
		slog.String("error", err.Error()),
	)
}

func withLineDefaults(line domain.CartLine, now time.Time) domain.CartLine {
	if line.UnitPrice < 0 {
		line.UnitPrice = 0
	}
	if line.InventoryCap < 1 {
		line.InventoryCap = domain.DefaultInventoryCap
	}
	line.Quantity = min(max(line.Quantity, 1), line.InventoryCap)
	if line.AddedAt.IsZero() {
		line.AddedAt = now
	}
	line.Recompute()
	return line
}
