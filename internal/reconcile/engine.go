package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"storefront/internal/domain"
	"storefront/internal/observability"
)

// Remote is the authenticated server-side store of one subject.
type Remote interface {
	GetCart(ctx context.Context) (domain.Cart, error)
	PutCart(ctx context.Context, cart domain.Cart) (domain.Cart, error)
	GetWishlist(ctx context.Context) ([]domain.WishlistEntry, error)
	ReplaceWishlist(ctx context.Context, entries []domain.WishlistEntry) ([]domain.WishlistEntry, error)
}

// LocalCache is the guest-side cache that is emptied once its contents are merged.
type LocalCache interface {
	ClearCart(ctx context.Context) error
	ClearWishlist(ctx context.Context) error
}

// Snapshot is the guest state captured right before authenticating.
type Snapshot struct {
	Cart     domain.Cart
	Wishlist []domain.WishlistEntry
}

func (s Snapshot) IsEmpty() bool {
	return s.Cart.IsEmpty() && len(s.Wishlist) == 0
}

// Outcome reports what a reconciliation run did. Warnings are non-fatal.
//
// Cart and Wishlist hold the stored merge result when CartMerged/WishMerged
// are set. When only CartFetched/WishFetched are set the write failed and they
// hold the account value read before the merge.
type Outcome struct {
	Skipped      bool
	CartMerged   bool
	WishMerged   bool
	CartFetched  bool
	WishFetched  bool
	Cart         domain.Cart
	Wishlist     []domain.WishlistEntry
	DroppedLines []string
	Warnings     []string
}

// Degraded reports whether any step failed.
func (o Outcome) Degraded() bool {
	return len(o.Warnings) > 0
}

// Engine runs reconciliation against a Remote.
type Engine struct {
	clock   domain.Clock
	catalog domain.Catalog
}

type Option func(*Engine)

// WithCatalog enables re-validation of merged lines against the product catalog.
func WithCatalog(c domain.Catalog) Option {
	return func(e *Engine) {
		e.catalog = c
	}
}

func WithClock(c domain.Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{clock: domain.SystemClock{}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Reconcile fetches the server state, merges the snapshot into it, writes the
// result back and clears the local cache. It never returns an error: every
// failure is logged and recorded in Outcome.Warnings, and the local cache is
// kept for any collection that could not be written.
func (e *Engine) Reconcile(ctx context.Context, remote Remote, cache LocalCache, local Snapshot) Outcome {
	log := observability.FromContext(ctx)

	if local.IsEmpty() {
		observability.Reconciliations.WithLabelValues("skipped").Inc()
		return Outcome{Skipped: true}
	}

	var out Outcome
	warn := func(step string, err error) {
		out.Warnings = append(out.Warnings, fmt.Sprintf("%s: %v", step, err))
		log.Warn("reconciliation step failed",
			slog.String("step", step),
			slog.String("error", err.Error()),
		)
	}

	if !local.Cart.IsEmpty() {
		if err := e.reconcileCart(ctx, remote, local.Cart, &out); err != nil {
			warn("cart", err)
		} else if err := cache.ClearCart(ctx); err != nil {
			warn("clear cart cache", err)
		}
	}

	if len(local.Wishlist) > 0 {
		if err := e.reconcileWishlist(ctx, remote, local.Wishlist, &out); err != nil {
			warn("wishlist", err)
		} else if err := cache.ClearWishlist(ctx); err != nil {
			warn("clear wishlist cache", err)
		}
	}

	outcome := "merged"
	if out.Degraded() {
		outcome = "degraded"
	}
	observability.Reconciliations.WithLabelValues(outcome).Inc()
	log.Info("reconciliation finished",
		slog.String("outcome", outcome),
		slog.Int("cart_lines", len(out.Cart.Items)),
		slog.Int("wishlist_entries", len(out.Wishlist)),
		slog.Int("dropped", len(out.DroppedLines)),
	)
	return out
}

func (e *Engine) reconcileCart(ctx context.Context, remote Remote, local domain.Cart, out *Outcome) error {
	server, err := remote.GetCart(ctx)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	out.Cart = server
	out.CartFetched = true

	merged := MergeCart(server, local, e.clock.Now())
	if e.catalog != nil {
		var dropped []string
		merged, dropped = e.revalidateCart(ctx, merged)
		out.DroppedLines = append(out.DroppedLines, dropped...)
	}

	stored, err := remote.PutCart(ctx, merged)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	out.Cart = stored
	out.CartMerged = true
	return nil
}

func (e *Engine) reconcileWishlist(ctx context.Context, remote Remote, local []domain.WishlistEntry, out *Outcome) error {
	server, err := remote.GetWishlist(ctx)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	out.Wishlist = server
	out.WishFetched = true

	merged := MergeWishlist(local, server)
	if e.catalog != nil {
		var dropped []string
		merged, dropped = e.revalidateWishlist(ctx, merged)
		out.DroppedLines = append(out.DroppedLines, dropped...)
	}

	stored, err := remote.ReplaceWishlist(ctx, merged)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	out.Wishlist = stored
	out.WishMerged = true
	return nil
}

// revalidateCart drops lines whose product no longer exists and refreshes
// price, name, image and stock for the rest. Lines are kept untouched when
// the catalog cannot answer.
func (e *Engine) revalidateCart(ctx context.Context, cart domain.Cart) (domain.Cart, []string) {
	kept := make([]domain.CartLine, 0, len(cart.Items))
	var dropped []string

	for _, line := range cart.Items {
		p, err := e.catalog.Product(ctx, line.ProductID)
		switch {
		case errors.Is(err, domain.ErrProductNotFound):
			dropped = append(dropped, line.ProductID)
			continue
		case err != nil:
			observability.FromContext(ctx).Debug("catalog lookup failed, keeping line",
				slog.String("product_id", line.ProductID),
				slog.String("error", err.Error()),
			)
		default:
			if p.Name != "" {
				line.ProductName = p.Name
			}
			if p.Image != "" {
				line.ProductImage = p.Image
			}
			line.UnitPrice = p.Price
			line.InventoryCap = max(p.InventoryCount, 1)
			line.Quantity = min(line.Quantity, line.InventoryCap)
			line.Recompute()
		}
		kept = append(kept, line)
	}

	cart.Items = kept
	return cart, dropped
}

func (e *Engine) revalidateWishlist(ctx context.Context, entries []domain.WishlistEntry) ([]domain.WishlistEntry, []string) {
	kept := make([]domain.WishlistEntry, 0, len(entries))
	var dropped []string

	for _, entry := range entries {
		p, err := e.catalog.Product(ctx, entry.ProductID)
		if errors.Is(err, domain.ErrProductNotFound) {
			dropped = append(dropped, entry.ProductID)
			continue
		}
		if err == nil {
			if p.Name != "" {
				entry.ProductName = p.Name
			}
			if p.Image != "" {
				entry.ProductImage = p.Image
			}
			entry.Price = p.Price
		}
		kept = append(kept, entry)
	}
	return kept, dropped
}
