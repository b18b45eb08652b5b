// Package shopper is the client-side session of one shopper. Guests work
// against the local cache; once authenticated, local state is reconciled with
// the account once and every later change is pushed in the background.
package shopper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"storefront/internal/client"
	"storefront/internal/clientcache"
	"storefront/internal/domain"
	"storefront/internal/observability"
	"storefront/internal/reconcile"
	"storefront/internal/syncer"
)

var ErrNoCatalog = errors.New("no catalog configured")

// API is the part of the storefront API a shopper session uses.
type API interface {
	reconcile.Remote
	Login(ctx context.Context, email, password string) (*client.AuthResult, error)
	Register(ctx context.Context, email, password, name string) (*client.AuthResult, error)
	Logout(ctx context.Context) error
	Me(ctx context.Context) (domain.Profile, error)
	SetToken(token string)
}

// Shopper holds the in-memory cart and wishlist and decides where changes go.
type Shopper struct {
	api       API
	cache     *clientcache.Cache
	engine    *reconcile.Engine
	catalog   domain.Catalog
	scheduler *syncer.Scheduler
	pricing   domain.PricingPolicy
	clock     domain.Clock

	syncInterval time.Duration

	mu       sync.RWMutex
	cart     domain.Cart
	wishlist []domain.WishlistEntry
	profile  *domain.Profile
	version  uint64
	cartSync collectionSync
	wishSync collectionSync
}

// collectionSync tracks how one collection of a signed-in session relates to
// the account.
type collectionSync struct {
	// loaded is set once the in-memory value is built on the account value.
	// Until then a push reads the account first and merges into it.
	loaded bool
	// guestKept is set while the cache holds a guest copy that could not be
	// merged; the cache is left alone so the next sign-in can retry.
	guestKept bool
}

type Option func(*Shopper)

// WithCatalog is used to build cart lines and wishlist entries from product IDs.
func WithCatalog(c domain.Catalog) Option {
	return func(s *Shopper) {
		s.catalog = c
	}
}

func WithEngine(e *reconcile.Engine) Option {
	return func(s *Shopper) {
		s.engine = e
	}
}

func WithPricing(p domain.PricingPolicy) Option {
	return func(s *Shopper) {
		s.pricing = p
	}
}

func WithSyncInterval(d time.Duration) Option {
	return func(s *Shopper) {
		s.syncInterval = d
	}
}

func WithClock(c domain.Clock) Option {
	return func(s *Shopper) {
		s.clock = c
	}
}

func New(api API, cache *clientcache.Cache, opts ...Option) *Shopper {
	s := &Shopper{
		api:          api,
		cache:        cache,
		clock:        domain.SystemClock{},
		pricing:      domain.DefaultPricing(),
		syncInterval: syncer.DefaultInterval,
		cart:         domain.EmptyCart(),
		wishlist:     []domain.WishlistEntry{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.engine == nil {
		s.engine = reconcile.NewEngine(reconcile.WithClock(s.clock))
	}
	s.scheduler = syncer.New(s, s, syncer.WithInterval(s.syncInterval))
	cache.Watch(s)
	return s
}

// Open loads the cached guest state and resumes a stored session if there is one.
func (s *Shopper) Open(ctx context.Context) error {
	s.mu.Lock()
	s.cart = s.cache.LoadCart(ctx)
	s.wishlist = s.cache.LoadWishlist(ctx)
	s.mu.Unlock()

	s.scheduler.Start()

	if s.cache.LoadToken(ctx) == "" {
		return nil
	}
	if _, err := s.Resume(ctx); err != nil && !isAuthError(err) {
		return err
	}
	return nil
}

// Close writes any pending local changes and stops background sync.
func (s *Shopper) Close(ctx context.Context) error {
	s.scheduler.Stop()
	return s.cache.Flush(ctx)
}

func (s *Shopper) Login(ctx context.Context, email, password string) (reconcile.Outcome, error) {
	snapshot := s.snapshot()
	res, err := s.api.Login(ctx, email, password)
	if err != nil {
		return reconcile.Outcome{}, err
	}
	return s.authenticated(ctx, res.Token, res.User, snapshot), nil
}

func (s *Shopper) Register(ctx context.Context, email, password, name string) (reconcile.Outcome, error) {
	snapshot := s.snapshot()
	res, err := s.api.Register(ctx, email, password, name)
	if err != nil {
		return reconcile.Outcome{}, err
	}
	return s.authenticated(ctx, res.Token, res.User, snapshot), nil
}

// Resume restores a session from the stored token. An expired or rejected
// token is discarded and the shopper stays a guest.
func (s *Shopper) Resume(ctx context.Context) (reconcile.Outcome, error) {
	token := s.cache.LoadToken(ctx)
	if token == "" {
		return reconcile.Outcome{}, domain.ErrAuthRequired
	}

	snapshot := s.snapshot()
	s.api.SetToken(token)
	profile, err := s.api.Me(ctx)
	if err != nil {
		s.api.SetToken("")
		if isAuthError(err) {
			if clearErr := s.cache.ClearToken(ctx); clearErr != nil {
				observability.FromContext(ctx).Warn("failed to drop stale token", slog.String("error", clearErr.Error()))
			}
		}
		return reconcile.Outcome{}, err
	}
	return s.authenticated(ctx, token, profile, snapshot), nil
}

// Logout forgets the token and clears local state.
func (s *Shopper) Logout(ctx context.Context) error {
	s.mu.Lock()
	profile := s.profile
	s.profile = nil
	s.cart = domain.EmptyCart()
	s.wishlist = []domain.WishlistEntry{}
	s.cartSync = collectionSync{}
	s.wishSync = collectionSync{}
	s.version++
	s.mu.Unlock()

	if profile != nil {
		s.scheduler.Forget(profile.ID)
	}
	if err := s.api.Logout(ctx); err != nil {
		return err
	}
	if err := s.cache.ClearToken(ctx); err != nil {
		return err
	}
	return s.cache.Clear(ctx)
}

func (s *Shopper) authenticated(ctx context.Context, token string, profile domain.Profile, snapshot reconcile.Snapshot) reconcile.Outcome {
	ctx = observability.WithSubject(ctx, profile.ID)
	log := observability.FromContext(ctx)

	if err := s.cache.SaveToken(ctx, token); err != nil {
		log.Warn("failed to persist token", slog.String("error", err.Error()))
	}

	outcome := s.engine.Reconcile(ctx, s.api, s.cache, snapshot)
	cart, cartSync := s.accountCart(ctx, outcome, snapshot)
	wishlist, wishSync := s.accountWishlist(ctx, outcome, snapshot)

	s.mu.Lock()
	s.profile = &profile
	s.cart = cart
	s.wishlist = wishlist
	s.cartSync = cartSync
	s.wishSync = wishSync
	s.version++
	s.mu.Unlock()

	if !cartSync.loaded || !wishSync.loaded {
		s.scheduler.Trigger(profile.ID)
	}

	log.Info("shopper authenticated",
		slog.Bool("reconciled", !outcome.Skipped),
		slog.Bool("cart_loaded", cartSync.loaded),
		slog.Bool("wishlist_loaded", wishSync.loaded),
	)
	return outcome
}

// accountCart picks the cart held after sign-in: the merge result, or the
// account cart when the merge did not complete. The guest snapshot is never
// held, since pushing it would replace lines only the account has.
func (s *Shopper) accountCart(ctx context.Context, outcome reconcile.Outcome, snapshot reconcile.Snapshot) (domain.Cart, collectionSync) {
	if outcome.CartMerged {
		return outcome.Cart, collectionSync{loaded: true}
	}

	st := collectionSync{guestKept: !snapshot.Cart.IsEmpty()}
	if outcome.CartFetched {
		st.loaded = true
		return outcome.Cart, st
	}
	server, err := s.api.GetCart(ctx)
	if err != nil {
		observability.FromContext(ctx).Warn("failed to load account cart", slog.String("error", err.Error()))
		return domain.EmptyCart(), st
	}
	st.loaded = true
	return server, st
}

func (s *Shopper) accountWishlist(ctx context.Context, outcome reconcile.Outcome, snapshot reconcile.Snapshot) ([]domain.WishlistEntry, collectionSync) {
	if outcome.WishMerged {
		return nonNilEntries(outcome.Wishlist), collectionSync{loaded: true}
	}

	st := collectionSync{guestKept: len(snapshot.Wishlist) > 0}
	if outcome.WishFetched {
		st.loaded = true
		return nonNilEntries(outcome.Wishlist), st
	}
	server, err := s.api.GetWishlist(ctx)
	if err != nil {
		observability.FromContext(ctx).Warn("failed to load account wishlist", slog.String("error", err.Error()))
		return []domain.WishlistEntry{}, st
	}
	st.loaded = true
	return nonNilEntries(server), st
}

func nonNilEntries(entries []domain.WishlistEntry) []domain.WishlistEntry {
	if entries == nil {
		return []domain.WishlistEntry{}
	}
	return entries
}

// Profile returns the signed-in account, if any.
func (s *Shopper) Profile() (domain.Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return domain.Profile{}, false
	}
	return *s.profile, true
}

func (s *Shopper) Cart() domain.Cart {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cart.Clone()
}

func (s *Shopper) Totals() domain.Totals {
	return s.pricing.Totals(s.Cart())
}

func (s *Shopper) Wishlist() []domain.WishlistEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.WishlistEntry{}, s.wishlist...)
}

// AddToCart looks the product up in the catalog and adds quantity units,
// clamped to the available inventory.
func (s *Shopper) AddToCart(ctx context.Context, productID string, quantity int) (domain.CartLine, error) {
	if s.catalog == nil {
		return domain.CartLine{}, ErrNoCatalog
	}
	p, err := s.catalog.Product(ctx, productID)
	if err != nil {
		return domain.CartLine{}, fmt.Errorf("failed to look up %s: %w", productID, err)
	}
	if p.InventoryCount < 1 {
		return domain.CartLine{}, domain.NewValidationError("%s is out of stock", p.ID)
	}
	return s.AddLine(domain.CartLine{
		ProductID:    p.ID,
		ProductName:  p.Name,
		ProductImage: p.Image,
		UnitPrice:    p.Price,
		Quantity:     quantity,
		InventoryCap: p.InventoryCount,
	})
}

// AddLine merges line into the cart. An existing line for the same product
// gains the quantity and takes the new price and metadata.
func (s *Shopper) AddLine(line domain.CartLine) (domain.CartLine, error) {
	if line.ProductID == "" {
		return domain.CartLine{}, domain.NewValidationError("Product ID is required")
	}

	s.mu.Lock()
	if len(s.cart.Items) >= domain.MaxCartLines && s.cart.Find(line.ProductID) < 0 {
		s.mu.Unlock()
		return domain.CartLine{}, domain.NewValidationError("Cart too large")
	}

	if i := s.cart.Find(line.ProductID); i >= 0 {
		existing := s.cart.Items[i]
		line.Quantity += existing.Quantity
		line.AddedAt = existing.AddedAt
		line = clampLine(line, s.clock.Now())
		s.cart.Items[i] = line
	} else {
		line = clampLine(line, s.clock.Now())
		s.cart.Items = append(s.cart.Items, line)
	}
	s.mu.Unlock()

	s.changed()
	return line, nil
}

// SetQuantity changes a line's quantity; zero or less removes it.
func (s *Shopper) SetQuantity(productID string, quantity int) bool {
	if quantity <= 0 {
		return s.RemoveFromCart(productID)
	}

	s.mu.Lock()
	i := s.cart.Find(productID)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	line := s.cart.Items[i]
	line.Quantity = quantity
	s.cart.Items[i] = clampLine(line, s.clock.Now())
	s.mu.Unlock()

	s.changed()
	return true
}

func (s *Shopper) RemoveFromCart(productID string) bool {
	s.mu.Lock()
	i := s.cart.Find(productID)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.cart.Items = append(s.cart.Items[:i], s.cart.Items[i+1:]...)
	s.mu.Unlock()

	s.changed()
	return true
}

func (s *Shopper) ClearCart() {
	s.mu.Lock()
	s.cart = domain.Cart{Items: []domain.CartLine{}, Currency: s.cart.Currency}
	s.mu.Unlock()

	s.changed()
}

// AddToWishlist adds a product. Catalog metadata is attached when a catalog
// is configured and answers; added is false when the product is already listed.
func (s *Shopper) AddToWishlist(ctx context.Context, productID string) (bool, error) {
	if productID == "" {
		return false, domain.NewValidationError("Product ID is required")
	}

	entry := domain.WishlistEntry{ProductID: productID, AddedAt: s.clock.Now()}
	if s.catalog != nil {
		p, err := s.catalog.Product(ctx, productID)
		switch {
		case errors.Is(err, domain.ErrProductNotFound):
			return false, fmt.Errorf("failed to look up %s: %w", productID, err)
		case err != nil:
			observability.FromContext(ctx).Debug("catalog lookup failed, adding bare entry",
				slog.String("product_id", productID),
				slog.String("error", err.Error()),
			)
		default:
			entry.ProductName = p.Name
			entry.ProductImage = p.Image
			entry.Price = p.Price
		}
	}

	s.mu.Lock()
	for _, e := range s.wishlist {
		if e.ProductID == productID {
			s.mu.Unlock()
			return false, nil
		}
	}
	if len(s.wishlist) >= domain.MaxWishlistEntries {
		s.mu.Unlock()
		return false, domain.NewValidationError("Wishlist too large")
	}
	s.wishlist = append(s.wishlist, entry)
	s.mu.Unlock()

	s.changed()
	return true, nil
}

func (s *Shopper) RemoveFromWishlist(productID string) bool {
	s.mu.Lock()
	idx := -1
	for i, e := range s.wishlist {
		if e.ProductID == productID {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	s.wishlist = append(s.wishlist[:idx], s.wishlist[idx+1:]...)
	s.mu.Unlock()

	s.changed()
	return true
}

// changed writes the new state through to the cache, schedules the debounced
// safety write and, for an authenticated shopper, a push.
func (s *Shopper) changed() {
	s.mu.Lock()
	s.version++
	s.mu.Unlock()

	s.persist(context.Background())
	s.cache.MarkDirty()
	if p, ok := s.Profile(); ok {
		s.scheduler.Trigger(p.ID)
	}
}

// persist writes every collection the cache may hold right away.
func (s *Shopper) persist(ctx context.Context) {
	log := observability.FromContext(ctx)
	if cart, ok := s.CartState(); ok {
		if err := s.cache.SaveCart(ctx, cart); err != nil {
			log.Warn("failed to cache cart", slog.String("error", err.Error()))
		}
	}
	if entries, ok := s.WishlistState(); ok {
		if err := s.cache.SaveWishlist(ctx, entries); err != nil {
			log.Warn("failed to cache wishlist", slog.String("error", err.Error()))
		}
	}
}

func (s *Shopper) snapshot() reconcile.Snapshot {
	return reconcile.Snapshot{Cart: s.Cart(), Wishlist: s.Wishlist()}
}

// CartState and WishlistState feed the cache. A collection whose unmerged
// guest copy is still cached is held back.
func (s *Shopper) CartState() (domain.Cart, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cart.Clone(), !s.cartSync.guestKept
}

func (s *Shopper) WishlistState() ([]domain.WishlistEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.WishlistEntry{}, s.wishlist...), !s.wishSync.guestKept
}

// SyncState feeds the background scheduler.
func (s *Shopper) SyncState(subjectID string) (syncer.State, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.profile == nil || s.profile.ID != subjectID {
		return syncer.State{}, false
	}
	return syncer.State{
		Cart:     s.cart.Clone(),
		Wishlist: append([]domain.WishlistEntry{}, s.wishlist...),
		Version:  s.version,
	}, true
}

// Sync pushes the current state for the signed-in account and waits for the
// result. It queues behind a background push already in flight.
func (s *Shopper) Sync(ctx context.Context) error {
	p, ok := s.Profile()
	if !ok {
		return domain.ErrAuthRequired
	}
	err := s.scheduler.PushNow(ctx, p.ID)
	if errors.Is(err, syncer.ErrNoSession) {
		return domain.ErrAuthRequired
	}
	return err
}

// Push replaces the account's cart and wishlist with state. The two writes
// are independent and their errors are joined. A collection whose account
// value was never loaded is read and merged first, then adopted.
func (s *Shopper) Push(ctx context.Context, _ string, state syncer.State) error {
	s.mu.RLock()
	cartLoaded, wishLoaded := s.cartSync.loaded, s.wishSync.loaded
	s.mu.RUnlock()

	cartErr := s.pushCart(ctx, state, cartLoaded)
	wishErr := s.pushWishlist(ctx, state, wishLoaded)
	return errors.Join(cartErr, wishErr)
}

func (s *Shopper) pushCart(ctx context.Context, state syncer.State, loaded bool) error {
	cart := state.Cart
	if !loaded {
		server, err := s.api.GetCart(ctx)
		if err != nil {
			return fmt.Errorf("failed to load account cart: %w", err)
		}
		cart = reconcile.MergeCart(server, cart, s.clock.Now())
	}

	stored, err := s.api.PutCart(ctx, cart)
	if err != nil || loaded {
		return err
	}

	if s.adopt(state.Version, func() {
		s.cart = stored
		s.cartSync.loaded = true
	}) {
		s.persist(ctx)
	}
	return nil
}

func (s *Shopper) pushWishlist(ctx context.Context, state syncer.State, loaded bool) error {
	entries := state.Wishlist
	if !loaded {
		server, err := s.api.GetWishlist(ctx)
		if err != nil {
			return fmt.Errorf("failed to load account wishlist: %w", err)
		}
		entries = reconcile.MergeWishlist(entries, server)
	}

	stored, err := s.api.ReplaceWishlist(ctx, entries)
	if err != nil || loaded {
		return err
	}

	if s.adopt(state.Version, func() {
		s.wishlist = nonNilEntries(stored)
		s.wishSync.loaded = true
	}) {
		s.persist(ctx)
	}
	return nil
}

// adopt applies set when nothing changed since the pushed state was taken.
// Otherwise the collection stays unloaded and the follow-up push merges again.
func (s *Shopper) adopt(version uint64, set func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.profile == nil || s.version != version {
		return false
	}
	set()
	return true
}

func clampLine(line domain.CartLine, now time.Time) domain.CartLine {
	if line.InventoryCap < 1 {
		line.InventoryCap = domain.DefaultInventoryCap
	}
	if line.UnitPrice < 0 {
		line.UnitPrice = 0
	}
	line.Quantity = min(max(line.Quantity, 1), line.InventoryCap)
	if line.AddedAt.IsZero() {
		line.AddedAt = now
	}
	line.Recompute()
	return line
}

func isAuthError(err error) bool {
	return errors.Is(err, domain.ErrAuthRequired) ||
		errors.Is(err, domain.ErrInvalidToken) ||
		errors.Is(err, domain.ErrTokenExpired)
}
