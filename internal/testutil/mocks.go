// Package testutil provides shared test utilities, mocks, and fixtures
// for testing the storefront application.
package testutil

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"storefront/internal/domain"
)

// Common test errors
var (
	ErrMockNotImplemented = errors.New("mock function not implemented")
	ErrMockStore          = errors.New("mock: store unavailable")
)

// FixedClock is a domain.Clock that only moves when told to
type FixedClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixedClock returns a clock stopped at FixedTime
func NewFixedClock() *FixedClock {
	return &FixedClock{now: FixedTime}
}

func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// MockUserRepository implements domain.UserRepository for testing
type MockUserRepository struct {
	mu sync.RWMutex

	// Function overrides - set these to customize behavior
	CreateFunc     func(ctx context.Context, user *domain.User) error
	GetByIDFunc    func(ctx context.Context, id string) (*domain.User, error)
	GetByEmailFunc func(ctx context.Context, email string) (*domain.User, error)

	// In-memory storage for simple tests
	Users map[string]*domain.User
}

// NewMockUserRepository creates a new MockUserRepository with initialized maps
func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		Users: make(map[string]*domain.User),
	}
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.Users {
		if strings.EqualFold(u.Email, user.Email) {
			return domain.ErrEmailExists
		}
	}
	if user.ID == "" {
		user.ID = nextID("user")
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = FixedTime
	}
	m.Users[user.ID] = user
	return nil
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if user, ok := m.Users[id]; ok {
		return user, nil
	}
	return nil, domain.ErrUserNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.Users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

// MockCartRepository implements domain.CartRepository for testing
type MockCartRepository struct {
	mu sync.RWMutex

	GetFunc    func(ctx context.Context, subjectID string) (domain.Cart, error)
	PutFunc    func(ctx context.Context, subjectID string, cart domain.Cart) error
	DeleteFunc func(ctx context.Context, subjectID string) error

	Carts    map[string]domain.Cart
	PutCalls int
}

func NewMockCartRepository() *MockCartRepository {
	return &MockCartRepository{
		Carts: make(map[string]domain.Cart),
	}
}

func (m *MockCartRepository) Get(ctx context.Context, subjectID string) (domain.Cart, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, subjectID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if cart, ok := m.Carts[subjectID]; ok {
		return cart.Clone(), nil
	}
	return domain.EmptyCart(), nil
}

func (m *MockCartRepository) Put(ctx context.Context, subjectID string, cart domain.Cart) error {
	m.mu.Lock()
	m.PutCalls++
	m.mu.Unlock()

	if m.PutFunc != nil {
		return m.PutFunc(ctx, subjectID, cart)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Carts[subjectID] = cart.Clone()
	return nil
}

func (m *MockCartRepository) Delete(ctx context.Context, subjectID string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, subjectID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Carts, subjectID)
	return nil
}

// MockWishlistRepository implements domain.WishlistRepository for testing
type MockWishlistRepository struct {
	mu sync.RWMutex

	GetFunc     func(ctx context.Context, subjectID string) ([]domain.WishlistEntry, error)
	ReplaceFunc func(ctx context.Context, subjectID string, entries []domain.WishlistEntry) error

	Wishlists map[string][]domain.WishlistEntry
}

func NewMockWishlistRepository() *MockWishlistRepository {
	return &MockWishlistRepository{
		Wishlists: make(map[string][]domain.WishlistEntry),
	}
}

func (m *MockWishlistRepository) Get(ctx context.Context, subjectID string) ([]domain.WishlistEntry, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, subjectID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.WishlistEntry{}, m.Wishlists[subjectID]...), nil
}

func (m *MockWishlistRepository) Replace(ctx context.Context, subjectID string, entries []domain.WishlistEntry) error {
	if m.ReplaceFunc != nil {
		return m.ReplaceFunc(ctx, subjectID, entries)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Wishlists[subjectID] = append([]domain.WishlistEntry{}, entries...)
	return nil
}

func (m *MockWishlistRepository) Add(_ context.Context, subjectID string, entry domain.WishlistEntry) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.Wishlists[subjectID] {
		if e.ProductID == entry.ProductID {
			return false, nil
		}
	}
	m.Wishlists[subjectID] = append(m.Wishlists[subjectID], entry)
	return true, nil
}

func (m *MockWishlistRepository) Remove(_ context.Context, subjectID, productID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.Wishlists[subjectID]
	for i, e := range entries {
		if e.ProductID == productID {
			m.Wishlists[subjectID] = append(entries[:i:i], entries[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// MockEventPublisher records published store events
type MockEventPublisher struct {
	mu     sync.Mutex
	events []domain.StoreEvent

	// Err, when set, is returned from every publish
	Err error
}

func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{}
}

func (m *MockEventPublisher) PublishStoreEvent(_ context.Context, event domain.StoreEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.events = append(m.events, event)
	return nil
}

// Events returns a copy of the published events
func (m *MockEventPublisher) Events() []domain.StoreEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.StoreEvent(nil), m.events...)
}

// Reset clears recorded events
func (m *MockEventPublisher) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = nil
}
