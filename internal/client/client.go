// Package client talks to the storefront HTTP API on behalf of a shopper.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"storefront/internal/domain"

	"golang.org/x/time/rate"
)

// envelope is the response wrapper every API endpoint uses.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

// AuthResult is returned by Login and Register.
type AuthResult struct {
	Token string         `json:"token"`
	User  domain.Profile `json:"user"`
}

// Client is a storefront API client holding one bearer token.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	limiter     *rate.Limiter
	maxAttempts int
	backoff     time.Duration

	mu    sync.RWMutex
	token string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRateLimit paces outbound requests so the client stays under the server's quotas.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithRetry sets how often idempotent requests are retried on network or 5xx failures.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(c *Client) {
		c.maxAttempts = max(attempts, 1)
		c.backoff = backoff
	}
}

func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter:     rate.NewLimiter(rate.Limit(10), 10),
		maxAttempts: 3,
		backoff:     250 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *Client) Register(ctx context.Context, email, password, name string) (*AuthResult, error) {
	body := map[string]string{"email": email, "password": password, "name": name}
	return c.authenticate(ctx, "/api/auth/register", body)
}

func (c *Client) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	body := map[string]string{"email": email, "password": password}
	return c.authenticate(ctx, "/api/auth/login", body)
}

func (c *Client) authenticate(ctx context.Context, path string, body any) (*AuthResult, error) {
	var res AuthResult
	if err := c.do(ctx, http.MethodPost, path, body, &res); err != nil {
		return nil, err
	}
	if res.Token == "" {
		return nil, fmt.Errorf("%s: response carried no token", path)
	}
	c.SetToken(res.Token)
	return &res, nil
}

// Logout drops the token. Tokens are stateless, so a failed call to the
// server is not an error for the caller.
func (c *Client) Logout(ctx context.Context) error {
	defer c.SetToken("")
	err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
	if errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (c *Client) Me(ctx context.Context) (domain.Profile, error) {
	var p domain.Profile
	err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &p)
	return p, err
}

func (c *Client) GetCart(ctx context.Context) (domain.Cart, error) {
	cart := domain.EmptyCart()
	if err := c.do(ctx, http.MethodGet, "/api/cart", nil, &cart); err != nil {
		return domain.Cart{}, err
	}
	return cart, nil
}

// PutCart replaces the server cart and returns the stored, normalized value.
func (c *Client) PutCart(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
	if cart.Items == nil {
		cart.Items = []domain.CartLine{}
	}
	stored := domain.EmptyCart()
	if err := c.do(ctx, http.MethodPut, "/api/cart", cart, &stored); err != nil {
		return domain.Cart{}, err
	}
	return stored, nil
}

func (c *Client) GetWishlist(ctx context.Context) ([]domain.WishlistEntry, error) {
	entries := []domain.WishlistEntry{}
	if err := c.do(ctx, http.MethodGet, "/api/wishlist", nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// ReplaceWishlist syncs the whole wishlist in one call.
func (c *Client) ReplaceWishlist(ctx context.Context, entries []domain.WishlistEntry) ([]domain.WishlistEntry, error) {
	if entries == nil {
		entries = []domain.WishlistEntry{}
	}
	body := map[string]any{"items": entries}
	stored := []domain.WishlistEntry{}
	if err := c.do(ctx, http.MethodPost, "/api/wishlist", body, &stored); err != nil {
		return nil, err
	}
	return stored, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	env, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, body any) (*envelope, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
	}

	attempts := 1
	if method != http.MethodPost {
		attempts = c.maxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		env, retry, err := c.attempt(ctx, method, path, payload)
		if err == nil {
			return env, nil
		}
		if !retry {
			return nil, err
		}
		lastErr = err

		if attempt < attempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * c.backoff):
			}
		}
	}
	return nil, fmt.Errorf("%s %s failed after %d attempts: %w", method, path, attempts, lastErr)
}

func (c *Client) attempt(ctx context.Context, method, path string, payload []byte) (*envelope, bool, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, false, err
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, true, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, true, fmt.Errorf("failed to read response: %w", err)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if decodeErr != nil {
			return nil, false, fmt.Errorf("failed to decode response: %w", decodeErr)
		}
		return &env, false, nil
	}

	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Code:       env.Error,
		Message:    env.Message,
	}
	if apiErr.Code == "" {
		apiErr.Code = strings.ToLower(strings.ReplaceAll(http.StatusText(resp.StatusCode), " ", "_"))
	}
	if v := resp.Header.Get("Retry-After"); v != "" {
		apiErr.RetryAfter, _ = strconv.Atoi(v)
	}
	return nil, resp.StatusCode >= 500, apiErr
}
