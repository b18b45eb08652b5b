package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"storefront/internal/domain"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

var ErrInvalidResponse = errors.New("invalid response from catalog")

// errRetryable marks failures worth another attempt (network errors, 5xx, 429).
var errRetryable = errors.New("retryable catalog failure")

// Client looks up products over the catalog's HTTP API.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	limiter     *rate.Limiter
	breaker     *gobreaker.CircuitBreaker[*domain.Product]
	maxAttempts int
	backoff     time.Duration
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRateLimit paces outbound requests to rps with the given burst.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithRetry sets the attempt count and the base delay between attempts.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(c *Client) {
		c.maxAttempts = max(attempts, 1)
		c.backoff = backoff
	}
}

// NewClient creates a catalog client. The circuit opens after five
// consecutive failed lookups and retries after 30 seconds.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter:     rate.NewLimiter(rate.Limit(20), 5),
		maxAttempts: 3,
		backoff:     200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.breaker = gobreaker.NewCircuitBreaker[*domain.Product](gobreaker.Settings{
		Name:        "catalog",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrProductNotFound) || errors.Is(err, context.Canceled)
		},
	})
	return c
}

// Product fetches a product by ID. A missing product returns
// domain.ErrProductNotFound; an open circuit or exhausted retries return an
// error matching domain.ErrCatalogUnavailable.
func (c *Client) Product(ctx context.Context, id string) (*domain.Product, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.ErrProductNotFound
	}

	product, err := c.breaker.Execute(func() (*domain.Product, error) {
		return c.fetchWithRetry(ctx, id)
	})
	switch {
	case err == nil:
		return product, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, fmt.Errorf("%w: %v", domain.ErrCatalogUnavailable, err)
	default:
		return nil, err
	}
}

// State reports the breaker state, used by readiness checks.
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}

func (c *Client) fetchWithRetry(ctx context.Context, id string) (*domain.Product, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		product, err := c.fetch(ctx, id)
		if err == nil {
			return product, nil
		}
		if !errors.Is(err, errRetryable) {
			return nil, err
		}
		lastErr = err

		if attempt < c.maxAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * c.backoff):
			}
		}
	}
	return nil, fmt.Errorf("%w: failed to fetch product after %d attempts: %v",
		domain.ErrCatalogUnavailable, c.maxAttempts, lastErr)
}

func (c *Client) fetch(ctx context.Context, id string) (*domain.Product, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/api/products/%s", c.baseURL, url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", errRetryable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return nil, domain.ErrProductNotFound
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", errRetryable, resp.StatusCode)
	default:
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return decodeProduct(resp.Body, id)
}

func decodeProduct(body io.Reader, id string) (*domain.Product, error) {
	var p domain.Product
	if err := json.NewDecoder(io.LimitReader(body, 1<<20)).Decode(&p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if p.ID == "" {
		p.ID = id
	}
	if p.ID != id {
		return nil, fmt.Errorf("%w: asked for %q, got %q", ErrInvalidResponse, id, p.ID)
	}
	if p.Price < 0 {
		return nil, fmt.Errorf("%w: negative price", ErrInvalidResponse)
	}
	return &p, nil
}
