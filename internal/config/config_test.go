package config

import (
	"strings"
	"testing"
	"time"

	"storefront/internal/ratelimit"

	"github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// defaults parses the struct tags against an empty environment.
func defaults(t *testing.T) Config {
	t.Helper()
	cfg, err := env.ParseAsWithOptions[Config](env.Options{Environment: map[string]string{}})
	require.NoError(t, err)
	return cfg
}

func TestConfig_IsProduction(t *testing.T) {
	tests := []struct {
		name        string
		environment string
		expected    bool
	}{
		{"production", "production", true},
		{"prod", "prod", true},
		{"development", "development", false},
		{"dev", "dev", false},
		{"staging", "staging", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Environment: tt.environment}
			if got := cfg.IsProduction(); got != tt.expected {
				t.Errorf("IsProduction() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestConfig_IsDevelopment(t *testing.T) {
	tests := []struct {
		name        string
		environment string
		expected    bool
	}{
		{"development", "development", true},
		{"dev", "dev", true},
		{"empty", "", true},
		{"production", "production", false},
		{"prod", "prod", false},
		{"staging", "staging", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Environment: tt.environment}
			if got := cfg.IsDevelopment(); got != tt.expected {
				t.Errorf("IsDevelopment() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestConfig_Validate_Production(t *testing.T) {
	tests := []struct {
		name          string
		tokenSecret   string
		wantError     bool
		errorContains string
	}{
		{
			name:        "valid_secret",
			tokenSecret: "this-is-a-very-secure-secret-with-32-plus-characters",
			wantError:   false,
		},
		{
			name:          "empty_secret",
			tokenSecret:   "",
			wantError:     true,
			errorContains: "TOKEN_SECRET must be set",
		},
		{
			name:          "development_secret",
			tokenSecret:   devTokenSecret,
			wantError:     true,
			errorContains: "TOKEN_SECRET must be set",
		},
		{
			name:          "short_secret",
			tokenSecret:   "short",
			wantError:     true,
			errorContains: "at least 32 characters",
		},
		{
			name:        "exactly_32_chars",
			tokenSecret: "12345678901234567890123456789012",
			wantError:   false,
		},
		{
			name:          "31_chars",
			tokenSecret:   "1234567890123456789012345678901",
			wantError:     true,
			errorContains: "at least 32 characters",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults(t)
			cfg.Environment = "production"
			cfg.TokenSecret = tt.tokenSecret

			err := cfg.Validate()

			if tt.wantError {
				if err == nil {
					t.Error("Expected error, got nil")
				} else if tt.errorContains != "" && !strings.Contains(err.Error(), tt.errorContains) {
					t.Errorf("Expected error containing %q, got %q", tt.errorContains, err.Error())
				}
			} else if err != nil {
				t.Errorf("Expected no error, got %v", err)
			}
		})
	}
}

func TestConfig_Validate_DevelopmentDefaultsSecret(t *testing.T) {
	for _, environment := range []string{"development", "staging", ""} {
		t.Run(environment, func(t *testing.T) {
			cfg := defaults(t)
			cfg.Environment = environment

			require.NoError(t, cfg.Validate())
			assert.Equal(t, devTokenSecret, cfg.TokenSecret)
		})
	}
}

func TestConfig_Validate_Rejects(t *testing.T) {
	tests := []struct {
		name          string
		mutate        func(*Config)
		errorContains string
	}{
		{
			name:          "unknown_store_backend",
			mutate:        func(c *Config) { c.StoreBackend = "mongo" },
			errorContains: "STORE_BACKEND",
		},
		{
			name:          "unknown_rate_limit_backend",
			mutate:        func(c *Config) { c.RateLimitBackend = "postgres" },
			errorContains: "RATE_LIMIT_BACKEND",
		},
		{
			name:          "zero_limit",
			mutate:        func(c *Config) { c.RateLimit.CartLimit = 0 },
			errorContains: "rate limit for cart",
		},
		{
			name:          "negative_window",
			mutate:        func(c *Config) { c.RateLimit.AuthWindow = -time.Second },
			errorContains: "rate limit for auth",
		},
		{
			name:          "tax_rate_out_of_range",
			mutate:        func(c *Config) { c.Pricing.TaxRate = 1.5 },
			errorContains: "PRICING_TAX_RATE",
		},
		{
			name:          "negative_shipping",
			mutate:        func(c *Config) { c.Pricing.FlatShippingFee = -1 },
			errorContains: "shipping",
		},
		{
			name:          "zero_token_ttl",
			mutate:        func(c *Config) { c.TokenTTL = 0 },
			errorContains: "TOKEN_TTL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults(t)
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorContains)
		})
	}
}

func TestConfig_Defaults(t *testing.T) {
	cfg := defaults(t)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, BackendMemory, cfg.StoreBackend)
	assert.Equal(t, BackendMemory, cfg.RateLimitBackend)
	assert.Equal(t, 7*24*time.Hour, cfg.TokenTTL)
	assert.Empty(t, cfg.RabbitMQURL, "events are off unless configured")
	assert.False(t, cfg.OpenAPIValidation)

	assert.Equal(t, ratelimit.DefaultPolicies(), cfg.Policies())
	assert.Equal(t, 500.0, cfg.PricingPolicy().FreeShippingThreshold)
	assert.Equal(t, 89.5, cfg.PricingPolicy().FlatShippingFee)
	assert.Equal(t, 0.15, cfg.PricingPolicy().TaxRate)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("TOKEN_SECRET", strings.Repeat("s", 40))
	t.Setenv("STORE_BACKEND", "postgres")
	t.Setenv("RATE_LIMIT_BACKEND", "redis")
	t.Setenv("RATE_LIMIT_AUTH_LIMIT", "3")
	t.Setenv("RATE_LIMIT_AUTH_WINDOW", "1s")
	t.Setenv("PRICING_TAX_RATE", "0.2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, BackendPostgres, cfg.StoreBackend)
	assert.Equal(t, BackendRedis, cfg.RateLimitBackend)
	assert.Equal(t, ratelimit.Policy{Window: time.Second, MaxRequests: 3}, cfg.Policies()[ratelimit.ClassAuth])
	assert.Equal(t, 0.2, cfg.PricingPolicy().TaxRate)
}

func TestLoad_InvalidValue(t *testing.T) {
	t.Setenv("TOKEN_TTL", "forever")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadClient(t *testing.T) {
	t.Setenv("STOREFRONT_API_URL", "http://shop.test")
	t.Setenv("CACHE_BACKEND", "memory")
	t.Setenv("SYNC_INTERVAL", "0s")

	cfg, err := LoadClient()
	require.NoError(t, err)

	assert.Equal(t, "http://shop.test", cfg.APIURL)
	assert.Equal(t, BackendMemory, cfg.CacheBackend)
	assert.Equal(t, time.Duration(0), cfg.SyncInterval)
	assert.Equal(t, 300*time.Millisecond, cfg.SaveDebounce)
}

func TestClientConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ClientConfig
		wantErr bool
	}{
		{name: "sqlite", cfg: ClientConfig{APIURL: "http://x", CacheBackend: BackendSQLite, CachePath: "c.db"}},
		{name: "memory", cfg: ClientConfig{APIURL: "http://x", CacheBackend: BackendMemory}},
		{name: "sqlite_without_path", cfg: ClientConfig{APIURL: "http://x", CacheBackend: BackendSQLite}, wantErr: true},
		{name: "unknown_backend", cfg: ClientConfig{APIURL: "http://x", CacheBackend: "redis"}, wantErr: true},
		{name: "missing_api_url", cfg: ClientConfig{CacheBackend: BackendMemory}, wantErr: true},
		{name: "negative_interval", cfg: ClientConfig{APIURL: "http://x", CacheBackend: BackendMemory, SyncInterval: -1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
