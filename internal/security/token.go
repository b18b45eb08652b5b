package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTokenTTL matches the lifetime of a shopper session.
const DefaultTokenTTL = 7 * 24 * time.Hour

const bearerPrefix = "Bearer "

// TokenService issues and verifies HMAC-signed bearer tokens.
// A token carries the subject, issue time, expiry and a random nonce.
// There is no server-side revocation record; logout is client-side.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	clock  domain.Clock
}

// TokenOption customizes a TokenService.
type TokenOption func(*TokenService)

// WithClock replaces the wall clock used for iat/exp.
func WithClock(clock domain.Clock) TokenOption {
	return func(s *TokenService) {
		s.clock = clock
	}
}

// NewTokenService creates a token service signing with secret.
func NewTokenService(secret string, ttl time.Duration, opts ...TokenOption) (*TokenService, error) {
	if secret == "" {
		return nil, errors.New("token secret must not be empty")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	s := &TokenService{
		secret: []byte(secret),
		ttl:    ttl,
		clock:  domain.SystemClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue creates a signed token for subjectID.
func (s *TokenService) Issue(subjectID string) (string, error) {
	if subjectID == "" {
		return "", fmt.Errorf("issue token: %w", domain.ErrInvalidInput)
	}

	now := s.clock.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subjectID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		ID:        strings.ReplaceAll(uuid.NewString(), "-", ""),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry of token.
// It returns domain.ErrTokenExpired once exp <= now and domain.ErrInvalidToken
// for anything malformed, tampered with, or signed with another algorithm.
func (s *TokenService) Verify(token string) (*domain.TokenClaims, error) {
	if token == "" {
		return nil, domain.ErrAuthRequired
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.clock.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired
		}
		return nil, domain.ErrInvalidToken
	}

	if claims.Subject == "" || claims.IssuedAt == nil {
		return nil, domain.ErrInvalidToken
	}

	return &domain.TokenClaims{
		Subject:   claims.Subject,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
		ID:        claims.ID,
	}, nil
}

// VerifyHeader verifies the token carried by an Authorization header value.
func (s *TokenService) VerifyHeader(header string) (*domain.TokenClaims, error) {
	token, err := BearerToken(header)
	if err != nil {
		return nil, err
	}
	return s.Verify(token)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", domain.ErrAuthRequired
	}
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", domain.ErrInvalidToken
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
	if token == "" {
		return "", domain.ErrAuthRequired
	}
	return token, nil
}
