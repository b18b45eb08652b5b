package domain

import "time"

// TokenClaims is what a verified bearer token resolves to.
type TokenClaims struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
	ID        string
}

// Clock returns the current time. Tests substitute a fixed clock.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
