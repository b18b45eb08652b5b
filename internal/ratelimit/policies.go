package ratelimit

import "time"

// Action classes gate different groups of endpoints.
const (
	ClassAuth     = "auth"
	ClassCart     = "cart"
	ClassWishlist = "wishlist"
	ClassFetch    = "fetch"
)

// Policies maps an action class to its quota.
type Policies map[string]Policy

// DefaultPolicies returns the stock quotas for every action class.
func DefaultPolicies() Policies {
	return Policies{
		ClassAuth:     {Window: 15 * time.Minute, MaxRequests: 10},
		ClassCart:     {Window: time.Minute, MaxRequests: 30},
		ClassWishlist: {Window: time.Minute, MaxRequests: 30},
		ClassFetch:    {Window: time.Minute, MaxRequests: 60},
	}
}

// Key builds the counter key for an action class and client identity.
func Key(class, client string) string {
	return class + ":" + client
}
