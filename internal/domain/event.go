package domain

import (
	"context"
	"time"
)

const (
	EventCartUpdated     = "cart.updated"
	EventCartCleared     = "cart.cleared"
	EventWishlistUpdated = "wishlist.updated"
	EventWishlistAdded   = "wishlist.entry_added"
	EventWishlistRemoved = "wishlist.entry_removed"
)

// StoreEvent is published after a successful write to a subject's cart or wishlist.
type StoreEvent struct {
	Type       string    `json:"type"`
	SubjectID  string    `json:"subjectId"`
	ItemCount  int       `json:"itemCount"`
	ProductID  string    `json:"productId,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// EventPublisher delivers store events to interested consumers.
type EventPublisher interface {
	PublishStoreEvent(ctx context.Context, event StoreEvent) error
}
