package domain

import (
	"context"

	"gorm.io/gorm"
)

// Repository provides persistence for issued OAuth clients.
type Repository interface {
	FindByOrderID(ctx context.Context, db *gorm.DB, orderID string) (*Client, error)
	// Insert adds a row; a unique violation on order_id surfaces unchanged
	// so the caller can detect a lost creation race.
	Insert(ctx context.Context, db *gorm.DB, client *Client) error
}

// RegisterRequest is one registration call, already routed off the hybrid
// endpoint.
type RegisterRequest struct {
	SoftwareStatement string
	RedirectURIs      []string

	// Caller-supplied credentials, honored only in static mode.
	ClientID     string
	ClientSecret string
}

// Service issues OAuth clients per order, exactly once.
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*Credentials, error)
}
