package domain

import (
	"context"

	"gorm.io/gorm"
)

// Repository provides persistence for accounts and entitlements. Writes are
// scoped to a single external key; there are no multi-row transactions
// spanning unrelated orders.
type Repository interface {
	FindAccount(ctx context.Context, db *gorm.DB, accountID string) (*Account, error)
	InsertAccount(ctx context.Context, db *gorm.DB, account *Account) error
	// AdvanceAccountState updates state only when the stored row is still in
	// from; returns false when a concurrent writer got there first.
	AdvanceAccountState(ctx context.Context, db *gorm.DB, accountID string, from, to AccountState) (bool, error)

	FindEntitlement(ctx context.Context, db *gorm.DB, orderID string) (*Entitlement, error)
	InsertEntitlement(ctx context.Context, db *gorm.DB, entitlement *Entitlement) error
	AdvanceEntitlementState(ctx context.Context, db *gorm.DB, orderID string, from, to EntitlementState, reason string) (bool, error)
}

// Service is the event-driven provisioning state machine.
type Service interface {
	// HandleEvent applies one procurement event. A nil error means the event
	// was consumed (applied, duplicate, stale or unknown) and must be acked;
	// a non-nil error means processing failed and the source should redeliver.
	HandleEvent(ctx context.Context, event Event) error
}
