// Package domain contains persistence models for marketplace accounts and
// entitlements and the precedence rules of their state machines.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// AccountState represents lifecycle states for a procurement account.
type AccountState string

const (
	AccountStatePending   AccountState = "PENDING"
	AccountStateActive    AccountState = "ACTIVE"
	AccountStateSuspended AccountState = "SUSPENDED"
)

// EntitlementState represents lifecycle states for a marketplace order.
type EntitlementState string

const (
	EntitlementStatePending   EntitlementState = "PENDING"
	EntitlementStateActive    EntitlementState = "ACTIVE"
	EntitlementStateCancelled EntitlementState = "CANCELLED"
	EntitlementStateDeleted   EntitlementState = "DELETED"
)

// Events can arrive duplicated and out of order, so transitions are ordered
// by state precedence rather than arrival time. CANCELLED and DELETED are
// absorbing: nothing moves an entitlement out of them.
var accountPrecedence = map[AccountState]int{
	AccountStatePending:   1,
	AccountStateActive:    2,
	AccountStateSuspended: 3,
}

var entitlementPrecedence = map[EntitlementState]int{
	EntitlementStatePending:   1,
	EntitlementStateActive:    2,
	EntitlementStateCancelled: 3,
	EntitlementStateDeleted:   4,
}

// Advances reports whether moving to next is a forward transition.
func (s AccountState) Advances(next AccountState) bool {
	return accountPrecedence[next] > accountPrecedence[s]
}

// Advances reports whether moving to next is a forward transition.
func (s EntitlementState) Advances(next EntitlementState) bool {
	return entitlementPrecedence[next] > entitlementPrecedence[s]
}

// Account is a marketplace customer procurement account. Accounts are never
// deleted; suspension is the terminal state.
type Account struct {
	ID         snowflake.ID      `gorm:"primaryKey"`
	AccountID  string            `gorm:"column:account_id;type:text;not null;uniqueIndex"`
	ProviderID string            `gorm:"column:provider_id;type:text"`
	State      AccountState      `gorm:"type:text;not null"`
	Metadata   datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt  time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt  time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Account) TableName() string { return "accounts" }

// Entitlement is one purchased subscription. order_id is globally unique and
// doubles as the DCR idempotency key.
type Entitlement struct {
	ID                 snowflake.ID     `gorm:"primaryKey"`
	OrderID            string           `gorm:"column:order_id;type:text;not null;uniqueIndex"`
	AccountID          string           `gorm:"column:account_id;type:text;not null;index"`
	ProductID          string           `gorm:"column:product_id;type:text"`
	Plan               string           `gorm:"type:text"`
	State              EntitlementState `gorm:"type:text;not null"`
	UsageReportingID   string           `gorm:"column:usage_reporting_id;type:text"`
	StartAt            *time.Time       `gorm:""`
	EndAt              *time.Time       `gorm:""`
	CancellationReason string           `gorm:"type:text"`
	CreatedAt          time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt          time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Entitlement) TableName() string { return "entitlements" }
