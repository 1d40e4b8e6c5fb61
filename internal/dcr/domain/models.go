// Package domain contains the issued OAuth client model and the DCR service
// contracts.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Client is one OAuth client issued for a marketplace order. The unique
// order_id column is what makes issuance idempotent: a second registration
// for the same order can only ever read this row back, never add another.
// Secret columns hold ciphertext; they are decrypted only at the point of
// returning credentials to the caller.
type Client struct {
	ID                      snowflake.ID `gorm:"primaryKey"`
	OrderID                 string       `gorm:"column:order_id;type:text;not null;uniqueIndex"`
	AccountID               string       `gorm:"column:account_id;type:text;not null;index"`
	ClientID                string       `gorm:"column:client_id;type:text;not null"`
	ClientSecretEnc         string       `gorm:"column:client_secret_enc;type:text;not null"`
	RegistrationTokenEnc    string       `gorm:"column:registration_token_enc;type:text"`
	ProviderRegistrationURI string       `gorm:"column:provider_registration_uri;type:text"`
	RedirectURIs            []string     `gorm:"column:redirect_uris;type:jsonb;serializer:json"`
	GrantTypes              []string     `gorm:"column:grant_types;type:jsonb;serializer:json"`
	CreatedAt               time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt               time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Client) TableName() string { return "dcr_clients" }

// Credentials is the registration response payload. ExpiresAt is always 0:
// issued secrets do not expire.
type Credentials struct {
	ClientID     string
	ClientSecret string
	ExpiresAt    int64
}
