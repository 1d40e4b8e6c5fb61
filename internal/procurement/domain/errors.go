package domain

import "errors"

var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrEntitlementNotFound = errors.New("entitlement not found")
	// ErrEventInvalid marks events whose payload is missing required fields.
	ErrEventInvalid = errors.New("invalid event payload")
)
