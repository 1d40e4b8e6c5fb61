package domain

import "time"

// EventType identifies a marketplace procurement event.
type EventType string

const (
	EventAccountCreationRequested EventType = "ACCOUNT_CREATION_REQUESTED"
	EventAccountActive            EventType = "ACCOUNT_ACTIVE"
	EventAccountSuspended         EventType = "ACCOUNT_SUSPENDED"

	EventEntitlementCreationRequested EventType = "ENTITLEMENT_CREATION_REQUESTED"
	EventEntitlementActive            EventType = "ENTITLEMENT_ACTIVE"
	EventEntitlementCancelled         EventType = "ENTITLEMENT_CANCELLED"
	EventEntitlementDeleted           EventType = "ENTITLEMENT_DELETED"
)

// AccountTargetState maps an account event to the state it drives toward.
// The second return is false for event types this service does not handle.
func (t EventType) AccountTargetState() (AccountState, bool) {
	switch t {
	case EventAccountCreationRequested:
		return AccountStatePending, true
	case EventAccountActive:
		return AccountStateActive, true
	case EventAccountSuspended:
		return AccountStateSuspended, true
	default:
		return "", false
	}
}

// EntitlementTargetState maps an entitlement event to its target state.
func (t EventType) EntitlementTargetState() (EntitlementState, bool) {
	switch t {
	case EventEntitlementCreationRequested:
		return EntitlementStatePending, true
	case EventEntitlementActive:
		return EntitlementStateActive, true
	case EventEntitlementCancelled:
		return EntitlementStateCancelled, true
	case EventEntitlementDeleted:
		return EntitlementStateDeleted, true
	default:
		return "", false
	}
}

// Event is one decoded procurement notification. Delivery is at-least-once
// and unordered.
type Event struct {
	EventID     string               `json:"eventId"`
	EventType   EventType            `json:"eventType"`
	Account     *AccountSnapshot     `json:"account,omitempty"`
	Entitlement *EntitlementSnapshot `json:"entitlement,omitempty"`
}

// AccountSnapshot is the account payload carried by account events.
type AccountSnapshot struct {
	ID         string    `json:"id"`
	ProviderID string    `json:"provider"`
	UpdateTime time.Time `json:"updateTime"`
}

// EntitlementSnapshot is the order payload carried by entitlement events.
type EntitlementSnapshot struct {
	ID                 string     `json:"id"`
	Account            string     `json:"account"`
	Product            string     `json:"product"`
	Plan               string     `json:"plan"`
	UsageReportingID   string     `json:"usageReportingId"`
	StartTime          *time.Time `json:"startTime,omitempty"`
	EndTime            *time.Time `json:"endTime,omitempty"`
	CancellationReason string     `json:"cancellationReason"`
	UpdateTime         time.Time  `json:"updateTime"`
}
