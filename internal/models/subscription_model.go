package models

import "time"

// SubscriptionRecord is the persisted subscription state for a user, keyed by
// the user's UID. It is written by the Stripe webhook (authoritative) and by
// the test activation path; the core only ever reads it. Absence of a record
// is a valid state and means "not entitled" unless the trial window applies.
type SubscriptionRecord struct {
	ID                   string    `json:"id" firestore:"-"`
	Active               bool      `json:"isActive" firestore:"isActive"`
	ExpiresAt            int64     `json:"expiresAt,omitempty" firestore:"expiresAt,omitempty"` // ms epoch, 0 = no expiry
	Status               string    `json:"status,omitempty" firestore:"status,omitempty"`       // e.g. "active", "canceled"
	StripeCustomerID     string    `json:"stripeCustomerId,omitempty" firestore:"stripeCustomerId,omitempty"`
	StripeSubscriptionID string    `json:"stripeSubscriptionId,omitempty" firestore:"stripeSubscriptionId,omitempty"`
	UpdatedAt            time.Time `json:"updatedAt" firestore:"updatedAt,serverTimestamp"`
}

// Entitling reports whether the record grants chat access at the given
// instant: active, and either no expiry or an expiry still in the future.
func (s *SubscriptionRecord) Entitling(now time.Time) bool {
	if s == nil || !s.Active {
		return false
	}
	if s.ExpiresAt == 0 {
		return true
	}
	return now.Before(time.UnixMilli(s.ExpiresAt))
}
