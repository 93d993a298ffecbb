package models

import "time"

// TrialWindow is the period after account creation during which chat is
// permitted without an active subscription.
const TrialWindow = 24 * time.Hour

// UserProfile represents the persisted profile for an authenticated user.
// The Firebase Auth UID is the Firestore document ID.
type UserProfile struct {
	ID                      string    `json:"id" firestore:"-"`
	Email                   string    `json:"email" firestore:"email"`
	DisplayName             string    `json:"displayName,omitempty" firestore:"displayName,omitempty"`
	PrivacyPolicyAccepted   bool      `json:"privacyPolicyAccepted" firestore:"privacyPolicyAccepted"`
	PrivacyPolicyAcceptedAt time.Time `json:"privacyPolicyAcceptedAt,omitempty" firestore:"privacyPolicyAcceptedAt,omitempty"`
	CreatedAt               time.Time `json:"createdAt" firestore:"createdAt"`
	UpdatedAt               time.Time `json:"updatedAt" firestore:"updatedAt,serverTimestamp"`
}

// InTrialWindow reports whether now is still inside the 24-hour trial
// anchored to the profile's creation instant. A zero CreatedAt (creation
// write not yet confirmed) counts as outside the window: the entitlement
// engine fails closed.
func (p *UserProfile) InTrialWindow(now time.Time) bool {
	if p == nil || p.CreatedAt.IsZero() {
		return false
	}
	return now.Before(p.CreatedAt.Add(TrialWindow))
}

// FirstSession reports whether the profile was created within the last
// minute, i.e. this is the user's first-ever session. Used to surface the
// one-time trial-started notice after policy acceptance.
func (p *UserProfile) FirstSession(now time.Time) bool {
	if p == nil || p.CreatedAt.IsZero() {
		return false
	}
	return now.Sub(p.CreatedAt) < time.Minute
}
