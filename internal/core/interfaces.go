package core

import (
	"context"

	"tarot-oracle-backend/internal/identity"
	"tarot-oracle-backend/internal/models"
)

// ProfileService defines profile lifecycle operations.
type ProfileService interface {
	// GetOrCreate retrieves the profile for a user, creating it on first
	// sign-in. On subsequent sign-ins only the update timestamp is refreshed;
	// the creation timestamp is never overwritten. Returns the profile and
	// whether it was created.
	GetOrCreate(ctx context.Context, userID, email, displayName string) (*models.UserProfile, bool, error)
	GetByID(ctx context.Context, userID string) (*models.UserProfile, error)
	// AcceptPolicy records privacy-policy acceptance. Idempotent.
	AcceptPolicy(ctx context.Context, userID string) (*models.UserProfile, error)
}

// EntitlementService decides whether a user may send a chat message.
type EntitlementService interface {
	// CanSendMessage returns the cached entitlement for the user, computing
	// it on first use. Fails closed: any unresolvable lookup denies access.
	CanSendMessage(ctx context.Context, userID string) bool
	// Refresh re-evaluates entitlement from remote state and updates the
	// cache. Idempotent and safe to invoke concurrently with itself.
	Refresh(ctx context.Context, userID string) bool
	// Invalidate drops the cached value, forcing the next check to
	// re-evaluate. Called on identity changes and webhook updates.
	Invalidate(userID string)
}

// ConversationService manages chat-thread lifecycle with the asymmetric
// failure policy described on each method: appends and title updates are
// best-effort, deletion must complete.
type ConversationService interface {
	// EnsureChat returns chatID unchanged when supplied, otherwise creates a
	// new chat and returns its id. Waits a bounded time for the creation
	// write, then returns an id regardless of confirmation.
	EnsureChat(ctx context.Context, userID, chatID string) string
	// AppendMessage concatenates next onto current, applies the message cap,
	// persists best-effort, and returns the capped in-memory sequence. Never
	// fails; persistence errors are logged only.
	AppendMessage(ctx context.Context, userID, chatID string, current []models.Message, next models.Message) []models.Message
	// SetTitleFromAssistant derives a short title from assistant output and
	// persists it best-effort.
	SetTitleFromAssistant(ctx context.Context, userID, chatID, assistantText string)
	// LoadChat returns the persisted chat, or nil when it does not exist.
	LoadChat(ctx context.Context, userID, chatID string) (*models.Chat, error)
	// ListChats returns the user's chats, most recent first. Degrades to an
	// empty list on lookup failure.
	ListChats(ctx context.Context, userID string) []*models.Chat
	// DeleteChat removes a chat permanently. Failures propagate.
	DeleteChat(ctx context.Context, userID, chatID string) error
}

// OnboardingService is the policy-acceptance gate state machine.
type OnboardingService interface {
	// BeginSession evaluates the gate for a freshly authenticated user.
	// While a sign-out is in flight the evaluation is suppressed.
	BeginSession(ctx context.Context, user *identity.AuthUser) (GateState, error)
	// Accept records acceptance and unblocks navigation. The returned flag
	// signals the one-time trial-started notice for first-ever sessions.
	Accept(ctx context.Context, userID string) (trialStarted bool, err error)
	// Decline signs the user out; acceptance is mandatory.
	Decline(ctx context.Context, userID string) error
	// RequestSignOut moves to SignedOut before the identity change
	// propagates, so the gate cannot flash during teardown.
	RequestSignOut(userID string)
	// ConfirmSignedOut reverts SignedOut to Unknown once the identity
	// collaborator confirms no current user.
	ConfirmSignedOut(userID string)
	State(userID string) GateState
}

// OracleService is the assistant bridge. Reply always returns renderable
// text within a bounded time; failures map to sentinel replies.
type OracleService interface {
	Reply(ctx context.Context, history []models.Message) string
}

// BillingService is the purchase-flow surface over the payment collaborator.
type BillingService interface {
	// CreateCheckoutSession returns a redirect URL for the user's checkout.
	// Completion is observed asynchronously via the webhook; no entitlement
	// is granted here.
	CreateCheckoutSession(ctx context.Context, userID, email, priceID string) (string, error)
	// HandleWebhook verifies and applies an asynchronous payment event.
	HandleWebhook(ctx context.Context, signature string, payload []byte) error
}
