package db

import (
	"context"

	"tarot-oracle-backend/internal/models"
)

// ProfileRepository defines storage operations for user profiles.
type ProfileRepository interface {
	GetByID(ctx context.Context, userID string) (*models.UserProfile, error)
	// Create writes a fresh profile. CreatedAt is server-assigned and set
	// exactly once; Create fails if the document already exists.
	Create(ctx context.Context, profile *models.UserProfile) error
	// Touch refreshes the updatedAt timestamp (and email, which may change on
	// the identity provider) without disturbing createdAt. Merge semantics.
	Touch(ctx context.Context, userID, email string) error
	// RecordPolicyAcceptance sets the acceptance flag and timestamp. Merge
	// semantics; idempotent.
	RecordPolicyAcceptance(ctx context.Context, userID string) error
}

// SubscriptionRepository defines storage operations for subscription records.
// The core never deletes records; the webhook deactivates them instead.
type SubscriptionRepository interface {
	GetByID(ctx context.Context, userID string) (*models.SubscriptionRecord, error)
	// Put writes or merges the record for a user.
	Put(ctx context.Context, userID string, record *models.SubscriptionRecord) error
}

// ChatRepository defines storage operations for chat threads, namespaced by
// user. SetMessages and SetTitle use merge semantics so a chat created
// optimistically on the client side is materialized on first write.
type ChatRepository interface {
	// Create stores a new empty chat and returns its generated id.
	Create(ctx context.Context, userID string, chat *models.Chat) (string, error)
	GetByID(ctx context.Context, userID, chatID string) (*models.Chat, error)
	SetMessages(ctx context.Context, userID, chatID string, messages []models.Message) error
	SetTitle(ctx context.Context, userID, chatID, title string) error
	// ListByUser returns the user's chats ordered by creation time, most
	// recent first.
	ListByUser(ctx context.Context, userID string) ([]*models.Chat, error)
	Delete(ctx context.Context, userID, chatID string) error
}
