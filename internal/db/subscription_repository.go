package db

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"tarot-oracle-backend/internal/models"
)

const subscriptionsCollection = "subscriptions"

// firestoreSubscriptionRepository implements SubscriptionRepository using
// Firestore, one document per user keyed by UID.
type firestoreSubscriptionRepository struct {
	client *firestore.Client
}

// NewFirestoreSubscriptionRepository creates a Firestore-backed
// SubscriptionRepository.
func NewFirestoreSubscriptionRepository(client *firestore.Client) SubscriptionRepository {
	return &firestoreSubscriptionRepository{client: client}
}

// GetByID retrieves the subscription record for a user. Absence is reported
// as ErrNotFound, which callers treat as "no subscription", not as a failure.
func (r *firestoreSubscriptionRepository) GetByID(ctx context.Context, userID string) (*models.SubscriptionRecord, error) {
	if userID == "" {
		return nil, errors.New("userID cannot be empty for GetByID operation")
	}
	snap, err := r.client.Collection(subscriptionsCollection).Doc(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("subscription for user '%s' not found: %w", userID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get subscription for user '%s': %w", userID, err)
	}

	var record models.SubscriptionRecord
	if err := snap.DataTo(&record); err != nil {
		return nil, fmt.Errorf("failed to decode subscription for user '%s': %w", userID, err)
	}
	record.ID = snap.Ref.ID
	return &record, nil
}

// Put writes or merges the subscription record for a user. Records are never
// deleted; deactivation writes isActive=false instead.
func (r *firestoreSubscriptionRepository) Put(ctx context.Context, userID string, record *models.SubscriptionRecord) error {
	if userID == "" {
		return errors.New("userID cannot be empty for Put operation")
	}
	fields := map[string]interface{}{
		"isActive":  record.Active,
		"updatedAt": firestore.ServerTimestamp,
	}
	if record.ExpiresAt != 0 {
		fields["expiresAt"] = record.ExpiresAt
	}
	if record.Status != "" {
		fields["status"] = record.Status
	}
	if record.StripeCustomerID != "" {
		fields["stripeCustomerId"] = record.StripeCustomerID
	}
	if record.StripeSubscriptionID != "" {
		fields["stripeSubscriptionId"] = record.StripeSubscriptionID
	}
	_, err := r.client.Collection(subscriptionsCollection).Doc(userID).Set(ctx, fields, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("failed to put subscription for user '%s': %w", userID, err)
	}
	return nil
}
