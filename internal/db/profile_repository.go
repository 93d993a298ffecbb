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

const usersCollection = "users"

// firestoreProfileRepository implements ProfileRepository using Firestore.
// The Firebase Auth UID is the document ID.
type firestoreProfileRepository struct {
	client *firestore.Client
}

// NewFirestoreProfileRepository creates a Firestore-backed ProfileRepository.
func NewFirestoreProfileRepository(client *firestore.Client) ProfileRepository {
	return &firestoreProfileRepository{client: client}
}

// Create writes a fresh profile document. createdAt is server-assigned here
// and never written again by any other operation; Touch and
// RecordPolicyAcceptance merge around it.
func (r *firestoreProfileRepository) Create(ctx context.Context, profile *models.UserProfile) error {
	if profile.ID == "" {
		return errors.New("profile ID cannot be empty for Create operation")
	}
	_, err := r.client.Collection(usersCollection).Doc(profile.ID).Create(ctx, map[string]interface{}{
		"email":                 profile.Email,
		"displayName":           profile.DisplayName,
		"privacyPolicyAccepted": profile.PrivacyPolicyAccepted,
		"createdAt":             firestore.ServerTimestamp,
		"updatedAt":             firestore.ServerTimestamp,
	})
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return fmt.Errorf("profile for user '%s' already exists: %w", profile.ID, err)
		}
		return fmt.Errorf("failed to create profile for user '%s': %w", profile.ID, err)
	}
	return nil
}

// GetByID retrieves a profile by the user's UID.
func (r *firestoreProfileRepository) GetByID(ctx context.Context, userID string) (*models.UserProfile, error) {
	if userID == "" {
		return nil, errors.New("userID cannot be empty for GetByID operation")
	}
	snap, err := r.client.Collection(usersCollection).Doc(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("profile for user '%s' not found: %w", userID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get profile for user '%s': %w", userID, err)
	}

	var profile models.UserProfile
	if err := snap.DataTo(&profile); err != nil {
		// Older clients wrote timestamps as epoch milliseconds; decode those
		// by hand so both representations resolve to the same instants.
		decoded, decodeErr := decodeProfile(snap.Data())
		if decodeErr != nil {
			return nil, fmt.Errorf("failed to decode profile for user '%s': %w", userID, err)
		}
		profile = *decoded
	}
	profile.ID = snap.Ref.ID
	return &profile, nil
}

func decodeProfile(data map[string]interface{}) (*models.UserProfile, error) {
	if data == nil {
		return nil, errors.New("empty profile document")
	}
	var profile models.UserProfile
	if v, ok := data["email"].(string); ok {
		profile.Email = v
	}
	if v, ok := data["displayName"].(string); ok {
		profile.DisplayName = v
	}
	if v, ok := data["privacyPolicyAccepted"].(bool); ok {
		profile.PrivacyPolicyAccepted = v
	}
	if t, ok := models.NormalizeInstant(data["createdAt"]); ok {
		profile.CreatedAt = t
	}
	if t, ok := models.NormalizeInstant(data["updatedAt"]); ok {
		profile.UpdatedAt = t
	}
	if t, ok := models.NormalizeInstant(data["privacyPolicyAcceptedAt"]); ok {
		profile.PrivacyPolicyAcceptedAt = t
	}
	return &profile, nil
}

// Touch refreshes updatedAt (and email) with merge semantics, leaving
// createdAt untouched.
func (r *firestoreProfileRepository) Touch(ctx context.Context, userID, email string) error {
	if userID == "" {
		return errors.New("userID cannot be empty for Touch operation")
	}
	_, err := r.client.Collection(usersCollection).Doc(userID).Set(ctx, map[string]interface{}{
		"email":     email,
		"updatedAt": firestore.ServerTimestamp,
	}, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("failed to touch profile for user '%s': %w", userID, err)
	}
	return nil
}

// RecordPolicyAcceptance marks the policy as accepted. Merge semantics make
// repeated calls idempotent and preserve createdAt.
func (r *firestoreProfileRepository) RecordPolicyAcceptance(ctx context.Context, userID string) error {
	if userID == "" {
		return errors.New("userID cannot be empty for RecordPolicyAcceptance operation")
	}
	_, err := r.client.Collection(usersCollection).Doc(userID).Set(ctx, map[string]interface{}{
		"privacyPolicyAccepted":   true,
		"privacyPolicyAcceptedAt": firestore.ServerTimestamp,
		"updatedAt":               firestore.ServerTimestamp,
	}, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("failed to record policy acceptance for user '%s': %w", userID, err)
	}
	return nil
}
