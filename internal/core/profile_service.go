package core

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"tarot-oracle-backend/internal/db"
	"tarot-oracle-backend/internal/models"
)

// ErrProfileNotFound is returned when a user profile does not exist.
var ErrProfileNotFound = errors.New("user profile not found")

type profileService struct {
	profiles db.ProfileRepository
	logger   *zap.Logger
}

// NewProfileService creates a ProfileService over the given repository.
func NewProfileService(profiles db.ProfileRepository, logger *zap.Logger) ProfileService {
	return &profileService{profiles: profiles, logger: logger}
}

// GetOrCreate retrieves the profile, creating it on first sign-in. The
// creation write assigns createdAt server-side exactly once; every later
// sign-in only refreshes updatedAt through a merge, so createdAt survives.
func (s *profileService) GetOrCreate(ctx context.Context, userID, email, displayName string) (*models.UserProfile, bool, error) {
	profile, err := s.profiles.GetByID(ctx, userID)
	if err == nil {
		// Existing user: refresh the update timestamp only. Best-effort; the
		// profile we already read is the answer either way.
		if touchErr := s.profiles.Touch(ctx, userID, email); touchErr != nil {
			s.logger.Warn("Failed to refresh profile timestamp",
				zap.String("userID", userID), zap.Error(touchErr))
		}
		return profile, false, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, false, fmt.Errorf("failed to get profile for user '%s': %w", userID, err)
	}

	newProfile := &models.UserProfile{
		ID:          userID,
		Email:       email,
		DisplayName: displayName,
	}
	if createErr := s.profiles.Create(ctx, newProfile); createErr != nil {
		return nil, false, fmt.Errorf("failed to create profile for user '%s': %w", userID, createErr)
	}

	// Re-read so the caller sees the server-assigned creation timestamp.
	created, readErr := s.profiles.GetByID(ctx, userID)
	if readErr != nil {
		s.logger.Warn("Profile created but read-back failed",
			zap.String("userID", userID), zap.Error(readErr))
		return newProfile, true, nil
	}
	return created, true, nil
}

func (s *profileService) GetByID(ctx context.Context, userID string) (*models.UserProfile, error) {
	profile, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: user '%s'", ErrProfileNotFound, userID)
		}
		return nil, fmt.Errorf("failed to get profile for user '%s': %w", userID, err)
	}
	return profile, nil
}

// AcceptPolicy records acceptance and returns the refreshed profile.
// Repeating the call leaves the flag true and never reverts createdAt.
func (s *profileService) AcceptPolicy(ctx context.Context, userID string) (*models.UserProfile, error) {
	if err := s.profiles.RecordPolicyAcceptance(ctx, userID); err != nil {
		return nil, fmt.Errorf("failed to record policy acceptance for user '%s': %w", userID, err)
	}
	profile, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("policy acceptance recorded but profile read failed for user '%s': %w", userID, err)
	}
	return profile, nil
}
