package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tarot-oracle-backend/internal/db"
	"tarot-oracle-backend/internal/models"
)

func TestGetOrCreateCreatesOnFirstSignIn(t *testing.T) {
	repo := db.NewMemoryProfileRepository()
	svc := NewProfileService(repo, zap.NewNop())

	profile, created, err := svc.GetOrCreate(context.Background(), "u1", "u1@example.com", "Seeker")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "u1", profile.ID)
	assert.Equal(t, "u1@example.com", profile.Email)
	assert.False(t, profile.CreatedAt.IsZero())
}

func TestGetOrCreatePreservesCreationInstant(t *testing.T) {
	repo := db.NewMemoryProfileRepository()
	created := time.Now().Add(-48 * time.Hour)
	repo.SetClock(func() time.Time { return created })
	svc := NewProfileService(repo, zap.NewNop())

	_, wasCreated, err := svc.GetOrCreate(context.Background(), "u1", "u1@example.com", "")
	require.NoError(t, err)
	require.True(t, wasCreated)

	// Second sign-in much later must not move the trial anchor.
	repo.SetClock(time.Now)
	profile, wasCreated, err := svc.GetOrCreate(context.Background(), "u1", "new@example.com", "")
	require.NoError(t, err)
	assert.False(t, wasCreated)
	assert.Equal(t, created, profile.CreatedAt)
}

func TestGetByIDMissingProfile(t *testing.T) {
	svc := NewProfileService(db.NewMemoryProfileRepository(), zap.NewNop())
	_, err := svc.GetByID(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestAcceptPolicyRecordsAcceptance(t *testing.T) {
	repo := db.NewMemoryProfileRepository()
	svc := NewProfileService(repo, zap.NewNop())
	require.NoError(t, repo.Create(context.Background(), &models.UserProfile{ID: "u1"}))

	profile, err := svc.AcceptPolicy(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, profile.PrivacyPolicyAccepted)
	assert.False(t, profile.PrivacyPolicyAcceptedAt.IsZero())
}
