package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"tarot-oracle-backend/internal/identity"
)

// GateState is the authoritative state of the onboarding gate for one user.
type GateState int

const (
	// GateUnknown: no user, nothing evaluated yet.
	GateUnknown GateState = iota
	// GateCheckingPolicy: user present, acceptance status being determined.
	GateCheckingPolicy
	// GateShown: acceptance is false; the blocking gate is presented.
	GateShown
	// GateAccepted: acceptance recorded, navigation unblocked.
	GateAccepted
	// GateSignedOut: sign-out in flight; gate evaluation is suppressed so it
	// cannot flash during teardown.
	GateSignedOut
)

func (s GateState) String() string {
	switch s {
	case GateUnknown:
		return "unknown"
	case GateCheckingPolicy:
		return "checking_policy"
	case GateShown:
		return "gate_shown"
	case GateAccepted:
		return "accepted"
	case GateSignedOut:
		return "signed_out"
	default:
		return fmt.Sprintf("invalid(%d)", int(s))
	}
}

// onboardingService holds one gate state per user and applies the pure
// transition rules around persisted policy acceptance.
type onboardingService struct {
	profiles ProfileService
	identity identity.Service
	logger   *zap.Logger
	now      func() time.Time

	mu     sync.Mutex
	states map[string]GateState
}

// NewOnboardingService creates the gate state machine.
func NewOnboardingService(profiles ProfileService, ids identity.Service, logger *zap.Logger) OnboardingService {
	return &onboardingService{
		profiles: profiles,
		identity: ids,
		logger:   logger,
		now:      time.Now,
		states:   make(map[string]GateState),
	}
}

func (s *onboardingService) State(userID string) GateState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[userID]
}

func (s *onboardingService) setState(userID string, state GateState) {
	s.mu.Lock()
	s.states[userID] = state
	s.mu.Unlock()
}

// BeginSession evaluates the gate after a sign-in completes. While a
// sign-out is in flight the evaluation is suppressed entirely and the
// transitional state is returned unchanged.
func (s *onboardingService) BeginSession(ctx context.Context, user *identity.AuthUser) (GateState, error) {
	s.mu.Lock()
	if s.states[user.UID] == GateSignedOut {
		s.mu.Unlock()
		return GateSignedOut, nil
	}
	s.states[user.UID] = GateCheckingPolicy
	s.mu.Unlock()

	profile, created, err := s.profiles.GetOrCreate(ctx, user.UID, user.Email, user.DisplayName)
	if err != nil {
		s.setState(user.UID, GateUnknown)
		return GateUnknown, fmt.Errorf("failed to evaluate onboarding gate for user '%s': %w", user.UID, err)
	}
	if created {
		s.logger.Info("Profile created on first sign-in", zap.String("userID", user.UID))
	}

	next := GateShown
	if profile.PrivacyPolicyAccepted {
		next = GateAccepted
	}
	s.setState(user.UID, next)
	return next, nil
}

// Accept persists acceptance and unblocks navigation. The trial-started flag
// is raised only when the profile was created within the last minute, i.e.
// the user's first-ever session.
func (s *onboardingService) Accept(ctx context.Context, userID string) (bool, error) {
	profile, err := s.profiles.AcceptPolicy(ctx, userID)
	if err != nil {
		return false, err
	}
	s.setState(userID, GateAccepted)
	return profile.FirstSession(s.now()), nil
}

// Decline signs the user out. The state moves to SignedOut before the
// revocation call so the gate is never visible with a sign-out in progress;
// declining never leaves the user authenticated with an unaccepted policy.
func (s *onboardingService) Decline(ctx context.Context, userID string) error {
	s.setState(userID, GateSignedOut)
	if err := s.identity.SignOut(ctx, userID); err != nil {
		return fmt.Errorf("failed to sign out user '%s' after policy decline: %w", userID, err)
	}
	return nil
}

func (s *onboardingService) RequestSignOut(userID string) {
	s.setState(userID, GateSignedOut)
}

// ConfirmSignedOut reverts the transitional SignedOut state to Unknown once
// the identity collaborator reports no current user. Any other state is left
// alone.
func (s *onboardingService) ConfirmSignedOut(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.states[userID] == GateSignedOut {
		delete(s.states, userID)
	}
}
