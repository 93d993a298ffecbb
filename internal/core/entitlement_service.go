package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"tarot-oracle-backend/internal/db"
	"tarot-oracle-backend/internal/models"
)

const (
	// entitlementRetries is the number of additional attempts after a
	// transient subscription-lookup failure.
	entitlementRetries = 3
	// entitlementBackoff is the fixed delay between attempts.
	entitlementBackoff = 1500 * time.Millisecond
	// lookupBound caps each individual backend lookup.
	lookupBound = 5 * time.Second
)

// entitlementService computes whether a user may send a chat message:
// an entitling subscription record wins, otherwise the 24-hour trial window
// anchored to profile creation, otherwise no. Lookup failures fail closed.
type entitlementService struct {
	subs      db.SubscriptionRepository
	profiles  db.ProfileRepository
	simulated bool
	logger    *zap.Logger

	now     func() time.Time
	backoff time.Duration

	mu    sync.RWMutex
	cache map[string]entitlementEntry
}

// entitlementEntry is one cached decision. Allows derived from a time-bounded
// grant (trial window, subscription expiry) carry that bound as validUntil so
// the cache can never outlive the grant; a zero validUntil never expires.
type entitlementEntry struct {
	allowed    bool
	validUntil time.Time
}

// NewEntitlementService creates an EntitlementService. In simulated mode
// every check is allowed unconditionally.
func NewEntitlementService(subs db.SubscriptionRepository, profiles db.ProfileRepository, simulated bool, logger *zap.Logger) EntitlementService {
	return &entitlementService{
		subs:      subs,
		profiles:  profiles,
		simulated: simulated,
		logger:    logger,
		now:       time.Now,
		backoff:   entitlementBackoff,
		cache:     make(map[string]entitlementEntry),
	}
}

func (s *entitlementService) CanSendMessage(ctx context.Context, userID string) bool {
	s.mu.RLock()
	entry, ok := s.cache[userID]
	s.mu.RUnlock()
	if ok && (entry.validUntil.IsZero() || s.now().Before(entry.validUntil)) {
		return entry.allowed
	}
	return s.Refresh(ctx, userID)
}

// Refresh re-evaluates entitlement from remote state. The cached entry is a
// derived value, not a source of truth, so overlapping refreshes for the same
// user settle last-write-wins.
func (s *entitlementService) Refresh(ctx context.Context, userID string) bool {
	allowed, validUntil := s.evaluate(ctx, userID)
	s.mu.Lock()
	s.cache[userID] = entitlementEntry{allowed: allowed, validUntil: validUntil}
	s.mu.Unlock()
	return allowed
}

func (s *entitlementService) Invalidate(userID string) {
	s.mu.Lock()
	delete(s.cache, userID)
	s.mu.Unlock()
}

// evaluate returns the decision plus the instant it stops being valid (zero
// for unbounded). Allows granted by an expiring subscription or by the trial
// window are valid only up to that boundary; past it the cache re-evaluates
// instead of serving the stale allow.
func (s *entitlementService) evaluate(ctx context.Context, userID string) (bool, time.Time) {
	if s.simulated {
		return true, time.Time{}
	}

	for attempt := 0; ; attempt++ {
		record, err := s.lookupSubscription(ctx, userID)
		if err == nil {
			if record.Entitling(s.now()) {
				if record.ExpiresAt != 0 {
					return true, time.UnixMilli(record.ExpiresAt)
				}
				return true, time.Time{}
			}
			// Present but not entitling (inactive or expired): fall through
			// to the trial window.
			break
		}
		if errors.Is(err, db.ErrNotFound) {
			// No record is a valid state, not a failure.
			break
		}
		if !db.IsTransient(err) {
			s.logger.Warn("Permanent entitlement lookup failure, denying access",
				zap.String("userID", userID), zap.Error(err))
			return false, time.Time{}
		}
		if attempt >= entitlementRetries {
			s.logger.Warn("Entitlement lookup exhausted retries, denying access",
				zap.String("userID", userID), zap.Int("attempts", attempt+1), zap.Error(err))
			return false, time.Time{}
		}
		s.logger.Info("Transient entitlement lookup failure, retrying",
			zap.String("userID", userID), zap.Int("attempt", attempt+1), zap.Error(err))
		select {
		case <-ctx.Done():
			return false, time.Time{}
		case <-time.After(s.backoff):
		}
	}

	profile, err := s.lookupProfile(ctx, userID)
	if err != nil {
		s.logger.Warn("Profile lookup failed during trial evaluation, denying access",
			zap.String("userID", userID), zap.Error(err))
		return false, time.Time{}
	}
	if profile.InTrialWindow(s.now()) {
		return true, profile.CreatedAt.Add(models.TrialWindow)
	}
	return false, time.Time{}
}

func (s *entitlementService) lookupSubscription(ctx context.Context, userID string) (*models.SubscriptionRecord, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, lookupBound)
	defer cancel()
	return s.subs.GetByID(lookupCtx, userID)
}

func (s *entitlementService) lookupProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, lookupBound)
	defer cancel()
	return s.profiles.GetByID(lookupCtx, userID)
}
