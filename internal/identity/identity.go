// Package identity wraps the identity collaborator: per-request token
// verification and session revocation, with a simulated variant for
// environments without live Firebase credentials.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"firebase.google.com/go/v4/auth"
)

// AuthUser is the identity the core needs: an opaque id plus optional email
// and display name. Produced per request by a TokenVerifier.
type AuthUser struct {
	UID         string
	Email       string
	DisplayName string
}

// ErrInvalidToken is returned for any token the verifier rejects. The raw
// provider error is wrapped for logs but never shown to the user.
var ErrInvalidToken = errors.New("invalid or expired authentication token")

// TokenVerifier validates a bearer token and returns the authenticated user.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*AuthUser, error)
}

// Service exposes the session operations the core needs from the identity
// collaborator.
type Service interface {
	// SignOut revokes the user's refresh tokens so existing sessions expire.
	SignOut(ctx context.Context, userID string) error
}

// --- Live (Firebase) implementation ---

type firebaseVerifier struct {
	client *auth.Client
}

// NewFirebaseVerifier creates a TokenVerifier backed by Firebase Auth ID
// token verification.
func NewFirebaseVerifier(client *auth.Client) TokenVerifier {
	return &firebaseVerifier{client: client}
}

func (v *firebaseVerifier) Verify(ctx context.Context, token string) (*AuthUser, error) {
	decoded, err := v.client.VerifyIDToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	user := &AuthUser{UID: decoded.UID}
	if email, ok := decoded.Claims["email"].(string); ok {
		user.Email = email
	}
	if name, ok := decoded.Claims["name"].(string); ok {
		user.DisplayName = name
	}
	return user, nil
}

type firebaseService struct {
	client *auth.Client
}

// NewFirebaseService creates a Service backed by Firebase Auth.
func NewFirebaseService(client *auth.Client) Service {
	return &firebaseService{client: client}
}

func (s *firebaseService) SignOut(ctx context.Context, userID string) error {
	if userID == "" {
		return errors.New("userID cannot be empty for SignOut")
	}
	if err := s.client.RevokeRefreshTokens(ctx, userID); err != nil {
		return fmt.Errorf("failed to revoke refresh tokens for user '%s': %w", userID, err)
	}
	return nil
}

// --- Simulated implementation ---

// SimulatedVerifier accepts tokens of the form "uid" or "uid:email". Used in
// simulated mode and in tests.
type SimulatedVerifier struct{}

// NewSimulatedVerifier creates a TokenVerifier for simulated mode.
func NewSimulatedVerifier() TokenVerifier {
	return &SimulatedVerifier{}
}

func (v *SimulatedVerifier) Verify(_ context.Context, token string) (*AuthUser, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	uid, email, found := strings.Cut(token, ":")
	if uid == "" {
		return nil, ErrInvalidToken
	}
	if !found || email == "" {
		email = uid + "@simulated.local"
	}
	return &AuthUser{UID: uid, Email: email, DisplayName: uid}, nil
}

// SimulatedService is a no-op Service for simulated mode; there are no
// refresh tokens to revoke.
type SimulatedService struct{}

// NewSimulatedService creates a Service for simulated mode.
func NewSimulatedService() Service {
	return &SimulatedService{}
}

func (s *SimulatedService) SignOut(_ context.Context, _ string) error { return nil }
