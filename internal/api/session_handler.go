package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tarot-oracle-backend/internal/core"
	"tarot-oracle-backend/internal/identity"
	"tarot-oracle-backend/internal/middleware"
)

// SessionHandler drives the onboarding gate and sign-out around the
// authenticated session.
type SessionHandler struct {
	onboarding  core.OnboardingService
	entitlement core.EntitlementService
	identity    identity.Service
	logger      *zap.Logger
}

// NewSessionHandler creates a SessionHandler.
func NewSessionHandler(onboarding core.OnboardingService, entitlement core.EntitlementService, ids identity.Service, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{onboarding: onboarding, entitlement: entitlement, identity: ids, logger: logger}
}

func authUserFromContext(c *gin.Context) (*identity.AuthUser, bool) {
	uid := c.GetString(middleware.CtxUserID)
	if uid == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "User ID not found in context"})
		return nil, false
	}
	return &identity.AuthUser{
		UID:         uid,
		Email:       c.GetString(middleware.CtxUserEmail),
		DisplayName: c.GetString(middleware.CtxDisplayName),
	}, true
}

// Start handles POST /session/start: called after a client-side sign-in
// completes, it ensures the profile exists and evaluates the onboarding
// gate. The entitlement cache is invalidated because the identity changed.
func (h *SessionHandler) Start(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		return
	}

	state, err := h.onboarding.BeginSession(c.Request.Context(), user)
	if err != nil {
		h.logger.Error("Session start failed", zap.String("userID", user.UID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to start session", Details: err.Error()})
		return
	}
	h.entitlement.Invalidate(user.UID)

	c.JSON(http.StatusOK, SessionStartResponse{GateState: state.String()})
}

// SignOut handles POST /session/signout. The gate moves to SignedOut before
// revocation so it cannot flash mid-teardown, and reverts to Unknown once
// revocation confirms.
func (h *SessionHandler) SignOut(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		return
	}

	h.onboarding.RequestSignOut(user.UID)
	if err := h.identity.SignOut(c.Request.Context(), user.UID); err != nil {
		h.logger.Error("Sign-out failed", zap.String("userID", user.UID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to sign out", Details: err.Error()})
		return
	}
	h.onboarding.ConfirmSignedOut(user.UID)
	h.entitlement.Invalidate(user.UID)

	c.JSON(http.StatusOK, SuccessResponse{Message: "Signed out"})
}

// AcceptPolicy handles POST /policy/accept.
func (h *SessionHandler) AcceptPolicy(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		return
	}

	trialStarted, err := h.onboarding.Accept(c.Request.Context(), user.UID)
	if err != nil {
		h.logger.Error("Policy acceptance failed", zap.String("userID", user.UID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to record policy acceptance", Details: err.Error()})
		return
	}

	c.JSON(http.StatusOK, AcceptPolicyResponse{
		GateState:    h.onboarding.State(user.UID).String(),
		TrialStarted: trialStarted,
	})
}

// DeclinePolicy handles POST /policy/decline: acceptance is mandatory, so
// declining signs the user out.
func (h *SessionHandler) DeclinePolicy(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		return
	}

	if err := h.onboarding.Decline(c.Request.Context(), user.UID); err != nil {
		h.logger.Error("Policy decline failed", zap.String("userID", user.UID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to sign out after decline", Details: err.Error()})
		return
	}
	h.onboarding.ConfirmSignedOut(user.UID)
	h.entitlement.Invalidate(user.UID)

	c.JSON(http.StatusOK, SuccessResponse{Message: "Privacy policy acceptance is required to use the app"})
}
