package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tarot-oracle-backend/internal/identity"
)

// Context keys written by the auth middleware.
const (
	CtxUserID      = "userID"
	CtxUserEmail   = "userEmail"
	CtxDisplayName = "userDisplayName"
)

// errorResponse mirrors the API error shape locally to avoid an import
// cycle with internal/api.
type errorResponse struct {
	Error string `json:"error"`
}

// AuthMiddleware authenticates requests through a TokenVerifier (Firebase in
// live mode, the simulated verifier otherwise).
type AuthMiddleware struct {
	verifier identity.TokenVerifier
	logger   *zap.Logger
}

// NewAuthMiddleware creates an AuthMiddleware.
func NewAuthMiddleware(verifier identity.TokenVerifier, logger *zap.Logger) *AuthMiddleware {
	if verifier == nil {
		panic("AuthMiddleware requires a non-nil TokenVerifier")
	}
	return &AuthMiddleware{verifier: verifier, logger: logger}
}

// RequireUser verifies the bearer token and stores the authenticated user in
// the Gin context. Verification failures get a fixed message; raw provider
// errors stay in the logs.
func (m *AuthMiddleware) RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: "Authorization header is required"})
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: "Authorization header format must be 'Bearer {token}'"})
			return
		}

		user, err := m.verifier.Verify(c.Request.Context(), parts[1])
		if err != nil {
			m.logger.Warn("Token verification failed", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: "Invalid or expired authentication token"})
			return
		}

		c.Set(CtxUserID, user.UID)
		c.Set(CtxUserEmail, user.Email)
		c.Set(CtxDisplayName, user.DisplayName)
		c.Next()
	}
}
