package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tarot-oracle-backend/internal/core"
	"tarot-oracle-backend/internal/middleware"
)

// UserHandler exposes the authenticated user's profile.
type UserHandler struct {
	profiles core.ProfileService
	logger   *zap.Logger
}

func NewUserHandler(profiles core.ProfileService, logger *zap.Logger) *UserHandler {
	return &UserHandler{profiles: profiles, logger: logger}
}

// Me handles GET /users/me.
func (h *UserHandler) Me(c *gin.Context) {
	uid := c.GetString(middleware.CtxUserID)
	if uid == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "User ID not found in context"})
		return
	}

	profile, err := h.profiles.GetByID(c.Request.Context(), uid)
	if err != nil {
		if errors.Is(err, core.ErrProfileNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "Profile not found"})
			return
		}
		h.logger.Error("Failed to load profile", zap.String("userID", uid), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to load profile", Details: err.Error()})
		return
	}

	c.JSON(http.StatusOK, profile)
}
