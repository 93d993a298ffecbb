package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tarot-oracle-backend/internal/core"
	"tarot-oracle-backend/internal/middleware"
)

// EntitlementHandler exposes the paywall decision to clients.
type EntitlementHandler struct {
	entitlement core.EntitlementService
	logger      *zap.Logger
}

func NewEntitlementHandler(entitlement core.EntitlementService, logger *zap.Logger) *EntitlementHandler {
	return &EntitlementHandler{entitlement: entitlement, logger: logger}
}

// Get handles GET /entitlement. The decision itself never errors: it fails
// closed, so the response is always 200 with a boolean.
func (h *EntitlementHandler) Get(c *gin.Context) {
	uid := c.GetString(middleware.CtxUserID)
	if uid == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "User ID not found in context"})
		return
	}

	c.JSON(http.StatusOK, EntitlementResponse{CanChat: h.entitlement.CanSendMessage(c.Request.Context(), uid)})
}

// Refresh handles POST /entitlement/refresh: drops the cached decision and
// re-evaluates, typically after the client returns from checkout.
func (h *EntitlementHandler) Refresh(c *gin.Context) {
	uid := c.GetString(middleware.CtxUserID)
	if uid == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "User ID not found in context"})
		return
	}

	c.JSON(http.StatusOK, EntitlementResponse{CanChat: h.entitlement.Refresh(c.Request.Context(), uid)})
}
