package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tarot-oracle-backend/internal/config"
	"tarot-oracle-backend/internal/core"
	"tarot-oracle-backend/internal/db"
	"tarot-oracle-backend/internal/middleware"
	"tarot-oracle-backend/internal/models"
)

const webhookPayloadLimit = 1 << 16 // stripe caps event payloads well below this

// BillingHandler exposes the purchase flow: checkout session creation for the
// authenticated user and the public Stripe webhook.
type BillingHandler struct {
	billing     core.BillingService
	subs        db.SubscriptionRepository
	entitlement core.EntitlementService
	appConfig   *config.Config
	logger      *zap.Logger
}

func NewBillingHandler(billing core.BillingService, subs db.SubscriptionRepository, entitlement core.EntitlementService, appConfig *config.Config, logger *zap.Logger) *BillingHandler {
	return &BillingHandler{
		billing:     billing,
		subs:        subs,
		entitlement: entitlement,
		appConfig:   appConfig,
		logger:      logger,
	}
}

// CreateCheckoutSession handles POST /billing/checkout.
func (h *BillingHandler) CreateCheckoutSession(c *gin.Context) {
	uid := c.GetString(middleware.CtxUserID)
	if uid == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "User ID not found in context"})
		return
	}

	var req CreateCheckoutSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Details: err.Error()})
		return
	}

	url, err := h.billing.CreateCheckoutSession(c.Request.Context(), uid, c.GetString(middleware.CtxUserEmail), req.PriceID)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrBillingNotConfigured):
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "Billing is not configured"})
		case errors.Is(err, core.ErrPlanNotFound):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Unknown price ID"})
		default:
			h.logger.Error("Checkout session creation failed", zap.String("userID", uid), zap.Error(err))
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to create checkout session", Details: err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, CreateCheckoutSessionResponse{URL: url})
}

// Webhook handles POST /billing/webhook. It is unauthenticated; trust comes
// from the Stripe signature header alone.
func (h *BillingHandler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, webhookPayloadLimit))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Failed to read webhook payload"})
		return
	}

	signature := c.GetHeader("Stripe-Signature")
	if err := h.billing.HandleWebhook(c.Request.Context(), signature, payload); err != nil {
		switch {
		case errors.Is(err, core.ErrWebhookSignature):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid webhook signature"})
		case errors.Is(err, core.ErrBillingNotConfigured):
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "Billing is not configured"})
		default:
			h.logger.Error("Webhook processing failed", zap.Error(err))
			// Non-2xx makes Stripe retry the delivery.
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Webhook processing failed"})
		}
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "received"})
}

// TestActivate handles POST /billing/test-activate, available only in
// simulated mode. It writes a real subscription record so the full
// entitlement path is exercised, standing in for the webhook.
func (h *BillingHandler) TestActivate(c *gin.Context) {
	if !h.appConfig.IsSimulated() {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Not found"})
		return
	}
	uid := c.GetString(middleware.CtxUserID)
	if uid == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "User ID not found in context"})
		return
	}

	var req TestActivateRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Details: err.Error()})
		return
	}
	if req.DurationMinutes <= 0 {
		req.DurationMinutes = 60
	}

	record := &models.SubscriptionRecord{
		Active:    true,
		Status:    "active",
		ExpiresAt: time.Now().Add(time.Duration(req.DurationMinutes) * time.Minute).UnixMilli(),
	}
	if err := h.subs.Put(c.Request.Context(), uid, record); err != nil {
		h.logger.Error("Test activation failed", zap.String("userID", uid), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to activate test subscription", Details: err.Error()})
		return
	}
	h.entitlement.Invalidate(uid)

	c.JSON(http.StatusOK, SuccessResponse{Message: "Test subscription activated"})
}
