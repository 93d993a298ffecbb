package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tarot-oracle-backend/internal/middleware"
)

// SetupRoutes configures the API routes. The Stripe webhook and health check
// are public; everything else requires a verified bearer token.
func SetupRoutes(
	router *gin.Engine,
	authMW *middleware.AuthMiddleware,
	sessionHandler *SessionHandler,
	userHandler *UserHandler,
	entitlementHandler *EntitlementHandler,
	chatHandler *ChatHandler,
	billingHandler *BillingHandler,
) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP"})
	})

	v1 := router.Group("/api/v1")

	// Stripe calls this directly; auth comes from the signature header.
	v1.POST("/billing/webhook", billingHandler.Webhook)

	authed := v1.Group("")
	authed.Use(authMW.RequireUser())
	{
		session := authed.Group("/session")
		{
			session.POST("/start", sessionHandler.Start)
			session.POST("/signout", sessionHandler.SignOut)
		}

		policy := authed.Group("/policy")
		{
			policy.POST("/accept", sessionHandler.AcceptPolicy)
			policy.POST("/decline", sessionHandler.DeclinePolicy)
		}

		authed.GET("/users/me", userHandler.Me)

		entitlement := authed.Group("/entitlement")
		{
			entitlement.GET("", entitlementHandler.Get)
			entitlement.POST("/refresh", entitlementHandler.Refresh)
		}

		chats := authed.Group("/chats")
		{
			chats.POST("", chatHandler.Ensure)
			chats.GET("", chatHandler.List)
			chats.GET("/:chatId", chatHandler.Get)
			chats.DELETE("/:chatId", chatHandler.Delete)
			chats.POST("/:chatId/messages", chatHandler.SendMessage)
		}

		billing := authed.Group("/billing")
		{
			billing.POST("/checkout", billingHandler.CreateCheckoutSession)
			billing.POST("/test-activate", billingHandler.TestActivate)
		}
	}
}
