package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tarot-oracle-backend/internal/api"
	"tarot-oracle-backend/internal/config"
	"tarot-oracle-backend/internal/core"
	"tarot-oracle-backend/internal/db"
	"tarot-oracle-backend/internal/identity"
	"tarot-oracle-backend/internal/middleware"
)

func main() {
	zapLogger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to initialize Zap logger: %v", err)
	}
	defer zapLogger.Sync()

	appConfig, err := config.LoadConfig()
	if err != nil {
		zapLogger.Fatal("Failed to load application configuration", zap.Error(err))
	}
	zapLogger.Info("Configuration loaded", zap.String("mode", appConfig.Mode))

	// --- Mode-dependent collaborators: persistence, identity, assistant,
	// billing. Simulated mode runs entirely in memory so the full API surface
	// works without Firebase, Gemini, or Stripe credentials.
	var (
		profileRepo db.ProfileRepository
		subsRepo    db.SubscriptionRepository
		chatRepo    db.ChatRepository
		verifier    identity.TokenVerifier
		idService   identity.Service
		provider    core.ReplyProvider
	)

	if appConfig.IsSimulated() {
		profileRepo = db.NewMemoryProfileRepository()
		subsRepo = db.NewMemorySubscriptionRepository()
		chatRepo = db.NewMemoryChatRepository()
		verifier = identity.NewSimulatedVerifier()
		idService = identity.NewSimulatedService()
		provider = core.NewSimulatedProvider()
		zapLogger.Info("Simulated mode: in-memory stores, permissive tokens, canned readings")
	} else {
		initCtx, cancelInit := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelInit()
		clients, err := db.InitClients(initCtx, appConfig)
		if err != nil {
			zapLogger.Fatal("Failed to initialize Firebase Admin SDK", zap.Error(err))
		}
		profileRepo = db.NewFirestoreProfileRepository(clients.Firestore)
		subsRepo = db.NewFirestoreSubscriptionRepository(clients.Firestore)
		chatRepo = db.NewFirestoreChatRepository(clients.Firestore, zapLogger)
		verifier = identity.NewFirebaseVerifier(clients.Auth)
		idService = identity.NewFirebaseService(clients.Auth)

		if appConfig.AssistantConfigured() {
			geminiProvider, err := core.NewGeminiProvider(initCtx, appConfig.GeminiAPIKey, appConfig.GeminiModel)
			if err != nil {
				zapLogger.Fatal("Failed to initialize Gemini client", zap.Error(err))
			}
			provider = geminiProvider
			zapLogger.Info("Gemini assistant enabled", zap.String("model", appConfig.GeminiModel))
		} else {
			provider = core.NewSimulatedProvider()
			zapLogger.Warn("GEMINI_API_KEY not set; assistant replies are canned readings")
		}
	}

	// --- Core services ---
	profileService := core.NewProfileService(profileRepo, zapLogger)
	entitlementService := core.NewEntitlementService(subsRepo, profileRepo, appConfig.IsSimulated(), zapLogger)
	conversationService := core.NewConversationService(chatRepo, zapLogger)
	onboardingService := core.NewOnboardingService(profileService, idService, zapLogger)
	oracleService := core.NewOracleService(provider, zapLogger)

	var billingService core.BillingService
	if appConfig.IsSimulated() || !appConfig.BillingConfigured() {
		billingService = core.NewSimulatedBillingService(zapLogger)
		if !appConfig.IsSimulated() {
			zapLogger.Warn("Stripe keys not set; billing runs in simulated mode")
		}
	} else {
		billingService = core.NewStripeBillingService(subsRepo, entitlementService, appConfig, zapLogger)
	}

	// --- HTTP surface ---
	if strings.ToLower(appConfig.GinMode) == "release" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()
	router.Use(middleware.RequestLogger(zapLogger))
	router.Use(middleware.RecoveryMiddleware(zapLogger))
	if appConfig.ClientURL != "" {
		router.Use(middleware.CORSMiddleware(appConfig))
	} else {
		zapLogger.Warn("CORS middleware skipped: CLIENT_URL is not configured")
	}

	authMW := middleware.NewAuthMiddleware(verifier, zapLogger)
	api.SetupRoutes(
		router,
		authMW,
		api.NewSessionHandler(onboardingService, entitlementService, idService, zapLogger),
		api.NewUserHandler(profileService, zapLogger),
		api.NewEntitlementHandler(entitlementService, zapLogger),
		api.NewChatHandler(conversationService, entitlementService, oracleService, zapLogger),
		api.NewBillingHandler(billingService, subsRepo, entitlementService, appConfig, zapLogger),
	)

	serverAddr := fmt.Sprintf(":%s", appConfig.Port)
	httpServer := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	zapLogger.Info("Starting HTTP server", zap.String("address", serverAddr), zap.String("ginMode", gin.Mode()))
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	quitChannel := make(chan os.Signal, 1)
	signal.Notify(quitChannel, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quitChannel
	zapLogger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLogger.Fatal("Server forced to shutdown", zap.Error(err))
	}
	zapLogger.Info("Server exiting gracefully")
}
