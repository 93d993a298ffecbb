package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tarot-oracle-backend/internal/config"
	"tarot-oracle-backend/internal/core"
	"tarot-oracle-backend/internal/db"
	"tarot-oracle-backend/internal/identity"
	"tarot-oracle-backend/internal/middleware"
	"tarot-oracle-backend/internal/models"
)

// testBackend wires the full API over the in-memory stores with the simulated
// verifier and canned assistant. Entitlement runs in live mode so the trial
// and subscription rules are actually exercised.
type testBackend struct {
	router   *gin.Engine
	profiles *db.MemoryProfileRepository
	subs     *db.MemorySubscriptionRepository
	chats    *db.MemoryChatRepository
}

func newTestBackend(t *testing.T) *testBackend {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	profiles := db.NewMemoryProfileRepository()
	subs := db.NewMemorySubscriptionRepository()
	chats := db.NewMemoryChatRepository()
	ids := identity.NewSimulatedService()

	profileService := core.NewProfileService(profiles, logger)
	entitlementService := core.NewEntitlementService(subs, profiles, false, logger)
	conversationService := core.NewConversationService(chats, logger)
	onboardingService := core.NewOnboardingService(profileService, ids, logger)
	oracleService := core.NewOracleService(core.NewSimulatedProvider(), logger)
	billingService := core.NewSimulatedBillingService(logger)

	cfg := &config.Config{Mode: config.ModeSimulated}
	router := gin.New()
	authMW := middleware.NewAuthMiddleware(identity.NewSimulatedVerifier(), logger)
	SetupRoutes(
		router,
		authMW,
		NewSessionHandler(onboardingService, entitlementService, ids, logger),
		NewUserHandler(profileService, logger),
		NewEntitlementHandler(entitlementService, logger),
		NewChatHandler(conversationService, entitlementService, oracleService, logger),
		NewBillingHandler(billingService, subs, entitlementService, cfg, logger),
	)

	return &testBackend{router: router, profiles: profiles, subs: subs, chats: chats}
}

func (b *testBackend) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	b.router.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealthEndpointIsPublic(t *testing.T) {
	b := newTestBackend(t)
	w := b.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequestsWithoutTokenAreRejected(t *testing.T) {
	b := newTestBackend(t)
	for _, path := range []string{"/api/v1/users/me", "/api/v1/chats", "/api/v1/entitlement"} {
		w := b.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestSessionStartShowsGateThenAcceptUnblocks(t *testing.T) {
	b := newTestBackend(t)

	w := b.do(t, http.MethodPost, "/api/v1/session/start", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	start := decodeBody[SessionStartResponse](t, w)
	assert.Equal(t, "gate_shown", start.GateState)

	w = b.do(t, http.MethodPost, "/api/v1/policy/accept", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	accept := decodeBody[AcceptPolicyResponse](t, w)
	assert.Equal(t, "accepted", accept.GateState)
	assert.True(t, accept.TrialStarted, "first-ever session raises the trial notice")

	// A returning session goes straight past the gate.
	w = b.do(t, http.MethodPost, "/api/v1/session/start", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "accepted", decodeBody[SessionStartResponse](t, w).GateState)
}

func TestDeclineSignsOut(t *testing.T) {
	b := newTestBackend(t)
	b.do(t, http.MethodPost, "/api/v1/session/start", "u1", nil)

	w := b.do(t, http.MethodPost, "/api/v1/policy/decline", "u1", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// The gate state was reset; the next session re-evaluates from scratch.
	w = b.do(t, http.MethodPost, "/api/v1/session/start", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gate_shown", decodeBody[SessionStartResponse](t, w).GateState)
}

func TestSendMessageWithinTrial(t *testing.T) {
	b := newTestBackend(t)
	b.do(t, http.MethodPost, "/api/v1/session/start", "u1", nil)

	w := b.do(t, http.MethodPost, "/api/v1/chats", "u1", EnsureChatRequest{})
	require.Equal(t, http.StatusOK, w.Code)
	chatID := decodeBody[EnsureChatResponse](t, w).ChatID
	require.NotEmpty(t, chatID)

	w = b.do(t, http.MethodPost, "/api/v1/chats/"+chatID+"/messages", "u1",
		SendMessageRequest{Content: "what does my future hold?"})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody[SendMessageResponse](t, w)
	assert.Contains(t, resp.Reply, "Card – The Sun ☀️")
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, models.RoleUser, resp.Messages[0].Role)
	assert.Equal(t, models.RoleAssistant, resp.Messages[1].Role)

	// The first assistant reply names the thread.
	w = b.do(t, http.MethodGet, "/api/v1/chats/"+chatID, "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	chat := decodeBody[models.Chat](t, w)
	assert.Equal(t, "Card – The Sun ☀️", chat.Title)
}

func TestSendMessageDeniedOutsideTrial(t *testing.T) {
	b := newTestBackend(t)
	// Profile created well past the trial window, no subscription.
	b.profiles.SetClock(func() time.Time { return time.Now().Add(-48 * time.Hour) })
	b.do(t, http.MethodPost, "/api/v1/session/start", "u1", nil)
	b.profiles.SetClock(time.Now)

	w := b.do(t, http.MethodPost, "/api/v1/chats/c1/messages", "u1",
		SendMessageRequest{Content: "hello?"})
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
}

func TestSendMessageRequiresContent(t *testing.T) {
	b := newTestBackend(t)
	b.do(t, http.MethodPost, "/api/v1/session/start", "u1", nil)

	w := b.do(t, http.MethodPost, "/api/v1/chats/c1/messages", "u1", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSendMessageCapsThread(t *testing.T) {
	b := newTestBackend(t)
	b.do(t, http.MethodPost, "/api/v1/session/start", "u1", nil)

	w := b.do(t, http.MethodPost, "/api/v1/chats", "u1", nil)
	chatID := decodeBody[EnsureChatResponse](t, w).ChatID

	// Each send appends two messages; push well past the cap.
	for i := 0; i < 15; i++ {
		w = b.do(t, http.MethodPost, "/api/v1/chats/"+chatID+"/messages", "u1",
			SendMessageRequest{Content: fmt.Sprintf("question %d", i)})
		require.Equal(t, http.StatusOK, w.Code)
	}

	resp := decodeBody[SendMessageResponse](t, w)
	assert.Len(t, resp.Messages, models.MessageCap)
}

func TestChatListingAndDeletion(t *testing.T) {
	b := newTestBackend(t)
	b.do(t, http.MethodPost, "/api/v1/session/start", "u1", nil)

	w := b.do(t, http.MethodPost, "/api/v1/chats", "u1", nil)
	chatID := decodeBody[EnsureChatResponse](t, w).ChatID

	w = b.do(t, http.MethodGet, "/api/v1/chats", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody[ListChatsResponse](t, w).Chats, 1)

	w = b.do(t, http.MethodDelete, "/api/v1/chats/"+chatID, "u1", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = b.do(t, http.MethodGet, "/api/v1/chats/"+chatID, "u1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEntitlementEndpoints(t *testing.T) {
	b := newTestBackend(t)
	b.do(t, http.MethodPost, "/api/v1/session/start", "u1", nil)

	w := b.do(t, http.MethodGet, "/api/v1/entitlement", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decodeBody[EntitlementResponse](t, w).CanChat, "fresh profile is inside the trial window")

	w = b.do(t, http.MethodPost, "/api/v1/entitlement/refresh", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decodeBody[EntitlementResponse](t, w).CanChat)
}

func TestCheckoutThenTestActivateGrantsEntitlement(t *testing.T) {
	b := newTestBackend(t)
	// Profile outside the trial window: only a subscription can entitle.
	b.profiles.SetClock(func() time.Time { return time.Now().Add(-48 * time.Hour) })
	b.do(t, http.MethodPost, "/api/v1/session/start", "u1", nil)
	b.profiles.SetClock(time.Now)

	w := b.do(t, http.MethodGet, "/api/v1/entitlement", "u1", nil)
	require.False(t, decodeBody[EntitlementResponse](t, w).CanChat)

	w = b.do(t, http.MethodPost, "/api/v1/billing/checkout", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decodeBody[CreateCheckoutSessionResponse](t, w).URL, "checkout.simulated.local")

	// Checkout alone grants nothing.
	w = b.do(t, http.MethodGet, "/api/v1/entitlement", "u1", nil)
	require.False(t, decodeBody[EntitlementResponse](t, w).CanChat)

	w = b.do(t, http.MethodPost, "/api/v1/billing/test-activate", "u1", TestActivateRequest{DurationMinutes: 30})
	require.Equal(t, http.StatusOK, w.Code)

	w = b.do(t, http.MethodGet, "/api/v1/entitlement", "u1", nil)
	assert.True(t, decodeBody[EntitlementResponse](t, w).CanChat)
}

func TestWebhookEndpointIsPublic(t *testing.T) {
	b := newTestBackend(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/billing/webhook", bytes.NewBufferString(`{}`))
	w := httptest.NewRecorder()
	b.router.ServeHTTP(w, req)
	// Reaches the handler without auth; simulated billing reports unconfigured.
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestUsersMe(t *testing.T) {
	b := newTestBackend(t)
	b.do(t, http.MethodPost, "/api/v1/session/start", "u1", nil)

	w := b.do(t, http.MethodGet, "/api/v1/users/me", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	profile := decodeBody[models.UserProfile](t, w)
	assert.Equal(t, "u1@simulated.local", profile.Email)
}
