package api

import "tarot-oracle-backend/internal/models"

// ErrorResponse is the generic error shape returned by every endpoint.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// SuccessResponse is a generic structure for simple success messages.
type SuccessResponse struct {
	Message string `json:"message"`
}

// SessionStartResponse reports the onboarding gate state after sign-in.
type SessionStartResponse struct {
	GateState string `json:"gateState"`
}

// AcceptPolicyResponse reports acceptance plus the one-time trial notice.
type AcceptPolicyResponse struct {
	GateState    string `json:"gateState"`
	TrialStarted bool   `json:"trialStarted"`
}

// EntitlementResponse reports whether the user may send chat messages.
type EntitlementResponse struct {
	CanChat bool `json:"canChat"`
}

// EnsureChatRequest optionally names an existing chat to reuse.
type EnsureChatRequest struct {
	ChatID string `json:"chatId"`
}

// EnsureChatResponse returns the (possibly newly created) chat id.
type EnsureChatResponse struct {
	ChatID string `json:"chatId"`
}

// SendMessageRequest carries one user turn.
type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// SendMessageResponse returns the assistant reply and the capped message
// sequence the client should render.
type SendMessageResponse struct {
	Reply    string           `json:"reply"`
	Messages []models.Message `json:"messages"`
}

// ListChatsResponse wraps the ordered chat listing.
type ListChatsResponse struct {
	Chats []*models.Chat `json:"chats"`
}

// CreateCheckoutSessionRequest optionally overrides the configured price.
type CreateCheckoutSessionRequest struct {
	PriceID string `json:"priceId"`
}

// CreateCheckoutSessionResponse returns the redirect URL for checkout.
type CreateCheckoutSessionResponse struct {
	URL string `json:"url"`
}

// TestActivateRequest grants a temporary subscription in simulated mode.
type TestActivateRequest struct {
	DurationMinutes int `json:"durationMinutes"`
}
